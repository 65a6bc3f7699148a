// Package rules resolves declarative rule specifications into validated,
// immutable Rule entities and matches candidate input files against them.
//
// # Resolution
//
// A rule spec resolves through three tiers: the spec's own attributes always
// win, then the inherit section, then the general defaults. Required fields
// (cmor_variable, at least one input pattern) are validated and every input
// pattern is compiled as a regular expression before any file is touched.
//
// # Matching
//
// A rule matches a file when any one of its patterns matches (OR across
// patterns). Named capture groups such as (?P<year>\d{4}) are extracted
// into the match result, giving downstream consumers a chronological sort
// key without opening the file.
//
// # Configuration
//
// Rules are declared in the rules section of the configuration document:
//
//	rules:
//	  - cmor_variable: tos
//	    cmor_table: Omon
//	    model_variable: sst
//	    inputs:
//	      - path: /data/model/output
//	        pattern: sst_(?P<year>\d{4})\.nc
//	    pipelines: [default]
package rules
