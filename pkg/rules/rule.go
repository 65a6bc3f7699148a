package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/esm-tools/cmorize/pkg/datarequest"
)

// CompiledInput is an input collection with its filename pattern compiled
type CompiledInput struct {
	Path    string
	Pattern *regexp.Regexp
}

// Rule is a resolved, validated rule. It is immutable once built: every
// field is private and exposed through read-only accessors, so concurrent
// pipeline executions can share a Rule without locking. There is
// deliberately no setter.
type Rule struct {
	name          string
	modelVariable string
	cmorVariable  string
	cmorTable     string
	outputPattern string

	inputs   []CompiledInput
	patterns []*regexp.Regexp

	pipelineRefs []PipelineRef
	attrs        map[string]interface{}
	aux          map[string]*auxResource

	drVariable *datarequest.Variable
	drTable    *datarequest.Table
}

// Name returns the explicit rule name, or "" when none was declared
func (r *Rule) Name() string { return r.name }

// ID identifies the rule in logs and errors: the explicit name when set,
// otherwise the (model_variable, cmor_variable, cmor_table) triple
func (r *Rule) ID() string {
	if r.name != "" {
		return r.name
	}
	parts := []string{r.modelVariable, r.cmorVariable, r.cmorTable}
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "/")
}

func (r *Rule) ModelVariable() string { return r.modelVariable }
func (r *Rule) CmorVariable() string  { return r.cmorVariable }
func (r *Rule) CmorTable() string     { return r.cmorTable }
func (r *Rule) OutputPattern() string { return r.outputPattern }

// Inputs returns the compiled input collections
func (r *Rule) Inputs() []CompiledInput {
	return append([]CompiledInput(nil), r.inputs...)
}

// Patterns returns the compiled bare input patterns
func (r *Rule) Patterns() []*regexp.Regexp {
	return append([]*regexp.Regexp(nil), r.patterns...)
}

// PipelineRefs returns the declared pipeline references in order
func (r *Rule) PipelineRefs() []PipelineRef {
	return append([]PipelineRef(nil), r.pipelineRefs...)
}

// Attr returns a resolved free-form attribute
func (r *Rule) Attr(key string) (interface{}, bool) {
	v, ok := r.attrs[key]
	return v, ok
}

// AttrString returns a free-form attribute as a string, or the fallback
func (r *Rule) AttrString(key, fallback string) string {
	if v, ok := r.attrs[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return fallback
}

// AttrNames returns the names of all resolved free-form attributes
func (r *Rule) AttrNames() []string {
	names := make([]string, 0, len(r.attrs))
	for k := range r.attrs {
		names = append(names, k)
	}
	return names
}

// DataRequestVariable returns the table entry bound at resolution time,
// or nil when no table collection was supplied
func (r *Rule) DataRequestVariable() *datarequest.Variable { return r.drVariable }

// DataRequestTable returns the table bound at resolution time, or nil
func (r *Rule) DataRequestTable() *datarequest.Table { return r.drTable }

func (r *Rule) String() string {
	return fmt.Sprintf("Rule(%s, %d inputs, %d pipelines)", r.ID(), len(r.inputs)+len(r.patterns), len(r.pipelineRefs))
}
