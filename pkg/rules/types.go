package rules

// InputSpec names a directory and a filename regex to collect files from
type InputSpec struct {
	Path    string `koanf:"path" yaml:"path"`
	Pattern string `koanf:"pattern" yaml:"pattern"`
}

// AuxSpec declares a named auxiliary resource attached to a rule
type AuxSpec struct {
	Name   string `koanf:"name" yaml:"name"`
	Path   string `koanf:"path" yaml:"path"`
	Loader string `koanf:"loader" yaml:"loader"`
}

// StepSpec is one step binding: a registered step identifier plus the
// arguments bound to it at configuration time
type StepSpec struct {
	Uses   string                 `koanf:"uses" yaml:"uses"`
	Args   []interface{}          `koanf:"args" yaml:"args"`
	Kwargs map[string]interface{} `koanf:"kwargs" yaml:"kwargs"`
}

// PipelineRef is either a reference to a named pipeline or an inline step
// sequence. Exactly one of Name and Steps is set.
type PipelineRef struct {
	Name  string     `koanf:"name" yaml:"name"`
	Steps []StepSpec `koanf:"steps" yaml:"steps"`
}

// IsInline reports whether the reference carries its own steps
func (p PipelineRef) IsInline() bool {
	return len(p.Steps) > 0
}

// RuleSpec is the raw configuration fragment for one rule, before
// inheritance and validation. It is data only; Resolve turns it into a Rule.
type RuleSpec struct {
	Name          string                 `koanf:"name" yaml:"name"`
	ModelVariable string                 `koanf:"model_variable" yaml:"model_variable"`
	CmorVariable  string                 `koanf:"cmor_variable" yaml:"cmor_variable"`
	CmorTable     string                 `koanf:"cmor_table" yaml:"cmor_table"`
	Inputs        []InputSpec            `koanf:"inputs" yaml:"inputs"`
	InputPatterns []string               `koanf:"input_patterns" yaml:"input_patterns"`
	OutputPattern string                 `koanf:"output_pattern" yaml:"output_pattern"`
	Pipelines     []PipelineRef          `koanf:"pipelines" yaml:"pipelines"`
	Aux           []AuxSpec              `koanf:"aux" yaml:"aux"`
	Attributes    map[string]interface{} `koanf:"attributes" yaml:"attributes"`
}

// MatchResult pairs a candidate path with the rule it matched and the named
// capture groups extracted from the path
type MatchResult struct {
	Path     string
	Rule     *Rule
	Captures map[string]string
}
