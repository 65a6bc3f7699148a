package rules

import (
	"fmt"
	"regexp"

	"github.com/esm-tools/cmorize/pkg/datarequest"
	"github.com/esm-tools/cmorize/pkg/errors"
	"github.com/esm-tools/cmorize/pkg/logging"
)

// ResolveOptions carries optional collaborators for resolution
type ResolveOptions struct {
	// Tables, when set, binds each rule to its data request entry
	Tables *datarequest.Collection
}

// typedKeys are spec attributes with dedicated fields. They take part in
// inheritance like any other attribute but never land in the free-form map.
var typedKeys = map[string]bool{
	"model_variable": true,
	"cmor_variable":  true,
	"cmor_table":     true,
	"output_pattern": true,
}

// Resolve turns raw rule specs into validated, immutable rules. Each spec
// resolves independently of its siblings: attributes fall back from the
// spec's own values to the inherit map to the general defaults, required
// fields are checked, and every input pattern is compiled. Any failure
// aborts resolution, since a half-resolved rule set is unsafe to execute.
func Resolve(specs []RuleSpec, generalDefaults, inherit map[string]interface{}, opts *ResolveOptions) ([]*Rule, error) {
	if opts == nil {
		opts = &ResolveOptions{}
	}
	logger := logging.GetLogger("rules.resolver")

	out := make([]*Rule, 0, len(specs))
	for i, spec := range specs {
		rule, err := resolveOne(spec, generalDefaults, inherit, opts)
		if err != nil {
			return nil, errors.Wrapf(err, errors.GetErrorCode(err), "rule %s", specID(spec, i))
		}
		logger.Debug().
			Str("rule", rule.ID()).
			Int("inputs", len(rule.inputs)+len(rule.patterns)).
			Int("pipelines", len(rule.pipelineRefs)).
			Msg("Resolved rule")
		out = append(out, rule)
	}
	return out, nil
}

// specID names a spec in errors before it has been fully resolved
func specID(spec RuleSpec, index int) string {
	if spec.Name != "" {
		return spec.Name
	}
	if spec.CmorVariable != "" {
		return spec.CmorVariable
	}
	return fmt.Sprintf("#%d", index)
}

func resolveOne(spec RuleSpec, generalDefaults, inherit map[string]interface{}, opts *ResolveOptions) (*Rule, error) {
	r := &Rule{
		name:          spec.Name,
		modelVariable: spec.ModelVariable,
		cmorVariable:  spec.CmorVariable,
		cmorTable:     spec.CmorTable,
		outputPattern: spec.OutputPattern,
		pipelineRefs:  append([]PipelineRef(nil), spec.Pipelines...),
		attrs:         make(map[string]interface{}),
		aux:           make(map[string]*auxResource),
	}

	// Three-tier attribute resolution: the rule's own value always wins,
	// then the inherit map, then the general defaults.
	for key, value := range spec.Attributes {
		r.attrs[key] = value
	}
	applyFallback(r, inherit)
	applyFallback(r, generalDefaults)

	if r.cmorVariable == "" {
		return nil, errors.New(errors.ErrRuleInvalid, "missing required attribute cmor_variable").
			WithDetail("field", "cmor_variable")
	}
	if len(spec.Inputs) == 0 && len(spec.InputPatterns) == 0 {
		return nil, errors.New(errors.ErrRuleInvalid, "rule declares no input patterns").
			WithDetail("field", "input_patterns")
	}

	for _, in := range spec.Inputs {
		re, err := regexp.Compile(in.Pattern)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrPatternInvalid, "invalid input pattern %q", in.Pattern).
				WithDetail("pattern", in.Pattern)
		}
		r.inputs = append(r.inputs, CompiledInput{Path: in.Path, Pattern: re})
	}
	for _, p := range spec.InputPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrPatternInvalid, "invalid input pattern %q", p).
				WithDetail("pattern", p)
		}
		r.patterns = append(r.patterns, re)
	}

	for _, ref := range r.pipelineRefs {
		if ref.Name != "" && ref.IsInline() {
			return nil, errors.Newf(errors.ErrConfigInvalid,
				"pipeline reference cannot have both a name (%q) and inline steps", ref.Name)
		}
		if ref.Name == "" && !ref.IsInline() {
			return nil, errors.New(errors.ErrConfigInvalid,
				"pipeline reference needs a name or inline steps")
		}
		for _, step := range ref.Steps {
			if step.Uses == "" {
				return nil, errors.New(errors.ErrConfigInvalid, "inline step missing 'uses'")
			}
		}
	}

	for _, aux := range spec.Aux {
		if aux.Name == "" {
			return nil, errors.New(errors.ErrConfigInvalid, "aux resource missing name")
		}
		loader, err := loaderForSpec(aux)
		if err != nil {
			return nil, err
		}
		r.aux[aux.Name] = &auxResource{spec: aux, loader: loader}
	}

	// A missing data request entry is not fatal here; the cmorizer surfaces
	// it as a sanity warning so experimental variables still run.
	if opts.Tables != nil && r.cmorTable != "" {
		if v, t, err := opts.Tables.Lookup(r.cmorVariable, r.cmorTable); err == nil {
			r.drVariable = &v
			r.drTable = t
		}
	}

	return r, nil
}

// applyFallback fills absent attributes from a fallback map. Typed fields
// only accept string values; everything else lands in the free-form map.
func applyFallback(r *Rule, fallback map[string]interface{}) {
	for key, value := range fallback {
		if typedKeys[key] {
			s, ok := value.(string)
			if !ok {
				continue
			}
			switch key {
			case "model_variable":
				if r.modelVariable == "" {
					r.modelVariable = s
				}
			case "cmor_variable":
				if r.cmorVariable == "" {
					r.cmorVariable = s
				}
			case "cmor_table":
				if r.cmorTable == "" {
					r.cmorTable = s
				}
			case "output_pattern":
				if r.outputPattern == "" {
					r.outputPattern = s
				}
			}
			continue
		}
		if _, exists := r.attrs[key]; !exists {
			r.attrs[key] = value
		}
	}
}
