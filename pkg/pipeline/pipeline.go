// Package pipeline composes ordered step sequences and runs them against a
// dataset with a rule as read-only context. Step order is significant and
// preserved exactly as declared; an empty pipeline is valid and returns its
// input unchanged.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/esm-tools/cmorize/pkg/dataset"
	"github.com/esm-tools/cmorize/pkg/errors"
	"github.com/esm-tools/cmorize/pkg/logging"
	"github.com/esm-tools/cmorize/pkg/rules"
)

// Pipeline is an ordered sequence of bound steps
type Pipeline struct {
	name   string
	steps  []Step
	logger zerolog.Logger
}

// New creates a pipeline from bound steps
func New(name string, steps ...Step) *Pipeline {
	return &Pipeline{
		name:   name,
		steps:  steps,
		logger: logging.GetLogger("pipeline"),
	}
}

// Name returns the pipeline name
func (p *Pipeline) Name() string { return p.name }

// Steps returns the ordered step bindings
func (p *Pipeline) Steps() []Step {
	return append([]Step(nil), p.steps...)
}

func (p *Pipeline) String() string {
	return fmt.Sprintf("Pipeline(%s, %d steps)", p.name, len(p.steps))
}

// Run folds the executor over the steps left to right, threading each
// step's output into the next step's input. The first failing step aborts
// the remaining ones and propagates its error: a pipeline execution either
// completes all steps or is failed as a whole.
func (p *Pipeline) Run(ctx context.Context, data *dataset.Dataset, rule *rules.Rule) (*dataset.Dataset, error) {
	executor := NewExecutor()
	total := len(p.steps)
	for i, step := range p.steps {
		p.logger.Info().
			Str("pipeline", p.name).
			Str("rule", rule.ID()).
			Str("step", step.ID).
			Str("progress", fmt.Sprintf("%d/%d", i+1, total)).
			Msg("Running step")
		next, err := executor.Apply(ctx, step, data, rule)
		if err != nil {
			return nil, err
		}
		data = next
	}
	return data, nil
}

// FromSpecs builds a pipeline from step specs, resolving each step
// identifier against the step registry. Unknown identifiers fail here, at
// configuration time, before any file is touched.
func FromSpecs(name string, specs []rules.StepSpec) (*Pipeline, error) {
	steps := make([]Step, 0, len(specs))
	for _, spec := range specs {
		step, err := BindStep(spec)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return New(name, steps...), nil
}

// DefaultStepIDs is the built-in pipeline bound to rules that declare none
var DefaultStepIDs = []string{
	"load_dataset",
	"select_variable",
	"time_average",
	"convert_units",
	"set_global_attributes",
	"set_variable_attributes",
	"save_dataset",
}

// DefaultName is the identifier of the built-in pipeline
const DefaultName = "default"

// Default builds the built-in pipeline from the step registry
func Default() (*Pipeline, error) {
	specs := make([]rules.StepSpec, 0, len(DefaultStepIDs))
	for _, id := range DefaultStepIDs {
		specs = append(specs, rules.StepSpec{Uses: id})
	}
	return FromSpecs(DefaultName, specs)
}

// ResolveRefs binds a rule's pipeline references against the named pipeline
// definitions. A reference is either a name, looked up in the definitions
// (with "default" always available), or an inline step list. A rule with no
// references gets the built-in default pipeline. Pipelines returned here
// run in declared order, each consuming the previous one's output.
func ResolveRefs(refs []rules.PipelineRef, defined map[string]*Pipeline) ([]*Pipeline, error) {
	if len(refs) == 0 {
		def, err := Default()
		if err != nil {
			return nil, err
		}
		return []*Pipeline{def}, nil
	}

	out := make([]*Pipeline, 0, len(refs))
	for i, ref := range refs {
		if ref.IsInline() {
			pl, err := FromSpecs(fmt.Sprintf("inline-%d", i), ref.Steps)
			if err != nil {
				return nil, err
			}
			out = append(out, pl)
			continue
		}
		if pl, ok := defined[ref.Name]; ok {
			out = append(out, pl)
			continue
		}
		if ref.Name == DefaultName {
			def, err := Default()
			if err != nil {
				return nil, err
			}
			out = append(out, def)
			continue
		}
		return nil, errors.Newf(errors.ErrPipelineNotFound, "unknown pipeline %q", ref.Name).
			WithDetail("pipeline", ref.Name)
	}
	return out, nil
}

// RunAll chains several pipelines: each one consumes the previous
// pipeline's output, never running in parallel
func RunAll(ctx context.Context, pipelines []*Pipeline, data *dataset.Dataset, rule *rules.Rule) (*dataset.Dataset, error) {
	for _, pl := range pipelines {
		next, err := pl.Run(ctx, data, rule)
		if err != nil {
			return nil, err
		}
		data = next
	}
	return data, nil
}
