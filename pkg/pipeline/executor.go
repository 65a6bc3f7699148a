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

// Executor applies single steps to a dataset within a rule's context. It
// swallows nothing: every failure comes back as a step-execution error
// tagged with the step and rule identifiers and the original cause.
type Executor struct {
	logger zerolog.Logger
}

// NewExecutor creates a step executor
func NewExecutor() *Executor {
	return &Executor{
		logger: logging.GetLogger("pipeline.executor"),
	}
}

// Apply runs one step. Retry policy, if any, belongs to the scheduler, not
// here. Panics inside a step are recovered and surfaced as step-execution
// errors so a misbehaving step cannot take down sibling tasks.
func (e *Executor) Apply(ctx context.Context, step Step, data *dataset.Dataset, rule *rules.Rule) (out *dataset.Dataset, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, errors.Wrap(ctxErr, errors.ErrCancelled, "step execution cancelled").
			WithDetail("step", step.ID).
			WithDetail("rule", rule.ID())
	}

	e.logger.Debug().
		Str("step", step.ID).
		Str("rule", rule.ID()).
		Msg("Applying step")

	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrStepExecute, "step %q panicked: %v", step.ID, r).
				WithDetail("step", step.ID).
				WithDetail("rule", rule.ID())
		}
	}()

	out, stepErr := step.fn(ctx, data, rule, step.Call)
	if stepErr != nil {
		return nil, errors.Wrapf(stepErr, errors.ErrStepExecute, "step %q failed for rule %q", step.ID, rule.ID()).
			WithDetail("step", step.ID).
			WithDetail("rule", rule.ID()).
			WithDetail("cause", fmt.Sprintf("%v", stepErr))
	}
	return out, nil
}
