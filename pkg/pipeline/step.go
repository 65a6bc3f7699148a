package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"github.com/esm-tools/cmorize/pkg/dataset"
	"github.com/esm-tools/cmorize/pkg/errors"
	"github.com/esm-tools/cmorize/pkg/registry"
	"github.com/esm-tools/cmorize/pkg/rules"
)

// StepFunc is the transformation contract every step implements: given a
// dataset and the owning rule as read-only context, return a new dataset.
// Steps must not mutate the rule; the Rule type has no setters to enforce
// that at compile time.
type StepFunc func(ctx context.Context, data *dataset.Dataset, rule *rules.Rule, call StepCall) (*dataset.Dataset, error)

// StepCall carries the arguments bound to a step at configuration time
type StepCall struct {
	Args   []interface{}
	Kwargs map[string]interface{}
}

// String returns a kwarg as a string, or the fallback when absent
func (c StepCall) String(key, fallback string) string {
	v, ok := c.Kwargs[key]
	if !ok {
		return fallback
	}
	return fmt.Sprintf("%v", v)
}

// Bool returns a kwarg as a bool, or the fallback when absent or unreadable
func (c StepCall) Bool(key string, fallback bool) bool {
	v, ok := c.Kwargs[key]
	if !ok {
		return fallback
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return fallback
		}
		return parsed
	default:
		return fallback
	}
}

// Float returns a kwarg as a float64, or the fallback when absent or unreadable
func (c StepCall) Float(key string, fallback float64) float64 {
	v, ok := c.Kwargs[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return fallback
		}
		return parsed
	default:
		return fallback
	}
}

// Step is a fully resolved step binding: the registered callable plus its
// pre-bound arguments
type Step struct {
	ID   string
	Call StepCall
	fn   StepFunc
}

// NewStep binds a function directly, mostly useful in tests
func NewStep(id string, fn StepFunc) Step {
	return Step{ID: id, fn: fn}
}

// stepRegistry maps stable step identifiers to their implementations. It is
// populated at process start by step packages and looked up during
// configuration resolution, failing fast on unknown identifiers.
var stepRegistry = registry.New[StepFunc]()

// RegisterStep adds a step implementation under a stable identifier
func RegisterStep(name string, fn StepFunc) error {
	return stepRegistry.Register(name, fn)
}

// MustRegisterStep registers a step and panics on failure; for init() use
func MustRegisterStep(name string, fn StepFunc) {
	registry.MustRegister(stepRegistry, name, fn)
}

// StepNames lists all registered step identifiers
func StepNames() []string {
	return stepRegistry.List()
}

// lookupStep resolves a step identifier against the registry
func lookupStep(name string) (StepFunc, error) {
	fn, err := stepRegistry.Get(name)
	if err != nil {
		return nil, errors.Newf(errors.ErrStepNotFound, "unknown step %q", name).
			WithDetail("step", name)
	}
	return fn, nil
}

// BindStep resolves a step spec into an executable binding
func BindStep(spec rules.StepSpec) (Step, error) {
	fn, err := lookupStep(spec.Uses)
	if err != nil {
		return Step{}, err
	}
	return Step{
		ID:   spec.Uses,
		Call: StepCall{Args: spec.Args, Kwargs: spec.Kwargs},
		fn:   fn,
	}, nil
}
