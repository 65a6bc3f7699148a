// Package steps provides the built-in transformation steps. Each step is
// registered under a stable identifier at process start and follows the
// step contract: take a dataset and a read-only rule, return a new dataset.
// None of them performs scientific math beyond simple bookkeeping; heavier
// transformations plug in through the same registry.
package steps

import (
	"context"

	"github.com/esm-tools/cmorize/pkg/dataset"
	"github.com/esm-tools/cmorize/pkg/errors"
	"github.com/esm-tools/cmorize/pkg/logging"
	"github.com/esm-tools/cmorize/pkg/pipeline"
	"github.com/esm-tools/cmorize/pkg/rules"
	"github.com/esm-tools/cmorize/pkg/units"
)

func init() {
	pipeline.MustRegisterStep("load_dataset", LoadDataset)
	pipeline.MustRegisterStep("select_variable", SelectVariable)
	pipeline.MustRegisterStep("time_average", TimeAverage)
	pipeline.MustRegisterStep("convert_units", ConvertUnits)
	pipeline.MustRegisterStep("set_global_attributes", SetGlobalAttributes)
	pipeline.MustRegisterStep("set_variable_attributes", SetVariableAttributes)
	pipeline.MustRegisterStep("show_data", ShowData)
	pipeline.MustRegisterStep("save_dataset", SaveDataset)
	pipeline.MustRegisterStep("noop", Noop)
}

// LoadDataset opens the rule's matched input files as one dataset. When the
// incoming value already names its source files (the scheduler seeds file
// groups this way) those are opened; otherwise the rule's input collections
// are discovered on the spot.
func LoadDataset(ctx context.Context, data *dataset.Dataset, rule *rules.Rule, call pipeline.StepCall) (*dataset.Dataset, error) {
	var paths []string
	if data != nil && len(data.SourceFiles) > 0 {
		paths = data.SourceFiles
	} else {
		matches, err := rules.NewMatcher().Discover(ctx, rule)
		if err != nil {
			return nil, err
		}
		rules.SortByDate(matches)
		for _, m := range matches {
			paths = append(paths, m.Path)
		}
	}
	if len(paths) == 0 {
		return nil, errors.Newf(errors.ErrDataLoad, "no input files for rule %q", rule.ID()).
			WithDetail("rule", rule.ID())
	}
	paths, err := dataset.ResolveSymlinks(paths)
	if err != nil {
		return nil, err
	}
	return dataset.OpenMulti(ctx, paths)
}

// SelectVariable reduces the dataset to the rule's model variable and
// renames it to the target standardized name. A "variable" kwarg overrides
// the model variable.
func SelectVariable(ctx context.Context, data *dataset.Dataset, rule *rules.Rule, call pipeline.StepCall) (*dataset.Dataset, error) {
	name := call.String("variable", rule.ModelVariable())
	if name == "" {
		name = rule.CmorVariable()
	}
	out, err := data.Select(name)
	if err != nil {
		return nil, err
	}
	if rule.CmorVariable() != "" && name != rule.CmorVariable() {
		if err := out.Rename(name, rule.CmorVariable()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ConvertUnits converts the target variable from the model units to the
// units the data request table asks for. A "model_unit" rule attribute
// overrides the units recorded in the file, matching the behavior of model
// output with wrong or missing unit attributes.
func ConvertUnits(ctx context.Context, data *dataset.Dataset, rule *rules.Rule, call pipeline.StepCall) (*dataset.Dataset, error) {
	logger := logging.GetLogger("steps.units")

	drv := rule.DataRequestVariable()
	toUnit := call.String("to", "")
	if toUnit == "" {
		if drv == nil {
			return nil, errors.Newf(errors.ErrUnitInvalid,
				"rule %q has no data request entry and no explicit target unit", rule.ID()).
				WithDetail("rule", rule.ID())
		}
		toUnit = drv.Units
	}

	v, err := data.Var(rule.CmorVariable())
	if err != nil {
		return nil, err
	}
	fromUnit := rule.AttrString("model_unit", v.Unit())
	if fromUnit == "" {
		return nil, errors.Newf(errors.ErrUnitInvalid, "no source unit for variable %q", v.Name).
			WithDetail("rule", rule.ID())
	}
	if fromUnit == toUnit {
		return data, nil
	}

	logger.Info().
		Str("rule", rule.ID()).
		Str("from", fromUnit).
		Str("to", toUnit).
		Msg("Converting units")

	out := data.Clone()
	ov, _ := out.Var(v.Name)
	for i, val := range ov.Values {
		converted, err := units.Convert(val, fromUnit, toUnit)
		if err != nil {
			return nil, err
		}
		ov.Values[i] = converted
	}
	ov.SetUnit(toUnit)
	return out, nil
}

// ShowData logs a short summary of the dataset, useful when debugging a
// pipeline configuration
func ShowData(ctx context.Context, data *dataset.Dataset, rule *rules.Rule, call pipeline.StepCall) (*dataset.Dataset, error) {
	logger := logging.GetLogger("steps.show")
	event := logger.Info().
		Str("rule", rule.ID()).
		Strs("variables", data.VarNames()).
		Int("timesteps", len(data.Time))
	if start, end, ok := data.TimeRange(); ok {
		event = event.Time("start", start).Time("end", end)
	}
	event.Msg("Dataset summary")
	return data, nil
}

// Noop returns its input unchanged
func Noop(ctx context.Context, data *dataset.Dataset, rule *rules.Rule, call pipeline.StepCall) (*dataset.Dataset, error) {
	return data, nil
}
