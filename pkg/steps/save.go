package steps

import (
	"context"
	"math"
	"path/filepath"

	"github.com/esm-tools/cmorize/pkg/dataset"
	"github.com/esm-tools/cmorize/pkg/frequency"
	"github.com/esm-tools/cmorize/pkg/logging"
	"github.com/esm-tools/cmorize/pkg/pipeline"
	"github.com/esm-tools/cmorize/pkg/rules"
)

// SaveDataset writes the dataset under the rule's output name. An explicit
// output pattern on the rule wins; otherwise the standardized file name is
// derived from the rule and the dataset's time range. The destination
// directory comes from the "output_dir" kwarg or the rule's
// output_directory attribute.
func SaveDataset(ctx context.Context, data *dataset.Dataset, rule *rules.Rule, call pipeline.StepCall) (*dataset.Dataset, error) {
	logger := logging.GetLogger("steps.save")

	name, err := outputName(data, rule)
	if err != nil {
		return nil, err
	}
	dir := call.String("output_dir", rule.AttrString("output_directory", "."))
	path := filepath.Join(dir, name)

	if err := data.Save(path); err != nil {
		return nil, err
	}
	data.SavedTo = append(data.SavedTo, path)

	logger.Info().
		Str("rule", rule.ID()).
		Str("path", path).
		Msg("Saved dataset")
	return data, nil
}

func outputName(data *dataset.Dataset, rule *rules.Rule) (string, error) {
	start, end, ok := data.TimeRange()
	if rule.OutputPattern() != "" {
		ref := start
		if !ok {
			ref = now()
		}
		return rule.RenderOutputPattern(ref)
	}
	freqName := "fx"
	if ok {
		freqName = frequencyName(rule)
	}
	return rule.DefaultOutputName(freqName, start, end)
}

// frequencyName resolves the CMIP frequency name for the rule, preferring
// the data request entry and falling back to the table whose interval and
// time method match best.
func frequencyName(rule *rules.Rule) string {
	if v := rule.DataRequestVariable(); v != nil && v.Frequency != "" {
		return v.Frequency
	}
	interval := 30.0
	if t := rule.DataRequestTable(); t != nil && t.ApproxInterval > 0 {
		interval = t.ApproxInterval
	} else if v, ok := frequency.TableIntervals[rule.CmorTable()]; ok {
		interval = v
	}
	method := frequency.MethodForTable(rule.CmorTable())

	best := "mon"
	bestDiff := math.Inf(1)
	for _, f := range frequency.All {
		if f.TimeMethod != method {
			continue
		}
		if d := math.Abs(f.ApproxInterval - interval); d < bestDiff {
			best, bestDiff = f.Name, d
		}
	}
	return best
}
