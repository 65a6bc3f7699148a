package steps_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esm-tools/cmorize/pkg/datarequest"
	"github.com/esm-tools/cmorize/pkg/dataset"
	"github.com/esm-tools/cmorize/pkg/pipeline"
	"github.com/esm-tools/cmorize/pkg/rules"
	"github.com/esm-tools/cmorize/pkg/steps"
)

const amonTable = `{
  "Header": {
    "table_id": "Table Amon",
    "realm": "atmos",
    "approx_interval": "30.00000"
  },
  "variable_entry": {
    "tas": {
      "units": "K",
      "cell_methods": "area: time: mean",
      "frequency": "mon",
      "standard_name": "air_temperature",
      "long_name": "Near-Surface Air Temperature"
    }
  }
}`

func tablesDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CMIP6_Amon.json"), []byte(amonTable), 0o644))
	return dir
}

func tasRule(t *testing.T, withTables bool, attrs map[string]interface{}) *rules.Rule {
	t.Helper()
	var opts *rules.ResolveOptions
	if withTables {
		tables, err := datarequest.LoadDir(tablesDir(t))
		require.NoError(t, err)
		opts = &rules.ResolveOptions{Tables: tables}
	}
	resolved, err := rules.Resolve([]rules.RuleSpec{{
		Name:          "tas-rule",
		ModelVariable: "temp2",
		CmorVariable:  "tas",
		CmorTable:     "Amon",
		InputPatterns: []string{`temp2_(?P<year>\d{4})\.nc`},
		Attributes:    attrs,
	}}, nil, nil, opts)
	require.NoError(t, err)
	return resolved[0]
}

func monthlyData(values ...float64) *dataset.Dataset {
	ds := dataset.New()
	for i := range values {
		ds.Time = append(ds.Time, time.Date(1850, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC))
	}
	ds.AddVariable(&dataset.Variable{
		Name:   "temp2",
		Attrs:  map[string]interface{}{"units": "K"},
		Values: values,
	})
	return ds
}

func TestBuiltinStepsRegistered(t *testing.T) {
	names := pipeline.StepNames()
	for _, id := range pipeline.DefaultStepIDs {
		assert.Contains(t, names, id)
	}
	assert.Contains(t, names, "noop")
	assert.Contains(t, names, "show_data")
}

func TestSelectVariableRenames(t *testing.T) {
	rule := tasRule(t, false, nil)
	out, err := steps.SelectVariable(context.Background(), monthlyData(1, 2), rule, pipeline.StepCall{})
	require.NoError(t, err)

	assert.Equal(t, []string{"tas"}, out.VarNames())
	v, err := out.Var("tas")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, v.Values)
}

func TestSelectVariableMissing(t *testing.T) {
	rule := tasRule(t, false, nil)
	ds := dataset.New()
	_, err := steps.SelectVariable(context.Background(), ds, rule, pipeline.StepCall{})
	assert.Error(t, err)
}

func TestConvertUnitsExplicitTarget(t *testing.T) {
	rule := tasRule(t, false, nil)
	ds := monthlyData(0, 10)
	require.NoError(t, ds.Rename("temp2", "tas"))
	v, _ := ds.Var("tas")
	v.SetUnit("degC")

	out, err := steps.ConvertUnits(context.Background(), ds, rule, pipeline.StepCall{
		Kwargs: map[string]interface{}{"to": "K"},
	})
	require.NoError(t, err)

	ov, err := out.Var("tas")
	require.NoError(t, err)
	assert.InDelta(t, 273.15, ov.Values[0], 1e-9)
	assert.InDelta(t, 283.15, ov.Values[1], 1e-9)
	assert.Equal(t, "K", ov.Unit())

	// input dataset stays untouched
	iv, _ := ds.Var("tas")
	assert.Equal(t, 0.0, iv.Values[0])
}

func TestConvertUnitsFromDataRequest(t *testing.T) {
	rule := tasRule(t, true, nil)
	ds := monthlyData(0)
	require.NoError(t, ds.Rename("temp2", "tas"))
	v, _ := ds.Var("tas")
	v.SetUnit("degC")

	out, err := steps.ConvertUnits(context.Background(), ds, rule, pipeline.StepCall{})
	require.NoError(t, err)
	ov, _ := out.Var("tas")
	assert.InDelta(t, 273.15, ov.Values[0], 1e-9)
}

func TestConvertUnitsModelUnitOverride(t *testing.T) {
	rule := tasRule(t, true, map[string]interface{}{"model_unit": "degC"})
	ds := monthlyData(0)
	require.NoError(t, ds.Rename("temp2", "tas"))
	// units attribute in the file is wrong; the rule attribute wins
	v, _ := ds.Var("tas")
	v.SetUnit("W")

	out, err := steps.ConvertUnits(context.Background(), ds, rule, pipeline.StepCall{})
	require.NoError(t, err)
	ov, _ := out.Var("tas")
	assert.InDelta(t, 273.15, ov.Values[0], 1e-9)
}

func TestConvertUnitsNoTargetKnown(t *testing.T) {
	rule := tasRule(t, false, nil)
	ds := monthlyData(0)
	require.NoError(t, ds.Rename("temp2", "tas"))

	_, err := steps.ConvertUnits(context.Background(), ds, rule, pipeline.StepCall{})
	assert.Error(t, err)
}

func TestTimeAverageMonthlyMean(t *testing.T) {
	rule := tasRule(t, false, nil)

	ds := dataset.New()
	// daily samples across January and February 1850
	for day := 1; day <= 31; day++ {
		ds.Time = append(ds.Time, time.Date(1850, time.January, day, 12, 0, 0, 0, time.UTC))
	}
	for day := 1; day <= 28; day++ {
		ds.Time = append(ds.Time, time.Date(1850, time.February, day, 12, 0, 0, 0, time.UTC))
	}
	values := make([]float64, len(ds.Time))
	for i := range values {
		if i < 31 {
			values[i] = 10
		} else {
			values[i] = 20
		}
	}
	ds.AddVariable(&dataset.Variable{Name: "tas", Values: values})

	out, err := steps.TimeAverage(context.Background(), ds, rule, pipeline.StepCall{})
	require.NoError(t, err)

	require.Len(t, out.Time, 2)
	assert.Equal(t, time.Date(1850, time.January, 1, 0, 0, 0, 0, time.UTC), out.Time[0])
	assert.Equal(t, time.Date(1850, time.February, 1, 0, 0, 0, 0, time.UTC), out.Time[1])

	v, err := out.Var("tas")
	require.NoError(t, err)
	assert.InDelta(t, 10, v.Values[0], 1e-9)
	assert.InDelta(t, 20, v.Values[1], 1e-9)
}

func TestTimeAverageNoTimeAxisPassesThrough(t *testing.T) {
	rule := tasRule(t, false, nil)
	ds := dataset.New()
	ds.AddVariable(&dataset.Variable{Name: "tas", Values: []float64{1}})

	out, err := steps.TimeAverage(context.Background(), ds, rule, pipeline.StepCall{})
	require.NoError(t, err)
	assert.Same(t, ds, out)
}

func TestSetGlobalAttributes(t *testing.T) {
	rule := tasRule(t, true, map[string]interface{}{
		"source_id":     "AWI-CM-1-1-MR",
		"experiment_id": "piControl",
	})

	out, err := steps.SetGlobalAttributes(context.Background(), monthlyData(1), rule, pipeline.StepCall{
		Kwargs: map[string]interface{}{"comment": "test run"},
	})
	require.NoError(t, err)

	assert.Equal(t, "CMIP6", out.Attrs["mip_era"])
	assert.Equal(t, "Amon", out.Attrs["table_id"])
	assert.Equal(t, "tas", out.Attrs["variable_id"])
	assert.Equal(t, "AWI-CM-1-1-MR", out.Attrs["source_id"])
	assert.Equal(t, "piControl", out.Attrs["experiment_id"])
	assert.Equal(t, "mon", out.Attrs["frequency"])
	assert.Equal(t, "test run", out.Attrs["comment"])
	assert.NotEmpty(t, out.Attrs["creation_date"])
}

func TestSetVariableAttributes(t *testing.T) {
	rule := tasRule(t, true, nil)
	ds := monthlyData(1)
	require.NoError(t, ds.Rename("temp2", "tas"))

	out, err := steps.SetVariableAttributes(context.Background(), ds, rule, pipeline.StepCall{})
	require.NoError(t, err)

	v, err := out.Var("tas")
	require.NoError(t, err)
	assert.Equal(t, "air_temperature", v.Attrs["standard_name"])
	assert.Equal(t, "Near-Surface Air Temperature", v.Attrs["long_name"])
	assert.Equal(t, "area: time: mean", v.Attrs["cell_methods"])
}

func TestSaveDatasetDefaultName(t *testing.T) {
	rule := tasRule(t, true, map[string]interface{}{
		"source_id":     "AWI-CM-1-1-MR",
		"experiment_id": "piControl",
	})
	ds := monthlyData(1, 2, 3)
	require.NoError(t, ds.Rename("temp2", "tas"))

	dir := t.TempDir()
	out, err := steps.SaveDataset(context.Background(), ds, rule, pipeline.StepCall{
		Kwargs: map[string]interface{}{"output_dir": dir},
	})
	require.NoError(t, err)

	want := filepath.Join(dir, "tas_Amon_AWI-AWI-CM-1-1-MR_piControl_r1i1p1f1_gn_185001-185003.nc")
	assert.Equal(t, []string{want}, out.SavedTo)
	_, statErr := os.Stat(want)
	assert.NoError(t, statErr)
}

func TestSaveDatasetOutputPattern(t *testing.T) {
	tables, err := datarequest.LoadDir(tablesDir(t))
	require.NoError(t, err)
	resolved, err := rules.Resolve([]rules.RuleSpec{{
		Name:          "tas-rule",
		ModelVariable: "temp2",
		CmorVariable:  "tas",
		CmorTable:     "Amon",
		InputPatterns: []string{`temp2_\d{4}\.nc`},
		OutputPattern: "{cmor_variable}_{date:2006}.nc",
	}}, nil, nil, &rules.ResolveOptions{Tables: tables})
	require.NoError(t, err)

	dir := t.TempDir()
	out, err := steps.SaveDataset(context.Background(), monthlyData(1), resolved[0], pipeline.StepCall{
		Kwargs: map[string]interface{}{"output_dir": dir},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "tas_1850.nc")}, out.SavedTo)
}

func TestLoadDatasetFromSeededFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "temp2_1850.nc")
	second := filepath.Join(dir, "temp2_1851.nc")
	require.NoError(t, monthlyData(1, 2).Save(first))
	require.NoError(t, monthlyData(3).Save(second))

	rule := tasRule(t, false, nil)
	seed := dataset.New()
	seed.SourceFiles = []string{first, second}

	out, err := steps.LoadDataset(context.Background(), seed, rule, pipeline.StepCall{})
	require.NoError(t, err)
	require.Len(t, out.Time, 3)
	v, err := out.Var("temp2")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, v.Values)
}

func TestLoadDatasetNoInputs(t *testing.T) {
	resolved, err := rules.Resolve([]rules.RuleSpec{{
		Name:         "empty",
		CmorVariable: "tas",
		Inputs: []rules.InputSpec{
			{Path: t.TempDir(), Pattern: `temp2_\d{4}\.nc`},
		},
	}}, nil, nil, nil)
	require.NoError(t, err)

	_, err = steps.LoadDataset(context.Background(), dataset.New(), resolved[0], pipeline.StepCall{})
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	rule := tasRule(t, false, nil)
	ds := dataset.New()
	out, err := steps.Noop(context.Background(), ds, rule, pipeline.StepCall{})
	require.NoError(t, err)
	assert.Same(t, ds, out)
}
