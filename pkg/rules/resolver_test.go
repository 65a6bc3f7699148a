package rules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esm-tools/cmorize/pkg/errors"
	"github.com/esm-tools/cmorize/pkg/rules"
)

func validSpec() rules.RuleSpec {
	return rules.RuleSpec{
		Name:          "surface_temperature",
		ModelVariable: "temp2",
		CmorVariable:  "tas",
		CmorTable:     "Amon",
		Inputs: []rules.InputSpec{
			{Path: "/data/outdata", Pattern: `temp2_(?P<year>\d{4})\.nc`},
		},
	}
}

func TestResolveValidSpec(t *testing.T) {
	resolved, err := rules.Resolve([]rules.RuleSpec{validSpec()}, nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, resolved, 1)

	r := resolved[0]
	assert.Equal(t, "surface_temperature", r.Name())
	assert.Equal(t, "temp2", r.ModelVariable())
	assert.Equal(t, "tas", r.CmorVariable())
	assert.Equal(t, "Amon", r.CmorTable())
	assert.Len(t, r.Inputs(), 1)
}

func TestResolveAttributePrecedence(t *testing.T) {
	spec := validSpec()
	spec.Attributes = map[string]interface{}{"institution": "OWN"}

	general := map[string]interface{}{
		"institution":   "GENERAL",
		"experiment_id": "GENERAL",
		"source_id":     "GENERAL",
	}
	inherit := map[string]interface{}{
		"institution":   "INHERIT",
		"experiment_id": "INHERIT",
	}

	resolved, err := rules.Resolve([]rules.RuleSpec{spec}, general, inherit, nil)
	require.NoError(t, err)
	r := resolved[0]

	// own value beats inherit beats general
	assert.Equal(t, "OWN", r.AttrString("institution", ""))
	assert.Equal(t, "INHERIT", r.AttrString("experiment_id", ""))
	assert.Equal(t, "GENERAL", r.AttrString("source_id", ""))
}

func TestResolveTypedFieldFromDefaults(t *testing.T) {
	spec := validSpec()
	spec.CmorTable = ""

	general := map[string]interface{}{"cmor_table": "Omon"}
	resolved, err := rules.Resolve([]rules.RuleSpec{spec}, general, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Omon", resolved[0].CmorTable())

	// the typed field never shadows a spec's own value
	spec2 := validSpec()
	resolved, err = rules.Resolve([]rules.RuleSpec{spec2}, general, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Amon", resolved[0].CmorTable())
}

func TestResolveMissingCmorVariable(t *testing.T) {
	spec := validSpec()
	spec.CmorVariable = ""

	_, err := rules.Resolve([]rules.RuleSpec{spec}, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrRuleInvalid))
}

func TestResolveMissingInputs(t *testing.T) {
	spec := validSpec()
	spec.Inputs = nil

	_, err := rules.Resolve([]rules.RuleSpec{spec}, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrRuleInvalid))
}

func TestResolveInvalidPattern(t *testing.T) {
	spec := validSpec()
	spec.Inputs[0].Pattern = `temp2_([unclosed`

	_, err := rules.Resolve([]rules.RuleSpec{spec}, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPatternInvalid))
	assert.Equal(t, `temp2_([unclosed`, errors.GetErrorDetails(err)["pattern"])
}

func TestResolvePipelineRefValidation(t *testing.T) {
	tests := []struct {
		name string
		ref  rules.PipelineRef
	}{
		{
			name: "name and inline steps",
			ref: rules.PipelineRef{
				Name:  "default",
				Steps: []rules.StepSpec{{Uses: "noop"}},
			},
		},
		{
			name: "neither name nor steps",
			ref:  rules.PipelineRef{},
		},
		{
			name: "inline step without uses",
			ref: rules.PipelineRef{
				Steps: []rules.StepSpec{{Kwargs: map[string]interface{}{"x": 1}}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			spec.Pipelines = []rules.PipelineRef{tt.ref}
			_, err := rules.Resolve([]rules.RuleSpec{spec}, nil, nil, nil)
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, errors.ErrConfigInvalid))
		})
	}
}

func TestResolveStopsAtFirstBadRule(t *testing.T) {
	bad := validSpec()
	bad.Name = "broken"
	bad.CmorVariable = ""

	_, err := rules.Resolve([]rules.RuleSpec{validSpec(), bad}, nil, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestRuleID(t *testing.T) {
	resolved, err := rules.Resolve([]rules.RuleSpec{validSpec()}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "surface_temperature", resolved[0].ID())

	anon := validSpec()
	anon.Name = ""
	resolved, err = rules.Resolve([]rules.RuleSpec{anon}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "temp2/tas/Amon", resolved[0].ID())
}
