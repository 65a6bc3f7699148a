package steps

import (
	"context"
	"time"

	"github.com/esm-tools/cmorize/pkg/dataset"
	"github.com/esm-tools/cmorize/pkg/pipeline"
	"github.com/esm-tools/cmorize/pkg/rules"
)

// now is overridable in tests
var now = time.Now

// SetGlobalAttributes stamps the dataset with the archival header fields.
// Values come from rule attributes with the usual defaults, plus anything
// the step call passes as kwargs.
func SetGlobalAttributes(ctx context.Context, data *dataset.Dataset, rule *rules.Rule, call pipeline.StepCall) (*dataset.Dataset, error) {
	out := data.Clone()

	out.SetAttr("Conventions", "CF-1.7 CMIP-6.2")
	out.SetAttr("mip_era", "CMIP6")
	out.SetAttr("table_id", rule.CmorTable())
	out.SetAttr("variable_id", rule.CmorVariable())
	out.SetAttr("institution_id", rule.AttrString("institution", "AWI"))
	out.SetAttr("source_id", rule.AttrString("source_id", ""))
	out.SetAttr("experiment_id", rule.AttrString("experiment_id", ""))
	out.SetAttr("variant_label", rule.AttrString("variant_label", "r1i1p1f1"))
	out.SetAttr("grid_label", rule.AttrString("grid_label", "gn"))
	if t := rule.DataRequestTable(); t != nil {
		out.SetAttr("realm", t.Realm)
	}
	if v := rule.DataRequestVariable(); v != nil {
		out.SetAttr("frequency", v.Frequency)
	}
	out.SetAttr("creation_date", now().UTC().Format(time.RFC3339))

	for k, v := range call.Kwargs {
		out.SetAttr(k, v)
	}
	return out, nil
}

// SetVariableAttributes copies the data request metadata onto the target
// variable: standard name, long name, cell methods and measures. Kwargs
// override individual attributes.
func SetVariableAttributes(ctx context.Context, data *dataset.Dataset, rule *rules.Rule, call pipeline.StepCall) (*dataset.Dataset, error) {
	out := data.Clone()
	v, err := out.Var(rule.CmorVariable())
	if err != nil {
		return nil, err
	}
	if v.Attrs == nil {
		v.Attrs = make(map[string]interface{})
	}
	if drv := rule.DataRequestVariable(); drv != nil {
		if drv.StandardName != "" {
			v.Attrs["standard_name"] = drv.StandardName
		}
		if drv.LongName != "" {
			v.Attrs["long_name"] = drv.LongName
		}
		if drv.CellMethods != "" {
			v.Attrs["cell_methods"] = drv.CellMethods
		}
		if drv.CellMeasures != "" {
			v.Attrs["cell_measures"] = drv.CellMeasures
		}
	}
	for k, kv := range call.Kwargs {
		v.Attrs[k] = kv
	}
	return out, nil
}
