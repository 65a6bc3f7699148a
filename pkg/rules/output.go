package rules

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/esm-tools/cmorize/pkg/errors"
	"github.com/esm-tools/cmorize/pkg/frequency"
)

var placeholderRe = regexp.MustCompile(`\{([a-z_]+)(?::([^}]+))?\}`)

// RenderOutputPattern fills the rule's output pattern. Recognized
// placeholders are {model_variable}, {cmor_variable}, {cmor_table}, any
// free-form rule attribute, and {date:<layout>} with a Go time layout
// applied to the reference time.
func (r *Rule) RenderOutputPattern(ref time.Time) (string, error) {
	if r.outputPattern == "" {
		return "", errors.Newf(errors.ErrConfigInvalid, "rule %q has no output pattern", r.ID()).
			WithDetail("rule", r.ID())
	}
	var missing []string
	rendered := placeholderRe.ReplaceAllStringFunc(r.outputPattern, func(raw string) string {
		groups := placeholderRe.FindStringSubmatch(raw)
		name, layout := groups[1], groups[2]
		switch name {
		case "model_variable":
			return r.modelVariable
		case "cmor_variable":
			return r.cmorVariable
		case "cmor_table":
			return r.cmorTable
		case "date":
			if layout == "" {
				layout = "20060102"
			}
			return ref.Format(layout)
		}
		if v, ok := r.attrs[name]; ok {
			return fmt.Sprintf("%v", v)
		}
		missing = append(missing, name)
		return raw
	})
	if len(missing) > 0 {
		return "", errors.Newf(errors.ErrConfigInvalid,
			"output pattern of rule %q references unknown attributes: %s",
			r.ID(), strings.Join(missing, ", ")).
			WithDetail("rule", r.ID())
	}
	return rendered, nil
}

// DefaultOutputName builds the archival file name used when a rule declares
// no output pattern: variable, table, institution and source, experiment,
// variant label, grid, and the frequency-appropriate time range.
func (r *Rule) DefaultOutputName(freqName string, start, end time.Time) (string, error) {
	institution := r.AttrString("institution", "AWI")
	source := r.AttrString("source_id", "unknown")
	experiment := r.AttrString("experiment_id", "unknown")
	label := r.AttrString("variant_label", "r1i1p1f1")
	grid := r.AttrString("grid_label", "gn")

	timeRange, err := frequency.TimeRangeLabel(freqName, start, end)
	if err != nil {
		return "", err
	}
	stem := fmt.Sprintf("%s_%s_%s-%s_%s_%s_%s",
		r.cmorVariable, r.cmorTable, institution, source, experiment, label, grid)
	if timeRange == "" {
		return stem + ".nc", nil
	}
	return fmt.Sprintf("%s_%s.nc", stem, timeRange), nil
}
