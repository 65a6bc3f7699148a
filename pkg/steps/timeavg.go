package steps

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/esm-tools/cmorize/pkg/dataset"
	"github.com/esm-tools/cmorize/pkg/errors"
	"github.com/esm-tools/cmorize/pkg/frequency"
	"github.com/esm-tools/cmorize/pkg/logging"
	"github.com/esm-tools/cmorize/pkg/pipeline"
	"github.com/esm-tools/cmorize/pkg/rules"
)

// TimeAverage resamples the dataset to the output frequency of the rule's
// table. The approximate interval of the table decides the bucket size, and
// the time method decides what happens inside a bucket: mean frequencies
// average, instantaneous frequencies keep the first sample, climatologies
// average by month of year. Tables without a time axis pass through.
func TimeAverage(ctx context.Context, data *dataset.Dataset, rule *rules.Rule, call pipeline.StepCall) (*dataset.Dataset, error) {
	logger := logging.GetLogger("steps.timeavg")

	if !data.HasTimeAxis() {
		return data, nil
	}

	interval, err := approxInterval(rule, call)
	if err != nil {
		return nil, err
	}
	if interval == 0 {
		// fixed fields have no meaningful resampling
		return data, nil
	}

	code, err := frequency.FromApproxInterval(interval)
	if err != nil {
		return nil, err
	}
	method := timeMethod(rule)

	logger.Debug().
		Str("rule", rule.ID()).
		Str("code", code).
		Str("method", string(method)).
		Msg("Resampling time axis")

	switch method {
	case frequency.MethodNone:
		return data, nil
	case frequency.MethodClimatology:
		return climatology(data), nil
	case frequency.MethodInstantaneous:
		return resample(data, code, false)
	default:
		return resample(data, code, true)
	}
}

// approxInterval picks the table interval in days: an explicit "interval"
// kwarg wins, then the bound data request table, then the builtin table map.
func approxInterval(rule *rules.Rule, call pipeline.StepCall) (float64, error) {
	if v := call.Float("interval", 0); v > 0 {
		return v, nil
	}
	if t := rule.DataRequestTable(); t != nil && t.ApproxInterval > 0 {
		return t.ApproxInterval, nil
	}
	if v, ok := frequency.TableIntervals[rule.CmorTable()]; ok {
		return v, nil
	}
	return 0, errors.Newf(errors.ErrInvalidInput,
		"no approximate interval known for table %q", rule.CmorTable()).
		WithDetail("rule", rule.ID())
}

func timeMethod(rule *rules.Rule) frequency.TimeMethod {
	if v := rule.DataRequestVariable(); v != nil && v.Frequency != "" {
		return frequency.MethodForTable(v.Frequency)
	}
	return frequency.MethodForTable(rule.CmorTable())
}

var codeComponentRe = regexp.MustCompile(`(\d+)(YS|MS|D|h|m|s)`)

// resample groups the time axis into buckets of the given frequency code
// and reduces each bucket. Only components of the leading unit matter for
// bucketing; a code like "3MS1D" buckets by three months.
func resample(data *dataset.Dataset, code string, mean bool) (*dataset.Dataset, error) {
	parts := codeComponentRe.FindStringSubmatch(code)
	if parts == nil {
		return nil, errors.Newf(errors.ErrInternal, "unparseable frequency code %q", code)
	}
	count, _ := strconv.Atoi(parts[1])
	unit := parts[2]

	// stable bucket keys in first-seen order of the sorted axis
	buckets := make(map[time.Time][]int)
	var order []time.Time
	for i, t := range data.Time {
		key := bucketStart(t, count, unit)
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], i)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	out := data.Clone()
	out.Time = make([]time.Time, len(order))
	for i, key := range order {
		if mean {
			out.Time[i] = key
		} else {
			out.Time[i] = data.Time[buckets[key][0]]
		}
	}
	for _, v := range out.Vars {
		src := data.Vars[v.Name]
		if len(src.Values) != len(data.Time) {
			continue
		}
		v.Values = make([]float64, len(order))
		for i, key := range order {
			idx := buckets[key]
			if mean {
				var sum float64
				for _, j := range idx {
					sum += src.Values[j]
				}
				v.Values[i] = sum / float64(len(idx))
			} else {
				v.Values[i] = src.Values[idx[0]]
			}
		}
	}
	return out, nil
}

// climatology averages by month of year. The resulting axis carries the
// twelve month starts of the first year present, in calendar order.
func climatology(data *dataset.Dataset) *dataset.Dataset {
	buckets := make(map[time.Month][]int)
	firstYear := data.Time[0].Year()
	for i, t := range data.Time {
		buckets[t.Month()] = append(buckets[t.Month()], i)
		if t.Year() < firstYear {
			firstYear = t.Year()
		}
	}

	var months []time.Month
	for m := time.January; m <= time.December; m++ {
		if _, ok := buckets[m]; ok {
			months = append(months, m)
		}
	}

	out := data.Clone()
	out.Time = make([]time.Time, len(months))
	for i, m := range months {
		out.Time[i] = time.Date(firstYear, m, 1, 0, 0, 0, 0, time.UTC)
	}
	for _, v := range out.Vars {
		src := data.Vars[v.Name]
		if len(src.Values) != len(data.Time) {
			continue
		}
		v.Values = make([]float64, len(months))
		for i, m := range months {
			var sum float64
			for _, j := range buckets[m] {
				sum += src.Values[j]
			}
			v.Values[i] = sum / float64(len(buckets[m]))
		}
	}
	return out
}

// bucketStart truncates a timestamp to the start of its bucket
func bucketStart(t time.Time, count int, unit string) time.Time {
	t = t.UTC()
	switch unit {
	case "YS":
		year := t.Year() - t.Year()%count
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	case "MS":
		months := t.Year()*12 + int(t.Month()) - 1
		months -= months % count
		return time.Date(months/12, time.Month(months%12+1), 1, 0, 0, 0, 0, time.UTC)
	case "D":
		days := t.Unix() / 86400
		days -= days % int64(count)
		return time.Unix(days*86400, 0).UTC()
	case "h":
		return t.Truncate(time.Duration(count) * time.Hour)
	case "m":
		return t.Truncate(time.Duration(count) * time.Minute)
	default:
		return t.Truncate(time.Duration(count) * time.Second)
	}
}
