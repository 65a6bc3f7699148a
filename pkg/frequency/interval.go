package frequency

import (
	"fmt"
	"strings"
	"time"

	"github.com/esm-tools/cmorize/pkg/errors"
)

// epoch is an arbitrary reference stamp for calendar diffs. The mapping is
// deliberately not leap-year aware: the table intervals it consumes are
// idealized (30-day months, 365-day years).
var epoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// FromApproxInterval converts an interval expressed in days to a resampling
// frequency code in a suitable time unit (year, month, day, hour, minute,
// second). Intervals of 28 to 31 days collapse to one month, 59 to 60 days
// to two months; 91 days yields three months plus one day.
func FromApproxInterval(interval float64) (string, error) {
	if interval < 0 {
		return "", errors.Newf(errors.ErrInvalidInput, "invalid interval: %v", interval)
	}

	dt := time.Duration(interval * float64(24*time.Hour)).Round(time.Second)
	// Two idealized 30-day months, not one month and change
	if int(dt/(24*time.Hour)) == 60 {
		dt = 59 * 24 * time.Hour
	}

	ts := epoch.Add(dt)
	year := ts.Year() - epoch.Year()
	// Deficit days from leap years between the reference and the stamp
	if extra, rem := year/4, year%4; extra != 0 || rem != 0 {
		extra += rem / 2
		ts = ts.AddDate(0, 0, extra)
		year = ts.Year() - epoch.Year()
	}

	month := int(ts.Month() - epoch.Month())
	day := ts.Day() - epoch.Day()
	hour := ts.Hour()
	minute := ts.Minute()
	second := ts.Second()

	var result []string
	if year > 0 {
		result = append(result, fmt.Sprintf("%dYS", year))
	}
	if month > 0 {
		result = append(result, fmt.Sprintf("%dMS", month))
	}
	if day > 0 {
		if day >= 28 && month == 0 {
			result = append(result, "1MS")
		} else {
			result = append(result, fmt.Sprintf("%dD", day))
		}
	}
	if hour > 0 {
		result = append(result, fmt.Sprintf("%dh", hour))
	}
	if minute > 0 {
		result = append(result, fmt.Sprintf("%dm", minute))
	}
	if second > 0 {
		result = append(result, fmt.Sprintf("%ds", second))
	}
	return strings.Join(result, ""), nil
}
