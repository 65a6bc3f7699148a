package frequency

import (
	"fmt"
	"time"

	"github.com/esm-tools/cmorize/pkg/errors"
)

// TimeRangeLabel formats the time range used in output file names for the
// given frequency code. The precision follows the CMIP file naming table:
// yearly data is labelled yyyy, monthly yyyyMM, daily yyyyMMdd, sub-daily
// down to the minute or second, and fx data carries no label at all.
func TimeRangeLabel(freqName string, start, end time.Time) (string, error) {
	switch freqName {
	case "yr", "yrPt", "dec":
		return fmt.Sprintf("%s-%s", start.Format("2006"), end.Format("2006")), nil
	case "mon", "monC", "monPt":
		return fmt.Sprintf("%s-%s", start.Format("200601"), end.Format("200601")), nil
	case "day":
		return fmt.Sprintf("%s-%s", start.Format("20060102"), end.Format("20060102")), nil
	case "6hr", "3hr", "1hr", "6hrPt", "3hrPt", "1hrPt", "1hrCM":
		s := start.Round(time.Minute)
		e := end.Round(time.Minute)
		return fmt.Sprintf("%s-%s", s.Format("200601021504"), e.Format("200601021504")), nil
	case "subhrPt":
		s := start.Round(time.Second)
		e := end.Round(time.Second)
		return fmt.Sprintf("%s-%s", s.Format("20060102150405"), e.Format("20060102150405")), nil
	case "fx":
		return "", nil
	default:
		return "", errors.Newf(errors.ErrInvalidInput, "no time range precision for frequency %q", freqName)
	}
}
