// Package frequency models CMIP output frequencies: the mapping between
// frequency codes and their approximate interval in days, the time method
// implied by a table name, and the conversion from an approximate interval
// back to a resampling frequency code.
package frequency

import (
	"strings"

	"github.com/esm-tools/cmorize/pkg/errors"
)

// TimeMethod is one of the time sampling methods declared in CMIP
type TimeMethod string

const (
	MethodMean          TimeMethod = "MEAN"
	MethodInstantaneous TimeMethod = "INSTANTANEOUS"
	MethodClimatology   TimeMethod = "CLIMATOLOGY"
	MethodNone          TimeMethod = "NONE"
)

// MethodForTable derives the time method from a table identifier suffix
func MethodForTable(tableID string) TimeMethod {
	if strings.HasSuffix(tableID, "Pt") {
		return MethodInstantaneous
	}
	if strings.HasSuffix(tableID, "C") || strings.HasSuffix(tableID, "CM") {
		return MethodClimatology
	}
	return MethodMean
}

// TableIntervals maps CMIP6 table names to the number of days in their
// output frequency.
var TableIntervals = map[string]float64{
	"3hr":       3.0 / 24,
	"6hrLev":    6.0 / 24,
	"6hrPlev":   6.0 / 24,
	"6hrPlevPt": 6.0 / 24,
	"AERday":    1.0,
	// Data request 01.00.27 says 1.0 for AERhr, which appears to be wrong.
	"AERhr":     1.0 / 24,
	"AERmon":    30.0,
	"AERmonZ":   30.0,
	"Amon":      30.0,
	"CF3hr":     3.0 / 24,
	"CFday":     1.0,
	"CFmon":     30.0,
	"day":       1.0,
	"E3hr":      3.0 / 24,
	"E3hrPt":    3.0 / 24,
	"E6hrZ":     6.0 / 24,
	"Eday":      1.0,
	"EdayZ":     1.0,
	"Emon":      30.0,
	"EmonZ":     30.0,
	"Eyr":       365.0,
	"ImonAnt":   30.0,
	"ImonGre":   30.0,
	"IyrAnt":    365.0,
	"IyrGre":    365.0,
	"LImon":     30.0,
	"Lmon":      30.0,
	"Oclim":     30.0,
	"Oday":      1.0,
	"Odec":      3650.0,
	"Omon":      30.0,
	"Oyr":       365.0,
	"SIday":     1.0,
	"SImon":     30.0,
}

// Frequency is a named CMIP frequency with its approximate interval in days
type Frequency struct {
	Name           string
	ApproxInterval float64
	TimeMethod     TimeMethod
}

// All lists the CMIP frequencies in increasing interval order per method
var All = []Frequency{
	{"1hr", 1.0 / 24, MethodMean},
	{"3hr", 3.0 / 24, MethodMean},
	{"6hr", 6.0 / 24, MethodMean},
	{"day", 1.0, MethodMean}, // there is no dayPt frequency
	{"mon", 30.0, MethodMean},
	{"yr", 365.0, MethodMean},
	{"dec", 3650.0, MethodMean},
	{"1hrPt", 1.0 / 24, MethodInstantaneous},
	{"3hrPt", 3.0 / 24, MethodInstantaneous},
	{"6hrPt", 6.0 / 24, MethodInstantaneous},
	{"monPt", 30.0, MethodInstantaneous},
	{"yrPt", 365.0, MethodInstantaneous},
	{"1hrCM", 1.0 / 24, MethodClimatology},
	{"fx", 0, MethodNone},
	{"monC", 30.0, MethodClimatology},
	{"subhrPt", 0.017361, MethodInstantaneous}, // there is no subhr time:mean
}

// ForName returns the Frequency with the given name
func ForName(name string) (Frequency, error) {
	for _, f := range All {
		if f.Name == name {
			return f, nil
		}
	}
	return Frequency{}, errors.Newf(errors.ErrNotFound, "cannot determine frequency for %q", name)
}
