// Package units performs unit-aware value conversion between model output
// units and the units requested by the CMOR tables. It understands a useful
// subset of UDUNITS/CF unit strings: SI prefixes, exponents, and products
// such as "kg m-2 s-1". Conversion to or from a dimensionless quantity is
// ambiguous and handled by per-variable mappings at the rule level, not here.
package units

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/esm-tools/cmorize/pkg/errors"
)

// dim is the exponent vector over the base dimensions
// (mass, length, time, temperature, amount).
type dim [5]int

func (d dim) add(o dim, exp int) dim {
	for i := range d {
		d[i] += o[i] * exp
	}
	return d
}

type baseUnit struct {
	factor float64 // scale relative to the SI coherent unit
	offset float64 // additive offset, only meaningful for bare units
	dims   dim
}

var baseUnits = map[string]baseUnit{
	"g":       {factor: 1e-3, dims: dim{1, 0, 0, 0, 0}},
	"m":       {factor: 1, dims: dim{0, 1, 0, 0, 0}},
	"s":       {factor: 1, dims: dim{0, 0, 1, 0, 0}},
	"min":     {factor: 60, dims: dim{0, 0, 1, 0, 0}},
	"hr":      {factor: 3600, dims: dim{0, 0, 1, 0, 0}},
	"h":       {factor: 3600, dims: dim{0, 0, 1, 0, 0}},
	"day":     {factor: 86400, dims: dim{0, 0, 1, 0, 0}},
	"K":       {factor: 1, dims: dim{0, 0, 0, 1, 0}},
	"degC":    {factor: 1, offset: 273.15, dims: dim{0, 0, 0, 1, 0}},
	"mol":     {factor: 1, dims: dim{0, 0, 0, 0, 1}},
	"N":       {factor: 1, dims: dim{1, 1, -2, 0, 0}},
	"Pa":      {factor: 1, dims: dim{1, -1, -2, 0, 0}},
	"J":       {factor: 1, dims: dim{1, 2, -2, 0, 0}},
	"W":       {factor: 1, dims: dim{1, 2, -3, 0, 0}},
	"1":       {factor: 1},
	"%":       {factor: 0.01},
	"percent": {factor: 0.01},
	"psu":     {factor: 1e-3},
	"kg":      {factor: 1, dims: dim{1, 0, 0, 0, 0}},
}

var prefixes = map[string]float64{
	"Y":  1e24,
	"Z":  1e21,
	"E":  1e18,
	"P":  1e15,
	"T":  1e12,
	"G":  1e9,
	"M":  1e6,
	"k":  1e3,
	"h":  1e2,
	"da": 1e1,
	"d":  1e-1,
	"c":  1e-2,
	"m":  1e-3,
	"u":  1e-6,
	"n":  1e-9,
	"p":  1e-12,
	"f":  1e-15,
}

var tokenRe = regexp.MustCompile(`^([A-Za-z%1]+)(-?\d+)?$`)

// quantity is a parsed unit string: an overall scale, an offset (zero for
// anything but a bare affine unit such as degC) and a dimension vector.
type quantity struct {
	factor float64
	offset float64
	dims   dim
}

func resolveSymbol(sym string) (baseUnit, bool) {
	if u, ok := baseUnits[sym]; ok {
		return u, true
	}
	// Longest prefix first so "da" beats "d"
	for _, plen := range []int{2, 1} {
		if len(sym) <= plen {
			continue
		}
		scale, ok := prefixes[sym[:plen]]
		if !ok {
			continue
		}
		u, ok := baseUnits[sym[plen:]]
		if !ok || u.offset != 0 {
			continue
		}
		u.factor *= scale
		return u, true
	}
	return baseUnit{}, false
}

func parse(unit string) (quantity, error) {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return quantity{factor: 1}, nil
	}
	q := quantity{factor: 1}
	fields := strings.Fields(strings.ReplaceAll(unit, "**", ""))
	for _, f := range fields {
		m := tokenRe.FindStringSubmatch(f)
		if m == nil {
			return quantity{}, errors.Newf(errors.ErrUnitInvalid, "cannot parse unit %q", unit).
				WithDetail("token", f)
		}
		exp := 1
		if m[2] != "" {
			var err error
			exp, err = strconv.Atoi(m[2])
			if err != nil {
				return quantity{}, errors.Newf(errors.ErrUnitInvalid, "cannot parse exponent in %q", f)
			}
		}
		u, ok := resolveSymbol(m[1])
		if !ok {
			return quantity{}, errors.Newf(errors.ErrUnitInvalid, "unknown unit symbol %q in %q", m[1], unit)
		}
		for i := 0; i < abs(exp); i++ {
			if exp > 0 {
				q.factor *= u.factor
			} else {
				q.factor /= u.factor
			}
		}
		q.dims = q.dims.add(u.dims, exp)
		if len(fields) == 1 && exp == 1 {
			q.offset = u.offset
		}
	}
	return q, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Compatible reports whether two unit strings describe the same dimension
func Compatible(from, to string) bool {
	qf, err := parse(from)
	if err != nil {
		return false
	}
	qt, err := parse(to)
	if err != nil {
		return false
	}
	return qf.dims == qt.dims
}

// Convert converts a value between two unit strings. Affine units (degC)
// convert through their offset; everything else is a pure scale.
func Convert(value float64, from, to string) (float64, error) {
	qf, err := parse(from)
	if err != nil {
		return 0, err
	}
	qt, err := parse(to)
	if err != nil {
		return 0, err
	}
	if qf.dims != qt.dims {
		return 0, errors.Newf(errors.ErrUnitIncompatible, "cannot convert %q to %q", from, to).
			WithDetail("from", from).
			WithDetail("to", to)
	}
	si := value*qf.factor + qf.offset
	return (si - qt.offset) / qt.factor, nil
}

// Factor returns the multiplicative factor converting from one unit string
// to another. It fails for affine units, where a factor alone is not enough.
func Factor(from, to string) (float64, error) {
	qf, err := parse(from)
	if err != nil {
		return 0, err
	}
	qt, err := parse(to)
	if err != nil {
		return 0, err
	}
	if qf.dims != qt.dims {
		return 0, errors.Newf(errors.ErrUnitIncompatible, "cannot convert %q to %q", from, to)
	}
	if qf.offset != 0 || qt.offset != 0 {
		return 0, errors.Newf(errors.ErrUnitInvalid, "affine units have no pure conversion factor")
	}
	return qf.factor / qt.factor, nil
}
