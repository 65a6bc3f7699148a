// Package dataset provides the opaque dataset value threaded through
// pipeline steps. It models just enough of an array store for the engine:
// named variables with attributes, a shared time axis, scalar arithmetic,
// time slicing, and disk round-tripping. The on-disk form is an engine
// detail, not an archival format.
package dataset

import (
	"sort"
	"time"

	"github.com/esm-tools/cmorize/pkg/errors"
)

// Variable is a single named array with its attributes
type Variable struct {
	Name   string                 `json:"name"`
	Dims   []string               `json:"dims,omitempty"`
	Attrs  map[string]interface{} `json:"attrs,omitempty"`
	Values []float64              `json:"values"`
}

// Unit returns the units attribute, or "" when absent
func (v *Variable) Unit() string {
	if u, ok := v.Attrs["units"].(string); ok {
		return u
	}
	return ""
}

// SetUnit sets the units attribute
func (v *Variable) SetUnit(unit string) {
	if v.Attrs == nil {
		v.Attrs = make(map[string]interface{})
	}
	v.Attrs["units"] = unit
}

// Scale multiplies every value in place
func (v *Variable) Scale(factor float64) {
	for i := range v.Values {
		v.Values[i] *= factor
	}
}

// Shift adds an offset to every value in place
func (v *Variable) Shift(offset float64) {
	for i := range v.Values {
		v.Values[i] += offset
	}
}

// Dataset is a collection of variables over a shared time axis
type Dataset struct {
	Attrs       map[string]interface{} `json:"attrs,omitempty"`
	Vars        map[string]*Variable   `json:"vars"`
	Time        []time.Time            `json:"time,omitempty"`
	SourceFiles []string               `json:"source_files,omitempty"`

	// SavedTo records where the dataset has been written during this
	// process; it is not part of the on-disk form
	SavedTo []string `json:"-"`
}

// New creates an empty dataset
func New() *Dataset {
	return &Dataset{
		Attrs: make(map[string]interface{}),
		Vars:  make(map[string]*Variable),
	}
}

// AddVariable attaches a variable, replacing any previous one of that name
func (ds *Dataset) AddVariable(v *Variable) {
	if ds.Vars == nil {
		ds.Vars = make(map[string]*Variable)
	}
	ds.Vars[v.Name] = v
}

// Var returns the named variable
func (ds *Dataset) Var(name string) (*Variable, error) {
	v, ok := ds.Vars[name]
	if !ok {
		return nil, errors.Newf(errors.ErrVariableNotFound, "variable %q not in dataset", name).
			WithDetail("variable", name)
	}
	return v, nil
}

// VarNames returns the variable names in sorted order
func (ds *Dataset) VarNames() []string {
	names := make([]string, 0, len(ds.Vars))
	for name := range ds.Vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rename renames a variable in place
func (ds *Dataset) Rename(oldName, newName string) error {
	if oldName == newName {
		return nil
	}
	v, err := ds.Var(oldName)
	if err != nil {
		return err
	}
	v.Name = newName
	delete(ds.Vars, oldName)
	ds.Vars[newName] = v
	return nil
}

// SetAttr sets a global attribute
func (ds *Dataset) SetAttr(key string, value interface{}) {
	if ds.Attrs == nil {
		ds.Attrs = make(map[string]interface{})
	}
	ds.Attrs[key] = value
}

// HasTimeAxis reports whether the dataset carries a time axis
func (ds *Dataset) HasTimeAxis() bool {
	return len(ds.Time) > 0
}

// TimeRange returns the first and last time stamps
func (ds *Dataset) TimeRange() (start, end time.Time, ok bool) {
	if !ds.HasTimeAxis() {
		return time.Time{}, time.Time{}, false
	}
	return ds.Time[0], ds.Time[len(ds.Time)-1], true
}

// Select returns a dataset reduced to a single variable, keeping the global
// attributes and time axis
func (ds *Dataset) Select(name string) (*Dataset, error) {
	v, err := ds.Var(name)
	if err != nil {
		return nil, err
	}
	out := New()
	for k, val := range ds.Attrs {
		out.Attrs[k] = val
	}
	out.Time = append([]time.Time(nil), ds.Time...)
	out.SourceFiles = append([]string(nil), ds.SourceFiles...)
	out.AddVariable(v.clone())
	return out, nil
}

// SliceTime returns a dataset restricted to [start, end] on the time axis.
// Variables shorter than the time axis are copied whole.
func (ds *Dataset) SliceTime(start, end time.Time) *Dataset {
	out := New()
	for k, v := range ds.Attrs {
		out.Attrs[k] = v
	}
	out.SourceFiles = append([]string(nil), ds.SourceFiles...)

	var keep []int
	for i, t := range ds.Time {
		if !t.Before(start) && !t.After(end) {
			keep = append(keep, i)
			out.Time = append(out.Time, t)
		}
	}
	for _, v := range ds.Vars {
		nv := v.clone()
		if len(v.Values) == len(ds.Time) {
			nv.Values = make([]float64, 0, len(keep))
			for _, i := range keep {
				nv.Values = append(nv.Values, v.Values[i])
			}
		}
		out.AddVariable(nv)
	}
	return out
}

// Clone returns a deep copy
func (ds *Dataset) Clone() *Dataset {
	out := New()
	for k, v := range ds.Attrs {
		out.Attrs[k] = v
	}
	out.Time = append([]time.Time(nil), ds.Time...)
	out.SourceFiles = append([]string(nil), ds.SourceFiles...)
	for _, v := range ds.Vars {
		out.AddVariable(v.clone())
	}
	return out
}

func (v *Variable) clone() *Variable {
	nv := &Variable{
		Name:   v.Name,
		Dims:   append([]string(nil), v.Dims...),
		Values: append([]float64(nil), v.Values...),
	}
	if v.Attrs != nil {
		nv.Attrs = make(map[string]interface{}, len(v.Attrs))
		for k, val := range v.Attrs {
			nv.Attrs[k] = val
		}
	}
	return nv
}
