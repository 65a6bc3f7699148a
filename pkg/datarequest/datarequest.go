// Package datarequest reads CMOR data request tables and serves them as a
// read-only metadata provider keyed by variable and table name. Table files
// are the standard CMIP6 JSON documents (CMIP6_<Table>.json), with the
// controlled-vocabulary and coordinate files skipped.
package datarequest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/esm-tools/cmorize/pkg/errors"
	"github.com/esm-tools/cmorize/pkg/logging"
)

// ignoredTableFiles are table-directory files that carry no variables
var ignoredTableFiles = map[string]bool{
	"CMIP6_CV_test.json":       true,
	"CMIP6_coordinate.json":    true,
	"CMIP6_CV.json":            true,
	"CMIP6_formula_terms.json": true,
	"CMIP6_grids.json":         true,
	"CMIP6_input_example.json": true,
}

// Variable is one variable entry of a data request table
type Variable struct {
	VariableID   string `json:"-"`
	Units        string `json:"units"`
	CellMethods  string `json:"cell_methods"`
	CellMeasures string `json:"cell_measures"`
	Dimensions   string `json:"dimensions"`
	Frequency    string `json:"frequency"`
	StandardName string `json:"standard_name"`
	LongName     string `json:"long_name"`
	Realm        string `json:"modeling_realm"`
}

// Table is a data request table: a header plus its variable entries
type Table struct {
	TableID        string
	Realm          string
	ApproxInterval float64
	variables      map[string]Variable
}

// VariableIDs lists the variable identifiers defined by the table
func (t *Table) VariableIDs() []string {
	ids := make([]string, 0, len(t.variables))
	for id := range t.variables {
		ids = append(ids, id)
	}
	return ids
}

// HasVariable reports whether the table defines the variable
func (t *Table) HasVariable(variableID string) bool {
	_, ok := t.variables[variableID]
	return ok
}

// Variable returns the table's entry for the variable
func (t *Table) Variable(variableID string) (Variable, error) {
	v, ok := t.variables[variableID]
	if !ok {
		return Variable{}, errors.Newf(errors.ErrVariableNotFound,
			"variable %q not in table %q", variableID, t.TableID).
			WithDetail("variable", variableID).
			WithDetail("table", t.TableID)
	}
	return v, nil
}

// rawTable mirrors the CMIP6 JSON table layout
type rawTable struct {
	Header struct {
		TableID        string `json:"table_id"`
		Realm          string `json:"realm"`
		ApproxInterval string `json:"approx_interval"`
	} `json:"Header"`
	VariableEntry map[string]Variable `json:"variable_entry"`
}

// LoadTable reads a single CMIP6 table file
func LoadTable(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrTableNotFound, "cannot read table %s", path)
	}
	var rt rawTable
	if err := json.Unmarshal(raw, &rt); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "cannot parse table %s", path)
	}

	// Headers carry "Table Omon"; only the short id matters
	tableID := strings.TrimPrefix(rt.Header.TableID, "Table ")
	var interval float64
	if rt.Header.ApproxInterval != "" {
		interval, err = strconv.ParseFloat(rt.Header.ApproxInterval, 64)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigParse,
				"bad approx_interval in table %s", path)
		}
	}

	t := &Table{
		TableID:        tableID,
		Realm:          rt.Header.Realm,
		ApproxInterval: interval,
		variables:      make(map[string]Variable, len(rt.VariableEntry)),
	}
	for id, v := range rt.VariableEntry {
		v.VariableID = id
		t.variables[id] = v
	}
	return t, nil
}

// Collection is a read-only set of tables keyed by short table name
type Collection struct {
	tables map[string]*Table
}

// LoadDir reads every CMIP6_<Table>.json below dir into a Collection
func LoadDir(dir string) (*Collection, error) {
	logger := logging.GetLogger("datarequest")

	matches, err := filepath.Glob(filepath.Join(dir, "CMIP6_*.json"))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrTableNotFound, "cannot list tables in %s", dir)
	}
	if len(matches) == 0 {
		return nil, errors.Newf(errors.ErrTableNotFound, "no table files found in %s", dir)
	}

	c := &Collection{tables: make(map[string]*Table)}
	for _, path := range matches {
		if ignoredTableFiles[filepath.Base(path)] {
			continue
		}
		name := strings.TrimPrefix(strings.TrimSuffix(filepath.Base(path), ".json"), "CMIP6_")
		tbl, err := LoadTable(path)
		if err != nil {
			return nil, err
		}
		logger.Debug().Str("table", name).Str("path", path).Msg("Loaded table")
		c.tables[name] = tbl
	}
	logger.Info().Int("tables", len(c.tables)).Str("dir", dir).Msg("Loaded data request tables")
	return c, nil
}

// Table returns a table by its short name
func (c *Collection) Table(name string) (*Table, error) {
	t, ok := c.tables[name]
	if !ok {
		return nil, errors.Newf(errors.ErrTableNotFound, "table %q not loaded", name).
			WithDetail("table", name)
	}
	return t, nil
}

// TableNames lists the loaded table names
func (c *Collection) TableNames() []string {
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	return names
}

// TablesFor returns every loaded table that defines the variable
func (c *Collection) TablesFor(variableID string) []*Table {
	var out []*Table
	for _, t := range c.tables {
		if t.HasVariable(variableID) {
			out = append(out, t)
		}
	}
	return out
}

// Lookup resolves a variable entry by variable and table name
func (c *Collection) Lookup(variableID, tableName string) (Variable, *Table, error) {
	t, err := c.Table(tableName)
	if err != nil {
		return Variable{}, nil, err
	}
	v, err := t.Variable(variableID)
	if err != nil {
		return Variable{}, nil, err
	}
	return v, t, nil
}
