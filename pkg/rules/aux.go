package rules

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/esm-tools/cmorize/pkg/errors"
)

// auxLoader parses the raw bytes of an auxiliary file
type auxLoader func(raw []byte) (interface{}, error)

var auxLoaders = map[string]auxLoader{
	"text": func(raw []byte) (interface{}, error) {
		return string(raw), nil
	},
	"yaml": func(raw []byte) (interface{}, error) {
		var v interface{}
		if err := yaml.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	},
	"toml": func(raw []byte) (interface{}, error) {
		var v map[string]interface{}
		if err := toml.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	},
}

func init() {
	// yaml is a superset of json, one parser covers both names
	auxLoaders["json"] = auxLoaders["yaml"]
}

// loaderForSpec picks the loader: explicit name first, then file extension,
// then plain text
func loaderForSpec(spec AuxSpec) (auxLoader, error) {
	name := spec.Loader
	if name == "" {
		switch strings.ToLower(filepath.Ext(spec.Path)) {
		case ".yaml", ".yml":
			name = "yaml"
		case ".json":
			name = "json"
		case ".toml":
			name = "toml"
		default:
			name = "text"
		}
	}
	loader, ok := auxLoaders[name]
	if !ok {
		return nil, errors.Newf(errors.ErrConfigInvalid, "unknown aux loader %q", name).
			WithDetail("loader", name).
			WithDetail("aux", spec.Name)
	}
	return loader, nil
}

// auxResource is a lazily-loaded auxiliary file. The sync.Once keeps the
// Rule safe for concurrent readers while still loading at most once.
type auxResource struct {
	spec   AuxSpec
	loader auxLoader

	once  sync.Once
	value interface{}
	err   error
}

func (a *auxResource) load() (interface{}, error) {
	a.once.Do(func() {
		raw, err := os.ReadFile(a.spec.Path)
		if err != nil {
			a.err = errors.Wrapf(err, errors.ErrAuxLoad, "cannot read aux resource %q", a.spec.Name).
				WithDetail("aux", a.spec.Name).
				WithDetail("path", a.spec.Path)
			return
		}
		value, err := a.loader(raw)
		if err != nil {
			a.err = errors.Wrapf(err, errors.ErrAuxLoad, "cannot parse aux resource %q", a.spec.Name).
				WithDetail("aux", a.spec.Name).
				WithDetail("path", a.spec.Path)
			return
		}
		a.value = value
	})
	return a.value, a.err
}

// Aux returns the named auxiliary resource, loading it on first use
func (r *Rule) Aux(name string) (interface{}, error) {
	res, ok := r.aux[name]
	if !ok {
		return nil, errors.Newf(errors.ErrNotFound, "rule %q has no aux resource %q", r.ID(), name).
			WithDetail("rule", r.ID()).
			WithDetail("aux", name)
	}
	return res.load()
}

// AuxNames lists the declared auxiliary resource names
func (r *Rule) AuxNames() []string {
	names := make([]string, 0, len(r.aux))
	for name := range r.aux {
		names = append(names, name)
	}
	return names
}
