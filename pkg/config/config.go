// Package config loads the cmorization configuration document. Layers are
// merged in priority order: built-in defaults, then the config file, then
// CMORIZE_* environment variables. YAML is the primary format, TOML is
// accepted by extension.
package config

import (
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/esm-tools/cmorize/pkg/errors"
	"github.com/esm-tools/cmorize/pkg/rules"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// CMORIZE_ENGINE_WORKERS=8 sets engine.workers.
const EnvPrefix = "CMORIZE_"

// EngineOptions control scheduling and strictness
type EngineOptions struct {
	Parallel         bool `koanf:"parallel" yaml:"parallel"`
	Workers          int  `koanf:"workers" yaml:"workers"`
	RaiseOnNoMatches bool `koanf:"raise_on_no_matches" yaml:"raise_on_no_matches"`
}

// PipelineSpec is a named pipeline definition from the config document
type PipelineSpec struct {
	Name  string           `koanf:"name" yaml:"name"`
	Steps []rules.StepSpec `koanf:"steps" yaml:"steps"`
}

// Document is the fully merged configuration
type Document struct {
	General   map[string]interface{} `koanf:"general" yaml:"general"`
	Inherit   map[string]interface{} `koanf:"inherit" yaml:"inherit"`
	Engine    EngineOptions          `koanf:"engine" yaml:"engine"`
	Pipelines []PipelineSpec         `koanf:"pipelines" yaml:"pipelines"`
	Rules     []rules.RuleSpec       `koanf:"rules" yaml:"rules"`

	// TablesDir points at a directory of data request table files; empty
	// disables data request binding
	TablesDir string `koanf:"tables_dir" yaml:"tables_dir"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"engine.parallel":            true,
		"engine.workers":             4,
		"engine.raise_on_no_matches": false,
	}
}

func parserFor(path string) koanf.Parser {
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".toml" {
		return toml.Parser()
	}
	return yaml.Parser()
}

// stringShorthandHook lets a bare string stand in for a step binding
// (`steps: [load_dataset]` means `{uses: load_dataset}`) and for a
// pipeline reference by name (`pipelines: [surface]`).
func stringShorthandHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String {
			return data, nil
		}
		name, _ := data.(string)
		switch to {
		case reflect.TypeOf(rules.StepSpec{}):
			return rules.StepSpec{Uses: name}, nil
		case reflect.TypeOf(rules.PipelineRef{}):
			return rules.PipelineRef{Name: name}, nil
		}
		return data, nil
	}
}

// Load reads and merges the configuration document at path
func Load(path string) (*Document, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load defaults")
	}

	if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "failed to load config from %s", path).
			WithDetail("path", path)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load environment overrides")
	}

	var doc Document
	if err := k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       stringShorthandHook(),
			Result:           &doc,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to parse config from %s", path).
			WithDetail("path", path)
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the document for structural problems that resolution
// would otherwise surface late
func (d *Document) Validate() error {
	if d.Engine.Workers < 1 {
		return errors.Newf(errors.ErrConfigInvalid, "engine.workers must be at least 1, got %d", d.Engine.Workers)
	}
	seen := make(map[string]bool, len(d.Pipelines))
	for _, p := range d.Pipelines {
		if p.Name == "" {
			return errors.New(errors.ErrConfigInvalid, "pipeline definition without a name")
		}
		if seen[p.Name] {
			return errors.Newf(errors.ErrConfigInvalid, "duplicate pipeline name %q", p.Name).
				WithDetail("pipeline", p.Name)
		}
		seen[p.Name] = true
	}
	if len(d.Rules) == 0 {
		return errors.New(errors.ErrConfigInvalid, "config defines no rules")
	}
	return nil
}
