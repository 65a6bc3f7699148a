package dataset

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/esm-tools/cmorize/pkg/errors"
)

// Open reads a dataset from disk
func Open(path string) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrDataLoad, "cannot open dataset %s", path).
			WithDetail("path", path)
	}
	ds := New()
	if err := json.Unmarshal(raw, ds); err != nil {
		return nil, errors.Wrapf(err, errors.ErrDataLoad, "cannot decode dataset %s", path).
			WithDetail("path", path)
	}
	if len(ds.SourceFiles) == 0 {
		ds.SourceFiles = []string{path}
	}
	return ds, nil
}

// OpenMulti reads several dataset files and concatenates them along the time
// axis in the given order. Attributes merge with later files winning, the
// way multi-file opens behave in array stores. The context is checked
// between files so a cancelled task stops without reading further.
func OpenMulti(ctx context.Context, paths []string) (*Dataset, error) {
	if len(paths) == 0 {
		return nil, errors.New(errors.ErrDataLoad, "no input files to open")
	}
	out := New()
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCancelled, "dataset open cancelled")
		}
		ds, err := Open(path)
		if err != nil {
			return nil, err
		}
		out.concat(ds)
		out.SourceFiles = append(out.SourceFiles, path)
	}
	return out, nil
}

// concat appends another dataset along the time axis
func (ds *Dataset) concat(other *Dataset) {
	for k, v := range other.Attrs {
		ds.Attrs[k] = v
	}
	offsetByTime := len(ds.Time) > 0 || len(other.Time) > 0
	ds.Time = append(ds.Time, other.Time...)
	for name, ov := range other.Vars {
		if existing, ok := ds.Vars[name]; ok && offsetByTime {
			existing.Values = append(existing.Values, ov.Values...)
			continue
		}
		ds.AddVariable(ov.clone())
	}
}

// Save writes the dataset to disk, creating parent directories as needed
func (ds *Dataset) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrDataSave, "cannot create output directory for %s", path)
	}
	raw, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return errors.Wrapf(err, errors.ErrDataSave, "cannot encode dataset %s", path)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return errors.Wrapf(err, errors.ErrDataSave, "cannot write dataset %s", path).
			WithDetail("path", path)
	}
	return nil
}

// ResolveSymlinks replaces symlinked paths with their targets, leaving
// regular files untouched
func ResolveSymlinks(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		info, err := os.Lstat(p)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrFileAccess, "cannot stat %s", p)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(p)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrFileAccess, "cannot resolve symlink %s", p)
			}
			p = resolved
		}
		out = append(out, p)
	}
	return out, nil
}
