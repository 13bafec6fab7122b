package storage

import (
	"context"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
)

// Compile-time interface check.
var _ Reader = (*localReader)(nil)

type localReader struct {
	// paths maps discovery path names to directory paths.
	paths   map[string]string
	pattern string
}

// NewLocalReader creates a Reader backed by local filesystem directories.
// Reports are files whose base name matches pattern.
func NewLocalReader(paths map[string]string, pattern string) Reader {
	cp := make(map[string]string, len(paths))
	maps.Copy(cp, paths)

	return &localReader{paths: cp, pattern: pattern}
}

// DiscoveryPaths returns the configured discovery path names sorted.
func (r *localReader) DiscoveryPaths() []string {
	return slices.Sorted(maps.Keys(r.paths))
}

// ListReports walks the directory behind discoveryPath.
func (r *localReader) ListReports(
	ctx context.Context, discoveryPath string,
) ([]string, error) {
	dirPath, ok := r.paths[discoveryPath]
	if !ok {
		return nil, fmt.Errorf(
			"unknown discovery path: %q", discoveryPath,
		)
	}

	var names []string

	err := filepath.WalkDir(dirPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			return nil
		}

		if r.pattern != "" {
			match, mErr := filepath.Match(r.pattern, d.Name())
			if mErr != nil {
				return fmt.Errorf("matching %q: %w", r.pattern, mErr)
			}

			if !match {
				return nil
			}
		}

		rel, err := filepath.Rel(dirPath, p)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}

		names = append(names, filepath.ToSlash(rel))

		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("walking %s: %w", dirPath, err)
	}

	slices.Sort(names)

	return names, nil
}

// GetReport reads {dirPath}/{name}.
// Returns (nil, nil) when the file does not exist.
func (r *localReader) GetReport(
	_ context.Context, discoveryPath, name string,
) ([]byte, error) {
	dirPath, ok := r.paths[discoveryPath]
	if !ok {
		return nil, fmt.Errorf(
			"unknown discovery path: %q", discoveryPath,
		)
	}

	rel := filepath.FromSlash(name)
	if !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("report name %q escapes discovery path", name)
	}

	p := filepath.Join(dirPath, rel)

	data, err := os.ReadFile(p) //nolint:gosec // confined to the discovery path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading file %s: %w", p, err)
	}

	return data, nil
}
