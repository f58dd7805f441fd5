// Package source lists view definitions to analyze: SQL files in a
// directory tree, or view DDL read from a live database catalog.
package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Definition is one view definition.
type Definition struct {
	// Name identifies the definition when the statement itself does not
	// name a view.
	Name string
	// Origin is where the definition came from: a file path or a
	// "catalog:" location.
	Origin string
	SQL    string
}

// Lister produces view definitions.
type Lister interface {
	List(ctx context.Context) ([]Definition, error)
}

// DefaultPattern matches SQL files.
const DefaultPattern = "*.sql"

// Dir lists files under Root whose base name matches Pattern. Hidden
// directories are skipped.
type Dir struct {
	Root    string
	Pattern string
}

// List implements Lister. Definitions are sorted by path.
func (d Dir) List(ctx context.Context) ([]Definition, error) {
	pattern := d.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	var paths []string
	err := filepath.WalkDir(d.Root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() {
			if path != d.Root && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if ok, _ := filepath.Match(pattern, entry.Name()); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", d.Root, err)
	}
	sort.Strings(paths)

	defs := make([]Definition, 0, len(paths))
	for _, path := range paths {
		def, err := d.read(path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Matches reports whether path would be listed by d.
func (d Dir) Matches(path string) bool {
	pattern := d.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	ok, _ := filepath.Match(pattern, filepath.Base(path))
	return ok
}

func (d Dir) read(path string) (Definition, error) {
	def, err := ReadFile(path)
	if err != nil {
		return Definition{}, err
	}
	if rel, err := filepath.Rel(d.Root, path); err == nil {
		def.Name = nameFromPath(rel)
	}
	return def, nil
}

// ReadFile reads a single definition file. Its name is the file's base
// name without extension.
func ReadFile(path string) (Definition, error) {
	data, err := os.ReadFile(path) //nolint:gosec // paths come from the configured source directory
	if err != nil {
		return Definition{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Definition{
		Name:   nameFromPath(filepath.Base(path)),
		Origin: path,
		SQL:    string(data),
	}, nil
}

// nameFromPath turns "sales/summary.sql" into "sales.summary".
func nameFromPath(rel string) string {
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", ".")
}
