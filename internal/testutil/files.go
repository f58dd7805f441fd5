package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// WriteFiles writes files (relative path -> content) under root, creating
// parent directories. It returns the written paths sorted.
func WriteFiles(t testing.TB, root string, files map[string]string) []string {
	t.Helper()

	paths := make([]string, 0, len(files))
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("failed to create directory for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
