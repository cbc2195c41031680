// Package testutil provides fixture helpers for godts tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteTree writes files (relative path to contents) under a fresh
// temporary directory and returns the directory.
func WriteTree(t testing.TB, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create fixture directory for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write fixture %s: %v", name, err)
		}
	}
	return dir
}

// WriteFile writes a single fixture file into a fresh temporary directory
// and returns its path.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	dir := WriteTree(t, map[string]string{name: content})
	return filepath.Join(dir, filepath.FromSlash(name))
}
