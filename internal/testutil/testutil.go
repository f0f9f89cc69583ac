// Package testutil provides testing utilities for ptmdb packages.
// It includes helpers for temporary source files, test databases and a
// small, internally consistent set of source fixtures.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"
)

// TempDir creates a temporary directory for tests.
// It returns the path and a cleanup function.
func TempDir(t *testing.T) (string, func()) {
	t.Helper()
	dir, err := os.MkdirTemp("", "ptmdb-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	return dir, func() {
		os.RemoveAll(dir)
	}
}

// TempFile creates a temporary file with the given content.
// It returns the path and a cleanup function.
func TempFile(t *testing.T, name, content string) (string, func()) {
	t.Helper()
	dir, cleanup := TempDir(t)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		cleanup()
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path, cleanup
}

// WriteFile writes content to name inside dir and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// WriteGzipFile writes content gzip-compressed to name inside dir.
func WriteGzipFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	defer f.Close()

	gz := pgzip.NewWriter(f)
	if _, err := gz.Write([]byte(content)); err != nil {
		t.Fatalf("failed to compress %s: %v", name, err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("failed to finish %s: %v", name, err)
	}
	return path
}

// Lines joins rows with newlines, ending with a trailing newline.
func Lines(rows ...string) string {
	return strings.Join(rows, "\n") + "\n"
}

// TSV joins fields of every row with tabs.
func TSV(rows ...[]string) string {
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = strings.Join(row, "\t")
	}
	return Lines(lines...)
}

// RequireEnv skips the test if the environment variable is not set.
func RequireEnv(t *testing.T, name string) string {
	t.Helper()
	value := os.Getenv(name)
	if value == "" {
		t.Skipf("skipping: %s not set", name)
	}
	return value
}

// SkipIfShort skips the test if running in short mode.
func SkipIfShort(t *testing.T, reason string) {
	t.Helper()
	if testing.Short() {
		t.Skipf("skipping in short mode: %s", reason)
	}
}

// SkipIfCI skips the test if running in CI environment.
func SkipIfCI(t *testing.T) {
	t.Helper()
	if os.Getenv("CI") != "" {
		t.Skip("skipping in CI environment")
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Errorf("%s: %v", msg, err)
	}
}

// RequireNoError fails the test immediately if err is not nil.
func RequireNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// AssertEqual fails the test if got != want.
func AssertEqual[T comparable](t *testing.T, got, want T, msg string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %v, want %v", msg, got, want)
	}
}

// AssertTrue fails the test if condition is false.
func AssertTrue(t *testing.T, condition bool, msg string) {
	t.Helper()
	if !condition {
		t.Errorf("assertion failed: %s", msg)
	}
}

// AssertFalse fails the test if condition is true.
func AssertFalse(t *testing.T, condition bool, msg string) {
	t.Helper()
	if condition {
		t.Errorf("assertion failed (expected false): %s", msg)
	}
}

// AssertNotNil fails the test if value is nil.
func AssertNotNil(t *testing.T, value interface{}, msg string) {
	t.Helper()
	if value == nil {
		t.Errorf("expected non-nil: %s", msg)
	}
}

// AssertNil fails the test if value is not nil.
func AssertNil(t *testing.T, value interface{}, msg string) {
	t.Helper()
	if value != nil {
		t.Errorf("expected nil: %s (got %v)", msg, value)
	}
}

// AssertContains fails the test if substr is not in s.
func AssertContains(t *testing.T, s, substr, msg string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("%s: %q does not contain %q", msg, s, substr)
	}
}
