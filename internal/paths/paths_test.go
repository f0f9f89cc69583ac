package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, b := range bases {
		t.Setenv(b.env, "")
		t.Setenv(b.xdg, "")
	}
	for _, name := range []string{"PTMDB_DB_PATH", "PTMDB_INDEX_PATH", "PTMDB_SOURCES_PATH"} {
		t.Setenv(name, "")
	}
}

func TestResolve(t *testing.T) {
	home := t.TempDir()
	clearEnv(t)
	t.Setenv("HOME", home)
	t.Setenv("XDG_CACHE_HOME", "/xdg/cache")
	t.Setenv("PTMDB_STATE_HOME", "/custom/state")

	tests := []struct {
		name string
		got  func(Layout) string
		want string
	}{
		{"config falls back to home", func(l Layout) string { return l.ConfigDir }, filepath.Join(home, ".config", "ptmdb")},
		{"data falls back to home", func(l Layout) string { return l.DataDir }, filepath.Join(home, ".local/share", "ptmdb")},
		{"cache from XDG", func(l Layout) string { return l.CacheDir }, "/xdg/cache/ptmdb"},
		{"state from ptmdb env", func(l Layout) string { return l.StateDir }, "/custom/state"},
		{"database in data dir", func(l Layout) string { return l.Database }, filepath.Join(home, ".local/share", "ptmdb", "ptmdb.db")},
		{"index next to database", func(l Layout) string { return l.Index }, filepath.Join(home, ".local/share", "ptmdb", "ptmdb.bleve")},
		{"sources in data dir", func(l Layout) string { return l.Sources }, filepath.Join(home, ".local/share", "ptmdb", "sources")},
	}
	l := Resolve()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.got(l); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveFileOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PTMDB_DB_PATH", "/data/myproject/custom.db")
	t.Setenv("PTMDB_SOURCES_PATH", "/mirror")

	l := Resolve()
	if l.Database != "/data/myproject/custom.db" {
		t.Errorf("Database = %q", l.Database)
	}
	if l.Index != "/data/myproject/custom.bleve" {
		t.Errorf("Index = %q, want it next to the database", l.Index)
	}
	if l.Sources != "/mirror" {
		t.Errorf("Sources = %q", l.Sources)
	}

	t.Setenv("PTMDB_INDEX_PATH", "/elsewhere/genes.bleve")
	if got := Resolve().Index; got != "/elsewhere/genes.bleve" {
		t.Errorf("Index = %q", got)
	}
}

func TestEnsure(t *testing.T) {
	dir := t.TempDir()
	clearEnv(t)
	t.Setenv("PTMDB_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("PTMDB_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("PTMDB_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("PTMDB_STATE_HOME", filepath.Join(dir, "state"))

	l := Resolve()
	if err := l.Ensure(); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	for _, d := range l.Dirs() {
		if info, err := os.Stat(d); err != nil || !info.IsDir() {
			t.Errorf("expected directory %q to be created", d)
		}
	}
	if l.Sources != filepath.Join(dir, "data", "sources") {
		t.Errorf("Sources = %q", l.Sources)
	}
}
