// Package paths locates the files ptmdb keeps between runs. The four base
// directories follow the XDG layout and each can be moved on its own with a
// PTMDB_*_HOME variable. The database, the search index and the directory
// holding the import sources have their own overrides.
package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/nishad/ptmdb/internal/errors"
)

const appName = "ptmdb"

// Layout is where ptmdb reads and writes its files.
type Layout struct {
	ConfigDir string
	DataDir   string
	CacheDir  string
	StateDir  string

	Database string
	Index    string // next to Database, with a .bleve extension
	Sources  string // relative import sources are looked up here
}

var bases = []struct {
	env, xdg, home string
	dir            func(*Layout) *string
}{
	{"PTMDB_CONFIG_HOME", "XDG_CONFIG_HOME", ".config", func(l *Layout) *string { return &l.ConfigDir }},
	{"PTMDB_DATA_HOME", "XDG_DATA_HOME", ".local/share", func(l *Layout) *string { return &l.DataDir }},
	{"PTMDB_CACHE_HOME", "XDG_CACHE_HOME", ".cache", func(l *Layout) *string { return &l.CacheDir }},
	{"PTMDB_STATE_HOME", "XDG_STATE_HOME", ".local/state", func(l *Layout) *string { return &l.StateDir }},
}

// Resolve reads the environment and returns the current layout.
func Resolve() Layout {
	var l Layout
	home, _ := os.UserHomeDir()
	for _, b := range bases {
		dir := os.Getenv(b.env)
		if dir == "" {
			if xdg := os.Getenv(b.xdg); xdg != "" {
				dir = filepath.Join(xdg, appName)
			} else {
				dir = filepath.Join(home, b.home, appName)
			}
		}
		*b.dir(&l) = dir
	}

	l.Database = env("PTMDB_DB_PATH", filepath.Join(l.DataDir, appName+".db"))
	l.Index = env("PTMDB_INDEX_PATH", strings.TrimSuffix(l.Database, filepath.Ext(l.Database))+".bleve")
	l.Sources = env("PTMDB_SOURCES_PATH", filepath.Join(l.DataDir, "sources"))
	return l
}

func env(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// Dirs lists the directories Ensure creates.
func (l Layout) Dirs() []string {
	return []string{l.ConfigDir, l.DataDir, l.Sources, l.CacheDir, l.StateDir}
}

// Ensure creates the layout's directories.
func (l Layout) Ensure() error {
	const op errors.Op = "paths.Ensure"

	for _, dir := range l.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.E(op, errors.KindIO, err, "create "+dir)
		}
	}
	return nil
}
