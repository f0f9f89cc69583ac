package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	// Check database defaults
	if cfg.Database.JournalMode != "WAL" {
		t.Errorf("expected journal_mode WAL, got %q", cfg.Database.JournalMode)
	}
	if cfg.Database.CacheSize != 10000 {
		t.Errorf("expected cache_size 10000, got %d", cfg.Database.CacheSize)
	}

	// Check import defaults
	if cfg.Import.ReloadCache {
		t.Error("expected reload_cache to be off by default")
	}
	if got := cfg.Import.Sources["proteins"]; got != "protein_data.tsv" {
		t.Errorf("expected proteins source protein_data.tsv, got %q", got)
	}
	if len(cfg.Import.GeneLists) != 1 || cfg.Import.GeneLists[0].Name != "TCGA" {
		t.Errorf("expected the TCGA gene list, got %+v", cfg.Import.GeneLists)
	}

	// Check search and server defaults
	if !cfg.Search.Enabled {
		t.Error("expected search to be enabled by default")
	}
	if cfg.Search.DefaultLimit != 20 {
		t.Errorf("expected default_limit 20, got %d", cfg.Search.DefaultLimit)
	}
	if cfg.Address() != "localhost:8080" {
		t.Errorf("expected address localhost:8080, got %q", cfg.Address())
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("Load should return defaults for non-existent file, got error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config for non-existent file")
	}
}

func TestLoadValidFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
data_directory: /tmp/ptmdb-test
database:
  path: /tmp/ptmdb-test/test.db
  cache_size: 5000
  journal_mode: WAL
import:
  reload_cache: true
  source_directory: /srv/sources
  sources:
    sites: /elsewhere/sites.tsv
    clinvar: clinvar.txt.gz
search:
  enabled: false
server:
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DataDirectory != "/tmp/ptmdb-test" {
		t.Errorf("expected data_directory /tmp/ptmdb-test, got %q", cfg.DataDirectory)
	}
	if cfg.Database.CacheSize != 5000 {
		t.Errorf("expected cache_size 5000, got %d", cfg.Database.CacheSize)
	}
	if cfg.Search.Enabled {
		t.Error("expected search to be disabled")
	}
	if !cfg.Import.ReloadCache {
		t.Error("expected reload_cache to be on")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}

	tests := []struct {
		importer string
		want     string
	}{
		{"sites", "/elsewhere/sites.tsv"},
		{"clinvar", "/srv/sources/clinvar.txt.gz"},
		{"proteins", "/srv/sources/protein_data.tsv"},
		{"preferred_isoforms", ""},
	}
	for _, tt := range tests {
		t.Run(tt.importer, func(t *testing.T) {
			if got := cfg.SourcePath(tt.importer); got != tt.want {
				t.Errorf("SourcePath(%q) = %q, want %q", tt.importer, got, tt.want)
			}
		})
	}

	lists := cfg.GeneListPaths()
	if len(lists) != 1 || lists[0].Path != "/srv/sources/Supplementary_table_4__ActiveDriver_genes_p0.01.csv" {
		t.Errorf("unexpected gene lists %+v", lists)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("invalid: yaml: [broken"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestLoadInvalidPort(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("server:\n  port: 70000\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for out of range port")
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Database.CacheSize = 999
	cfg.Search.Enabled = false
	cfg.Import.Sources["pathways"] = "reactome.gmt"

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Database.CacheSize != 999 {
		t.Errorf("expected cache_size 999, got %d", loaded.Database.CacheSize)
	}
	if loaded.Search.Enabled {
		t.Error("expected search to be disabled after save/load")
	}
	if loaded.Import.Sources["pathways"] != "reactome.gmt" {
		t.Errorf("expected pathways source to survive, got %q", loaded.Import.Sources["pathways"])
	}
}

func TestExpandPath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(string) bool
		desc  string
	}{
		{
			name:  "empty string",
			input: "",
			check: func(s string) bool { return s == "" },
			desc:  "should return empty string",
		},
		{
			name:  "absolute path",
			input: "/usr/local/bin",
			check: func(s string) bool { return s == "/usr/local/bin" },
			desc:  "should return unchanged",
		},
		{
			name:  "tilde expansion",
			input: "~/Documents",
			check: func(s string) bool { return s != "~/Documents" && len(s) > 0 },
			desc:  "should expand tilde",
		},
		{
			name:  "relative path",
			input: "relative/path",
			check: func(s string) bool { return s == "relative/path" },
			desc:  "should return unchanged",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandPath(tt.input)
			if !tt.check(result) {
				t.Errorf("expandPath(%q) = %q, %s", tt.input, result, tt.desc)
			}
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("PTMDB_CONFIG", "/custom/config.yaml")
	path := GetConfigPath()
	if path != "/custom/config.yaml" {
		t.Errorf("expected /custom/config.yaml, got %q", path)
	}
}

func TestIsSearchEnabled(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.IsSearchEnabled() {
		t.Error("expected search to be enabled by default")
	}

	cfg.Search.Enabled = false
	if cfg.IsSearchEnabled() {
		t.Error("expected search to be disabled")
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PTMDB_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("PTMDB_DATA_HOME", filepath.Join(dir, "home"))
	t.Setenv("PTMDB_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("PTMDB_STATE_HOME", filepath.Join(dir, "state"))
	t.Setenv("PTMDB_SOURCES_PATH", filepath.Join(dir, "sources"))

	cfg := DefaultConfig()
	cfg.DataDirectory = filepath.Join(dir, "data")
	cfg.Database.Path = filepath.Join(dir, "data", "test.db")
	cfg.Search.IndexPath = filepath.Join(dir, "index", "test.bleve")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, d := range []string{cfg.DataDirectory, filepath.Join(dir, "index"), filepath.Join(dir, "sources")} {
		if _, err := os.Stat(d); os.IsNotExist(err) {
			t.Errorf("directory %s was not created", d)
		}
	}
}
