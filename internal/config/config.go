package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nishad/ptmdb/internal/paths"
	"gopkg.in/yaml.v3"
)

// Config represents the ptmdb configuration
type Config struct {
	DataDirectory string         `yaml:"data_directory"`
	Database      DatabaseConfig `yaml:"database"` // SQLite settings
	Import        ImportConfig   `yaml:"import"`
	Search        SearchConfig   `yaml:"search"` // Optional search
	Server        ServerConfig   `yaml:"server"`
}

// DatabaseConfig contains SQLite database settings
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	CacheSize   int    `yaml:"cache_size"`   // in KB
	JournalMode string `yaml:"journal_mode"` // WAL
}

// ImportConfig locates the source files of every importer
type ImportConfig struct {
	ReloadCache     bool              `yaml:"reload_cache"`     // Drop cached entities before each run
	SourceDirectory string            `yaml:"source_directory"` // Base of relative source paths
	Sources         map[string]string `yaml:"sources"`          // importer name -> file
	GeneLists       []GeneListSource  `yaml:"gene_lists"`
}

// GeneListSource is one named cancer gene list file
type GeneListSource struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// SearchConfig contains search-related settings
type SearchConfig struct {
	Enabled      bool   `yaml:"enabled"`       // Enable Bleve search
	IndexPath    string `yaml:"index_path"`    // Path to Bleve index
	DefaultLimit int    `yaml:"default_limit"` // Default result limit
	BatchSize    int    `yaml:"batch_size"`    // Indexing batch size
}

// ServerConfig contains API server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DefaultSources maps importers to the file names they read by default
func DefaultSources() map[string]string {
	return map[string]string{
		"proteins":              "protein_data.tsv",
		"sequences":             "all_RefGene_proteins.fa",
		"disorder":              "all_RefGene_disorder.fa",
		"domains":               "biomart_protein_domains_20072016.txt",
		"domains_hierarchy":     "ParentChildTreeFile.txt",
		"domains_types":         "interpro.xml.gz",
		"cancers":               "cancer_types.txt",
		"kinase_mappings":       "curated_kinase_IDs.txt",
		"sites":                 "site_table.tsv",
		"kinase_classification": "regphos_kinome_scraped_clean.txt",
		"external_references":   "protein_external_references.tsv",
		"pathways":              "hsapiens.pathways.NAME.gmt",
		"clinvar":               "mutations/clinvar_muts_annotated.txt.gz",
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	l := paths.Resolve()

	return &Config{
		DataDirectory: l.DataDir,
		Database: DatabaseConfig{
			Path:        l.Database,
			CacheSize:   10000, // 40MB
			JournalMode: "WAL",
		},
		Import: ImportConfig{
			ReloadCache:     false,
			SourceDirectory: l.Sources,
			Sources:         DefaultSources(),
			GeneLists: []GeneListSource{
				{Name: "TCGA", Path: "Supplementary_table_4__ActiveDriver_genes_p0.01.csv"},
			},
		},
		Search: SearchConfig{
			Enabled:      true,
			IndexPath:    l.Index,
			DefaultLimit: 20,
			BatchSize:    1000,
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	// Start with defaults
	config := DefaultConfig()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Return defaults if file doesn't exist
		return config, nil
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML. Sources given in the file are merged over the defaults.
	defaults := config.Import.Sources
	config.Import.Sources = nil
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	for name, file := range defaults {
		if _, ok := config.Import.Sources[name]; !ok {
			if config.Import.Sources == nil {
				config.Import.Sources = make(map[string]string)
			}
			config.Import.Sources[name] = file
		}
	}

	// Validate and expand paths
	config.DataDirectory = expandPath(config.DataDirectory)
	config.Database.Path = expandPath(config.Database.Path)
	config.Search.IndexPath = expandPath(config.Search.IndexPath)
	config.Import.SourceDirectory = expandPath(config.Import.SourceDirectory)

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid server port %d", config.Server.Port)
	}
	if config.Search.DefaultLimit <= 0 {
		config.Search.DefaultLimit = 20
	}

	return config, nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to YAML
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	// Check environment variable first
	if path := os.Getenv("PTMDB_CONFIG"); path != "" {
		return path
	}

	// Check current directory
	if _, err := os.Stat("ptmdb.yaml"); err == nil {
		return "ptmdb.yaml"
	}

	// Use default location
	return filepath.Join(paths.Resolve().ConfigDir, "config.yaml")
}

// EnsureDirectories creates necessary directories
func (c *Config) EnsureDirectories() error {
	// First ensure base directories using paths package
	if err := paths.Resolve().Ensure(); err != nil {
		return err
	}

	// Then ensure any custom directories from config
	dirs := []string{
		c.DataDirectory,
		c.Import.SourceDirectory,
		filepath.Dir(c.Database.Path),
		filepath.Dir(c.Search.IndexPath),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// SourcePath returns the file read by the named importer, or "" when
// none is configured. Relative paths are taken from SourceDirectory.
func (c *Config) SourcePath(importer string) string {
	return c.resolve(c.Import.Sources[importer])
}

// GeneListPaths returns the configured gene lists with resolved paths.
func (c *Config) GeneListPaths() []GeneListSource {
	lists := make([]GeneListSource, len(c.Import.GeneLists))
	for i, l := range c.Import.GeneLists {
		lists[i] = GeneListSource{Name: l.Name, Path: c.resolve(l.Path)}
	}
	return lists
}

func (c *Config) resolve(path string) string {
	if path == "" {
		return ""
	}
	path = expandPath(path)
	if filepath.IsAbs(path) || c.Import.SourceDirectory == "" {
		return path
	}
	return filepath.Join(c.Import.SourceDirectory, path)
}

// Address returns the listen address of the API server
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsSearchEnabled returns true if search is enabled
func (c *Config) IsSearchEnabled() bool {
	return c.Search.Enabled
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) == 0 {
		return path
	}

	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}

	return path
}
