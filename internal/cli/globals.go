package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/nishad/ptmdb/internal/config"
	"github.com/nishad/ptmdb/internal/database"
	"github.com/nishad/ptmdb/internal/search"
	"github.com/spf13/pflag"
)

// Globals holds the flags shared by every command and the configuration
// they resolve to.
type Globals struct {
	ConfigPath string
	DBPath     string
	NoColor    bool
	Quiet      bool
	Verbose    bool
	Debug      bool

	cfg *config.Config
}

// AddFlags registers the global flags on the root command.
func (g *Globals) AddFlags(flags *pflag.FlagSet) {
	flags.StringVar(&g.ConfigPath, "config", "", "Configuration file (default: PTMDB_CONFIG, ./ptmdb.yaml or ~/.config/ptmdb/config.yaml)")
	flags.StringVar(&g.DBPath, "db", "", "Database path (overrides the configuration)")
	flags.BoolVar(&g.NoColor, "no-color", false, "Disable colored output")
	flags.BoolVarP(&g.Verbose, "verbose", "v", false, "Enable verbose output")
	flags.BoolVarP(&g.Quiet, "quiet", "q", false, "Suppress non-error output")
	flags.BoolVar(&g.Debug, "debug", false, "Enable debug output")
}

// Setup configures logging and colors, then loads the configuration.
// It runs before every command.
func (g *Globals) Setup() error {
	color.NoColor = color.NoColor || g.NoColor || os.Getenv("NO_COLOR") != ""

	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(false)
	switch {
	case g.Debug:
		log.SetLevel(log.DebugLevel)
	case g.Verbose:
		log.SetLevel(log.InfoLevel)
	case g.Quiet:
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.WarnLevel)
	}

	path := g.ConfigPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if g.DBPath != "" {
		cfg.Database.Path = g.DBPath
	}
	g.cfg = cfg
	log.Debug("configuration loaded", "path", path, "database", cfg.Database.Path)
	return nil
}

// Config returns the loaded configuration.
func (g *Globals) Config() *config.Config {
	if g.cfg == nil {
		g.cfg = config.DefaultConfig()
	}
	return g.cfg
}

// openDB opens the configured database, creating it when create is set.
func (g *Globals) openDB(create bool) (*database.DB, error) {
	cfg := g.Config()
	if !create {
		if _, err := os.Stat(cfg.Database.Path); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s, run 'ptmdb import' first", cfg.Database.Path)
		}
	} else if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	db, err := database.InitializeWithOptions(cfg.Database.Path, database.Options{
		CacheSize:   cfg.Database.CacheSize,
		JournalMode: cfg.Database.JournalMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// openIndex opens the configured gene search index.
func (g *Globals) openIndex() (*search.Index, error) {
	cfg := g.Config()
	if !cfg.IsSearchEnabled() {
		return nil, fmt.Errorf("search is disabled in the configuration")
	}
	return search.Open(cfg.Search.IndexPath, cfg.Search.BatchSize)
}
