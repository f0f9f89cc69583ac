package cli

import (
	"fmt"
	"os"

	"github.com/nishad/ptmdb/internal/config"
	"github.com/nishad/ptmdb/internal/paths"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configForce bool

// envVars are the environment variables ptmdb reads.
var envVars = []struct {
	name string
	desc string
}{
	{"PTMDB_CONFIG", "Configuration file"},
	{"PTMDB_CONFIG_HOME", "Override config directory"},
	{"PTMDB_DATA_HOME", "Override data directory"},
	{"PTMDB_CACHE_HOME", "Override cache directory"},
	{"PTMDB_STATE_HOME", "Override state directory"},
	{"PTMDB_DB_PATH", "Override database path"},
	{"PTMDB_INDEX_PATH", "Override index path"},
	{"PTMDB_SOURCES_PATH", "Override source file directory"},
}

// NewConfigCmd creates the config command and its subcommands.
func NewConfigCmd(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage ptmdb configuration",
	}

	pathsCmd := &cobra.Command{
		Use:   "paths",
		Short: "Show all active paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigPaths(g)
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(g)
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Long: `Create a configuration file with the default settings at the location
given by --config, PTMDB_CONFIG or ~/.config/ptmdb/config.yaml. An existing
file is kept unless --force is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(g)
		},
	}
	initCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing configuration")

	cmd.AddCommand(pathsCmd, show, initCmd)
	return cmd
}

func (g *Globals) configPath() string {
	if g.ConfigPath != "" {
		return g.ConfigPath
	}
	return config.GetConfigPath()
}

func runConfigPaths(g *Globals) error {
	p := paths.Resolve()
	cfg := g.Config()
	out := newPrinter(g)

	out.Header("Base Directories:")
	fmt.Printf("  Config:   %s\n", infoColor.Sprint(p.ConfigDir))
	fmt.Printf("  Data:     %s\n", infoColor.Sprint(p.DataDir))
	fmt.Printf("  Cache:    %s\n", infoColor.Sprint(p.CacheDir))
	fmt.Printf("  State:    %s\n", infoColor.Sprint(p.StateDir))

	fmt.Println()
	out.Header("Specific Paths:")
	fmt.Printf("  Config file: %s\n", infoColor.Sprint(g.configPath()))
	fmt.Printf("  Database:    %s\n", infoColor.Sprint(cfg.Database.Path))
	fmt.Printf("  Index:       %s\n", infoColor.Sprint(cfg.Search.IndexPath))
	fmt.Printf("  Sources:     %s\n", infoColor.Sprint(cfg.Import.SourceDirectory))

	var set bool
	for _, env := range envVars {
		if val := os.Getenv(env.name); val != "" {
			if !set {
				fmt.Println()
				out.Header("Environment Variables:")
				set = true
			}
			fmt.Printf("  %s = %s\n", warnColor.Sprint(env.name), infoColor.Sprint(val))
			if g.Verbose {
				fmt.Printf("    %s\n", env.desc)
			}
		}
	}

	fmt.Println()
	out.Header("Path Status:")
	checks := []struct {
		name string
		path string
	}{
		{"Config", g.configPath()},
		{"Database", cfg.Database.Path},
		{"Index", cfg.Search.IndexPath},
		{"Sources", cfg.Import.SourceDirectory},
	}
	for _, check := range checks {
		if fileExists(check.path) {
			fmt.Printf("  %-10s %s\n", check.name+":", successColor.Sprint("✓ exists"))
		} else {
			fmt.Printf("  %-10s %s\n", check.name+":", warnColor.Sprint("✗ not found"))
		}
	}
	return nil
}

func runConfigShow(g *Globals) error {
	path := g.configPath()
	out := newPrinter(g)

	out.Header("Config File: " + path)
	if !fileExists(path) {
		out.Warning("No config file found, showing defaults")
	}
	fmt.Println()

	data, err := yaml.Marshal(g.Config())
	if err != nil {
		return fmt.Errorf("failed to format config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func runConfigInit(g *Globals) error {
	path := g.configPath()
	out := newPrinter(g)

	if fileExists(path) && !configForce {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(path); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	out.Success("Configuration written to %s", path)
	out.Info("Place the source files in %s or set import.source_directory", cfg.Import.SourceDirectory)
	return nil
}
