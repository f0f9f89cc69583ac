package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/charmbracelet/log"
	"github.com/nishad/ptmdb/internal/config"
	"github.com/nishad/ptmdb/internal/importer"
	"github.com/nishad/ptmdb/internal/orchestrator"
	"github.com/nishad/ptmdb/internal/progress"
	"github.com/spf13/cobra"
)

// Import command flags
var (
	importReload     bool
	importList       bool
	importNoProgress bool
)

// NewImportCmd creates the import command.
func NewImportCmd(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [importer...]",
		Short: "Import source files into the database",
		Long: `Run the importers in registry order. Every importer empties the tables it
owns, then loads its source file in a single transaction; a failing importer
is rolled back and stops the run while the importers committed before it stay.

Without arguments every importer runs. Name importers to run a subset; they
still run in registry order.`,
		Example: `  # Import everything
  ptmdb import

  # Refresh ClinVar mutations only
  ptmdb import clinvar

  # List the importers and their source files
  ptmdb import --list`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if importList {
				return listImporters(g)
			}
			return runImport(cmd.Context(), g, args)
		},
	}

	cmd.Flags().BoolVar(&importReload, "reload", false, "Drop the entity cache before importing (default from import.reload_cache)")
	cmd.Flags().BoolVarP(&importList, "list", "l", false, "List importers and exit")
	cmd.Flags().BoolVar(&importNoProgress, "no-progress", false, "Disable progress bars")

	return cmd
}

func listImporters(g *Globals) error {
	cfg := g.Config()
	entries := importer.Registry(cfg)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, boldColor.Sprint("NAME")+"\t"+boldColor.Sprint("SOURCE")+"\t"+boldColor.Sprint("DESCRIPTION"))
	for _, e := range entries {
		source := e.Source
		switch {
		case source == "":
			source = "-"
		case len(missingSources(cfg, []importer.Entry{e})) > 0:
			source = warnColor.Sprint(source + " (missing)")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, source, e.Description)
	}
	return w.Flush()
}

func runImport(ctx context.Context, g *Globals, names []string) error {
	out := newPrinter(g)
	cfg := g.Config()

	db, err := g.openDB(true)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := orchestrator.Options{ReloadCache: importReload || cfg.Import.ReloadCache}
	var bars *fileProgress
	if !importNoProgress && !g.Quiet {
		bars = newFileProgress(os.Stderr)
		opts.Progress = bars.Update
	}

	o, err := orchestrator.New(db, importer.Registry(cfg), opts)
	if err != nil {
		return err
	}
	selected, err := o.Select(names...)
	if err != nil {
		return err
	}
	if missing := missingSources(cfg, selected); len(missing) > 0 {
		return fmt.Errorf("missing source files:\n  %s", strings.Join(missing, "\n  "))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			out.Warning("Interrupt received, rolling back the running importer...")
			cancel()
		case <-ctx.Done():
		}
	}()

	out.Info("Importing into %s", db.Path())
	report, runErr := o.Run(ctx, names...)
	if bars != nil {
		bars.Wait(runErr != nil)
	}
	if report != nil {
		printReport(out, report)
	}
	if runErr != nil {
		return runErr
	}

	if err := db.UpdateStatistics(ctx); err != nil {
		log.Warn("failed to update statistics", "err", err)
	}
	out.Success("Import %s completed", report.RunID)
	if cfg.IsSearchEnabled() {
		out.Info("Run 'ptmdb index' to refresh the search index")
	}
	return nil
}

// missingSources lists the source files of the entries that do not exist.
func missingSources(cfg *config.Config, entries []importer.Entry) []string {
	var missing []string
	for _, e := range entries {
		paths := []string{e.Source}
		if e.Name == "gene_lists" {
			paths = paths[:0]
			for _, list := range cfg.GeneListPaths() {
				paths = append(paths, list.Path)
			}
		}
		for _, path := range paths {
			if path != "" && !fileExists(path) {
				missing = append(missing, fmt.Sprintf("%s: %s", e.Name, path))
			}
		}
	}
	return missing
}

func printReport(out *printer, report *orchestrator.Report) {
	if out.quiet {
		return
	}
	fmt.Fprintln(out.out)
	w := tabwriter.NewWriter(out.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "IMPORTER\tSTATE\tREMOVED\tCREATED\tUPDATED\tSKIPPED\tDETAILS")
	for _, o := range report.Outcomes {
		details := counterDetails(o.Stats.Counters)
		if o.Integrity {
			details = strings.TrimSpace("integrity violation " + details)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.Name, stateLabel(o.State),
			formatCount(o.Stats.Removed), formatCount(o.Stats.Created),
			formatCount(o.Stats.Updated), formatCount(o.Stats.Skipped),
			details)
	}
	w.Flush()
	fmt.Fprintln(out.out)
}

func stateLabel(s progress.State) string {
	switch s {
	case progress.StateCommitted:
		return successColor.Sprint(string(s))
	case progress.StateFailed:
		return errorColor.Sprint(string(s))
	default:
		return warnColor.Sprint(string(s))
	}
}

func counterDetails(counters map[string]int64) string {
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%s", name, formatCount(counters[name]))
	}
	return strings.Join(parts, " ")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
