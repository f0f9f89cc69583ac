package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/nishad/ptmdb/internal/database"
	"github.com/nishad/ptmdb/internal/progress"
	"github.com/nishad/ptmdb/internal/ui"
	"github.com/spf13/cobra"
)

var (
	statsRebuild bool
	historyLimit int
	historyPrune time.Duration
)

// NewDBCmd creates the db command and its subcommands.
func NewDBCmd(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management",
		Long:  `Inspect the local ptmdb database and its import history.`,
		Example: `  ptmdb db info
  ptmdb db stats --rebuild
  ptmdb db history
  ptmdb db history --prune 720h`,
	}

	info := &cobra.Command{
		Use:   "info",
		Short: "Show database location, size and row counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInfo(cmd.Context(), g)
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show or rebuild the cached row counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBStats(cmd.Context(), g)
		},
	}
	stats.Flags().BoolVar(&statsRebuild, "rebuild", false, "Recount every entity table")

	history := &cobra.Command{
		Use:   "history",
		Short: "List recent import runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBHistory(g)
		},
	}
	history.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show")
	history.Flags().DurationVar(&historyPrune, "prune", 0, "Remove finished runs older than this age first")

	cmd.AddCommand(info, stats, history)
	return cmd
}

func runDBInfo(ctx context.Context, g *Globals) error {
	db, err := g.openDB(false)
	if err != nil {
		return err
	}
	defer db.Close()

	info, err := db.GetInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to get database info: %w", err)
	}

	out := newPrinter(g)
	out.Header("Database")
	fmt.Printf("  Path: %s\n", info.Path)
	fmt.Printf("  Size: %s\n", formatBytes(info.Size))
	fmt.Println()
	printCounts(info.Counts)

	tracker, err := progress.NewTracker(db.DB)
	if err != nil {
		return err
	}
	last, err := tracker.LastCommitted()
	if err != nil {
		return err
	}
	if len(last) > 0 {
		fmt.Println()
		out.Header("Last imported")
		printTimes(last)
	}
	return nil
}

func runDBStats(ctx context.Context, g *Globals) error {
	db, err := g.openDB(false)
	if err != nil {
		return err
	}
	defer db.Close()

	out := newPrinter(g)
	if statsRebuild {
		start := time.Now()
		err := ui.Run(out.progressOut(), "Counting entity tables", func() error {
			return db.UpdateStatistics(ctx)
		})
		if err != nil {
			return fmt.Errorf("failed to rebuild statistics: %w", err)
		}
		out.Success("Statistics rebuilt in %s", time.Since(start).Round(time.Millisecond))
	}

	counts, err := db.GetStatistics(ctx)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		out.Warning("No statistics cached, run 'ptmdb db stats --rebuild'")
		return nil
	}
	printCounts(counts)
	return nil
}

func runDBHistory(g *Globals) error {
	db, err := g.openDB(false)
	if err != nil {
		return err
	}
	defer db.Close()

	tracker, err := progress.NewTracker(db.DB)
	if err != nil {
		return err
	}
	if historyPrune > 0 {
		removed, err := tracker.CleanupOldRuns(historyPrune)
		if err != nil {
			return fmt.Errorf("failed to prune import history: %w", err)
		}
		newPrinter(g).Success("Removed %s runs older than %s", formatCount(removed), historyPrune)
	}
	runs, err := tracker.RecentRuns(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		newPrinter(g).Info("No import runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tIMPORTERS\tERROR")
	for _, run := range runs {
		status := successColor.Sprint(string(run.Status))
		switch run.Status {
		case progress.RunFailed:
			status = errorColor.Sprint(string(run.Status))
		case progress.RunRunning:
			status = warnColor.Sprint(string(run.Status))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", run.ID,
			run.StartedAt.Local().Format(time.DateTime), status, len(run.Importers), run.Error)
	}
	return w.Flush()
}

// printCounts prints the entity tables in schema order, then any other
// counted table.
func printCounts(counts map[string]int64) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	seen := make(map[string]bool)
	for _, table := range database.EntityTables {
		if n, ok := counts[table]; ok {
			fmt.Fprintf(w, "  %s:\t%s\t\n", table, formatCount(n))
			seen[table] = true
		}
	}
	var rest []string
	for table := range counts {
		if !seen[table] {
			rest = append(rest, table)
		}
	}
	sort.Strings(rest)
	for _, table := range rest {
		fmt.Fprintf(w, "  %s:\t%s\t\n", table, formatCount(counts[table]))
	}
	w.Flush()
}

func printTimes(times map[string]time.Time) {
	names := make([]string, 0, len(times))
	for name := range times {
		names = append(names, name)
	}
	sort.Strings(names)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\t%s\n", name, times[name].Local().Format(time.DateTime))
	}
	w.Flush()
}
