package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/nishad/ptmdb/internal/database"
	"github.com/nishad/ptmdb/internal/ui"
	"github.com/spf13/cobra"
)

// NewIndexCmd creates the index command.
func NewIndexCmd(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the gene search index",
		Long: `Index every gene of the database by symbol, transcript refseq, UniProt
accession and protein refseq. The previous index is replaced.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), g)
		},
	}
}

func runIndex(ctx context.Context, g *Globals) error {
	out := newPrinter(g)

	db, err := g.openDB(false)
	if err != nil {
		return err
	}
	defer db.Close()

	index, err := g.openIndex()
	if err != nil {
		return err
	}
	defer index.Close()

	start := time.Now()
	genes, err := database.LoadSearchableGenes(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to load genes: %w", err)
	}
	message := fmt.Sprintf("Indexing %s genes into %s", formatCount(int64(len(genes))), index.Path())
	if err := ui.Run(out.progressOut(), message, func() error { return index.Rebuild(genes) }); err != nil {
		return err
	}
	out.Success("Indexed %s genes in %s", formatCount(int64(len(genes))), time.Since(start).Round(time.Millisecond))
	return nil
}
