package importer

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/nishad/ptmdb/internal/database"
	"github.com/nishad/ptmdb/internal/models"
)

// cleanProteins removes isoforms whose sequence does not end with its only
// stop marker, then selects new preferred isoforms for their genes.
type cleanProteins struct {
	removed []*models.Protein
}

func (im *cleanProteins) Parse(ctx context.Context, run *Run) error {
	var stopInside, noStopAtEnd, noStop int64
	for _, p := range run.Resolver.Proteins.Values() {
		defects := p.SequenceDefects()
		if defects == 0 {
			continue
		}
		if defects&models.StopInside != 0 {
			stopInside++
		}
		if defects&models.NoStopAtEnd != 0 {
			noStopAtEnd++
		}
		if defects&models.NoStop != 0 {
			noStop++
		}
		im.removed = append(im.removed, p)
	}
	run.Stats.Count("stop_inside", stopInside)
	run.Stats.Count("no_stop_at_end", noStopAtEnd)
	run.Stats.Count("no_stop", noStop)
	return ctx.Err()
}

func (im *cleanProteins) Insert(ctx context.Context, run *Run) error {
	if len(im.removed) == 0 {
		return nil
	}

	var (
		ids      = make([]int64, 0, len(im.removed))
		affected []*models.Gene
		seen     = make(map[*models.Gene]bool)
	)
	for _, p := range im.removed {
		ids = append(ids, p.ID)
		if gene := p.Gene; gene != nil && !seen[gene] {
			seen[gene] = true
			affected = append(affected, gene)
		}
	}

	// DeleteProteins nulls the preferred isoform of the owning genes first
	if err := database.DeleteProteins(ctx, run.Tx, ids); err != nil {
		return err
	}
	for _, p := range im.removed {
		run.Resolver.RemoveProtein(p)
	}
	// mutations of removed proteins are gone with them
	run.Resolver.Invalidate("mutations")

	for _, gene := range affected {
		gene.Preferred = gene.SelectPreferredIsoform()
		if gene.Preferred == nil {
			log.Debug("gene lost all its isoforms", "gene", gene.Name)
		}
	}
	run.Stats.Removed = int64(len(im.removed))
	run.Stats.Updated = int64(len(affected))
	return database.UpdatePreferredIsoforms(ctx, run.Tx, affected)
}

// interactors stores, for every protein, how many kinases and kinase
// groups act on its sites.
type interactors struct {
	changed []*models.Protein
}

func (im *interactors) Parse(ctx context.Context, run *Run) error {
	counts, err := database.CountInteractors(ctx, run.Tx)
	if err != nil {
		return err
	}
	for _, p := range run.Resolver.Proteins.Values() {
		if n := counts[p.ID]; n != p.InteractorsCount {
			p.InteractorsCount = n
			im.changed = append(im.changed, p)
		}
	}
	run.Stats.Updated = int64(len(im.changed))
	return nil
}

func (im *interactors) Insert(ctx context.Context, run *Run) error {
	return database.UpdateInteractorsCounts(ctx, run.Tx, im.changed)
}
