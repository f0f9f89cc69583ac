package importer

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/nishad/ptmdb/internal/database"
	"github.com/nishad/ptmdb/internal/errors"
	"github.com/nishad/ptmdb/internal/models"
	"github.com/nishad/ptmdb/internal/parser"
)

// sequences loads protein sequences keyed by refseq.
type sequences struct {
	changed []*models.Protein
}

func (im *sequences) Parse(ctx context.Context, run *Run) error {
	const op errors.Op = "import.sequences"

	err := parser.ParseFASTA(ctx, run.Source, run.Lines(run.Source), func(rec parser.FASTARecord) error {
		p, ok := run.Resolver.Protein(rec.ID)
		if !ok {
			return run.Handle(missing(op, "no protein %s", rec.ID), rec.Header)
		}
		if p.Sequence != "" {
			run.Stats.Updated++
		} else {
			run.Stats.Created++
		}
		p.Sequence = rec.Sequence
		im.changed = append(im.changed, p)
		return nil
	})
	return errors.Wrap(op, err)
}

func (im *sequences) Insert(ctx context.Context, run *Run) error {
	return database.UpdateSequences(ctx, run.Tx, im.changed)
}

// disorder loads disorder maps, one character per residue.
type disorder struct {
	changed []*models.Protein
}

func (im *disorder) Parse(ctx context.Context, run *Run) error {
	const op errors.Op = "import.disorder"

	err := parser.ParseFASTA(ctx, run.Source, run.Lines(run.Source), func(rec parser.FASTARecord) error {
		p, ok := run.Resolver.Protein(rec.ID)
		if !ok {
			return run.Handle(missing(op, "no protein %s", rec.ID), rec.Header)
		}
		p.DisorderMap = rec.Sequence
		im.changed = append(im.changed, p)
		return nil
	})
	if err != nil {
		return errors.Wrap(op, err)
	}

	var mismatched int64
	for _, p := range im.changed {
		if len(p.DisorderMap) != p.Length() {
			mismatched++
			log.Debug("disorder map length differs from sequence", "refseq", p.Refseq,
				"disorder", len(p.DisorderMap), "sequence", p.Length())
		}
	}
	if mismatched > 0 {
		log.Warn("disorder maps not matching their sequence length", "proteins", mismatched)
	}
	run.Stats.Count("length_mismatch", mismatched)
	run.Stats.Updated = int64(len(im.changed))
	return nil
}

func (im *disorder) Insert(ctx context.Context, run *Run) error {
	return database.UpdateDisorderMaps(ctx, run.Tx, im.changed)
}

// preferredIsoforms selects the preferred isoform of every gene.
type preferredIsoforms struct {
	changed []*models.Gene
}

func (im *preferredIsoforms) Parse(ctx context.Context, run *Run) error {
	var empty int64
	for _, gene := range run.Resolver.Genes.Values() {
		preferred := gene.SelectPreferredIsoform()
		if preferred == nil {
			empty++
			log.Debug("gene has no isoforms", "gene", gene.Name)
		}
		if preferred != gene.Preferred {
			gene.Preferred = preferred
			im.changed = append(im.changed, gene)
		}
	}
	run.Stats.Count("without_isoforms", empty)
	run.Stats.Updated = int64(len(im.changed))
	return ctx.Err()
}

func (im *preferredIsoforms) Insert(ctx context.Context, run *Run) error {
	return database.UpdatePreferredIsoforms(ctx, run.Tx, im.changed)
}
