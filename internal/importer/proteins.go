package importer

import (
	"context"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nishad/ptmdb/internal/database"
	"github.com/nishad/ptmdb/internal/errors"
	"github.com/nishad/ptmdb/internal/models"
	"github.com/nishad/ptmdb/internal/parser"
)

// RefGeneHeader is the header of the UCSC refGene table.
var RefGeneHeader = []string{
	"bin", "name", "chrom", "strand", "txStart", "txEnd",
	"cdsStart", "cdsEnd", "exonCount", "exonStarts", "exonEnds",
	"score", "name2", "cdsStartStat", "cdsEndStat", "exonFrames",
}

// proteins creates genes and their isoforms. Isoforms already stored are
// left alone; a refseq met twice in the file keeps its first row.
type proteins struct {
	created    []*models.Protein
	seen       map[string]bool
	duplicated map[*models.Gene]bool
}

func (im *proteins) Parse(ctx context.Context, run *Run) error {
	const op errors.Op = "import.proteins"

	im.seen = make(map[string]bool)
	im.duplicated = make(map[*models.Gene]bool)

	err := parser.ParseTSV(ctx, run.Source, parser.TableOptions{
		Header:   RefGeneHeader,
		Progress: run.Lines(run.Source),
	}, func(rec parser.Record) error {
		return run.Handle(im.parseRecord(run, rec), rec.String())
	})
	if err != nil {
		return errors.Wrap(op, err)
	}

	onlyIsoform := 0
	for gene := range im.duplicated {
		if len(gene.Isoforms) == 1 {
			onlyIsoform++
		}
	}
	if onlyIsoform > 0 {
		log.Warn("duplicated refseqs are the only isoform of their gene", "genes", onlyIsoform)
	}
	run.Stats.Count("duplicated_only_isoform", int64(onlyIsoform))
	return nil
}

func (im *proteins) parseRecord(run *Run, rec parser.Record) error {
	const op errors.Op = "import.proteins"

	line := rec.Fields
	if len(line) != len(RefGeneHeader) {
		return malformed(op, "expected %d columns, got %d", len(RefGeneHeader), len(line))
	}
	strand, ok := models.ParseStrand(line[3])
	if !ok {
		return malformed(op, "unknown strand %q", line[3])
	}
	var coords [4]int
	for i := range coords {
		v, err := strconv.Atoi(line[4+i])
		if err != nil {
			return malformed(op, "bad %s %q", RefGeneHeader[4+i], line[4+i])
		}
		coords[i] = v
	}

	gene, created := run.Resolver.Gene(line[12])
	if created {
		gene.Chrom = strings.TrimPrefix(line[2], "chr")
		gene.Strand = strand
	}

	refseq := line[1]
	if im.seen[refseq] {
		im.duplicated[gene] = true
		run.Stats.Count("duplicated", 1)
		return nil
	}
	if _, known := run.Resolver.Protein(refseq); known {
		run.Stats.Count("already_stored", 1)
		return nil
	}
	im.seen[refseq] = true

	p := &models.Protein{
		Refseq:   refseq,
		TxStart:  coords[0],
		TxEnd:    coords[1],
		CdsStart: coords[2],
		CdsEnd:   coords[3],
	}
	run.Resolver.AddProtein(gene, p)
	im.created = append(im.created, p)
	return nil
}

func (im *proteins) Insert(ctx context.Context, run *Run) error {
	genes := run.Resolver.Genes.Values()
	run.Stats.Count("new_genes", countNew(genes, func(g *models.Gene) int64 { return g.ID }))
	if err := database.InsertGenes(ctx, run.Tx, genes); err != nil {
		return err
	}
	if err := database.InsertProteins(ctx, run.Tx, im.created); err != nil {
		return err
	}
	run.Stats.Created = int64(len(im.created))
	return nil
}
