package importer

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nishad/ptmdb/internal/config"
	"github.com/nishad/ptmdb/internal/database"
	"github.com/nishad/ptmdb/internal/errors"
	"github.com/nishad/ptmdb/internal/models"
	"github.com/nishad/ptmdb/internal/parser"
)

// GeneListHeader is the header of the ActiveDriver gene list tables.
var GeneListHeader = []string{"", "gene", "p", "fdr", "n_pSNVs", "cancer_type", "is_cancer_gene"}

// panCancer marks rows computed over all cancer types.
const panCancer = "PAN"

// geneLists loads the pan-cancer rows of every configured gene list.
type geneLists struct {
	lists  []config.GeneListSource
	loaded []*models.GeneList
}

func (im *geneLists) Parse(ctx context.Context, run *Run) error {
	const op errors.Op = "import.gene_lists"

	for _, source := range im.lists {
		list := &models.GeneList{Name: source.Name}
		err := parser.ParseCSV(ctx, source.Path, parser.TableOptions{
			Header:   GeneListHeader,
			Progress: run.Lines(source.Path),
		}, func(rec parser.Record) error {
			entry, err := parseGeneListEntry(run, rec)
			if err != nil {
				return run.Handle(err, rec.String())
			}
			if entry != nil {
				list.Entries = append(list.Entries, entry)
			}
			return nil
		})
		if err != nil {
			return errors.WrapMsg(op, source.Name, err)
		}
		log.Debug("gene list parsed", "list", list.Name, "entries", len(list.Entries))
		im.loaded = append(im.loaded, list)
		run.Stats.Created += int64(len(list.Entries))
	}
	return nil
}

func parseGeneListEntry(run *Run, rec parser.Record) (*models.GeneListEntry, error) {
	const op errors.Op = "import.gene_lists"

	row := rec.Fields
	if len(row) != len(GeneListHeader) {
		return nil, malformed(op, "expected %d columns, got %d", len(GeneListHeader), len(row))
	}
	if row[5] != panCancer {
		return nil, nil
	}
	p, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return nil, malformed(op, "bad p %q", row[2])
	}
	fdr, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return nil, malformed(op, "bad fdr %q", row[3])
	}
	isCancerGene, err := strconv.ParseBool(row[6])
	if err != nil {
		return nil, malformed(op, "bad is_cancer_gene %q", row[6])
	}

	gene, created := run.Resolver.Gene(row[1])
	if created {
		run.Stats.Count("new_genes", 1)
	}
	return &models.GeneListEntry{Gene: gene, P: p, FDR: fdr, IsCancerGene: isCancerGene}, nil
}

func (im *geneLists) Insert(ctx context.Context, run *Run) error {
	if err := database.InsertGenes(ctx, run.Tx, run.Resolver.Genes.Values()); err != nil {
		return err
	}
	return database.InsertGeneLists(ctx, run.Tx, im.loaded)
}

// externalReferences links NM isoforms to UniProt, RefSeq NP and Ensembl
// peptide identifiers.
type externalReferences struct {
	created []*models.ProteinReferences
}

func (im *externalReferences) Parse(ctx context.Context, run *Run) error {
	const op errors.Op = "import.external_references"

	err := parser.ParseTSV(ctx, run.Source, parser.TableOptions{Progress: run.Lines(run.Source)}, func(rec parser.Record) error {
		return run.Handle(im.parseRecord(run, rec), rec.String())
	})
	if err != nil {
		return errors.Wrap(op, err)
	}
	run.Stats.Created = int64(len(im.created))
	return nil
}

func (im *externalReferences) parseRecord(run *Run, rec parser.Record) error {
	const op errors.Op = "import.external_references"

	data := rec.Fields
	if len(data) < 4 {
		return malformed(op, "expected 4 columns, got %d", len(data))
	}
	refseq := data[0]
	if !strings.HasPrefix(refseq, "NM") {
		run.Stats.Count("not_nm", 1)
		return nil
	}
	protein, ok := run.Resolver.Protein(refseq)
	if !ok {
		return missing(op, "no protein %s", refseq)
	}
	if protein.References != nil {
		run.Stats.Count("redundant", 1)
		log.Debug("redundant reference", "refseq", refseq)
		return nil
	}

	ref := &models.ProteinReferences{
		Protein:          protein,
		UniprotAccession: data[1],
		RefseqNP:         data[2],
		EnsemblPeptides:  strings.Split(data[3], " "),
	}
	protein.References = ref
	im.created = append(im.created, ref)
	return nil
}

func (im *externalReferences) Insert(ctx context.Context, run *Run) error {
	return database.InsertProteinReferences(ctx, run.Tx, im.created)
}

// ErrUnknownGeneSet is returned for GMT entries from neither Gene Ontology
// nor Reactome.
var ErrUnknownGeneSet = stderrors.New("unknown gene set")

// ParseGeneSetID reads the Gene Ontology or Reactome number from a GMT
// gene set name such as "GO:0008150" or "REAC:123".
func ParseGeneSetID(name string) (geneOntology, reactome *int, err error) {
	var digits string
	switch {
	case strings.HasPrefix(name, "GO"):
		digits = name[min(3, len(name)):]
	case strings.HasPrefix(name, "REAC"):
		digits = name[min(5, len(name)):]
	default:
		return nil, nil, errors.E(errors.Op("import.pathways"), errors.KindMalformed, ErrUnknownGeneSet, name)
	}
	id, err := strconv.Atoi(digits)
	if err != nil {
		return nil, nil, malformed("import.pathways", "bad gene set id %q", name)
	}
	if strings.HasPrefix(name, "GO") {
		return &id, nil, nil
	}
	return nil, &id, nil
}

// pathways loads GMT gene sets: name, description, then member genes.
type pathways struct {
	created []*models.Pathway
}

func (im *pathways) Parse(ctx context.Context, run *Run) error {
	const op errors.Op = "import.pathways"

	err := parser.ParseTSV(ctx, run.Source, parser.TableOptions{Progress: run.Lines(run.Source)}, func(rec parser.Record) error {
		return run.Handle(im.parseRecord(run, rec), rec.String())
	})
	if err != nil {
		return errors.Wrap(op, err)
	}
	run.Stats.Created = int64(len(im.created))
	return nil
}

func (im *pathways) parseRecord(run *Run, rec parser.Record) error {
	const op errors.Op = "import.pathways"

	data := rec.Fields
	if len(data) < 2 {
		return malformed(op, "expected gene set name and description")
	}
	geneOntology, reactome, err := ParseGeneSetID(data[0])
	if err != nil {
		return err
	}

	pathway := &models.Pathway{
		Description:  strings.TrimSpace(data[1]),
		GeneOntology: geneOntology,
		Reactome:     reactome,
	}
	for _, name := range data[2:] {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		gene, created := run.Resolver.Gene(name)
		if created {
			run.Stats.Count("new_genes", 1)
		}
		pathway.Genes = append(pathway.Genes, gene)
	}
	im.created = append(im.created, pathway)
	return nil
}

func (im *pathways) Insert(ctx context.Context, run *Run) error {
	if err := database.InsertGenes(ctx, run.Tx, run.Resolver.Genes.Values()); err != nil {
		return err
	}
	return database.InsertPathways(ctx, run.Tx, im.created)
}
