package importer

import (
	"context"
	stderrors "errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nishad/ptmdb/internal/database"
	"github.com/nishad/ptmdb/internal/errors"
	"github.com/nishad/ptmdb/internal/models"
	"github.com/nishad/ptmdb/internal/parser"
)

// DomainsHeader is the header of the biomart domains export.
var DomainsHeader = []string{
	"Ensembl Gene ID", "Ensembl Transcript ID", "Ensembl Protein ID",
	"Chromosome Name", "Gene Start (bp)", "Gene End (bp)",
	"RefSeq mRNA [e.g. NM_001195597]", "Interpro ID",
	"Interpro Short Description", "Interpro Description",
	"Interpro end", "Interpro start",
}

// domains loads domain occurrences. Occurrences of the same InterPro domain
// on a protein overlapping by models.MergeThreshold are merged into one.
type domains struct {
	created  []*models.Domain
	interpro []*models.InterproDomain
}

func (im *domains) Parse(ctx context.Context, run *Run) error {
	const op errors.Op = "import.domains"

	err := parser.ParseTSV(ctx, run.Source, parser.TableOptions{
		Header:   DomainsHeader,
		Progress: run.Lines(run.Source),
	}, func(rec parser.Record) error {
		return run.Handle(im.parseRecord(run, rec), rec.String())
	})
	if err != nil {
		return errors.Wrap(op, err)
	}
	run.Stats.Created = int64(len(im.created))
	return nil
}

func (im *domains) parseRecord(run *Run, rec parser.Record) error {
	const op errors.Op = "import.domains"

	line := rec.Fields
	if len(line) < 7 {
		return malformed(op, "expected %d columns, got %d", len(DomainsHeader), len(line))
	}
	protein, ok := run.Resolver.Protein(line[6])
	if !ok {
		return missing(op, "no protein %s", line[6])
	}

	// transcripts without any domain annotation
	if len(line) == 7 || strings.Join(line[7:], "") == "" {
		run.Stats.Count("without_domains", 1)
		return nil
	}
	if len(line) != len(DomainsHeader) {
		return malformed(op, "expected %d columns, got %d", len(DomainsHeader), len(line))
	}

	// the export lists the end before the start
	start, err := strconv.Atoi(line[11])
	if err != nil {
		return malformed(op, "bad start %q", line[11])
	}
	end, err := strconv.Atoi(line[10])
	if err != nil {
		return malformed(op, "bad end %q", line[10])
	}
	if start >= end {
		return malformed(op, "start %d not before end %d", start, end)
	}
	accession := line[7]
	if !strings.HasPrefix(accession, "IPR") {
		return malformed(op, "not an InterPro accession %q", accession)
	}

	if end > protein.Length() {
		run.Stats.Count("exceeding_length", 1)
	}
	if protein.Gene == nil || line[3] != protein.Gene.Chrom {
		run.Stats.Count("chromosome_mismatch", 1)
		return nil
	}

	interpro, created := run.Resolver.InterproDomain(accession)
	if created {
		interpro.ShortDescription = line[8]
		interpro.Description = line[9]
		im.interpro = append(im.interpro, interpro)
	}

	switch similar := protein.SimilarDomains(interpro, start, end); len(similar) {
	case 0:
		d := &models.Domain{Protein: protein, Interpro: interpro, Start: start, End: end}
		protein.Domains = append(protein.Domains, d)
		im.created = append(im.created, d)
	case 1:
		similar[0].Expand(start, end)
		run.Stats.Count("merged", 1)
	default:
		log.Error("ambiguous domain merge", "refseq", protein.Refseq, "interpro", accession,
			"start", start, "end", end, "candidates", len(similar))
		return errors.E(op, errors.KindAmbiguous,
			"more than one occurrence of "+accession+" on "+protein.Refseq+" overlaps the candidate")
	}
	return nil
}

func (im *domains) Insert(ctx context.Context, run *Run) error {
	if err := database.SaveInterproDomains(ctx, run.Tx, im.interpro); err != nil {
		return err
	}
	return database.InsertDomains(ctx, run.Tx, im.created)
}

// ErrDepthJump is returned for a hierarchy entry nested more than one
// level below the previous entry. The first entry counts as following a
// root entry.
var ErrDepthJump = stderrors.New("hierarchy depth jumps by more than one level")

var hierarchyLine = regexp.MustCompile(`^(-*)(\w*)::(.*?)::$`)

// domainsHierarchy arranges InterPro domains in a tree. Every two leading
// dashes put an entry one level deeper, below the closest shallower entry.
type domainsHierarchy struct {
	touched []*models.InterproDomain
}

func (im *domainsHierarchy) Parse(ctx context.Context, run *Run) error {
	const op errors.Op = "import.domains_hierarchy"

	var (
		ancestors []*models.InterproDomain
		previous  int
		seen      = make(map[*models.InterproDomain]bool)
	)
	err := parser.ParseText(ctx, run.Source, run.Lines(run.Source), func(lineNo int64, text string) error {
		m := hierarchyLine.FindStringSubmatch(text)
		if m == nil {
			return run.Handle(malformed(op, "line %d does not describe an entry", lineNo), text)
		}
		dashes, accession, description := m[1], m[2], m[3]
		level := len(dashes) / 2

		if level > previous+1 {
			return errors.E(op, errors.KindParse, ErrDepthJump,
				"line "+strconv.FormatInt(lineNo, 10)+": "+text)
		}
		previous = level
		// a file may open one level deep, its first entries have no parent
		for len(ancestors) < level {
			ancestors = append(ancestors, nil)
		}
		ancestors = ancestors[:level]

		domain, created := run.Resolver.InterproDomain(accession)
		if created {
			domain.Description = description
			run.Stats.Created++
		}
		if domain.Description != description {
			run.Stats.Count("description_mismatch", 1)
			log.Debug("InterPro description differs from hierarchy file", "accession", accession,
				"stored", domain.Description, "hierarchy", description)
		}

		domain.Level = level
		domain.Parent = nil
		if level > 0 {
			domain.Parent = ancestors[level-1]
		}
		ancestors = append(ancestors, domain)

		if !seen[domain] {
			seen[domain] = true
			im.touched = append(im.touched, domain)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(op, err)
	}
	run.Stats.Updated = int64(len(im.touched)) - run.Stats.Created
	return nil
}

func (im *domainsHierarchy) Insert(ctx context.Context, run *Run) error {
	return database.SaveInterproDomains(ctx, run.Tx, im.touched)
}

// domainsTypes sets the type of known InterPro domains from the InterPro
// XML release.
type domainsTypes struct {
	touched []*models.InterproDomain
}

func (im *domainsTypes) Parse(ctx context.Context, run *Run) error {
	const op errors.Op = "import.domains_types"

	err := parser.ParseInterproXML(ctx, run.Source, func(entry parser.InterproEntry) error {
		domain, ok := run.Resolver.Interpro.Get(entry.ID)
		if !ok {
			run.Stats.Count("unknown", 1)
			return nil
		}
		domain.Type = entry.Type
		im.touched = append(im.touched, domain)
		return nil
	})
	if err != nil {
		return errors.Wrap(op, err)
	}
	run.Stats.Updated = int64(len(im.touched))
	return nil
}

func (im *domainsTypes) Insert(ctx context.Context, run *Run) error {
	return database.SaveInterproDomains(ctx, run.Tx, im.touched)
}
