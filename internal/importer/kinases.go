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

// cancers loads `code name color` rows; the code of a known cancer is
// replaced.
type cancers struct {
	touched []*models.Cancer
}

func (im *cancers) Parse(ctx context.Context, run *Run) error {
	const op errors.Op = "import.cancers"

	seen := make(map[*models.Cancer]bool)
	err := parser.ParseTSV(ctx, run.Source, parser.TableOptions{Progress: run.Lines(run.Source)}, func(rec parser.Record) error {
		if len(rec.Fields) != 3 {
			return run.Handle(malformed(op, "expected code, name and color"), rec.String())
		}
		code, name := rec.Fields[0], rec.Fields[1]
		cancer, created := run.Resolver.Cancer(name)
		if created {
			run.Stats.Created++
		}
		cancer.Code = code
		if !seen[cancer] {
			seen[cancer] = true
			im.touched = append(im.touched, cancer)
		}
		return nil
	})
	return errors.Wrap(op, err)
}

func (im *cancers) Insert(ctx context.Context, run *Run) error {
	return database.SaveCancers(ctx, run.Tx, im.touched)
}

// kinaseMappings points kinases at the preferred isoform of their gene.
type kinaseMappings struct {
	repointed []*models.Kinase
}

func (im *kinaseMappings) Parse(ctx context.Context, run *Run) error {
	const op errors.Op = "import.kinase_mappings"

	err := parser.ParseTSV(ctx, run.Source, parser.TableOptions{Progress: run.Lines(run.Source)}, func(rec parser.Record) error {
		if len(rec.Fields) != 2 {
			return run.Handle(malformed(op, "expected kinase and gene names"), rec.String())
		}
		kinaseName, geneName := rec.Fields[0], rec.Fields[1]

		protein := run.Resolver.PreferredIsoform(geneName)
		if protein == nil {
			return run.Handle(missing(op, "no isoform for kinase %s mapped to gene %s", kinaseName, geneName), rec.String())
		}

		kinase, created := run.Resolver.Kinase(kinaseName)
		switch {
		case created:
			kinase.Protein = protein
			run.Stats.Created++
		case kinase.Protein != protein:
			if kinase.Protein != nil {
				log.Info("overriding kinase isoform", "kinase", kinaseName,
					"old", kinase.Protein.Refseq, "new", protein.Refseq)
			}
			kinase.Protein = protein
			if kinase.ID != 0 {
				im.repointed = append(im.repointed, kinase)
			}
			run.Stats.Updated++
		}
		return nil
	})
	return errors.Wrap(op, err)
}

func (im *kinaseMappings) Insert(ctx context.Context, run *Run) error {
	if err := database.InsertKinases(ctx, run.Tx, run.Resolver.Kinases.Values()); err != nil {
		return err
	}
	return database.UpdateKinaseProteins(ctx, run.Tx, im.repointed)
}

// SitesHeader is the header of the PTM site table. The gene column holds
// the refseq of the isoform.
var SitesHeader = []string{"gene", "position", "residue", "enzymes", "pmid", "type"}

// sites loads modification sites with the kinases and kinase groups acting
// on them. Unknown kinases and groups are created.
type sites struct {
	created []*models.Site
}

func (im *sites) Parse(ctx context.Context, run *Run) error {
	const op errors.Op = "import.sites"

	err := parser.ParseTSV(ctx, run.Source, parser.TableOptions{
		Header:   SitesHeader,
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

func (im *sites) parseRecord(run *Run, rec parser.Record) error {
	const op errors.Op = "import.sites"

	line := rec.Fields
	if len(line) != len(SitesHeader) {
		return malformed(op, "expected %d columns, got %d", len(SitesHeader), len(line))
	}
	refseq, enzymes := line[0], line[3]
	position, err := strconv.Atoi(line[1])
	if err != nil {
		return malformed(op, "bad position %q", line[1])
	}
	protein, ok := run.Resolver.Protein(refseq)
	if !ok {
		return missing(op, "no protein %s", refseq)
	}

	site := &models.Site{
		Protein:  protein,
		Position: position,
		Residue:  line[2],
		PMID:     line[4],
		Type:     line[5],
	}

	seen := make(map[string]bool)
	for _, name := range strings.Split(enzymes, ",") {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		if groupName, isGroup := models.SplitGroupName(name); isGroup {
			group, created := run.Resolver.KinaseGroup(groupName)
			if created {
				run.Stats.Count("new_groups", 1)
			}
			site.Groups = append(site.Groups, group)
			continue
		}
		kinase, created := run.Resolver.Kinase(name)
		if created {
			run.Stats.Count("new_kinases", 1)
		}
		site.Kinases = append(site.Kinases, kinase)
	}

	im.created = append(im.created, site)
	return nil
}

func (im *sites) Insert(ctx context.Context, run *Run) error {
	if err := database.InsertKinases(ctx, run.Tx, run.Resolver.Kinases.Values()); err != nil {
		return err
	}
	if err := database.InsertKinaseGroups(ctx, run.Tx, run.Resolver.Groups.Values()); err != nil {
		return err
	}
	return database.InsertSites(ctx, run.Tx, im.created)
}

// KinaseClassificationHeader is the header of the RegPhos kinome table.
var KinaseClassificationHeader = []string{
	"No.", "Kinase", "Group", "Family", "Subfamily", "Gene.Symbol",
	"gene.clean", "Description", "group.clean",
}

// kinaseClassification puts kinases into groups named after their family.
type kinaseClassification struct{}

func (im *kinaseClassification) Parse(ctx context.Context, run *Run) error {
	const op errors.Op = "import.kinase_classification"

	err := parser.ParseTSV(ctx, run.Source, parser.TableOptions{
		Header:   KinaseClassificationHeader,
		Progress: run.Lines(run.Source),
	}, func(rec parser.Record) error {
		return run.Handle(im.parseRecord(run, rec), rec.String())
	})
	return errors.Wrap(op, err)
}

func (im *kinaseClassification) parseRecord(run *Run, rec parser.Record) error {
	const op errors.Op = "import.kinase_classification"

	line := rec.Fields
	if len(line) != len(KinaseClassificationHeader) {
		return malformed(op, "expected %d columns, got %d", len(KinaseClassificationHeader), len(line))
	}
	family, subfamily, kinaseName := line[3], line[4], line[6]

	clean := family
	if subfamily != "" {
		clean = family + "_" + subfamily
	}
	if line[8] != clean {
		return malformed(op, "group.clean %q does not match family %q and subfamily %q", line[8], family, subfamily)
	}

	kinase, created := run.Resolver.Kinase(kinaseName)
	if created {
		run.Stats.Count("new_kinases", 1)
	}
	group, created := run.Resolver.KinaseGroup(family)
	if created {
		run.Stats.Count("new_groups", 1)
	}
	if !group.HasKinase(kinase) {
		group.Kinases = append(group.Kinases, kinase)
		run.Stats.Created++
	}
	return nil
}

func (im *kinaseClassification) Insert(ctx context.Context, run *Run) error {
	if err := database.InsertKinases(ctx, run.Tx, run.Resolver.Kinases.Values()); err != nil {
		return err
	}
	groups := run.Resolver.Groups.Values()
	if err := database.InsertKinaseGroups(ctx, run.Tx, groups); err != nil {
		return err
	}
	_, err := database.InsertGroupMembers(ctx, run.Tx, groups)
	return err
}
