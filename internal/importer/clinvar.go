package importer

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/nishad/ptmdb/internal/database"
	"github.com/nishad/ptmdb/internal/errors"
	"github.com/nishad/ptmdb/internal/models"
	"github.com/nishad/ptmdb/internal/parser"
)

// ClinvarHeader is the header of the ANNOVAR annotated ClinVar table.
var ClinvarHeader = []string{
	"Chr", "Start", "End", "Ref", "Alt", "Func.refGene", "Gene.refGene",
	"GeneDetail.refGene", "ExonicFunc.refGene", "AAChange.refGene", "V11",
	"V12", "V13", "V14", "V15", "V16", "V17", "V18", "V19", "V20", "V21",
}

// Disease labels ClinVar uses when there is nothing to say.
var diseasePlaceholders = map[string]bool{
	"not_specified": true,
	"not provided":  true,
}

const noCriteria = "no_criteria"

var (
	clinvarKeys = []string{"RS", "MUT", "VLD", "PMC", "CLNSIG", "CLNDBN", "CLNREVSTAT"}
	aaChange    = regexp.MustCompile(`^p\.([A-Z])(\d+)([A-Z*])$`)
)

// BeautifyDiseaseName undoes the escaping of ClinVar disease names.
func BeautifyDiseaseName(name string) string {
	return strings.ReplaceAll(strings.ReplaceAll(name, `\x2c`, ","), "_", " ")
}

// ParseMetadata reads the `;` separated KEY=value column into the known
// keys. Keys without a value are flags and map to "".
func ParseMetadata(column string) map[string]string {
	wanted := make(map[string]bool, len(clinvarKeys))
	for _, k := range clinvarKeys {
		wanted[k] = true
	}
	meta := make(map[string]string)
	for _, entry := range strings.Split(column, ";") {
		key, value, _ := strings.Cut(entry, "=")
		if wanted[key] {
			meta[key] = value
		}
	}
	return meta
}

func splitEntries(meta map[string]string, key string) []string {
	v, ok := meta[key]
	if !ok || v == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(v, "|", ","), ",")
}

type genomicKey struct {
	chrom, start, end, ref, alt string
}

type clinicalAnnotation struct {
	sigCode   *int
	name      string
	disease   *models.Disease
	revStatus *string
}

type inheritedRecord struct {
	id         int64
	mutation   *models.Mutation
	inherited  models.InheritedMutation
	annotation []clinicalAnnotation
}

// clinvar loads inherited mutations with their clinical significance per
// disease. Variants with only placeholder diseases are left out.
type clinvar struct {
	records        []*inheritedRecord
	byMutation     map[*models.Mutation]bool
	seen           map[genomicKey]bool
	newDiseases    []*models.Disease
	nextInherited  int64
	highestDisease int64
}

func (im *clinvar) Parse(ctx context.Context, run *Run) error {
	const op errors.Op = "import.clinvar"

	var err error
	if im.nextInherited, err = database.HighestID(ctx, run.Tx, "inherited_mutations"); err != nil {
		return err
	}
	if im.highestDisease, err = database.HighestID(ctx, run.Tx, "diseases"); err != nil {
		return err
	}
	im.byMutation = make(map[*models.Mutation]bool)
	im.seen = make(map[genomicKey]bool)

	err = parser.ParseTSV(ctx, run.Source, parser.TableOptions{
		Header:   ClinvarHeader,
		Progress: run.Lines(run.Source),
	}, func(rec parser.Record) error {
		return run.Handle(im.parseRecord(run, rec), rec.String())
	})
	if err != nil {
		return errors.Wrap(op, err)
	}
	run.Stats.Created = int64(len(im.records))
	run.Stats.Count("new_diseases", int64(len(im.newDiseases)))
	return nil
}

func (im *clinvar) parseRecord(run *Run, rec parser.Record) error {
	const op errors.Op = "import.clinvar"

	line := rec.Fields
	if len(line) != len(ClinvarHeader) {
		return malformed(op, "expected %d columns, got %d", len(ClinvarHeader), len(line))
	}
	meta := ParseMetadata(line[20])

	names := splitEntries(meta, "CLNDBN")
	statuses := splitEntries(meta, "CLNREVSTAT")
	significances := splitEntries(meta, "CLNSIG")

	count := max(len(names), len(statuses), len(significances))
	for _, entries := range [][]string{names, statuses, significances} {
		if entries != nil && len(entries) != count {
			return malformed(op, "sub-entry counts differ: %d names, %d statuses, %d significances",
				len(names), len(statuses), len(significances))
		}
	}

	significant := false
	for _, name := range names {
		if !diseasePlaceholders[name] {
			significant = true
		}
	}
	if !significant {
		run.Stats.Count("without_disease", 1)
		return nil
	}

	annotations := make([]clinicalAnnotation, 0, count)
	for i := 0; i < count; i++ {
		if diseasePlaceholders[names[i]] {
			continue
		}
		var a clinicalAnnotation
		if significances != nil {
			sig, err := strconv.Atoi(significances[i])
			if err != nil {
				return malformed(op, "bad significance %q", significances[i])
			}
			a.sigCode = &sig
		}
		if statuses != nil && statuses[i] != noCriteria {
			status := statuses[i]
			a.revStatus = &status
		}
		a.name = BeautifyDiseaseName(names[i])
		annotations = append(annotations, a)
	}

	inherited := models.InheritedMutation{}
	if rs, ok := meta["RS"]; ok && rs != "" {
		id, err := strconv.ParseInt(rs, 10, 64)
		if err != nil {
			return malformed(op, "bad RS %q", rs)
		}
		inherited.DBSNPID = &id
	}
	_, inherited.IsLowFreqVariation = meta["MUT"]
	_, inherited.IsValidated = meta["VLD"]
	_, inherited.IsInPubmedCentral = meta["PMC"]

	key := genomicKey{line[0], line[1], line[2], line[3], line[4]}
	if im.seen[key] {
		run.Stats.Count("duplicates", 1)
		return nil
	}
	im.seen[key] = true

	mutations := im.mutations(run, line[9])
	if len(mutations) == 0 {
		run.Stats.Count("without_mutation", 1)
		return nil
	}
	for i := range annotations {
		annotations[i].disease = im.disease(run, annotations[i].name)
	}

	for _, mutation := range mutations {
		if im.byMutation[mutation] {
			run.Stats.Count("duplicates", 1)
			continue
		}
		im.byMutation[mutation] = true
		im.nextInherited++
		im.records = append(im.records, &inheritedRecord{
			id:         im.nextInherited,
			mutation:   mutation,
			inherited:  inherited,
			annotation: annotations,
		})
	}
	return nil
}

// disease returns the disease of the given name. New diseases get their
// id right away so clinical data can be bulk inserted.
func (im *clinvar) disease(run *Run, name string) *models.Disease {
	d, created := run.Resolver.Disease(name)
	if created {
		im.highestDisease++
		d.ID = im.highestDisease
		im.newDiseases = append(im.newDiseases, d)
	}
	return d
}

// mutations resolves the comma separated GENE:REFSEQ:exon:c.X:p.A123B
// annotations of a variant to protein level substitutions.
func (im *clinvar) mutations(run *Run, column string) []*models.Mutation {
	const op errors.Op = "import.clinvar"

	var found []*models.Mutation
	for _, change := range strings.Split(column, ",") {
		parts := strings.Split(change, ":")
		if len(parts) != 5 {
			continue
		}
		m := aaChange.FindStringSubmatch(parts[4])
		if m == nil {
			run.Stats.Count("not_substitution", 1)
			continue
		}
		refseq, ref, alt := parts[1], m[1], m[3]
		position, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}

		protein, ok := run.Resolver.Protein(refseq)
		if !ok {
			run.Skip(missing(op, "no protein %s", refseq), change)
			continue
		}
		if residue, ok := protein.ResidueAt(position); !ok || string(residue) != ref {
			run.Skip(missing(op, "%s has no %s at %d", refseq, ref, position), change)
			continue
		}

		mutation, created := run.Resolver.Mutation(protein, position, alt)
		if created {
			run.Stats.Count("new_mutations", 1)
		}
		found = append(found, mutation)
	}
	return found
}

func (im *clinvar) Insert(ctx context.Context, run *Run) error {
	if err := database.InsertMutations(ctx, run.Tx, run.Resolver.Mutations.Values()); err != nil {
		return err
	}

	diseases := make([][]any, len(im.newDiseases))
	for i, d := range im.newDiseases {
		diseases[i] = []any{d.ID, d.Name}
	}
	if _, err := database.BulkInsert(ctx, run.Tx, "diseases", []string{"id", "name"}, diseases); err != nil {
		return err
	}

	var inherited, clinical [][]any
	for _, r := range im.records {
		inherited = append(inherited, []any{
			r.id, r.mutation.ID, r.inherited.DBSNPID,
			r.inherited.IsLowFreqVariation, r.inherited.IsValidated, r.inherited.IsInPubmedCentral,
		})
		for _, a := range r.annotation {
			clinical = append(clinical, []any{r.id, a.sigCode, a.disease.ID, a.revStatus})
		}
	}
	if _, err := database.BulkInsert(ctx, run.Tx, "inherited_mutations",
		[]string{"id", "mutation_id", "db_snp_id", "is_low_freq_variation", "is_validated", "is_in_pubmed_central"},
		inherited); err != nil {
		return err
	}
	n, err := database.BulkInsert(ctx, run.Tx, "clinical_data",
		[]string{"inherited_id", "sig_code", "disease_id", "rev_status"}, clinical)
	run.Stats.Count("clinical_data", n)
	return err
}
