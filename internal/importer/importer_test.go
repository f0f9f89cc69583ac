package importer_test

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/nishad/ptmdb/internal/config"
	"github.com/nishad/ptmdb/internal/database"
	"github.com/nishad/ptmdb/internal/errors"
	"github.com/nishad/ptmdb/internal/importer"
	"github.com/nishad/ptmdb/internal/orchestrator"
	"github.com/nishad/ptmdb/internal/progress"
	"github.com/nishad/ptmdb/internal/testutil"
)

func runImport(t *testing.T, db *database.DB, cfg *config.Config, names ...string) (*orchestrator.Report, error) {
	t.Helper()
	o, err := orchestrator.New(db, importer.Registry(cfg), orchestrator.Options{})
	testutil.RequireNoError(t, err, "create orchestrator")
	return o.Run(context.Background(), names...)
}

func outcome(t *testing.T, report *orchestrator.Report, name string) *orchestrator.Outcome {
	t.Helper()
	for _, o := range report.Outcomes {
		if o.Name == name {
			return o
		}
	}
	t.Fatalf("no outcome for %s", name)
	return nil
}

func queryString(t *testing.T, db *database.DB, query string, args ...any) string {
	t.Helper()
	var s sql.NullString
	if err := db.QueryRow(query, args...).Scan(&s); err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
	return s.String
}

func TestFullImport(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	cfg := testutil.SourceConfig(t)
	testutil.WriteSources(t, cfg, nil)

	report, err := runImport(t, db, cfg)
	testutil.RequireNoError(t, err, "import")

	for _, o := range report.Outcomes {
		testutil.AssertEqual(t, o.State, progress.StateCommitted, o.Name+" state")
	}

	counts := map[string]int64{
		"genes":                6,
		"proteins":             4,
		"interpro_domains":     4,
		"domains":              3,
		"kinases":              4,
		"kinase_groups":        3,
		"kinase_group_members": 3,
		"sites":                2,
		"site_kinases":         3,
		"site_kinase_groups":   1,
		"cancers":              2,
		"mutations":            3,
		"inherited_mutations":  3,
		"diseases":             2,
		"clinical_data":        3,
		"pathways":             2,
		"pathway_genes":        6,
		"gene_lists":           1,
		"gene_list_entries":    3,
		"protein_references":   2,
		"ensembl_peptides":     3,
	}
	for table, want := range counts {
		testutil.AssertEqual(t, testutil.CountRows(t, db, table), want, table)
	}

	t.Run("proteins", func(t *testing.T) {
		o := outcome(t, report, "proteins")
		testutil.AssertEqual(t, o.Stats.Created, int64(5), "created")
		testutil.AssertEqual(t, o.Stats.Skipped, int64(1), "skipped")
		testutil.AssertEqual(t, o.Stats.Get("duplicated"), int64(1), "duplicated")
		testutil.AssertEqual(t, o.Stats.Get("duplicated_only_isoform"), int64(1), "duplicated only isoform")
		testutil.AssertEqual(t, o.Stats.Get("new_genes"), int64(4), "new genes")
		testutil.AssertEqual(t, queryString(t, db, `SELECT chrom FROM genes WHERE name = 'TP53'`), "17", "chrom")
	})

	t.Run("sequences", func(t *testing.T) {
		o := outcome(t, report, "sequences")
		testutil.AssertEqual(t, o.Stats.Created, int64(5), "created")
		testutil.AssertEqual(t, o.Stats.Skipped, int64(1), "unknown refseq")
		testutil.AssertEqual(t, queryString(t, db, `SELECT sequence FROM proteins WHERE refseq = 'NM_005163'`),
			"MSDVAIVKEGWLHKRG*", "sequence spanning two lines")
		testutil.AssertEqual(t, outcome(t, report, "disorder").Stats.Get("length_mismatch"), int64(1), "disorder mismatch")
	})

	t.Run("preferred isoforms", func(t *testing.T) {
		testutil.AssertEqual(t, queryString(t, db, `
			SELECT p.refseq FROM genes g JOIN proteins p ON p.id = g.preferred_isoform_id
			WHERE g.name = 'TP53'`), "NM_000546", "longest isoform")
		testutil.AssertEqual(t, queryString(t, db, `SELECT preferred_isoform_id FROM genes WHERE name = 'BAD'`),
			"", "gene without isoforms left")
	})

	t.Run("domains", func(t *testing.T) {
		o := outcome(t, report, "domains")
		testutil.AssertEqual(t, o.Stats.Get("merged"), int64(1), "merged")
		testutil.AssertEqual(t, o.Stats.Get("without_domains"), int64(1), "without domains")
		testutil.AssertEqual(t, o.Stats.Get("chromosome_mismatch"), int64(1), "chromosome mismatch")
		testutil.AssertEqual(t, o.Stats.Get("exceeding_length"), int64(1), "exceeding length")
		testutil.AssertEqual(t, o.Stats.Skipped, int64(2), "skipped")

		var start, end int
		err := db.QueryRow(`
			SELECT d.start_position, d.end_position FROM domains d
			JOIN proteins p ON p.id = d.protein_id WHERE p.refseq = 'NM_000546'`).Scan(&start, &end)
		testutil.RequireNoError(t, err, "query merged domain")
		if start != 1 || end != 8 {
			t.Errorf("merged domain = [%d, %d], want [1, 8]", start, end)
		}
	})

	t.Run("hierarchy and types", func(t *testing.T) {
		testutil.AssertEqual(t, queryString(t, db, `
			SELECT p.accession FROM interpro_domains d JOIN interpro_domains p ON p.id = d.parent_id
			WHERE d.accession = 'IPR000005'`), "IPR000002", "parent")
		testutil.AssertEqual(t, queryString(t, db, `SELECT level FROM interpro_domains WHERE accession = 'IPR000005'`),
			"2", "level")
		testutil.AssertEqual(t, queryString(t, db, `SELECT type FROM interpro_domains WHERE accession = 'IPR000003'`),
			"Domain", "type")
		testutil.AssertEqual(t, outcome(t, report, "domains_types").Stats.Get("unknown"), int64(1), "unknown entries")
	})

	t.Run("kinases", func(t *testing.T) {
		testutil.AssertEqual(t, queryString(t, db, `
			SELECT p.refseq FROM kinases k JOIN proteins p ON p.id = k.protein_id WHERE k.name = 'ERK2'`),
			"NM_002745", "mapped isoform")
		testutil.AssertEqual(t, outcome(t, report, "kinase_mappings").Stats.Skipped, int64(1), "unmapped gene")
		testutil.AssertEqual(t, outcome(t, report, "kinase_classification").Stats.Skipped, int64(1), "bad group.clean")
		testutil.AssertEqual(t, queryString(t, db, `
			SELECT COUNT(*) FROM kinase_group_members m JOIN kinase_groups g ON g.id = m.group_id
			WHERE g.name = 'AKT'`), "2", "AKT members")
		testutil.AssertEqual(t, queryString(t, db, `SELECT interactors_count FROM proteins WHERE refseq = 'NM_005163'`),
			"2", "kinase plus group")
	})

	t.Run("clean proteins", func(t *testing.T) {
		o := outcome(t, report, "clean_proteins")
		testutil.AssertEqual(t, o.Stats.Removed, int64(1), "removed")
		testutil.AssertEqual(t, o.Stats.Get("stop_inside"), int64(1), "stop inside")
		testutil.AssertEqual(t, queryString(t, db, `SELECT COUNT(*) FROM proteins WHERE refseq = 'NM_004322'`),
			"0", "removed isoform")
	})

	t.Run("gene lists", func(t *testing.T) {
		testutil.AssertEqual(t, queryString(t, db, `
			SELECT e.is_cancer_gene FROM gene_list_entries e JOIN genes g ON g.id = e.gene_id
			WHERE g.name = 'AKT1'`), "0", "is_cancer_gene")
		testutil.AssertEqual(t, outcome(t, report, "gene_lists").Stats.Skipped, int64(1), "bad p value")
	})

	t.Run("references and pathways", func(t *testing.T) {
		o := outcome(t, report, "external_references")
		testutil.AssertEqual(t, o.Stats.Get("redundant"), int64(1), "redundant")
		testutil.AssertEqual(t, o.Stats.Get("not_nm"), int64(1), "not NM")
		testutil.AssertEqual(t, queryString(t, db, `SELECT reactome FROM pathways WHERE description = 'Apoptosis'`),
			"109581", "reactome id")
		testutil.AssertEqual(t, queryString(t, db, `SELECT gene_ontology FROM pathways WHERE reactome IS NULL`),
			"6915", "gene ontology id")
		testutil.AssertEqual(t, queryString(t, db, `SELECT description FROM pathways WHERE gene_ontology = 6915`),
			"apoptotic process", "trimmed description")
	})

	t.Run("clinvar", func(t *testing.T) {
		o := outcome(t, report, "clinvar")
		testutil.AssertEqual(t, o.Stats.Get("without_disease"), int64(1), "placeholder only")
		testutil.AssertEqual(t, o.Stats.Get("duplicates"), int64(1), "duplicates")
		testutil.AssertEqual(t, o.Stats.Get("without_mutation"), int64(1), "without mutation")
		testutil.AssertEqual(t, o.Stats.Skipped, int64(2), "skipped")
		testutil.AssertEqual(t, queryString(t, db, `SELECT COUNT(*) FROM diseases WHERE name IN ('not specified', 'not_specified')`),
			"0", "placeholder diseases")
		testutil.AssertEqual(t, queryString(t, db, `
			SELECT c.rev_status FROM clinical_data c JOIN diseases d ON d.id = c.disease_id
			WHERE d.name = 'Proteus syndrome, somatic'`), "", "no_criteria status")
		testutil.AssertEqual(t, queryString(t, db, `
			SELECT i.is_in_pubmed_central FROM inherited_mutations i JOIN mutations m ON m.id = i.mutation_id
			WHERE m.alt = 'F'`), "1", "PMC flag")
	})
}

// dumpTable returns every row of table rendered as text, sorted.
func dumpTable(t *testing.T, db *database.DB, table string) []string {
	t.Helper()
	safeTable, err := database.SafeTableName(table)
	testutil.RequireNoError(t, err, "table name")
	rows, err := db.Query("SELECT * FROM " + safeTable)
	if err != nil {
		t.Fatalf("dump %s: %v", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	testutil.RequireNoError(t, err, "columns of "+table)
	var dump []string
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			t.Fatalf("scan %s: %v", table, err)
		}
		fields := make([]string, len(values))
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			fields[i] = fmt.Sprintf("%s=%v", columns[i], v)
		}
		dump = append(dump, strings.Join(fields, " "))
	}
	testutil.RequireNoError(t, rows.Err(), "rows of "+table)
	sort.Strings(dump)
	return dump
}

func TestImportIsIdempotent(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	cfg := testutil.SourceConfig(t)
	testutil.WriteSources(t, cfg, nil)

	_, err := runImport(t, db, cfg)
	testutil.RequireNoError(t, err, "first import")
	first := make(map[string][]string)
	for _, table := range database.EntityTables {
		first[table] = dumpTable(t, db, table)
	}

	report, err := runImport(t, db, cfg)
	testutil.RequireNoError(t, err, "second import")
	for _, table := range database.EntityTables {
		second := dumpTable(t, db, table)
		if len(second) != len(first[table]) {
			t.Errorf("%s: %d rows after second import, want %d", table, len(second), len(first[table]))
			continue
		}
		for i := range second {
			if second[i] != first[table][i] {
				t.Errorf("%s row differs:\n got  %s\n want %s", table, second[i], first[table][i])
			}
		}
	}

	o := outcome(t, report, "proteins")
	testutil.AssertEqual(t, o.Stats.Get("new_genes"), int64(0), "no new genes")
	testutil.AssertEqual(t, outcome(t, report, "clinvar").Stats.Removed, int64(8), "clinvar rows replaced")
}

func TestHeaderDriftRollsBack(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	cfg := testutil.SourceConfig(t)
	testutil.WriteSources(t, cfg, map[string]string{
		"sites": testutil.TSV(
			[]string{"refseq", "position", "residue", "enzymes", "pmid", "type"},
			[]string{"NM_000546", "9", "S", "AKT1", "12345", "phosphorylation"},
		),
	})

	_, err := runImport(t, db, cfg, "proteins", "sequences", "preferred_isoforms", "kinase_mappings")
	testutil.RequireNoError(t, err, "base import")

	report, err := runImport(t, db, cfg, "sites", "interactors")
	if err == nil {
		t.Fatal("expected schema error")
	}
	testutil.AssertTrue(t, errors.IsKind(err, errors.KindSchema), "error kind should be schema")
	testutil.AssertEqual(t, len(report.Outcomes), 1, "run stops at the failing importer")

	o := outcome(t, report, "sites")
	testutil.AssertEqual(t, o.State, progress.StateFailed, "state")
	testutil.AssertEqual(t, testutil.CountRows(t, db, "sites"), int64(0), "sites")
	testutil.AssertEqual(t, testutil.CountRows(t, db, "kinases"), int64(2), "kinases from earlier run")
}

func TestDomainMergeAmbiguity(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	cfg := testutil.SourceConfig(t)

	row := func(start, end string) []string {
		return []string{"ENSG00000141510", "ENST00000269305", "ENSP00000269305", "17", "1", "2",
			"NM_000546", "IPR000010", "Rep", "Repeat", end, start}
	}
	header := []string{"Ensembl Gene ID", "Ensembl Transcript ID", "Ensembl Protein ID", "Chromosome Name",
		"Gene Start (bp)", "Gene End (bp)", "RefSeq mRNA [e.g. NM_001195597]", "Interpro ID",
		"Interpro Short Description", "Interpro Description", "Interpro end", "Interpro start"}
	testutil.WriteSources(t, cfg, map[string]string{
		// [0,100] and [26,126] overlap by 0.74 and stay apart; [13,113]
		// overlaps both by 0.87
		"domains": testutil.TSV(header, row("0", "100"), row("26", "126"), row("13", "113"), row("5", "100")),
	})

	report, err := runImport(t, db, cfg, "proteins", "sequences", "domains")
	testutil.RequireNoError(t, err, "import")

	o := outcome(t, report, "domains")
	testutil.AssertEqual(t, o.Stats.Created, int64(2), "distinct occurrences")
	testutil.AssertEqual(t, o.Stats.Skipped, int64(1), "ambiguous candidate")
	testutil.AssertEqual(t, o.Stats.Get("merged"), int64(1), "merged")
	testutil.AssertEqual(t, testutil.CountRows(t, db, "domains"), int64(2), "domains")
	testutil.AssertEqual(t, queryString(t, db, `SELECT MIN(start_position) FROM domains`), "0", "merged start")
}

func TestHierarchyDepthJump(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	cfg := testutil.SourceConfig(t)
	testutil.WriteSources(t, cfg, map[string]string{
		"domains_hierarchy": testutil.Lines(
			"IPR000001::p53 tetramerisation::",
			"----IPR000002::Pleckstrin homology domain::",
		),
	})

	report, err := runImport(t, db, cfg, "domains_hierarchy")
	if !errors.Is(err, importer.ErrDepthJump) {
		t.Fatalf("expected ErrDepthJump, got %v", err)
	}
	testutil.AssertEqual(t, outcome(t, report, "domains_hierarchy").State, progress.StateFailed, "state")
	testutil.AssertEqual(t, testutil.CountRows(t, db, "interpro_domains"), int64(0), "rolled back")
}

func TestHierarchyStartsBelowRoot(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	cfg := testutil.SourceConfig(t)
	testutil.WriteSources(t, cfg, map[string]string{
		"domains_hierarchy": testutil.Lines(
			"--IPR000001::p53 tetramerisation::",
			"----IPR000002::Pleckstrin homology domain::",
			"IPR000003::Kinase domain::",
		),
	})

	_, err := runImport(t, db, cfg, "domains_hierarchy")
	testutil.RequireNoError(t, err, "import")

	tests := []struct {
		accession, level, parent string
	}{
		{"IPR000001", "1", ""},
		{"IPR000002", "2", "IPR000001"},
		{"IPR000003", "0", ""},
	}
	for _, tt := range tests {
		testutil.AssertEqual(t, queryString(t, db, `SELECT level FROM interpro_domains WHERE accession = ?`,
			tt.accession), tt.level, tt.accession+" level")
		testutil.AssertEqual(t, queryString(t, db, `
			SELECT p.accession FROM interpro_domains d LEFT JOIN interpro_domains p ON p.id = d.parent_id
			WHERE d.accession = ?`, tt.accession), tt.parent, tt.accession+" parent")
	}
}

func TestKinaseMappingRepoint(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	cfg := testutil.SourceConfig(t)
	testutil.WriteSources(t, cfg, nil)

	_, err := runImport(t, db, cfg, "proteins", "sequences", "preferred_isoforms", "kinase_mappings")
	testutil.RequireNoError(t, err, "first mapping")

	testutil.WriteSource(t, cfg.SourcePath("kinase_mappings"), testutil.TSV([]string{"AKT1", "TP53"}))
	report, err := runImport(t, db, cfg, "kinase_mappings")
	testutil.RequireNoError(t, err, "second mapping")

	testutil.AssertEqual(t, outcome(t, report, "kinase_mappings").Stats.Updated, int64(1), "repointed")
	testutil.AssertEqual(t, queryString(t, db, `
		SELECT p.refseq FROM kinases k JOIN proteins p ON p.id = k.protein_id WHERE k.name = 'AKT1'`),
		"NM_000546", "new isoform")
}

func TestParseGeneSetID(t *testing.T) {
	tests := []struct {
		name     string
		ontology int
		reactome int
		unknown  bool
		wantErr  bool
	}{
		{name: "GO:0008150", ontology: 8150},
		{name: "REAC:109581", reactome: 109581},
		{name: "KEGG:04110", unknown: true, wantErr: true},
		{name: "GO:abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotGO, gotReac, err := importer.ParseGeneSetID(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				testutil.AssertEqual(t, errors.Is(err, importer.ErrUnknownGeneSet), tt.unknown, "unknown gene set")
				testutil.AssertEqual(t, errors.GetKind(err), errors.KindMalformed, "kind")
				return
			}
			testutil.RequireNoError(t, err, "parse")
			if tt.ontology != 0 && (gotGO == nil || *gotGO != tt.ontology) {
				t.Errorf("gene ontology = %v, want %d", gotGO, tt.ontology)
			}
			if tt.reactome != 0 && (gotReac == nil || *gotReac != tt.reactome) {
				t.Errorf("reactome = %v, want %d", gotReac, tt.reactome)
			}
		})
	}
}

func TestClinvarHelpers(t *testing.T) {
	testutil.AssertEqual(t, importer.BeautifyDiseaseName(`Proteus_syndrome\x2c_somatic`),
		"Proteus syndrome, somatic", "beautified")

	meta := importer.ParseMetadata("RS=1042522;VLD;CLNSIG=5|2;OTHER=1")
	testutil.AssertEqual(t, meta["RS"], "1042522", "RS")
	testutil.AssertEqual(t, meta["CLNSIG"], "5|2", "CLNSIG")
	_, flagged := meta["VLD"]
	testutil.AssertTrue(t, flagged, "VLD flag")
	_, kept := meta["OTHER"]
	testutil.AssertFalse(t, kept, "unknown keys dropped")
}

func TestRunHandle(t *testing.T) {
	run := importer.NewRun("test", "", nil, nil)

	testutil.AssertNil(t, run.Handle(nil, "record"), "nil error")
	testutil.AssertNil(t, run.Handle(errors.E(errors.KindReference, "no protein"), "record"), "reference")
	testutil.AssertNil(t, run.Handle(errors.E(errors.KindMalformed, "bad"), "record"), "malformed")
	if err := run.Handle(errors.E(errors.KindSchema, "drift"), "record"); err == nil {
		t.Error("schema errors must be returned")
	}
	if err := run.Handle(errors.New("unclassified"), "record"); err == nil {
		t.Error("unclassified errors must be returned")
	}

	testutil.AssertEqual(t, run.Stats.Skipped, int64(2), "skipped")
	testutil.AssertEqual(t, run.Skipped(errors.KindReference), int64(1), "reference skips")
	testutil.AssertEqual(t, run.Skipped(errors.KindAmbiguous), int64(0), "ambiguous skips")
}

func TestRegistry(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Import.SourceDirectory = "/data"
	entries := importer.Registry(cfg)

	testutil.AssertEqual(t, len(entries), 17, "importers")
	testutil.AssertEqual(t, entries[0].Name, "proteins", "first importer")
	testutil.AssertEqual(t, entries[len(entries)-1].Name, "clinvar", "last importer")

	e, ok := importer.Lookup(entries, "domains")
	testutil.AssertTrue(t, ok, "domains registered")
	testutil.AssertEqual(t, e.Source, "/data/biomart_protein_domains_20072016.txt", "source")

	e, _ = importer.Lookup(entries, "preferred_isoforms")
	testutil.AssertEqual(t, e.Source, "", "derived importer has no source")

	for _, e := range entries {
		for _, table := range e.Owns {
			testutil.AssertTrue(t, database.AllowedTables[table], e.Name+" owns unknown table "+table)
		}
	}

	_, ok = importer.Lookup(entries, "missing")
	testutil.AssertFalse(t, ok, "unknown importer")
}
