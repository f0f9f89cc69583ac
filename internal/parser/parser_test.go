package parser

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/nishad/ptmdb/internal/errors"
	"github.com/nishad/ptmdb/internal/testutil"
)

func TestParseTSVHeader(t *testing.T) {
	dir := t.TempDir()
	header := []string{"gene", "position", "residue"}
	path := testutil.WriteFile(t, dir, "sites.tsv", testutil.Lines(
		"# exported from R",
		"gene\tposition\tresidue",
		"NM_1\t12\tS",
		"",
		"NM_2\t7\tT",
	))

	var records []Record
	err := ParseTSV(context.Background(), path, TableOptions{Header: header}, func(r Record) error {
		records = append(records, r)
		return nil
	})
	testutil.RequireNoError(t, err, "ParseTSV")

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	testutil.AssertEqual(t, records[0].Fields[0], "NM_1", "first refseq")
	testutil.AssertEqual(t, records[0].Line, int64(3), "line number of first record")
	testutil.AssertEqual(t, records[1].Fields[2], "T", "residue of second record")
}

func TestParseTSVHeaderMismatch(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "sites.tsv", testutil.Lines(
		"gene\tpos\tresidue",
		"NM_1\t12\tS",
	))

	called := false
	err := ParseTSV(context.Background(), path, TableOptions{Header: []string{"gene", "position", "residue"}}, func(Record) error {
		called = true
		return nil
	})
	if !errors.IsKind(err, errors.KindSchema) {
		t.Fatalf("expected schema error, got %v", err)
	}
	if called {
		t.Error("no record should be delivered after a header mismatch")
	}
}

func TestParseTSVEmptyFileWithHeader(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "empty.tsv", "")
	err := ParseTSV(context.Background(), path, TableOptions{Header: []string{"a"}}, func(Record) error { return nil })
	if !errors.IsKind(err, errors.KindSchema) {
		t.Errorf("missing header should be a schema error, got %v", err)
	}
}

func TestParseTSVKeepsEmptyFields(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "t.tsv", "a\t\tc\t\n")
	var fields []string
	err := ParseTSV(context.Background(), path, TableOptions{}, func(r Record) error {
		fields = r.Fields
		return nil
	})
	testutil.RequireNoError(t, err, "ParseTSV")
	if len(fields) != 4 || fields[1] != "" || fields[3] != "" {
		t.Errorf("unexpected fields %q", fields)
	}
}

func TestParseTSVGzip(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteGzipFile(t, dir, "clinvar.txt.gz", testutil.TSV(
		[]string{"Chr", "Start"},
		[]string{"1", "100"},
		[]string{"2", "200"},
	))

	var starts []string
	err := ParseTSV(context.Background(), path, TableOptions{Header: []string{"Chr", "Start"}}, func(r Record) error {
		starts = append(starts, r.Fields[1])
		return nil
	})
	testutil.RequireNoError(t, err, "ParseTSV on gzip")
	testutil.AssertEqual(t, strings.Join(starts, ","), "100,200", "starts")
}

func TestParseTSVCallbackError(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "t.tsv", testutil.Lines("a", "b", "c"))
	stop := errors.New("stop")
	seen := 0
	err := ParseTSV(context.Background(), path, TableOptions{}, func(Record) error {
		seen++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("callback error should propagate, got %v", err)
	}
	testutil.AssertEqual(t, seen, 1, "records seen before abort")
}

func TestParseTSVCancelled(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 2*checkEvery; i++ {
		b.WriteString("x\n")
	}
	path := testutil.WriteFile(t, t.TempDir(), "big.tsv", b.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ParseTSV(ctx, path, TableOptions{}, func(Record) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestParseCSV(t *testing.T) {
	header := []string{"", "gene", "p", "fdr", "n_pSNVs", "cancer_type", "is_cancer_gene"}
	path := testutil.WriteFile(t, t.TempDir(), "lists.csv", testutil.Lines(
		`"","gene","p","fdr","n_pSNVs","cancer_type","is_cancer_gene"`,
		`"1","TP53",1e-10,2e-8,120,"PAN",TRUE`,
		`"2","KRAS, variant",0.01,0.05,3,"BRCA",FALSE`,
	))

	var rows [][]string
	err := ParseCSV(context.Background(), path, TableOptions{Header: header}, func(r Record) error {
		rows = append(rows, r.Fields)
		return nil
	})
	testutil.RequireNoError(t, err, "ParseCSV")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	testutil.AssertEqual(t, rows[1][1], "KRAS, variant", "quoted field")
	testutil.AssertEqual(t, rows[0][5], "PAN", "cancer type")
}

func TestParseFASTA(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "proteins.fa", testutil.Lines(
		">NM_1",
		"MSSA",
		"KK*",
		">NM_2 some description",
		"MV*",
		">NM_3",
	))

	var records []FASTARecord
	err := ParseFASTA(context.Background(), path, nil, func(r FASTARecord) error {
		records = append(records, r)
		return nil
	})
	testutil.RequireNoError(t, err, "ParseFASTA")

	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	testutil.AssertEqual(t, records[0].ID, "NM_1", "first id")
	testutil.AssertEqual(t, records[0].Sequence, "MSSAKK*", "multi-line sequence")
	testutil.AssertEqual(t, records[1].ID, "NM_2", "id stops at whitespace")
	testutil.AssertEqual(t, records[1].Header, "NM_2 some description", "header kept")
	testutil.AssertEqual(t, records[2].Sequence, "", "empty trailing record")
}

func TestParseText(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "tree.txt", testutil.Lines(
		"IPR000008::C2 domain::",
		"",
		"--IPR014705::Syntaxin-binding::",
	))
	var lines []int64
	err := ParseText(context.Background(), path, nil, func(line int64, text string) error {
		lines = append(lines, line)
		return nil
	})
	testutil.RequireNoError(t, err, "ParseText")
	if len(lines) != 2 || lines[1] != 3 {
		t.Errorf("expected lines [1 3], got %v", lines)
	}
}

func TestCountLines(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    int64
	}{
		{"empty", "", 0},
		{"trailing newline", "a\nb\n", 2},
		{"no trailing newline", "a\nb", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteFile(t, dir, tt.name+".txt", tt.content)
			got, err := CountLines(path)
			testutil.RequireNoError(t, err, "CountLines")
			testutil.AssertEqual(t, got, tt.want, "line count")
		})
	}

	gz := testutil.WriteGzipFile(t, dir, "lines.gz", "1\n2\n3\n")
	got, err := CountLines(gz)
	testutil.RequireNoError(t, err, "CountLines gzip")
	testutil.AssertEqual(t, got, int64(3), "gzip line count")
}

func TestParseInterproXML(t *testing.T) {
	xmlBody := `<?xml version="1.0" encoding="UTF-8"?>
<interprodb>
  <release><dbinfo dbname="INTERPRO" version="60.0"/></release>
  <interpro id="IPR000001" protein_count="3" short_name="Kringle" type="Domain">
    <name>Kringle</name>
    <abstract><p>Kringles are <i>autonomous</i> structural domains.</p></abstract>
    <member_list><db_xref db="PFAM" dbkey="PF00051" name="Kringle"/></member_list>
  </interpro>
  <interpro id="IPR000003" short_name="Retinoid-X_rcpt" type="Family">
    <name>Retinoid X receptor</name>
  </interpro>
</interprodb>
`
	path := testutil.WriteGzipFile(t, t.TempDir(), "interpro.xml.gz", xmlBody)

	var entries []InterproEntry
	err := ParseInterproXML(context.Background(), path, func(e InterproEntry) error {
		entries = append(entries, e)
		return nil
	})
	testutil.RequireNoError(t, err, "ParseInterproXML")

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	testutil.AssertEqual(t, entries[0].ID, "IPR000001", "first id")
	testutil.AssertEqual(t, entries[0].Type, "Domain", "first type")
	testutil.AssertEqual(t, entries[0].Name, "Kringle", "first name")
	testutil.AssertEqual(t, entries[1].Type, "Family", "second type")
	testutil.AssertEqual(t, entries[1].ShortName, "Retinoid-X_rcpt", "second short name")
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open("/nonexistent/file.tsv")
	if !errors.IsKind(err, errors.KindIO) {
		t.Errorf("expected io error, got %v", err)
	}
}

func TestOpenDetectsGzipByContent(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
		want string
	}{
		{"gzip without suffix", testutil.WriteGzipFile(t, dir, "refGene.txt", "NM_1\tTP53\n"), "NM_1\tTP53\n"},
		{"plain with gz suffix", testutil.WriteFile(t, dir, "plain.txt.gz", "NM_2\tAKT1\n"), "NM_2\tAKT1\n"},
		{"single byte", testutil.WriteFile(t, dir, "short.txt", "x"), "x"},
		{"empty", testutil.WriteFile(t, dir, "empty.txt", ""), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Open(tt.path)
			testutil.RequireNoError(t, err, "Open")
			defer r.Close()
			data, err := io.ReadAll(r)
			testutil.RequireNoError(t, err, "read")
			testutil.AssertEqual(t, string(data), tt.want, "content")
		})
	}
}
