package search

import (
	"path/filepath"
	"testing"

	"github.com/nishad/ptmdb/internal/models"
)

func gene(id int64, name string, refs ...*models.ProteinReferences) *models.Gene {
	g := models.NewGene(name)
	g.ID = id
	g.Chrom = "17"
	for _, r := range refs {
		p := &models.Protein{Refseq: r.RefseqNP, References: r}
		if r.RefseqNP != "" {
			p.Refseq = "NM" + r.RefseqNP[2:]
		}
		r.Protein = p
		g.AddIsoform(p)
	}
	return g
}

func testGenes() []*models.Gene {
	return []*models.Gene{
		gene(1, "TP53",
			&models.ProteinReferences{UniprotAccession: "P04637", RefseqNP: "NP_000537"},
			&models.ProteinReferences{UniprotAccession: "P04637", RefseqNP: "NP_001119584"}),
		gene(2, "AKT1", &models.ProteinReferences{UniprotAccession: "P31749", RefseqNP: "NP_005154"}),
		gene(3, "AKT2", &models.ProteinReferences{UniprotAccession: "P31751", RefseqNP: "NP_001617"}),
		gene(4, "NEWGENE"),
	}
}

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open("", 2)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	if err := idx.Rebuild(testGenes()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	return idx
}

func TestAccessors(t *testing.T) {
	tp53 := testGenes()[0]

	tests := []struct {
		feature Feature
		want    []string
	}{
		{FeatureSymbol, []string{"TP53"}},
		{FeatureRefseq, []string{"NM_000537", "NM_001119584"}},
		{FeatureUniprot, []string{"P04637"}},
		{FeatureProteinNP, []string{"NP_000537", "NP_001119584"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.feature), func(t *testing.T) {
			got := Accessors[tt.feature](tp53)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("value %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}

	for _, f := range Features {
		if _, ok := Accessors[f]; !ok {
			t.Errorf("no accessor for %s", f)
		}
	}
	if got := Accessors[FeatureUniprot](gene(9, "EMPTY")); len(got) != 0 {
		t.Errorf("gene without isoforms gave %v", got)
	}
}

func TestParseFeature(t *testing.T) {
	f, err := ParseFeature("protein_np")
	if err != nil || f != FeatureProteinNP {
		t.Errorf("ParseFeature(protein_np) = %q, %v", f, err)
	}
	if _, err := ParseFeature("sequence"); err == nil {
		t.Error("expected error for unknown feature")
	}
}

func TestSearch(t *testing.T) {
	idx := openTestIndex(t)

	count, err := idx.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 4 {
		t.Errorf("count = %d, want 4", count)
	}

	tests := []struct {
		name    string
		phrase  string
		want    []string
		feature Feature
	}{
		{"symbol is case insensitive", "tp53", []string{"TP53"}, FeatureSymbol},
		{"symbol prefix", "AKT", []string{"AKT1", "AKT2"}, FeatureSymbol},
		{"uniprot", "P04637", []string{"TP53"}, FeatureUniprot},
		{"uniprot prefix", "p317", []string{"AKT1", "AKT2"}, FeatureUniprot},
		{"transcript refseq", "NM_005154", []string{"AKT1"}, FeatureRefseq},
		{"protein refseq", "np_0011", []string{"TP53"}, FeatureProteinNP},
		{"no match", "BRCA", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := idx.Search(tt.phrase, 10)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(matches) != len(tt.want) {
				t.Fatalf("got %d matches, want %v", len(matches), tt.want)
			}
			for i, m := range matches {
				if m.Gene.Name != tt.want[i] {
					t.Errorf("match %d = %s, want %s", i, m.Gene.Name, tt.want[i])
				}
				if _, ok := m.Matches[tt.feature]; !ok {
					t.Errorf("match %s lacks feature %s: %v", m.Gene.Name, tt.feature, m.Matches)
				}
			}
		})
	}
}

func TestSearchRebuildsGene(t *testing.T) {
	idx := openTestIndex(t)

	matches, err := idx.Search("AKT1", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	g := matches[0].Gene
	if g.ID != 2 || g.Name != "AKT1" || g.Chrom != "17" {
		t.Errorf("unexpected gene %+v", g)
	}
	if matches[0].Score() <= 0 {
		t.Errorf("score = %f", matches[0].Score())
	}
}

func TestSearchRestrictedFeatures(t *testing.T) {
	idx := openTestIndex(t)

	// NP_ values are only reachable through protein_np
	matches, err := idx.Search("NP_", 10, FeatureSymbol, FeatureUniprot)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %d", len(matches))
	}

	matches, err = idx.Search("NP_", 2, FeatureProteinNP)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("limit not applied: %d matches", len(matches))
	}
}

func TestSearchEmptyPhrase(t *testing.T) {
	idx := openTestIndex(t)
	if _, err := idx.Search("  ", 10); err == nil {
		t.Error("expected error for empty phrase")
	}
}

func TestIndexOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genes.bleve")

	idx, err := Open(path, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := idx.Rebuild(testGenes()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	// a second rebuild replaces the documents
	if err := idx.Rebuild(testGenes()[:2]); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	idx, err = Open(path, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	count, err := idx.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}
