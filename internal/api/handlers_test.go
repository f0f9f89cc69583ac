package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nishad/ptmdb/internal/database"
	"github.com/nishad/ptmdb/internal/importer"
	"github.com/nishad/ptmdb/internal/orchestrator"
	"github.com/nishad/ptmdb/internal/search"
	"github.com/nishad/ptmdb/internal/testutil"
)

// setupTestServer imports the fixture dataset, indexes its genes and
// serves both. It returns the id of the import run.
func setupTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	ctx := context.Background()

	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)

	cfg := testutil.SourceConfig(t)
	testutil.WriteSources(t, cfg, nil)
	o, err := orchestrator.New(db, importer.Registry(cfg), orchestrator.Options{})
	testutil.RequireNoError(t, err, "create orchestrator")
	report, err := o.Run(ctx)
	testutil.RequireNoError(t, err, "import fixtures")
	testutil.RequireNoError(t, db.UpdateStatistics(ctx), "update statistics")

	index, err := search.Open("", 0)
	testutil.RequireNoError(t, err, "open index")
	t.Cleanup(func() { index.Close() })
	genes, err := database.LoadSearchableGenes(ctx, db)
	testutil.RequireNoError(t, err, "load genes")
	testutil.RequireNoError(t, index.Rebuild(genes), "rebuild index")

	s, err := NewServer(Config{DefaultLimit: 5}, db, index)
	testutil.RequireNoError(t, err, "create server")
	return s, report.RunID
}

func get(t *testing.T, s *Server, target string, into interface{}) int {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("%s: content type %q", target, ct)
	}
	if into != nil && w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
			t.Fatalf("%s: failed to parse response: %v", target, err)
		}
	}
	return w.Code
}

func TestGeneEndpoint(t *testing.T) {
	s, _ := setupTestServer(t)

	var resp struct {
		Name     string `json:"name"`
		Chrom    string `json:"chrom"`
		Isoforms []struct {
			Refseq     string `json:"refseq"`
			Length     int    `json:"length"`
			Preferred  bool   `json:"preferred"`
			References *struct {
				UniprotAccession string   `json:"uniprot_accession"`
				EnsemblPeptides  []string `json:"ensembl_peptides"`
			} `json:"references"`
		} `json:"isoforms"`
	}
	code := get(t, s, "/api/v1/genes/tp53", &resp)
	testutil.AssertEqual(t, code, http.StatusOK, "status")
	testutil.AssertEqual(t, resp.Name, "TP53", "name")
	testutil.AssertEqual(t, resp.Chrom, "17", "chrom")
	if len(resp.Isoforms) != 2 {
		t.Fatalf("expected 2 isoforms, got %d", len(resp.Isoforms))
	}

	first := resp.Isoforms[0]
	testutil.AssertEqual(t, first.Refseq, "NM_000546", "first isoform")
	testutil.AssertEqual(t, first.Length, 11, "length")
	testutil.AssertTrue(t, first.Preferred, "longest isoform is preferred")
	testutil.AssertFalse(t, resp.Isoforms[1].Preferred, "second isoform")
	if first.References == nil {
		t.Fatal("references missing")
	}
	testutil.AssertEqual(t, first.References.UniprotAccession, "P04637", "uniprot")
	testutil.AssertEqual(t, len(first.References.EnsemblPeptides), 2, "peptides")
}

func TestProteinEndpoint(t *testing.T) {
	s, _ := setupTestServer(t)

	var resp struct {
		Refseq  string `json:"refseq"`
		Gene    string `json:"gene"`
		Domains []struct {
			Start    int `json:"start"`
			End      int `json:"end"`
			Interpro struct {
				Accession string `json:"accession"`
				Type      string `json:"type"`
			} `json:"interpro"`
		} `json:"domains"`
		Sites []struct {
			Position int      `json:"position"`
			Kinases  []string `json:"kinases"`
		} `json:"sites"`
	}
	code := get(t, s, "/api/v1/proteins/NM_000546", &resp)
	testutil.AssertEqual(t, code, http.StatusOK, "status")
	testutil.AssertEqual(t, resp.Gene, "TP53", "gene")

	if len(resp.Domains) != 1 {
		t.Fatalf("expected the merged domain only, got %d", len(resp.Domains))
	}
	d := resp.Domains[0]
	testutil.AssertEqual(t, d.Start, 1, "start")
	testutil.AssertEqual(t, d.End, 8, "end")
	testutil.AssertEqual(t, d.Interpro.Accession, "IPR000001", "accession")
	testutil.AssertEqual(t, d.Interpro.Type, "Domain", "type")

	if len(resp.Sites) != 1 {
		t.Fatalf("expected 1 site, got %d", len(resp.Sites))
	}
	testutil.AssertEqual(t, resp.Sites[0].Position, 9, "position")
	testutil.AssertEqual(t, len(resp.Sites[0].Kinases), 2, "kinases listed once")
	testutil.AssertEqual(t, resp.Sites[0].Kinases[0], "AKT1", "kinases by name")
}

func TestNotFound(t *testing.T) {
	s, _ := setupTestServer(t)

	tests := []struct {
		name   string
		target string
	}{
		{"unknown gene", "/api/v1/genes/NOPE"},
		{"unknown protein", "/api/v1/proteins/NM_999999"},
		{"cleaned protein", "/api/v1/proteins/NM_004322"},
		{"unknown run", "/api/v1/imports/not-a-run"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertEqual(t, get(t, s, tt.target, nil), http.StatusNotFound, "status")
		})
	}
}

func TestSearchEndpoint(t *testing.T) {
	s, _ := setupTestServer(t)

	var resp struct {
		Total   int `json:"total"`
		Results []struct {
			Gene struct {
				Name string `json:"name"`
			} `json:"gene"`
			Matches map[string]float64 `json:"matches"`
		} `json:"results"`
	}
	code := get(t, s, "/api/v1/search?q=p04637", &resp)
	testutil.AssertEqual(t, code, http.StatusOK, "status")
	testutil.AssertEqual(t, resp.Total, 1, "total")
	testutil.AssertEqual(t, resp.Results[0].Gene.Name, "TP53", "gene")
	_, ok := resp.Results[0].Matches["uniprot"]
	testutil.AssertTrue(t, ok, "matched by uniprot")

	code = get(t, s, "/api/v1/search?q=NM_00&feature=refseq&limit=2", &resp)
	testutil.AssertEqual(t, code, http.StatusOK, "status")
	testutil.AssertEqual(t, resp.Total, 2, "limited")

	testutil.AssertEqual(t, get(t, s, "/api/v1/search", nil), http.StatusBadRequest, "missing q")
	testutil.AssertEqual(t, get(t, s, "/api/v1/search?q=tp&feature=sequence", nil), http.StatusBadRequest, "bad feature")

	// repeated queries are answered from the cache
	testutil.AssertEqual(t, s.results.Stats()["total"], 2, "cached responses")
	code = get(t, s, "/api/v1/search?q=P04637", &resp)
	testutil.AssertEqual(t, code, http.StatusOK, "cached status")
	testutil.AssertEqual(t, resp.Results[0].Gene.Name, "TP53", "cached gene")
	testutil.AssertEqual(t, s.results.Stats()["total"], 2, "case-insensitive cache key")
}

func TestSearchDisabled(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	s, err := NewServer(Config{}, db, nil)
	testutil.RequireNoError(t, err, "create server")
	testutil.AssertEqual(t, get(t, s, "/api/v1/search?q=tp53", nil), http.StatusServiceUnavailable, "status")
}

func TestImportsEndpoint(t *testing.T) {
	s, runID := setupTestServer(t)

	var list struct {
		Total int `json:"total"`
		Runs  []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
			Steps  []struct {
				Importer string `json:"importer"`
				State    string `json:"state"`
			} `json:"steps"`
		} `json:"runs"`
	}
	code := get(t, s, "/api/v1/imports", &list)
	testutil.AssertEqual(t, code, http.StatusOK, "status")
	testutil.AssertEqual(t, list.Total, 1, "runs")
	testutil.AssertEqual(t, list.Runs[0].ID, runID, "run id")
	testutil.AssertEqual(t, list.Runs[0].Status, "completed", "run status")
	testutil.AssertEqual(t, len(list.Runs[0].Steps), 17, "one step per importer")
	testutil.AssertEqual(t, list.Runs[0].Steps[0].Importer, "proteins", "first step")
	testutil.AssertEqual(t, list.Runs[0].Steps[0].State, "committed", "first state")

	var run struct {
		ID string `json:"id"`
	}
	code = get(t, s, "/api/v1/imports/"+runID, &run)
	testutil.AssertEqual(t, code, http.StatusOK, "status")
	testutil.AssertEqual(t, run.ID, runID, "run id")
}

func TestStatsEndpoint(t *testing.T) {
	s, _ := setupTestServer(t)

	var resp struct {
		Database struct {
			Counts map[string]int64 `json:"counts"`
		} `json:"database"`
		IndexedGenes uint64            `json:"indexed_genes"`
		LastImported map[string]string `json:"last_imported"`
	}
	code := get(t, s, "/api/v1/stats", &resp)
	testutil.AssertEqual(t, code, http.StatusOK, "status")
	testutil.AssertEqual(t, resp.Database.Counts["genes"], int64(6), "genes")
	testutil.AssertEqual(t, resp.Database.Counts["proteins"], int64(4), "proteins")
	testutil.AssertEqual(t, resp.IndexedGenes, uint64(6), "indexed genes")
	_, ok := resp.LastImported["clinvar"]
	testutil.AssertTrue(t, ok, "clinvar committed")
}

func TestHealthEndpoint(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	s, err := NewServer(Config{}, db, nil)
	testutil.RequireNoError(t, err, "create server")

	var resp map[string]interface{}
	testutil.AssertEqual(t, get(t, s, "/api/v1/health", &resp), http.StatusOK, "status")
	testutil.AssertEqual(t, resp["status"], interface{}("healthy"), "health")
}
