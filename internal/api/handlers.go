package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/nishad/ptmdb/internal/database"
	"github.com/nishad/ptmdb/internal/models"
	"github.com/nishad/ptmdb/internal/progress"
	"github.com/nishad/ptmdb/internal/search"
)

// maxLimit caps every list endpoint.
const maxLimit = 1000

// Response shapes. Relations are tagged json:"-" on the models, so the
// responses spell out the parts each endpoint exposes.

type isoform struct {
	*models.Protein
	Length     int                       `json:"length"`
	Preferred  bool                      `json:"preferred"`
	References *models.ProteinReferences `json:"references,omitempty"`
}

type geneResponse struct {
	*models.Gene
	Isoforms []isoform `json:"isoforms"`
}

type domain struct {
	*models.Domain
	Interpro *models.InterproDomain `json:"interpro"`
}

type site struct {
	*models.Site
	Kinases []string `json:"kinases"`
	Groups  []string `json:"kinase_groups"`
}

type proteinResponse struct {
	*models.Protein
	Gene       string                    `json:"gene"`
	Length     int                       `json:"length"`
	Domains    []domain                  `json:"domains"`
	Sites      []site                    `json:"sites"`
	References *models.ProteinReferences `json:"references,omitempty"`
}

// Gene and protein handlers

func (s *Server) handleGetGene(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	g, err := database.GetGene(r.Context(), s.db, name)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	resp := geneResponse{Gene: g, Isoforms: make([]isoform, 0, len(g.Isoforms))}
	for _, p := range g.Isoforms {
		resp.Isoforms = append(resp.Isoforms, isoform{
			Protein:    p,
			Length:     p.Length(),
			Preferred:  p == g.Preferred,
			References: p.References,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetProtein(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	refseq := mux.Vars(r)["refseq"]

	p, err := database.GetProtein(ctx, s.db, refseq)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	sites, err := database.LoadSites(ctx, s.db, p)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	resp := proteinResponse{
		Protein:    p,
		Gene:       p.Gene.Name,
		Length:     p.Length(),
		Domains:    make([]domain, 0, len(p.Domains)),
		Sites:      make([]site, 0, len(sites)),
		References: p.References,
	}
	for _, d := range p.Domains {
		resp.Domains = append(resp.Domains, domain{Domain: d, Interpro: d.Interpro})
	}
	for _, st := range sites {
		out := site{Site: st, Kinases: []string{}, Groups: []string{}}
		for _, k := range st.Kinases {
			out.Kinases = append(out.Kinases, k.Name)
		}
		for _, g := range st.Groups {
			out.Groups = append(out.Groups, g.Name)
		}
		resp.Sites = append(resp.Sites, out)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// Search handler

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		s.writeError(w, http.StatusServiceUnavailable, "search is disabled")
		return
	}

	q := r.URL.Query()
	phrase := strings.TrimSpace(q.Get("q"))
	if phrase == "" {
		s.writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	limit := parseLimit(q.Get("limit"), s.limit)

	var features []search.Feature
	if names := q.Get("feature"); names != "" {
		for _, name := range strings.Split(names, ",") {
			f, err := search.ParseFeature(strings.TrimSpace(name))
			if err != nil {
				s.writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			features = append(features, f)
		}
	}

	key := fmt.Sprintf("%s|%d|%v", strings.ToLower(phrase), limit, features)
	matches, ok := s.results.Get(key)
	if !ok {
		var err error
		matches, err = s.index.Search(phrase, limit, features...)
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		s.results.Set(key, matches)
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":   phrase,
		"total":   len(matches),
		"results": matches,
	})
}

// Import history handlers

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), 10)

	runs, err := s.tracker.RecentRuns(limit)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if runs == nil {
		runs = []*progress.Run{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"total": len(runs),
	})
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	run, err := s.tracker.GetRun(id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, "no import run "+id)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// Statistics handler

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	info, err := s.db.GetInfo(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	stats := map[string]interface{}{
		"database": info,
	}
	if s.index != nil {
		if count, err := s.index.Count(); err == nil {
			stats["indexed_genes"] = count
		}
	}
	if last, err := s.tracker.LastCommitted(); err == nil {
		stats["last_imported"] = last
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func parseLimit(value string, fallback int) int {
	limit, err := strconv.Atoi(value)
	if err != nil || limit <= 0 {
		return fallback
	}
	return min(limit, maxLimit)
}
