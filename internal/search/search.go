// Package search indexes genes by the identifiers users look them up by:
// symbols, transcript refseqs, UniProt accessions and protein refseqs.
package search

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/nishad/ptmdb/internal/models"
)

// Feature names a gene identifier the index can be searched by.
type Feature string

const (
	FeatureSymbol    Feature = "symbol"
	FeatureRefseq    Feature = "refseq"
	FeatureUniprot   Feature = "uniprot"
	FeatureProteinNP Feature = "protein_np"
)

// Features lists every feature in a stable order.
var Features = []Feature{FeatureSymbol, FeatureRefseq, FeatureUniprot, FeatureProteinNP}

// Accessors extract the values of each feature from a gene.
var Accessors = map[Feature]func(*models.Gene) []string{
	FeatureSymbol: func(g *models.Gene) []string {
		return []string{g.Name}
	},
	FeatureRefseq: func(g *models.Gene) []string {
		return isoformValues(g, func(p *models.Protein) string { return p.Refseq })
	},
	FeatureUniprot: func(g *models.Gene) []string {
		return isoformValues(g, func(p *models.Protein) string {
			if p.References == nil {
				return ""
			}
			return p.References.UniprotAccession
		})
	},
	FeatureProteinNP: func(g *models.Gene) []string {
		return isoformValues(g, func(p *models.Protein) string {
			if p.References == nil {
				return ""
			}
			return p.References.RefseqNP
		})
	},
}

func isoformValues(g *models.Gene, value func(*models.Protein) string) []string {
	var values []string
	seen := make(map[string]bool)
	for _, p := range g.Isoforms {
		v := value(p)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	return values
}

// ParseFeature returns the feature of the given name.
func ParseFeature(name string) (Feature, error) {
	for _, f := range Features {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown search feature %q", name)
}

// exactBoost ranks a whole identifier above identifiers it is a prefix of.
const exactBoost = 2.0

// GeneMatch is a gene found by a search with the score reached for each
// feature that matched.
type GeneMatch struct {
	Gene    *models.Gene        `json:"gene"`
	Matches map[Feature]float64 `json:"matches"`
}

// Score is the best score over the matched features.
func (m GeneMatch) Score() float64 {
	var best float64
	for _, s := range m.Matches {
		best = max(best, s)
	}
	return best
}

func docID(g *models.Gene) string {
	return g.Key()
}

func document(g *models.Gene) map[string]interface{} {
	doc := map[string]interface{}{
		fieldName:   g.Name,
		fieldGeneID: float64(g.ID),
		fieldChrom:  g.Chrom,
	}
	for _, f := range Features {
		if values := Accessors[f](g); len(values) > 0 {
			doc[string(f)] = values
		}
	}
	return doc
}

// Search finds genes having an identifier that starts with phrase, case
// insensitively. Only the given features are searched, all when none is
// given. Matches are ordered by best score, then by gene name.
func (i *Index) Search(phrase string, limit int, features ...Feature) ([]GeneMatch, error) {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if limit <= 0 {
		limit = 20
	}
	if len(features) == 0 {
		features = Features
	}

	byID := make(map[string]*GeneMatch)
	for _, f := range features {
		req := bleve.NewSearchRequest(featureQuery(f, phrase))
		req.Size = limit
		req.Fields = []string{fieldName, fieldGeneID, fieldChrom}

		result, err := i.index.Search(req)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", f, err)
		}
		for _, hit := range result.Hits {
			m, ok := byID[hit.ID]
			if !ok {
				m = &GeneMatch{Gene: hitGene(hit.Fields), Matches: make(map[Feature]float64)}
				byID[hit.ID] = m
			}
			m.Matches[f] = hit.Score
		}
	}

	matches := make([]GeneMatch, 0, len(byID))
	for _, m := range byID {
		matches = append(matches, *m)
	}
	sort.Slice(matches, func(a, b int) bool {
		sa, sb := matches[a].Score(), matches[b].Score()
		if sa != sb {
			return sa > sb
		}
		return matches[a].Gene.Name < matches[b].Gene.Name
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func featureQuery(f Feature, phrase string) query.Query {
	exact := bleve.NewTermQuery(phrase)
	exact.SetField(string(f))
	exact.SetBoost(exactBoost)

	prefix := bleve.NewPrefixQuery(phrase)
	prefix.SetField(string(f))

	return bleve.NewDisjunctionQuery(exact, prefix)
}

func hitGene(fields map[string]interface{}) *models.Gene {
	g := models.NewGene("")
	if name, ok := fields[fieldName].(string); ok {
		g.Name = name
	}
	if chrom, ok := fields[fieldChrom].(string); ok {
		g.Chrom = chrom
	}
	switch id := fields[fieldGeneID].(type) {
	case float64:
		g.ID = int64(id)
	case string:
		g.ID, _ = strconv.ParseInt(id, 10, 64)
	}
	return g
}
