package search

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/charmbracelet/log"
	"github.com/nishad/ptmdb/internal/models"
)

// identifierAnalyzer keeps each identifier as a single lowercased term so
// that accessions like NM_000546 are never split.
const identifierAnalyzer = "identifier"

// Stored fields used to rebuild a gene from a hit.
const (
	fieldName   = "name"
	fieldGeneID = "gene_id"
	fieldChrom  = "chrom"
)

// DefaultBatchSize is the number of genes indexed per bleve batch.
const DefaultBatchSize = 1000

// Index is a bleve index holding one document per gene.
type Index struct {
	index     bleve.Index
	path      string
	batchSize int
}

// Open opens the index at path, creating it when missing. An empty path
// gives an in-memory index.
func Open(path string, batchSize int) (*Index, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	idx := &Index{path: path, batchSize: batchSize}

	if path == "" {
		index, err := bleve.NewMemOnly(geneMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create index: %w", err)
		}
		idx.index = index
		return idx, nil
	}

	index, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(path, geneMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	idx.index = index
	return idx, nil
}

// geneMapping indexes every feature with the identifier analyzer and stores
// only what is needed to identify the gene.
func geneMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	// cannot fail: every component is registered by the imports above
	_ = indexMapping.AddCustomAnalyzer(identifierAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	})
	indexMapping.DefaultAnalyzer = identifierAnalyzer

	docMapping := bleve.NewDocumentMapping()
	docMapping.Dynamic = false
	for _, f := range Features {
		docMapping.AddFieldMappingsAt(string(f), createFeatureField())
	}
	docMapping.AddFieldMappingsAt(fieldName, createStoredField())
	docMapping.AddFieldMappingsAt(fieldChrom, createStoredField())

	geneID := bleve.NewNumericFieldMapping()
	geneID.Index = false
	geneID.Store = true
	geneID.IncludeInAll = false
	docMapping.AddFieldMappingsAt(fieldGeneID, geneID)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

func createFeatureField() *mapping.FieldMapping {
	fieldMapping := bleve.NewTextFieldMapping()
	fieldMapping.Analyzer = identifierAnalyzer
	fieldMapping.Store = false
	fieldMapping.IncludeInAll = false
	fieldMapping.IncludeTermVectors = false
	return fieldMapping
}

func createStoredField() *mapping.FieldMapping {
	fieldMapping := bleve.NewTextFieldMapping()
	fieldMapping.Analyzer = "keyword"
	fieldMapping.Index = false
	fieldMapping.Store = true
	fieldMapping.IncludeInAll = false
	return fieldMapping
}

// Rebuild drops the indexed documents and indexes the given genes.
func (i *Index) Rebuild(genes []*models.Gene) error {
	if err := i.reset(); err != nil {
		return err
	}

	batch := i.index.NewBatch()
	for n, g := range genes {
		if err := batch.Index(docID(g), document(g)); err != nil {
			return fmt.Errorf("failed to add gene %s to batch: %w", g.Name, err)
		}
		if batch.Size() >= i.batchSize || n == len(genes)-1 {
			if err := i.index.Batch(batch); err != nil {
				return fmt.Errorf("failed to index batch: %w", err)
			}
			batch.Reset()
		}
	}
	log.Debug("gene index rebuilt", "genes", len(genes), "path", i.path)
	return nil
}

func (i *Index) reset() error {
	if err := i.index.Close(); err != nil {
		return fmt.Errorf("failed to close index: %w", err)
	}
	var (
		index bleve.Index
		err   error
	)
	if i.path == "" {
		index, err = bleve.NewMemOnly(geneMapping())
	} else {
		if err := os.RemoveAll(i.path); err != nil {
			return fmt.Errorf("failed to remove index: %w", err)
		}
		index, err = bleve.New(i.path, geneMapping())
	}
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	i.index = index
	return nil
}

// Count returns the number of indexed genes.
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}

// Path returns the index location, empty for in-memory indexes.
func (i *Index) Path() string {
	return i.path
}

// Close closes the index.
func (i *Index) Close() error {
	return i.index.Close()
}
