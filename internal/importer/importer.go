// Package importer holds one importer per source file of the database.
//
// Every importer works in two phases inside the transaction opened for it:
// Parse reads the source and builds entities through the run's resolver,
// Insert writes what Parse built. Records that cannot be used are skipped
// and counted; schema drift and store failures abort the importer.
package importer

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/nishad/ptmdb/internal/config"
	"github.com/nishad/ptmdb/internal/database"
	"github.com/nishad/ptmdb/internal/errors"
	"github.com/nishad/ptmdb/internal/parser"
	"github.com/nishad/ptmdb/internal/resolver"
)

// Importer loads one source into the store.
type Importer interface {
	Parse(ctx context.Context, run *Run) error
	Insert(ctx context.Context, run *Run) error
}

// ProgressFunc receives the number of lines of file read so far. total is
// zero when it is not known.
type ProgressFunc func(file string, done, total int64)

// Stats counts what an importer did.
type Stats struct {
	Removed  int64
	Created  int64
	Updated  int64
	Skipped  int64
	Counters map[string]int64
}

// Count adds n to the named counter.
func (s *Stats) Count(name string, n int64) {
	if s.Counters == nil {
		s.Counters = make(map[string]int64)
	}
	s.Counters[name] += n
}

// Get returns the value of the named counter.
func (s *Stats) Get(name string) int64 {
	return s.Counters[name]
}

// Run is what one importer sees of the import run: the shared resolver, the
// open transaction and its own source.
type Run struct {
	Name     string
	Source   string
	Resolver *resolver.Resolver
	Tx       database.Querier
	Progress ProgressFunc
	Stats    Stats

	skips map[errors.Kind]*errors.SkipCounter
}

// NewRun prepares the run of the named importer.
func NewRun(name, source string, r *resolver.Resolver, tx database.Querier) *Run {
	return &Run{Name: name, Source: source, Resolver: r, Tx: tx}
}

// Skip counts a record that could not be used.
func (r *Run) Skip(err error, record string) {
	kind := errors.GetKind(err)
	if r.skips == nil {
		r.skips = make(map[errors.Kind]*errors.SkipCounter)
	}
	counter, ok := r.skips[kind]
	if !ok {
		counter = errors.NewSkipCounter(r.Name, kind)
		r.skips[kind] = counter
	}
	counter.Skip(err, record)
	r.Stats.Skipped++
}

// Skipped returns how many records were skipped for errors of kind.
func (r *Run) Skipped(kind errors.Kind) int64 {
	if c, ok := r.skips[kind]; ok {
		return int64(c.Count)
	}
	return 0
}

// Handle swallows per-record errors and returns the others.
func (r *Run) Handle(err error, record string) error {
	if err == nil {
		return nil
	}
	if errors.GetKind(err).Fatal() {
		return err
	}
	r.Skip(err, record)
	return nil
}

// Lines returns a parser progress callback for path.
func (r *Run) Lines(path string) parser.ProgressFunc {
	if r.Progress == nil {
		return nil
	}
	total, err := parser.CountLines(path)
	if err != nil {
		total = 0
	}
	r.Progress(path, 0, total)
	return func(lines int64) {
		r.Progress(path, lines, total)
	}
}

// Report logs the summary of the run.
func (r *Run) Report() {
	kinds := make([]errors.Kind, 0, len(r.skips))
	for kind := range r.skips {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, kind := range kinds {
		r.skips[kind].Report()
	}

	fields := []any{"removed", r.Stats.Removed, "created", r.Stats.Created,
		"updated", r.Stats.Updated, "skipped", r.Stats.Skipped}
	names := make([]string, 0, len(r.Stats.Counters))
	for name := range r.Stats.Counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fields = append(fields, name, r.Stats.Counters[name])
	}
	log.Info(fmt.Sprintf("%s imported", r.Name), fields...)
}

// malformed builds the error of an unusable record.
func malformed(op errors.Op, format string, args ...any) error {
	return errors.E(op, errors.KindMalformed, fmt.Sprintf(format, args...))
}

// missing builds the error of a record pointing nowhere.
func missing(op errors.Op, format string, args ...any) error {
	return errors.E(op, errors.KindReference, fmt.Sprintf(format, args...))
}

// countNew returns how many entities were never stored.
func countNew[T any](items []T, id func(T) int64) int64 {
	var n int64
	for _, item := range items {
		if id(item) == 0 {
			n++
		}
	}
	return n
}

// Entry registers an importer.
type Entry struct {
	Name        string
	Description string
	// Source is the file read by the importer; empty for importers that
	// only derive data already in the store.
	Source string
	// Owns lists the tables emptied before the importer runs again, in an
	// order safe for deletion.
	Owns []string
	New  func() Importer
}

// Registry returns every importer in the order they must run: proteins and
// genes first, then what refers to them.
func Registry(cfg *config.Config) []Entry {
	source := cfg.SourcePath
	return []Entry{
		{
			Name:        "proteins",
			Description: "genes and protein isoforms from refGene",
			Source:      source("proteins"),
			New:         func() Importer { return &proteins{} },
		},
		{
			Name:        "sequences",
			Description: "protein sequences (FASTA)",
			Source:      source("sequences"),
			New:         func() Importer { return &sequences{} },
		},
		{
			Name:        "preferred_isoforms",
			Description: "preferred isoform of every gene",
			New:         func() Importer { return &preferredIsoforms{} },
		},
		{
			Name:        "disorder",
			Description: "protein disorder maps (FASTA)",
			Source:      source("disorder"),
			New:         func() Importer { return &disorder{} },
		},
		{
			Name:        "domains",
			Description: "InterPro domain occurrences from biomart",
			Source:      source("domains"),
			Owns:        []string{"domains"},
			New:         func() Importer { return &domains{} },
		},
		{
			Name:        "domains_hierarchy",
			Description: "InterPro parent/child tree",
			Source:      source("domains_hierarchy"),
			New:         func() Importer { return &domainsHierarchy{} },
		},
		{
			Name:        "domains_types",
			Description: "InterPro entry types (XML)",
			Source:      source("domains_types"),
			New:         func() Importer { return &domainsTypes{} },
		},
		{
			Name:        "cancers",
			Description: "cancer types",
			Source:      source("cancers"),
			New:         func() Importer { return &cancers{} },
		},
		{
			Name:        "kinase_mappings",
			Description: "kinase to gene mappings",
			Source:      source("kinase_mappings"),
			New:         func() Importer { return &kinaseMappings{} },
		},
		{
			Name:        "sites",
			Description: "PTM sites with acting kinases",
			Source:      source("sites"),
			Owns:        []string{"site_kinase_groups", "site_kinases", "sites"},
			New:         func() Importer { return &sites{} },
		},
		{
			Name:        "kinase_classification",
			Description: "kinase groups from RegPhos",
			Source:      source("kinase_classification"),
			Owns:        []string{"kinase_group_members"},
			New:         func() Importer { return &kinaseClassification{} },
		},
		{
			Name:        "clean_proteins",
			Description: "removal of proteins with misplaced stop codons",
			New:         func() Importer { return &cleanProteins{} },
		},
		{
			Name:        "interactors",
			Description: "interactors count of every protein",
			New:         func() Importer { return &interactors{} },
		},
		{
			Name:        "gene_lists",
			Description: "cancer gene lists (ActiveDriver)",
			Source:      geneListSources(cfg),
			Owns:        []string{"gene_list_entries", "gene_lists"},
			New: func() Importer {
				return &geneLists{lists: cfg.GeneListPaths()}
			},
		},
		{
			Name:        "external_references",
			Description: "UniProt, RefSeq NP and Ensembl references",
			Source:      source("external_references"),
			Owns:        []string{"ensembl_peptides", "protein_references"},
			New:         func() Importer { return &externalReferences{} },
		},
		{
			Name:        "pathways",
			Description: "Gene Ontology and Reactome gene sets (GMT)",
			Source:      source("pathways"),
			Owns:        []string{"pathway_genes", "pathways"},
			New:         func() Importer { return &pathways{} },
		},
		{
			Name:        "clinvar",
			Description: "ClinVar inherited mutations with clinical data",
			Source:      source("clinvar"),
			Owns:        []string{"clinical_data", "inherited_mutations", "diseases"},
			New:         func() Importer { return &clinvar{} },
		},
	}
}

func geneListSources(cfg *config.Config) string {
	lists := cfg.GeneListPaths()
	if len(lists) == 1 {
		return lists[0].Path
	}
	return fmt.Sprintf("%d gene lists", len(lists))
}

// Lookup returns the registered entry of the given name.
func Lookup(entries []Entry, name string) (Entry, bool) {
	for _, e := range entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}
