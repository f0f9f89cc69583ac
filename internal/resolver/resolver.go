package resolver

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/nishad/ptmdb/internal/database"
	"github.com/nishad/ptmdb/internal/errors"
	"github.com/nishad/ptmdb/internal/models"
)

// Resolver holds one index per shared entity. It is created for an import
// run, handed to every importer of that run and filled from the store on
// demand. Importers go through it for every cross reference, so a natural
// key met twice always yields the same object and at most one new row.
type Resolver struct {
	Genes     *Index[string, *models.Gene]
	Proteins  *Index[string, *models.Protein]
	Interpro  *Index[string, *models.InterproDomain]
	Kinases   *Index[string, *models.Kinase]
	Groups    *Index[string, *models.KinaseGroup]
	Cancers   *Index[string, *models.Cancer]
	Diseases  *Index[string, *models.Disease]
	Mutations *Index[models.MutationKey, *models.Mutation]
}

// New creates a resolver with empty, unloaded indexes.
func New() *Resolver {
	return &Resolver{
		Genes:     NewIndex[string, *models.Gene](),
		Proteins:  NewIndex[string, *models.Protein](),
		Interpro:  NewIndex[string, *models.InterproDomain](),
		Kinases:   NewIndex[string, *models.Kinase](),
		Groups:    NewIndex[string, *models.KinaseGroup](),
		Cancers:   NewIndex[string, *models.Cancer](),
		Diseases:  NewIndex[string, *models.Disease](),
		Mutations: NewIndex[models.MutationKey, *models.Mutation](),
	}
}

// Reset drops every cached entity. The next Hydrate reads everything
// again from the store.
func (r *Resolver) Reset() {
	r.Genes.Reset()
	r.Proteins.Reset()
	r.Interpro.Reset()
	r.Kinases.Reset()
	r.Groups.Reset()
	r.Cancers.Reset()
	r.Diseases.Reset()
	r.Mutations.Reset()
}

// Invalidate forgets what was cached from the given tables, typically
// right after they were emptied.
func (r *Resolver) Invalidate(tables ...string) {
	for _, table := range tables {
		switch table {
		case "genes", "proteins":
			// kinases and mutations point into the protein index
			r.Reset()
			return
		case "interpro_domains":
			r.Interpro.Reset()
			r.clearDomains()
		case "domains":
			r.clearDomains()
		case "kinases":
			r.Kinases.Reset()
			r.clearGroupMembers()
		case "kinase_groups":
			r.Groups.Reset()
		case "kinase_group_members":
			r.clearGroupMembers()
		case "cancers":
			r.Cancers.Reset()
		case "diseases":
			r.Diseases.Reset()
		case "mutations":
			r.Mutations.Reset()
		case "protein_references":
			for _, p := range r.Proteins.Values() {
				p.References = nil
			}
		}
	}
}

func (r *Resolver) clearDomains() {
	for _, p := range r.Proteins.Values() {
		p.Domains = nil
	}
}

func (r *Resolver) clearGroupMembers() {
	for _, g := range r.Groups.Values() {
		g.Kinases = nil
	}
}

// Hydrate loads every index that does not mirror the store yet.
func (r *Resolver) Hydrate(ctx context.Context, q database.Querier) error {
	const op errors.Op = "resolver.Hydrate"

	if !r.Genes.Loaded() {
		genes, err := database.LoadGenes(ctx, q)
		if err != nil {
			return errors.Wrap(op, err)
		}
		r.Genes.Reset()
		r.Proteins.Reset()
		for _, g := range genes {
			r.Genes.Put(g.Key(), g)
			for _, p := range g.Isoforms {
				r.Proteins.Put(p.Refseq, p)
			}
		}
		r.Genes.loaded = true
		r.Proteins.loaded = true
		log.Debug("resolver loaded genes", "genes", r.Genes.Len(), "proteins", r.Proteins.Len())
	}

	if !r.Interpro.Loaded() {
		domains, err := database.LoadInterproDomains(ctx, q)
		if err != nil {
			return errors.Wrap(op, err)
		}
		fill(r.Interpro, domains, func(d *models.InterproDomain) string { return d.Accession })
	}

	if !r.Kinases.Loaded() {
		kinases, err := database.LoadKinases(ctx, q, r.ProteinsByID())
		if err != nil {
			return errors.Wrap(op, err)
		}
		fill(r.Kinases, kinases, func(k *models.Kinase) string { return k.Name })
	}

	if !r.Groups.Loaded() {
		groups, err := database.LoadKinaseGroups(ctx, q)
		if err != nil {
			return errors.Wrap(op, err)
		}
		fill(r.Groups, groups, func(g *models.KinaseGroup) string { return g.Name })
	}

	if !r.Cancers.Loaded() {
		cancers, err := database.LoadCancers(ctx, q)
		if err != nil {
			return errors.Wrap(op, err)
		}
		fill(r.Cancers, cancers, func(c *models.Cancer) string { return c.Name })
	}

	if !r.Diseases.Loaded() {
		diseases, err := database.LoadDiseases(ctx, q)
		if err != nil {
			return errors.Wrap(op, err)
		}
		fill(r.Diseases, diseases, func(d *models.Disease) string { return d.Name })
	}

	if !r.Mutations.Loaded() {
		mutations, err := database.LoadMutations(ctx, q, r.ProteinsByID())
		if err != nil {
			return errors.Wrap(op, err)
		}
		fill(r.Mutations, mutations, (*models.Mutation).Key)
	}
	return nil
}

func fill[K comparable, T any](ix *Index[K, T], items []T, key func(T) K) {
	ix.Reset()
	for _, item := range items {
		ix.Put(key(item), item)
	}
	ix.loaded = true
}

// ProteinsByID maps the ids of stored proteins to the cached objects.
func (r *Resolver) ProteinsByID() map[int64]*models.Protein {
	byID := make(map[int64]*models.Protein, r.Proteins.Len())
	for _, p := range r.Proteins.Values() {
		if p.ID != 0 {
			byID[p.ID] = p
		}
	}
	return byID
}

// Gene returns the gene of the given name, compared case-insensitively,
// creating it when unknown.
func (r *Resolver) Gene(name string) (*models.Gene, bool) {
	return r.Genes.GetOrCreate(models.FoldName(name), func() *models.Gene {
		return models.NewGene(name)
	})
}

// FindGene returns the gene of the given name without creating it.
func (r *Resolver) FindGene(name string) (*models.Gene, bool) {
	return r.Genes.Get(models.FoldName(name))
}

// Protein returns the protein with the given refseq accession.
func (r *Resolver) Protein(refseq string) (*models.Protein, bool) {
	return r.Proteins.Get(refseq)
}

// AddProtein registers a new isoform of gene.
func (r *Resolver) AddProtein(gene *models.Gene, p *models.Protein) {
	gene.AddIsoform(p)
	r.Proteins.Put(p.Refseq, p)
}

// RemoveProtein detaches p from its gene and forgets it.
func (r *Resolver) RemoveProtein(p *models.Protein) {
	if p.Gene != nil {
		p.Gene.RemoveIsoform(p)
	}
	for _, k := range r.Kinases.Values() {
		if k.Protein == p {
			k.Protein = nil
		}
	}
	r.Proteins.Delete(p.Refseq)
}

// PreferredIsoform returns the preferred isoform of the named gene, or nil
// when there is no such gene or it has no preferred isoform.
func (r *Resolver) PreferredIsoform(geneName string) *models.Protein {
	if gene, ok := r.FindGene(geneName); ok {
		return gene.Preferred
	}
	return nil
}

// InterproDomain returns the InterPro domain with the given accession,
// creating it when unknown.
func (r *Resolver) InterproDomain(accession string) (*models.InterproDomain, bool) {
	return r.Interpro.GetOrCreate(accession, func() *models.InterproDomain {
		return &models.InterproDomain{Accession: accession}
	})
}

// Kinase returns the kinase of the given name. A new kinase points to the
// preferred isoform of the gene of the same name, if there is one.
func (r *Resolver) Kinase(name string) (*models.Kinase, bool) {
	return r.Kinases.GetOrCreate(name, func() *models.Kinase {
		return &models.Kinase{Name: name, Protein: r.PreferredIsoform(name)}
	})
}

// KinaseGroup returns the kinase group of the given name, creating it when
// unknown.
func (r *Resolver) KinaseGroup(name string) (*models.KinaseGroup, bool) {
	return r.Groups.GetOrCreate(name, func() *models.KinaseGroup {
		return &models.KinaseGroup{Name: name}
	})
}

// Cancer returns the cancer of the given name, creating it when unknown.
func (r *Resolver) Cancer(name string) (*models.Cancer, bool) {
	return r.Cancers.GetOrCreate(name, func() *models.Cancer {
		return &models.Cancer{Name: name}
	})
}

// Disease returns the disease of the given name, creating it when unknown.
func (r *Resolver) Disease(name string) (*models.Disease, bool) {
	return r.Diseases.GetOrCreate(name, func() *models.Disease {
		return &models.Disease{Name: name}
	})
}

// Mutation returns the substitution to alt at position of p, creating it
// when unknown.
func (r *Resolver) Mutation(p *models.Protein, position int, alt string) (*models.Mutation, bool) {
	key := models.MutationKey{Refseq: p.Refseq, Position: position, Alt: alt}
	return r.Mutations.GetOrCreate(key, func() *models.Mutation {
		return &models.Mutation{Protein: p, Position: position, Alt: alt}
	})
}
