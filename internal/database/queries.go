package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nishad/ptmdb/internal/errors"
	"github.com/nishad/ptmdb/internal/models"
)

// Read helpers used outside of imports: the search index and the API.

// LoadProteinReferences attaches stored external references, with their
// Ensembl peptides, to the given proteins.
func LoadProteinReferences(ctx context.Context, q Querier, proteins map[int64]*models.Protein) error {
	const op errors.Op = "database.LoadProteinReferences"

	rows, err := q.QueryContext(ctx, `
		SELECT r.id, r.protein_id, COALESCE(r.uniprot_accession, ''), COALESCE(r.refseq_np, ''), e.peptide_id
		FROM protein_references r LEFT JOIN ensembl_peptides e ON e.reference_id = r.id
		ORDER BY r.id, e.id`)
	if err != nil {
		return classify(op, err, "query")
	}
	defer rows.Close()

	byID := make(map[int64]*models.ProteinReferences)
	for rows.Next() {
		var (
			ref       models.ProteinReferences
			proteinID int64
			peptide   sql.NullString
		)
		if err := rows.Scan(&ref.ID, &proteinID, &ref.UniprotAccession, &ref.RefseqNP, &peptide); err != nil {
			return classify(op, err, "scan")
		}
		p, ok := proteins[proteinID]
		if !ok {
			continue
		}
		stored, ok := byID[ref.ID]
		if !ok {
			stored = &ref
			stored.Protein = p
			p.References = stored
			byID[ref.ID] = stored
		}
		if peptide.Valid {
			stored.EnsemblPeptides = append(stored.EnsemblPeptides, peptide.String)
		}
	}
	return classify(op, rows.Err(), "iterate")
}

// LoadSearchableGenes reads every gene with its isoforms and their
// external references.
func LoadSearchableGenes(ctx context.Context, q Querier) ([]*models.Gene, error) {
	genes, err := LoadGenes(ctx, q)
	if err != nil {
		return nil, err
	}
	proteins := make(map[int64]*models.Protein)
	for _, g := range genes {
		for _, p := range g.Isoforms {
			proteins[p.ID] = p
		}
	}
	if err := LoadProteinReferences(ctx, q, proteins); err != nil {
		return nil, err
	}
	return genes, nil
}

// GetGene returns the gene of the given name, compared case-insensitively,
// with its isoforms and their references.
func GetGene(ctx context.Context, q Querier, name string) (*models.Gene, error) {
	const op errors.Op = "database.GetGene"

	var (
		g      = &models.Gene{Strand: models.StrandUnknown}
		chrom  sql.NullString
		strand sql.NullInt64
		pref   sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `SELECT id, name, chrom, strand, preferred_isoform_id FROM genes WHERE name = ?`, name).
		Scan(&g.ID, &g.Name, &chrom, &strand, &pref)
	if err == sql.ErrNoRows {
		return nil, errors.E(op, errors.KindNotFound, fmt.Sprintf("no gene %s", name))
	}
	if err != nil {
		return nil, classify(op, err, name)
	}
	g.Chrom = chrom.String
	if strand.Valid {
		g.Strand = models.Strand(strand.Int64)
	}

	proteins, err := loadProteins(ctx, q, `WHERE gene_id = ?`, g.ID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*models.Protein, len(proteins))
	for _, p := range proteins {
		g.AddIsoform(p)
		byID[p.ID] = p
		if pref.Valid && p.ID == pref.Int64 {
			g.Preferred = p
		}
	}
	if err := LoadProteinReferences(ctx, q, byID); err != nil {
		return nil, err
	}
	return g, nil
}

// GetProtein returns the protein with the given refseq, linked to its gene
// and carrying its domains and references.
func GetProtein(ctx context.Context, q Querier, refseq string) (*models.Protein, error) {
	const op errors.Op = "database.GetProtein"

	proteins, err := loadProteins(ctx, q, `WHERE refseq = ?`, refseq)
	if err != nil {
		return nil, err
	}
	if len(proteins) == 0 {
		return nil, errors.E(op, errors.KindNotFound, fmt.Sprintf("no protein %s", refseq))
	}
	p := proteins[0]

	var geneID int64
	if err := q.QueryRowContext(ctx, `SELECT gene_id FROM proteins WHERE id = ?`, p.ID).Scan(&geneID); err != nil {
		return nil, classify(op, err, "gene of "+refseq)
	}
	g := &models.Gene{ID: geneID, Strand: models.StrandUnknown}
	var chrom sql.NullString
	if err := q.QueryRowContext(ctx, `SELECT name, chrom FROM genes WHERE id = ?`, geneID).Scan(&g.Name, &chrom); err != nil {
		return nil, classify(op, err, "gene of "+refseq)
	}
	g.Chrom = chrom.String
	p.Gene = g

	if p.Domains, err = LoadDomains(ctx, q, p); err != nil {
		return nil, err
	}
	if err := LoadProteinReferences(ctx, q, map[int64]*models.Protein{p.ID: p}); err != nil {
		return nil, err
	}
	return p, nil
}

func loadProteins(ctx context.Context, q Querier, where string, args ...any) ([]*models.Protein, error) {
	const op errors.Op = "database.loadProteins"

	rows, err := q.QueryContext(ctx, `
		SELECT id, refseq, tx_start, tx_end, cds_start, cds_end, sequence, disorder_map, interactors_count
		FROM proteins `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, classify(op, err, "query")
	}
	defer rows.Close()

	var proteins []*models.Protein
	for rows.Next() {
		p := &models.Protein{}
		if err := rows.Scan(&p.ID, &p.Refseq, &p.TxStart, &p.TxEnd, &p.CdsStart, &p.CdsEnd,
			&p.Sequence, &p.DisorderMap, &p.InteractorsCount); err != nil {
			return nil, classify(op, err, "scan")
		}
		proteins = append(proteins, p)
	}
	return proteins, classify(op, rows.Err(), "iterate")
}

// LoadDomains reads the domain occurrences of p ordered by start, each with
// its InterPro domain.
func LoadDomains(ctx context.Context, q Querier, p *models.Protein) ([]*models.Domain, error) {
	const op errors.Op = "database.LoadDomains"

	rows, err := q.QueryContext(ctx, `
		SELECT d.id, d.start_position, d.end_position, i.id, i.accession,
			COALESCE(i.short_description, ''), COALESCE(i.description, ''), COALESCE(i.type, ''), COALESCE(i.level, 0)
		FROM domains d JOIN interpro_domains i ON i.id = d.interpro_id
		WHERE d.protein_id = ? ORDER BY d.start_position, d.id`, p.ID)
	if err != nil {
		return nil, classify(op, err, "query")
	}
	defer rows.Close()

	var domains []*models.Domain
	for rows.Next() {
		d := &models.Domain{Protein: p, Interpro: &models.InterproDomain{}}
		if err := rows.Scan(&d.ID, &d.Start, &d.End, &d.Interpro.ID, &d.Interpro.Accession,
			&d.Interpro.ShortDescription, &d.Interpro.Description, &d.Interpro.Type, &d.Interpro.Level); err != nil {
			return nil, classify(op, err, "scan")
		}
		domains = append(domains, d)
	}
	return domains, classify(op, rows.Err(), "iterate")
}

// LoadSites reads the sites of p ordered by position, with the kinases and
// kinase groups acting on them.
func LoadSites(ctx context.Context, q Querier, p *models.Protein) ([]*models.Site, error) {
	const op errors.Op = "database.LoadSites"

	rows, err := q.QueryContext(ctx, `
		SELECT id, position, COALESCE(residue, ''), COALESCE(type, ''), COALESCE(pmid, '')
		FROM sites WHERE protein_id = ? ORDER BY position, id`, p.ID)
	if err != nil {
		return nil, classify(op, err, "query")
	}
	var (
		sites []*models.Site
		byID  = make(map[int64]*models.Site)
	)
	for rows.Next() {
		s := &models.Site{Protein: p}
		if err := rows.Scan(&s.ID, &s.Position, &s.Residue, &s.Type, &s.PMID); err != nil {
			rows.Close()
			return nil, classify(op, err, "scan")
		}
		sites = append(sites, s)
		byID[s.ID] = s
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, classify(op, err, "iterate")
	}

	links := []struct {
		query string
		add   func(s *models.Site, id int64, name string)
	}{
		{
			`SELECT sk.site_id, k.id, k.name FROM site_kinases sk JOIN kinases k ON k.id = sk.kinase_id
			JOIN sites s ON s.id = sk.site_id WHERE s.protein_id = ? ORDER BY k.name`,
			func(s *models.Site, id int64, name string) {
				s.Kinases = append(s.Kinases, &models.Kinase{ID: id, Name: name})
			},
		},
		{
			`SELECT sg.site_id, g.id, g.name FROM site_kinase_groups sg JOIN kinase_groups g ON g.id = sg.group_id
			JOIN sites s ON s.id = sg.site_id WHERE s.protein_id = ? ORDER BY g.name`,
			func(s *models.Site, id int64, name string) {
				s.Groups = append(s.Groups, &models.KinaseGroup{ID: id, Name: name})
			},
		},
	}
	for _, link := range links {
		if err := scanLinks(ctx, q, op, link.query, p.ID, byID, link.add); err != nil {
			return nil, err
		}
	}
	return sites, nil
}

func scanLinks(ctx context.Context, q Querier, op errors.Op, query string, proteinID int64,
	sites map[int64]*models.Site, add func(*models.Site, int64, string)) error {
	rows, err := q.QueryContext(ctx, query, proteinID)
	if err != nil {
		return classify(op, err, "query links")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			siteID, id int64
			name       string
		)
		if err := rows.Scan(&siteID, &id, &name); err != nil {
			return classify(op, err, "scan link")
		}
		if s, ok := sites[siteID]; ok {
			add(s, id, name)
		}
	}
	return classify(op, rows.Err(), "iterate links")
}
