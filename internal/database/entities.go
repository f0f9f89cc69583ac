package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nishad/ptmdb/internal/errors"
	"github.com/nishad/ptmdb/internal/models"
)

// insertEach inserts every item with one prepared statement and stores the
// generated id through setID.
func insertEach[T any](ctx context.Context, q Querier, op errors.Op, query string, items []T, args func(T) []any, setID func(T, int64)) error {
	if len(items) == 0 {
		return nil
	}
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return classify(op, err, "prepare")
	}
	defer stmt.Close()

	for _, item := range items {
		res, err := stmt.ExecContext(ctx, args(item)...)
		if err != nil {
			return classify(op, err, fmt.Sprintf("insert %v", args(item)))
		}
		if setID != nil {
			id, err := res.LastInsertId()
			if err != nil {
				return classify(op, err, "last insert id")
			}
			setID(item, id)
		}
	}
	return nil
}

// execEach runs one prepared statement for every item.
func execEach[T any](ctx context.Context, q Querier, op errors.Op, query string, items []T, args func(T) []any) error {
	return insertEach(ctx, q, op, query, items, args, nil)
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func strandValue(s models.Strand) any {
	if s == models.StrandUnknown {
		return nil
	}
	return int(s)
}

func proteinID(p *models.Protein) any {
	if p == nil {
		return nil
	}
	return nullInt(p.ID)
}

// LoadGenes reads every gene together with its isoforms. The preferred
// isoform of each gene is linked when it is one of the loaded isoforms.
func LoadGenes(ctx context.Context, q Querier) ([]*models.Gene, error) {
	const op errors.Op = "database.LoadGenes"

	rows, err := q.QueryContext(ctx, `SELECT id, name, chrom, strand, preferred_isoform_id FROM genes ORDER BY id`)
	if err != nil {
		return nil, classify(op, err, "query genes")
	}
	var (
		genes     []*models.Gene
		byID      = make(map[int64]*models.Gene)
		preferred = make(map[*models.Gene]int64)
	)
	for rows.Next() {
		var (
			g      = &models.Gene{}
			chrom  sql.NullString
			strand sql.NullInt64
			pref   sql.NullInt64
		)
		if err := rows.Scan(&g.ID, &g.Name, &chrom, &strand, &pref); err != nil {
			rows.Close()
			return nil, classify(op, err, "scan gene")
		}
		g.Chrom = chrom.String
		g.Strand = models.StrandUnknown
		if strand.Valid {
			g.Strand = models.Strand(strand.Int64)
		}
		if pref.Valid {
			preferred[g] = pref.Int64
		}
		genes = append(genes, g)
		byID[g.ID] = g
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, classify(op, err, "iterate genes")
	}

	rows, err = q.QueryContext(ctx, `
		SELECT id, refseq, gene_id, tx_start, tx_end, cds_start, cds_end,
			sequence, disorder_map, interactors_count
		FROM proteins ORDER BY id`)
	if err != nil {
		return nil, classify(op, err, "query proteins")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p      = &models.Protein{}
			geneID int64
		)
		if err := rows.Scan(&p.ID, &p.Refseq, &geneID, &p.TxStart, &p.TxEnd, &p.CdsStart, &p.CdsEnd,
			&p.Sequence, &p.DisorderMap, &p.InteractorsCount); err != nil {
			return nil, classify(op, err, "scan protein")
		}
		gene, ok := byID[geneID]
		if !ok {
			return nil, errors.E(op, errors.KindIntegrity, fmt.Sprintf("protein %s points to missing gene %d", p.Refseq, geneID))
		}
		gene.AddIsoform(p)
		if preferred[gene] == p.ID {
			gene.Preferred = p
		}
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err, "iterate proteins")
	}
	return genes, nil
}

// InsertGenes inserts the genes that have no id yet.
func InsertGenes(ctx context.Context, q Querier, genes []*models.Gene) error {
	return insertEach(ctx, q, "database.InsertGenes",
		`INSERT INTO genes (name, chrom, strand) VALUES (?, ?, ?)`,
		pending(genes, func(g *models.Gene) int64 { return g.ID }),
		func(g *models.Gene) []any { return []any{g.Name, nullString(g.Chrom), strandValue(g.Strand)} },
		func(g *models.Gene, id int64) { g.ID = id })
}

// UpdatePreferredIsoforms stores the preferred isoform of each gene.
func UpdatePreferredIsoforms(ctx context.Context, q Querier, genes []*models.Gene) error {
	return execEach(ctx, q, "database.UpdatePreferredIsoforms",
		`UPDATE genes SET preferred_isoform_id = ? WHERE id = ?`, genes,
		func(g *models.Gene) []any { return []any{proteinID(g.Preferred), g.ID} })
}

// InsertProteins inserts the proteins that have no id yet. Their genes must
// already be stored.
func InsertProteins(ctx context.Context, q Querier, proteins []*models.Protein) error {
	return insertEach(ctx, q, "database.InsertProteins", `
		INSERT INTO proteins (refseq, gene_id, tx_start, tx_end, cds_start, cds_end, sequence, disorder_map)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pending(proteins, func(p *models.Protein) int64 { return p.ID }),
		func(p *models.Protein) []any {
			return []any{p.Refseq, p.Gene.ID, p.TxStart, p.TxEnd, p.CdsStart, p.CdsEnd, p.Sequence, p.DisorderMap}
		},
		func(p *models.Protein, id int64) { p.ID = id })
}

// UpdateSequences stores the sequence of each protein.
func UpdateSequences(ctx context.Context, q Querier, proteins []*models.Protein) error {
	return execEach(ctx, q, "database.UpdateSequences",
		`UPDATE proteins SET sequence = ? WHERE id = ?`, proteins,
		func(p *models.Protein) []any { return []any{p.Sequence, p.ID} })
}

// UpdateDisorderMaps stores the disorder map of each protein.
func UpdateDisorderMaps(ctx context.Context, q Querier, proteins []*models.Protein) error {
	return execEach(ctx, q, "database.UpdateDisorderMaps",
		`UPDATE proteins SET disorder_map = ? WHERE id = ?`, proteins,
		func(p *models.Protein) []any { return []any{p.DisorderMap, p.ID} })
}

// UpdateInteractorsCounts stores the interactors count of each protein.
func UpdateInteractorsCounts(ctx context.Context, q Querier, proteins []*models.Protein) error {
	return execEach(ctx, q, "database.UpdateInteractorsCounts",
		`UPDATE proteins SET interactors_count = ? WHERE id = ?`, proteins,
		func(p *models.Protein) []any { return []any{p.InteractorsCount, p.ID} })
}

// CountInteractors returns, per protein id, the number of distinct kinases
// plus distinct kinase groups acting on the sites of the protein.
func CountInteractors(ctx context.Context, q Querier) (map[int64]int, error) {
	const op errors.Op = "database.CountInteractors"

	rows, err := q.QueryContext(ctx, `
		SELECT protein_id, COUNT(DISTINCT interactor) FROM (
			SELECT s.protein_id AS protein_id, 'k' || sk.kinase_id AS interactor
			FROM sites s JOIN site_kinases sk ON sk.site_id = s.id
			UNION ALL
			SELECT s.protein_id, 'g' || sg.group_id
			FROM sites s JOIN site_kinase_groups sg ON sg.site_id = s.id
		) GROUP BY protein_id`)
	if err != nil {
		return nil, classify(op, err, "query")
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, classify(op, err, "scan")
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// DeleteProteins removes proteins with every row depending on them:
// domains, sites and their kinase links, mutations with their clinical
// annotations and external references. Kinases and genes pointing at a
// removed protein are detached.
func DeleteProteins(ctx context.Context, q Querier, ids []int64) error {
	const op errors.Op = "database.DeleteProteins"

	statements := []string{
		`UPDATE genes SET preferred_isoform_id = NULL WHERE preferred_isoform_id = ?`,
		`UPDATE kinases SET protein_id = NULL WHERE protein_id = ?`,
		`DELETE FROM domains WHERE protein_id = ?`,
		`DELETE FROM site_kinases WHERE site_id IN (SELECT id FROM sites WHERE protein_id = ?)`,
		`DELETE FROM site_kinase_groups WHERE site_id IN (SELECT id FROM sites WHERE protein_id = ?)`,
		`DELETE FROM sites WHERE protein_id = ?`,
		`DELETE FROM clinical_data WHERE inherited_id IN (
			SELECT i.id FROM inherited_mutations i JOIN mutations m ON m.id = i.mutation_id WHERE m.protein_id = ?)`,
		`DELETE FROM inherited_mutations WHERE mutation_id IN (SELECT id FROM mutations WHERE protein_id = ?)`,
		`DELETE FROM mutations WHERE protein_id = ?`,
		`DELETE FROM ensembl_peptides WHERE reference_id IN (SELECT id FROM protein_references WHERE protein_id = ?)`,
		`DELETE FROM protein_references WHERE protein_id = ?`,
		`DELETE FROM proteins WHERE id = ?`,
	}
	for _, query := range statements {
		if err := execEach(ctx, q, op, query, ids, func(id int64) []any { return []any{id} }); err != nil {
			return err
		}
	}
	return nil
}

// LoadInterproDomains reads the InterPro domains and links their parents.
func LoadInterproDomains(ctx context.Context, q Querier) ([]*models.InterproDomain, error) {
	const op errors.Op = "database.LoadInterproDomains"

	rows, err := q.QueryContext(ctx, `
		SELECT id, accession, COALESCE(short_description, ''), COALESCE(description, ''),
			COALESCE(type, ''), COALESCE(level, 0), parent_id
		FROM interpro_domains ORDER BY id`)
	if err != nil {
		return nil, classify(op, err, "query")
	}
	defer rows.Close()

	var (
		domains []*models.InterproDomain
		byID    = make(map[int64]*models.InterproDomain)
		parents = make(map[*models.InterproDomain]int64)
	)
	for rows.Next() {
		d := &models.InterproDomain{}
		var parent sql.NullInt64
		if err := rows.Scan(&d.ID, &d.Accession, &d.ShortDescription, &d.Description, &d.Type, &d.Level, &parent); err != nil {
			return nil, classify(op, err, "scan")
		}
		if parent.Valid {
			parents[d] = parent.Int64
		}
		domains = append(domains, d)
		byID[d.ID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err, "iterate")
	}
	for d, parentID := range parents {
		d.Parent = byID[parentID]
	}
	return domains, nil
}

// SaveInterproDomains inserts the domains without id, then stores the
// descriptive fields and the tree position of all given domains.
func SaveInterproDomains(ctx context.Context, q Querier, domains []*models.InterproDomain) error {
	const op errors.Op = "database.SaveInterproDomains"

	err := insertEach(ctx, q, op,
		`INSERT INTO interpro_domains (accession) VALUES (?)`,
		pending(domains, func(d *models.InterproDomain) int64 { return d.ID }),
		func(d *models.InterproDomain) []any { return []any{d.Accession} },
		func(d *models.InterproDomain, id int64) { d.ID = id })
	if err != nil {
		return err
	}
	return execEach(ctx, q, op, `
		UPDATE interpro_domains
		SET short_description = ?, description = ?, type = ?, level = ?, parent_id = ?
		WHERE id = ?`, domains,
		func(d *models.InterproDomain) []any {
			var parent any
			if d.Parent != nil {
				parent = d.Parent.ID
			}
			return []any{nullString(d.ShortDescription), nullString(d.Description), nullString(d.Type), d.Level, parent, d.ID}
		})
}

// InsertDomains inserts domain occurrences; proteins and InterPro domains
// must already be stored.
func InsertDomains(ctx context.Context, q Querier, domains []*models.Domain) error {
	return insertEach(ctx, q, "database.InsertDomains",
		`INSERT INTO domains (protein_id, interpro_id, start_position, end_position) VALUES (?, ?, ?, ?)`,
		domains,
		func(d *models.Domain) []any { return []any{d.Protein.ID, d.Interpro.ID, d.Start, d.End} },
		func(d *models.Domain, id int64) { d.ID = id })
}

// LoadKinases reads kinases, linking them to the given proteins by id.
func LoadKinases(ctx context.Context, q Querier, proteins map[int64]*models.Protein) ([]*models.Kinase, error) {
	const op errors.Op = "database.LoadKinases"

	rows, err := q.QueryContext(ctx, `SELECT id, name, protein_id FROM kinases ORDER BY id`)
	if err != nil {
		return nil, classify(op, err, "query")
	}
	defer rows.Close()

	var kinases []*models.Kinase
	for rows.Next() {
		k := &models.Kinase{}
		var pid sql.NullInt64
		if err := rows.Scan(&k.ID, &k.Name, &pid); err != nil {
			return nil, classify(op, err, "scan")
		}
		if pid.Valid {
			k.Protein = proteins[pid.Int64]
		}
		kinases = append(kinases, k)
	}
	return kinases, rows.Err()
}

// InsertKinases inserts the kinases that have no id yet.
func InsertKinases(ctx context.Context, q Querier, kinases []*models.Kinase) error {
	return insertEach(ctx, q, "database.InsertKinases",
		`INSERT INTO kinases (name, protein_id) VALUES (?, ?)`,
		pending(kinases, func(k *models.Kinase) int64 { return k.ID }),
		func(k *models.Kinase) []any { return []any{k.Name, proteinID(k.Protein)} },
		func(k *models.Kinase, id int64) { k.ID = id })
}

// UpdateKinaseProteins stores the protein each kinase points to.
func UpdateKinaseProteins(ctx context.Context, q Querier, kinases []*models.Kinase) error {
	return execEach(ctx, q, "database.UpdateKinaseProteins",
		`UPDATE kinases SET protein_id = ? WHERE id = ?`, kinases,
		func(k *models.Kinase) []any { return []any{proteinID(k.Protein), k.ID} })
}

// LoadKinaseGroups reads kinase groups without their members.
func LoadKinaseGroups(ctx context.Context, q Querier) ([]*models.KinaseGroup, error) {
	const op errors.Op = "database.LoadKinaseGroups"

	rows, err := q.QueryContext(ctx, `SELECT id, name FROM kinase_groups ORDER BY id`)
	if err != nil {
		return nil, classify(op, err, "query")
	}
	defer rows.Close()

	var groups []*models.KinaseGroup
	for rows.Next() {
		g := &models.KinaseGroup{}
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, classify(op, err, "scan")
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// InsertKinaseGroups inserts the groups that have no id yet.
func InsertKinaseGroups(ctx context.Context, q Querier, groups []*models.KinaseGroup) error {
	return insertEach(ctx, q, "database.InsertKinaseGroups",
		`INSERT INTO kinase_groups (name) VALUES (?)`,
		pending(groups, func(g *models.KinaseGroup) int64 { return g.ID }),
		func(g *models.KinaseGroup) []any { return []any{g.Name} },
		func(g *models.KinaseGroup, id int64) { g.ID = id })
}

// InsertGroupMembers stores the membership of kinases in groups.
func InsertGroupMembers(ctx context.Context, q Querier, groups []*models.KinaseGroup) (int64, error) {
	var rows [][]any
	for _, g := range groups {
		for _, k := range g.Kinases {
			rows = append(rows, []any{g.ID, k.ID})
		}
	}
	return BulkInsert(ctx, q, "kinase_group_members", []string{"group_id", "kinase_id"}, rows)
}

// InsertSites inserts sites with their kinase and kinase group links.
func InsertSites(ctx context.Context, q Querier, sites []*models.Site) error {
	const op errors.Op = "database.InsertSites"

	err := insertEach(ctx, q, op,
		`INSERT INTO sites (protein_id, position, residue, type, pmid) VALUES (?, ?, ?, ?, ?)`,
		sites,
		func(s *models.Site) []any { return []any{s.Protein.ID, s.Position, s.Residue, s.Type, s.PMID} },
		func(s *models.Site, id int64) { s.ID = id })
	if err != nil {
		return err
	}

	var kinaseLinks, groupLinks [][]any
	for _, s := range sites {
		for _, k := range s.Kinases {
			kinaseLinks = append(kinaseLinks, []any{s.ID, k.ID})
		}
		for _, g := range s.Groups {
			groupLinks = append(groupLinks, []any{s.ID, g.ID})
		}
	}
	if _, err := BulkInsert(ctx, q, "site_kinases", []string{"site_id", "kinase_id"}, kinaseLinks); err != nil {
		return err
	}
	_, err = BulkInsert(ctx, q, "site_kinase_groups", []string{"site_id", "group_id"}, groupLinks)
	return err
}

// LoadCancers reads every cancer type.
func LoadCancers(ctx context.Context, q Querier) ([]*models.Cancer, error) {
	const op errors.Op = "database.LoadCancers"

	rows, err := q.QueryContext(ctx, `SELECT id, COALESCE(code, ''), name FROM cancers ORDER BY id`)
	if err != nil {
		return nil, classify(op, err, "query")
	}
	defer rows.Close()

	var cancers []*models.Cancer
	for rows.Next() {
		c := &models.Cancer{}
		if err := rows.Scan(&c.ID, &c.Code, &c.Name); err != nil {
			return nil, classify(op, err, "scan")
		}
		cancers = append(cancers, c)
	}
	return cancers, rows.Err()
}

// SaveCancers inserts new cancers and stores the code of the others.
func SaveCancers(ctx context.Context, q Querier, cancers []*models.Cancer) error {
	const op errors.Op = "database.SaveCancers"

	err := insertEach(ctx, q, op,
		`INSERT INTO cancers (code, name) VALUES (?, ?)`,
		pending(cancers, func(c *models.Cancer) int64 { return c.ID }),
		func(c *models.Cancer) []any { return []any{c.Code, c.Name} },
		func(c *models.Cancer, id int64) { c.ID = id })
	if err != nil {
		return err
	}
	return execEach(ctx, q, op, `UPDATE cancers SET code = ? WHERE id = ?`, cancers,
		func(c *models.Cancer) []any { return []any{c.Code, c.ID} })
}

// LoadDiseases reads every disease.
func LoadDiseases(ctx context.Context, q Querier) ([]*models.Disease, error) {
	const op errors.Op = "database.LoadDiseases"

	rows, err := q.QueryContext(ctx, `SELECT id, name FROM diseases ORDER BY id`)
	if err != nil {
		return nil, classify(op, err, "query")
	}
	defer rows.Close()

	var diseases []*models.Disease
	for rows.Next() {
		d := &models.Disease{}
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, classify(op, err, "scan")
		}
		diseases = append(diseases, d)
	}
	return diseases, rows.Err()
}

// LoadMutations reads mutations of the given proteins. Mutations of
// proteins missing from the map are dropped.
func LoadMutations(ctx context.Context, q Querier, proteins map[int64]*models.Protein) ([]*models.Mutation, error) {
	const op errors.Op = "database.LoadMutations"

	rows, err := q.QueryContext(ctx, `SELECT id, protein_id, position, alt FROM mutations ORDER BY id`)
	if err != nil {
		return nil, classify(op, err, "query")
	}
	defer rows.Close()

	var mutations []*models.Mutation
	for rows.Next() {
		m := &models.Mutation{}
		var pid int64
		if err := rows.Scan(&m.ID, &pid, &m.Position, &m.Alt); err != nil {
			return nil, classify(op, err, "scan")
		}
		if m.Protein = proteins[pid]; m.Protein == nil {
			continue
		}
		mutations = append(mutations, m)
	}
	return mutations, rows.Err()
}

// InsertMutations inserts the mutations that have no id yet.
func InsertMutations(ctx context.Context, q Querier, mutations []*models.Mutation) error {
	return insertEach(ctx, q, "database.InsertMutations",
		`INSERT INTO mutations (protein_id, position, alt) VALUES (?, ?, ?)`,
		pending(mutations, func(m *models.Mutation) int64 { return m.ID }),
		func(m *models.Mutation) []any { return []any{m.Protein.ID, m.Position, m.Alt} },
		func(m *models.Mutation, id int64) { m.ID = id })
}

// InsertPathways inserts pathways with their member genes.
func InsertPathways(ctx context.Context, q Querier, pathways []*models.Pathway) error {
	const op errors.Op = "database.InsertPathways"

	err := insertEach(ctx, q, op,
		`INSERT INTO pathways (description, gene_ontology, reactome) VALUES (?, ?, ?)`,
		pathways,
		func(p *models.Pathway) []any { return []any{p.Description, p.GeneOntology, p.Reactome} },
		func(p *models.Pathway, id int64) { p.ID = id })
	if err != nil {
		return err
	}

	var members [][]any
	for _, p := range pathways {
		seen := make(map[int64]bool, len(p.Genes))
		for _, g := range p.Genes {
			if !seen[g.ID] {
				seen[g.ID] = true
				members = append(members, []any{p.ID, g.ID})
			}
		}
	}
	_, err = BulkInsert(ctx, q, "pathway_genes", []string{"pathway_id", "gene_id"}, members)
	return err
}

// InsertGeneLists inserts gene lists with their entries.
func InsertGeneLists(ctx context.Context, q Querier, lists []*models.GeneList) error {
	const op errors.Op = "database.InsertGeneLists"

	err := insertEach(ctx, q, op, `INSERT INTO gene_lists (name) VALUES (?)`, lists,
		func(l *models.GeneList) []any { return []any{l.Name} },
		func(l *models.GeneList, id int64) { l.ID = id })
	if err != nil {
		return err
	}

	var rows [][]any
	for _, l := range lists {
		for _, e := range l.Entries {
			rows = append(rows, []any{l.ID, e.Gene.ID, e.P, e.FDR, e.IsCancerGene})
		}
	}
	_, err = BulkInsert(ctx, q, "gene_list_entries", []string{"gene_list_id", "gene_id", "p", "fdr", "is_cancer_gene"}, rows)
	return err
}

// InsertProteinReferences inserts references with their Ensembl peptides.
func InsertProteinReferences(ctx context.Context, q Querier, refs []*models.ProteinReferences) error {
	const op errors.Op = "database.InsertProteinReferences"

	err := insertEach(ctx, q, op,
		`INSERT INTO protein_references (protein_id, uniprot_accession, refseq_np) VALUES (?, ?, ?)`,
		refs,
		func(r *models.ProteinReferences) []any {
			return []any{r.Protein.ID, nullString(r.UniprotAccession), nullString(r.RefseqNP)}
		},
		func(r *models.ProteinReferences, id int64) { r.ID = id })
	if err != nil {
		return err
	}

	var rows [][]any
	for _, r := range refs {
		for _, peptide := range r.EnsemblPeptides {
			if peptide = strings.TrimSpace(peptide); peptide != "" {
				rows = append(rows, []any{r.ID, peptide})
			}
		}
	}
	_, err = BulkInsert(ctx, q, "ensembl_peptides", []string{"reference_id", "peptide_id"}, rows)
	return err
}

// pending filters the entities that were never stored.
func pending[T any](items []T, id func(T) int64) []T {
	var out []T
	for _, item := range items {
		if id(item) == 0 {
			out = append(out, item)
		}
	}
	return out
}
