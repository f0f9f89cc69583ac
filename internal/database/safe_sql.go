package database

import (
	"fmt"
	"regexp"
)

// EntityTables lists the tables filled by the importers, in an order
// where every table comes after the tables it references.
var EntityTables = []string{
	"genes",
	"proteins",
	"interpro_domains",
	"domains",
	"kinases",
	"kinase_groups",
	"kinase_group_members",
	"sites",
	"site_kinases",
	"site_kinase_groups",
	"cancers",
	"mutations",
	"inherited_mutations",
	"diseases",
	"clinical_data",
	"pathways",
	"pathway_genes",
	"gene_lists",
	"gene_list_entries",
	"protein_references",
	"ensembl_peptides",
}

// AllowedTables is the whitelist of valid table names in the ptmdb database.
// Any table name not in this list will be rejected to prevent SQL injection.
var AllowedTables = func() map[string]bool {
	allowed := map[string]bool{
		// System tables
		"statistics":   true,
		"import_runs":  true,
		"import_steps": true,
	}
	for _, table := range EntityTables {
		allowed[table] = true
	}
	return allowed
}()

// AllowedColumns is the whitelist of valid column names.
// This is used for dynamic column lists of bulk inserts.
var AllowedColumns = map[string]bool{
	"id":   true,
	"name": true,

	// genes and proteins
	"chrom":                true,
	"strand":               true,
	"preferred_isoform_id": true,
	"refseq":               true,
	"gene_id":              true,
	"tx_start":             true,
	"tx_end":               true,
	"cds_start":            true,
	"cds_end":              true,
	"sequence":             true,
	"disorder_map":         true,
	"interactors_count":    true,

	// domains
	"accession":         true,
	"short_description": true,
	"description":       true,
	"type":              true,
	"level":             true,
	"parent_id":         true,
	"protein_id":        true,
	"interpro_id":       true,
	"start_position":    true,
	"end_position":      true,

	// kinases and sites
	"group_id":  true,
	"kinase_id": true,
	"site_id":   true,
	"position":  true,
	"residue":   true,
	"pmid":      true,
	"code":      true,

	// mutations and clinical data
	"alt":                   true,
	"mutation_id":           true,
	"db_snp_id":             true,
	"is_low_freq_variation": true,
	"is_validated":          true,
	"is_in_pubmed_central":  true,
	"inherited_id":          true,
	"sig_code":              true,
	"disease_id":            true,
	"rev_status":            true,

	// pathways, gene lists and references
	"gene_ontology":     true,
	"reactome":          true,
	"pathway_id":        true,
	"gene_list_id":      true,
	"p":                 true,
	"fdr":               true,
	"is_cancer_gene":    true,
	"uniprot_accession": true,
	"refseq_np":         true,
	"reference_id":      true,
	"peptide_id":        true,

	// Statistics columns
	"table_name": true,
	"row_count":  true,
}

// ErrInvalidTableName is returned when a table name is not in the whitelist.
var ErrInvalidTableName = fmt.Errorf("invalid table name")

// ErrInvalidColumnName is returned when a column name is not in the whitelist.
var ErrInvalidColumnName = fmt.Errorf("invalid column name")

// validIdentifierPattern matches valid SQL identifiers (alphanumeric and underscore).
var validIdentifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateTableName checks if a table name is in the allowed list.
// Returns nil if valid, ErrInvalidTableName otherwise.
func ValidateTableName(table string) error {
	if !AllowedTables[table] {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}
	return nil
}

// ValidateColumnName checks if a column name is in the allowed list.
// Returns nil if valid, ErrInvalidColumnName otherwise.
func ValidateColumnName(column string) error {
	if !AllowedColumns[column] {
		return fmt.Errorf("%w: %q", ErrInvalidColumnName, column)
	}
	return nil
}

// ValidateIdentifier checks if a string is a valid SQL identifier format.
// This is a fallback for dynamic identifiers not in the whitelists.
// Valid format: starts with letter or underscore, followed by alphanumeric or underscore.
func ValidateIdentifier(identifier string) error {
	if identifier == "" {
		return fmt.Errorf("empty identifier")
	}
	if !validIdentifierPattern.MatchString(identifier) {
		return fmt.Errorf("invalid identifier format: %q", identifier)
	}
	return nil
}

// SafeTableName returns the table name if valid, otherwise returns an error.
// Use this when you need the table name for SQL construction.
func SafeTableName(table string) (string, error) {
	if err := ValidateTableName(table); err != nil {
		return "", err
	}
	return table, nil
}

// SafeColumnName returns the column name if valid, otherwise returns an error.
// Use this when you need the column name for SQL construction.
func SafeColumnName(column string) (string, error) {
	if err := ValidateColumnName(column); err != nil {
		return "", err
	}
	return column, nil
}
