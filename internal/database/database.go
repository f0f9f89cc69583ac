// Package database provides SQLite-backed storage for the imported genes,
// proteins, domains, kinases, sites, pathways and clinical annotations,
// together with the low level helpers the importers need to reload a
// table from scratch.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nishad/ptmdb/internal/errors"
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
	path string
}

// Querier is satisfied by both *sql.DB and *sql.Tx, so entity functions
// run the same inside and outside an import transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Options tune the connection.
type Options struct {
	CacheSize   int
	JournalMode string
}

// DefaultOptions returns the settings used when none are configured.
func DefaultOptions() Options {
	return Options{CacheSize: 100000, JournalMode: "WAL"}
}

// Initialize creates and configures the database connection
func Initialize(path string) (*DB, error) {
	return InitializeWithOptions(path, DefaultOptions())
}

// InitializeWithOptions opens the database at path, applies the pragmas and
// creates missing tables.
func InitializeWithOptions(path string, opts Options) (*DB, error) {
	const op errors.Op = "database.Initialize"

	if opts.JournalMode == "" {
		opts.JournalMode = "WAL"
	}
	if opts.CacheSize == 0 {
		opts.CacheSize = DefaultOptions().CacheSize
	}

	db, err := sql.Open("sqlite3", path+"?_journal="+opts.JournalMode+"&_timeout=5000&_sync=NORMAL")
	if err != nil {
		return nil, errors.E(op, errors.KindDatabase, err, "failed to open database")
	}

	pragmas := []string{
		"PRAGMA journal_mode = " + opts.JournalMode,
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = %d", opts.CacheSize),
		"PRAGMA temp_store = MEMORY",
		"PRAGMA mmap_size = 1073741824",
		"PRAGMA page_size = 32768",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA foreign_keys = OFF", // dependent rows are removed explicitly by the importers
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.E(op, errors.KindDatabase, err, "failed to set pragma "+pragma)
		}
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, errors.E(op, errors.KindDatabase, err, "failed to create tables")
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &DB{
		DB:   db,
		path: path,
	}, nil
}

// Path returns the location of the database file.
func (db *DB) Path() string {
	return db.path
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS genes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE,
		chrom TEXT,
		strand INTEGER,
		preferred_isoform_id INTEGER
	);

	CREATE TABLE IF NOT EXISTS proteins (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		refseq TEXT NOT NULL UNIQUE,
		gene_id INTEGER NOT NULL REFERENCES genes(id),
		tx_start INTEGER,
		tx_end INTEGER,
		cds_start INTEGER,
		cds_end INTEGER,
		sequence TEXT NOT NULL DEFAULT '',
		disorder_map TEXT NOT NULL DEFAULT '',
		interactors_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS interpro_domains (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		accession TEXT NOT NULL UNIQUE,
		short_description TEXT,
		description TEXT,
		type TEXT,
		level INTEGER,
		parent_id INTEGER REFERENCES interpro_domains(id)
	);

	CREATE TABLE IF NOT EXISTS domains (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		protein_id INTEGER NOT NULL REFERENCES proteins(id),
		interpro_id INTEGER NOT NULL REFERENCES interpro_domains(id),
		start_position INTEGER NOT NULL,
		end_position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS kinases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		protein_id INTEGER REFERENCES proteins(id)
	);

	CREATE TABLE IF NOT EXISTS kinase_groups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS kinase_group_members (
		group_id INTEGER NOT NULL REFERENCES kinase_groups(id),
		kinase_id INTEGER NOT NULL REFERENCES kinases(id),
		PRIMARY KEY (group_id, kinase_id)
	);

	CREATE TABLE IF NOT EXISTS sites (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		protein_id INTEGER NOT NULL REFERENCES proteins(id),
		position INTEGER NOT NULL,
		residue TEXT,
		type TEXT,
		pmid TEXT
	);

	CREATE TABLE IF NOT EXISTS site_kinases (
		site_id INTEGER NOT NULL REFERENCES sites(id),
		kinase_id INTEGER NOT NULL REFERENCES kinases(id),
		PRIMARY KEY (site_id, kinase_id)
	);

	CREATE TABLE IF NOT EXISTS site_kinase_groups (
		site_id INTEGER NOT NULL REFERENCES sites(id),
		group_id INTEGER NOT NULL REFERENCES kinase_groups(id),
		PRIMARY KEY (site_id, group_id)
	);

	CREATE TABLE IF NOT EXISTS cancers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS mutations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		protein_id INTEGER NOT NULL REFERENCES proteins(id),
		position INTEGER NOT NULL,
		alt TEXT NOT NULL,
		UNIQUE (protein_id, position, alt)
	);

	CREATE TABLE IF NOT EXISTS inherited_mutations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mutation_id INTEGER NOT NULL UNIQUE REFERENCES mutations(id),
		db_snp_id INTEGER,
		is_low_freq_variation INTEGER NOT NULL DEFAULT 0,
		is_validated INTEGER NOT NULL DEFAULT 0,
		is_in_pubmed_central INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS diseases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS clinical_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		inherited_id INTEGER NOT NULL REFERENCES inherited_mutations(id),
		sig_code INTEGER,
		disease_id INTEGER NOT NULL REFERENCES diseases(id),
		rev_status TEXT
	);

	CREATE TABLE IF NOT EXISTS pathways (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		description TEXT,
		gene_ontology INTEGER,
		reactome INTEGER
	);

	CREATE TABLE IF NOT EXISTS pathway_genes (
		pathway_id INTEGER NOT NULL REFERENCES pathways(id),
		gene_id INTEGER NOT NULL REFERENCES genes(id),
		PRIMARY KEY (pathway_id, gene_id)
	);

	CREATE TABLE IF NOT EXISTS gene_lists (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS gene_list_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		gene_list_id INTEGER NOT NULL REFERENCES gene_lists(id),
		gene_id INTEGER NOT NULL REFERENCES genes(id),
		p REAL,
		fdr REAL,
		is_cancer_gene INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS protein_references (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		protein_id INTEGER NOT NULL UNIQUE REFERENCES proteins(id),
		uniprot_accession TEXT,
		refseq_np TEXT
	);

	CREATE TABLE IF NOT EXISTS ensembl_peptides (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		reference_id INTEGER NOT NULL REFERENCES protein_references(id),
		peptide_id TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_protein_gene ON proteins(gene_id);
	CREATE INDEX IF NOT EXISTS idx_domain_protein ON domains(protein_id);
	CREATE INDEX IF NOT EXISTS idx_site_protein ON sites(protein_id);
	CREATE INDEX IF NOT EXISTS idx_kinase_protein ON kinases(protein_id);
	CREATE INDEX IF NOT EXISTS idx_clinical_inherited ON clinical_data(inherited_id);
	CREATE INDEX IF NOT EXISTS idx_pathway_gene ON pathway_genes(gene_id);
	CREATE INDEX IF NOT EXISTS idx_list_entry_gene ON gene_list_entries(gene_id);

	-- Statistics table for pre-computed counts
	CREATE TABLE IF NOT EXISTS statistics (
		table_name TEXT PRIMARY KEY,
		row_count INTEGER DEFAULT 0,
		last_updated TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := db.Exec(schema)
	return err
}

// Ping verifies database connection
func (db *DB) Ping() error {
	return db.DB.Ping()
}

// CountTable counts rows in a table.
// The table name is validated against the AllowedTables whitelist
// to prevent SQL injection attacks.
func (db *DB) CountTable(ctx context.Context, table string) (int64, error) {
	return CountRows(ctx, db, table)
}

// CountRows counts rows of a whitelisted table through q.
func CountRows(ctx context.Context, q Querier, table string) (int64, error) {
	safeTable, err := SafeTableName(table)
	if err != nil {
		return 0, fmt.Errorf("CountTable: %w", err)
	}

	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", safeTable)
	err = q.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

// GetStatistics retrieves cached statistics from the statistics table
func (db *DB) GetStatistics(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64)

	rows, err := db.QueryContext(ctx, `SELECT table_name, row_count FROM statistics`)
	if err != nil {
		return stats, nil
	}
	defer rows.Close()

	for rows.Next() {
		var tableName string
		var rowCount int64
		if err := rows.Scan(&tableName, &rowCount); err != nil {
			continue
		}
		stats[tableName] = rowCount
	}

	return stats, rows.Err()
}

// UpdateStatistics recalculates the cached row counts of the entity tables.
// Called after an import run finishes.
func (db *DB) UpdateStatistics(ctx context.Context) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range EntityTables {
		count, err := CountRows(ctx, tx, table)
		if err != nil {
			return fmt.Errorf("failed to count %s: %w", table, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO statistics (table_name, row_count, last_updated)
			VALUES (?, ?, CURRENT_TIMESTAMP)
		`, table, count)
		if err != nil {
			return fmt.Errorf("failed to update statistics for %s: %w", table, err)
		}
	}

	return tx.Commit()
}

// DatabaseInfo describes the database file and its cached counts.
type DatabaseInfo struct {
	Path   string           `json:"path"`
	Size   int64            `json:"size"`
	Counts map[string]int64 `json:"counts"`
}

// GetInfo returns database information
func (db *DB) GetInfo(ctx context.Context) (*DatabaseInfo, error) {
	info := &DatabaseInfo{Path: db.path}

	if db.path != "" {
		if stat, err := os.Stat(db.path); err == nil {
			info.Size = stat.Size()
		}
	}

	stats, err := db.GetStatistics(ctx)
	if err != nil {
		return nil, err
	}
	info.Counts = stats
	return info, nil
}
