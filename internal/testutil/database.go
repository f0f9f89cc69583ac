package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nishad/ptmdb/internal/database"
)

// TestDB creates a temporary database for testing.
// It returns the database and a cleanup function.
func TestDB(t *testing.T) (*database.DB, func()) {
	t.Helper()

	dir, dirCleanup := TempDir(t)

	db, err := database.Initialize(filepath.Join(dir, "test.db"))
	if err != nil {
		dirCleanup()
		t.Fatalf("failed to create test database: %v", err)
	}

	return db, func() {
		db.Close()
		dirCleanup()
	}
}

// CountRows returns the number of rows in table, failing the test on error.
func CountRows(t *testing.T, db *database.DB, table string) int64 {
	t.Helper()
	n, err := db.CountTable(context.Background(), table)
	if err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}
