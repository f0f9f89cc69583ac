package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/nishad/ptmdb/internal/errors"
)

// maxVariables is the lowest bound on bound parameters per statement that
// SQLite builds have shipped with.
const maxVariables = 999

// classify maps driver errors onto the error kinds: constraint violations
// become KindIntegrity, everything else KindDatabase.
func classify(op errors.Op, err error, msg string) error {
	if err == nil {
		return nil
	}
	kind := errors.KindDatabase
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		kind = errors.KindIntegrity
	}
	return errors.E(op, kind, err, msg)
}

// IsIntegrityViolation reports whether err was caused by a constraint.
func IsIntegrityViolation(err error) bool {
	return errors.IsKind(err, errors.KindIntegrity)
}

// BulkInsert writes rows into table with multi-row INSERT statements,
// bypassing per-entity bookkeeping. Every row must have one value per
// column. It returns the number of rows written. When called with a
// transaction the rows are committed or rolled back with the rest of it.
func BulkInsert(ctx context.Context, q Querier, table string, columns []string, rows [][]any) (int64, error) {
	const op errors.Op = "database.BulkInsert"

	safeTable, err := SafeTableName(table)
	if err != nil {
		return 0, errors.E(op, errors.KindValidation, err)
	}
	if len(columns) == 0 {
		return 0, errors.E(op, errors.KindValidation, "no columns given for "+table)
	}
	for _, column := range columns {
		if _, err := SafeColumnName(column); err != nil {
			return 0, errors.E(op, errors.KindValidation, err)
		}
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, errors.E(op, errors.KindValidation,
				fmt.Sprintf("%s: row %d has %d values for %d columns", table, i, len(row), len(columns)))
		}
	}
	if len(rows) == 0 {
		return 0, nil
	}

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", safeTable, strings.Join(columns, ", "))
	chunk := max(1, maxVariables/len(columns))

	var inserted int64
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))
		batch := rows[start:end]

		var b strings.Builder
		b.WriteString(prefix)
		args := make([]any, 0, len(batch)*len(columns))
		for i, row := range batch {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(placeholder)
			args = append(args, row...)
		}

		res, err := q.ExecContext(ctx, b.String(), args...)
		if err != nil {
			return inserted, classify(op, err, "insert into "+table)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, classify(op, err, "rows affected")
		}
		inserted += n
	}
	return inserted, nil
}

// HighestID returns the largest id in table, or 0 when it is empty. Rows
// written by BulkInsert with explicit ids start above it, so they never
// collide with ids handed out by autoincrement inserts.
func HighestID(ctx context.Context, q Querier, table string) (int64, error) {
	safeTable, err := SafeTableName(table)
	if err != nil {
		return 0, err
	}
	var id int64
	query := fmt.Sprintf("SELECT COALESCE(MAX(id), 0) FROM %s", safeTable)
	if err := q.QueryRowContext(ctx, query).Scan(&id); err != nil {
		return 0, classify("database.HighestID", err, table)
	}
	return id, nil
}
