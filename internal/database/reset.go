package database

import (
	"context"
	"fmt"

	"github.com/nishad/ptmdb/internal/errors"
)

// DeleteAll removes every row of table and returns how many were removed.
func DeleteAll(ctx context.Context, q Querier, table string) (int64, error) {
	const op errors.Op = "database.DeleteAll"

	safeTable, err := SafeTableName(table)
	if err != nil {
		return 0, errors.E(op, errors.KindValidation, err)
	}
	res, err := q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", safeTable))
	if err != nil {
		return 0, classify(op, err, table)
	}
	return res.RowsAffected()
}

// RestartAutoincrement makes the next autoincrement id of table start from
// 1 again (or from the highest remaining id + 1).
func RestartAutoincrement(ctx context.Context, q Querier, table string) error {
	const op errors.Op = "database.RestartAutoincrement"

	if _, err := SafeTableName(table); err != nil {
		return errors.E(op, errors.KindValidation, err)
	}
	_, err := q.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = ?`, table)
	return classify(op, err, table)
}

// ResetTable empties table and restarts its ids.
func ResetTable(ctx context.Context, q Querier, table string) (int64, error) {
	removed, err := DeleteAll(ctx, q, table)
	if err != nil {
		return 0, err
	}
	if err := RestartAutoincrement(ctx, q, table); err != nil {
		return removed, err
	}
	return removed, nil
}
