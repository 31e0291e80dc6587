package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Store methods take a sqlx.ExtContext so they can run inside a caller's transaction.
// A nil executor falls back to the store's own pool.
func executor(db *sqlx.DB, q sqlx.ExtContext) sqlx.ExtContext {
	if q == nil {
		return db
	}
	return q
}

func checkAffectedRows(result sql.Result, noRowsErr error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return noRowsErr
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func notFound(err error, wrapped error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return wrapped
	}
	return err
}
