package assoc

import (
	"context"
	"database/sql"
)

// Transaction runs fn inside a transaction on db. The transaction commits
// when fn returns nil and rolls back on error or panic. Combine with
// SQLFinder.WithTx to make relationship reads and writes join the
// transaction.
func Transaction(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}
