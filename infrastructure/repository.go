package infrastructure

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// TimeOperation executes an operation and logs its execution time
func TimeOperation(ctx context.Context, logger *slog.Logger, name string, operation func() error) error {
	start := time.Now()
	err := operation()
	elapsed := time.Since(start)
	logger.Log(ctx, slog.LevelDebug, "storage operation", "op", name, "took", elapsed, "err", err)
	return err
}

// WithTransaction handles a database transaction and executes the given operation
func WithTransaction(ctx context.Context, db *sql.DB, operation func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p) // re-throw panic after Rollback
		} else if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.Log(ctx, slog.LevelError, "Error while rolling back transaction", "err", rbErr)
			}
		} else {
			err = tx.Commit()
		}
	}()

	err = operation(tx)
	return err
}
