package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// Pool hands out pooled connections. *pgxpool.Pool satisfies it.
type Pool interface {
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
}

// withConn runs fn on one acquired connection and releases it afterwards.
// Staging tables live in pg_temp, so everything belonging to one table unit
// must run on the same connection.
func withConn(ctx context.Context, pool Pool, fn func(conn *pgxpool.Conn) error) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()
	return fn(conn)
}

// withTableTx runs fn inside a transaction on one acquired connection.
// The transaction commits when fn returns nil and rolls back otherwise,
// leaving nothing of the unit visible.
func withTableTx(ctx context.Context, pool Pool, logger csvingest.Logger, fn func(tx pgx.Tx) error) error {
	return withConn(ctx, pool, func(conn *pgxpool.Conn) error {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := fn(tx); err != nil {
			// The caller's ctx may already be cancelled; rollback still has to reach the server.
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				logger.Warn("rollback failed", "error", rbErr)
			}
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}
