package db

import (
	"context"
	"database/sql"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a write transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NullIfEmpty helps store optional strings as NULL.
func NullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
