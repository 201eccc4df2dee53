package postgres

import (
	"context"
	"database/sql"
)

// Querier is the subset of *sql.DB the repositories use. Every statement
// here is a single-row read or write; the gateway contract has no
// multi-row transactions.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

var _ Querier = (*sql.DB)(nil)
