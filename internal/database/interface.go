package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGXDB is an interface that both pgxpool.Pool and pgx.Tx implement.
// This allows repositories to work with either a connection pool or a transaction,
// which is essential for running several statements as one unit of work.
type PGXDB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner can start a database transaction. Implemented by pgxpool.Pool and pgx.Tx
// (the latter starts a savepoint).
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Conn is a PGXDB that can also begin a transaction.
type Conn interface {
	PGXDB
	TxBeginner
}

// Ensure types implement the interface at compile time.
var (
	_ PGXDB      = (*pgxpool.Pool)(nil)
	_ PGXDB      = (pgx.Tx)(nil)
	_ TxBeginner = (*pgxpool.Pool)(nil)
	_ Conn       = (*pgxpool.Pool)(nil)
	_ Conn       = (pgx.Tx)(nil)
)
