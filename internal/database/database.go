// Package database wraps the database implementation used for Stockwarp.
package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

type Conn struct {
	pool *pgxpool.Pool
}

type Row interface {
	Scan(dest ...any) error
}

type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close()
	Err() error
}

var ErrNoRows = pgx.ErrNoRows

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// Connect connects to the Postgres database with the given URL.
func Connect(ctx context.Context, databaseURL string) (*Conn, error) {
	config, err := pgxpool.ParseConfig(databaseURL)

	if err != nil {
		return nil, err
	}

	config.ConnConfig.ConnectTimeout = time.Second * 5

	pool, err := pgxpool.ConnectConfig(ctx, config)

	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, err
	}

	return &Conn{pool: pool}, nil
}

// Close closes a database connection.
func (conn *Conn) Close() {
	conn.pool.Close()
}

// Exec executes a database query.
func (conn *Conn) Exec(ctx context.Context, sql string, arguments ...any) error {
	_, err := conn.pool.Exec(ctx, sql, arguments...)

	return err
}

// Query executes a database query.
func (conn *Conn) Query(ctx context.Context, sql string, arguments ...any) (Rows, error) {
	return conn.pool.Query(ctx, sql, arguments...)
}

// QueryRow executes a database query returning Row data.
func (conn *Conn) QueryRow(ctx context.Context, sql string, arguments ...any) Row {
	return conn.pool.QueryRow(ctx, sql, arguments...)
}

// ExecBatch sends several statements in one round trip inside an implicit transaction.
func (conn *Conn) ExecBatch(ctx context.Context, statements []Statement) error {
	batch := &pgx.Batch{}

	for _, statement := range statements {
		batch.Queue(statement.SQL, statement.Arguments...)
	}

	results := conn.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range statements {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}

	return nil
}

// InTransaction runs `fn` in a read committed transaction.
//
// The transaction is committed when `fn` returns nil, and rolled back otherwise.
func (conn *Conn) InTransaction(ctx context.Context, fn func(Queryable) error) error {
	return conn.pool.BeginTxFunc(
		ctx,
		pgx.TxOptions{IsoLevel: pgx.ReadCommitted},
		func(tx pgx.Tx) error {
			return fn(&txQueryable{tx: tx})
		},
	)
}

// Statement is one SQL statement for ExecBatch.
type Statement struct {
	SQL       string
	Arguments []any
}

// Queryable defines an interface for a connection.
type Queryable interface {
	Exec(ctx context.Context, sql string, arguments ...any) error
	Query(ctx context.Context, sql string, arguments ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) Row
}

type txQueryable struct {
	tx pgx.Tx
}

func (q *txQueryable) Exec(ctx context.Context, sql string, arguments ...any) error {
	_, err := q.tx.Exec(ctx, sql, arguments...)

	return err
}

func (q *txQueryable) Query(ctx context.Context, sql string, arguments ...any) (Rows, error) {
	return q.tx.Query(ctx, sql, arguments...)
}

func (q *txQueryable) QueryRow(ctx context.Context, sql string, arguments ...any) Row {
	return q.tx.QueryRow(ctx, sql, arguments...)
}

// IsUniqueViolation returns true if err was caused by a unique constraint.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
