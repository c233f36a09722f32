// Package analytics copies the transaction log into ClickHouse for reporting.
package analytics

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/dense-analysis/stockwarp/internal/config"
	"github.com/dense-analysis/stockwarp/internal/logging"
	"github.com/dense-analysis/stockwarp/internal/model"
)

type Conn struct {
	chConn clickhouse.Conn
}

type Row interface {
	Scan(dest ...any) error
}

type Batch interface {
	Append(values ...any) error
	Send() error
}

// Connect connects to ClickHouse and checks the connection works.
func Connect(ctx context.Context, cfg config.ClickHouse) (*Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: time.Second * 5,
	})

	if err != nil {
		return nil, err
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()

		return nil, err
	}

	return &Conn{chConn: conn}, nil
}

// Close closes a database connection.
func (conn *Conn) Close() error {
	return conn.chConn.Close()
}

// Exec executes a database query.
func (conn *Conn) Exec(ctx context.Context, sql string, arguments ...any) error {
	return conn.chConn.Exec(ctx, sql, arguments...)
}

// QueryRow executes a database query returning Row data.
func (conn *Conn) QueryRow(ctx context.Context, sql string, arguments ...any) Row {
	return conn.chConn.QueryRow(ctx, sql, arguments...)
}

// PrepareBatch prepares an insert batch for ClickHouse.
func (conn *Conn) PrepareBatch(ctx context.Context, sql string) (Batch, error) {
	return conn.chConn.PrepareBatch(ctx, sql)
}

// Sink is where transactions are exported to.
type Sink interface {
	Exec(ctx context.Context, sql string, arguments ...any) error
	QueryRow(ctx context.Context, sql string, arguments ...any) Row
	PrepareBatch(ctx context.Context, sql string) (Batch, error)
}

// Source reads transactions in ID order.
type Source interface {
	TransactionsAfter(ctx context.Context, afterID int64, limit int) ([]model.Transaction, error)
}

// Rows are replaced by ID, so exporting the same transaction twice is harmless.
const createTableSQL = `
CREATE TABLE IF NOT EXISTS stock_transaction_log (
	id Int64,
	user_id Int64,
	username String,
	symbol LowCardinality(String),
	type LowCardinality(String),
	quantity Int64,
	price Decimal(20, 4),
	cash_delta Decimal(20, 4),
	time DateTime64(6, 'UTC')
)
ENGINE = ReplacingMergeTree
ORDER BY id
`

// CreateTable creates the transaction log table if needed.
func CreateTable(ctx context.Context, sink Sink) error {
	return sink.Exec(ctx, createTableSQL)
}

// LastExportedID returns the highest exported transaction ID, or 0.
func LastExportedID(ctx context.Context, sink Sink) (int64, error) {
	var id int64
	err := sink.QueryRow(ctx, "SELECT max(id) FROM stock_transaction_log").Scan(&id)

	return id, err
}

// Export copies transactions with IDs above `since`, `batchSize` rows at a
// time. It returns how many transactions were copied.
func Export(ctx context.Context, source Source, sink Sink, since int64, batchSize int) (int, error) {
	exported := 0

	for {
		transactionList, err := source.TransactionsAfter(ctx, since, batchSize)

		if err != nil {
			return exported, err
		}

		if len(transactionList) == 0 {
			return exported, nil
		}

		batch, err := sink.PrepareBatch(ctx, "INSERT INTO stock_transaction_log")

		if err != nil {
			return exported, err
		}

		for _, transaction := range transactionList {
			if err := batch.Append(
				transaction.ID,
				transaction.UserID,
				transaction.Username,
				transaction.Symbol,
				string(transaction.Type),
				transaction.Quantity,
				transaction.Price,
				transaction.CashDelta(),
				transaction.Time.UTC(),
			); err != nil {
				return exported, err
			}
		}

		if err := batch.Send(); err != nil {
			return exported, err
		}

		exported += len(transactionList)
		since = transactionList[len(transactionList)-1].ID

		logging.FromContext(ctx).
			WithField("exported", exported).
			WithField("last_id", since).
			Info("exported transactions")

		if len(transactionList) < batchSize {
			return exported, nil
		}
	}
}
