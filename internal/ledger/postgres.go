package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dense-analysis/stockwarp/internal/database"
	"github.com/dense-analysis/stockwarp/internal/model"
	"github.com/shopspring/decimal"
)

// PostgresStore keeps the ledger in Postgres.
type PostgresStore struct {
	conn *database.Conn
}

func NewPostgresStore(conn *database.Conn) *PostgresStore {
	return &PostgresStore{conn: conn}
}

var userQuery = `select id, username, cash from stock_user `

func scanUser(row database.Row, user *model.User) error {
	return row.Scan(&user.ID, &user.Username, &user.Cash)
}

var transactionQuery = `
select
	stock_transaction.id,
	stock_transaction.user_id,
	stock_user.username,
	symbol,
	quantity,
	price,
	type,
	time
from stock_transaction
inner join stock_user
on stock_user.id = stock_transaction.user_id
`

func scanTransaction(row database.Row, transaction *model.Transaction) error {
	var transactionType string

	if err := row.Scan(
		&transaction.ID,
		&transaction.UserID,
		&transaction.Username,
		&transaction.Symbol,
		&transaction.Quantity,
		&transaction.Price,
		&transactionType,
		&transaction.Time,
	); err != nil {
		return err
	}

	transaction.Type = model.TransactionType(transactionType)

	if !transaction.Type.Valid() {
		return fmt.Errorf("transaction %d has unknown type %q", transaction.ID, transactionType)
	}

	return nil
}

func scanHolding(row database.Row, holding *model.Holding) error {
	return row.Scan(&holding.Symbol, &holding.Quantity)
}

func notFound(err error) error {
	if errors.Is(err, database.ErrNoRows) {
		return ErrUserNotFound
	}

	return err
}

func (s *PostgresStore) CreateUser(ctx context.Context, username string, passwordHash string, cash decimal.Decimal) (model.User, error) {
	user := model.User{Username: username, Cash: cash}
	row := s.conn.QueryRow(
		ctx,
		"insert into stock_user (username, password, cash) values ($1, $2, $3) returning id",
		username,
		passwordHash,
		cash,
	)

	if err := row.Scan(&user.ID); err != nil {
		if database.IsUniqueViolation(err) {
			return model.User{}, ErrUsernameTaken
		}

		return model.User{}, err
	}

	return user, nil
}

func (s *PostgresStore) UserByID(ctx context.Context, id int64) (model.User, error) {
	var user model.User
	row := s.conn.QueryRow(ctx, userQuery+"where id = $1", id)
	err := scanUser(row, &user)

	return user, notFound(err)
}

func (s *PostgresStore) Credentials(ctx context.Context, username string) (model.User, string, error) {
	var user model.User
	var passwordHash string

	row := s.conn.QueryRow(
		ctx,
		"select id, username, cash, password from stock_user where username = $1",
		username,
	)

	err := row.Scan(&user.ID, &user.Username, &user.Cash, &passwordHash)

	return user, passwordHash, notFound(err)
}

func (s *PostgresStore) Holdings(ctx context.Context, userID int64) ([]model.Holding, error) {
	var holdingList []model.Holding

	err := model.LoadList(
		ctx,
		s.conn,
		&holdingList,
		8,
		scanHolding,
		"select symbol, quantity from stock_holding where user_id = $1 order by symbol",
		userID,
	)

	return holdingList, err
}

func (s *PostgresStore) Transactions(ctx context.Context, userID int64) ([]model.Transaction, error) {
	var transactionList []model.Transaction

	err := model.LoadList(
		ctx,
		s.conn,
		&transactionList,
		32,
		scanTransaction,
		transactionQuery+"where user_id = $1 order by time, stock_transaction.id",
		userID,
	)

	return transactionList, err
}

// TransactionsAfter returns up to `limit` transactions for all users with IDs after `afterID`.
func (s *PostgresStore) TransactionsAfter(ctx context.Context, afterID int64, limit int) ([]model.Transaction, error) {
	var transactionList []model.Transaction

	err := model.LoadList(
		ctx,
		s.conn,
		&transactionList,
		limit,
		scanTransaction,
		transactionQuery+"where stock_transaction.id > $1 order by stock_transaction.id limit $2",
		afterID,
		limit,
	)

	return transactionList, err
}

func (s *PostgresStore) Update(ctx context.Context, userID int64, fn func(Tx) error) error {
	return s.conn.InTransaction(ctx, func(q database.Queryable) error {
		return fn(&postgresTx{q: q, userID: userID})
	})
}

type postgresTx struct {
	q      database.Queryable
	userID int64
}

// User loads the user and locks their row until the transaction ends.
func (tx *postgresTx) User(ctx context.Context) (model.User, error) {
	var user model.User
	row := tx.q.QueryRow(ctx, userQuery+"where id = $1 for update", tx.userID)
	err := scanUser(row, &user)

	return user, notFound(err)
}

func (tx *postgresTx) Holding(ctx context.Context, symbol string) (model.Holding, error) {
	holding := model.Holding{Symbol: symbol}
	row := tx.q.QueryRow(
		ctx,
		"select symbol, quantity from stock_holding where user_id = $1 and symbol = $2 for update",
		tx.userID,
		symbol,
	)

	if err := scanHolding(row, &holding); err != nil && !errors.Is(err, database.ErrNoRows) {
		return holding, err
	}

	return holding, nil
}

func (tx *postgresTx) SetCash(ctx context.Context, cash decimal.Decimal) error {
	if cash.IsNegative() {
		return ErrInsufficientCash
	}

	return tx.q.Exec(ctx, "update stock_user set cash = $2 where id = $1", tx.userID, cash)
}

var holdingUpsertQuery = `
insert into stock_holding (user_id, symbol, quantity, updated_at)
values ($1, $2, $3, now())
on conflict (user_id, symbol)
do update set quantity = excluded.quantity, updated_at = excluded.updated_at
`

func (tx *postgresTx) SetHolding(ctx context.Context, symbol string, quantity int64) error {
	if quantity < 0 {
		return ErrInsufficientShares
	}

	return tx.q.Exec(ctx, holdingUpsertQuery, tx.userID, symbol, quantity)
}

var transactionInsertQuery = `
insert into stock_transaction (user_id, symbol, quantity, price, type, time)
values ($1, $2, $3, $4, $5, $6)
returning id
`

func (tx *postgresTx) AppendTransaction(ctx context.Context, transaction model.Transaction) (int64, error) {
	var id int64

	row := tx.q.QueryRow(
		ctx,
		transactionInsertQuery,
		tx.userID,
		transaction.Symbol,
		transaction.Quantity,
		transaction.Price,
		string(transaction.Type),
		transaction.Time,
	)

	err := row.Scan(&id)

	return id, err
}
