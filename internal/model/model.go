package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a user in the database
type User struct {
	ID       int64
	Username string
	Cash     decimal.Decimal
}

// Quote is a point in time price for a ticker symbol.
type Quote struct {
	Symbol string
	Name   string
	Price  decimal.Decimal
}

// Holding is the number of shares of one symbol a user owns.
//
// A Quantity of zero means the symbol is not held.
type Holding struct {
	Symbol   string
	Quantity int64
}

type TransactionType string

const (
	Buy  TransactionType = "buy"
	Sell TransactionType = "sell"
)

// Valid returns true for the known transaction types.
func (t TransactionType) Valid() bool {
	return t == Buy || t == Sell
}

// Transaction is an immutable record of a completed buy or sell.
type Transaction struct {
	ID       int64
	UserID   int64
	Username string
	Symbol   string
	Quantity int64
	Price    decimal.Decimal
	Type     TransactionType
	Time     time.Time
}

// Total returns quantity multiplied by price.
func (t Transaction) Total() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}

// CashDelta returns the change in cash the transaction caused.
func (t Transaction) CashDelta() decimal.Decimal {
	if t.Type == Buy {
		return t.Total().Neg()
	}

	return t.Total()
}

// Position is a held symbol valued at its current price.
type Position struct {
	Holding
	Name      string
	Price     decimal.Decimal
	Value     decimal.Decimal
	Available bool
}

// Portfolio is the cash and positions a user has.
type Portfolio struct {
	User      User
	Positions []Position
	Total     decimal.Decimal
}
