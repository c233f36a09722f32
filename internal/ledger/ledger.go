// Package ledger implements the account operations of the simulator.
//
// Every operation that changes money or shares runs through Store.Update
// while holding a per-user lock, so the read, validate and write steps for a
// user are never interleaved with another request for the same user.
package ledger

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dense-analysis/stockwarp/internal/logging"
	"github.com/dense-analysis/stockwarp/internal/model"
	"github.com/dense-analysis/stockwarp/internal/quote"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Errors returned to users. The messages are shown on the apology page.
var (
	ErrMissingUsername    = errors.New("must provide username")
	ErrMissingPassword    = errors.New("must provide password and confirmation")
	ErrPasswordMismatch   = errors.New("passwords don't match")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username and/or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidQuantity    = errors.New("invalid number of shares")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrUnknownSymbol      = errors.New("invalid symbol")
	ErrInsufficientCash   = errors.New("can't afford")
	ErrNoHolding          = errors.New("you don't own any of that stock")
	ErrInsufficientShares = errors.New("not enough shares to complete transaction")
	ErrCashLimit          = errors.New("cash balance would exceed the limit")
)

var userErrors = []error{
	ErrMissingUsername,
	ErrMissingPassword,
	ErrPasswordMismatch,
	ErrUsernameTaken,
	ErrInvalidCredentials,
	ErrInvalidQuantity,
	ErrInvalidAmount,
	ErrUnknownSymbol,
	ErrInsufficientCash,
	ErrNoHolding,
	ErrInsufficientShares,
	ErrCashLimit,
}

// IsUserError returns true for errors caused by what a user asked for.
func IsUserError(err error) bool {
	for _, userErr := range userErrors {
		if errors.Is(err, userErr) {
			return true
		}
	}

	return false
}

// Store persists users, holdings and transactions.
type Store interface {
	CreateUser(ctx context.Context, username string, passwordHash string, cash decimal.Decimal) (model.User, error)
	UserByID(ctx context.Context, id int64) (model.User, error)
	// Credentials loads a user and their password hash by username.
	Credentials(ctx context.Context, username string) (model.User, string, error)
	Holdings(ctx context.Context, userID int64) ([]model.Holding, error)
	// Transactions returns every transaction for a user, oldest first.
	Transactions(ctx context.Context, userID int64) ([]model.Transaction, error)
	// Update runs `fn` atomically for one user. Nothing `fn` writes is kept
	// if it returns an error.
	Update(ctx context.Context, userID int64, fn func(Tx) error) error
}

// Tx reads and writes the state of a single user inside Store.Update.
type Tx interface {
	User(ctx context.Context) (model.User, error)
	// Holding returns a zero quantity for symbols which are not held.
	Holding(ctx context.Context, symbol string) (model.Holding, error)
	SetCash(ctx context.Context, cash decimal.Decimal) error
	SetHolding(ctx context.Context, symbol string, quantity int64) error
	AppendTransaction(ctx context.Context, transaction model.Transaction) (int64, error)
}

// PricePlaces is the number of decimal places prices are stored with.
const PricePlaces = 4

// MaxCash is the largest cash balance a user can hold.
var MaxCash = decimal.New(1, 15)

func checkCash(cash decimal.Decimal) error {
	if cash.GreaterThan(MaxCash) {
		return ErrCashLimit
	}

	return nil
}

type Options struct {
	StartingCash decimal.Decimal
	BcryptCost   int
}

// Service runs ledger operations against a Store and a quote Provider.
type Service struct {
	store        Store
	quotes       quote.Provider
	startingCash decimal.Decimal
	bcryptCost   int
	now          func() time.Time
	locks        sync.Map
}

func NewService(store Store, quotes quote.Provider, options Options) *Service {
	if options.BcryptCost == 0 {
		options.BcryptCost = bcrypt.DefaultCost
	}

	return &Service{
		store:        store,
		quotes:       quotes,
		startingCash: options.StartingCash,
		bcryptCost:   options.BcryptCost,
		now:          time.Now,
	}
}

// lock takes the mutex for a user and returns the function to release it.
func (s *Service) lock(userID int64) func() {
	value, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mutex := value.(*sync.Mutex)
	mutex.Lock()

	return mutex.Unlock
}

// Register creates a user with the starting cash balance.
func (s *Service) Register(ctx context.Context, username string, password string, confirmation string) (model.User, error) {
	username = strings.TrimSpace(username)

	if username == "" {
		return model.User{}, ErrMissingUsername
	}

	if password == "" || confirmation == "" {
		return model.User{}, ErrMissingPassword
	}

	if password != confirmation {
		return model.User{}, ErrPasswordMismatch
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)

	if err != nil {
		return model.User{}, err
	}

	return s.store.CreateUser(ctx, username, string(hash), s.startingCash)
}

// Authenticate checks a username and password.
//
// Unknown users and wrong passwords both return ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username string, password string) (model.User, error) {
	username = strings.TrimSpace(username)

	if username == "" || password == "" {
		return model.User{}, ErrInvalidCredentials
	}

	user, hash, err := s.store.Credentials(ctx, username)

	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return model.User{}, ErrInvalidCredentials
		}

		return model.User{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return model.User{}, ErrInvalidCredentials
	}

	return user, nil
}

// User loads a user by ID.
func (s *Service) User(ctx context.Context, userID int64) (model.User, error) {
	return s.store.UserByID(ctx, userID)
}

// Lookup gets a quote, reporting every failure as ErrUnknownSymbol.
func (s *Service) Lookup(ctx context.Context, symbol string) (model.Quote, error) {
	result, err := s.quotes.Lookup(ctx, symbol)

	if err != nil {
		if !errors.Is(err, quote.ErrNotFound) {
			logging.FromContext(ctx).WithError(err).WithField("symbol", symbol).Warn("quote lookup failed")
		}

		return model.Quote{}, ErrUnknownSymbol
	}

	return result, nil
}

// Buy purchases shares at the current price.
func (s *Service) Buy(ctx context.Context, userID int64, symbol string, shares int64) (model.Transaction, error) {
	if shares < 1 {
		return model.Transaction{}, ErrInvalidQuantity
	}

	current, err := s.Lookup(ctx, symbol)

	if err != nil {
		return model.Transaction{}, err
	}

	price := current.Price.Round(PricePlaces)
	cost := price.Mul(decimal.NewFromInt(shares))
	record := model.Transaction{
		UserID:   userID,
		Symbol:   symbol,
		Quantity: shares,
		Price:    price,
		Type:     model.Buy,
	}

	unlock := s.lock(userID)
	defer unlock()

	err = s.store.Update(ctx, userID, func(tx Tx) error {
		user, err := tx.User(ctx)

		if err != nil {
			return err
		}

		if cost.GreaterThan(user.Cash) {
			return ErrInsufficientCash
		}

		holding, err := tx.Holding(ctx, symbol)

		if err != nil {
			return err
		}

		if holding.Quantity > math.MaxInt64-shares {
			return ErrInvalidQuantity
		}

		if err := tx.SetHolding(ctx, symbol, holding.Quantity+shares); err != nil {
			return err
		}

		record.Username = user.Username
		record.Time = s.now()

		if record.ID, err = tx.AppendTransaction(ctx, record); err != nil {
			return err
		}

		return tx.SetCash(ctx, user.Cash.Sub(cost))
	})

	if err != nil {
		return model.Transaction{}, err
	}

	return record, nil
}

func checkHolding(holding model.Holding, shares int64) error {
	if holding.Quantity <= 0 {
		return ErrNoHolding
	}

	if holding.Quantity < shares {
		return ErrInsufficientShares
	}

	return nil
}

// Sell sells shares at the current price.
func (s *Service) Sell(ctx context.Context, userID int64, symbol string, shares int64) (model.Transaction, error) {
	if shares < 1 {
		return model.Transaction{}, ErrInvalidQuantity
	}

	// Check the holding before the lookup so users see the right message
	// quickly. It is checked again under the lock below.
	held, err := s.holding(ctx, userID, symbol)

	if err != nil {
		return model.Transaction{}, err
	}

	if err := checkHolding(held, shares); err != nil {
		return model.Transaction{}, err
	}

	current, err := s.Lookup(ctx, symbol)

	if err != nil {
		return model.Transaction{}, err
	}

	price := current.Price.Round(PricePlaces)
	proceeds := price.Mul(decimal.NewFromInt(shares))
	record := model.Transaction{
		UserID:   userID,
		Symbol:   symbol,
		Quantity: shares,
		Price:    price,
		Type:     model.Sell,
	}

	unlock := s.lock(userID)
	defer unlock()

	err = s.store.Update(ctx, userID, func(tx Tx) error {
		user, err := tx.User(ctx)

		if err != nil {
			return err
		}

		holding, err := tx.Holding(ctx, symbol)

		if err != nil {
			return err
		}

		if err := checkHolding(holding, shares); err != nil {
			return err
		}

		cash := user.Cash.Add(proceeds)

		if err := checkCash(cash); err != nil {
			return err
		}

		record.Username = user.Username
		record.Time = s.now()

		if record.ID, err = tx.AppendTransaction(ctx, record); err != nil {
			return err
		}

		if err := tx.SetCash(ctx, cash); err != nil {
			return err
		}

		return tx.SetHolding(ctx, symbol, holding.Quantity-shares)
	})

	if err != nil {
		return model.Transaction{}, err
	}

	return record, nil
}

// AddCash deposits a whole amount of cash.
func (s *Service) AddCash(ctx context.Context, userID int64, amount int64) (model.User, error) {
	if amount < 1 {
		return model.User{}, ErrInvalidAmount
	}

	var updated model.User

	unlock := s.lock(userID)
	defer unlock()

	err := s.store.Update(ctx, userID, func(tx Tx) error {
		user, err := tx.User(ctx)

		if err != nil {
			return err
		}

		user.Cash = user.Cash.Add(decimal.NewFromInt(amount))

		if err := checkCash(user.Cash); err != nil {
			return err
		}

		updated = user

		return tx.SetCash(ctx, user.Cash)
	})

	if err != nil {
		return model.User{}, err
	}

	return updated, nil
}

func (s *Service) holding(ctx context.Context, userID int64, symbol string) (model.Holding, error) {
	holdingList, err := s.store.Holdings(ctx, userID)

	if err != nil {
		return model.Holding{}, err
	}

	for _, holding := range holdingList {
		if holding.Symbol == symbol {
			return holding, nil
		}
	}

	return model.Holding{Symbol: symbol}, nil
}

// Holdings returns the symbols a user holds a nonzero quantity of, by symbol.
func (s *Service) Holdings(ctx context.Context, userID int64) ([]model.Holding, error) {
	holdingList, err := s.store.Holdings(ctx, userID)

	if err != nil {
		return nil, err
	}

	held := make([]model.Holding, 0, len(holdingList))

	for _, holding := range holdingList {
		if holding.Quantity > 0 {
			held = append(held, holding)
		}
	}

	sort.Slice(held, func(i, j int) bool {
		return held[i].Symbol < held[j].Symbol
	})

	return held, nil
}

// Portfolio values every holding at the current price.
//
// Holdings which can't be priced are included with Available set to false
// and add nothing to the total.
func (s *Service) Portfolio(ctx context.Context, userID int64) (model.Portfolio, error) {
	var portfolio model.Portfolio
	var err error

	if portfolio.User, err = s.store.UserByID(ctx, userID); err != nil {
		return portfolio, err
	}

	held, err := s.Holdings(ctx, userID)

	if err != nil {
		return portfolio, err
	}

	portfolio.Positions = make([]model.Position, 0, len(held))
	portfolio.Total = portfolio.User.Cash

	for _, holding := range held {
		position := model.Position{Holding: holding, Name: holding.Symbol}

		if current, err := s.Lookup(ctx, holding.Symbol); err == nil {
			position.Name = current.Name
			position.Price = current.Price
			position.Value = current.Price.Mul(decimal.NewFromInt(holding.Quantity))
			position.Available = true
			portfolio.Total = portfolio.Total.Add(position.Value)
		}

		portfolio.Positions = append(portfolio.Positions, position)
	}

	return portfolio, nil
}

// History returns every transaction for a user in the order they happened.
func (s *Service) History(ctx context.Context, userID int64) ([]model.Transaction, error) {
	return s.store.Transactions(ctx, userID)
}
