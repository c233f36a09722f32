package ledger

import (
	"context"
	"sort"

	"github.com/dense-analysis/stockwarp/internal/model"
	"github.com/shopspring/decimal"
)

type memoryUser struct {
	user     model.User
	password string
}

// MemoryStore keeps the ledger in memory. Data is lost when the process stops.
type MemoryStore struct {
	mu           chanMutex
	nextUserID   int64
	nextTxID     int64
	users        map[int64]*memoryUser
	usernames    map[string]int64
	holdings     map[int64]map[string]int64
	transactions []model.Transaction
}

// chanMutex is a mutex which can give up waiting when a context is cancelled.
type chanMutex chan struct{}

func (m chanMutex) lock(ctx context.Context) error {
	select {
	case m <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m chanMutex) unlock() {
	<-m
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu:        make(chanMutex, 1),
		users:     map[int64]*memoryUser{},
		usernames: map[string]int64{},
		holdings:  map[int64]map[string]int64{},
	}
}

func (s *MemoryStore) CreateUser(ctx context.Context, username string, passwordHash string, cash decimal.Decimal) (model.User, error) {
	if err := s.mu.lock(ctx); err != nil {
		return model.User{}, err
	}
	defer s.mu.unlock()

	if _, ok := s.usernames[username]; ok {
		return model.User{}, ErrUsernameTaken
	}

	s.nextUserID++
	user := model.User{ID: s.nextUserID, Username: username, Cash: cash}
	s.users[user.ID] = &memoryUser{user: user, password: passwordHash}
	s.usernames[username] = user.ID

	return user, nil
}

func (s *MemoryStore) UserByID(ctx context.Context, id int64) (model.User, error) {
	if err := s.mu.lock(ctx); err != nil {
		return model.User{}, err
	}
	defer s.mu.unlock()

	if entry, ok := s.users[id]; ok {
		return entry.user, nil
	}

	return model.User{}, ErrUserNotFound
}

func (s *MemoryStore) Credentials(ctx context.Context, username string) (model.User, string, error) {
	if err := s.mu.lock(ctx); err != nil {
		return model.User{}, "", err
	}
	defer s.mu.unlock()

	if id, ok := s.usernames[username]; ok {
		entry := s.users[id]

		return entry.user, entry.password, nil
	}

	return model.User{}, "", ErrUserNotFound
}

func (s *MemoryStore) Holdings(ctx context.Context, userID int64) ([]model.Holding, error) {
	if err := s.mu.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.unlock()

	holdingList := make([]model.Holding, 0, len(s.holdings[userID]))

	for symbol, quantity := range s.holdings[userID] {
		holdingList = append(holdingList, model.Holding{Symbol: symbol, Quantity: quantity})
	}

	sort.Slice(holdingList, func(i, j int) bool {
		return holdingList[i].Symbol < holdingList[j].Symbol
	})

	return holdingList, nil
}

func (s *MemoryStore) Transactions(ctx context.Context, userID int64) ([]model.Transaction, error) {
	if err := s.mu.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.unlock()

	var transactionList []model.Transaction

	// Transactions are appended in order, so they are already chronological.
	for _, transaction := range s.transactions {
		if transaction.UserID == userID {
			transactionList = append(transactionList, transaction)
		}
	}

	return transactionList, nil
}

// Update stages every write made by `fn` and applies them only if it succeeds.
func (s *MemoryStore) Update(ctx context.Context, userID int64, fn func(Tx) error) error {
	if err := s.mu.lock(ctx); err != nil {
		return err
	}
	defer s.mu.unlock()

	entry, ok := s.users[userID]

	if !ok {
		return ErrUserNotFound
	}

	tx := &memoryTx{
		store:    s,
		user:     entry.user,
		holdings: map[string]int64{},
	}

	if err := fn(tx); err != nil {
		return err
	}

	entry.user.Cash = tx.user.Cash

	if len(tx.holdings) > 0 && s.holdings[userID] == nil {
		s.holdings[userID] = map[string]int64{}
	}

	for symbol, quantity := range tx.holdings {
		s.holdings[userID][symbol] = quantity
	}

	for _, transaction := range tx.appended {
		s.nextTxID++
		transaction.ID = s.nextTxID
		s.transactions = append(s.transactions, transaction)
	}

	return nil
}

type memoryTx struct {
	store    *MemoryStore
	user     model.User
	holdings map[string]int64
	appended []model.Transaction
}

func (tx *memoryTx) User(ctx context.Context) (model.User, error) {
	return tx.user, nil
}

func (tx *memoryTx) Holding(ctx context.Context, symbol string) (model.Holding, error) {
	if quantity, ok := tx.holdings[symbol]; ok {
		return model.Holding{Symbol: symbol, Quantity: quantity}, nil
	}

	return model.Holding{Symbol: symbol, Quantity: tx.store.holdings[tx.user.ID][symbol]}, nil
}

func (tx *memoryTx) SetCash(ctx context.Context, cash decimal.Decimal) error {
	if cash.IsNegative() {
		return ErrInsufficientCash
	}

	tx.user.Cash = cash

	return nil
}

func (tx *memoryTx) SetHolding(ctx context.Context, symbol string, quantity int64) error {
	if quantity < 0 {
		return ErrInsufficientShares
	}

	tx.holdings[symbol] = quantity

	return nil
}

func (tx *memoryTx) AppendTransaction(ctx context.Context, transaction model.Transaction) (int64, error) {
	transaction.UserID = tx.user.ID
	tx.appended = append(tx.appended, transaction)

	// IDs are handed out on commit, so report the ID this will get.
	return tx.store.nextTxID + int64(len(tx.appended)), nil
}
