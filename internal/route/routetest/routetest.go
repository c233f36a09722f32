// Package routetest builds in memory environments for testing handlers.
package routetest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dense-analysis/stockwarp/internal/ledger"
	"github.com/dense-analysis/stockwarp/internal/model"
	"github.com/dense-analysis/stockwarp/internal/quote"
	"github.com/dense-analysis/stockwarp/internal/route/util"
	"github.com/dense-analysis/stockwarp/internal/session"
	"github.com/dense-analysis/stockwarp/internal/template"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Fixture is an Env backed by memory storage and static quotes.
//
// AAPL is quoted at 100 to begin with.
type Fixture struct {
	Env    *util.Env
	Store  *ledger.MemoryStore
	Quotes *quote.StaticProvider
}

func NewFixture(t testing.TB) *Fixture {
	t.Helper()

	pages, err := template.New("USD")

	if err != nil {
		t.Fatalf("failed to load templates: %v", err)
	}

	store := ledger.NewMemoryStore()
	quotes := quote.NewStaticProvider(model.Quote{
		Symbol: "AAPL",
		Name:   "Apple Inc.",
		Price:  decimal.NewFromInt(100),
	})

	return &Fixture{
		Env: &util.Env{
			Ledger: ledger.NewService(store, quotes, ledger.Options{
				StartingCash: decimal.NewFromInt(10000),
				BcryptCost:   bcrypt.MinCost,
			}),
			Sessions: session.NewStore("test-secret", false),
			Pages:    pages,
		},
		Store:  store,
		Quotes: quotes,
	}
}

// Login registers a user and returns the cookies for their session.
func (f *Fixture) Login(t testing.TB, username string) (model.User, []*http.Cookie) {
	t.Helper()

	user, err := f.Env.Ledger.Register(context.Background(), username, "password", "password")

	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}

	recorder := httptest.NewRecorder()

	if err := f.Env.Sessions.SaveUserID(recorder, httptest.NewRequest(http.MethodGet, "/", nil), user.ID); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}

	return user, recorder.Result().Cookies()
}

// User reloads a user from storage.
func (f *Fixture) User(t testing.TB, userID int64) model.User {
	t.Helper()

	user, err := f.Store.UserByID(context.Background(), userID)

	if err != nil {
		t.Fatalf("failed to load user %d: %v", userID, err)
	}

	return user
}

// Shares returns how many shares of a symbol a user holds.
func (f *Fixture) Shares(t testing.TB, userID int64, symbol string) int64 {
	t.Helper()

	holdingList, err := f.Store.Holdings(context.Background(), userID)

	if err != nil {
		t.Fatalf("failed to load holdings: %v", err)
	}

	for _, holding := range holdingList {
		if holding.Symbol == symbol {
			return holding.Quantity
		}
	}

	return 0
}

// Serve sends a request to a handler. Form values are sent as a POST body
// when they are not nil.
func Serve(
	handler http.Handler,
	method string,
	target string,
	form url.Values,
	cookies []*http.Cookie,
) *httptest.ResponseRecorder {
	var request *http.Request

	if form != nil {
		request = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		request = httptest.NewRequest(method, target, nil)
	}

	for _, cookie := range cookies {
		request.AddCookie(cookie)
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	return recorder
}
