package portfolio

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/dense-analysis/stockwarp/internal/model"
	"github.com/dense-analysis/stockwarp/internal/route/auth"
	"github.com/dense-analysis/stockwarp/internal/route/routetest"
	"github.com/dense-analysis/stockwarp/internal/route/util"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

func newRouter(env *util.Env) *mux.Router {
	router := mux.NewRouter()
	router.Use(auth.RequireUser(env))
	router.HandleFunc("/", util.Handle(env, HandlePortfolio)).Methods("GET")
	router.HandleFunc("/history", util.Handle(env, HandleHistory)).Methods("GET")

	return router
}

func TestPortfolio(t *testing.T) {
	f := routetest.NewFixture(t)
	user, cookies := f.Login(t, "alice")
	ctx := context.Background()

	f.Quotes.Set(model.Quote{Symbol: "MSFT", Name: "Microsoft", Price: decimal.NewFromInt(50)})

	if _, err := f.Env.Ledger.Buy(ctx, user.ID, "AAPL", 10); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	if _, err := f.Env.Ledger.Buy(ctx, user.ID, "MSFT", 2); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	if _, err := f.Env.Ledger.Sell(ctx, user.ID, "MSFT", 2); err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	f.Quotes.Set(model.Quote{Symbol: "AAPL", Name: "Apple Inc.", Price: decimal.NewFromInt(120)})

	recorder := routetest.Serve(newRouter(f.Env), "GET", "/", nil, cookies)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	html := recorder.Body.String()

	for _, expected := range []string{"Apple Inc.", "$120.00", "$1,200.00", "$9,000.00", "$10,200.00"} {
		if !strings.Contains(html, expected) {
			t.Errorf("expected the portfolio to contain %q", expected)
		}
	}

	if strings.Contains(html, "Microsoft") {
		t.Error("sold out positions should not be listed")
	}
}

func TestHistory(t *testing.T) {
	f := routetest.NewFixture(t)
	user, cookies := f.Login(t, "alice")
	ctx := context.Background()

	if _, err := f.Env.Ledger.Buy(ctx, user.ID, "AAPL", 3); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	if _, err := f.Env.Ledger.Sell(ctx, user.ID, "AAPL", 1); err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	recorder := routetest.Serve(newRouter(f.Env), "GET", "/history", nil, cookies)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	html := recorder.Body.String()
	buyIndex := strings.Index(html, "<td>buy</td>")
	sellIndex := strings.Index(html, "<td>sell</td>")

	if buyIndex < 0 || sellIndex < 0 || buyIndex > sellIndex {
		t.Fatalf("expected the buy to be listed before the sell:\n%s", html)
	}
}

func TestHistoryOnlyShowsOwnTransactions(t *testing.T) {
	f := routetest.NewFixture(t)
	alice, _ := f.Login(t, "alice")
	_, bobCookies := f.Login(t, "bob")

	if _, err := f.Env.Ledger.Buy(context.Background(), alice.ID, "AAPL", 1); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	recorder := routetest.Serve(newRouter(f.Env), "GET", "/history", nil, bobCookies)

	if !strings.Contains(recorder.Body.String(), "No transactions yet.") {
		t.Fatal("expected bob to have no history")
	}
}
