package quote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dense-analysis/stockwarp/internal/config"
	"github.com/dense-analysis/stockwarp/internal/model"
	"github.com/shopspring/decimal"
)

func newTestHTTPProvider(url string) *HTTPProvider {
	return NewHTTPProvider(HTTPOptions{
		URL:        url + "/stock/{symbol}/quote?token={token}",
		APIKey:     "test key",
		SymbolPath: config.DefaultQuoteSymbolPath,
		NamePath:   config.DefaultQuoteNamePath,
		PricePath:  config.DefaultQuotePricePath,
	})
}

func TestHTTPProviderLookup(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stock/NFLX/quote" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("token"); got != "test key" {
			t.Errorf("expected token query test key, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"nflx","companyName":"Netflix Inc.","latestPrice":431.1234}`))
	}))
	defer ts.Close()

	q, err := newTestHTTPProvider(ts.URL).Lookup(context.Background(), "NFLX")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if q.Symbol != "NFLX" || q.Name != "Netflix Inc." {
		t.Fatalf("unexpected quote: %+v", q)
	}
	if !q.Price.Equal(decimal.RequireFromString("431.1234")) {
		t.Fatalf("unexpected price %s", q.Price)
	}
}

func TestHTTPProviderLookupStringPriceAndCustomPaths(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Global Quote":{"01. symbol":"IBM","05. price":"120.5000"}}`))
	}))
	defer ts.Close()

	p := NewHTTPProvider(HTTPOptions{
		URL:        ts.URL + "/query?symbol={symbol}",
		SymbolPath: `$["Global Quote"]["01. symbol"]`,
		NamePath:   `$.name`,
		PricePath:  `$["Global Quote"]["05. price"]`,
	})

	q, err := p.Lookup(context.Background(), "IBM")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if q.Symbol != "IBM" || q.Name != "IBM" {
		t.Fatalf("unexpected quote: %+v", q)
	}
	if !q.Price.Equal(decimal.NewFromFloat(120.5)) {
		t.Fatalf("unexpected price %s", q.Price)
	}
}

func TestHTTPProviderLookupNotFound(t *testing.T) {
	t.Parallel()

	tests := map[string]http.HandlerFunc{
		"status 404": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Unknown symbol", http.StatusNotFound)
		},
		"null body": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`null`))
		},
		"null price": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"symbol":"ZZZZ","latestPrice":null}`))
		},
		"zero price": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"symbol":"ZZZZ","latestPrice":0}`))
		},
		"negative price": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"symbol":"ZZZZ","latestPrice":"-1.5"}`))
		},
	}

	for name, handler := range tests {
		handler := handler
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ts := httptest.NewServer(handler)
			defer ts.Close()

			_, err := newTestHTTPProvider(ts.URL).Lookup(context.Background(), "ZZZZ")
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestHTTPProviderLookupServerError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := newTestHTTPProvider(ts.URL).Lookup(context.Background(), "AAPL")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a transport error, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 502") {
		t.Fatalf("expected the status in the error, got %v", err)
	}
}

type slowProvider struct{}

func (slowProvider) Lookup(ctx context.Context, symbol string) (model.Quote, error) {
	<-ctx.Done()

	return model.Quote{}, ctx.Err()
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	start := time.Now()
	_, err := WithTimeout(slowProvider{}, 10*time.Millisecond).Lookup(context.Background(), "AAPL")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected a deadline error, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("lookup was not bounded by the timeout")
	}
}

func TestParseStatic(t *testing.T) {
	t.Parallel()

	p, err := ParseStatic("aapl:Apple Inc.:150.25; NFLX:Netflix Inc.:100 ;")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	q, err := p.Lookup(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if q.Name != "Apple Inc." || !q.Price.Equal(decimal.RequireFromString("150.25")) {
		t.Fatalf("unexpected quote: %+v", q)
	}

	if _, err := p.Lookup(context.Background(), "MSFT"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	p.Set(model.Quote{Symbol: "FREE", Name: "Free Lunch", Price: decimal.Zero})

	if _, err := p.Lookup(context.Background(), "FREE"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a zero price, got %v", err)
	}

	for _, table := range []string{"AAPL:Apple", "AAPL:Apple:abc", "AAPL:Apple:-1", "AAPL:Apple:0"} {
		if _, err := ParseStatic(table); err == nil {
			t.Fatalf("expected an error for %q", table)
		}
	}
}

type mapCache struct {
	values  map[string]string
	ttl     time.Duration
	getErr  error
	setErrs int
}

func (c *mapCache) Get(ctx context.Context, key string) (string, error) {
	if c.getErr != nil {
		return "", c.getErr
	}
	if value, ok := c.values[key]; ok {
		return value, nil
	}
	return "", errCacheMiss
}

func (c *mapCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	c.values[key] = value
	c.ttl = ttl
	return nil
}

type countingProvider struct {
	Provider
	calls int
}

func (p *countingProvider) Lookup(ctx context.Context, symbol string) (model.Quote, error) {
	p.calls++
	return p.Provider.Lookup(ctx, symbol)
}

func TestCachedProvider(t *testing.T) {
	t.Parallel()

	next := &countingProvider{Provider: NewStaticProvider(model.Quote{
		Symbol: "AAPL",
		Name:   "Apple Inc.",
		Price:  decimal.RequireFromString("150.10"),
	})}
	cache := &mapCache{values: map[string]string{}}
	p := NewCachedProvider(next, cache, time.Minute)

	for i := 0; i < 3; i++ {
		q, err := p.Lookup(context.Background(), "AAPL")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if q.Name != "Apple Inc." || !q.Price.Equal(decimal.RequireFromString("150.10")) {
			t.Fatalf("unexpected quote: %+v", q)
		}
	}

	if next.calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", next.calls)
	}
	if cache.ttl != time.Minute {
		t.Fatalf("expected ttl of a minute, got %s", cache.ttl)
	}

	if _, err := p.Lookup(context.Background(), "MSFT"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, ok := cache.values[cacheKey("MSFT")]; ok {
		t.Fatal("failed lookups must not be cached")
	}
}

func TestCachedProviderFallsThroughOnCacheErrors(t *testing.T) {
	t.Parallel()

	next := &countingProvider{Provider: NewStaticProvider(model.Quote{Symbol: "AAPL", Price: decimal.NewFromInt(1)})}
	cache := &mapCache{values: map[string]string{}, getErr: errors.New("connection refused")}

	if _, err := NewCachedProvider(next, cache, time.Minute).Lookup(context.Background(), "AAPL"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if next.calls != 1 {
		t.Fatalf("expected the provider to be called, got %d calls", next.calls)
	}
}

func TestNewFromConfigStatic(t *testing.T) {
	t.Parallel()

	p, closeFunc, err := NewFromConfig(config.Quote{
		Provider: "static",
		Static:   "AAPL:Apple Inc.:150",
		Timeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer closeFunc()

	if _, err := p.Lookup(context.Background(), "AAPL"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, _, err := NewFromConfig(config.Quote{Provider: "carrier-pigeon"}); err == nil {
		t.Fatal("expected an error for an unknown provider")
	}
}
