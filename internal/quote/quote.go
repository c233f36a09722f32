// Package quote looks up current prices for ticker symbols.
package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dense-analysis/stockwarp/internal/config"
	"github.com/dense-analysis/stockwarp/internal/model"
	"github.com/go-redis/redis/v8"
)

// ErrNotFound is returned when a symbol is not known to a provider.
var ErrNotFound = errors.New("quote: symbol not found")

// Provider looks up a quote for a single symbol.
type Provider interface {
	Lookup(ctx context.Context, symbol string) (model.Quote, error)
}

type timeoutProvider struct {
	next    Provider
	timeout time.Duration
}

// WithTimeout bounds every lookup made through a provider.
func WithTimeout(next Provider, timeout time.Duration) Provider {
	return &timeoutProvider{next: next, timeout: timeout}
}

func (p *timeoutProvider) Lookup(ctx context.Context, symbol string) (model.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.next.Lookup(ctx, symbol)
}

// NewFromConfig builds the configured provider, with caching and a timeout.
//
// The returned close function releases any cache connection.
func NewFromConfig(cfg config.Quote) (Provider, func() error, error) {
	var provider Provider

	switch cfg.Provider {
	case "http":
		provider = NewHTTPProvider(HTTPOptions{
			URL:        cfg.URL,
			APIKey:     cfg.APIKey,
			SymbolPath: cfg.SymbolPath,
			NamePath:   cfg.NamePath,
			PricePath:  cfg.PricePath,
			Timeout:    cfg.Timeout,
		})
	case "static":
		static, err := ParseStatic(cfg.Static)

		if err != nil {
			return nil, nil, err
		}

		provider = static
	default:
		return nil, nil, fmt.Errorf("unknown quote provider %q", cfg.Provider)
	}

	closeFunc := func() error { return nil }

	if cfg.RedisAddr != "" && cfg.CacheTTL > 0 {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
		})

		provider = NewCachedProvider(provider, NewRedisCache(client), cfg.CacheTTL)
		closeFunc = client.Close
	}

	return WithTimeout(provider, cfg.Timeout), closeFunc, nil
}
