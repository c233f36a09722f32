package quote

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dense-analysis/stockwarp/internal/logging"
	"github.com/dense-analysis/stockwarp/internal/model"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

var errCacheMiss = errors.New("quote: cache miss")

// Cache stores serialised quotes by key.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// RedisCache is a Cache backed by Redis.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, key).Result()

	if err == redis.Nil {
		return "", errCacheMiss
	}

	return value, err
}

func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

type cachedQuote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

// CachedProvider keeps successful lookups from another provider for a while.
//
// Cache failures are logged and never fail a lookup.
type CachedProvider struct {
	next  Provider
	cache Cache
	ttl   time.Duration
}

func NewCachedProvider(next Provider, cache Cache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, cache: cache, ttl: ttl}
}

func cacheKey(symbol string) string {
	return "stock:" + symbol + ":quote"
}

func (p *CachedProvider) Lookup(ctx context.Context, symbol string) (model.Quote, error) {
	key := cacheKey(symbol)
	log := logging.FromContext(ctx).WithField("symbol", symbol)

	if value, err := p.cache.Get(ctx, key); err == nil {
		var cached cachedQuote

		if err := json.Unmarshal([]byte(value), &cached); err == nil {
			return model.Quote(cached), nil
		}

		log.Warn("discarding unreadable cached quote")
	} else if err != errCacheMiss {
		log.WithError(err).Warn("quote cache read failed")
	}

	result, err := p.next.Lookup(ctx, symbol)

	if err != nil {
		return result, err
	}

	if data, err := json.Marshal(cachedQuote(result)); err == nil {
		if err := p.cache.Set(ctx, key, string(data), p.ttl); err != nil {
			log.WithError(err).Warn("quote cache write failed")
		}
	}

	return result, nil
}
