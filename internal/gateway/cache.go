// Package gateway implements domain.MarketGateway twice: a paper gateway that
// fills orders on the local ledger and a broker gateway that delegates to
// Alpaca. Market data on both goes through the cache.db cache.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/tradingdesk/internal/clientdata"
	"github.com/aristath/tradingdesk/internal/domain"
	"github.com/aristath/tradingdesk/internal/reliability"
)

// Cache is cache-first market data with stale fallback. A nil repository
// disables caching. Upstream fetches go through the retry policy either way.
type Cache struct {
	repo  *clientdata.Repository
	retry reliability.RetryPolicy
	log   zerolog.Logger
}

// NewCache creates a cache over repo
func NewCache(repo *clientdata.Repository, log zerolog.Logger) *Cache {
	return &Cache{
		repo:  repo,
		retry: reliability.DefaultRetryPolicy,
		log:   log.With().Str("component", "market_cache").Logger(),
	}
}

// WithRetryPolicy replaces the retry policy used for upstream fetches.
func (c *Cache) WithRetryPolicy(p reliability.RetryPolicy) *Cache {
	c.retry = p
	return c
}

// fetchCached returns a fresh cached value, else calls fetch and stores the
// result. Transient fetch failures are retried; when fetch still fails, any
// stale entry is returned instead.
func fetchCached[T any](ctx context.Context, c *Cache, table, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	policy, log := reliability.DefaultRetryPolicy, zerolog.Nop()
	if c != nil {
		policy, log = c.retry, c.log
	}
	load := func(ctx context.Context) (T, error) {
		return reliability.Do(ctx, policy, log, table+":"+key, fetch)
	}

	if c == nil || c.repo == nil {
		return load(ctx)
	}

	var cached T
	if ok, err := c.repo.GetIfFresh(ctx, table, key, &cached); err == nil && ok {
		return cached, nil
	} else if err != nil {
		c.log.Debug().Err(err).Str("table", table).Str("key", key).Msg("Cache read failed")
	}

	value, err := load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return zero, err
		}
		var stale T
		if ok, cacheErr := c.repo.Get(ctx, table, key, &stale); cacheErr == nil && ok {
			c.log.Warn().Err(err).Str("table", table).Str("key", key).Msg("Upstream failed, using stale cached data")
			return stale, nil
		}
		return zero, err
	}

	if err := c.repo.Store(ctx, table, key, value, ttl); err != nil {
		c.log.Warn().Err(err).Str("table", table).Str("key", key).Msg("Failed to cache market data")
	}
	return value, nil
}

func quoteKey(symbol string) string {
	return strings.ToUpper(symbol)
}

func barsKey(symbol string, r domain.BarRange) string {
	return fmt.Sprintf("%s:%s:%d", strings.ToUpper(symbol), r.Timeframe, int64(r.Lookback.Hours()))
}

func newsKey(symbol string, limit int) string {
	return fmt.Sprintf("%s:%d", strings.ToUpper(symbol), limit)
}
