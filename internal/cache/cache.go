package cache

import (
	"context"
	"sync"
	"time"

	"github.com/memocracy/chaincore/internal/metrics"
	"github.com/rs/zerolog"
)

// Default TTLs for the three caches. Sized for data that goes stale at very
// different rates: the SOL price moves slowly relative to wallet state.
const (
	DefaultPriceTTL       = 5 * time.Minute
	DefaultBalanceTTL     = 1 * time.Minute
	DefaultTransactionTTL = 2 * time.Minute
)

// DefaultSOLPriceUSD is the last-resort price when the oracle has never
// answered. Better a rough USD figure than none at all.
const DefaultSOLPriceUSD = 100.0

// nowFunc is injectable for TTL tests
type nowFunc func() time.Time

// PriceFetcher fetches the current SOL/USD price from the oracle
type PriceFetcher func(ctx context.Context) (float64, error)

// PriceCache is a read-through cache for the single global SOL/USD price.
// On oracle failure it falls back to the last-known value even when stale,
// then to DefaultSOLPriceUSD if no value has ever been cached.
type PriceCache struct {
	mu       sync.Mutex
	fetch    PriceFetcher
	value    float64
	cachedAt time.Time
	hasValue bool
	ttl      time.Duration
	now      nowFunc
	logger   zerolog.Logger
}

// PriceCacheOption configures a PriceCache
type PriceCacheOption func(*PriceCache)

// WithPriceTTL overrides the price TTL
func WithPriceTTL(ttl time.Duration) PriceCacheOption {
	return func(c *PriceCache) {
		c.ttl = ttl
	}
}

// WithPriceClock injects a clock, for tests
func WithPriceClock(now func() time.Time) PriceCacheOption {
	return func(c *PriceCache) {
		c.now = now
	}
}

// NewPriceCache creates a price cache in front of the given oracle fetcher
func NewPriceCache(fetch PriceFetcher, logger zerolog.Logger, options ...PriceCacheOption) *PriceCache {
	cache := &PriceCache{
		fetch:  fetch,
		ttl:    DefaultPriceTTL,
		now:    time.Now,
		logger: logger.With().Str("component", "price_cache").Logger(),
	}

	for _, option := range options {
		option(cache)
	}

	return cache
}

// SOLPrice returns the cached SOL/USD price, refreshing it when expired.
// Never fails: stale value, then hardcoded default, on oracle trouble.
func (c *PriceCache) SOLPrice(ctx context.Context) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasValue && c.now().Sub(c.cachedAt) < c.ttl {
		metrics.RecordCacheRequest("price", "hit")
		return c.value
	}

	price, err := c.fetch(ctx)
	if err != nil {
		if c.hasValue {
			metrics.RecordCacheRequest("price", "stale")
			c.logger.Warn().Err(err).Float64("stale_price", c.value).Msg("Price oracle failed, serving stale value")
			return c.value
		}
		metrics.RecordCacheRequest("price", "default")
		c.logger.Error().Err(err).Msg("Price oracle failed with empty cache, serving default")
		return DefaultSOLPriceUSD
	}

	metrics.RecordCacheRequest("price", "miss")
	c.value = price
	c.cachedAt = c.now()
	c.hasValue = true
	return price
}

// Invalidate drops the cached price, forcing the next read to hit the oracle
func (c *PriceCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasValue = false
}
