package cache

import (
	"context"
	"sync"
	"time"

	"github.com/memocracy/chaincore/internal/metrics"
	"github.com/rs/zerolog"
)

// Balance is a wallet balance in lamports with its USD equivalent
type Balance struct {
	Lamports uint64
	USD      float64
}

// BalanceFetcher fetches the current balance for an address
type BalanceFetcher func(ctx context.Context, address string) (Balance, error)

type balanceEntry struct {
	balance  Balance
	cachedAt time.Time
}

// BalanceCache is a read-through per-address cache for wallet balances
type BalanceCache struct {
	mu      sync.Mutex
	fetch   BalanceFetcher
	entries map[string]balanceEntry
	ttl     time.Duration
	now     nowFunc
	logger  zerolog.Logger
}

// BalanceCacheOption configures a BalanceCache
type BalanceCacheOption func(*BalanceCache)

// WithBalanceTTL overrides the balance TTL
func WithBalanceTTL(ttl time.Duration) BalanceCacheOption {
	return func(c *BalanceCache) {
		c.ttl = ttl
	}
}

// WithBalanceClock injects a clock, for tests
func WithBalanceClock(now func() time.Time) BalanceCacheOption {
	return func(c *BalanceCache) {
		c.now = now
	}
}

// NewBalanceCache creates a balance cache in front of the given fetcher
func NewBalanceCache(fetch BalanceFetcher, logger zerolog.Logger, options ...BalanceCacheOption) *BalanceCache {
	cache := &BalanceCache{
		fetch:   fetch,
		entries: make(map[string]balanceEntry),
		ttl:     DefaultBalanceTTL,
		now:     time.Now,
		logger:  logger.With().Str("component", "balance_cache").Logger(),
	}

	for _, option := range options {
		option(cache)
	}

	return cache
}

// Get returns the balance for an address, refreshing it when expired
func (c *BalanceCache) Get(ctx context.Context, address string) (Balance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[address]; ok && c.now().Sub(entry.cachedAt) < c.ttl {
		metrics.RecordCacheRequest("balance", "hit")
		return entry.balance, nil
	}

	balance, err := c.fetch(ctx, address)
	if err != nil {
		metrics.RecordCacheRequest("balance", "error")
		return Balance{}, err
	}

	metrics.RecordCacheRequest("balance", "miss")
	c.entries[address] = balanceEntry{balance: balance, cachedAt: c.now()}
	return balance, nil
}

// Invalidate drops the cached balance for an address
func (c *BalanceCache) Invalidate(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, address)
}
