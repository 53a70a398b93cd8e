package cache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/memocracy/chaincore/internal/metrics"
	"github.com/memocracy/chaincore/internal/solana"
	"github.com/rs/zerolog"
)

// TransactionFetcher fetches the recent deposit list for an address
type TransactionFetcher func(ctx context.Context, address string, limit int) ([]solana.TransactionInfo, error)

type transactionEntry struct {
	transactions []solana.TransactionInfo
	cachedAt     time.Time
}

// TransactionCache is a read-through per-(address, limit) cache for wallet
// transaction lists. On fetch failure it serves stale data when available:
// availability over freshness on error.
type TransactionCache struct {
	mu      sync.Mutex
	fetch   TransactionFetcher
	entries map[string]transactionEntry
	ttl     time.Duration
	now     nowFunc
	logger  zerolog.Logger
}

// TransactionCacheOption configures a TransactionCache
type TransactionCacheOption func(*TransactionCache)

// WithTransactionTTL overrides the transaction list TTL
func WithTransactionTTL(ttl time.Duration) TransactionCacheOption {
	return func(c *TransactionCache) {
		c.ttl = ttl
	}
}

// WithTransactionClock injects a clock, for tests
func WithTransactionClock(now func() time.Time) TransactionCacheOption {
	return func(c *TransactionCache) {
		c.now = now
	}
}

// NewTransactionCache creates a transaction list cache in front of the given fetcher
func NewTransactionCache(fetch TransactionFetcher, logger zerolog.Logger, options ...TransactionCacheOption) *TransactionCache {
	cache := &TransactionCache{
		fetch:   fetch,
		entries: make(map[string]transactionEntry),
		ttl:     DefaultTransactionTTL,
		now:     time.Now,
		logger:  logger.With().Str("component", "transaction_cache").Logger(),
	}

	for _, option := range options {
		option(cache)
	}

	return cache
}

// Get returns the recent deposits for an address, refreshing when expired
func (c *TransactionCache) Get(ctx context.Context, address string, limit int) ([]solana.TransactionInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(address, limit)
	entry, cached := c.entries[key]

	if cached && c.now().Sub(entry.cachedAt) < c.ttl {
		metrics.RecordCacheRequest("transactions", "hit")
		return entry.transactions, nil
	}

	transactions, err := c.fetch(ctx, address, limit)
	if err != nil {
		if cached {
			metrics.RecordCacheRequest("transactions", "stale")
			c.logger.Warn().Err(err).Str("wallet", address).Msg("Transaction fetch failed, serving stale list")
			return entry.transactions, nil
		}
		metrics.RecordCacheRequest("transactions", "error")
		return nil, err
	}

	metrics.RecordCacheRequest("transactions", "miss")
	c.entries[key] = transactionEntry{transactions: transactions, cachedAt: c.now()}
	return transactions, nil
}

// Invalidate drops all cached lists for an address, across every limit
func (c *TransactionCache) Invalidate(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, address+":") {
			delete(c.entries, key)
		}
	}
}

func cacheKey(address string, limit int) string {
	return address + ":" + strconv.Itoa(limit)
}
