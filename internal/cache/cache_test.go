package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/memocracy/chaincore/internal/solana"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance time past TTL boundaries deterministically
type fakeClock struct {
	current time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func TestPriceCache(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh value served from cache", func(t *testing.T) {
		clock := newFakeClock()
		calls := 0
		cache := NewPriceCache(func(ctx context.Context) (float64, error) {
			calls++
			return 150.0, nil
		}, zerolog.Nop(), WithPriceClock(clock.Now))

		assert.Equal(t, 150.0, cache.SOLPrice(ctx))
		clock.Advance(4*time.Minute + 59*time.Second)
		assert.Equal(t, 150.0, cache.SOLPrice(ctx))
		assert.Equal(t, 1, calls)
	})

	t.Run("expired value refetched", func(t *testing.T) {
		clock := newFakeClock()
		prices := []float64{150.0, 175.0}
		calls := 0
		cache := NewPriceCache(func(ctx context.Context) (float64, error) {
			price := prices[calls]
			calls++
			return price, nil
		}, zerolog.Nop(), WithPriceClock(clock.Now))

		assert.Equal(t, 150.0, cache.SOLPrice(ctx))
		clock.Advance(5*time.Minute + 1*time.Second)
		assert.Equal(t, 175.0, cache.SOLPrice(ctx))
		assert.Equal(t, 2, calls)
	})

	t.Run("stale value served on oracle failure", func(t *testing.T) {
		clock := newFakeClock()
		calls := 0
		cache := NewPriceCache(func(ctx context.Context) (float64, error) {
			calls++
			if calls == 1 {
				return 150.0, nil
			}
			return 0, errors.New("oracle down")
		}, zerolog.Nop(), WithPriceClock(clock.Now))

		assert.Equal(t, 150.0, cache.SOLPrice(ctx))
		clock.Advance(time.Hour)
		assert.Equal(t, 150.0, cache.SOLPrice(ctx))
	})

	t.Run("default served when never cached", func(t *testing.T) {
		cache := NewPriceCache(func(ctx context.Context) (float64, error) {
			return 0, errors.New("oracle down")
		}, zerolog.Nop())

		assert.Equal(t, DefaultSOLPriceUSD, cache.SOLPrice(ctx))
	})

	t.Run("invalidate forces refetch", func(t *testing.T) {
		clock := newFakeClock()
		calls := 0
		cache := NewPriceCache(func(ctx context.Context) (float64, error) {
			calls++
			return 150.0, nil
		}, zerolog.Nop(), WithPriceClock(clock.Now))

		cache.SOLPrice(ctx)
		cache.Invalidate()
		cache.SOLPrice(ctx)
		assert.Equal(t, 2, calls)
	})
}

func TestBalanceCache(t *testing.T) {
	ctx := context.Background()

	t.Run("per address caching", func(t *testing.T) {
		clock := newFakeClock()
		calls := map[string]int{}
		cache := NewBalanceCache(func(ctx context.Context, address string) (Balance, error) {
			calls[address]++
			return Balance{Lamports: 1_000_000, USD: 0.15}, nil
		}, zerolog.Nop(), WithBalanceClock(clock.Now))

		first, err := cache.Get(ctx, "addrA")
		require.NoError(t, err)
		assert.Equal(t, uint64(1_000_000), first.Lamports)

		_, err = cache.Get(ctx, "addrA")
		require.NoError(t, err)
		_, err = cache.Get(ctx, "addrB")
		require.NoError(t, err)

		assert.Equal(t, 1, calls["addrA"])
		assert.Equal(t, 1, calls["addrB"])
	})

	t.Run("expired entry refetched", func(t *testing.T) {
		clock := newFakeClock()
		calls := 0
		cache := NewBalanceCache(func(ctx context.Context, address string) (Balance, error) {
			calls++
			return Balance{Lamports: 500}, nil
		}, zerolog.Nop(), WithBalanceClock(clock.Now))

		_, err := cache.Get(ctx, "addrA")
		require.NoError(t, err)
		clock.Advance(61 * time.Second)
		_, err = cache.Get(ctx, "addrA")
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("fetch errors propagate", func(t *testing.T) {
		cache := NewBalanceCache(func(ctx context.Context, address string) (Balance, error) {
			return Balance{}, errors.New("rpc down")
		}, zerolog.Nop())

		_, err := cache.Get(ctx, "addrA")
		assert.Error(t, err)
	})

	t.Run("invalidate forces refetch", func(t *testing.T) {
		clock := newFakeClock()
		calls := 0
		cache := NewBalanceCache(func(ctx context.Context, address string) (Balance, error) {
			calls++
			return Balance{}, nil
		}, zerolog.Nop(), WithBalanceClock(clock.Now))

		cache.Get(ctx, "addrA")
		cache.Invalidate("addrA")
		cache.Get(ctx, "addrA")
		assert.Equal(t, 2, calls)
	})
}

func TestTransactionCache(t *testing.T) {
	ctx := context.Background()
	sample := []solana.TransactionInfo{{Signature: "sig1", AmountLamports: 5000}}

	t.Run("cached per address and limit", func(t *testing.T) {
		clock := newFakeClock()
		calls := 0
		cache := NewTransactionCache(func(ctx context.Context, address string, limit int) ([]solana.TransactionInfo, error) {
			calls++
			return sample, nil
		}, zerolog.Nop(), WithTransactionClock(clock.Now))

		txs, err := cache.Get(ctx, "addrA", 10)
		require.NoError(t, err)
		assert.Len(t, txs, 1)

		_, err = cache.Get(ctx, "addrA", 10)
		require.NoError(t, err)
		assert.Equal(t, 1, calls)

		// A different limit is a different entry
		_, err = cache.Get(ctx, "addrA", 25)
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("expired entry refetched", func(t *testing.T) {
		clock := newFakeClock()
		calls := 0
		cache := NewTransactionCache(func(ctx context.Context, address string, limit int) ([]solana.TransactionInfo, error) {
			calls++
			return sample, nil
		}, zerolog.Nop(), WithTransactionClock(clock.Now))

		cache.Get(ctx, "addrA", 10)
		clock.Advance(2*time.Minute + 1*time.Second)
		cache.Get(ctx, "addrA", 10)
		assert.Equal(t, 2, calls)
	})

	t.Run("stale list served on fetch failure", func(t *testing.T) {
		clock := newFakeClock()
		calls := 0
		cache := NewTransactionCache(func(ctx context.Context, address string, limit int) ([]solana.TransactionInfo, error) {
			calls++
			if calls == 1 {
				return sample, nil
			}
			return nil, errors.New("rpc down")
		}, zerolog.Nop(), WithTransactionClock(clock.Now))

		_, err := cache.Get(ctx, "addrA", 10)
		require.NoError(t, err)

		clock.Advance(time.Hour)
		txs, err := cache.Get(ctx, "addrA", 10)
		require.NoError(t, err)
		assert.Equal(t, "sig1", txs[0].Signature)
	})

	t.Run("error with no stale entry propagates", func(t *testing.T) {
		cache := NewTransactionCache(func(ctx context.Context, address string, limit int) ([]solana.TransactionInfo, error) {
			return nil, errors.New("rpc down")
		}, zerolog.Nop())

		_, err := cache.Get(ctx, "addrA", 10)
		assert.Error(t, err)
	})

	t.Run("invalidate drops all limits for address", func(t *testing.T) {
		clock := newFakeClock()
		calls := 0
		cache := NewTransactionCache(func(ctx context.Context, address string, limit int) ([]solana.TransactionInfo, error) {
			calls++
			return sample, nil
		}, zerolog.Nop(), WithTransactionClock(clock.Now))

		cache.Get(ctx, "addrA", 10)
		cache.Get(ctx, "addrA", 25)
		cache.Get(ctx, "addrB", 10)
		require.Equal(t, 3, calls)

		cache.Invalidate("addrA")

		cache.Get(ctx, "addrA", 10)
		cache.Get(ctx, "addrA", 25)
		cache.Get(ctx, "addrB", 10)
		assert.Equal(t, 5, calls)
	})
}
