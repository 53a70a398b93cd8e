package trustscore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/memocracy/chaincore/internal/market"
	"github.com/memocracy/chaincore/internal/solana"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMarket struct {
	data *market.TokenMarketData
	err  error
}

func (m *mockMarket) TokenData(ctx context.Context, mint string) (*market.TokenMarketData, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.data, nil
}

type mockAuthorities struct {
	info solana.AuthorityInfo
	err  error
}

func (m *mockAuthorities) MintAuthorities(ctx context.Context, mint string) (solana.AuthorityInfo, error) {
	return m.info, m.err
}

type mockVotes struct {
	upvotes int
	total   int
	err     error
}

func (m *mockVotes) VoteCounts(ctx context.Context, mint string) (int, int, error) {
	return m.upvotes, m.total, m.err
}

func TestEngineCompute(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	created := now.Add(-120 * 24 * time.Hour)

	healthyToken := &market.TokenMarketData{
		Name:           "Example Coin",
		Symbol:         "EXM",
		PriceUSD:       0.002,
		PriceChange24h: 2.0,
		Volume24h:      800_000,
		MarketCap:      fptr(20_000_000),
		LiquidityUSD:   fptr(2_000_000),
		PairCreatedAt:  &created,
		Buys24h:        550,
		Sells24h:       450,
	}

	t.Run("full scoring path", func(t *testing.T) {
		engine := NewEngine(
			&mockMarket{data: healthyToken},
			&mockAuthorities{info: solana.AuthorityInfo{MintAuthorityRevoked: true, FreezeAuthorityRevoked: true}},
			&mockVotes{},
			zerolog.Nop(),
			WithClock(func() time.Time { return now }),
		)

		result, err := engine.Compute(context.Background(), "MintA")
		require.NoError(t, err)

		// maturity 30 (120 days), security 25, liquidity 22 (9+10+0+3),
		// trading 20 (10+5+5), stability 20, sentiment 45 (cap proxy)
		assert.Equal(t, 30, result.Breakdown.Maturity)
		assert.Equal(t, 25, result.Breakdown.Security)
		assert.Equal(t, 22, result.Breakdown.Liquidity)
		assert.Equal(t, 20, result.Breakdown.Trading)
		assert.Equal(t, 20, result.Breakdown.Stability)
		assert.Equal(t, 45, result.Breakdown.CommunitySentiment)

		// weighted: 4.5 + 5 + 5.5 + 4 + 1 + 6.75 = 26.75, rounds to 27
		assert.Equal(t, 27, result.OverallScore)
		assert.Equal(t, TierBronze, result.Tier)

		assert.True(t, result.Flags.MintDisabled)
		assert.True(t, result.Flags.FreezeDisabled)
		require.NotNil(t, result.Metrics.AgeDays)
		assert.Equal(t, 120, *result.Metrics.AgeDays)
		assert.Equal(t, now, result.ComputedAt)
	})

	t.Run("unknown token maps to data unavailable", func(t *testing.T) {
		engine := NewEngine(
			&mockMarket{err: market.ErrNotFound},
			&mockAuthorities{},
			&mockVotes{},
			zerolog.Nop(),
		)

		_, err := engine.Compute(context.Background(), "NoSuchMint")
		assert.ErrorIs(t, err, ErrDataUnavailable)
	})

	t.Run("market timeout maps to data unavailable", func(t *testing.T) {
		engine := NewEngine(
			&mockMarket{err: context.DeadlineExceeded},
			&mockAuthorities{},
			&mockVotes{},
			zerolog.Nop(),
		)

		_, err := engine.Compute(context.Background(), "SlowMint")
		assert.ErrorIs(t, err, ErrDataUnavailable)
	})

	t.Run("authority failure degrades security to zero", func(t *testing.T) {
		engine := NewEngine(
			&mockMarket{data: healthyToken},
			&mockAuthorities{err: errors.New("rpc unreachable")},
			&mockVotes{},
			zerolog.Nop(),
			WithClock(func() time.Time { return now }),
		)

		result, err := engine.Compute(context.Background(), "MintA")
		require.NoError(t, err)

		assert.Equal(t, 0, result.Breakdown.Security)
		assert.Equal(t, "Unknown", result.Details.Security.Rating)
		assert.False(t, result.Flags.MintDisabled)
		assert.False(t, result.Flags.FreezeDisabled)
	})

	t.Run("vote ledger failure falls back to market cap proxy", func(t *testing.T) {
		engine := NewEngine(
			&mockMarket{data: healthyToken},
			&mockAuthorities{},
			&mockVotes{err: errors.New("db down")},
			zerolog.Nop(),
			WithClock(func() time.Time { return now }),
		)

		result, err := engine.Compute(context.Background(), "MintA")
		require.NoError(t, err)

		assert.Equal(t, 45, result.Breakdown.CommunitySentiment)
		assert.Equal(t, "Good (Market Cap)", result.Details.CommunitySentiment.Rating)
		assert.Equal(t, 0, result.Metrics.TotalVotes)
	})

	t.Run("votes feed sentiment directly", func(t *testing.T) {
		engine := NewEngine(
			&mockMarket{data: healthyToken},
			&mockAuthorities{},
			&mockVotes{upvotes: 9, total: 10},
			zerolog.Nop(),
			WithClock(func() time.Time { return now }),
		)

		result, err := engine.Compute(context.Background(), "MintA")
		require.NoError(t, err)

		// 90 approval plus 10 bonus clamps at 100
		assert.Equal(t, 100, result.Breakdown.CommunitySentiment)
		assert.Equal(t, 9, result.Metrics.Upvotes)
		assert.Equal(t, 10, result.Metrics.TotalVotes)
	})
}
