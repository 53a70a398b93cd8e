package trustscore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/memocracy/chaincore/internal/logger"
	"github.com/memocracy/chaincore/internal/market"
	"github.com/memocracy/chaincore/internal/metrics"
	"github.com/memocracy/chaincore/internal/solana"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrDataUnavailable is returned when the market data provider has nothing
// for a mint, or the fetch timed out. This is the one failure the engine
// does not mask; callers decide whether and when to retry.
var ErrDataUnavailable = errors.New("market data unavailable for token")

// DefaultMarketTimeout bounds the external market data fetch so a stalled
// provider cannot hang score computation.
const DefaultMarketTimeout = 10 * time.Second

// VoteSource reads the persisted vote ledger for a token
type VoteSource interface {
	VoteCounts(ctx context.Context, mint string) (upvotes, totalVotes int, err error)
}

// AuthoritySource reads on-chain mint authority state
type AuthoritySource interface {
	MintAuthorities(ctx context.Context, mint string) (solana.AuthorityInfo, error)
}

// Engine orchestrates the market data fetch, the six score checks, and the
// weighted aggregation into an overall trust score.
type Engine struct {
	market      market.Provider
	authorities AuthoritySource
	votes       VoteSource
	timeout     time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithMarketTimeout overrides the market data fetch timeout
func WithMarketTimeout(timeout time.Duration) EngineOption {
	return func(e *Engine) {
		e.timeout = timeout
	}
}

// WithClock injects a clock, for tests
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a new trust score engine
func NewEngine(marketProvider market.Provider, authorities AuthoritySource, votes VoteSource, baseLogger zerolog.Logger, options ...EngineOption) *Engine {
	engine := &Engine{
		market:      marketProvider,
		authorities: authorities,
		votes:       votes,
		timeout:     DefaultMarketTimeout,
		logger:      baseLogger.With().Str("component", "trustscore").Logger(),
		now:         time.Now,
	}

	for _, option := range options {
		option(engine)
	}

	return engine
}

// Compute produces a trust score for a token mint. Fails only when market
// data is unavailable; every other data problem degrades the affected check
// to its zero score instead.
func (e *Engine) Compute(ctx context.Context, mint string) (*Result, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	md, err := e.market.TokenData(fetchCtx, mint)
	if err != nil {
		if errors.Is(err, market.ErrNotFound) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrDataUnavailable, mint)
		}
		return nil, fmt.Errorf("failed to fetch market data for %s: %w", mint, err)
	}

	now := e.now()
	log := logger.WithMint(e.logger, mint)

	// The checks share no state, so they fan out freely. The two with I/O
	// (security, sentiment) swallow their own failures per the scoring
	// contract; the group never returns an error.
	var (
		maturity, security, liquidity CheckResult
		trading, stability, sentiment CheckResult
		auth                          *solana.AuthorityInfo
		upvotes, totalVotes           int
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		maturity = CheckMaturity(md.PairCreatedAt, now)
		return nil
	})
	g.Go(func() error {
		info, err := e.authorities.MintAuthorities(gctx, mint)
		if err != nil {
			log.Warn().Err(err).Msg("Authority lookup failed, security check scored zero")
		} else {
			auth = &info
		}
		security = CheckSecurity(auth)
		return nil
	})
	g.Go(func() error {
		liquidity = CheckLiquidity(md)
		return nil
	})
	g.Go(func() error {
		trading = CheckTrading(md)
		return nil
	})
	g.Go(func() error {
		stability = CheckStability(md.PriceChange24h)
		return nil
	})
	g.Go(func() error {
		up, total, err := e.votes.VoteCounts(gctx, mint)
		if err != nil {
			log.Warn().Err(err).Msg("Vote ledger read failed, falling back to market cap proxy")
			up, total = 0, 0
		}
		upvotes, totalVotes = up, total
		sentiment = CheckSentiment(up, total, md.MarketCap)
		return nil
	})

	// Only context cancellation can surface here
	if err := g.Wait(); err != nil {
		return nil, err
	}

	overall := int(math.Round(
		float64(maturity.Score)*WeightMaturity +
			float64(security.Score)*WeightSecurity +
			float64(liquidity.Score)*WeightLiquidity +
			float64(trading.Score)*WeightTrading +
			float64(stability.Score)*WeightStability +
			float64(sentiment.Score)*WeightSentiment,
	))

	result := &Result{
		Mint:         mint,
		OverallScore: overall,
		Tier:         TierFor(overall),
		Breakdown: Breakdown{
			Maturity:           maturity.Score,
			Security:           security.Score,
			Liquidity:          liquidity.Score,
			Trading:            trading.Score,
			Stability:          stability.Score,
			CommunitySentiment: sentiment.Score,
		},
		Metrics: Metrics{
			PriceUSD:       md.PriceUSD,
			MarketCap:      md.MarketCap,
			LiquidityUSD:   md.LiquidityUSD,
			Volume24h:      md.Volume24h,
			PriceChange24h: md.PriceChange24h,
			AgeDays:        AgeDays(md.PairCreatedAt, now),
			Buys24h:        md.Buys24h,
			Sells24h:       md.Sells24h,
			Upvotes:        upvotes,
			TotalVotes:     totalVotes,
		},
		Details: Details{
			Maturity:           maturity,
			Security:           security,
			Liquidity:          liquidity,
			Trading:            trading,
			Stability:          stability,
			CommunitySentiment: sentiment,
		},
		ComputedAt: now,
	}

	if auth != nil {
		result.Flags = Flags{
			MintDisabled:   auth.MintAuthorityRevoked,
			FreezeDisabled: auth.FreezeAuthorityRevoked,
		}
	}

	metrics.RecordScoreComputation(string(result.Tier))

	log.Debug().
		Int("overall_score", overall).
		Str("tier", string(result.Tier)).
		Msg("Trust score computed")

	return result, nil
}
