package market

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/memocracy/chaincore/internal/utils"
)

// ErrNotFound is returned when the provider has no pairs for a mint.
// This is a defined outcome, not an infrastructure failure.
var ErrNotFound = errors.New("no market data for token")

// Provider returns current market data for a token mint
type Provider interface {
	TokenData(ctx context.Context, mint string) (*TokenMarketData, error)
}

// Client fetches token market data from the DexScreener public API
type Client struct {
	httpClient  *utils.HTTPClient
	priceClient *utils.HTTPClient
}

// Option configures a market Client
type Option func(*Client)

// WithBaseURL overrides the DexScreener API base URL
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.httpClient = utils.NewHTTPClient(
			utils.WithBaseURL(baseURL),
			utils.WithTimeout(10*time.Second),
		)
	}
}

// WithPriceBaseURL overrides the CoinGecko API base URL
func WithPriceBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.priceClient = utils.NewHTTPClient(
			utils.WithBaseURL(baseURL),
			utils.WithTimeout(10*time.Second),
		)
	}
}

// NewClient creates a new market data client
func NewClient(options ...Option) *Client {
	client := &Client{
		httpClient: utils.NewHTTPClient(
			utils.WithBaseURL("https://api.dexscreener.com"),
			utils.WithTimeout(10*time.Second),
		),
		priceClient: utils.NewHTTPClient(
			utils.WithBaseURL("https://api.coingecko.com"),
			utils.WithTimeout(10*time.Second),
		),
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// TokenData returns market data for a mint, normalized from the pair with the
// deepest liquidity. Returns ErrNotFound when no pair exists for the mint.
func (c *Client) TokenData(ctx context.Context, mint string) (*TokenMarketData, error) {
	resp, err := c.httpClient.GetWithContext(ctx, "/latest/dex/tokens/"+mint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch market data for %s: %w", mint, err)
	}

	var payload dexPairsResponse
	if err := resp.DecodeJSON(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode market data for %s: %w", mint, err)
	}

	if len(payload.Pairs) == 0 {
		return nil, ErrNotFound
	}

	best := payload.Pairs[0]
	for _, pair := range payload.Pairs[1:] {
		if liquidityOf(pair) > liquidityOf(best) {
			best = pair
		}
	}

	return normalizePair(best), nil
}

// SOLPrice returns the current SOL/USD price from the price oracle. Callers
// are expected to read it through the price cache, not directly.
func (c *Client) SOLPrice(ctx context.Context) (float64, error) {
	resp, err := c.priceClient.GetWithContext(ctx, "/api/v3/simple/price", map[string]string{
		"ids":           "solana",
		"vs_currencies": "usd",
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch SOL price: %w", err)
	}

	var payload coingeckoPriceResponse
	if err := resp.DecodeJSON(&payload); err != nil {
		return 0, fmt.Errorf("failed to decode SOL price: %w", err)
	}

	if payload.Solana.USD <= 0 {
		return 0, fmt.Errorf("price oracle returned non-positive SOL price")
	}

	return payload.Solana.USD, nil
}

func liquidityOf(pair dexPair) float64 {
	if pair.Liquidity == nil {
		return 0
	}
	return pair.Liquidity.USD
}

func normalizePair(pair dexPair) *TokenMarketData {
	data := &TokenMarketData{
		Name:           pair.BaseToken.Name,
		Symbol:         pair.BaseToken.Symbol,
		PriceChange24h: pair.PriceChange.H24,
		Volume24h:      pair.Volume.H24,
		Buys24h:        pair.Txns.H24.Buys,
		Sells24h:       pair.Txns.H24.Sells,
	}

	if price, err := strconv.ParseFloat(pair.PriceUSD, 64); err == nil {
		data.PriceUSD = price
	}

	if pair.Liquidity != nil {
		liq := pair.Liquidity.USD
		data.LiquidityUSD = &liq
	}

	// Fall back to fully diluted valuation when market cap is not reported
	if pair.MarketCap != nil {
		data.MarketCap = pair.MarketCap
	} else if pair.FDV != nil {
		data.MarketCap = pair.FDV
	}

	if pair.PairCreatedAt > 0 {
		created := time.UnixMilli(pair.PairCreatedAt)
		data.PairCreatedAt = &created
	}

	if pair.Info != nil {
		data.ImageURL = pair.Info.ImageURL
	}

	return data
}
