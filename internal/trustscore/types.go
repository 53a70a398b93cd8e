package trustscore

import "time"

// Tier is the discrete rating band derived from the overall score
type Tier string

const (
	TierDiamond Tier = "DIAMOND"
	TierGold    Tier = "GOLD"
	TierSilver  Tier = "SILVER"
	TierBronze  Tier = "BRONZE"
	TierUnrated Tier = "UNRATED"
)

// Fixed aggregation weights. These apply to the raw bucketed sub-scores,
// which deliberately have different maximum ranges; the weighting does not
// normalize them first. Existing scores depend on this exact contract.
const (
	WeightMaturity  = 0.15
	WeightSecurity  = 0.20
	WeightLiquidity = 0.25
	WeightTrading   = 0.20
	WeightStability = 0.05
	WeightSentiment = 0.15
)

// Maximum raw score per check
const (
	MaxMaturityScore  = 50
	MaxSecurityScore  = 25
	MaxLiquidityScore = 35
	MaxTradingScore   = 30
	MaxStabilityScore = 20
	MaxSentimentScore = 100
)

// CheckResult is the outcome of a single score check. Explanation is a
// required output for end-user transparency, never empty.
type CheckResult struct {
	Score       int    `json:"score"`
	Rating      string `json:"rating"`
	Explanation string `json:"explanation"`
}

// Breakdown holds the six raw sub-scores
type Breakdown struct {
	Maturity           int `json:"maturity"`
	Security           int `json:"security"`
	Liquidity          int `json:"liquidity"`
	Trading            int `json:"trading"`
	Stability          int `json:"stability"`
	CommunitySentiment int `json:"communitySentiment"`
}

// Flags surfaces the on-chain authority state used by the security check
type Flags struct {
	MintDisabled   bool `json:"mintDisabled"`
	FreezeDisabled bool `json:"freezeDisabled"`
}

// Metrics carries the raw facts behind the score, for transparency
type Metrics struct {
	PriceUSD       float64  `json:"priceUsd"`
	MarketCap      *float64 `json:"marketCap,omitempty"`
	LiquidityUSD   *float64 `json:"liquidityUsd,omitempty"`
	Volume24h      float64  `json:"volume24h"`
	PriceChange24h float64  `json:"priceChange24h"`
	AgeDays        *int     `json:"ageDays,omitempty"`
	Buys24h        int      `json:"buys24h"`
	Sells24h       int      `json:"sells24h"`
	Upvotes        int      `json:"upvotes"`
	TotalVotes     int      `json:"totalVotes"`
}

// Details is the per-check rating and explanation set
type Details struct {
	Maturity           CheckResult `json:"maturity"`
	Security           CheckResult `json:"security"`
	Liquidity          CheckResult `json:"liquidity"`
	Trading            CheckResult `json:"trading"`
	Stability          CheckResult `json:"stability"`
	CommunitySentiment CheckResult `json:"communitySentiment"`
}

// Result is a complete trust score computation for one token
type Result struct {
	Mint         string    `json:"mint"`
	OverallScore int       `json:"overallScore"`
	Tier         Tier      `json:"tier"`
	Breakdown    Breakdown `json:"breakdown"`
	Flags        Flags     `json:"flags"`
	Metrics      Metrics   `json:"metrics"`
	Details      Details   `json:"details"`
	ComputedAt   time.Time `json:"computedAt"`
}

// TierFor maps an overall score to its tier. Boundaries are inclusive on
// the lower bound.
func TierFor(overallScore int) Tier {
	switch {
	case overallScore >= 80:
		return TierDiamond
	case overallScore >= 65:
		return TierGold
	case overallScore >= 45:
		return TierSilver
	case overallScore >= 25:
		return TierBronze
	default:
		return TierUnrated
	}
}
