package trustscore

import (
	"fmt"
	"math"
	"time"

	"github.com/memocracy/chaincore/internal/market"
	"github.com/memocracy/chaincore/internal/solana"
)

// AgeDays returns the whole days elapsed since pair creation, or nil when
// the creation time is unknown.
func AgeDays(pairCreatedAt *time.Time, now time.Time) *int {
	if pairCreatedAt == nil {
		return nil
	}
	days := int(math.Floor(now.Sub(*pairCreatedAt).Hours() / 24))
	if days < 0 {
		days = 0
	}
	return &days
}

// CheckMaturity scores token age, max 50. Older pairs earn more: a token
// that has survived a year of trading has proven more than a week-old one.
func CheckMaturity(pairCreatedAt *time.Time, now time.Time) CheckResult {
	days := AgeDays(pairCreatedAt, now)
	if days == nil {
		return CheckResult{
			Score:       0,
			Rating:      "Unknown",
			Explanation: "Pair creation time is unavailable, so token age cannot be assessed.",
		}
	}

	var score int
	var rating string
	switch {
	case *days < 7:
		score, rating = 0, "Very New"
	case *days < 30:
		score, rating = 10, "New"
	case *days < 90:
		score, rating = 20, "Developing"
	case *days < 180:
		score, rating = 30, "Establishing"
	case *days < 365:
		score, rating = 40, "Established"
	default:
		score, rating = 50, "Mature"
	}

	return CheckResult{
		Score:       score,
		Rating:      rating,
		Explanation: fmt.Sprintf("Token pair is %d days old.", *days),
	}
}

// CheckSecurity scores on-chain authority state, max 25. A revoked mint
// authority is worth more than a revoked freeze authority: uncapped supply
// is the bigger rug vector. A nil info means the lookup failed; that scores
// zero rather than erroring to the caller.
func CheckSecurity(auth *solana.AuthorityInfo) CheckResult {
	if auth == nil {
		return CheckResult{
			Score:       0,
			Rating:      "Unknown",
			Explanation: "Mint account state could not be read, so authority checks are inconclusive.",
		}
	}

	score := 0
	if auth.MintAuthorityRevoked {
		score += 15
	}
	if auth.FreezeAuthorityRevoked {
		score += 10
	}

	var rating string
	switch {
	case auth.MintAuthorityRevoked && auth.FreezeAuthorityRevoked:
		rating = "Excellent"
	case auth.MintAuthorityRevoked:
		rating = "Good"
	case auth.FreezeAuthorityRevoked:
		rating = "Fair"
	default:
		rating = "Poor"
	}

	return CheckResult{
		Score:  score,
		Rating: rating,
		Explanation: fmt.Sprintf("Mint authority revoked: %t. Freeze authority revoked: %t.",
			auth.MintAuthorityRevoked, auth.FreezeAuthorityRevoked),
	}
}

// CheckLiquidity scores liquidity depth and its relation to market cap and
// volume, max 35. Any missing input term contributes zero, not an error.
func CheckLiquidity(md *market.TokenMarketData) CheckResult {
	var absolute, ratio, turnover, bonus int

	var liquidity float64
	if md.LiquidityUSD != nil {
		liquidity = *md.LiquidityUSD
	}

	switch {
	case liquidity > 5_000_000:
		absolute = 15
	case liquidity > 3_000_000:
		absolute = 12
	case liquidity > 1_000_000:
		absolute = 9
	case liquidity > 500_000:
		absolute = 6
	case liquidity > 100_000:
		absolute = 3
	case liquidity > 10_000:
		absolute = 1
	}

	// Market cap to liquidity ratio, lower is better: thin liquidity under
	// a large cap means exits move the price hard.
	if md.MarketCap != nil && liquidity > 0 {
		switch mcLiqRatio := *md.MarketCap / liquidity; {
		case mcLiqRatio < 20:
			ratio = 10
		case mcLiqRatio < 50:
			ratio = 7
		case mcLiqRatio < 100:
			ratio = 4
		case mcLiqRatio < 200:
			ratio = 1
		}
	}

	if md.MarketCap != nil && *md.MarketCap > 0 {
		switch volumePct := md.Volume24h / *md.MarketCap * 100; {
		case volumePct > 30:
			turnover = 5
		case volumePct > 20:
			turnover = 4
		case volumePct > 15:
			turnover = 3
		case volumePct > 10:
			turnover = 2
		case volumePct > 5:
			turnover = 1
		}
	}

	if md.MarketCap != nil {
		switch {
		case *md.MarketCap > 50_000_000:
			bonus = 5
		case *md.MarketCap > 10_000_000:
			bonus = 3
		case *md.MarketCap > 1_000_000:
			bonus = 1
		}
	}

	score := absolute + ratio + turnover + bonus

	var rating string
	switch {
	case score >= 28:
		rating = "Excellent"
	case score >= 20:
		rating = "Good"
	case score >= 12:
		rating = "Fair"
	case score >= 5:
		rating = "Low"
	default:
		rating = "Very Low"
	}

	return CheckResult{
		Score:  score,
		Rating: rating,
		Explanation: fmt.Sprintf("Liquidity $%.0f scored %d, cap/liquidity ratio %d, volume turnover %d, market cap bonus %d.",
			liquidity, absolute, ratio, turnover, bonus),
	}
}

// CheckTrading scores 24h trading health, max 30. Sell pressure is the
// sells-to-buys ratio, lower is better; it is unknowable with zero buys and
// then contributes nothing.
func CheckTrading(md *market.TokenMarketData) CheckResult {
	var pressure, volume, bonus int
	pressureNote := "sell pressure unknown"

	if md.Buys24h > 0 {
		sellPressure := float64(md.Sells24h) / float64(md.Buys24h)
		pressureNote = fmt.Sprintf("sell pressure %.2f", sellPressure)
		switch {
		case sellPressure < 0.8:
			pressure = 15
		case sellPressure < 1.0:
			pressure = 10
		case sellPressure < 1.2:
			pressure = 5
		}
	}

	switch {
	case md.Volume24h > 5_000_000:
		volume = 10
	case md.Volume24h > 1_000_000:
		volume = 7
	case md.Volume24h > 500_000:
		volume = 5
	case md.Volume24h > 100_000:
		volume = 3
	case md.Volume24h > 10_000:
		volume = 1
	}

	if md.MarketCap != nil {
		switch {
		case *md.MarketCap > 10_000_000 && md.Volume24h > 500_000:
			bonus = 5
		case *md.MarketCap > 1_000_000 && md.Volume24h > 100_000:
			bonus = 3
		case *md.MarketCap > 100_000 && md.Volume24h > 10_000:
			bonus = 1
		}
	}

	score := pressure + volume + bonus

	var rating string
	switch {
	case score >= 25:
		rating = "Excellent"
	case score >= 18:
		rating = "Good"
	case score >= 10:
		rating = "Fair"
	default:
		rating = "Poor"
	}

	return CheckResult{
		Score:  score,
		Rating: rating,
		Explanation: fmt.Sprintf("24h volume $%.0f with %d buys and %d sells (%s).",
			md.Volume24h, md.Buys24h, md.Sells24h, pressureNote),
	}
}

// CheckStability scores 24h price movement, max 20, lower movement is better
func CheckStability(priceChange24h float64) CheckResult {
	change := math.Abs(priceChange24h)

	var score int
	var rating string
	switch {
	case change < 5:
		score, rating = 20, "Very Stable"
	case change < 10:
		score, rating = 15, "Stable"
	case change < 25:
		score, rating = 10, "Moderate"
	case change < 50:
		score, rating = 5, "Volatile"
	default:
		score, rating = 0, "Highly Volatile"
	}

	return CheckResult{
		Score:       score,
		Rating:      rating,
		Explanation: fmt.Sprintf("Price moved %.1f%% over the last 24 hours.", priceChange24h),
	}
}
