package trustscore

import (
	"fmt"
	"math"
)

// CheckSentiment scores community sentiment from the vote ledger, max 100.
//
// With no recorded votes the market cap stands in as a proxy for community
// interest. With votes, the approval rate is dampened by min(totalVotes/10, 1)
// so a token needs at least 10 votes to carry full weight; a couple of early
// upvotes cannot manufacture a perfect sentiment score.
func CheckSentiment(upvotes, totalVotes int, marketCap *float64) CheckResult {
	if totalVotes == 0 {
		return sentimentFromMarketCap(marketCap)
	}

	approvalRate := float64(upvotes) / float64(totalVotes)
	dampener := math.Min(float64(totalVotes)/10, 1)
	score := int(math.Round(approvalRate * 100 * dampener))

	bonus := 0
	if marketCap != nil && totalVotes >= 5 {
		if *marketCap > 10_000_000 {
			bonus = 10
		} else if *marketCap > 1_000_000 {
			bonus = 5
		}
	}

	score += bonus
	if score > 100 {
		score = 100
	}

	// Rating follows the approval rate, not the dampened score
	var rating string
	switch {
	case approvalRate >= 0.75:
		rating = "Excellent"
	case approvalRate >= 0.60:
		rating = "Good"
	case approvalRate >= 0.45:
		rating = "Fair"
	default:
		rating = "Poor"
	}

	return CheckResult{
		Score:  score,
		Rating: rating,
		Explanation: fmt.Sprintf("%d of %d votes positive (%.0f%% approval); vote weight %.0f%%, market cap bonus %d.",
			upvotes, totalVotes, approvalRate*100, dampener*100, bonus),
	}
}

// sentimentFromMarketCap is the zero-vote fallback path. It never reads
// vote-derived fields and never applies the vote-path bonus.
func sentimentFromMarketCap(marketCap *float64) CheckResult {
	if marketCap == nil {
		return CheckResult{
			Score:       0,
			Rating:      "Unknown (Market Cap)",
			Explanation: "No votes recorded and market cap is unavailable.",
		}
	}

	var score int
	var rating string
	switch {
	case *marketCap >= 50_000_000:
		score, rating = 60, "Excellent (Market Cap)"
	case *marketCap >= 10_000_000:
		score, rating = 45, "Good (Market Cap)"
	case *marketCap >= 1_000_000:
		score, rating = 30, "Fair (Market Cap)"
	case *marketCap >= 100_000:
		score, rating = 15, "Low (Market Cap)"
	default:
		score, rating = 0, "Minimal (Market Cap)"
	}

	return CheckResult{
		Score:       score,
		Rating:      rating,
		Explanation: fmt.Sprintf("No votes recorded; $%.0f market cap used as a sentiment proxy.", *marketCap),
	}
}
