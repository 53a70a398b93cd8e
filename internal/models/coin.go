package models

import (
	"time"

	"gorm.io/gorm"
)

// VoteDirection is the direction of a coin-level community vote
type VoteDirection string

const (
	VoteUp   VoteDirection = "UP"
	VoteDown VoteDirection = "DOWN"
)

// Coin represents a tracked Solana token
type Coin struct {
	gorm.Model
	MintAddress string `gorm:"size:44;uniqueIndex;not null"`
	Symbol      string `gorm:"size:32;index"`
	Name        string `gorm:"size:128"`
	ImageURL    string

	// Relationships
	Votes           []CoinVote       `gorm:"foreignKey:CoinID"`
	FoundingWallets []FoundingWallet `gorm:"foreignKey:CoinID"`
	TrustScore      *TrustScore      `gorm:"foreignKey:CoinID"`
}

// CoinVote represents one wallet's up/down vote on a coin.
// At most one active vote exists per (coin, voter) pair.
type CoinVote struct {
	gorm.Model
	CoinID       uint          `gorm:"uniqueIndex:idx_coin_votes_coin_voter;not null"`
	VoterAddress string        `gorm:"size:44;uniqueIndex:idx_coin_votes_coin_voter;not null"`
	Direction    VoteDirection `gorm:"size:8;not null"`

	// On-chain sync status used by the best-effort chain reconciliation job
	OnChainSynced        bool   `gorm:"index;default:false"`
	TransactionSignature string `gorm:"size:88"`
	SyncedAt             *time.Time

	// Relationships
	Coin Coin `gorm:"foreignKey:CoinID"`
}

// TrustScore is the cached result of the most recent trust score computation
// for a coin. Recomputable on demand; at most one row per coin.
type TrustScore struct {
	gorm.Model
	CoinID       uint   `gorm:"uniqueIndex;not null"`
	OverallScore int    `gorm:"index;not null"`
	Tier         string `gorm:"size:16;index;not null"`
	Breakdown    string `gorm:"type:text"` // JSON-encoded sub-score breakdown
	ComputedAt   time.Time

	// Relationships
	Coin Coin `gorm:"foreignKey:CoinID"`
}
