package models

import (
	"time"

	"gorm.io/gorm"
)

// Contributor aggregates all deposits from one address into one founding
// wallet. Totals are mutated additively by the ledger updater and never
// decremented; refunds and corrections are handled out of band.
type Contributor struct {
	gorm.Model
	FoundingWalletID uint   `gorm:"uniqueIndex:idx_contributors_wallet_addr;not null"`
	Address          string `gorm:"size:44;uniqueIndex:idx_contributors_wallet_addr;not null"`

	TotalContributedLamports int64   `gorm:"default:0"`
	TotalContributedUSD      float64 `gorm:"default:0"`
	ContributionCount        int     `gorm:"default:0"`

	FirstContributionAt time.Time
	LastContributionAt  time.Time `gorm:"index"`

	// Relationships
	FoundingWallet FoundingWallet `gorm:"foreignKey:FoundingWalletID"`
}
