package models

import (
	"time"

	"gorm.io/gorm"
)

// WalletType distinguishes poll-gating project wallets from fundraising
// treasuries with contribution tracking.
type WalletType string

const (
	WalletTypeStandard WalletType = "STANDARD"
	WalletTypeFounding WalletType = "FOUNDING"
)

// WalletStatus is the lifecycle status of a founding wallet
type WalletStatus string

const (
	WalletStatusActive    WalletStatus = "ACTIVE"
	WalletStatusCompleted WalletStatus = "COMPLETED"
	WalletStatusArchived  WalletStatus = "ARCHIVED"
)

// FoundingWallet represents a treasury address attached to a coin. A single
// physical address may back multiple logical wallet records; ProjectID is the
// public identifier carried in payment memos to disambiguate them.
type FoundingWallet struct {
	gorm.Model
	CoinID    uint         `gorm:"index;not null"`
	ProjectID string       `gorm:"size:64;uniqueIndex;not null"`
	Address   string       `gorm:"size:44;index;not null"`
	Label     string       `gorm:"size:128"`
	Type      WalletType   `gorm:"size:16;index;default:'STANDARD'"`
	Status    WalletStatus `gorm:"size:16;index;default:'ACTIVE'"`

	FundingGoalUSD *float64

	// Running totals, mutated only by the ledger updater. Never recomputed
	// from the transaction history outside a full reconciliation.
	CurrentBalanceLamports int64   `gorm:"default:0"`
	CurrentBalanceUSD      float64 `gorm:"default:0"`

	LastSyncedAt time.Time

	// Relationships
	Coin         Coin                `gorm:"foreignKey:CoinID"`
	Transactions []WalletTransaction `gorm:"foreignKey:FoundingWalletID"`
	Contributors []Contributor       `gorm:"foreignKey:FoundingWalletID"`
}
