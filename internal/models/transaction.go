package models

import (
	"time"

	"gorm.io/gorm"
)

// WalletTransaction represents a single on-chain deposit credited to a
// founding wallet. Signature is globally unique: a transaction is processed
// at most once across all wallets. Rows are immutable once created.
type WalletTransaction struct {
	gorm.Model
	Signature        string `gorm:"size:88;uniqueIndex;not null"`
	FoundingWalletID uint   `gorm:"index;not null"`
	FromAddress      string `gorm:"size:44;index"`

	AmountLamports int64
	AmountUSD      float64

	// Raw attribution hint extracted from the memo, recorded independently
	// of which wallet the transaction was ultimately filed under.
	Memo              string `gorm:"type:text"`
	ProjectIDFromMemo string `gorm:"size:64;index"`

	// Optional SPL token credit attached to the same transaction
	TokenMint   string `gorm:"size:44;index"`
	TokenAmount float64

	Slot      int64     `gorm:"index"`
	BlockTime time.Time `gorm:"index"`

	// Relationships
	FoundingWallet FoundingWallet `gorm:"foreignKey:FoundingWalletID"`
}
