package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/memocracy/chaincore/internal/models"
	"github.com/memocracy/chaincore/internal/solana"
	"gorm.io/gorm"
)

// ErrDuplicateTransaction marks an insert that hit the global uniqueness
// constraint on transaction signatures. Callers treat it as success.
var ErrDuplicateTransaction = errors.New("transaction signature already recorded")

// ErrWalletNotFound is returned when a founding wallet lookup has no match
var ErrWalletNotFound = errors.New("founding wallet not found")

// Store wraps the persistence operations of the contribution ledger
type Store struct {
	db *gorm.DB
}

// NewStore creates a ledger store over the given database handle
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WalletByID fetches a founding wallet by primary key
func (s *Store) WalletByID(ctx context.Context, id uint) (*models.FoundingWallet, error) {
	var wallet models.FoundingWallet
	if err := s.db.WithContext(ctx).First(&wallet, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("wallet %d: %w", id, ErrWalletNotFound)
		}
		return nil, fmt.Errorf("failed to fetch wallet %d: %w", id, err)
	}
	return &wallet, nil
}

// WalletByProjectID fetches a founding wallet by its public project ID, the
// identifier carried in payment memos.
func (s *Store) WalletByProjectID(ctx context.Context, projectID string) (*models.FoundingWallet, error) {
	var wallet models.FoundingWallet
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project %s: %w", projectID, ErrWalletNotFound)
		}
		return nil, fmt.Errorf("failed to fetch wallet for project %s: %w", projectID, err)
	}
	return &wallet, nil
}

// SeenSignature reports whether a transaction signature has been recorded
// under any wallet. This is the global idempotency check.
func (s *Store) SeenSignature(ctx context.Context, signature string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Where("signature = ?", signature).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check signature %s: %w", signature, err)
	}
	return count > 0, nil
}

// InsertTransaction persists a new wallet transaction. A unique-constraint
// violation on the signature returns ErrDuplicateTransaction: under
// concurrent scans the database constraint, not an application lock, is the
// safety net against double-counting.
func (s *Store) InsertTransaction(ctx context.Context, tx *models.WalletTransaction) error {
	if err := s.db.WithContext(ctx).Create(tx).Error; err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateTransaction, tx.Signature)
		}
		return fmt.Errorf("failed to insert transaction %s: %w", tx.Signature, err)
	}
	return nil
}

// UpsertContributor adds a contribution to the (wallet, address) aggregate,
// creating the row on first contribution.
func (s *Store) UpsertContributor(ctx context.Context, walletID uint, address string, lamports int64, usd float64, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var contributor models.Contributor
		err := tx.Where("founding_wallet_id = ? AND address = ?", walletID, address).First(&contributor).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			contributor = models.Contributor{
				FoundingWalletID:         walletID,
				Address:                  address,
				TotalContributedLamports: lamports,
				TotalContributedUSD:      usd,
				ContributionCount:        1,
				FirstContributionAt:      at,
				LastContributionAt:       at,
			}
			if createErr := tx.Create(&contributor).Error; createErr != nil {
				return fmt.Errorf("failed to create contributor %s: %w", address, createErr)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to fetch contributor %s: %w", address, err)
		}

		updates := map[string]interface{}{
			"total_contributed_lamports": gorm.Expr("total_contributed_lamports + ?", lamports),
			"total_contributed_usd":      gorm.Expr("total_contributed_usd + ?", usd),
			"contribution_count":         gorm.Expr("contribution_count + 1"),
			"last_contribution_at":       at,
		}
		if err := tx.Model(&contributor).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update contributor %s: %w", address, err)
		}
		return nil
	})
}

// AddToWalletBalance adds new amounts to a wallet's running balance. Totals
// are additive only; they are never recomputed from the transaction history
// outside a full reconciliation.
func (s *Store) AddToWalletBalance(ctx context.Context, walletID uint, lamports int64, usd float64, syncedAt time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.FoundingWallet{}).
		Where("id = ?", walletID).
		Updates(map[string]interface{}{
			"current_balance_lamports": gorm.Expr("current_balance_lamports + ?", lamports),
			"current_balance_usd":      gorm.Expr("current_balance_usd + ?", usd),
			"last_synced_at":           syncedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update wallet %d balance: %w", walletID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("wallet %d: %w", walletID, ErrWalletNotFound)
	}
	return nil
}

// TouchWalletSync records a reconciliation pass that found nothing new
func (s *Store) TouchWalletSync(ctx context.Context, walletID uint, syncedAt time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.FoundingWallet{}).
		Where("id = ?", walletID).
		Update("last_synced_at", syncedAt).Error
}

// GetOrCreateCoin fetches a coin by mint address, creating the record on
// first lookup of an unknown mint.
func (s *Store) GetOrCreateCoin(ctx context.Context, mint string) (*models.Coin, error) {
	var coin models.Coin
	result := s.db.WithContext(ctx).Where("mint_address = ?", mint).FirstOrCreate(&coin, models.Coin{
		MintAddress: mint,
	})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get or create coin %s: %w", mint, result.Error)
	}
	return &coin, nil
}

// CreateFoundingWallet registers a new founding wallet with a generated
// project ID.
func (s *Store) CreateFoundingWallet(ctx context.Context, wallet *models.FoundingWallet) error {
	if wallet.ProjectID == "" {
		wallet.ProjectID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(wallet).Error; err != nil {
		return fmt.Errorf("failed to create founding wallet: %w", err)
	}
	return nil
}

// RecentTransactions returns the most recent recorded deposits for a wallet
// address, newest first.
func (s *Store) RecentTransactions(ctx context.Context, address string, limit int) ([]solana.TransactionInfo, error) {
	var rows []models.WalletTransaction
	err := s.db.WithContext(ctx).
		Joins("JOIN founding_wallets ON founding_wallets.id = wallet_transactions.founding_wallet_id").
		Where("founding_wallets.address = ?", address).
		Order("wallet_transactions.block_time DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions for %s: %w", address, err)
	}

	txs := make([]solana.TransactionInfo, 0, len(rows))
	for _, row := range rows {
		txs = append(txs, solana.TransactionInfo{
			Signature:         row.Signature,
			FromWallet:        row.FromAddress,
			AmountLamports:    row.AmountLamports,
			AmountUSD:         row.AmountUSD,
			Memo:              row.Memo,
			ProjectIDFromMemo: row.ProjectIDFromMemo,
			TokenMint:         row.TokenMint,
			TokenAmount:       row.TokenAmount,
			Slot:              row.Slot,
			BlockTime:         row.BlockTime,
		})
	}
	return txs, nil
}

// VoteCounts returns the upvote and total vote counts for a coin's mint
func (s *Store) VoteCounts(ctx context.Context, mint string) (int, int, error) {
	var counts struct {
		Upvotes int64
		Total   int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.CoinVote{}).
		Select("COUNT(*) FILTER (WHERE direction = ?) AS upvotes, COUNT(*) AS total", models.VoteUp).
		Joins("JOIN coins ON coins.id = coin_votes.coin_id").
		Where("coins.mint_address = ?", mint).
		Scan(&counts).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count votes for %s: %w", mint, err)
	}
	return int(counts.Upvotes), int(counts.Total), nil
}

// SaveTrustScore upserts the cached trust score row for a coin
func (s *Store) SaveTrustScore(ctx context.Context, coinID uint, overallScore int, tier, breakdown string, computedAt time.Time) error {
	score := models.TrustScore{
		CoinID:       coinID,
		OverallScore: overallScore,
		Tier:         tier,
		Breakdown:    breakdown,
		ComputedAt:   computedAt,
	}

	var existing models.TrustScore
	err := s.db.WithContext(ctx).Where("coin_id = ?", coinID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if createErr := s.db.WithContext(ctx).Create(&score).Error; createErr != nil {
			return fmt.Errorf("failed to create trust score for coin %d: %w", coinID, createErr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch trust score for coin %d: %w", coinID, err)
	}

	if err := s.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"overall_score": overallScore,
		"tier":          tier,
		"breakdown":     breakdown,
		"computed_at":   computedAt,
	}).Error; err != nil {
		return fmt.Errorf("failed to update trust score for coin %d: %w", coinID, err)
	}
	return nil
}

// UnsyncedVotes returns votes that carry a transaction signature but have
// not yet been confirmed on chain.
func (s *Store) UnsyncedVotes(ctx context.Context, limit int) ([]models.CoinVote, error) {
	var votes []models.CoinVote
	err := s.db.WithContext(ctx).
		Where("on_chain_synced = ? AND transaction_signature <> ''", false).
		Order("created_at ASC").
		Limit(limit).
		Find(&votes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsynced votes: %w", err)
	}
	return votes, nil
}

// MarkVoteSynced flags a vote as confirmed on chain
func (s *Store) MarkVoteSynced(ctx context.Context, voteID uint, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.CoinVote{}).
		Where("id = ?", voteID).
		Updates(map[string]interface{}{
			"on_chain_synced": true,
			"synced_at":       at,
		}).Error
}

// FoundingWalletIDs returns the IDs of all active founding wallets, for
// enqueueing reconciliation jobs.
func (s *Store) FoundingWalletIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).
		Model(&models.FoundingWallet{}).
		Where("type = ? AND status = ?", models.WalletTypeFounding, models.WalletStatusActive).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list founding wallets: %w", err)
	}
	return ids, nil
}

// isDuplicateKeyError detects unique-constraint violations across drivers
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "UNIQUE constraint")
}
