package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/memocracy/chaincore/internal/logger"
	"github.com/memocracy/chaincore/internal/metrics"
	"github.com/memocracy/chaincore/internal/models"
	"github.com/memocracy/chaincore/internal/solana"
	"github.com/rs/zerolog"
)

// WalletScanner produces the new deposits for an address since the last
// recorded signature set.
type WalletScanner interface {
	ScanWallet(ctx context.Context, address, before string) ([]solana.TransactionInfo, error)
}

// Invalidator drops cached entries for an address after the ledger changes
type Invalidator interface {
	Invalidate(address string)
}

// SyncResult summarizes one reconciliation pass over a founding wallet
type SyncResult struct {
	Updated             bool
	NewTransactionCount int
}

// Updater reconciles a founding wallet's on-chain deposits into the ledger:
// it attributes each deposit, records it exactly once, and keeps the
// contributor aggregates and running balances consistent with the
// transaction history.
type Updater struct {
	store        *Store
	scanner      WalletScanner
	balances     Invalidator
	transactions Invalidator
	logger       zerolog.Logger
	now          func() time.Time
}

// NewUpdater creates an updater. The cache invalidators may be nil when no
// caching layer is wired, for instance in one-shot tools.
func NewUpdater(store *Store, scanner WalletScanner, balances, transactions Invalidator, baseLogger zerolog.Logger) *Updater {
	return &Updater{
		store:        store,
		scanner:      scanner,
		balances:     balances,
		transactions: transactions,
		logger:       baseLogger.With().Str("component", "ledger").Logger(),
		now:          time.Now,
	}
}

// UpdateFoundingWalletBalance scans a founding wallet for new deposits and
// folds them into the ledger. Failures on individual transactions are
// logged and skipped; a failure to reach the wallet or the chain aborts the
// pass so it can be retried whole.
func (u *Updater) UpdateFoundingWalletBalance(ctx context.Context, walletID uint) (SyncResult, error) {
	wallet, err := u.store.WalletByID(ctx, walletID)
	if err != nil {
		return SyncResult{}, err
	}

	log := logger.WithWallet(u.logger, wallet.Address).With().
		Uint("wallet_id", wallet.ID).
		Logger()

	txs, err := u.scanner.ScanWallet(ctx, wallet.Address, "")
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to scan wallet %s: %w", wallet.Address, err)
	}
	if len(txs) == 0 {
		if err := u.store.TouchWalletSync(ctx, wallet.ID, u.now()); err != nil {
			log.Warn().Err(err).Msg("Failed to record sync timestamp")
		}
		return SyncResult{}, nil
	}

	var (
		recorded    int
		newLamports int64
		newUSD      float64
	)

	for i := range txs {
		tx := &txs[i]
		target := u.resolveAttribution(ctx, wallet, tx, log)

		record := models.WalletTransaction{
			Signature:         tx.Signature,
			FoundingWalletID:  target.ID,
			FromAddress:       tx.FromWallet,
			AmountLamports:    tx.AmountLamports,
			AmountUSD:         tx.AmountUSD,
			Memo:              tx.Memo,
			ProjectIDFromMemo: tx.ProjectIDFromMemo,
			TokenMint:         tx.TokenMint,
			TokenAmount:       tx.TokenAmount,
			Slot:              tx.Slot,
			BlockTime:         tx.BlockTime,
		}

		if err := u.store.InsertTransaction(ctx, &record); err != nil {
			if errors.Is(err, ErrDuplicateTransaction) {
				log.Debug().Str("signature", tx.Signature).Msg("Transaction already recorded, skipping")
				metrics.RecordTransactionProcessed("duplicate")
				continue
			}
			log.Error().Err(err).Str("signature", tx.Signature).Msg("Failed to record transaction")
			metrics.RecordTransactionProcessed("failed")
			continue
		}
		metrics.RecordTransactionProcessed("recorded")

		contributedAt := tx.BlockTime
		if contributedAt.IsZero() {
			contributedAt = u.now()
		}
		if err := u.store.UpsertContributor(ctx, target.ID, tx.FromWallet, tx.AmountLamports, tx.AmountUSD, contributedAt); err != nil {
			log.Error().Err(err).
				Str("contributor", tx.FromWallet).
				Str("signature", tx.Signature).
				Msg("Failed to update contributor aggregate")
		}

		recorded++
		if target.ID == wallet.ID {
			newLamports += tx.AmountLamports
			newUSD += tx.AmountUSD
		}
	}

	if recorded == 0 {
		if err := u.store.TouchWalletSync(ctx, wallet.ID, u.now()); err != nil {
			log.Warn().Err(err).Msg("Failed to record sync timestamp")
		}
		return SyncResult{}, nil
	}

	if err := u.store.AddToWalletBalance(ctx, wallet.ID, newLamports, newUSD, u.now()); err != nil {
		return SyncResult{}, fmt.Errorf("failed to update balance for wallet %d: %w", wallet.ID, err)
	}

	if u.balances != nil {
		u.balances.Invalidate(wallet.Address)
	}
	if u.transactions != nil {
		u.transactions.Invalidate(wallet.Address)
	}

	log.Info().
		Int("new_transactions", recorded).
		Int64("lamports", newLamports).
		Msg("Wallet reconciled")

	return SyncResult{Updated: true, NewTransactionCount: recorded}, nil
}

// resolveAttribution decides which founding wallet a deposit belongs to.
// A memo project ID is an attribution hint, never an authority: it is
// accepted only when the referenced wallet is the founding wallet that was
// actually paid. Anything else falls back to the scanned wallet.
func (u *Updater) resolveAttribution(ctx context.Context, wallet *models.FoundingWallet, tx *solana.TransactionInfo, log zerolog.Logger) *models.FoundingWallet {
	if tx.ProjectIDFromMemo == "" {
		return wallet
	}

	candidate, err := u.store.WalletByProjectID(ctx, tx.ProjectIDFromMemo)
	if err != nil {
		log.Warn().
			Str("signature", tx.Signature).
			Str("project_id", tx.ProjectIDFromMemo).
			Err(err).
			Msg("Memo references unknown project, attributing to scanned wallet")
		return wallet
	}

	if candidate.Address != wallet.Address || candidate.Type != models.WalletTypeFounding {
		log.Warn().
			Str("signature", tx.Signature).
			Str("project_id", tx.ProjectIDFromMemo).
			Str("candidate_address", candidate.Address).
			Msg("Memo attribution mismatch, attributing to scanned wallet")
		return wallet
	}

	return candidate
}
