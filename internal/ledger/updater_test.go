package ledger

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/memocracy/chaincore/internal/database"
	"github.com/memocracy/chaincore/internal/models"
	"github.com/memocracy/chaincore/internal/solana"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func seedWallet(t *testing.T, store *Store, projectID, address string) *models.FoundingWallet {
	t.Helper()

	ctx := context.Background()
	coin, err := store.GetOrCreateCoin(ctx, "Mint"+projectID)
	require.NoError(t, err)

	wallet := &models.FoundingWallet{
		CoinID:    coin.ID,
		ProjectID: projectID,
		Address:   address,
		Type:      models.WalletTypeFounding,
		Status:    models.WalletStatusActive,
	}
	require.NoError(t, store.CreateFoundingWallet(ctx, wallet))
	return wallet
}

type stubScanner struct {
	txs []solana.TransactionInfo
	err error
}

func (s *stubScanner) ScanWallet(ctx context.Context, address, before string) ([]solana.TransactionInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.txs, nil
}

type countingInvalidator struct {
	addresses []string
}

func (c *countingInvalidator) Invalidate(address string) {
	c.addresses = append(c.addresses, address)
}

func deposit(signature, from string, lamports int64, memo, projectID string) solana.TransactionInfo {
	return solana.TransactionInfo{
		Signature:         signature,
		FromWallet:        from,
		AmountLamports:    lamports,
		AmountUSD:         float64(lamports) / 1e9 * 100,
		Memo:              memo,
		ProjectIDFromMemo: projectID,
		Slot:              1000,
		BlockTime:         time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestUpdateFoundingWalletBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("records new deposits", func(t *testing.T) {
		store := NewStore(newTestDB(t))
		wallet := seedWallet(t, store, "proj-a", "AddrA")

		scanner := &stubScanner{txs: []solana.TransactionInfo{
			deposit("sig1", "SenderX", 2_000_000, "", ""),
			deposit("sig2", "SenderY", 3_000_000, "", ""),
		}}
		balances := &countingInvalidator{}
		transactions := &countingInvalidator{}
		updater := NewUpdater(store, scanner, balances, transactions, zerolog.Nop())

		result, err := updater.UpdateFoundingWalletBalance(ctx, wallet.ID)
		require.NoError(t, err)
		assert.True(t, result.Updated)
		assert.Equal(t, 2, result.NewTransactionCount)

		reloaded, err := store.WalletByID(ctx, wallet.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5_000_000), reloaded.CurrentBalanceLamports)
		assert.InDelta(t, 0.5, reloaded.CurrentBalanceUSD, 1e-9)
		assert.False(t, reloaded.LastSyncedAt.IsZero())

		assert.Equal(t, []string{"AddrA"}, balances.addresses)
		assert.Equal(t, []string{"AddrA"}, transactions.addresses)
	})

	t.Run("rescan is idempotent", func(t *testing.T) {
		store := NewStore(newTestDB(t))
		wallet := seedWallet(t, store, "proj-a", "AddrA")

		scanner := &stubScanner{txs: []solana.TransactionInfo{
			deposit("sig1", "SenderX", 2_000_000, "", ""),
		}}
		updater := NewUpdater(store, scanner, nil, nil, zerolog.Nop())

		first, err := updater.UpdateFoundingWalletBalance(ctx, wallet.ID)
		require.NoError(t, err)
		assert.True(t, first.Updated)

		second, err := updater.UpdateFoundingWalletBalance(ctx, wallet.ID)
		require.NoError(t, err)
		assert.False(t, second.Updated)
		assert.Equal(t, 0, second.NewTransactionCount)

		reloaded, err := store.WalletByID(ctx, wallet.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2_000_000), reloaded.CurrentBalanceLamports)

		var count int64
		require.NoError(t, store.db.Model(&models.WalletTransaction{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("memo attribution routes to sibling wallet on shared address", func(t *testing.T) {
		store := NewStore(newTestDB(t))
		scanned := seedWallet(t, store, "proj-a", "SharedAddr")
		sibling := seedWallet(t, store, "proj-b", "SharedAddr")

		scanner := &stubScanner{txs: []solana.TransactionInfo{
			deposit("sig1", "SenderX", 4_000_000, "MEMOCRACY:proj-b", "proj-b"),
		}}
		updater := NewUpdater(store, scanner, nil, nil, zerolog.Nop())

		result, err := updater.UpdateFoundingWalletBalance(ctx, scanned.ID)
		require.NoError(t, err)
		assert.True(t, result.Updated)
		assert.Equal(t, 1, result.NewTransactionCount)

		var tx models.WalletTransaction
		require.NoError(t, store.db.Where("signature = ?", "sig1").First(&tx).Error)
		assert.Equal(t, sibling.ID, tx.FoundingWalletID)

		// The sibling got the transaction; the scanned wallet's running
		// balance stays untouched.
		reloadedScanned, err := store.WalletByID(ctx, scanned.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), reloadedScanned.CurrentBalanceLamports)
	})

	t.Run("memo pointing at a different address falls back", func(t *testing.T) {
		store := NewStore(newTestDB(t))
		scanned := seedWallet(t, store, "proj-a", "AddrA")
		seedWallet(t, store, "proj-b", "AddrB")

		scanner := &stubScanner{txs: []solana.TransactionInfo{
			deposit("sig1", "SenderX", 4_000_000, "MEMOCRACY:proj-b", "proj-b"),
		}}
		updater := NewUpdater(store, scanner, nil, nil, zerolog.Nop())

		result, err := updater.UpdateFoundingWalletBalance(ctx, scanned.ID)
		require.NoError(t, err)
		assert.True(t, result.Updated)

		var tx models.WalletTransaction
		require.NoError(t, store.db.Where("signature = ?", "sig1").First(&tx).Error)
		assert.Equal(t, scanned.ID, tx.FoundingWalletID)
		// The raw hint stays recorded even when it was not honored
		assert.Equal(t, "proj-b", tx.ProjectIDFromMemo)

		reloaded, err := store.WalletByID(ctx, scanned.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(4_000_000), reloaded.CurrentBalanceLamports)
	})

	t.Run("memo for unknown project falls back", func(t *testing.T) {
		store := NewStore(newTestDB(t))
		scanned := seedWallet(t, store, "proj-a", "AddrA")

		scanner := &stubScanner{txs: []solana.TransactionInfo{
			deposit("sig1", "SenderX", 4_000_000, "MEMOCRACY:ghost", "ghost"),
		}}
		updater := NewUpdater(store, scanner, nil, nil, zerolog.Nop())

		result, err := updater.UpdateFoundingWalletBalance(ctx, scanned.ID)
		require.NoError(t, err)
		assert.True(t, result.Updated)

		var tx models.WalletTransaction
		require.NoError(t, store.db.Where("signature = ?", "sig1").First(&tx).Error)
		assert.Equal(t, scanned.ID, tx.FoundingWalletID)
	})

	t.Run("contributor aggregates across deposits", func(t *testing.T) {
		store := NewStore(newTestDB(t))
		wallet := seedWallet(t, store, "proj-a", "AddrA")

		scanner := &stubScanner{txs: []solana.TransactionInfo{
			deposit("sig1", "SenderX", 2_000_000, "", ""),
			deposit("sig2", "SenderX", 3_000_000, "", ""),
			deposit("sig3", "SenderY", 1_000_000, "", ""),
		}}
		updater := NewUpdater(store, scanner, nil, nil, zerolog.Nop())

		_, err := updater.UpdateFoundingWalletBalance(ctx, wallet.ID)
		require.NoError(t, err)

		var contributor models.Contributor
		require.NoError(t, store.db.Where("founding_wallet_id = ? AND address = ?", wallet.ID, "SenderX").First(&contributor).Error)
		assert.Equal(t, int64(5_000_000), contributor.TotalContributedLamports)
		assert.Equal(t, 2, contributor.ContributionCount)
		assert.False(t, contributor.FirstContributionAt.IsZero())

		var total int64
		require.NoError(t, store.db.Model(&models.Contributor{}).Where("founding_wallet_id = ?", wallet.ID).Count(&total).Error)
		assert.Equal(t, int64(2), total)
	})

	t.Run("empty scan touches sync timestamp only", func(t *testing.T) {
		store := NewStore(newTestDB(t))
		wallet := seedWallet(t, store, "proj-a", "AddrA")

		balances := &countingInvalidator{}
		updater := NewUpdater(store, &stubScanner{}, balances, nil, zerolog.Nop())

		result, err := updater.UpdateFoundingWalletBalance(ctx, wallet.ID)
		require.NoError(t, err)
		assert.False(t, result.Updated)
		assert.Empty(t, balances.addresses)

		reloaded, err := store.WalletByID(ctx, wallet.ID)
		require.NoError(t, err)
		assert.False(t, reloaded.LastSyncedAt.IsZero())
	})

	t.Run("unknown wallet errors", func(t *testing.T) {
		store := NewStore(newTestDB(t))
		updater := NewUpdater(store, &stubScanner{}, nil, nil, zerolog.Nop())

		_, err := updater.UpdateFoundingWalletBalance(ctx, 9999)
		assert.ErrorIs(t, err, ErrWalletNotFound)
	})

	t.Run("scan failure propagates", func(t *testing.T) {
		store := NewStore(newTestDB(t))
		wallet := seedWallet(t, store, "proj-a", "AddrA")

		updater := NewUpdater(store, &stubScanner{err: fmt.Errorf("rpc unreachable")}, nil, nil, zerolog.Nop())

		_, err := updater.UpdateFoundingWalletBalance(ctx, wallet.ID)
		assert.Error(t, err)
	})
}
