package chainsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/memocracy/chaincore/internal/database"
	"github.com/memocracy/chaincore/internal/ledger"
	"github.com/memocracy/chaincore/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) (*ledger.Store, *gorm.DB) {
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
	return ledger.NewStore(db), db
}

func seedVote(t *testing.T, store *ledger.Store, db *gorm.DB, voter, signature string) *models.CoinVote {
	t.Helper()

	coin, err := store.GetOrCreateCoin(context.Background(), "MintC")
	require.NoError(t, err)

	vote := &models.CoinVote{
		CoinID:               coin.ID,
		VoterAddress:         voter,
		Direction:            models.VoteUp,
		TransactionSignature: signature,
	}
	require.NoError(t, db.Create(vote).Error)
	return vote
}

type stubStatusFetcher struct {
	confirmed map[string]bool
	errs      map[string]error
	failOnce  map[string]bool
	calls     map[string]int
}

func newStubStatusFetcher() *stubStatusFetcher {
	return &stubStatusFetcher{
		confirmed: map[string]bool{},
		errs:      map[string]error{},
		failOnce:  map[string]bool{},
		calls:     map[string]int{},
	}
}

func (s *stubStatusFetcher) FetchSignatureStatus(ctx context.Context, signature string) (bool, error) {
	s.calls[signature]++
	if s.failOnce[signature] && s.calls[signature] == 1 {
		return false, errors.New("transient rpc failure")
	}
	if err, ok := s.errs[signature]; ok {
		return false, err
	}
	return s.confirmed[signature], nil
}

func TestJobRun(t *testing.T) {
	ctx := context.Background()

	t.Run("confirmed votes are marked synced", func(t *testing.T) {
		store, db := newTestStore(t)
		vote := seedVote(t, store, db, "V1", "sigA")

		fetcher := newStubStatusFetcher()
		fetcher.confirmed["sigA"] = true

		job := NewJob(store, fetcher, zerolog.Nop())
		confirmed, err := job.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, confirmed)

		var reloaded models.CoinVote
		require.NoError(t, db.First(&reloaded, vote.ID).Error)
		assert.True(t, reloaded.OnChainSynced)
		require.NotNil(t, reloaded.SyncedAt)
	})

	t.Run("unconfirmed votes stay pending", func(t *testing.T) {
		store, db := newTestStore(t)
		vote := seedVote(t, store, db, "V1", "sigA")

		job := NewJob(store, newStubStatusFetcher(), zerolog.Nop())
		confirmed, err := job.Run(ctx)
		require.NoError(t, err)
		assert.Zero(t, confirmed)

		var reloaded models.CoinVote
		require.NoError(t, db.First(&reloaded, vote.ID).Error)
		assert.False(t, reloaded.OnChainSynced)
	})

	t.Run("status failure on one vote does not block others", func(t *testing.T) {
		store, db := newTestStore(t)
		seedVote(t, store, db, "V1", "sigBroken")
		good := seedVote(t, store, db, "V2", "sigGood")

		fetcher := newStubStatusFetcher()
		fetcher.errs["sigBroken"] = errors.New("rpc unreachable")
		fetcher.confirmed["sigGood"] = true

		job := NewJob(store, fetcher, zerolog.Nop())
		confirmed, err := job.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, confirmed)

		var reloaded models.CoinVote
		require.NoError(t, db.First(&reloaded, good.ID).Error)
		assert.True(t, reloaded.OnChainSynced)
	})

	t.Run("transient failure is retried", func(t *testing.T) {
		store, db := newTestStore(t)
		vote := seedVote(t, store, db, "V1", "sigFlaky")

		fetcher := newStubStatusFetcher()
		fetcher.failOnce["sigFlaky"] = true
		fetcher.confirmed["sigFlaky"] = true

		job := NewJob(store, fetcher, zerolog.Nop())
		confirmed, err := job.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, confirmed)
		assert.Equal(t, 2, fetcher.calls["sigFlaky"])

		var reloaded models.CoinVote
		require.NoError(t, db.First(&reloaded, vote.ID).Error)
		assert.True(t, reloaded.OnChainSynced)
	})

	t.Run("nothing pending is a no-op", func(t *testing.T) {
		store, _ := newTestStore(t)

		fetcher := newStubStatusFetcher()
		job := NewJob(store, fetcher, zerolog.Nop())
		confirmed, err := job.Run(ctx)
		require.NoError(t, err)
		assert.Zero(t, confirmed)
		assert.Empty(t, fetcher.calls)
	})
}
