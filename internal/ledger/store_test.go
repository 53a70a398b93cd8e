package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/memocracy/chaincore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSeenSignature(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newTestDB(t))
	wallet := seedWallet(t, store, "proj-a", "AddrA")

	seen, err := store.SeenSignature(ctx, "sig1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.InsertTransaction(ctx, &models.WalletTransaction{
		Signature:        "sig1",
		FoundingWalletID: wallet.ID,
		AmountLamports:   1000,
	}))

	seen, err = store.SeenSignature(ctx, "sig1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestStoreInsertTransactionDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newTestDB(t))
	wallet := seedWallet(t, store, "proj-a", "AddrA")
	other := seedWallet(t, store, "proj-b", "AddrB")

	require.NoError(t, store.InsertTransaction(ctx, &models.WalletTransaction{
		Signature:        "sig1",
		FoundingWalletID: wallet.ID,
		AmountLamports:   1000,
	}))

	// The signature is unique across wallets, not per wallet
	err := store.InsertTransaction(ctx, &models.WalletTransaction{
		Signature:        "sig1",
		FoundingWalletID: other.ID,
		AmountLamports:   2000,
	})
	assert.ErrorIs(t, err, ErrDuplicateTransaction)
}

func TestStoreCreateFoundingWallet(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newTestDB(t))

	coin, err := store.GetOrCreateCoin(ctx, "MintZ")
	require.NoError(t, err)

	wallet := &models.FoundingWallet{
		CoinID:  coin.ID,
		Address: "AddrZ",
		Type:    models.WalletTypeFounding,
	}
	require.NoError(t, store.CreateFoundingWallet(ctx, wallet))
	assert.NotEmpty(t, wallet.ProjectID)

	found, err := store.WalletByProjectID(ctx, wallet.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, wallet.ID, found.ID)

	_, err = store.WalletByProjectID(ctx, "no-such-project")
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestStoreGetOrCreateCoin(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newTestDB(t))

	created, err := store.GetOrCreateCoin(ctx, "MintQ")
	require.NoError(t, err)

	again, err := store.GetOrCreateCoin(ctx, "MintQ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
}

func TestStoreVoteCounts(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newTestDB(t))

	coin, err := store.GetOrCreateCoin(ctx, "MintV")
	require.NoError(t, err)

	votes := []models.CoinVote{
		{CoinID: coin.ID, VoterAddress: "V1", Direction: models.VoteUp},
		{CoinID: coin.ID, VoterAddress: "V2", Direction: models.VoteUp},
		{CoinID: coin.ID, VoterAddress: "V3", Direction: models.VoteDown},
	}
	for i := range votes {
		require.NoError(t, store.db.Create(&votes[i]).Error)
	}

	up, total, err := store.VoteCounts(ctx, "MintV")
	require.NoError(t, err)
	assert.Equal(t, 2, up)
	assert.Equal(t, 3, total)

	up, total, err = store.VoteCounts(ctx, "UnknownMint")
	require.NoError(t, err)
	assert.Zero(t, up)
	assert.Zero(t, total)
}

func TestStoreSaveTrustScoreUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newTestDB(t))

	coin, err := store.GetOrCreateCoin(ctx, "MintS")
	require.NoError(t, err)

	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveTrustScore(ctx, coin.ID, 42, "BRONZE", `{"maturity":10}`, at))
	require.NoError(t, store.SaveTrustScore(ctx, coin.ID, 67, "GOLD", `{"maturity":40}`, at.Add(time.Hour)))

	var scores []models.TrustScore
	require.NoError(t, store.db.Where("coin_id = ?", coin.ID).Find(&scores).Error)
	require.Len(t, scores, 1)
	assert.Equal(t, 67, scores[0].OverallScore)
	assert.Equal(t, "GOLD", scores[0].Tier)
}

func TestStoreUnsyncedVotes(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newTestDB(t))

	coin, err := store.GetOrCreateCoin(ctx, "MintU")
	require.NoError(t, err)

	pending := models.CoinVote{CoinID: coin.ID, VoterAddress: "V1", Direction: models.VoteUp, TransactionSignature: "sigA"}
	offChain := models.CoinVote{CoinID: coin.ID, VoterAddress: "V2", Direction: models.VoteUp}
	synced := models.CoinVote{CoinID: coin.ID, VoterAddress: "V3", Direction: models.VoteUp, TransactionSignature: "sigB", OnChainSynced: true}
	for _, v := range []*models.CoinVote{&pending, &offChain, &synced} {
		require.NoError(t, store.db.Create(v).Error)
	}

	votes, err := store.UnsyncedVotes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, pending.ID, votes[0].ID)

	require.NoError(t, store.MarkVoteSynced(ctx, pending.ID, time.Now()))

	votes, err = store.UnsyncedVotes(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, votes)
}

func TestStoreRecentTransactions(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newTestDB(t))
	wallet := seedWallet(t, store, "proj-a", "AddrA")

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i, sig := range []string{"sig1", "sig2", "sig3"} {
		require.NoError(t, store.InsertTransaction(ctx, &models.WalletTransaction{
			Signature:        sig,
			FoundingWalletID: wallet.ID,
			FromAddress:      "SenderX",
			AmountLamports:   int64(1000 * (i + 1)),
			BlockTime:        base.Add(time.Duration(i) * time.Hour),
		}))
	}

	txs, err := store.RecentTransactions(ctx, "AddrA", 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "sig3", txs[0].Signature)
	assert.Equal(t, "sig2", txs[1].Signature)

	txs, err = store.RecentTransactions(ctx, "UnknownAddr", 10)
	require.NoError(t, err)
	assert.Empty(t, txs)
}
