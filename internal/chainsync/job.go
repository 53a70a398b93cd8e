package chainsync

import (
	"context"
	"time"

	"github.com/memocracy/chaincore/internal/ledger"
	"github.com/memocracy/chaincore/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	// DefaultBatchSize bounds one reconciliation pass over pending votes
	DefaultBatchSize = 200

	statusCallTimeout = 5 * time.Second
	maxStatusRetries  = 2
	retryBaseDelay    = 500 * time.Millisecond
)

// StatusFetcher reports whether a transaction signature is confirmed on chain
type StatusFetcher interface {
	FetchSignatureStatus(ctx context.Context, signature string) (bool, error)
}

// Job reconciles vote records against the chain. Votes are written
// optimistically when cast; this job confirms the referenced transactions
// landed and marks them synced. A vote whose status cannot be fetched stays
// pending and is retried on the next pass.
type Job struct {
	store     *ledger.Store
	fetcher   StatusFetcher
	batchSize int
	logger    zerolog.Logger
	now       func() time.Time
}

// NewJob creates a vote reconciliation job
func NewJob(store *ledger.Store, fetcher StatusFetcher, logger zerolog.Logger) *Job {
	return &Job{
		store:     store,
		fetcher:   fetcher,
		batchSize: DefaultBatchSize,
		logger:    logger.With().Str("component", "chainsync").Logger(),
		now:       time.Now,
	}
}

// Run processes one batch of pending votes. It returns the number of votes
// confirmed; individual vote failures are logged and skipped.
func (j *Job) Run(ctx context.Context) (int, error) {
	votes, err := j.store.UnsyncedVotes(ctx, j.batchSize)
	if err != nil {
		return 0, err
	}
	if len(votes) == 0 {
		return 0, nil
	}

	j.logger.Debug().Int("pending", len(votes)).Msg("Reconciling pending votes")

	confirmed := 0
	for _, vote := range votes {
		select {
		case <-ctx.Done():
			return confirmed, ctx.Err()
		default:
		}

		ok, err := j.checkStatus(ctx, vote.TransactionSignature)
		if err != nil {
			j.logger.Warn().Err(err).
				Uint("vote_id", vote.ID).
				Str("signature", vote.TransactionSignature).
				Msg("Failed to check vote transaction status")
			metrics.RecordVoteSync("error")
			continue
		}
		if !ok {
			metrics.RecordVoteSync("pending")
			continue
		}

		if err := j.store.MarkVoteSynced(ctx, vote.ID, j.now()); err != nil {
			j.logger.Error().Err(err).Uint("vote_id", vote.ID).Msg("Failed to mark vote synced")
			metrics.RecordVoteSync("error")
			continue
		}
		metrics.RecordVoteSync("confirmed")
		confirmed++
	}

	if confirmed > 0 {
		j.logger.Info().Int("confirmed", confirmed).Int("checked", len(votes)).Msg("Vote reconciliation pass completed")
	}
	return confirmed, nil
}

// checkStatus queries a signature's confirmation with bounded retries
func (j *Job) checkStatus(ctx context.Context, signature string) (bool, error) {
	var lastErr error
	for attempt := 0; attempt <= maxStatusRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, statusCallTimeout)
		ok, err := j.fetcher.FetchSignatureStatus(callCtx, signature)
		cancel()
		if err == nil {
			return ok, nil
		}
		lastErr = err
	}
	return false, lastErr
}
