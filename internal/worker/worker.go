package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/memocracy/chaincore/internal/ledger"
	"github.com/memocracy/chaincore/internal/logger"
	"github.com/memocracy/chaincore/internal/metrics"
	"github.com/memocracy/chaincore/internal/queue"
	"github.com/rs/zerolog"
)

// WalletUpdater reconciles one founding wallet against the chain
type WalletUpdater interface {
	UpdateFoundingWalletBalance(ctx context.Context, walletID uint) (ledger.SyncResult, error)
}

// Worker represents a single wallet reconciliation worker
type Worker struct {
	id      string
	queue   *queue.Client
	updater WalletUpdater
	logger  zerolog.Logger
	stopped bool
}

// NewWorker creates a new worker instance
func NewWorker(id string, queueClient *queue.Client, updater WalletUpdater, baseLogger zerolog.Logger) *Worker {
	return &Worker{
		id:      id,
		queue:   queueClient,
		updater: updater,
		logger:  logger.WithWorker(baseLogger, id),
	}
}

// Start begins the worker processing loop
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info().Msg("Starting worker")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Worker received shutdown signal")
			return ctx.Err()
		default:
			if w.stopped {
				w.logger.Info().Msg("Worker stopped")
				return nil
			}

			// Process a single wallet
			if err := w.processWallet(ctx); err != nil {
				w.logger.Error().Err(err).Msg("Failed to process wallet")
				// Continue processing other wallets even if one fails

				// Brief pause to avoid tight error loops
				select {
				case <-time.After(5 * time.Second):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

// Stop signals the worker to stop gracefully
func (w *Worker) Stop() {
	w.stopped = true
	w.logger.Info().Msg("Worker stop signal received")
}

// processWallet handles the complete lifecycle of reconciling a single wallet
func (w *Worker) processWallet(ctx context.Context) error {
	walletID, ok, err := w.queue.PopWallet(ctx)
	if err != nil {
		return fmt.Errorf("failed to pop wallet from queue: %w", err)
	}

	if !ok {
		// Brief pause when queue is empty to avoid spinning
		select {
		case <-time.After(10 * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}

	// Mark wallet as in-flight
	if err := w.queue.SetInFlight(ctx, walletID, w.id); err != nil {
		w.logger.Error().Err(err).Uint("wallet_id", walletID).Msg("Failed to mark wallet as in-flight")
		// Re-queue the wallet since we couldn't track it
		if requeueErr := w.queue.PushWallet(ctx, walletID, 0); requeueErr != nil {
			w.logger.Error().Err(requeueErr).Uint("wallet_id", walletID).Msg("Failed to requeue wallet after in-flight error")
		}
		return err
	}

	walletLogger := w.logger.With().Uint("wallet_id", walletID).Logger()
	startTime := time.Now()

	walletLogger.Info().Msg("Starting wallet reconciliation")

	result, err := w.updater.UpdateFoundingWalletBalance(ctx, walletID)
	duration := time.Since(startTime)

	metrics.RecordWalletSync(duration.Seconds())

	// Remove from in-flight tracking
	if removeErr := w.queue.RemoveInFlight(ctx, walletID); removeErr != nil {
		walletLogger.Error().Err(removeErr).Msg("Failed to remove wallet from in-flight tracking")
	}

	if err != nil {
		walletLogger.Error().Err(err).Dur("duration", duration).Msg("Failed to reconcile wallet")

		// Re-queue with lower priority (higher score) on failure
		if requeueErr := w.queue.PushWallet(ctx, walletID, float64(time.Now().Unix())); requeueErr != nil {
			walletLogger.Error().Err(requeueErr).Msg("Failed to requeue failed wallet")
		}

		return fmt.Errorf("wallet reconciliation failed: %w", err)
	}

	walletLogger.Info().
		Dur("duration", duration).
		Bool("updated", result.Updated).
		Int("new_transactions", result.NewTransactionCount).
		Msg("Wallet reconciliation completed")
	return nil
}
