package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/memocracy/chaincore/internal/cache"
	"github.com/memocracy/chaincore/internal/chainsync"
	"github.com/memocracy/chaincore/internal/config"
	"github.com/memocracy/chaincore/internal/database"
	"github.com/memocracy/chaincore/internal/ledger"
	"github.com/memocracy/chaincore/internal/logger"
	"github.com/memocracy/chaincore/internal/market"
	"github.com/memocracy/chaincore/internal/queue"
	"github.com/memocracy/chaincore/internal/rpc"
	"github.com/memocracy/chaincore/internal/solana"
	"github.com/memocracy/chaincore/internal/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const lamportsPerSOL = 1_000_000_000

func main() {
	envFile := flag.String("envFile", ".env", "Path to .env file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("No .env file found at %s, using environment variables", *envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLog := logger.New(cfg.LogLevel)
	appLog.Info().Msg("Starting memocracyd")

	db, err := database.Connect()
	if err != nil {
		appLog.Fatal().Err(err).Msg("Failed to connect to database")
	}

	store := ledger.NewStore(db)

	queueClient, err := queue.NewClient(cfg.RedisURL, appLog)
	if err != nil {
		appLog.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer queueClient.Close()

	pool := rpc.NewPool(cfg.RPCEndpoints, appLog)
	fetcher := rpc.NewFetcher(pool, appLog)

	marketClient := market.NewClient(
		market.WithBaseURL(cfg.MarketAPIBaseURL),
		market.WithPriceBaseURL(cfg.PriceAPIBaseURL),
	)

	priceCache := cache.NewPriceCache(marketClient.SOLPrice, appLog)
	balanceCache := cache.NewBalanceCache(func(ctx context.Context, address string) (cache.Balance, error) {
		lamports, err := fetcher.FetchBalance(ctx, address)
		if err != nil {
			return cache.Balance{}, err
		}
		price := priceCache.SOLPrice(ctx)
		return cache.Balance{
			Lamports: lamports,
			USD:      float64(lamports) / lamportsPerSOL * price,
		}, nil
	}, appLog)
	txCache := cache.NewTransactionCache(store.RecentTransactions, appLog)

	scanner := solana.NewScanner(fetcher, store, priceCache, appLog,
		solana.WithMinDeposit(cfg.MinDepositLam))
	updater := ledger.NewUpdater(store, scanner, balanceCache, txCache, appLog)

	manager := worker.NewManager(cfg, queueClient, pool, updater, appLog)
	if err := manager.Start(); err != nil {
		appLog.Fatal().Err(err).Msg("Failed to start worker manager")
	}

	voteSync := chainsync.NewJob(store, fetcher, appLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runEnqueueLoop(ctx, cfg, store, queueClient, appLog)
	go runVoteSyncLoop(ctx, cfg, voteSync, appLog)

	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: promhttp.Handler()}
	go func() {
		appLog.Info().Str("port", cfg.MetricsPort).Msg("Serving metrics")
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	appLog.Info().Str("signal", sig.String()).Msg("Shutting down")

	cancel()
	if err := manager.Stop(); err != nil {
		appLog.Error().Err(err).Msg("Worker manager shutdown failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		appLog.Error().Err(err).Msg("Metrics server shutdown failed")
	}

	appLog.Info().Msg("Shutdown complete")
}

// runEnqueueLoop periodically enqueues every active founding wallet for
// reconciliation. Older last-synced wallets would be a natural priority
// refinement; for now all wallets share the enqueue timestamp as score.
func runEnqueueLoop(ctx context.Context, cfg config.Config, store *ledger.Store, queueClient *queue.Client, log zerolog.Logger) {
	enqueue := func() {
		ids, err := store.FoundingWalletIDs(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list wallets for enqueue")
			return
		}
		score := float64(time.Now().Unix())
		for _, id := range ids {
			if err := queueClient.PushWallet(ctx, id, score); err != nil {
				log.Error().Err(err).Uint("wallet_id", id).Msg("Failed to enqueue wallet")
			}
		}
		log.Debug().Int("wallets", len(ids)).Msg("Enqueued wallets for reconciliation")
	}

	enqueue()
	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			enqueue()
		}
	}
}

// runVoteSyncLoop periodically reconciles pending votes against the chain
func runVoteSyncLoop(ctx context.Context, cfg config.Config, job *chainsync.Job, log zerolog.Logger) {
	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := job.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Vote reconciliation pass failed")
			}
		}
	}
}
