package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/memocracy/chaincore/internal/config"
	"github.com/memocracy/chaincore/internal/database"
	"github.com/memocracy/chaincore/internal/ledger"
	"github.com/memocracy/chaincore/internal/logger"
	"github.com/memocracy/chaincore/internal/market"
	"github.com/memocracy/chaincore/internal/solana"
	"github.com/memocracy/chaincore/internal/trustscore"
)

func main() {
	var mint string
	var save bool
	envFile := flag.String("envFile", ".env", "Path to .env file")
	flag.StringVar(&mint, "mint", "", "Token mint address to score (required)")
	flag.BoolVar(&save, "save", false, "Persist the computed score")
	flag.Parse()

	if mint == "" {
		fmt.Fprintln(os.Stderr, "Usage: trustscore -mint <mint_address> [-save]")
		os.Exit(1)
	}

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("No .env file found at %s, using environment variables", *envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLog := logger.New(cfg.LogLevel)

	db, err := database.Connect()
	if err != nil {
		appLog.Fatal().Err(err).Msg("Failed to connect to database")
	}
	store := ledger.NewStore(db)

	marketClient := market.NewClient(
		market.WithBaseURL(cfg.MarketAPIBaseURL),
		market.WithPriceBaseURL(cfg.PriceAPIBaseURL),
	)
	authorities := solana.NewAuthorityChecker(cfg.RPCEndpoints[0])

	engine := trustscore.NewEngine(marketClient, authorities, store, appLog,
		trustscore.WithMarketTimeout(cfg.ScoreTimeout))

	ctx := context.Background()
	result, err := engine.Compute(ctx, mint)
	if err != nil {
		appLog.Fatal().Err(err).Str("mint", mint).Msg("Failed to compute trust score")
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		appLog.Fatal().Err(err).Msg("Failed to encode result")
	}
	fmt.Println(string(output))

	if save {
		coin, err := store.GetOrCreateCoin(ctx, mint)
		if err != nil {
			appLog.Fatal().Err(err).Msg("Failed to load coin record")
		}

		breakdown, err := json.Marshal(result.Breakdown)
		if err != nil {
			appLog.Fatal().Err(err).Msg("Failed to encode breakdown")
		}

		if err := store.SaveTrustScore(ctx, coin.ID, result.OverallScore, string(result.Tier), string(breakdown), result.ComputedAt); err != nil {
			appLog.Fatal().Err(err).Msg("Failed to save trust score")
		}
		appLog.Info().
			Str("mint", mint).
			Int("score", result.OverallScore).
			Str("tier", string(result.Tier)).
			Msg("Trust score saved")
	}
}
