package database

import (
	"fmt"
	"os"
	"time"

	"github.com/memocracy/chaincore/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect() (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)

	// Configure GORM with optimized settings
	config := &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Silent),
		PrepareStmt: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(postgres.Open(dsn), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Migrate database schema
	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate applies the schema for all chaincore entities
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Coin{},
		&models.CoinVote{},
		&models.TrustScore{},
		&models.FoundingWallet{},
		&models.WalletTransaction{},
		&models.Contributor{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Add composite indexes for common query patterns
	db.Exec("CREATE INDEX IF NOT EXISTS idx_wallet_transactions_wallet_blocktime ON wallet_transactions(founding_wallet_id, block_time)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_contributors_wallet_total_usd ON contributors(founding_wallet_id, total_contributed_usd)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_coin_votes_unsynced ON coin_votes(on_chain_synced) WHERE on_chain_synced = false")

	return nil
}
