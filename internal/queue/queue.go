package queue

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	syncQueueKey = "wallet_sync_queue"
	inFlightKey  = "wallet_sync_inflight"
)

// Client wraps the Redis operations backing the wallet sync queue. Members
// of the sorted set are founding wallet IDs; the score is the priority, so
// lower scores are drained first.
type Client struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewClient creates a new Redis queue client
func NewClient(redisURL string, logger zerolog.Logger) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info().Str("redis_url", redisURL).Msg("Connected to Redis successfully")

	return &Client{
		client: client,
		logger: logger.With().Str("component", "queue").Logger(),
	}, nil
}

// PopWallet removes and returns the wallet ID with the lowest score. It
// returns (0, false, nil) when the queue is empty.
func (c *Client) PopWallet(ctx context.Context) (uint, bool, error) {
	result, err := c.client.ZPopMin(ctx, syncQueueKey, 1).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to pop wallet from queue: %w", err)
	}

	if len(result) == 0 {
		return 0, false, nil
	}

	member, ok := result[0].Member.(string)
	if !ok {
		return 0, false, fmt.Errorf("unexpected queue member type %T", result[0].Member)
	}
	id, err := strconv.ParseUint(member, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid wallet ID %q in queue: %w", member, err)
	}

	c.logger.Debug().Uint64("wallet_id", id).Msg("Popped wallet from queue")
	return uint(id), true, nil
}

// PushWallet adds a wallet ID to the queue with the specified priority
func (c *Client) PushWallet(ctx context.Context, walletID uint, priority float64) error {
	err := c.client.ZAdd(ctx, syncQueueKey, redis.Z{
		Score:  priority,
		Member: strconv.FormatUint(uint64(walletID), 10),
	}).Err()

	if err != nil {
		return fmt.Errorf("failed to push wallet to queue: %w", err)
	}

	c.logger.Debug().
		Uint("wallet_id", walletID).
		Float64("priority", priority).
		Msg("Pushed wallet to queue")

	return nil
}

// SetInFlight marks a wallet as being reconciled by a worker
func (c *Client) SetInFlight(ctx context.Context, walletID uint, worker string) error {
	value := fmt.Sprintf("%s,%d", worker, time.Now().Unix())
	err := c.client.HSet(ctx, inFlightKey, strconv.FormatUint(uint64(walletID), 10), value).Err()

	if err != nil {
		return fmt.Errorf("failed to set wallet in-flight: %w", err)
	}

	c.logger.Debug().
		Uint("wallet_id", walletID).
		Str("worker", worker).
		Msg("Marked wallet as in-flight")

	return nil
}

// RemoveInFlight removes a wallet from the in-flight tracking
func (c *Client) RemoveInFlight(ctx context.Context, walletID uint) error {
	err := c.client.HDel(ctx, inFlightKey, strconv.FormatUint(uint64(walletID), 10)).Err()

	if err != nil {
		return fmt.Errorf("failed to remove wallet from in-flight: %w", err)
	}

	c.logger.Debug().Uint("wallet_id", walletID).Msg("Removed wallet from in-flight")
	return nil
}

// GetQueueLength returns the number of wallets waiting in the queue
func (c *Client) GetQueueLength(ctx context.Context) (int64, error) {
	length, err := c.client.ZCard(ctx, syncQueueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return length, nil
}

// GetInFlightWallets returns all wallets currently being reconciled, keyed
// by wallet ID with "worker,timestamp" values.
func (c *Client) GetInFlightWallets(ctx context.Context) (map[string]string, error) {
	result, err := c.client.HGetAll(ctx, inFlightKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get in-flight wallets: %w", err)
	}
	return result, nil
}

// RequeueStuckWallets moves wallets that have been in-flight too long back
// to the queue.
func (c *Client) RequeueStuckWallets(ctx context.Context, timeout time.Duration) error {
	inFlight, err := c.GetInFlightWallets(ctx)
	if err != nil {
		return fmt.Errorf("failed to get in-flight wallets: %w", err)
	}

	cutoff := time.Now().Add(-timeout).Unix()
	requeuedCount := 0

	for member, value := range inFlight {
		walletID, err := strconv.ParseUint(member, 10, 64)
		if err != nil {
			c.logger.Warn().Str("member", member).Msg("Invalid wallet ID in in-flight set")
			continue
		}

		worker, startTime, ok := parseInFlightValue(value)
		if !ok {
			c.logger.Warn().Str("member", member).Str("value", value).Msg("Invalid in-flight value format")
			continue
		}

		if startTime < cutoff {
			if err := c.PushWallet(ctx, uint(walletID), 0); err != nil {
				c.logger.Error().Err(err).Uint64("wallet_id", walletID).Msg("Failed to requeue stuck wallet")
				continue
			}

			if err := c.RemoveInFlight(ctx, uint(walletID)); err != nil {
				c.logger.Error().Err(err).Uint64("wallet_id", walletID).Msg("Failed to remove requeued wallet from in-flight")
			}

			requeuedCount++
			c.logger.Info().
				Uint64("wallet_id", walletID).
				Str("worker", worker).
				Int64("stuck_minutes", (time.Now().Unix()-startTime)/60).
				Msg("Requeued stuck wallet")
		}
	}

	if requeuedCount > 0 {
		c.logger.Info().Int("count", requeuedCount).Msg("Requeued stuck wallets")
	}

	return nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// parseInFlightValue splits the in-flight value format "worker,timestamp"
func parseInFlightValue(value string) (string, int64, bool) {
	worker, ts, ok := strings.Cut(value, ",")
	if !ok {
		return "", 0, false
	}
	startTime, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", 0, false
	}
	return worker, startTime, true
}
