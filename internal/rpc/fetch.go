package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/memocracy/chaincore/internal/metrics"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when the node has no record of the requested item
var ErrNotFound = errors.New("not found on chain")

// Fetcher handles RPC calls with endpoint rotation, retries and backoff
type Fetcher struct {
	pool   *Pool
	logger zerolog.Logger
}

// NewFetcher creates a new RPC fetcher
func NewFetcher(pool *Pool, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		pool:   pool,
		logger: logger.With().Str("component", "rpc_fetcher").Logger(),
	}
}

// FetchSignatures fetches transaction signatures for an address, newest first.
// An empty before cursor starts from the most recent transaction.
func (f *Fetcher) FetchSignatures(ctx context.Context, address, before string, limit int) ([]SignatureInfo, error) {
	opts := map[string]interface{}{
		"limit":      limit,
		"commitment": "confirmed",
	}
	if before != "" {
		opts["before"] = before
	}

	var signatures []SignatureInfo
	if err := f.call(ctx, "getSignaturesForAddress", []interface{}{address, opts}, &signatures); err != nil {
		return nil, fmt.Errorf("failed to fetch signatures for %s: %w", address, err)
	}

	metrics.RecordRPCRequest("success")
	return signatures, nil
}

// FetchTransaction fetches a transaction by signature with retry logic
func (f *Fetcher) FetchTransaction(ctx context.Context, signature string) (*TransactionResult, error) {
	const maxRetries = 3
	baseDelay := 250 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				metrics.RecordRPCRequest("cancelled")
				return nil, ctx.Err()
			}
		}

		tx, err := f.fetchTransactionOnce(ctx, signature)
		if err == nil {
			metrics.RecordRPCRequest("success")
			return tx, nil
		}
		if errors.Is(err, ErrNotFound) {
			metrics.RecordRPCRequest("not_found")
			return nil, err
		}

		lastErr = err
		f.logger.Warn().
			Err(err).
			Str("signature", signature).
			Int("attempt", attempt+1).
			Msg("Failed to fetch transaction")
	}

	metrics.RecordRPCRequest("failed")
	return nil, fmt.Errorf("failed to fetch transaction after %d attempts: %w", maxRetries+1, lastErr)
}

func (f *Fetcher) fetchTransactionOnce(ctx context.Context, signature string) (*TransactionResult, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"commitment":                     "confirmed",
			"maxSupportedTransactionVersion": 0,
		},
	}

	var tx *TransactionResult
	if err := f.call(ctx, "getTransaction", params, &tx); err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction %s: %w", signature, ErrNotFound)
	}
	return tx, nil
}

// FetchBalance returns the lamport balance of an address
func (f *Fetcher) FetchBalance(ctx context.Context, address string) (uint64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	params := []interface{}{address, map[string]interface{}{"commitment": "confirmed"}}
	if err := f.call(ctx, "getBalance", params, &result); err != nil {
		metrics.RecordRPCRequest("failed")
		return 0, fmt.Errorf("failed to fetch balance for %s: %w", address, err)
	}

	metrics.RecordRPCRequest("success")
	return result.Value, nil
}

// FetchSignatureStatus reports whether a signature is confirmed or finalized
// on chain. Returns ErrNotFound if the node has no record of the signature.
func (f *Fetcher) FetchSignatureStatus(ctx context.Context, signature string) (bool, error) {
	params := []interface{}{
		[]string{signature},
		map[string]interface{}{"searchTransactionHistory": true},
	}

	var result signatureStatusResult
	if err := f.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return false, fmt.Errorf("failed to fetch signature status for %s: %w", signature, err)
	}

	if len(result.Value) == 0 || result.Value[0] == nil {
		return false, fmt.Errorf("signature %s: %w", signature, ErrNotFound)
	}

	status := result.Value[0]
	if len(status.Err) > 0 && string(status.Err) != "null" {
		return false, nil
	}
	return status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized", nil
}

// call performs a single JSON RPC request against the next pooled endpoint
// and unmarshals the result into out.
func (f *Fetcher) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	client, endpoint, err := f.pool.GetClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to get RPC client: %w", err)
	}

	request := Request{
		Jsonrpc: "2.0",
		ID:      "1",
		Method:  method,
		Params:  params,
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal RPC request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := client.Do(httpReq)
	duration := time.Since(startTime)

	if err != nil {
		f.pool.MarkUnhealthy(endpoint)
		metrics.RecordRPCRequest("error")
		f.logger.Error().
			Err(err).
			Str("endpoint", endpoint).
			Str("method", method).
			Dur("duration", duration).
			Msg("RPC request failed")
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		f.pool.SetCooldown(endpoint, 5*time.Minute)
		metrics.RecordRPCRequest("rate_limited")
		return fmt.Errorf("rate limited by endpoint %s: status %d", endpoint, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		f.pool.MarkUnhealthy(endpoint)
		return fmt.Errorf("unexpected status code from %s: %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var rpcResponse Response
	if err := json.Unmarshal(body, &rpcResponse); err != nil {
		return fmt.Errorf("failed to unmarshal RPC response: %w", err)
	}

	if rpcResponse.Error != nil {
		return fmt.Errorf("RPC error from %s: code %d, message: %s",
			endpoint, rpcResponse.Error.Code, rpcResponse.Error.Message)
	}

	f.pool.MarkHealthy(endpoint)

	if out == nil || len(rpcResponse.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(rpcResponse.Result, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s result: %w", method, err)
	}
	return nil
}
