package solana

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/memocracy/chaincore/internal/rpc"
	"github.com/rs/zerolog"
)

const (
	// DefaultPageSize is the signature page size for one scan
	DefaultPageSize = 100

	// DefaultMinDepositLamports filters out dust and fee-noise deposits.
	// Deltas below this floor are not contributions.
	DefaultMinDepositLamports = 1000

	lamportsPerSOL = 1_000_000_000
)

// ErrNoCounterparty marks a transaction whose sender could not be identified
var ErrNoCounterparty = errors.New("no counterparty found in transaction")

// TransactionInfo is one qualifying deposit extracted from a scanned
// transaction, ready for attribution and persistence.
type TransactionInfo struct {
	Signature         string
	FromWallet        string
	AmountLamports    int64
	AmountUSD         float64
	Memo              string
	ProjectIDFromMemo string
	TokenMint         string
	TokenAmount       float64
	Slot              int64
	BlockTime         time.Time
}

// ChainFetcher is the subset of the RPC fetcher the scanner depends on
type ChainFetcher interface {
	FetchSignatures(ctx context.Context, address, before string, limit int) ([]rpc.SignatureInfo, error)
	FetchTransaction(ctx context.Context, signature string) (*rpc.TransactionResult, error)
}

// SeenChecker reports whether a signature has already been persisted under
// any wallet, allowing the scanner to skip parse work early.
type SeenChecker interface {
	SeenSignature(ctx context.Context, signature string) (bool, error)
}

// PriceOracle returns the current SOL/USD price. The cache layer satisfies
// this; the scanner never talks to the price API directly.
type PriceOracle interface {
	SOLPrice(ctx context.Context) float64
}

// Scanner extracts qualifying deposits from a wallet's recent transactions
type Scanner struct {
	fetcher    ChainFetcher
	seen       SeenChecker
	price      PriceOracle
	logger     zerolog.Logger
	pageSize   int
	minDeposit int64
}

// ScannerOption configures a Scanner
type ScannerOption func(*Scanner)

// WithPageSize overrides the signature page size
func WithPageSize(size int) ScannerOption {
	return func(s *Scanner) {
		s.pageSize = size
	}
}

// WithMinDeposit overrides the minimum deposit floor in lamports
func WithMinDeposit(lamports int64) ScannerOption {
	return func(s *Scanner) {
		s.minDeposit = lamports
	}
}

// NewScanner creates a new wallet transaction scanner
func NewScanner(fetcher ChainFetcher, seen SeenChecker, price PriceOracle, logger zerolog.Logger, options ...ScannerOption) *Scanner {
	scanner := &Scanner{
		fetcher:    fetcher,
		seen:       seen,
		price:      price,
		logger:     logger.With().Str("component", "scanner").Logger(),
		pageSize:   DefaultPageSize,
		minDeposit: DefaultMinDepositLamports,
	}

	for _, option := range options {
		option(scanner)
	}

	return scanner
}

// ScanWallet fetches one page of recent transactions for an address and
// extracts qualifying deposits. The before cursor resumes pagination from an
// earlier scan; empty starts at the most recent transaction. A parse failure
// on a single signature is logged and skipped, never aborting the scan.
func (s *Scanner) ScanWallet(ctx context.Context, address, before string) ([]TransactionInfo, error) {
	signatures, err := s.fetcher.FetchSignatures(ctx, address, before, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch signatures for %s: %w", address, err)
	}

	deposits := make([]TransactionInfo, 0, len(signatures))
	for _, sig := range signatures {
		select {
		case <-ctx.Done():
			return deposits, ctx.Err()
		default:
		}

		// Failed transactions moved no funds
		if len(sig.Err) > 0 && string(sig.Err) != "null" {
			continue
		}

		// Skip already-persisted signatures before doing expensive parse work
		seen, err := s.seen.SeenSignature(ctx, sig.Signature)
		if err != nil {
			return deposits, fmt.Errorf("failed to check signature %s: %w", sig.Signature, err)
		}
		if seen {
			continue
		}

		info, err := s.processSignature(ctx, address, sig.Signature)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("wallet", address).
				Str("signature", sig.Signature).
				Msg("Failed to process transaction, skipping")
			continue
		}
		if info == nil {
			continue // not a qualifying deposit
		}

		deposits = append(deposits, *info)
	}

	return deposits, nil
}

// processSignature fetches and parses one transaction. A nil result with nil
// error means the transaction is not a qualifying deposit.
func (s *Scanner) processSignature(ctx context.Context, address, signature string) (*TransactionInfo, error) {
	tx, err := s.fetcher.FetchTransaction(ctx, signature)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction: %w", err)
	}
	if tx.Meta == nil {
		return nil, fmt.Errorf("transaction %s has no meta", signature)
	}

	targetIndex := accountIndex(tx.Transaction.Message.AccountKeys, address)
	if targetIndex < 0 {
		return nil, fmt.Errorf("address %s not among transaction accounts", address)
	}
	if targetIndex >= len(tx.Meta.PreBalances) || targetIndex >= len(tx.Meta.PostBalances) {
		return nil, fmt.Errorf("transaction %s balance arrays malformed", signature)
	}

	delta := int64(tx.Meta.PostBalances[targetIndex]) - int64(tx.Meta.PreBalances[targetIndex])
	if delta <= 0 {
		return nil, nil // outgoing or neutral, not a deposit
	}
	if delta < s.minDeposit {
		return nil, nil // dust or fee noise
	}

	fromWallet, err := findCounterparty(tx, targetIndex, delta)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", signature, err)
	}

	info := &TransactionInfo{
		Signature:      signature,
		FromWallet:     fromWallet,
		AmountLamports: delta,
		AmountUSD:      float64(delta) / lamportsPerSOL * s.price.SOLPrice(ctx),
		Slot:           int64(tx.Slot),
	}

	if tx.BlockTime != nil {
		info.BlockTime = time.Unix(*tx.BlockTime, 0)
	}

	if memo, ok := extractMemo(tx.Transaction.Message.Instructions); ok {
		info.Memo = memo
		if projectID, ok := ExtractProjectID(memo); ok {
			info.ProjectIDFromMemo = projectID
		}
	}

	if mint, amount, ok := tokenCredit(tx.Meta, address); ok {
		info.TokenMint = mint
		info.TokenAmount = amount
	}

	return info, nil
}

// accountIndex returns the position of an address in the account key list
func accountIndex(keys []rpc.AccountKey, address string) int {
	for i, key := range keys {
		if key.Pubkey == address {
			return i
		}
	}
	return -1
}

// findCounterparty identifies the sender as the account with the matching
// negative balance delta. The sender's outflow covers the deposit plus any
// fee it paid, so the most negative delta at least as large as the deposit
// wins.
func findCounterparty(tx *rpc.TransactionResult, targetIndex int, deposit int64) (string, error) {
	keys := tx.Transaction.Message.AccountKeys
	bestIndex := -1
	var bestDelta int64

	for i := range keys {
		if i == targetIndex || i >= len(tx.Meta.PreBalances) || i >= len(tx.Meta.PostBalances) {
			continue
		}
		delta := int64(tx.Meta.PostBalances[i]) - int64(tx.Meta.PreBalances[i])
		if delta >= 0 {
			continue
		}
		if -delta >= deposit && (bestIndex < 0 || delta < bestDelta) {
			bestIndex = i
			bestDelta = delta
		}
	}

	if bestIndex < 0 {
		return "", ErrNoCounterparty
	}
	return keys[bestIndex].Pubkey, nil
}

// extractMemo scans the instruction list for a memo-program instruction and
// decodes its payload to text.
func extractMemo(instructions []rpc.Instruction) (string, bool) {
	for _, inst := range instructions {
		if !IsMemoProgram(inst.ProgramID) {
			continue
		}

		// jsonParsed nodes decode the memo payload to a JSON string
		if len(inst.Parsed) > 0 {
			if text, ok := memoTextFromParsed(inst.Parsed); ok && text != "" {
				return text, true
			}
		}

		if inst.Data != "" {
			text, err := MemoFromBase58(inst.Data).Text()
			if err == nil && text != "" {
				return text, true
			}
		}
	}
	return "", false
}

// tokenCredit inspects token balance snapshots for an SPL credit to the
// target address. Captured when present, not required.
func tokenCredit(meta *rpc.TransactionMeta, address string) (string, float64, bool) {
	for _, post := range meta.PostTokenBalances {
		if post.Owner != address || post.UITokenAmount.UIAmount == nil {
			continue
		}

		var pre float64
		for _, preBal := range meta.PreTokenBalances {
			if preBal.Owner == address && preBal.Mint == post.Mint && preBal.UITokenAmount.UIAmount != nil {
				pre = *preBal.UITokenAmount.UIAmount
				break
			}
		}

		if change := *post.UITokenAmount.UIAmount - pre; change > 0 {
			return post.Mint, change, true
		}
	}
	return "", 0, false
}
