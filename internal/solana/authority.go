package solana

import (
	"context"
	"encoding/binary"
	"fmt"

	sol "github.com/gagliardetto/solana-go"
	solrpc "github.com/gagliardetto/solana-go/rpc"
)

// splMintAccountSize is the packed size of an SPL token mint account
const splMintAccountSize = 82

// AuthorityInfo reports whether the mint and freeze authorities of a token
// have been revoked. Revoked authorities mean the supply is fixed and
// accounts cannot be frozen.
type AuthorityInfo struct {
	MintAuthorityRevoked   bool
	FreezeAuthorityRevoked bool
}

// AuthorityChecker reads token mint account state over RPC
type AuthorityChecker struct {
	client *solrpc.Client
}

// NewAuthorityChecker creates an authority checker against the given endpoint
func NewAuthorityChecker(endpoint string) *AuthorityChecker {
	return &AuthorityChecker{
		client: solrpc.New(endpoint),
	}
}

// MintAuthorities fetches and parses the mint account for a token. The SPL
// mint layout stores each authority as a 4-byte option tag followed by a
// 32-byte pubkey; a zero tag means the authority has been revoked.
func (a *AuthorityChecker) MintAuthorities(ctx context.Context, mint string) (AuthorityInfo, error) {
	pubkey, err := sol.PublicKeyFromBase58(mint)
	if err != nil {
		return AuthorityInfo{}, fmt.Errorf("invalid mint address %s: %w", mint, err)
	}

	account, err := a.client.GetAccountInfo(ctx, pubkey)
	if err != nil {
		return AuthorityInfo{}, fmt.Errorf("failed to fetch mint account %s: %w", mint, err)
	}
	if account == nil || account.Value == nil {
		return AuthorityInfo{}, fmt.Errorf("mint account %s not found", mint)
	}

	data := account.Value.Data.GetBinary()
	return parseMintAccount(data)
}

func parseMintAccount(data []byte) (AuthorityInfo, error) {
	if len(data) < splMintAccountSize {
		return AuthorityInfo{}, fmt.Errorf("mint account data too short: %d bytes", len(data))
	}

	// Layout: [0:4] mint authority option, [4:36] mint authority,
	// [36:44] supply, [44] decimals, [45] initialized,
	// [46:50] freeze authority option, [50:82] freeze authority.
	mintAuthorityOption := binary.LittleEndian.Uint32(data[0:4])
	freezeAuthorityOption := binary.LittleEndian.Uint32(data[46:50])

	return AuthorityInfo{
		MintAuthorityRevoked:   mintAuthorityOption == 0,
		FreezeAuthorityRevoked: freezeAuthorityOption == 0,
	}, nil
}
