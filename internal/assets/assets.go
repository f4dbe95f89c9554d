// Package assets defines the asset-transfer capability the executor
// consumes. Implementations act on behalf of one bound account (the
// sender of Transfer and Approve).
package assets

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type Asset interface {
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	// Transfer moves funds from the bound account.
	Transfer(ctx context.Context, to common.Address, amount *big.Int) error
	// TransferFrom spends an allowance granted to the bound account.
	TransferFrom(ctx context.Context, from, to common.Address, amount *big.Int) error
	Approve(ctx context.Context, spender common.Address, amount *big.Int) error
	// Symbol may be unsupported by a token; callers fall back to a
	// placeholder on error.
	Symbol(ctx context.Context) (string, error)
}

// Provider resolves the capability for a token.
type Provider interface {
	Asset(token common.Address) Asset
}
