package types

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Stable error kinds. Callers discriminate with errors.Is; wrapped
// causes travel via %w.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrUnsupportedSource  = errors.New("unsupported source")
	ErrDeadlineExpired    = errors.New("deadline expired")
	ErrSlippageExceeded   = errors.New("slippage exceeded")
	ErrTransferFailed     = errors.New("transfer failed")
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
)

// SwapRequest is built per call and validated before any state moves.
type SwapRequest struct {
	TokenIn      common.Address
	TokenOut     common.Address
	AmountIn     *big.Int
	MinAmountOut *big.Int
	VenueID      common.Address
	Deadline     time.Time
	FeeTier      uint32 // concentrated-liquidity venues only
}

// RouteQuote is produced by the aggregator and consumed immediately by
// the selector; it is never persisted.
type RouteQuote struct {
	VenueID   common.Address
	Name      string
	AmountOut *big.Int
	GasUnits  uint64
	FeeBps    uint32
}

// SwapRecord is emitted after a settled swap.
type SwapRecord struct {
	Caller    common.Address
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
	FeeAmount *big.Int
	VenueID   common.Address
	Ts        time.Time
}

// PoolRecord holds the last observed state of one pool. Updates fully
// replace the record; pools are soft-deactivated, never deleted.
type PoolRecord struct {
	PoolID        common.Address
	TokenA        common.Address
	TokenB        common.Address
	VenueID       common.Address
	Name          string
	LiquidityUSD  *big.Int
	Volume24hUSD  *big.Int
	Fees24hUSD    *big.Int
	AprBps        uint32
	LastUpdatedAt time.Time
	Active        bool
}

// TokenRecord aggregates are recomputed from active pools on every
// triggering update, never patched incrementally.
type TokenRecord struct {
	Token             common.Address
	Symbol            string
	PriceUSD          *big.Int
	TotalLiquidityUSD *big.Int
	Volume24hUSD      *big.Int
	PoolCount         int
	LastUpdatedAt     time.Time
}

// VolumeSnapshot is one point in a pool's bounded history.
type VolumeSnapshot struct {
	Ts           time.Time
	VolumeUSD    *big.Int
	LiquidityUSD *big.Int
	PriceUSD     *big.Int
}

// PlatformTotals is a cheap aggregate view over active pools.
type PlatformTotals struct {
	PoolCount         int
	TotalLiquidityUSD *big.Int
	TotalVolume24hUSD *big.Int
}
