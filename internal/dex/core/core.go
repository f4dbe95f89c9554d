package core

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Variant identifies a venue's protocol family. The two families have
// different quoting and execution interfaces.
type Variant uint8

const (
	VariantUnknown Variant = iota
	VariantConstantProduct
	VariantConcentrated
)

func (v Variant) String() string {
	switch v {
	case VariantConstantProduct:
		return "constant_product"
	case VariantConcentrated:
		return "concentrated_liquidity"
	default:
		return "unknown"
	}
}

// ParseVariant maps a config string to a Variant.
func ParseVariant(s string) Variant {
	switch s {
	case "constant_product", "v2":
		return VariantConstantProduct
	case "concentrated_liquidity", "v3":
		return VariantConcentrated
	default:
		return VariantUnknown
	}
}

// Static per-swap gas estimates keyed by protocol variant. These are
// not measured; the aggregator only needs comparable figures.
const (
	GasConstantProduct uint64 = 150_000
	GasConcentrated    uint64 = 185_000
)

// GasEstimate returns the static gas figure for a variant.
func GasEstimate(v Variant) uint64 {
	if v == VariantConcentrated {
		return GasConcentrated
	}
	return GasConstantProduct
}

// MaxFeeBps caps venue and platform fees at 10%.
const MaxFeeBps = 1000

// Quoter is the uniform spot-quote capability a venue exposes.
// Concentrated-liquidity venues may return (0, nil) when the minimal
// interface cannot spot-quote; callers treat that as a placeholder,
// not a failure.
type Quoter interface {
	Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error)
}

// Swapper is the uniform execution capability a venue exposes. The
// returned amount is advisory; the executor measures its own balance
// delta instead of trusting it.
type Swapper interface {
	Swap(ctx context.Context, tokenIn, tokenOut common.Address, amountIn, minOut *big.Int, recipient common.Address, deadline time.Time, feeTier uint32) (*big.Int, error)
}

// Venue is registry metadata plus the two capabilities.
type Venue struct {
	ID      common.Address
	Name    string
	FeeBps  uint32
	Variant Variant
	Active  bool

	Quoter  Quoter
	Swapper Swapper
}
