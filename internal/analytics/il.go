package analytics

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/you/dex-aggregator/internal/types"
)

// wad is the common 1e18 fixed-point scale for prices and amounts.
var wad = uint256.NewInt(1_000_000_000_000_000_000)

// CalculateIL returns the impermanent loss of a constant-product LP
// position in basis points, comparing the hold value of the two
// amounts at current prices with the rebalanced LP value. All
// arithmetic is unsigned integer at 1e18 scale; intermediate
// multiplications are overflow-checked. The result is 0 whenever the
// LP value is at least the hold value (in particular when prices did
// not move) and never exceeds 10000.
func CalculateIL(initialPrice0, initialPrice1, currentPrice0, currentPrice1, amount0, amount1 *big.Int) (uint64, error) {
	p00, err := toWad(initialPrice0, true)
	if err != nil {
		return 0, err
	}
	p10, err := toWad(initialPrice1, true)
	if err != nil {
		return 0, err
	}
	p01, err := toWad(currentPrice0, true)
	if err != nil {
		return 0, err
	}
	p11, err := toWad(currentPrice1, true)
	if err != nil {
		return 0, err
	}
	a0, err := toWad(amount0, false)
	if err != nil {
		return 0, err
	}
	a1, err := toWad(amount1, false)
	if err != nil {
		return 0, err
	}

	// Price-ratio adjustment rho = (p01/p11) / (p00/p10), wad-scaled.
	rhoNum, overflow := new(uint256.Int).MulOverflow(p01, p10)
	if overflow {
		return 0, types.ErrArithmeticOverflow
	}
	rhoDen, overflow := new(uint256.Int).MulOverflow(p11, p00)
	if overflow {
		return 0, types.ErrArithmeticOverflow
	}
	rho, overflow := new(uint256.Int).MulOverflow(rhoNum, wad)
	if overflow {
		return 0, types.ErrArithmeticOverflow
	}
	rho.Div(rho, rhoDen)
	if rho.IsZero() {
		return 0, fmt.Errorf("%w: price ratio out of range", types.ErrArithmeticOverflow)
	}

	// sqrt(rho) at wad scale: widen to 1e36 first so the root keeps
	// 1e18 precision.
	rhoWide, overflow := new(uint256.Int).MulOverflow(rho, wad)
	if overflow {
		return 0, types.ErrArithmeticOverflow
	}
	sqrtRho := isqrt(rhoWide)

	// The pool rebalances: amount0 shrinks by sqrt(rho), amount1
	// grows by it.
	adj0, overflow := new(uint256.Int).MulOverflow(a0, wad)
	if overflow {
		return 0, types.ErrArithmeticOverflow
	}
	adj0.Div(adj0, sqrtRho)
	adj1, overflow := new(uint256.Int).MulOverflow(a1, sqrtRho)
	if overflow {
		return 0, types.ErrArithmeticOverflow
	}
	adj1.Div(adj1, wad)

	holdValue, err := pairValue(a0, a1, p01, p11)
	if err != nil {
		return 0, err
	}
	lpValue, err := pairValue(adj0, adj1, p01, p11)
	if err != nil {
		return 0, err
	}

	if holdValue.IsZero() || !lpValue.Lt(holdValue) {
		return 0, nil
	}
	diff := new(uint256.Int).Sub(holdValue, lpValue)
	bps, overflow := diff.MulOverflow(diff, uint256.NewInt(10_000))
	if overflow {
		return 0, types.ErrArithmeticOverflow
	}
	bps.Div(bps, holdValue)
	return bps.Uint64(), nil
}

// pairValue is (x*px + y*py) / wad.
func pairValue(x, y, px, py *uint256.Int) (*uint256.Int, error) {
	vx, overflow := new(uint256.Int).MulOverflow(x, px)
	if overflow {
		return nil, types.ErrArithmeticOverflow
	}
	vy, overflow := new(uint256.Int).MulOverflow(y, py)
	if overflow {
		return nil, types.ErrArithmeticOverflow
	}
	sum, carry := new(uint256.Int).AddOverflow(vx, vy)
	if carry {
		return nil, types.ErrArithmeticOverflow
	}
	return sum.Div(sum, wad), nil
}

// isqrt is the Babylonian integer square root: floor(sqrt(x)).
// Deterministic, converging, no floating point.
func isqrt(x *uint256.Int) *uint256.Int {
	if x.IsZero() {
		return new(uint256.Int)
	}
	z := new(uint256.Int).Set(x)
	y := new(uint256.Int).Rsh(x, 1)
	y.AddUint64(y, 1)
	t := new(uint256.Int)
	for y.Lt(z) {
		z.Set(y)
		t.Div(x, y)
		t.Add(t, y)
		y.Rsh(t, 1)
	}
	return z
}

func toWad(x *big.Int, mustBePositive bool) (*uint256.Int, error) {
	if x == nil || x.Sign() < 0 || (mustBePositive && x.Sign() == 0) {
		return nil, fmt.Errorf("%w: prices must be positive and amounts non-negative", types.ErrInvalidInput)
	}
	u, overflow := uint256.FromBig(x)
	if overflow {
		return nil, types.ErrArithmeticOverflow
	}
	return u, nil
}
