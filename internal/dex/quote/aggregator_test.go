package quote

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/dex-aggregator/internal/dex/core"
	"github.com/you/dex-aggregator/internal/types"
)

var (
	admin    = common.HexToAddress("0xA11CE00000000000000000000000000000000001")
	tokenIn  = common.HexToAddress("0x0000000000000000000000000000000000000011")
	tokenOut = common.HexToAddress("0x0000000000000000000000000000000000000022")
)

type stubQuoter struct {
	fn func(ctx context.Context, amountIn *big.Int) (*big.Int, error)
}

func (s stubQuoter) Quote(ctx context.Context, _, _ common.Address, amountIn *big.Int) (*big.Int, error) {
	return s.fn(ctx, amountIn)
}

func fixedQuote(out int64) core.Quoter {
	return stubQuoter{fn: func(context.Context, *big.Int) (*big.Int, error) {
		return big.NewInt(out), nil
	}}
}

func failingQuote(msg string) core.Quoter {
	return stubQuoter{fn: func(context.Context, *big.Int) (*big.Int, error) {
		return nil, errors.New(msg)
	}}
}

func venueAddr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

func newTestRegistry(t *testing.T, quoters ...core.Quoter) *core.Registry {
	t.Helper()
	reg := core.NewRegistry(admin, zap.NewNop())
	for i, q := range quoters {
		v := &core.Venue{
			ID:      venueAddr(byte(i + 1)),
			Name:    "venue",
			FeeBps:  30,
			Variant: core.VariantConstantProduct,
			Quoter:  q,
		}
		require.NoError(t, reg.Register(admin, v))
	}
	return reg
}

func TestGetAllQuotesIsolatesFailures(t *testing.T) {
	reg := newTestRegistry(t, fixedQuote(1800), failingQuote("revert"), fixedQuote(1700))
	agg := NewAggregator(reg, time.Second, zap.NewNop())

	quotes, err := agg.GetAllQuotes(context.Background(), tokenIn, tokenOut, big.NewInt(1000))
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, venueAddr(1), quotes[0].VenueID)
	assert.Equal(t, int64(1800), quotes[0].AmountOut.Int64())
	assert.Equal(t, venueAddr(3), quotes[1].VenueID)
}

func TestGetAllQuotesInvalidAmount(t *testing.T) {
	agg := NewAggregator(newTestRegistry(t, fixedQuote(1)), time.Second, zap.NewNop())

	_, err := agg.GetAllQuotes(context.Background(), tokenIn, tokenOut, big.NewInt(0))
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = agg.GetAllQuotes(context.Background(), tokenIn, tokenOut, nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestGetAllQuotesIdempotent(t *testing.T) {
	reg := newTestRegistry(t, fixedQuote(1800), fixedQuote(1850))
	agg := NewAggregator(reg, time.Second, zap.NewNop())

	first, err := agg.GetAllQuotes(context.Background(), tokenIn, tokenOut, big.NewInt(1000))
	require.NoError(t, err)
	second, err := agg.GetAllQuotes(context.Background(), tokenIn, tokenOut, big.NewInt(1000))
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].VenueID, second[i].VenueID)
		assert.Zero(t, first[i].AmountOut.Cmp(second[i].AmountOut))
	}
}

func TestGetAllQuotesTimeoutClassifiedAsFailure(t *testing.T) {
	slow := stubQuoter{fn: func(ctx context.Context, _ *big.Int) (*big.Int, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	reg := newTestRegistry(t, slow, fixedQuote(1800))
	agg := NewAggregator(reg, 20*time.Millisecond, zap.NewNop())

	quotes, err := agg.GetAllQuotes(context.Background(), tokenIn, tokenOut, big.NewInt(1000))
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, int64(1800), quotes[0].AmountOut.Int64())
}

func TestFindBestRoutePicksMaxOutput(t *testing.T) {
	reg := newTestRegistry(t, fixedQuote(1800), fixedQuote(1850))
	agg := NewAggregator(reg, time.Second, zap.NewNop())

	best, ok, err := agg.FindBestRoute(context.Background(), tokenIn, tokenOut, big.NewInt(1000))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, venueAddr(2), best.VenueID)
	assert.Equal(t, int64(1850), best.AmountOut.Int64())
}

func TestFindBestRouteTieBreakFirstRegistered(t *testing.T) {
	reg := newTestRegistry(t, fixedQuote(1850), fixedQuote(1850))
	agg := NewAggregator(reg, time.Second, zap.NewNop())

	best, ok, err := agg.FindBestRoute(context.Background(), tokenIn, tokenOut, big.NewInt(1000))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, venueAddr(1), best.VenueID)
}

func TestFindBestRouteZeroQuoteNeverBeatsPositive(t *testing.T) {
	// Concentrated-liquidity placeholder quotes come back as zero.
	reg := newTestRegistry(t, fixedQuote(0), fixedQuote(5))
	agg := NewAggregator(reg, time.Second, zap.NewNop())

	best, ok, err := agg.FindBestRoute(context.Background(), tokenIn, tokenOut, big.NewInt(1000))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, venueAddr(2), best.VenueID)
}

func TestFindBestRouteZeroQuoteOnlyCandidate(t *testing.T) {
	reg := newTestRegistry(t, fixedQuote(0))
	agg := NewAggregator(reg, time.Second, zap.NewNop())

	best, ok, err := agg.FindBestRoute(context.Background(), tokenIn, tokenOut, big.NewInt(1000))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, venueAddr(1), best.VenueID)
	assert.Zero(t, best.AmountOut.Sign())
}

func TestFindBestRouteNoRouteSentinel(t *testing.T) {
	reg := newTestRegistry(t, failingQuote("down"), failingQuote("down"))
	agg := NewAggregator(reg, time.Second, zap.NewNop())

	best, ok, err := agg.FindBestRoute(context.Background(), tokenIn, tokenOut, big.NewInt(1000))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, common.Address{}, best.VenueID)
	assert.Zero(t, best.AmountOut.Sign())
}

func TestGetQuoteFromDex(t *testing.T) {
	reg := newTestRegistry(t, fixedQuote(1800))
	agg := NewAggregator(reg, time.Second, zap.NewNop())

	q, err := agg.GetQuoteFromDex(context.Background(), venueAddr(1), tokenIn, tokenOut, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, int64(1800), q.AmountOut.Int64())

	_, err = agg.GetQuoteFromDex(context.Background(), venueAddr(9), tokenIn, tokenOut, big.NewInt(1000))
	assert.ErrorIs(t, err, types.ErrNotFound)

	require.NoError(t, reg.SetActive(admin, venueAddr(1), false))
	_, err = agg.GetQuoteFromDex(context.Background(), venueAddr(1), tokenIn, tokenOut, big.NewInt(1000))
	assert.ErrorIs(t, err, types.ErrUnsupportedSource)
}
