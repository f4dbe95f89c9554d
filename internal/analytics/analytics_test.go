package analytics

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/dex-aggregator/internal/types"
)

var (
	owner    = common.HexToAddress("0xA11CE00000000000000000000000000000000001")
	updater  = common.HexToAddress("0x0000000000000000000000000000000000000777")
	stranger = common.HexToAddress("0xBAD0000000000000000000000000000000000002")
	venueID  = common.HexToAddress("0x0000000000000000000000000000000000000aaa")
	tokenA   = common.HexToAddress("0x0000000000000000000000000000000000000011")
	tokenB   = common.HexToAddress("0x0000000000000000000000000000000000000022")
	tokenC   = common.HexToAddress("0x0000000000000000000000000000000000000033")
)

type stubSymbols struct {
	symbols map[common.Address]string
}

func (s stubSymbols) Symbol(_ context.Context, token common.Address) (string, error) {
	if sym, ok := s.symbols[token]; ok {
		return sym, nil
	}
	return "", errors.New("symbol unavailable")
}

func poolAddr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

func newEngine() *Engine {
	return NewEngine(owner, stubSymbols{symbols: map[common.Address]string{tokenA: "WETH"}}, nil, zap.NewNop())
}

func update(poolID common.Address, a, b common.Address, liquidity, volume int64) PoolUpdate {
	return PoolUpdate{
		PoolID:       poolID,
		TokenA:       a,
		TokenB:       b,
		VenueID:      venueID,
		Name:         "pool",
		LiquidityUSD: big.NewInt(liquidity),
		Volume24hUSD: big.NewInt(volume),
		Fees24hUSD:   big.NewInt(1),
		AprBps:       1200,
	}
}

func TestUpdatePoolDataAuth(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	err := e.UpdatePoolData(ctx, stranger, update(poolAddr(1), tokenA, tokenB, 100, 10))
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	require.NoError(t, e.SetAuthorizedUpdater(owner, updater, true))
	require.NoError(t, e.UpdatePoolData(ctx, updater, update(poolAddr(1), tokenA, tokenB, 100, 10)))

	require.NoError(t, e.SetAuthorizedUpdater(owner, updater, false))
	err = e.UpdatePoolData(ctx, updater, update(poolAddr(1), tokenA, tokenB, 100, 10))
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	err = e.SetAuthorizedUpdater(stranger, updater, true)
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	err = e.SetAuthorizedUpdater(owner, common.Address{}, true)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestUpdatePoolDataValidation(t *testing.T) {
	e := newEngine()
	err := e.UpdatePoolData(context.Background(), owner, update(common.Address{}, tokenA, tokenB, 100, 10))
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestUpdatePoolDataReplacesAndRecomputes(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	require.NoError(t, e.UpdatePoolData(ctx, owner, update(poolAddr(1), tokenA, tokenB, 100, 10)))
	require.NoError(t, e.UpdatePoolData(ctx, owner, update(poolAddr(2), tokenA, tokenC, 300, 30)))

	ta, err := e.GetTokenAnalytics(tokenA)
	require.NoError(t, err)
	assert.Equal(t, "WETH", ta.Token.Symbol)
	assert.Equal(t, int64(400), ta.Token.TotalLiquidityUSD.Int64())
	assert.Equal(t, int64(40), ta.Token.Volume24hUSD.Int64())
	assert.Equal(t, 2, ta.Token.PoolCount)

	// Full replace, not merge: aggregates follow the latest values.
	require.NoError(t, e.UpdatePoolData(ctx, owner, update(poolAddr(1), tokenA, tokenB, 50, 5)))
	ta, err = e.GetTokenAnalytics(tokenA)
	require.NoError(t, err)
	assert.Equal(t, int64(350), ta.Token.TotalLiquidityUSD.Int64())
	assert.Equal(t, int64(35), ta.Token.Volume24hUSD.Int64())

	tb, err := e.GetTokenAnalytics(tokenB)
	require.NoError(t, err)
	assert.Equal(t, "UNKNOWN", tb.Token.Symbol)
	assert.Equal(t, 1, tb.Token.PoolCount)
}

func TestUpdateTokenPrice(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	err := e.UpdateTokenPrice(ctx, stranger, tokenA, big.NewInt(1))
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	err = e.UpdateTokenPrice(ctx, owner, common.Address{}, big.NewInt(1))
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	err = e.UpdateTokenPrice(ctx, owner, tokenA, big.NewInt(0))
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	err = e.UpdateTokenPrice(ctx, owner, tokenA, nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	require.NoError(t, e.UpdateTokenPrice(ctx, owner, tokenA, big.NewInt(2000)))
	ta, err := e.GetTokenAnalytics(tokenA)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), ta.Token.PriceUSD.Int64())
	assert.Equal(t, "WETH", ta.Token.Symbol)
}

func TestGetPoolsForPairUnordered(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	require.NoError(t, e.UpdatePoolData(ctx, owner, update(poolAddr(1), tokenA, tokenB, 100, 10)))
	require.NoError(t, e.UpdatePoolData(ctx, owner, update(poolAddr(2), tokenB, tokenA, 200, 20)))
	require.NoError(t, e.UpdatePoolData(ctx, owner, update(poolAddr(3), tokenA, tokenC, 300, 30)))

	pools := e.GetPoolsForPair(tokenB, tokenA)
	require.Len(t, pools, 2)
	assert.Equal(t, poolAddr(1), pools[0].PoolID)
	assert.Equal(t, poolAddr(2), pools[1].PoolID)

	assert.Empty(t, e.GetPoolsForPair(tokenB, tokenC))
}

func TestGetTopPoolsByLiquidity(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	require.NoError(t, e.UpdatePoolData(ctx, owner, update(poolAddr(1), tokenA, tokenB, 100, 10)))
	require.NoError(t, e.UpdatePoolData(ctx, owner, update(poolAddr(2), tokenA, tokenC, 300, 30)))
	require.NoError(t, e.UpdatePoolData(ctx, owner, update(poolAddr(3), tokenB, tokenC, 300, 30)))
	require.NoError(t, e.UpdatePoolData(ctx, owner, update(poolAddr(4), tokenA, tokenB, 200, 20)))

	_, err := e.GetTopPoolsByLiquidity(0)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	_, err = e.GetTopPoolsByLiquidity(4)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	top, err := e.GetTopPoolsByLiquidity(3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	// Descending, ties broken by enumeration order.
	assert.Equal(t, poolAddr(2), top[0].PoolID)
	assert.Equal(t, poolAddr(3), top[1].PoolID)
	assert.Equal(t, poolAddr(4), top[2].PoolID)

	// Deactivated pools drop out of the ranking.
	require.NoError(t, e.DeactivatePool(owner, poolAddr(2)))
	top, err = e.GetTopPoolsByLiquidity(2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, poolAddr(3), top[0].PoolID)
	assert.Equal(t, poolAddr(4), top[1].PoolID)
}

func TestGetTokenAnalyticsCapsPools(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	for i := byte(1); i <= 7; i++ {
		require.NoError(t, e.UpdatePoolData(ctx, owner, update(poolAddr(i), tokenA, tokenB, int64(i)*100, 10)))
	}

	ta, err := e.GetTokenAnalytics(tokenA)
	require.NoError(t, err)
	require.Len(t, ta.Pools, 5)
	// Enumeration order, not sorted by size.
	for i := byte(1); i <= 5; i++ {
		assert.Equal(t, poolAddr(i), ta.Pools[i-1].PoolID)
	}

	_, err = e.GetTokenAnalytics(common.HexToAddress("0x9999"))
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDeactivatePool(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	require.NoError(t, e.UpdatePoolData(ctx, owner, update(poolAddr(1), tokenA, tokenB, 100, 10)))
	require.NoError(t, e.UpdatePoolData(ctx, owner, update(poolAddr(2), tokenA, tokenC, 300, 30)))

	err := e.DeactivatePool(stranger, poolAddr(1))
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	err = e.DeactivatePool(owner, poolAddr(9))
	assert.ErrorIs(t, err, types.ErrNotFound)

	require.NoError(t, e.DeactivatePool(owner, poolAddr(1)))
	ta, err := e.GetTokenAnalytics(tokenA)
	require.NoError(t, err)
	assert.Equal(t, int64(300), ta.Token.TotalLiquidityUSD.Int64())
	assert.Equal(t, 1, ta.Token.PoolCount)

	totals := e.Totals()
	assert.Equal(t, 1, totals.PoolCount)
	assert.Equal(t, int64(300), totals.TotalLiquidityUSD.Int64())
	assert.Equal(t, int64(30), totals.TotalVolume24hUSD.Int64())
}

func TestVolumeHistoryThroughEngine(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	_, err := e.GetVolumeHistory(poolAddr(1), 5)
	assert.ErrorIs(t, err, types.ErrNotFound)

	for i := 0; i < 11; i++ {
		require.NoError(t, e.UpdatePoolData(ctx, owner, update(poolAddr(1), tokenA, tokenB, 100, int64(i))))
	}

	snaps, err := e.GetVolumeHistory(poolAddr(1), 20)
	require.NoError(t, err)
	assert.Len(t, snaps, 11)

	snaps, err = e.GetVolumeHistory(poolAddr(1), 3)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	// Three most recent, oldest first.
	assert.Equal(t, int64(8), snaps[0].VolumeUSD.Int64())
	assert.Equal(t, int64(9), snaps[1].VolumeUSD.Int64())
	assert.Equal(t, int64(10), snaps[2].VolumeUSD.Int64())
}

func TestSnapshotCarriesTokenPrice(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	require.NoError(t, e.UpdatePoolData(ctx, owner, update(poolAddr(1), tokenA, tokenB, 100, 10)))
	require.NoError(t, e.UpdateTokenPrice(ctx, owner, tokenA, big.NewInt(2000)))
	require.NoError(t, e.UpdatePoolData(ctx, owner, update(poolAddr(1), tokenA, tokenB, 100, 10)))

	snaps, err := e.GetVolumeHistory(poolAddr(1), 2)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Zero(t, snaps[0].PriceUSD.Sign())
	assert.Equal(t, int64(2000), snaps[1].PriceUSD.Int64())
}
