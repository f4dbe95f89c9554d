package analytics

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/dex-aggregator/internal/types"
)

func snapAt(volume int64) types.VolumeSnapshot {
	return types.VolumeSnapshot{
		Ts:           time.Unix(volume, 0),
		VolumeUSD:    big.NewInt(volume),
		LiquidityUSD: big.NewInt(volume * 10),
		PriceUSD:     new(big.Int),
	}
}

func TestHistoryBoundedAtCapacity(t *testing.T) {
	h := NewHistory()
	pool := common.HexToAddress("0x01")

	for i := int64(0); i < 400; i++ {
		h.Append(pool, snapAt(i))
	}
	assert.Equal(t, MaxSnapshots, h.Len(pool))

	// The window slid: only the most recent 168 remain.
	snaps, err := h.Recent(pool, MaxSnapshots)
	require.NoError(t, err)
	require.Len(t, snaps, MaxSnapshots)
	assert.Equal(t, int64(400-MaxSnapshots), snaps[0].VolumeUSD.Int64())
	assert.Equal(t, int64(399), snaps[len(snaps)-1].VolumeUSD.Int64())
}

func TestHistoryRecentChronological(t *testing.T) {
	h := NewHistory()
	pool := common.HexToAddress("0x02")
	for i := int64(0); i < 11; i++ {
		h.Append(pool, snapAt(i))
	}

	snaps, err := h.Recent(pool, 20)
	require.NoError(t, err)
	assert.Len(t, snaps, 11)

	snaps, err = h.Recent(pool, 3)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, int64(8), snaps[0].VolumeUSD.Int64())
	assert.Equal(t, int64(10), snaps[2].VolumeUSD.Int64())
	assert.True(t, snaps[0].Ts.Before(snaps[2].Ts))
}

func TestHistoryRecentValidation(t *testing.T) {
	h := NewHistory()
	pool := common.HexToAddress("0x03")

	_, err := h.Recent(pool, 0)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = h.Recent(pool, MaxSnapshots+1)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	snaps, err := h.Recent(pool, 10)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}
