package analytics

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/you/dex-aggregator/internal/types"
)

// MaxSnapshots bounds per-pool history to one week of hourly points.
const MaxSnapshots = 168

// History keeps a sliding window of the most recent snapshots per
// pool. Appends past capacity evict the oldest entry.
type History struct {
	mu     sync.RWMutex
	max    int
	byPool map[common.Address][]types.VolumeSnapshot
}

func NewHistory() *History {
	return &History{
		max:    MaxSnapshots,
		byPool: make(map[common.Address][]types.VolumeSnapshot, 16),
	}
}

func (h *History) Append(poolID common.Address, snap types.VolumeSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := append(h.byPool[poolID], snap)
	if len(s) > h.max {
		copy(s, s[1:])
		s = s[:h.max]
	}
	h.byPool[poolID] = s
}

// Recent returns the most recent min(hours, stored) snapshots in
// chronological order.
func (h *History) Recent(poolID common.Address, hours int) ([]types.VolumeSnapshot, error) {
	if hours <= 0 || hours > h.max {
		return nil, fmt.Errorf("%w: hours must be in 1..%d", types.ErrInvalidInput, h.max)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := h.byPool[poolID]
	if hours > len(s) {
		hours = len(s)
	}
	out := make([]types.VolumeSnapshot, hours)
	copy(out, s[len(s)-hours:])
	return out, nil
}

func (h *History) Len(poolID common.Address) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byPool[poolID])
}
