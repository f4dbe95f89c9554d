package core

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/you/dex-aggregator/internal/types"
)

// Registry holds every venue ever registered, in insertion order.
// Venues are soft-deactivated, never removed, so enumeration stays
// deterministic for the lifetime of the process.
type Registry struct {
	mu    sync.RWMutex
	admin common.Address
	byID  map[common.Address]*Venue
	order []common.Address
	log   *zap.Logger
}

func NewRegistry(admin common.Address, log *zap.Logger) *Registry {
	return &Registry{
		admin: admin,
		byID:  make(map[common.Address]*Venue, 8),
		log:   log,
	}
}

// Register inserts or overwrites a venue. A new venue joins the end of
// the enumeration list; re-registration keeps its original position.
func (r *Registry) Register(caller common.Address, v *Venue) error {
	if caller != r.admin {
		return types.ErrUnauthorized
	}
	if v == nil || v.ID == (common.Address{}) {
		return fmt.Errorf("%w: empty venue id", types.ErrInvalidInput)
	}
	if v.FeeBps > MaxFeeBps {
		return fmt.Errorf("%w: fee %d bps above cap", types.ErrInvalidInput, v.FeeBps)
	}
	if v.Variant != VariantConstantProduct && v.Variant != VariantConcentrated {
		return fmt.Errorf("%w: unrecognized protocol variant", types.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *v
	cp.Active = true
	if _, seen := r.byID[cp.ID]; !seen {
		r.order = append(r.order, cp.ID)
	}
	r.byID[cp.ID] = &cp
	r.log.Info("venue registered",
		zap.String("id", cp.ID.Hex()),
		zap.String("name", cp.Name),
		zap.Uint32("fee_bps", cp.FeeBps),
		zap.String("variant", cp.Variant.String()),
	)
	return nil
}

// SetActive toggles a venue without touching the enumeration list.
func (r *Registry) SetActive(caller, id common.Address, active bool) error {
	if caller != r.admin {
		return types.ErrUnauthorized
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: venue %s", types.ErrNotFound, id.Hex())
	}
	v.Active = active
	r.log.Info("venue active flag set", zap.String("id", id.Hex()), zap.Bool("active", active))
	return nil
}

// Get returns a copy of the venue, or nil if never registered.
func (r *Registry) Get(id common.Address) *Venue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.byID[id]
	if !ok {
		return nil
	}
	cp := *v
	return &cp
}

// ListActive returns active venues in registration order.
func (r *Registry) ListActive() []*Venue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Venue, 0, len(r.order))
	for _, id := range r.order {
		if v := r.byID[id]; v.Active {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out
}

// Len reports how many venues were ever registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
