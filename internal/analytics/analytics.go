// Package analytics maintains the pool registry, derived per-token
// aggregates and bounded volume history for the platform.
package analytics

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	imetrics "github.com/you/dex-aggregator/internal/metrics"
	"github.com/you/dex-aggregator/internal/types"
)

// placeholderSymbol is used when the metadata lookup is unavailable or
// the token does not expose one.
const placeholderSymbol = "UNKNOWN"

// SymbolLookup resolves a token symbol. May be nil.
type SymbolLookup interface {
	Symbol(ctx context.Context, token common.Address) (string, error)
}

// PoolReporter receives accepted pool updates, e.g. for the redis
// feed. Publication is best-effort.
type PoolReporter interface {
	PublishPoolUpdate(ctx context.Context, rec types.PoolRecord) error
}

// PoolUpdate is the payload of one ingested pool observation. It fully
// replaces the stored record.
type PoolUpdate struct {
	PoolID       common.Address
	TokenA       common.Address
	TokenB       common.Address
	VenueID      common.Address
	Name         string
	LiquidityUSD *big.Int
	Volume24hUSD *big.Int
	Fees24hUSD   *big.Int
	AprBps       uint32
}

// TokenAnalytics bundles a token record with a sample of its pools.
type TokenAnalytics struct {
	Token types.TokenRecord
	Pools []types.PoolRecord
}

// Engine owns all analytics state. Updates are applied atomically with
// the token-aggregate recomputation they trigger; aggregates are
// always recomputed by a full scan over active pools, never patched.
type Engine struct {
	mu       sync.RWMutex
	owner    common.Address
	updaters map[common.Address]bool
	pools    map[common.Address]*types.PoolRecord
	order    []common.Address
	tokens   map[common.Address]*types.TokenRecord
	hist     *History
	symbols  SymbolLookup
	rep      PoolReporter
	log      *zap.Logger
	now      func() time.Time
}

func NewEngine(owner common.Address, symbols SymbolLookup, rep PoolReporter, log *zap.Logger) *Engine {
	return &Engine{
		owner:    owner,
		updaters: make(map[common.Address]bool, 4),
		pools:    make(map[common.Address]*types.PoolRecord, 32),
		tokens:   make(map[common.Address]*types.TokenRecord, 32),
		hist:     NewHistory(),
		symbols:  symbols,
		rep:      rep,
		log:      log,
		now:      time.Now,
	}
}

func (e *Engine) authorized(caller common.Address) bool {
	return caller == e.owner || e.updaters[caller]
}

// SetAuthorizedUpdater grants or revokes pool/price update rights.
// The owner is implicitly authorized.
func (e *Engine) SetAuthorizedUpdater(caller, principal common.Address, allowed bool) error {
	if caller != e.owner {
		return types.ErrUnauthorized
	}
	if principal == (common.Address{}) {
		return fmt.Errorf("%w: empty principal", types.ErrInvalidInput)
	}
	e.mu.Lock()
	e.updaters[principal] = allowed
	e.mu.Unlock()
	e.log.Info("updater authorization set",
		zap.String("principal", principal.Hex()),
		zap.Bool("allowed", allowed),
	)
	return nil
}

// UpdatePoolData fully replaces a pool record, recomputes aggregates
// for both constituent tokens and appends one history snapshot.
func (e *Engine) UpdatePoolData(ctx context.Context, caller common.Address, upd PoolUpdate) error {
	e.mu.Lock()
	if !e.authorized(caller) {
		e.mu.Unlock()
		return types.ErrUnauthorized
	}
	if upd.PoolID == (common.Address{}) {
		e.mu.Unlock()
		return fmt.Errorf("%w: empty pool id", types.ErrInvalidInput)
	}

	now := e.now()
	rec := &types.PoolRecord{
		PoolID:        upd.PoolID,
		TokenA:        upd.TokenA,
		TokenB:        upd.TokenB,
		VenueID:       upd.VenueID,
		Name:          upd.Name,
		LiquidityUSD:  bigCopy(upd.LiquidityUSD),
		Volume24hUSD:  bigCopy(upd.Volume24hUSD),
		Fees24hUSD:    bigCopy(upd.Fees24hUSD),
		AprBps:        upd.AprBps,
		LastUpdatedAt: now,
		Active:        true,
	}
	if _, seen := e.pools[upd.PoolID]; !seen {
		e.order = append(e.order, upd.PoolID)
	}
	e.pools[upd.PoolID] = rec

	e.ensureToken(ctx, upd.TokenA)
	e.ensureToken(ctx, upd.TokenB)
	e.recompute(upd.TokenA, now)
	e.recompute(upd.TokenB, now)

	price := new(big.Int)
	if t := e.tokens[upd.TokenA]; t != nil && t.PriceUSD != nil {
		price.Set(t.PriceUSD)
	}
	snap := types.VolumeSnapshot{
		Ts:           now,
		VolumeUSD:    bigCopy(upd.Volume24hUSD),
		LiquidityUSD: bigCopy(upd.LiquidityUSD),
		PriceUSD:     price,
	}
	out := *rec
	e.mu.Unlock()

	e.hist.Append(upd.PoolID, snap)
	imetrics.PoolUpdates.Inc()
	e.log.Debug("pool updated",
		zap.String("pool", upd.PoolID.Hex()),
		zap.String("liquidity_usd", snap.LiquidityUSD.String()),
		zap.String("volume_24h_usd", snap.VolumeUSD.String()),
	)
	if e.rep != nil {
		if err := e.rep.PublishPoolUpdate(ctx, out); err != nil {
			e.log.Warn("pool update publish failed", zap.Error(err))
		}
	}
	return nil
}

// UpdateTokenPrice sets the externally supplied authorized price for a
// token, initializing its record on first sight.
func (e *Engine) UpdateTokenPrice(ctx context.Context, caller, token common.Address, price *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.authorized(caller) {
		return types.ErrUnauthorized
	}
	if token == (common.Address{}) {
		return fmt.Errorf("%w: empty token", types.ErrInvalidInput)
	}
	if price == nil || price.Sign() <= 0 {
		return fmt.Errorf("%w: price must be positive", types.ErrInvalidInput)
	}
	rec := e.ensureToken(ctx, token)
	rec.PriceUSD = bigCopy(price)
	rec.LastUpdatedAt = e.now()
	return nil
}

// ensureToken must be called with the lock held.
func (e *Engine) ensureToken(ctx context.Context, token common.Address) *types.TokenRecord {
	if rec, ok := e.tokens[token]; ok {
		return rec
	}
	symbol := placeholderSymbol
	if e.symbols != nil {
		if s, err := e.symbols.Symbol(ctx, token); err == nil && s != "" {
			symbol = s
		}
	}
	rec := &types.TokenRecord{
		Token:             token,
		Symbol:            symbol,
		PriceUSD:          new(big.Int),
		TotalLiquidityUSD: new(big.Int),
		Volume24hUSD:      new(big.Int),
		LastUpdatedAt:     e.now(),
	}
	e.tokens[token] = rec
	return rec
}

// recompute rebuilds a token's aggregates from scratch by scanning all
// active pools. Must be called with the lock held.
func (e *Engine) recompute(token common.Address, now time.Time) {
	rec, ok := e.tokens[token]
	if !ok {
		return
	}
	liquidity := new(big.Int)
	volume := new(big.Int)
	count := 0
	for _, id := range e.order {
		p := e.pools[id]
		if !p.Active || (p.TokenA != token && p.TokenB != token) {
			continue
		}
		liquidity.Add(liquidity, p.LiquidityUSD)
		volume.Add(volume, p.Volume24hUSD)
		count++
	}
	rec.TotalLiquidityUSD = liquidity
	rec.Volume24hUSD = volume
	rec.PoolCount = count
	rec.LastUpdatedAt = now
}

// DeactivatePool soft-deletes a pool and refreshes both token
// aggregates.
func (e *Engine) DeactivatePool(caller, poolID common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return types.ErrUnauthorized
	}
	p, ok := e.pools[poolID]
	if !ok {
		return fmt.Errorf("%w: pool %s", types.ErrNotFound, poolID.Hex())
	}
	p.Active = false
	now := e.now()
	e.recompute(p.TokenA, now)
	e.recompute(p.TokenB, now)
	e.log.Info("pool deactivated", zap.String("pool", poolID.Hex()))
	return nil
}

// GetPoolsForPair returns active pools whose unordered token pair
// matches, in enumeration order.
func (e *Engine) GetPoolsForPair(tokenA, tokenB common.Address) []types.PoolRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []types.PoolRecord
	for _, id := range e.order {
		p := e.pools[id]
		if !p.Active {
			continue
		}
		if (p.TokenA == tokenA && p.TokenB == tokenB) || (p.TokenA == tokenB && p.TokenB == tokenA) {
			out = append(out, *p)
		}
	}
	return out
}

// GetTopPoolsByLiquidity returns the n active pools with the greatest
// liquidity, strictly descending, ties broken by enumeration order.
func (e *Engine) GetTopPoolsByLiquidity(n int) ([]types.PoolRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if n <= 0 || n >= len(e.order) {
		return nil, fmt.Errorf("%w: n must be in 1..%d", types.ErrInvalidInput, len(e.order)-1)
	}
	active := make([]types.PoolRecord, 0, len(e.order))
	for _, id := range e.order {
		if p := e.pools[id]; p.Active {
			active = append(active, *p)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].LiquidityUSD.Cmp(active[j].LiquidityUSD) > 0
	})
	if n < len(active) {
		active = active[:n]
	}
	return active, nil
}

// GetTokenAnalytics returns the token record plus up to 5 of its pools
// in enumeration order.
func (e *Engine) GetTokenAnalytics(token common.Address) (TokenAnalytics, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.tokens[token]
	if !ok {
		return TokenAnalytics{}, fmt.Errorf("%w: token %s", types.ErrNotFound, token.Hex())
	}
	out := TokenAnalytics{Token: *rec}
	for _, id := range e.order {
		if len(out.Pools) == 5 {
			break
		}
		p := e.pools[id]
		if p.Active && (p.TokenA == token || p.TokenB == token) {
			out.Pools = append(out.Pools, *p)
		}
	}
	return out, nil
}

// GetVolumeHistory returns the most recent min(hours, stored)
// snapshots for a known pool, oldest first.
func (e *Engine) GetVolumeHistory(poolID common.Address, hours int) ([]types.VolumeSnapshot, error) {
	e.mu.RLock()
	_, ok := e.pools[poolID]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: pool %s", types.ErrNotFound, poolID.Hex())
	}
	return e.hist.Recent(poolID, hours)
}

// Totals sums liquidity and 24h volume over active pools.
func (e *Engine) Totals() types.PlatformTotals {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t := types.PlatformTotals{
		TotalLiquidityUSD: new(big.Int),
		TotalVolume24hUSD: new(big.Int),
	}
	for _, id := range e.order {
		p := e.pools[id]
		if !p.Active {
			continue
		}
		t.PoolCount++
		t.TotalLiquidityUSD.Add(t.TotalLiquidityUSD, p.LiquidityUSD)
		t.TotalVolume24hUSD.Add(t.TotalVolume24hUSD, p.Volume24hUSD)
	}
	return t
}

func bigCopy(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}
