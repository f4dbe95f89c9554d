package swap

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/you/dex-aggregator/internal/assets"
	"github.com/you/dex-aggregator/internal/dex/core"
	imetrics "github.com/you/dex-aggregator/internal/metrics"
	"github.com/you/dex-aggregator/internal/types"
)

const bpsDenominator = 10_000

// Reporter receives settled swap records, e.g. to feed the analytics
// side. Publication is best-effort and never fails the swap.
type Reporter interface {
	PublishSwap(ctx context.Context, rec types.SwapRecord) error
}

// Executor orchestrates custody, platform-fee deduction, delegated
// venue execution and settlement as one all-or-nothing operation.
// Every effect applied after custody is journaled with a compensating
// action; any later stage failure unwinds the journal in reverse.
type Executor struct {
	self   common.Address // custody account
	admin  common.Address
	reg    *core.Registry
	assets assets.Provider
	rep    Reporter
	log    *zap.Logger
	now    func() time.Time

	mu           sync.Mutex
	feeBps       uint32
	feeRecipient common.Address
	locks        map[common.Address]*sync.Mutex
}

func NewExecutor(self, admin, feeRecipient common.Address, feeBps uint32, reg *core.Registry, provider assets.Provider, rep Reporter, log *zap.Logger) (*Executor, error) {
	if feeBps > core.MaxFeeBps {
		return nil, fmt.Errorf("%w: platform fee %d bps above cap", types.ErrInvalidInput, feeBps)
	}
	if feeRecipient == (common.Address{}) {
		return nil, fmt.Errorf("%w: empty fee recipient", types.ErrInvalidInput)
	}
	return &Executor{
		self:         self,
		admin:        admin,
		reg:          reg,
		assets:       provider,
		rep:          rep,
		log:          log,
		now:          time.Now,
		feeBps:       feeBps,
		feeRecipient: feeRecipient,
		locks:        make(map[common.Address]*sync.Mutex, 8),
	}, nil
}

// ExecuteSwap runs the staged swap and returns the measured output.
// The per-caller lock keeps the operation single-in-flight: no nested
// or concurrent invocation for the same caller can observe custody,
// fee or registry state mid-operation.
func (e *Executor) ExecuteSwap(ctx context.Context, caller common.Address, req types.SwapRequest) (*big.Int, error) {
	lock := e.callerLock(caller)
	lock.Lock()
	defer lock.Unlock()

	// Stage 1: validate. Rejections here leave no effects.
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amountIn must be positive", types.ErrInvalidInput)
	}
	if req.Deadline.Before(e.now()) {
		return nil, fmt.Errorf("%w: deadline %s", types.ErrDeadlineExpired, req.Deadline.UTC().Format(time.RFC3339))
	}
	venue := e.reg.Get(req.VenueID)
	if venue == nil || !venue.Active {
		return nil, fmt.Errorf("%w: venue %s", types.ErrUnsupportedSource, req.VenueID.Hex())
	}
	minOut := req.MinAmountOut
	if minOut == nil {
		minOut = new(big.Int)
	}

	e.mu.Lock()
	feeBps := e.feeBps
	feeRecipient := e.feeRecipient
	e.mu.Unlock()

	tokenIn := e.assets.Asset(req.TokenIn)
	tokenOut := e.assets.Asset(req.TokenOut)

	var journal []func(context.Context) error

	// Stage 2: custody. Pull amountIn from the caller.
	if err := tokenIn.TransferFrom(ctx, caller, e.self, req.AmountIn); err != nil {
		return nil, fmt.Errorf("%w: custody pull: %v", types.ErrTransferFailed, err)
	}
	journal = append(journal, func(rctx context.Context) error {
		return tokenIn.Transfer(rctx, caller, req.AmountIn)
	})

	// Stage 3: fee split, floored.
	feeAmount := new(big.Int).Mul(req.AmountIn, big.NewInt(int64(feeBps)))
	feeAmount.Div(feeAmount, big.NewInt(bpsDenominator))
	swapAmount := new(big.Int).Sub(req.AmountIn, feeAmount)
	if feeAmount.Sign() > 0 {
		if err := tokenIn.Transfer(ctx, feeRecipient, feeAmount); err != nil {
			e.rollback(journal)
			return nil, fmt.Errorf("%w: fee transfer: %v", types.ErrTransferFailed, err)
		}
		journal = append(journal, func(rctx context.Context) error {
			return tokenIn.TransferFrom(rctx, feeRecipient, e.self, feeAmount)
		})
	}

	// Stage 4: delegate execution. Output is measured by custody
	// balance delta, not the venue's return value, to tolerate
	// fee-on-transfer and otherwise nonstandard tokens.
	if err := tokenIn.Approve(ctx, venue.ID, swapAmount); err != nil {
		e.rollback(journal)
		return nil, fmt.Errorf("%w: venue allowance: %v", types.ErrTransferFailed, err)
	}
	before, err := tokenOut.BalanceOf(ctx, e.self)
	if err != nil {
		e.rollback(journal)
		return nil, fmt.Errorf("%w: balance read: %v", types.ErrTransferFailed, err)
	}
	if _, err := venue.Swapper.Swap(ctx, req.TokenIn, req.TokenOut, swapAmount, new(big.Int), e.self, req.Deadline, req.FeeTier); err != nil {
		e.rollback(journal)
		return nil, fmt.Errorf("%w: venue execution: %v", types.ErrTransferFailed, err)
	}
	after, err := tokenOut.BalanceOf(ctx, e.self)
	if err != nil {
		e.rollback(journal)
		return nil, fmt.Errorf("%w: balance read: %v", types.ErrTransferFailed, err)
	}
	amountOut := new(big.Int).Sub(after, before)
	journal = append(journal, func(rctx context.Context) error {
		if amountOut.Sign() > 0 {
			if err := tokenOut.Transfer(rctx, venue.ID, amountOut); err != nil {
				return err
			}
		}
		return tokenIn.TransferFrom(rctx, venue.ID, e.self, swapAmount)
	})

	// Stage 5: slippage check, after execution by design.
	if amountOut.Cmp(minOut) < 0 {
		e.rollback(journal)
		return nil, fmt.Errorf("%w: got %s, want at least %s", types.ErrSlippageExceeded, amountOut, minOut)
	}

	// Stage 6: settle.
	if err := tokenOut.Transfer(ctx, caller, amountOut); err != nil {
		e.rollback(journal)
		return nil, fmt.Errorf("%w: settlement: %v", types.ErrTransferFailed, err)
	}

	rec := types.SwapRecord{
		Caller:    caller,
		TokenIn:   req.TokenIn,
		TokenOut:  req.TokenOut,
		AmountIn:  req.AmountIn,
		AmountOut: amountOut,
		FeeAmount: feeAmount,
		VenueID:   venue.ID,
		Ts:        e.now(),
	}
	imetrics.SwapsExecuted.Inc()
	e.log.Info("swap executed",
		zap.String("caller", caller.Hex()),
		zap.String("venue", venue.ID.Hex()),
		zap.String("amount_in", req.AmountIn.String()),
		zap.String("amount_out", amountOut.String()),
		zap.String("fee_amount", feeAmount.String()),
	)
	if e.rep != nil {
		if err := e.rep.PublishSwap(ctx, rec); err != nil {
			e.log.Warn("swap record publish failed", zap.Error(err))
		}
	}
	return amountOut, nil
}

// rollback unwinds journaled effects in reverse. It runs on a fresh
// context so compensation still completes when the caller's context is
// already dead.
func (e *Executor) rollback(journal []func(context.Context) error) {
	imetrics.SwapsRolledBack.Inc()
	rctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for i := len(journal) - 1; i >= 0; i-- {
		if err := journal[i](rctx); err != nil {
			e.log.Error("rollback step failed", zap.Int("step", i), zap.Error(err))
		}
	}
}

func (e *Executor) callerLock(caller common.Address) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[caller]
	if !ok {
		l = &sync.Mutex{}
		e.locks[caller] = l
	}
	return l
}

// UpdatePlatformFee sets the platform fee, capped at 1000 bps.
func (e *Executor) UpdatePlatformFee(caller common.Address, bps uint32) error {
	if caller != e.admin {
		return types.ErrUnauthorized
	}
	if bps > core.MaxFeeBps {
		return fmt.Errorf("%w: fee %d bps above cap", types.ErrInvalidInput, bps)
	}
	e.mu.Lock()
	e.feeBps = bps
	e.mu.Unlock()
	e.log.Info("platform fee updated", zap.Uint32("fee_bps", bps))
	return nil
}

func (e *Executor) PlatformFeeBps() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feeBps
}

// UpdateFeeRecipient redirects collected fees.
func (e *Executor) UpdateFeeRecipient(caller, recipient common.Address) error {
	if caller != e.admin {
		return types.ErrUnauthorized
	}
	if recipient == (common.Address{}) {
		return fmt.Errorf("%w: empty fee recipient", types.ErrInvalidInput)
	}
	e.mu.Lock()
	e.feeRecipient = recipient
	e.mu.Unlock()
	e.log.Info("fee recipient updated", zap.String("recipient", recipient.Hex()))
	return nil
}

func (e *Executor) FeeRecipient() common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feeRecipient
}

// EmergencyWithdraw moves a stray balance out of custody to the admin.
// Last-resort recovery, not part of the normal flow.
func (e *Executor) EmergencyWithdraw(ctx context.Context, caller, token common.Address, amount *big.Int) error {
	if caller != e.admin {
		return types.ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", types.ErrInvalidInput)
	}
	if err := e.assets.Asset(token).Transfer(ctx, e.admin, amount); err != nil {
		return fmt.Errorf("%w: emergency withdraw: %v", types.ErrTransferFailed, err)
	}
	e.log.Warn("emergency withdraw",
		zap.String("token", token.Hex()),
		zap.String("amount", amount.String()),
	)
	return nil
}
