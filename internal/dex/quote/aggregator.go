package quote

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/you/dex-aggregator/internal/dex/core"
	imetrics "github.com/you/dex-aggregator/internal/metrics"
	"github.com/you/dex-aggregator/internal/types"
)

// Aggregator fans a quote request out to every active venue. Venue
// queries are read-only and independent, so they run in parallel; a
// venue that errors or times out is dropped from the result, never
// surfaced as an aggregation error.
type Aggregator struct {
	reg     *core.Registry
	timeout time.Duration
	log     *zap.Logger
}

func NewAggregator(reg *core.Registry, timeout time.Duration, log *zap.Logger) *Aggregator {
	if timeout <= 0 {
		timeout = 1500 * time.Millisecond
	}
	return &Aggregator{reg: reg, timeout: timeout, log: log}
}

// GetAllQuotes queries every active venue and returns the quotes that
// resolved, in registration order. It does not return until every
// dispatched query has resolved (success or isolated failure).
func (a *Aggregator) GetAllQuotes(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) ([]types.RouteQuote, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amountIn must be positive", types.ErrInvalidInput)
	}

	venues := a.reg.ListActive()
	results := make([]*types.RouteQuote, len(venues))

	var wg sync.WaitGroup
	for i, ven := range venues {
		wg.Add(1)
		go func(i int, ven *core.Venue) {
			defer wg.Done()
			q, err := a.quoteOne(ctx, ven, tokenIn, tokenOut, amountIn)
			if err != nil {
				imetrics.QuoterErrors.Inc()
				a.log.Debug("venue quote failed",
					zap.String("venue", ven.ID.Hex()),
					zap.String("name", ven.Name),
					zap.Error(err),
				)
				return
			}
			results[i] = q
		}(i, ven)
	}
	wg.Wait()

	// Compact while preserving registration order so the selector's
	// first-encountered tie break stays stable.
	out := make([]types.RouteQuote, 0, len(results))
	for _, q := range results {
		if q != nil {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (a *Aggregator) quoteOne(ctx context.Context, ven *core.Venue, tokenIn, tokenOut common.Address, amountIn *big.Int) (*types.RouteQuote, error) {
	qctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	amountOut, err := ven.Quoter.Quote(qctx, tokenIn, tokenOut, amountIn)
	imetrics.QuoteLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if amountOut == nil {
		amountOut = new(big.Int)
	}
	return &types.RouteQuote{
		VenueID:   ven.ID,
		Name:      ven.Name,
		AmountOut: amountOut,
		GasUnits:  core.GasEstimate(ven.Variant),
		FeeBps:    ven.FeeBps,
	}, nil
}

// GetQuoteFromDex quotes a single venue by id.
func (a *Aggregator) GetQuoteFromDex(ctx context.Context, venueID, tokenIn, tokenOut common.Address, amountIn *big.Int) (types.RouteQuote, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return types.RouteQuote{}, fmt.Errorf("%w: amountIn must be positive", types.ErrInvalidInput)
	}
	ven := a.reg.Get(venueID)
	if ven == nil {
		return types.RouteQuote{}, fmt.Errorf("%w: venue %s", types.ErrNotFound, venueID.Hex())
	}
	if !ven.Active {
		return types.RouteQuote{}, fmt.Errorf("%w: venue %s inactive", types.ErrUnsupportedSource, venueID.Hex())
	}
	q, err := a.quoteOne(ctx, ven, tokenIn, tokenOut, amountIn)
	if err != nil {
		return types.RouteQuote{}, err
	}
	return *q, nil
}

// FindBestRoute picks the quote with the strictly greatest output.
// Ties go to the venue registered earlier. Zero-quote placeholders are
// only returned when no venue produced a positive quote; with no
// quotes at all the zero-value RouteQuote sentinel comes back with
// ok=false.
func (a *Aggregator) FindBestRoute(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (types.RouteQuote, bool, error) {
	quotes, err := a.GetAllQuotes(ctx, tokenIn, tokenOut, amountIn)
	if err != nil {
		return types.RouteQuote{}, false, err
	}
	if len(quotes) == 0 {
		return types.RouteQuote{AmountOut: new(big.Int)}, false, nil
	}

	best := quotes[0]
	for _, q := range quotes[1:] {
		if q.AmountOut.Cmp(best.AmountOut) > 0 {
			best = q
		}
	}
	return best, true, nil
}
