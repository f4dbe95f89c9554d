// Package feed externalizes executed swaps and pool updates over
// redis for downstream consumers.
package feed

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/you/dex-aggregator/internal/config"
	"github.com/you/dex-aggregator/internal/types"
)

type Publisher struct {
	rdb    *redis.Client
	stream string
	snapNS string
}

func NewPublisher(cfg config.RedisCfg) *Publisher {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	return &Publisher{
		rdb:    rdb,
		stream: cfg.Stream,
		snapNS: cfg.SnapNS,
	}
}

// PublishSwap appends a settled swap to the swap stream.
func (p *Publisher) PublishSwap(ctx context.Context, rec types.SwapRecord) error {
	return p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"caller":     rec.Caller.Hex(),
			"token_in":   rec.TokenIn.Hex(),
			"token_out":  rec.TokenOut.Hex(),
			"amount_in":  rec.AmountIn.String(),
			"amount_out": rec.AmountOut.String(),
			"fee_amount": rec.FeeAmount.String(),
			"venue":      rec.VenueID.Hex(),
			"ts_ms":      rec.Ts.UnixMilli(),
		},
	}).Err()
}

// PublishPoolUpdate upserts the latest pool snapshot hash and the
// active-pool index.
func (p *Publisher) PublishPoolUpdate(ctx context.Context, rec types.PoolRecord) error {
	key := p.snapNS + rec.PoolID.Hex()
	if err := p.rdb.HSet(ctx, key, map[string]interface{}{
		"pool":           rec.PoolID.Hex(),
		"token_a":        rec.TokenA.Hex(),
		"token_b":        rec.TokenB.Hex(),
		"venue":          rec.VenueID.Hex(),
		"name":           rec.Name,
		"liquidity_usd":  rec.LiquidityUSD.String(),
		"volume_24h_usd": rec.Volume24hUSD.String(),
		"fees_24h_usd":   rec.Fees24hUSD.String(),
		"apr_bps":        rec.AprBps,
		"ts_ms":          rec.LastUpdatedAt.UnixMilli(),
	}).Err(); err != nil {
		return err
	}
	return p.rdb.ZAdd(ctx, "pool:active", redis.Z{
		Score:  float64(rec.LastUpdatedAt.UnixMilli()),
		Member: rec.PoolID.Hex(),
	}).Err()
}

func (p *Publisher) Close() error {
	return p.rdb.Close()
}
