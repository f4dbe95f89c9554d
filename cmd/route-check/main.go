// route-check prints every venue's quote for a pair and the route the
// selector would pick.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/you/dex-aggregator/internal/config"
	"github.com/you/dex-aggregator/internal/dex/core"
	"github.com/you/dex-aggregator/internal/dex/evm"
	"github.com/you/dex-aggregator/internal/dex/quote"
)

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config file")
	tokenIn := flag.String("in", "", "tokenIn address")
	tokenOut := flag.String("out", "", "tokenOut address")
	amount := flag.String("amount", "", "amountIn (wei)")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}
	amountIn, ok := new(big.Int).SetString(*amount, 10)
	if !ok || *tokenIn == "" || *tokenOut == "" {
		fmt.Fprintln(os.Stderr, "usage: route-check -in 0x.. -out 0x.. -amount <wei>")
		os.Exit(2)
	}

	ec, err := ethclient.Dial(cfg.Chain.RPCHTTP)
	if err != nil {
		logger.Fatal("dial rpc", zap.Error(err))
	}

	admin := common.HexToAddress(cfg.Platform.Admin)
	reg := core.NewRegistry(admin, logger)
	for _, vc := range cfg.Venues {
		variant := core.ParseVariant(vc.Variant)
		router := common.HexToAddress(vc.Router)
		ven := &core.Venue{ID: router, Name: vc.Name, FeeBps: vc.FeeBps, Variant: variant}
		switch variant {
		case core.VariantConstantProduct:
			cp, err := evm.NewConstantProduct(ec, router, "", cfg.Chain.GasLimitSwap)
			if err != nil {
				logger.Fatal("venue init", zap.String("venue", vc.Name), zap.Error(err))
			}
			ven.Quoter, ven.Swapper = cp, cp
		case core.VariantConcentrated:
			cl, err := evm.NewConcentrated(ec, router, "", cfg.Chain.GasLimitSwap, vc.FeeTier)
			if err != nil {
				logger.Fatal("venue init", zap.String("venue", vc.Name), zap.Error(err))
			}
			ven.Quoter, ven.Swapper = cl, cl
		}
		if err := reg.Register(admin, ven); err != nil {
			logger.Fatal("venue registration", zap.String("venue", vc.Name), zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	agg := quote.NewAggregator(reg, cfg.QuoteTimeout(), logger)
	quotes, err := agg.GetAllQuotes(ctx, common.HexToAddress(*tokenIn), common.HexToAddress(*tokenOut), amountIn)
	if err != nil {
		logger.Fatal("quote aggregation", zap.Error(err))
	}
	for _, q := range quotes {
		fmt.Printf("%-24s out=%s gas=%d fee_bps=%d\n", q.Name, q.AmountOut, q.GasUnits, q.FeeBps)
	}

	best, ok, err := agg.FindBestRoute(ctx, common.HexToAddress(*tokenIn), common.HexToAddress(*tokenOut), amountIn)
	if err != nil {
		logger.Fatal("route selection", zap.Error(err))
	}
	if !ok {
		fmt.Println("no route")
		return
	}
	fmt.Printf("best: %s (%s) out=%s\n", best.Name, best.VenueID.Hex(), best.AmountOut)
}
