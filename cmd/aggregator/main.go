package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/you/dex-aggregator/internal/analytics"
	"github.com/you/dex-aggregator/internal/analytics/feed"
	"github.com/you/dex-aggregator/internal/assets"
	"github.com/you/dex-aggregator/internal/config"
	"github.com/you/dex-aggregator/internal/dex/core"
	"github.com/you/dex-aggregator/internal/dex/evm"
	"github.com/you/dex-aggregator/internal/dex/swap"
	"github.com/you/dex-aggregator/internal/metrics"
)

func newLogger() (*zap.Logger, error) {
	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zap.DebugLevel),
		Development: false,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.RFC3339TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return cfg.Build()
}

// symbolSource adapts the asset capability's optional symbol() to the
// analytics metadata lookup.
type symbolSource struct{ p assets.Provider }

func (s symbolSource) Symbol(ctx context.Context, token common.Address) (string, error) {
	return s.p.Asset(token).Symbol(ctx)
}

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()

	logger, err := newLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Warn("signal received, shutting down")
		cancel()
	}()
	metrics.Serve(ctx, cfg.Metrics.ListenAddr, nil, logger)

	ec, err := ethclient.Dial(cfg.Chain.RPCHTTP)
	if err != nil {
		logger.Fatal("dial rpc", zap.Error(err))
	}

	admin := common.HexToAddress(cfg.Platform.Admin)
	custody := common.HexToAddress(cfg.Platform.Custody)
	reg := core.NewRegistry(admin, logger)
	for _, vc := range cfg.Venues {
		variant := core.ParseVariant(vc.Variant)
		router := common.HexToAddress(vc.Router)
		ven := &core.Venue{
			ID:      router,
			Name:    vc.Name,
			FeeBps:  vc.FeeBps,
			Variant: variant,
		}
		switch variant {
		case core.VariantConstantProduct:
			cp, err := evm.NewConstantProduct(ec, router, cfg.Chain.WalletPK, cfg.Chain.GasLimitSwap)
			if err != nil {
				logger.Fatal("constant-product venue init", zap.String("venue", vc.Name), zap.Error(err))
			}
			ven.Quoter, ven.Swapper = cp, cp
		case core.VariantConcentrated:
			cl, err := evm.NewConcentrated(ec, router, cfg.Chain.WalletPK, cfg.Chain.GasLimitSwap, vc.FeeTier)
			if err != nil {
				logger.Fatal("concentrated venue init", zap.String("venue", vc.Name), zap.Error(err))
			}
			ven.Quoter, ven.Swapper = cl, cl
		}
		if err := reg.Register(admin, ven); err != nil {
			logger.Fatal("venue registration", zap.String("venue", vc.Name), zap.Error(err))
		}
	}
	metrics.ActiveVenues.Set(float64(len(reg.ListActive())))

	provider := assets.NewERC20Provider(ec, cfg.Chain.WalletPK, cfg.Chain.GasLimitSwap)

	var pub *feed.Publisher
	if cfg.Redis.Addr != "" {
		pub = feed.NewPublisher(cfg.Redis)
		defer pub.Close()
	}

	var swapRep swap.Reporter
	var poolRep analytics.PoolReporter
	if pub != nil {
		swapRep, poolRep = pub, pub
	}

	exec, err := swap.NewExecutor(
		custody,
		admin,
		common.HexToAddress(cfg.Platform.FeeRecipient),
		cfg.Platform.FeeBps,
		reg,
		provider,
		swapRep,
		logger,
	)
	if err != nil {
		logger.Fatal("executor init", zap.Error(err))
	}

	engine := analytics.NewEngine(admin, symbolSource{p: provider}, poolRep, logger)
	for _, u := range cfg.Analytics.Updaters {
		if err := engine.SetAuthorizedUpdater(admin, common.HexToAddress(u), true); err != nil {
			logger.Fatal("updater authorization", zap.String("updater", u), zap.Error(err))
		}
	}

	logger.Info("aggregator running",
		zap.Int("venues", len(cfg.Venues)),
		zap.Uint32("platform_fee_bps", exec.PlatformFeeBps()),
		zap.Bool("feed", pub != nil),
	)

	for ctx.Err() == nil {
		time.Sleep(250 * time.Millisecond)
	}
}
