package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"bitfrost-api/internal/cli"
	"bitfrost-api/internal/config"
	"bitfrost-api/internal/svc"
	marketpkg "bitfrost-api/pkg/market"
)

var configFile = flag.String("f", "etc/bitfrost.yaml", "the config file")

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)
	if cfg.Market.Value == nil {
		cfg.Market.Value = marketpkg.MustLoad()
	}
	logx.MustSetup(cfg.Log)
	defer logx.Close()
	cli.LogConfigSummary(cfg)

	svcCtx := svc.NewServiceContext(*cfg)
	ingestor := newMarketIngestor(
		svcCtx.Aggregator,
		svcCtx.Metrics,
		svcCtx.Classifier,
		svcCtx.MarketConfig.Dexes,
		cfg.Ingest.WatchList,
		time.Duration(cfg.Ingest.Interval)*time.Second,
		cfg.Ingest.FundingEvery,
	)
	ingestor.funding = svcCtx.Funding
	if svcCtx.Redis != nil {
		ingestor.lock = svcCtx.Redis
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logx.Infof("market ingest: started interval=%ds dexes=%v watch=%v", cfg.Ingest.Interval, svcCtx.MarketConfig.Dexes, cfg.Ingest.WatchList)
	ingestor.run(ctx)
	logx.Info("market ingest: stopped")
}
