package svc

import (
	"database/sql"
	"log"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "bitfrost-api/internal/cache"
	"bitfrost-api/internal/config"
	fundingpersist "bitfrost-api/internal/persistence/funding"
	marketpersist "bitfrost-api/internal/persistence/market"
	marketpkg "bitfrost-api/pkg/market"
	"bitfrost-api/pkg/market/exchanges/hyperliquid"
	"bitfrost-api/pkg/market/freshness"
	"bitfrost-api/pkg/market/hip3"
	"bitfrost-api/pkg/market/live"
	"bitfrost-api/pkg/market/metrics"
	"bitfrost-api/pkg/market/proxy"
	"bitfrost-api/pkg/market/symbol"
)

type ServiceContext struct {
	Config       config.Config
	MarketConfig *marketpkg.Config
	TTL          cachekeys.TTLSet

	Classifier *symbol.Classifier
	Info       *hyperliquid.Client
	Proxy      *proxy.Client
	Aggregator *hip3.Aggregator
	Metrics    *metrics.Resolver
	Live       *live.Hub

	// Optional stores, nil when not configured.
	Redis       *redis.Redis
	DBConn      sqlx.SqlConn
	Persistence *marketpersist.Service
	Funding     marketpkg.FundingHistory
}

func NewServiceContext(c config.Config) *ServiceContext {
	marketCfg := c.MarketConfig()
	ttl := cachekeys.NewTTLSet(c.TTL)
	svc := &ServiceContext{
		Config:       c,
		MarketConfig: marketCfg,
		TTL:          ttl,
		Classifier:   symbol.FromConfig(marketCfg),
		Info:         hyperliquid.NewClientFromConfig(marketCfg),
		Proxy:        proxy.NewClientFromConfig(marketCfg),
	}

	if strings.TrimSpace(c.Redis.Host) != "" {
		rds, err := redis.NewRedis(c.Redis)
		if err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		svc.Redis = rds
		svc.Funding = fundingpersist.NewStore(rds, ttl)
	}

	if c.Postgres.DSN != "" {
		db, err := sql.Open("pgx", c.Postgres.DSN)
		if err != nil {
			log.Fatalf("failed to open postgres: %v", err)
		}
		db.SetMaxOpenConns(c.Postgres.MaxOpen)
		db.SetMaxIdleConns(c.Postgres.MaxIdle)
		svc.DBConn = sqlx.NewSqlConnFromDB(db)
		mirror := marketpersist.Config{SQLConn: svc.DBConn, TTL: ttl}
		if svc.Redis != nil {
			mirror.KV = svc.Redis
		}
		svc.Persistence = marketpersist.NewService(mirror)
	}

	aggOpts := []hip3.Option{
		hip3.WithDexes(marketCfg.Dexes...),
		hip3.WithClassifier(svc.Classifier),
		hip3.WithKeyFunc(cachekeys.HIP3AssetsKey),
	}
	metricOpts := []metrics.Option{
		metrics.WithTimeout(marketCfg.Timeout),
		metrics.WithKeyFunc(cachekeys.MetricsKey),
	}
	if svc.Persistence != nil {
		if c.Ingest.PersistAssets {
			aggOpts = append(aggOpts, hip3.WithPersistence(svc.Persistence))
		}
		metricOpts = append(metricOpts, metrics.WithPersistence(svc.Persistence))
	}
	svc.Aggregator = hip3.NewAggregator(svc.Proxy,
		freshness.New[marketpkg.AggregatedAssetList]("hip3_assets", ttl.Aggregate), aggOpts...)
	books := metrics.NewRoutedBooks(svc.Info, svc.Proxy)
	svc.Metrics = metrics.NewResolver(svc.Info, books,
		freshness.New[marketpkg.MarketSnapshot]("metrics", ttl.Metrics), metricOpts...)
	svc.Live = live.NewHub(svc.Classifier,
		live.WithStreamer(hyperliquid.NewStreamer(marketCfg.WSURL)),
		live.WithMetricsSource(svc.Metrics),
		live.WithBookSource(books),
		live.WithPriceSource(svc.Info),
		live.WithConfig(marketCfg.Live),
		live.WithRequestTimeout(marketCfg.Timeout),
	)
	return svc
}
