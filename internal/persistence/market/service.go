package marketpersist

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "bitfrost-api/internal/cache"
	"bitfrost-api/pkg/market"
)

const upsertAssetStmt = `
INSERT INTO public.hip3_assets (
    dex, symbol, category, price, volume_24h, volume_24h_usd, open_interest, open_interest_usd, change_24h_pct, source, created_at, updated_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW()
)
ON CONFLICT (dex, symbol) DO UPDATE SET
    category = EXCLUDED.category,
    price = EXCLUDED.price,
    volume_24h = EXCLUDED.volume_24h,
    volume_24h_usd = EXCLUDED.volume_24h_usd,
    open_interest = EXCLUDED.open_interest,
    open_interest_usd = EXCLUDED.open_interest_usd,
    change_24h_pct = EXCLUDED.change_24h_pct,
    source = EXCLUDED.source,
    updated_at = NOW();`

const upsertSnapshotStmt = `
INSERT INTO public.market_snapshot_latest (
    dex, symbol, mark_px, oracle_px, mid_px, open_interest, open_interest_usd, funding_pct, premium_pct,
    volume_24h_usd, change_24h_pct, open_24h, high_24h, low_24h, close_24h, best_bid, best_ask, spread_bps,
    ts_ms, raw, created_at, updated_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, NOW(), NOW()
)
ON CONFLICT (dex, symbol) DO UPDATE SET
    mark_px = EXCLUDED.mark_px,
    oracle_px = EXCLUDED.oracle_px,
    mid_px = EXCLUDED.mid_px,
    open_interest = EXCLUDED.open_interest,
    open_interest_usd = EXCLUDED.open_interest_usd,
    funding_pct = EXCLUDED.funding_pct,
    premium_pct = EXCLUDED.premium_pct,
    volume_24h_usd = EXCLUDED.volume_24h_usd,
    change_24h_pct = EXCLUDED.change_24h_pct,
    open_24h = EXCLUDED.open_24h,
    high_24h = EXCLUDED.high_24h,
    low_24h = EXCLUDED.low_24h,
    close_24h = EXCLUDED.close_24h,
    best_bid = EXCLUDED.best_bid,
    best_ask = EXCLUDED.best_ask,
    spread_bps = EXCLUDED.spread_bps,
    ts_ms = EXCLUDED.ts_ms,
    raw = EXCLUDED.raw,
    updated_at = NOW();`

// KV mirrors the latest snapshot for readers outside this process. *redis.Redis satisfies it.
type KV interface {
	SetexCtx(ctx context.Context, key, value string, seconds int) error
}

// Service implements market.Persistence on Postgres, optionally mirroring snapshots to Redis.
type Service struct {
	sqlConn sqlx.SqlConn
	kv      KV
	ttl     cachekeys.TTLSet
}

// Config enumerates dependencies required to persist market data.
type Config struct {
	SQLConn sqlx.SqlConn
	KV      KV
	TTL     cachekeys.TTLSet
}

var _ market.Persistence = (*Service)(nil)

// NewService wires a market persistence service. Returns nil when the SQL connection is missing.
func NewService(cfg Config) *Service {
	if cfg.SQLConn == nil {
		return nil
	}
	return &Service{
		sqlConn: cfg.SQLConn,
		kv:      cfg.KV,
		ttl:     cfg.TTL,
	}
}

// UpsertAssets writes every record of a live list in one transaction. Mock lists are skipped.
func (s *Service) UpsertAssets(ctx context.Context, list market.AggregatedAssetList) error {
	if s == nil || s.sqlConn == nil || !list.Source.IsLive() || list.Len() == 0 {
		return nil
	}
	rows := []struct {
		category market.Category
		records  []market.AssetRecord
	}{
		{market.CategoryCommodities, list.Commodities},
		{market.CategoryStocks, list.Stocks},
		{market.CategoryIndices, list.Indices},
	}
	return s.sqlConn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		for _, row := range rows {
			for _, rec := range row.records {
				if strings.TrimSpace(rec.Symbol) == "" || !rec.Source.IsLive() {
					continue
				}
				if _, err := session.ExecCtx(ctx, upsertAssetStmt,
					rec.OwnerDex,
					rec.Symbol,
					string(row.category),
					rec.Price,
					rec.Volume24h,
					rec.Volume24hUSD,
					rec.OpenInterest,
					rec.OpenInterestUSD,
					rec.Change24hPercent,
					string(rec.Source),
				); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// RecordSnapshot upserts the latest snapshot of (dex, symbol). Mock snapshots are skipped.
func (s *Service) RecordSnapshot(ctx context.Context, snap market.MarketSnapshot) error {
	if s == nil || s.sqlConn == nil || strings.TrimSpace(snap.Symbol) == "" || !snap.Source.IsLive() {
		return nil
	}
	ts := snap.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if _, err := s.sqlConn.ExecCtx(ctx, upsertSnapshotStmt,
		dexOrMain(snap.Dex), snap.Symbol,
		snap.MarkPrice, snap.OraclePrice, snap.MidPrice,
		snap.OpenInterestContracts, snap.OpenInterestUSD,
		snap.FundingRatePercent, snap.PremiumPercent,
		snap.Volume24hUSD, snap.Change24hPercent,
		snap.Open24h, snap.High24h, snap.Low24h, snap.Close24h,
		snap.BestBid, snap.BestAsk, snap.SpreadBps,
		ts.UnixMilli(), string(raw),
	); err != nil {
		return err
	}
	s.cacheSnapshot(ctx, snap, raw)
	return nil
}

func (s *Service) cacheSnapshot(ctx context.Context, snap market.MarketSnapshot, raw []byte) {
	if s.kv == nil || s.ttl.Metrics <= 0 {
		return
	}
	key := cachekeys.MetricsKey(dexOrMain(snap.Dex), snap.Symbol)
	if err := s.kv.SetexCtx(ctx, key, string(raw), int(s.ttl.Metrics/time.Second)); err != nil {
		logx.WithContext(ctx).Errorf("marketpersist: cache snapshot key=%s err=%v", key, err)
	}
}

func dexOrMain(dex string) string {
	if dex = strings.ToLower(strings.TrimSpace(dex)); dex != "" {
		return dex
	}
	return cachekeys.MainDex
}

