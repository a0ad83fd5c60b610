package main

import (
	"context"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	cachekeys "bitfrost-api/internal/cache"
	"bitfrost-api/pkg/market"
	"bitfrost-api/pkg/market/symbol"
)

type assetRefresher interface {
	FetchAll(ctx context.Context, dexes []string) market.AggregatedAssetList
}

type snapshotResolver interface {
	Resolve(ctx context.Context, canonicalID, ownerDex string) (market.MarketSnapshot, error)
}

// locker is satisfied by *redis.Redis.
type locker interface {
	SetnxExCtx(ctx context.Context, key, value string, seconds int) (bool, error)
}

// marketIngestor refreshes the aggregate, resolves snapshots for the watch list
// and samples funding rates. Persistence happens through the hooks wired into
// the aggregator and resolver.
type marketIngestor struct {
	assets       assetRefresher
	resolver     snapshotResolver
	funding      market.FundingHistory
	classifier   *symbol.Classifier
	lock         locker
	dexes        []string
	watch        []string
	interval     time.Duration
	fundingEvery int
	ticks        int
}

const defaultSnapshotTimeout = 8 * time.Second

func newMarketIngestor(assets assetRefresher, resolver snapshotResolver, classifier *symbol.Classifier, dexes, watch []string, interval time.Duration, fundingEvery int) *marketIngestor {
	if interval <= 0 {
		interval = time.Minute
	}
	if fundingEvery <= 0 {
		fundingEvery = 1
	}
	if classifier == nil {
		classifier = symbol.NewClassifier()
	}
	unique := make([]string, 0, len(watch))
	seen := make(map[string]struct{}, len(watch))
	for _, id := range watch {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		canonical := classifier.Classify(id).CanonicalID
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		unique = append(unique, id)
	}
	return &marketIngestor{
		assets:       assets,
		resolver:     resolver,
		classifier:   classifier,
		dexes:        dexes,
		watch:        unique,
		interval:     interval,
		fundingEvery: fundingEvery,
	}
}

// run ticks immediately and then every interval until ctx is cancelled.
func (m *marketIngestor) run(ctx context.Context) {
	if m == nil {
		return
	}
	m.tick(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *marketIngestor) tick(ctx context.Context) {
	if !m.acquire(ctx) {
		logx.WithContext(ctx).Infof("market ingest: tick skipped, lock held elsewhere")
		return
	}
	m.ticks++
	start := time.Now()
	list := m.assets.FetchAll(ctx, m.dexes)
	logx.WithContext(ctx).Infof("market ingest: aggregate source=%s assets=%d took=%dms msg=%q",
		list.Source, list.Len(), time.Since(start).Milliseconds(), list.ErrorMessage)

	targets := m.watch
	if len(targets) == 0 {
		for _, rec := range list.All() {
			targets = append(targets, rec.Symbol)
		}
	}
	sampleFunding := m.funding != nil && (m.ticks-1)%m.fundingEvery == 0
	for _, id := range targets {
		if ctx.Err() != nil {
			return
		}
		m.refreshSnapshot(ctx, id, sampleFunding)
	}
}

func (m *marketIngestor) refreshSnapshot(ctx context.Context, id string, sampleFunding bool) {
	cls := m.classifier.Classify(id)
	reqCtx, cancel := context.WithTimeout(ctx, defaultSnapshotTimeout)
	defer cancel()

	snap, err := m.resolver.Resolve(reqCtx, cls.CanonicalID, cls.OwnerDex)
	if err != nil {
		if ctx.Err() == nil {
			logx.WithContext(ctx).Errorf("market ingest: snapshot id=%s dex=%s err=%v", cls.CanonicalID, cls.OwnerDex, err)
		}
		return
	}
	if !sampleFunding || !snap.Source.IsLive() {
		return
	}
	point := market.FundingPoint{
		Time:        snap.UpdatedAt.UnixMilli(),
		RatePercent: snap.FundingRatePercent,
		Source:      snap.Source,
	}
	if err := m.funding.Append(ctx, cls.OwnerDex, m.classifier.BareSymbol(cls.CanonicalID), point); err != nil {
		logx.WithContext(ctx).Errorf("market ingest: funding id=%s dex=%s err=%v", cls.CanonicalID, cls.OwnerDex, err)
	}
}

// acquire takes the per-tick lock so only one replica ingests. Without a
// lock store, or when the store fails, the tick proceeds.
func (m *marketIngestor) acquire(ctx context.Context) bool {
	if m.lock == nil {
		return true
	}
	ttl := cachekeys.IngestLockTTL(m.interval)
	ok, err := m.lock.SetnxExCtx(ctx, cachekeys.IngestLockKey(), "1", int(ttl/time.Second))
	if err != nil {
		logx.WithContext(ctx).Errorf("market ingest: lock err=%v", err)
		return true
	}
	return ok
}
