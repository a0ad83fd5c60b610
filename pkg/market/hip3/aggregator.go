// Package hip3 aggregates the asset lists of several HIP-3 DEXs into one
// categorized, always-renderable list.
package hip3

import (
	"context"
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/sync/errgroup"

	"bitfrost-api/pkg/market"
	"bitfrost-api/pkg/market/freshness"
	"bitfrost-api/pkg/market/proxy"
	"bitfrost-api/pkg/market/symbol"
)

// Source discovers symbols and batched details per DEX. *proxy.Client satisfies it.
type Source interface {
	Symbols(ctx context.Context, dex string) (proxy.SymbolsResponse, error)
	AssetDetails(ctx context.Context, dex string, symbols []string) (map[string]proxy.AssetDetail, error)
}

// Aggregator fans out to every DEX, merges the results and caches them.
type Aggregator struct {
	source      Source
	cache       *freshness.Cache[market.AggregatedAssetList]
	classifier  *symbol.Classifier
	keyFn       func(dexes ...string) string
	dexes       []string
	persistence market.Persistence
}

// Option customises an Aggregator.
type Option func(*Aggregator)

// WithDexes sets the DEX list used when FetchAll is called without one.
func WithDexes(dexes ...string) Option {
	return func(a *Aggregator) {
		if len(dexes) > 0 {
			a.dexes = append([]string(nil), dexes...)
		}
	}
}

// WithKeyFunc sets how a DEX list maps to a cache key.
func WithKeyFunc(fn func(dexes ...string) string) Option {
	return func(a *Aggregator) {
		if fn != nil {
			a.keyFn = fn
		}
	}
}

// WithClassifier sets the classifier used to strip DEX prefixes before categorizing.
func WithClassifier(c *symbol.Classifier) Option {
	return func(a *Aggregator) {
		if c != nil {
			a.classifier = c
		}
	}
}

// WithPersistence records every freshly aggregated live list. Failures are logged only.
func WithPersistence(p market.Persistence) Option {
	return func(a *Aggregator) {
		a.persistence = p
	}
}

// NewAggregator wires an aggregator to its upstream and cache.
func NewAggregator(source Source, cache *freshness.Cache[market.AggregatedAssetList], opts ...Option) *Aggregator {
	a := &Aggregator{
		source:     source,
		cache:      cache,
		classifier: symbol.NewClassifier(),
		keyFn:      defaultKey,
		dexes:      append([]string(nil), market.DefaultDexes...),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func defaultKey(dexes ...string) string {
	return "hip3:" + strings.Join(dexes, ",")
}

// FetchOne aggregates a single DEX.
func (a *Aggregator) FetchOne(ctx context.Context, dex string) market.AggregatedAssetList {
	return a.FetchAll(ctx, []string{dex})
}

// FetchAll returns the aggregated list for dexes, serving a fresh cached value
// when there is one. It never fails: the source is live when any DEX answered
// live, and ErrorMessage carries the first failure in DEX-list order.
func (a *Aggregator) FetchAll(ctx context.Context, dexes []string) market.AggregatedAssetList {
	dexes = normaliseDexes(dexes)
	if len(dexes) == 0 {
		dexes = a.dexes
	}
	key := a.keyFn(dexes...)

	entry, err := a.cache.Load(ctx, key, func(ctx context.Context) (freshness.Entry[market.AggregatedAssetList], error) {
		// An abandoned caller must not cut short a pass other callers share.
		ctx = context.WithoutCancel(ctx)
		list := a.aggregate(ctx, dexes)
		a.persist(ctx, list)
		return freshness.Entry[market.AggregatedAssetList]{
			Data:         list,
			Source:       list.Source,
			ErrorMessage: list.ErrorMessage,
		}, nil
	})
	if err != nil {
		return market.EmptyAssetList(market.SourceMock, err.Error())
	}
	return entry.Data
}

type dexOutcome struct {
	source  market.SourceKind
	message string
	entries []flatEntry
	details map[string]proxy.AssetDetail
}

type flatEntry struct {
	dex      string
	symbol   string
	category market.Category
}

func (a *Aggregator) aggregate(ctx context.Context, dexes []string) market.AggregatedAssetList {
	outcomes := make([]dexOutcome, len(dexes))

	// Stage 1: symbol discovery.
	var discover errgroup.Group
	for i, dex := range dexes {
		i, dex := i, dex
		discover.Go(func() error {
			outcomes[i] = a.discover(ctx, dex)
			return nil
		})
	}
	_ = discover.Wait()

	// Stage 3: batched details for every DEX that listed something.
	var details errgroup.Group
	for i, dex := range dexes {
		if len(outcomes[i].entries) == 0 {
			continue
		}
		i, dex := i, dex
		details.Go(func() error {
			symbols := make([]string, 0, len(outcomes[i].entries))
			for _, e := range outcomes[i].entries {
				symbols = append(symbols, e.symbol)
			}
			got, err := a.source.AssetDetails(ctx, dex, symbols)
			if err != nil {
				logx.WithContext(ctx).Errorf("hip3: asset details dex=%s symbols=%d err=%v", dex, len(symbols), err)
				outcomes[i].source = market.SourceMock
				outcomes[i].message = fmt.Sprintf("%s: %v", dex, err)
				return nil
			}
			outcomes[i].details = got
			return nil
		})
	}
	_ = details.Wait()

	return a.merge(ctx, dexes, outcomes)
}

// discover runs stage 1 for one DEX and flattens its inventory (stage 2).
func (a *Aggregator) discover(ctx context.Context, dex string) dexOutcome {
	resp, err := a.source.Symbols(ctx, dex)
	if err != nil {
		logx.WithContext(ctx).Errorf("hip3: symbols dex=%s err=%v", dex, err)
		return dexOutcome{source: market.SourceMock, message: fmt.Sprintf("%s: %v", dex, err)}
	}

	out := dexOutcome{source: resp.Source, message: resp.ErrorMessage}
	if out.source == market.SourceMock && out.message == "" {
		out.message = fmt.Sprintf("%s: upstream returned mock data", dex)
	}

	seen := make(map[string]struct{}, len(resp.Symbols))
	add := func(sym string, cat market.Category) {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			return
		}
		if _, dup := seen[sym]; dup {
			return
		}
		seen[sym] = struct{}{}
		out.entries = append(out.entries, flatEntry{dex: dex, symbol: sym, category: cat})
	}
	for _, sym := range resp.Symbols {
		cat, ok := resp.Categorized.CategoryOf(sym)
		if !ok {
			cat = Categorize(a.classifier.BareSymbol(sym))
		}
		add(sym, cat)
	}
	for _, bucket := range []struct {
		cat     market.Category
		symbols []string
	}{
		{market.CategoryCommodities, resp.Categorized.Commodities},
		{market.CategoryStocks, resp.Categorized.Stocks},
		{market.CategoryIndices, resp.Categorized.Indices},
	} {
		for _, sym := range bucket.symbols {
			add(sym, bucket.cat)
		}
	}
	return out
}

// merge is stage 4. Entries without a detail record are dropped.
func (a *Aggregator) merge(ctx context.Context, dexes []string, outcomes []dexOutcome) market.AggregatedAssetList {
	list := market.EmptyAssetList(market.SourceMock, "")
	anyLive := false
	dropped := 0

	for i, out := range outcomes {
		if out.source.IsLive() {
			anyLive = true
		} else if list.ErrorMessage == "" && out.message != "" {
			list.ErrorMessage = out.message
		}
		if out.details == nil {
			continue
		}
		for _, e := range out.entries {
			detail, ok := out.details[e.symbol]
			if !ok {
				dropped++
				continue
			}
			src := detail.Source
			if src == "" {
				src = out.source
			}
			list.Add(e.category, market.AssetRecord{
				Symbol:           e.symbol,
				Volume24h:        detail.Volume24h.Float(),
				Volume24hUSD:     detail.Volume24hUSD.Float(),
				OpenInterest:     detail.OpenInterest.Float(),
				OpenInterestUSD:  detail.OpenInterestUSD.Float(),
				Change24hPercent: detail.Change24hPercent.Float(),
				Price:            detail.Price.Float(),
				Source:           src,
				OwnerDex:         dexes[i],
			})
		}
	}
	if dropped > 0 {
		logx.WithContext(ctx).Debugf("hip3: dropped entries without details count=%d dexes=%s", dropped, strings.Join(dexes, ","))
	}

	if anyLive {
		list.Source = market.SourceLive
		return list
	}
	if list.ErrorMessage == "" {
		list.ErrorMessage = "no dex returned live data"
	}
	return list
}

func (a *Aggregator) persist(ctx context.Context, list market.AggregatedAssetList) {
	if a.persistence == nil || !list.Source.IsLive() {
		return
	}
	if err := a.persistence.UpsertAssets(ctx, list); err != nil {
		logx.WithContext(ctx).Errorf("hip3: persist assets count=%d err=%v", list.Len(), err)
	}
}

func normaliseDexes(dexes []string) []string {
	out := make([]string, 0, len(dexes))
	for _, dex := range dexes {
		if dex = strings.ToLower(strings.TrimSpace(dex)); dex != "" {
			out = append(out, dex)
		}
	}
	return out
}
