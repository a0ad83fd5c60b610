package market

import "context"

// Persistence hooks allow the ingestor to mirror market data into external stores.
type Persistence interface {
	// UpsertAssets persists the latest aggregated HIP-3 asset rows.
	UpsertAssets(ctx context.Context, list AggregatedAssetList) error
	// RecordSnapshot persists a single resolved market snapshot.
	RecordSnapshot(ctx context.Context, snapshot MarketSnapshot) error
}

// FundingHistory is an append-and-prune list of funding samples per (dex, symbol).
type FundingHistory interface {
	Append(ctx context.Context, dex, symbol string, point FundingPoint) error
	History(ctx context.Context, dex, symbol string) ([]FundingPoint, error)
}
