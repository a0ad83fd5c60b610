package market

import "time"

// SourceKind tags whether a value came from a real upstream response or a synthetic fallback.
type SourceKind string

const (
	SourceLive SourceKind = "live"
	SourceMock SourceKind = "mock"
)

// IsLive reports whether the value came from a live upstream.
func (s SourceKind) IsLive() bool {
	return s == SourceLive
}

// AssetClass separates crypto perpetuals from HIP-3 real-world-asset markets.
type AssetClass string

const (
	ClassCrypto AssetClass = "crypto"
	ClassRWA    AssetClass = "rwa"
)

// Category is the semantic bucket of an RWA market.
type Category string

const (
	CategoryCommodities Category = "commodities"
	CategoryStocks      Category = "stocks"
	CategoryIndices     Category = "indices"
)

// MarketSnapshot is the denormalized present-moment view of one asset on one DEX.
// Each refresh produces a new value that replaces the previous one.
type MarketSnapshot struct {
	Symbol string `json:"symbol"`
	Dex    string `json:"dex,omitempty"`

	MarkPrice   float64 `json:"markPrice"`
	OraclePrice float64 `json:"oraclePrice"`
	MidPrice    float64 `json:"midPrice"`

	OpenInterestContracts float64 `json:"openInterestContracts"`
	OpenInterestUSD       float64 `json:"openInterestUsd"`
	FundingRatePercent    float64 `json:"fundingRatePercent"`
	PremiumPercent        float64 `json:"premiumPercent"`
	Volume24hUSD          float64 `json:"volume24hUsd"`
	Change24hPercent      float64 `json:"change24hPercent"`

	Open24h  float64 `json:"open24h"`
	High24h  float64 `json:"high24h"`
	Low24h   float64 `json:"low24h"`
	Close24h float64 `json:"close24h"`

	BestBid   float64 `json:"bestBid"`
	BestAsk   float64 `json:"bestAsk"`
	SpreadBps float64 `json:"spreadBps"`

	Source       SourceKind `json:"sourceKind"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// MockSnapshot returns the all-zero fallback snapshot rendered when nothing could be fetched.
func MockSnapshot(symbol, dex, message string) MarketSnapshot {
	return MarketSnapshot{
		Symbol:       symbol,
		Dex:          dex,
		Source:       SourceMock,
		ErrorMessage: message,
		UpdatedAt:    time.Now().UTC(),
	}
}

// AssetRecord is one row of the aggregated HIP-3 asset list.
type AssetRecord struct {
	Symbol           string     `json:"symbol"`
	Volume24h        float64    `json:"volume24h"`
	Volume24hUSD     float64    `json:"volume24hUsd"`
	OpenInterest     float64    `json:"openInterest"`
	OpenInterestUSD  float64    `json:"openInterestUsd"`
	Change24hPercent float64    `json:"change24hPercent"`
	Price            float64    `json:"price"`
	Source           SourceKind `json:"dataSourceKind"`
	OwnerDex         string     `json:"ownerDex"`
}

// AggregatedAssetList groups HIP-3 assets by category. It is rebuilt on every aggregation pass.
type AggregatedAssetList struct {
	Commodities  []AssetRecord `json:"commodities"`
	Stocks       []AssetRecord `json:"stocks"`
	Indices      []AssetRecord `json:"indices"`
	Source       SourceKind    `json:"sourceKind"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
}

// EmptyAssetList returns a list with non-nil buckets so it always renders as arrays.
func EmptyAssetList(source SourceKind, message string) AggregatedAssetList {
	return AggregatedAssetList{
		Commodities:  []AssetRecord{},
		Stocks:       []AssetRecord{},
		Indices:      []AssetRecord{},
		Source:       source,
		ErrorMessage: message,
	}
}

// Add appends the record to the bucket for category.
func (l *AggregatedAssetList) Add(category Category, record AssetRecord) {
	switch category {
	case CategoryCommodities:
		l.Commodities = append(l.Commodities, record)
	case CategoryIndices:
		l.Indices = append(l.Indices, record)
	default:
		l.Stocks = append(l.Stocks, record)
	}
}

// Len returns the total number of records across buckets.
func (l AggregatedAssetList) Len() int {
	return len(l.Commodities) + len(l.Stocks) + len(l.Indices)
}

// All returns every record, commodities first.
func (l AggregatedAssetList) All() []AssetRecord {
	out := make([]AssetRecord, 0, l.Len())
	out = append(out, l.Commodities...)
	out = append(out, l.Stocks...)
	out = append(out, l.Indices...)
	return out
}

// BookLevel is one price level of an order book.
type BookLevel struct {
	Price float64 `json:"px"`
	Size  float64 `json:"sz"`
}

// OrderBook holds bids (best first) and asks (best first).
type OrderBook struct {
	Bids   []BookLevel `json:"bids"`
	Asks   []BookLevel `json:"asks"`
	Source SourceKind  `json:"sourceKind"`
}

// Top returns the best bid and ask; ok is false when either side is empty.
func (b *OrderBook) Top() (bid, ask float64, ok bool) {
	if b == nil || len(b.Bids) == 0 || len(b.Asks) == 0 {
		return 0, 0, false
	}
	bid, ask = b.Bids[0].Price, b.Asks[0].Price
	if bid <= 0 || ask <= 0 {
		return 0, 0, false
	}
	return bid, ask, true
}

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime int64   `json:"t"`
	Open     float64 `json:"o"`
	High     float64 `json:"h"`
	Low      float64 `json:"l"`
	Close    float64 `json:"c"`
	Volume   float64 `json:"v"`
}

// FundingPoint is one sampled funding rate.
type FundingPoint struct {
	Time        int64      `json:"t" msgpack:"t"`
	RatePercent float64    `json:"rate" msgpack:"r"`
	Source      SourceKind `json:"sourceKind" msgpack:"s"`
}
