package hip3

import (
	"strings"

	"bitfrost-api/pkg/market"
)

// Buckets for symbols a DEX lists without a category.
var (
	commoditySymbols = setOf(
		"GOLD", "XAU", "SILVER", "XAG", "COPPER", "PLATINUM", "PALLADIUM",
		"OIL", "WTI", "BRENT", "CL", "NATGAS", "NG", "URANIUM",
		"CORN", "WHEAT", "SOY", "COFFEE", "SUGAR", "COCOA",
	)
	indexSymbols = setOf(
		"SPX", "SP500", "US500", "NDX", "NASDAQ", "US100", "DJI", "DOW", "US30",
		"RUT", "VIX", "DAX", "FTSE", "NIKKEI", "N225", "HSI", "XYZ100",
	)
)

// Categorize buckets a bare symbol by name; anything unknown is a stock.
func Categorize(symbol string) market.Category {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case has(commoditySymbols, s):
		return market.CategoryCommodities
	case has(indexSymbols, s):
		return market.CategoryIndices
	default:
		return market.CategoryStocks
	}
}

func setOf(values ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

func has(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}
