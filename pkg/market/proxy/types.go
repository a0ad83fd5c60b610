package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"bitfrost-api/pkg/market"
)

// SymbolsResponse is the symbol inventory of one DEX.
type SymbolsResponse struct {
	Source       market.SourceKind `json:"source"`
	Symbols      []string          `json:"symbols"`
	Categorized  Categorized       `json:"categorized"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
}

// Categorized splits a symbol inventory into buckets.
type Categorized struct {
	Commodities []string `json:"commodities"`
	Stocks      []string `json:"stocks"`
	Indices     []string `json:"indices"`
}

// CategoryOf returns the bucket the DEX assigned to symbol, if any.
func (c Categorized) CategoryOf(symbol string) (market.Category, bool) {
	for _, bucket := range []struct {
		cat     market.Category
		symbols []string
	}{
		{market.CategoryCommodities, c.Commodities},
		{market.CategoryStocks, c.Stocks},
		{market.CategoryIndices, c.Indices},
	} {
		for _, s := range bucket.symbols {
			if s == symbol {
				return bucket.cat, true
			}
		}
	}
	return "", false
}

// AssetDetail holds the market fields of one symbol.
type AssetDetail struct {
	Price            Number            `json:"price"`
	Volume24h        Number            `json:"volume24h"`
	Volume24hUSD     Number            `json:"volume24hUsd"`
	OpenInterest     Number            `json:"openInterest"`
	OpenInterestUSD  Number            `json:"openInterestUsd"`
	Change24hPercent Number            `json:"change24hPercent"`
	Source           market.SourceKind `json:"dataSourceKind"`
}

// AssetDetailsResponse maps symbols to their details.
type AssetDetailsResponse struct {
	Details map[string]AssetDetail `json:"details"`
}

type orderBookResponse struct {
	Levels [][]struct {
		Px Number `json:"px"`
		Sz Number `json:"sz"`
	} `json:"levels"`
}

type candleWire struct {
	T int64  `json:"t"`
	O Number `json:"o"`
	H Number `json:"h"`
	L Number `json:"l"`
	C Number `json:"c"`
	V Number `json:"v"`
}

// Number decodes from a JSON number, a numeric string or null.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("proxy: number %q: %w", s, err)
		}
		*n = Number(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Number(v)
	return nil
}

// Float returns the value as float64.
func (n Number) Float() float64 { return float64(n) }
