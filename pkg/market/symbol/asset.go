package symbol

import (
	"fmt"
	"strings"

	"bitfrost-api/pkg/market"
)

// Asset is the parsed, tagged form of an identifier: either Crypto{Symbol} or Rwa{Dex, Symbol}.
type Asset struct {
	Class  market.AssetClass
	Dex    string // lower-case DEX code, empty for crypto
	Symbol string // upper-cased bare symbol
	Quote  string // quote from a PERP-<quote> suffix, if any

	canonical string
}

// CanonicalID returns the identifier the upstream expects.
func (a Asset) CanonicalID() string {
	if a.canonical != "" {
		return a.canonical
	}
	if a.Class == market.ClassRWA {
		return a.Dex + ":" + a.Symbol
	}
	return a.Symbol
}

// Classification converts the asset to the loose classification form.
func (a Asset) Classification() Classification {
	return Classification{Class: a.Class, OwnerDex: a.Dex, CanonicalID: a.CanonicalID()}
}

func (a Asset) String() string {
	return a.CanonicalID()
}

// Parse validates identifier against the grammar
//
//	identifier = [ dex ":" ] symbol [ ":" "PERP-" quote ]
//
// and rejects anything else with ErrMalformedIdentifier. Unprefixed symbols that
// are neither allow-listed crypto nor PERP-suffixed are placed on the default DEX.
func (c *Classifier) Parse(identifier string) (Asset, error) {
	raw := strings.TrimSpace(identifier)
	if raw == "" {
		return Asset{}, fmt.Errorf("%w: empty", ErrMalformedIdentifier)
	}
	parts := strings.Split(raw, ":")
	if len(parts) > 3 {
		return Asset{}, fmt.Errorf("%w: too many segments in %q", ErrMalformedIdentifier, raw)
	}
	for _, part := range parts {
		if !validSegment(part) {
			return Asset{}, fmt.Errorf("%w: bad segment in %q", ErrMalformedIdentifier, raw)
		}
	}

	if dex, ok := c.dex(parts[0]); ok {
		if len(parts) < 2 {
			return Asset{}, fmt.Errorf("%w: missing symbol after dex %q", ErrMalformedIdentifier, parts[0])
		}
		asset := Asset{Class: market.ClassRWA, Dex: dex, Symbol: strings.ToUpper(parts[1]), canonical: raw}
		if len(parts) == 3 {
			quote, err := parseQuote(parts[2])
			if err != nil {
				return Asset{}, err
			}
			asset.Quote = quote
			asset.canonical = parts[0] + ":" + parts[1]
		}
		return asset, nil
	}

	if len(parts) == 3 {
		return Asset{}, fmt.Errorf("%w: unknown dex %q", ErrMalformedIdentifier, parts[0])
	}
	symbol := strings.ToUpper(parts[0])
	if len(parts) == 2 {
		quote, err := parseQuote(parts[1])
		if err != nil {
			return Asset{}, err
		}
		return Asset{Class: market.ClassCrypto, Symbol: symbol, Quote: quote}, nil
	}
	if c.IsCrypto(symbol) || c.defaultDex == "" {
		return Asset{Class: market.ClassCrypto, Symbol: symbol}, nil
	}
	return Asset{Class: market.ClassRWA, Dex: c.defaultDex, Symbol: symbol}, nil
}

func parseQuote(segment string) (string, error) {
	upper := strings.ToUpper(segment)
	if !strings.HasPrefix(upper, "PERP-") || len(upper) == len("PERP-") {
		return "", fmt.Errorf("%w: expected PERP-<quote>, got %q", ErrMalformedIdentifier, segment)
	}
	return strings.TrimPrefix(upper, "PERP-"), nil
}
