// Package symbol classifies asset identifiers of the form [dex:]SYMBOL[:PERP-QUOTE]
// into crypto perpetuals and HIP-3 real-world-asset markets.
package symbol

import (
	"errors"
	"strings"

	"bitfrost-api/pkg/market"
)

// ErrMalformedIdentifier is returned by Parse for input outside the identifier grammar.
var ErrMalformedIdentifier = errors.New("symbol: malformed identifier")

// DefaultCryptoSymbols is the crypto allow-list used when none is configured.
var DefaultCryptoSymbols = []string{
	"BTC", "ETH", "SOL", "HYPE", "XRP", "DOGE", "AVAX", "LINK", "BNB", "ADA",
	"DOT", "LTC", "ARB", "OP", "SUI", "APT", "NEAR", "ATOM", "TIA", "SEI",
	"INJ", "WIF", "KPEPE", "KBONK", "TRX", "TON", "AAVE", "UNI", "ENA", "PENDLE",
}

// Classification is the result of classifying one identifier.
type Classification struct {
	Class       market.AssetClass `json:"assetClass"`
	OwnerDex    string            `json:"ownerDex,omitempty"`
	CanonicalID string            `json:"canonicalId"`
}

// IsRWA reports whether the identifier belongs to a HIP-3 DEX.
func (c Classification) IsRWA() bool {
	return c.Class == market.ClassRWA
}

// Classifier holds the enumerated DEX codes, the crypto allow-list and the default DEX.
// The zero value is not usable; construct with NewClassifier.
type Classifier struct {
	dexes      map[string]struct{}
	crypto     map[string]struct{}
	defaultDex string
}

// Option customises a Classifier.
type Option func(*Classifier)

// WithDexes replaces the recognised DEX codes.
func WithDexes(dexes ...string) Option {
	return func(c *Classifier) {
		if len(dexes) == 0 {
			return
		}
		c.dexes = make(map[string]struct{}, len(dexes))
		for _, dex := range dexes {
			if dex = strings.ToLower(strings.TrimSpace(dex)); dex != "" {
				c.dexes[dex] = struct{}{}
			}
		}
	}
}

// WithCryptoSymbols replaces the crypto allow-list.
func WithCryptoSymbols(symbols ...string) Option {
	return func(c *Classifier) {
		if len(symbols) == 0 {
			return
		}
		c.crypto = make(map[string]struct{}, len(symbols))
		for _, sym := range symbols {
			if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
				c.crypto[sym] = struct{}{}
			}
		}
	}
}

// WithDefaultDex sets the DEX that unprefixed, non-crypto symbols are assigned to.
func WithDefaultDex(dex string) Option {
	return func(c *Classifier) {
		c.defaultDex = strings.ToLower(strings.TrimSpace(dex))
	}
}

// NewClassifier constructs a classifier seeded with the default DEX set and allow-list.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{defaultDex: market.DefaultDex}
	WithDexes(market.DefaultDexes...)(c)
	WithCryptoSymbols(DefaultCryptoSymbols...)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromConfig builds a classifier from the market configuration.
func FromConfig(cfg *market.Config) *Classifier {
	if cfg == nil {
		return NewClassifier()
	}
	return NewClassifier(
		WithDexes(cfg.Dexes...),
		WithCryptoSymbols(cfg.CryptoSymbols...),
		WithDefaultDex(cfg.DefaultDex),
	)
}

var defaultClassifier = NewClassifier()

// Classify classifies identifier with the default classifier, assigning unknown
// symbols to defaultDex.
func Classify(identifier, defaultDex string) Classification {
	return defaultClassifier.ClassifyWithDefault(identifier, defaultDex)
}

// Classify classifies identifier using the classifier's default DEX.
func (c *Classifier) Classify(identifier string) Classification {
	return c.ClassifyWithDefault(identifier, c.defaultDex)
}

// ClassifyWithDefault never fails: blank or malformed input comes back as crypto
// with the raw string upper-cased.
func (c *Classifier) ClassifyWithDefault(identifier, defaultDex string) Classification {
	raw := strings.TrimSpace(identifier)
	fallback := Classification{Class: market.ClassCrypto, CanonicalID: strings.ToUpper(raw)}
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ":")
	first := parts[0]
	if !validSegment(first) {
		return fallback
	}

	if dex, ok := c.dex(first); ok {
		// The DEX prefix is part of the upstream name and is kept verbatim.
		if len(parts) < 2 || !validSegment(parts[1]) {
			return fallback
		}
		return Classification{Class: market.ClassRWA, OwnerDex: dex, CanonicalID: raw}
	}

	upper := strings.ToUpper(first)
	if c.IsCrypto(upper) || (len(parts) > 1 && strings.Contains(strings.ToUpper(parts[1]), "PERP")) {
		return Classification{Class: market.ClassCrypto, CanonicalID: upper}
	}

	defaultDex = strings.ToLower(strings.TrimSpace(defaultDex))
	if defaultDex == "" {
		return fallback
	}
	return Classification{Class: market.ClassRWA, OwnerDex: defaultDex, CanonicalID: defaultDex + ":" + upper}
}

// IsDex reports whether code is a recognised DEX code (case-insensitive).
func (c *Classifier) IsDex(code string) bool {
	_, ok := c.dex(code)
	return ok
}

// IsCrypto reports whether symbol is on the crypto allow-list (case-insensitive).
func (c *Classifier) IsCrypto(symbol string) bool {
	_, ok := c.crypto[strings.ToUpper(strings.TrimSpace(symbol))]
	return ok
}

// DefaultDex returns the DEX used for unprefixed RWA symbols.
func (c *Classifier) DefaultDex() string {
	return c.defaultDex
}

func (c *Classifier) dex(segment string) (string, bool) {
	code := strings.ToLower(strings.TrimSpace(segment))
	_, ok := c.dexes[code]
	return code, ok
}

// BareSymbol strips a leading DEX prefix and any suffix, returning the upper-cased symbol.
// "xyz:gold" -> "GOLD", "BTC:PERP-USD" -> "BTC".
func (c *Classifier) BareSymbol(identifier string) string {
	parts := strings.Split(strings.TrimSpace(identifier), ":")
	if len(parts) > 1 && c.IsDex(parts[0]) {
		return strings.ToUpper(strings.TrimSpace(parts[1]))
	}
	return strings.ToUpper(strings.TrimSpace(parts[0]))
}

func validSegment(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == '/':
		default:
			return false
		}
	}
	return true
}
