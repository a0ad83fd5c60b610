package cache

import (
	"strings"
	"time"

	"bitfrost-api/internal/config"
)

// Namespace is the key prefix for the Bitfrost application.
const Namespace = "bitfrost"

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Aggregate        time.Duration
	Metrics          time.Duration
	FundingRetention time.Duration
}

// NewTTLSet converts config TTLs into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Aggregate:        durationOrDefault(cfg.Aggregate, time.Second, 30*time.Second),
		Metrics:          durationOrDefault(cfg.Metrics, time.Second, 90*time.Second),
		FundingRetention: durationOrDefault(cfg.FundingRetention, time.Hour, 7*24*time.Hour),
	}
}

func durationOrDefault(value int, unit, fallback time.Duration) time.Duration {
	if value < 0 {
		return 0
	}
	if value == 0 {
		return fallback
	}
	return time.Duration(value) * unit
}

// MainDex stands in for the empty DEX code of the main crypto venue.
const MainDex = "main"

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// --- Aggregate & Metrics Keys -----------------------------------------------

// HIP3AssetsKey keys the aggregated asset list of a DEX list. Order is kept, so
// [xyz flx] and [flx xyz] are cached separately.
func HIP3AssetsKey(dexes ...string) string {
	clean := make([]string, 0, len(dexes))
	for _, dex := range dexes {
		if dex = strings.ToLower(strings.TrimSpace(dex)); dex != "" {
			clean = append(clean, dex)
		}
	}
	return formatKey("hip3", "assets", strings.Join(clean, ","))
}

// MetricsKey keys a resolved snapshot. The canonical id keeps its case because
// the DEX prefix must reach the upstream verbatim.
func MetricsKey(dex, canonicalID string) string {
	return formatKey("metrics", dexSegment(dex), canonicalID)
}

// --- Funding Keys -----------------------------------------------------------

// FundingHistoryKey holds the msgpack-encoded funding list of one market.
func FundingHistoryKey(dex, symbol string) string {
	return formatKey("funding", dexSegment(dex), strings.ToUpper(symbol))
}

// dexSegment keeps a placeholder for the main venue so that an empty dex never
// collapses into the next key part.
func dexSegment(dex string) string {
	if dex = strings.ToLower(strings.TrimSpace(dex)); dex != "" {
		return dex
	}
	return MainDex
}

// IngestLockKey guards a single ingest tick across replicas.
func IngestLockKey() string {
	return formatKey("lock", "ingest")
}

// --- TTL Helpers ------------------------------------------------------------

// FundingHistoryTTL returns the expiry for funding lists.
func FundingHistoryTTL(ttl TTLSet) time.Duration {
	return ttl.FundingRetention
}

// IngestLockTTL returns the lock expiry for an ingest tick with the given interval.
func IngestLockTTL(interval time.Duration) time.Duration {
	if interval <= 0 {
		return 30 * time.Second
	}
	return interval / 2
}
