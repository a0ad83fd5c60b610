// Package fundingpersist keeps a bounded funding-rate history per market in Redis.
package fundingpersist

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeromicro/go-zero/core/logx"

	cachekeys "bitfrost-api/internal/cache"
	"bitfrost-api/pkg/market"
)

// MaxPoints caps the length of one history list.
const MaxPoints = 500

// KV is the subset of *redis.Redis the store needs.
type KV interface {
	GetCtx(ctx context.Context, key string) (string, error)
	SetexCtx(ctx context.Context, key, value string, seconds int) error
}

// Store implements market.FundingHistory. Appends are read-modify-write
// without a transaction; concurrent writers to one market can lose points.
type Store struct {
	kv        KV
	retention time.Duration
	maxPoints int
	now       func() time.Time
}

var _ market.FundingHistory = (*Store)(nil)

// Option customises a Store.
type Option func(*Store)

// WithClock injects the time source used for pruning.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMaxPoints overrides the list cap.
func WithMaxPoints(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxPoints = n
		}
	}
}

// NewStore returns a store that keeps points for retention. Returns nil when kv is nil.
func NewStore(kv KV, ttl cachekeys.TTLSet, opts ...Option) *Store {
	if kv == nil {
		return nil
	}
	s := &Store{
		kv:        kv,
		retention: cachekeys.FundingHistoryTTL(ttl),
		maxPoints: MaxPoints,
		now:       time.Now,
	}
	if s.retention <= 0 {
		s.retention = 7 * 24 * time.Hour
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append adds point to the history of (dex, symbol), dropping points older
// than the retention window and the oldest beyond the cap.
func (s *Store) Append(ctx context.Context, dex, symbol string, point market.FundingPoint) error {
	key := cachekeys.FundingHistoryKey(dex, symbol)
	points, err := s.load(ctx, key)
	if err != nil {
		// a corrupt list is replaced rather than blocking new samples
		logx.WithContext(ctx).Errorf("fundingpersist: reset history key=%s err=%v", key, err)
		points = nil
	}
	if point.Time == 0 {
		point.Time = s.now().UnixMilli()
	}
	points = s.trim(append(points, point))

	payload, err := msgpack.Marshal(points)
	if err != nil {
		return fmt.Errorf("fundingpersist: encode key=%s: %w", key, err)
	}
	seconds := int(math.Ceil(s.retention.Seconds()))
	if err := s.kv.SetexCtx(ctx, key, string(payload), seconds); err != nil {
		return fmt.Errorf("fundingpersist: write key=%s: %w", key, err)
	}
	return nil
}

// History returns the retained points of (dex, symbol), oldest first.
func (s *Store) History(ctx context.Context, dex, symbol string) ([]market.FundingPoint, error) {
	key := cachekeys.FundingHistoryKey(dex, symbol)
	points, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.trim(points), nil
}

func (s *Store) load(ctx context.Context, key string) ([]market.FundingPoint, error) {
	raw, err := s.kv.GetCtx(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fundingpersist: read key=%s: %w", key, err)
	}
	if raw == "" {
		return nil, nil
	}
	var points []market.FundingPoint
	if err := msgpack.Unmarshal([]byte(raw), &points); err != nil {
		return nil, fmt.Errorf("fundingpersist: decode key=%s: %w", key, err)
	}
	return points, nil
}

// trim sorts by time and applies the retention window and the cap.
func (s *Store) trim(points []market.FundingPoint) []market.FundingPoint {
	sort.SliceStable(points, func(i, j int) bool { return points[i].Time < points[j].Time })
	cutoff := s.now().Add(-s.retention).UnixMilli()
	start := sort.Search(len(points), func(i int) bool { return points[i].Time >= cutoff })
	points = points[start:]
	if len(points) > s.maxPoints {
		points = points[len(points)-s.maxPoints:]
	}
	out := make([]market.FundingPoint, len(points))
	copy(out, points)
	return out
}
