package marketpersist

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "bitfrost-api/internal/cache"
	"bitfrost-api/pkg/market"
)

type recordingKV struct {
	key     string
	value   string
	seconds int
	err     error
}

func (r *recordingKV) SetexCtx(ctx context.Context, key, value string, seconds int) error {
	r.key, r.value, r.seconds = key, value, seconds
	return r.err
}

func newMockService(t *testing.T, kv KV) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	svc := NewService(Config{
		SQLConn: sqlx.NewSqlConnFromDB(db),
		KV:      kv,
		TTL:     cachekeys.TTLSet{Metrics: 90 * time.Second},
	})
	require.NotNil(t, svc)
	return svc, mock
}

func TestNewServiceRequiresConn(t *testing.T) {
	assert.Nil(t, NewService(Config{}))
	var svc *Service
	assert.NoError(t, svc.RecordSnapshot(context.Background(), market.MarketSnapshot{Symbol: "BTC", Source: market.SourceLive}))
}

func TestUpsertAssetsTransaction(t *testing.T) {
	svc, mock := newMockService(t, nil)
	list := market.EmptyAssetList(market.SourceLive, "")
	list.Add(market.CategoryCommodities, market.AssetRecord{Symbol: "xyz:GOLD", Price: 5000, OwnerDex: "xyz", Source: market.SourceLive})
	list.Add(market.CategoryStocks, market.AssetRecord{Symbol: "xyz:TSLA", Price: 250, OwnerDex: "xyz", Source: market.SourceLive})
	list.Add(market.CategoryIndices, market.AssetRecord{Symbol: "flx:SPX", OwnerDex: "flx", Source: market.SourceMock})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO public.hip3_assets").
		WithArgs("xyz", "xyz:GOLD", "commodities", 5000.0, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "live").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO public.hip3_assets").
		WithArgs("xyz", "xyz:TSLA", "stocks", 250.0, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "live").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.UpsertAssets(context.Background(), list))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAssetsRollsBack(t *testing.T) {
	svc, mock := newMockService(t, nil)
	list := market.EmptyAssetList(market.SourceLive, "")
	list.Add(market.CategoryCommodities, market.AssetRecord{Symbol: "xyz:GOLD", OwnerDex: "xyz", Source: market.SourceLive})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO public.hip3_assets").WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	assert.Error(t, svc.UpsertAssets(context.Background(), list))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAssetsSkipsMockList(t *testing.T) {
	svc, mock := newMockService(t, nil)
	list := market.EmptyAssetList(market.SourceMock, "all dexes failed")
	list.Add(market.CategoryStocks, market.AssetRecord{Symbol: "xyz:TSLA", Source: market.SourceMock})

	require.NoError(t, svc.UpsertAssets(context.Background(), list))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSnapshot(t *testing.T) {
	kv := &recordingKV{}
	svc, mock := newMockService(t, kv)
	snap := market.MarketSnapshot{
		Symbol:    "BTC",
		MarkPrice: 60000,
		Source:    market.SourceLive,
		UpdatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	args := make([]driver.Value, 0, 20)
	args = append(args, "main", "BTC", 60000.0)
	for i := 0; i < 15; i++ {
		args = append(args, sqlmock.AnyArg())
	}
	args = append(args, snap.UpdatedAt.UnixMilli(), sqlmock.AnyArg())
	mock.ExpectExec("INSERT INTO public.market_snapshot_latest").
		WithArgs(args...).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.RecordSnapshot(context.Background(), snap))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, cachekeys.MetricsKey("main", "BTC"), kv.key)
	assert.Equal(t, 90, kv.seconds)
	assert.Contains(t, kv.value, `"markPrice":60000`)
}

func TestRecordSnapshotSkipsMock(t *testing.T) {
	kv := &recordingKV{}
	svc, mock := newMockService(t, kv)
	require.NoError(t, svc.RecordSnapshot(context.Background(), market.MockSnapshot("xyz:GOLD", "xyz", "down")))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, kv.key)
}

func TestRecordSnapshotCacheFailureIsLogged(t *testing.T) {
	kv := &recordingKV{err: errors.New("redis down")}
	svc, mock := newMockService(t, kv)
	mock.ExpectExec("INSERT INTO public.market_snapshot_latest").WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, svc.RecordSnapshot(context.Background(), market.MarketSnapshot{Symbol: "xyz:GOLD", Dex: "xyz", Source: market.SourceLive}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
