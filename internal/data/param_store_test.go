package data

import (
	"context"
	"testing"
	"time"

	"github.com/cuongccna/ProjectBotTrading/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupParamStore(t *testing.T) (*ParamStoreRepo, sqlmock.Sqlmock, *miniredis.Miniredis, func()) {
	gormDB, mock, dbCleanup := setupTestDB(t)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewParamStore(gormDB, NewCacheClient(rdb), log.DefaultLogger)

	cleanup := func() {
		rdb.Close()
		mr.Close()
		dbCleanup()
	}
	return store, mock, mr, cleanup
}

var paramColumns = []string{"param_key", "value", "version", "expires_at", "updated_at"}

func TestParamGet_UnsetKeyReadsEmpty(t *testing.T) {
	store, mock, _, cleanup := setupParamStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM `live_parameters`").
		WillReturnRows(sqlmock.NewRows(paramColumns))

	val, err := store.Get(context.Background(), "max_drawdown_pct")
	require.NoError(t, err)
	assert.Empty(t, val)
}

func TestParamGet_CachesAfterRead(t *testing.T) {
	store, mock, mr, cleanup := setupParamStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM `live_parameters`").
		WillReturnRows(sqlmock.NewRows(paramColumns).
			AddRow("max_drawdown_pct", "0.1", 3, nil, time.Now().UTC()))

	val, err := store.Get(context.Background(), "max_drawdown_pct")
	require.NoError(t, err)
	assert.Equal(t, "0.1", val)
	assert.True(t, mr.Exists(BuildCacheKey(CacheKeyParam, "max_drawdown_pct")))

	// Second read hits the cache, no further SQL expected
	again, err := store.Get(context.Background(), "max_drawdown_pct")
	require.NoError(t, err)
	assert.Equal(t, "0.1", again)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParamGet_ExpiredValueReadsAsUnset(t *testing.T) {
	store, mock, mr, cleanup := setupParamStore(t)
	defer cleanup()

	expired := time.Now().UTC().Add(-time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM `live_parameters`").
		WillReturnRows(sqlmock.NewRows(paramColumns).
			AddRow("strategy_paused", "true", 2, expired, time.Now().UTC()))

	val, err := store.Get(context.Background(), "strategy_paused")
	require.NoError(t, err)
	assert.Empty(t, val)
	// Expired values must not be cached
	assert.False(t, mr.Exists(BuildCacheKey(CacheKeyParam, "strategy_paused")))
}

func TestParamApply_UpsertsAndInvalidatesCache(t *testing.T) {
	store, mock, mr, cleanup := setupParamStore(t)
	defer cleanup()

	// Seed a stale cached value that Apply must drop
	require.NoError(t, mr.Set(BuildCacheKey(CacheKeyParam, "max_drawdown_pct"), `"0.1"`))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `live_parameters`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Apply(context.Background(), &model.ParameterChange{
		ID:          "pc-1",
		DecisionID:  "dec-1",
		ParamKey:    "max_drawdown_pct",
		BeforeValue: "0.1",
		AfterValue:  "0.15",
		EffectiveAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(BuildCacheKey(CacheKeyParam, "max_drawdown_pct")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnabledDataSources_FiltersDisabled(t *testing.T) {
	store, mock, _, cleanup := setupParamStore(t)
	defer cleanup()

	// binance: never toggled, counts as enabled
	mock.ExpectQuery("SELECT (.+) FROM `live_parameters`").
		WillReturnRows(sqlmock.NewRows(paramColumns))
	// coinbase: explicitly disabled
	mock.ExpectQuery("SELECT (.+) FROM `live_parameters`").
		WillReturnRows(sqlmock.NewRows(paramColumns).
			AddRow("data_source_enabled:coinbase", "false", 2, nil, time.Now().UTC()))
	// glassnode: explicitly enabled
	mock.ExpectQuery("SELECT (.+) FROM `live_parameters`").
		WillReturnRows(sqlmock.NewRows(paramColumns).
			AddRow("data_source_enabled:glassnode", "true", 1, nil, time.Now().UTC()))

	enabled, err := store.EnabledDataSources(context.Background(),
		[]string{"binance", "coinbase", "glassnode"})
	require.NoError(t, err)
	assert.Equal(t, []string{"binance", "glassnode"}, enabled)
}
