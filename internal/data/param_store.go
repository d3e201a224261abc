package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuongccna/ProjectBotTrading/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LiveParameterModel is the GORM model for the live_parameters table.
// This is the versioned key/value view of the trading configuration that
// authorized decisions mutate; the execution engine reads the same table.
type LiveParameterModel struct {
	ParamKey  string     `gorm:"primaryKey;column:param_key;size:100"`
	Value     string     `gorm:"column:value;size:255;not null"`
	Version   int64      `gorm:"column:version;default:1;not null"` // bumped on every write
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (LiveParameterModel) TableName() string {
	return "live_parameters"
}

// ParamStoreRepo implements biz.ParamStore on MySQL with a short-TTL Redis
// cache in front. The cache TTL bounds how stale a read can be after a
// propagation failure.
type ParamStoreRepo struct {
	db     *gorm.DB
	cache  CacheClient
	logger *log.Helper
}

// NewParamStore creates the live parameter store.
func NewParamStore(db *gorm.DB, cache CacheClient, logger log.Logger) *ParamStoreRepo {
	return &ParamStoreRepo{
		db:     db,
		cache:  cache,
		logger: log.NewHelper(logger),
	}
}

// Get returns the current value for key. An unset key yields an empty
// string, not an error; expired values read as unset.
func (p *ParamStoreRepo) Get(ctx context.Context, key string) (string, error) {
	cacheKey := BuildCacheKey(CacheKeyParam, key)
	var cached string
	if err := p.cache.Get(ctx, cacheKey, &cached); err == nil {
		return cached, nil
	}

	var row LiveParameterModel
	if err := p.db.WithContext(ctx).First(&row, "param_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("get live parameter %s: %w", key, err)
	}
	if row.ExpiresAt != nil && row.ExpiresAt.Before(time.Now().UTC()) {
		return "", nil
	}

	if err := p.cache.Set(ctx, cacheKey, row.Value, TTLParam); err != nil {
		p.logger.Debugw("msg", "parameter cache set failed", "param_key", key, "error", err)
	}
	return row.Value, nil
}

// Apply upserts the parameter value from a committed decision and bumps
// the version so readers can detect the change.
func (p *ParamStoreRepo) Apply(ctx context.Context, pc *model.ParameterChange) error {
	row := &LiveParameterModel{
		ParamKey:  pc.ParamKey,
		Value:     pc.AfterValue,
		Version:   1,
		ExpiresAt: pc.ExpiresAt,
	}
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "param_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      pc.AfterValue,
			"version":    gorm.Expr("version + 1"),
			"expires_at": pc.ExpiresAt,
		}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("apply live parameter %s: %w", pc.ParamKey, err)
	}

	if err := p.cache.Delete(ctx, BuildCacheKey(CacheKeyParam, pc.ParamKey)); err != nil {
		p.logger.Debugw("msg", "parameter cache invalidation failed",
			"param_key", pc.ParamKey, "error", err)
	}
	return nil
}

// EnabledDataSources returns the known sources not explicitly disabled.
// A source with no row has never been toggled and counts as enabled.
func (p *ParamStoreRepo) EnabledDataSources(ctx context.Context, known []string) ([]string, error) {
	var enabled []string
	for _, source := range known {
		val, err := p.Get(ctx, "data_source_enabled:"+source)
		if err != nil {
			return nil, err
		}
		if val == "false" {
			continue
		}
		enabled = append(enabled, source)
	}
	return enabled, nil
}
