package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuongccna/ProjectBotTrading/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// RedisSignalStore implements biz.SignalStore. It keeps only the most
// recent snapshot, in Redis with a TTL, so the scheduler can re-run the
// trigger rules between ingest calls. Losing the snapshot is harmless:
// the next ingest replaces it.
type RedisSignalStore struct {
	cache  CacheClient
	logger *log.Helper
}

// NewSignalStore creates the snapshot store.
func NewSignalStore(cache CacheClient, logger log.Logger) *RedisSignalStore {
	return &RedisSignalStore{
		cache:  cache,
		logger: log.NewHelper(logger),
	}
}

// SaveLatest replaces the stored snapshot.
func (s *RedisSignalStore) SaveLatest(ctx context.Context, snap *model.SignalSnapshot) error {
	key := BuildCacheKey(CacheKeySignal, "latest")
	if err := s.cache.Set(ctx, key, snap, TTLSignal); err != nil {
		return fmt.Errorf("save latest signal snapshot: %w", err)
	}
	return nil
}

// Latest returns the stored snapshot, or nil when none is present.
func (s *RedisSignalStore) Latest(ctx context.Context) (*model.SignalSnapshot, error) {
	key := BuildCacheKey(CacheKeySignal, "latest")
	var snap model.SignalSnapshot
	if err := s.cache.Get(ctx, key, &snap); err != nil {
		if errors.Is(err, ErrCacheNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load latest signal snapshot: %w", err)
	}
	return &snap, nil
}
