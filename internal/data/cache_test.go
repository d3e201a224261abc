package data

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEvent is a test struct for serialization
type TestEvent struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Priority string `json:"priority"`
	Open     bool   `json:"open"`
}

func setupTestCache(t *testing.T) (CacheClient, *miniredis.Miniredis) {
	// Start miniredis server
	mr := miniredis.RunT(t)

	// Create Redis client
	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	// Create cache client
	cache := NewCacheClient(rdb)

	return cache, mr
}

func TestNewCacheClient(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewCacheClient(rdb)
	assert.NotNil(t, cache)
}

func TestCacheGet_Success(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	// Prepare test data
	event := TestEvent{
		ID:       "ev-123",
		Kind:     "drawdown_threshold",
		Priority: "high",
		Open:     true,
	}

	// Set value first
	key := BuildCacheKey(CacheKeyEvent, "ev-123")
	err := cache.Set(ctx, key, event, TTLEvent)
	require.NoError(t, err)

	// Get value
	var retrieved TestEvent
	err = cache.Get(ctx, key, &retrieved)
	require.NoError(t, err)

	// Verify data
	assert.Equal(t, event.ID, retrieved.ID)
	assert.Equal(t, event.Kind, retrieved.Kind)
	assert.Equal(t, event.Priority, retrieved.Priority)
	assert.Equal(t, event.Open, retrieved.Open)
}

func TestCacheGet_KeyNotFound(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	// Try to get non-existent key
	var retrieved TestEvent
	err := cache.Get(ctx, "nonexistent:key", &retrieved)

	// Should return ErrCacheNotFound
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

func TestCacheGet_InvalidJSON(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	// Set invalid JSON manually
	key := "test:invalid"
	_ = mr.Set(key, "invalid json {{{") // Intentionally set invalid data for testing

	// Try to get and deserialize
	var retrieved TestEvent
	err := cache.Get(ctx, key, &retrieved)

	// Should return error
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestCacheSet_Success(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	event := TestEvent{
		ID:       "ev-456",
		Kind:     "loss_streak",
		Priority: "normal",
		Open:     false,
	}

	key := BuildCacheKey(CacheKeyEvent, "ev-456")
	err := cache.Set(ctx, key, event, TTLEvent)
	require.NoError(t, err)

	// Verify key exists in miniredis
	exists := mr.Exists(key)
	assert.True(t, exists)
}

func TestCacheSet_WithTTL(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	event := TestEvent{ID: "ev-789", Kind: "risk_score_change"}

	key := BuildCacheKey(CacheKeyEvent, "ev-789")
	ttl := 1 * time.Second

	err := cache.Set(ctx, key, event, ttl)
	require.NoError(t, err)

	// Verify TTL is set in miniredis
	currentTTL := mr.TTL(key)
	assert.Greater(t, currentTTL, time.Duration(0))
	assert.LessOrEqual(t, currentTTL, ttl)
}

func TestCacheDelete_Success(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	// Set a value first
	event := TestEvent{ID: "ev-111", Kind: "manual_request"}
	key := BuildCacheKey(CacheKeyEvent, "ev-111")
	err := cache.Set(ctx, key, event, TTLEvent)
	require.NoError(t, err)

	// Verify key exists
	exists := mr.Exists(key)
	assert.True(t, exists)

	// Delete the key
	err = cache.Delete(ctx, key)
	require.NoError(t, err)

	// Verify key is deleted
	exists = mr.Exists(key)
	assert.False(t, exists)
}

func TestCacheDelete_NonExistentKey(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	// Delete non-existent key should not error
	err := cache.Delete(ctx, "nonexistent:key")
	assert.NoError(t, err)
}

func TestCacheExists_KeyExists(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	// Set a value
	event := TestEvent{ID: "ev-222", Kind: "backtest_divergence"}
	key := BuildCacheKey(CacheKeyParam, "max_drawdown_pct")
	err := cache.Set(ctx, key, event, TTLParam)
	require.NoError(t, err)

	// Check existence
	exists, err := cache.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCacheExists_KeyNotExists(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	// Check non-existent key
	exists, err := cache.Exists(ctx, "nonexistent:key")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBuildCacheKey(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		prefix   string
		parts    []string
	}{
		{
			name:     "event key",
			prefix:   CacheKeyEvent,
			parts:    []string{"ev-123"},
			expected: "review:event:ev-123",
		},
		{
			name:     "param key",
			prefix:   CacheKeyParam,
			parts:    []string{"max_drawdown_pct"},
			expected: "review:param:max_drawdown_pct",
		},
		{
			name:     "stats key",
			prefix:   CacheKeyStats,
			parts:    []string{"queue"},
			expected: "review:stats:queue",
		},
		{
			name:     "signal key",
			prefix:   CacheKeySignal,
			parts:    []string{"latest"},
			expected: "review:signal:latest",
		},
		{
			name:     "violations key",
			prefix:   CacheKeyViolations,
			parts:    []string{"alice"},
			expected: "review:violations:alice",
		},
		{
			name:     "param key with multiple parts",
			prefix:   CacheKeyParam,
			parts:    []string{"data_source_enabled", "binance"},
			expected: "review:param:data_source_enabled:binance",
		},
		{
			name:     "no parts",
			prefix:   CacheKeyEvent,
			parts:    []string{},
			expected: "review:event",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := BuildCacheKey(tt.prefix, tt.parts...)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestCacheClient_AllKeyTypes(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	tests := []struct {
		name   string
		prefix string
		id     string
		ttl    time.Duration
	}{
		{"event", CacheKeyEvent, "ev-1", TTLEvent},
		{"param", CacheKeyParam, "strategy_paused", TTLParam},
		{"stats", CacheKeyStats, "queue", TTLStats},
		{"signal", CacheKeySignal, "latest", TTLSignal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create test data
			data := map[string]interface{}{
				"id":   tt.id,
				"type": tt.name,
			}

			// Set cache
			key := BuildCacheKey(tt.prefix, tt.id)
			err := cache.Set(ctx, key, data, tt.ttl)
			require.NoError(t, err)

			// Get cache
			var retrieved map[string]interface{}
			err = cache.Get(ctx, key, &retrieved)
			require.NoError(t, err)
			assert.Equal(t, tt.id, retrieved["id"])
			assert.Equal(t, tt.name, retrieved["type"])

			// Check existence
			exists, err := cache.Exists(ctx, key)
			require.NoError(t, err)
			assert.True(t, exists)

			// Delete cache
			err = cache.Delete(ctx, key)
			require.NoError(t, err)

			// Verify deletion
			exists, err = cache.Exists(ctx, key)
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestCacheTTLExpiration(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	// Set cache with short TTL
	event := TestEvent{ID: "ev-expire", Kind: "trade_guard_duration"}
	key := BuildCacheKey(CacheKeyEvent, "ev-expire")
	shortTTL := 100 * time.Millisecond

	err := cache.Set(ctx, key, event, shortTTL)
	require.NoError(t, err)

	// Verify key exists
	exists, err := cache.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	// Fast forward time in miniredis
	mr.FastForward(200 * time.Millisecond)

	// Key should be expired now
	exists, err = cache.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	// Get should return ErrCacheNotFound
	var retrieved TestEvent
	err = cache.Get(ctx, key, &retrieved)
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

func TestCacheClient_NilRedisClient(t *testing.T) {
	// Create cache with nil Redis client
	cache := NewCacheClient(nil)
	ctx := context.Background()

	// All operations should return error gracefully
	event := TestEvent{ID: "ev-nil"}

	err := cache.Set(ctx, "key", event, TTLEvent)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis client is nil")

	var retrieved TestEvent
	err = cache.Get(ctx, "key", &retrieved)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis client is nil")

	err = cache.Delete(ctx, "key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis client is nil")

	exists, err := cache.Exists(ctx, "key")
	assert.Error(t, err)
	assert.False(t, exists)
	assert.Contains(t, err.Error(), "redis client is nil")
}

func TestCacheClient_ComplexStructSerialization(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	// Test complex nested struct
	type Annotation struct {
		Author string `json:"author"`
		Note   string `json:"note"`
	}

	type ComplexEvent struct {
		CreatedAt   time.Time         `json:"created_at"`
		Annotations []Annotation      `json:"annotations"`
		Evidence    map[string]string `json:"evidence"`
		ID          string            `json:"id"`
		Kind        string            `json:"kind"`
	}

	original := ComplexEvent{
		ID:   "ev-complex",
		Kind: "signal_contradiction",
		Annotations: []Annotation{
			{Author: "alice", Note: "sources disagree on direction"},
			{Author: "bob", Note: "holding until next sweep"},
		},
		Evidence: map[string]string{
			"source_a": "long",
			"source_b": "short",
		},
		CreatedAt: time.Now().Round(time.Second), // Round to second for JSON comparison
	}

	key := BuildCacheKey(CacheKeyEvent, "ev-complex")

	// Set
	err := cache.Set(ctx, key, original, TTLEvent)
	require.NoError(t, err)

	// Get
	var retrieved ComplexEvent
	err = cache.Get(ctx, key, &retrieved)
	require.NoError(t, err)

	// Verify all fields
	assert.Equal(t, original.ID, retrieved.ID)
	assert.Equal(t, original.Kind, retrieved.Kind)
	assert.Equal(t, len(original.Annotations), len(retrieved.Annotations))
	assert.Equal(t, original.Annotations[0].Note, retrieved.Annotations[0].Note)
	assert.Equal(t, original.Evidence["source_a"], retrieved.Evidence["source_a"])
	assert.True(t, original.CreatedAt.Equal(retrieved.CreatedAt))
}
