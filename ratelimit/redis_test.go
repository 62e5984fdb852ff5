package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRedisStore connects to a local Redis instance.
// Skip with: go test -short
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping Redis integration test")
	}

	store := NewRedisStore(RedisConfig{
		Addr: "localhost:6379",
		DB:   15, // Use separate DB for tests
		Name: fmt.Sprintf("test-%d", time.Now().UnixNano()),
	})

	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		store.Close()
		t.Skip("Redis not available:", err)
	}

	t.Cleanup(func() {
		store.Reset(context.Background())
		store.Close()
	})
	return store
}

func TestRedisStore_Reserve(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, wait, err := store.Reserve(ctx, 1, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Zero(t, wait)
	}

	ok, wait, err := store.Reserve(ctx, 1, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "fourth unit does not fit")
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, time.Minute)
}

func TestRedisStore_SharedAcrossLimiters(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	first, err := New(2, 150*time.Millisecond, WithStore(store))
	require.NoError(t, err)
	second, err := New(2, 150*time.Millisecond, WithStore(store))
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, first.Acquire(ctx, 1))
	require.NoError(t, second.Acquire(ctx, 1))

	// Both limiters share the window, so the third unit waits for it to expire.
	require.NoError(t, first.Acquire(ctx, 1))
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}
