package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/feedbackinsights/internal/domain/providers"
)

func TestMemoryAdapter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryAdapter(time.Minute)

	_, err := adapter.Get(ctx, "feedback:list:missing")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)

	value := []byte(`{"total":1}`)
	require.NoError(t, adapter.Set(ctx, "feedback:list:a", value, time.Minute))

	// Mutating the caller's slice must not leak into the cache.
	value[0] = 'X'

	got, err := adapter.Get(ctx, "feedback:list:a")
	require.NoError(t, err)
	assert.Equal(t, `{"total":1}`, string(got))

	exists, err := adapter.Exists(ctx, "feedback:list:a")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, adapter.Delete(ctx, "feedback:list:a"))
	exists, err = adapter.Exists(ctx, "feedback:list:a")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryAdapter_Expiry(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryAdapter(time.Minute)

	require.NoError(t, adapter.Set(ctx, "short", []byte("v"), 10*time.Millisecond))
	require.NoError(t, adapter.Set(ctx, "forever", []byte("v"), 0))

	time.Sleep(30 * time.Millisecond)

	_, err := adapter.Get(ctx, "short")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)

	got, err := adapter.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}

func TestRedisAdapter_UnreachableServerIsNotAMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	adapter := newRedisAdapterFromClient(client)
	ctx := context.Background()

	_, err := adapter.Get(ctx, "feedback:list:gen")
	require.Error(t, err)
	assert.NotErrorIs(t, err, providers.ErrCacheMiss)
	assert.Contains(t, err.Error(), "failed to get feedback:list:gen from cache")

	err = adapter.Set(ctx, "feedback:list:gen", []byte("1"), time.Second)
	require.Error(t, err)

	_, err = adapter.Exists(ctx, "feedback:list:gen")
	require.Error(t, err)
}
