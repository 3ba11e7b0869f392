package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })

	require.NoError(t, Set("stats:overview", "{}", time.Minute))
	val, err := Get("stats:overview")
	require.NoError(t, err)
	assert.Equal(t, "{}", val)

	require.NoError(t, Set("counter", 42, 0))
	n, err := GetInt("counter")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	require.NoError(t, Delete("counter"))
	_, err = Get("counter")
	assert.ErrorIs(t, err, redis.Nil)

	mr.FastForward(2 * time.Minute)
	_, err = Get("stats:overview")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestNewFiberStorageUsesSeparateDatabase(t *testing.T) {
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })

	storage := NewFiberStorage(LimiterDatabase)
	t.Cleanup(func() { _ = storage.Close() })

	require.NoError(t, storage.Set("limiter:203.0.113.7", []byte("3"), time.Minute))
	got, err := storage.Get("limiter:203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), got)

	assert.True(t, mr.DB(LimiterDatabase).Exists("limiter:203.0.113.7"))
	assert.False(t, mr.Exists("limiter:203.0.113.7"))
}
