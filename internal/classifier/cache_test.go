package classifier_test

import (
	"context"
	"testing"
	"time"

	"energo-data/internal/classifier"
	"energo-data/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func newKVCache(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *classifier.KVCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, classifier.NewKVCache(store.NewRedisKV(rdb), ttl)
}

func TestKVCache_SetGetNormalizesAddress(t *testing.T) {
	_, cache := newKVCache(t, time.Hour)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "ул. Ленина, 1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Set(ctx, "ул. Ленина, 1", classifier.CachedResult{
		IsCommercial: true,
		PurposeLabel: "Магазин",
		Keyword:      "магазин",
	}))

	got, ok, err := cache.Get(ctx, "  УЛ.  Ленина,   1 ")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.IsCommercial)
	require.Equal(t, "Магазин", got.PurposeLabel)
}

func TestKVCache_Expires(t *testing.T) {
	mr, cache := newKVCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", classifier.CachedResult{PurposeLabel: "Жилой дом"}))
	mr.FastForward(2 * time.Minute)

	_, ok, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKVCache_Purge(t *testing.T) {
	mr, cache := newKVCache(t, 0)
	ctx := context.Background()

	require.NoError(t, mr.Set("unrelated", "1"))
	require.NoError(t, cache.Set(ctx, "a", classifier.CachedResult{}))
	require.NoError(t, cache.Set(ctx, "b", classifier.CachedResult{IsCommercial: true}))

	n, err := cache.Purge(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.True(t, mr.Exists("unrelated"))

	n, err = cache.Purge(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
