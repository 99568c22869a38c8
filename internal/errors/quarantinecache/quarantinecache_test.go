package quarantinecache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, nil), mr
}

func TestMarkAndIsQuarantined(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	quarantined, err := c.IsQuarantined(ctx, "com/example/Widget")
	require.NoError(t, err)
	require.False(t, quarantined)

	require.NoError(t, c.Mark(ctx, "com/example/Widget", time.Minute))

	quarantined, err = c.IsQuarantined(ctx, "com/example/Widget")
	require.NoError(t, err)
	require.True(t, quarantined)
}

func TestClearRemovesMark(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Mark(ctx, "com/example/Widget", time.Minute))
	require.NoError(t, c.Clear(ctx, "com/example/Widget"))

	quarantined, err := c.IsQuarantined(ctx, "com/example/Widget")
	require.NoError(t, err)
	require.False(t, quarantined)
}

func TestMarkExpiresAfterTTL(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Mark(ctx, "com/example/Widget", time.Second))
	mr.FastForward(2 * time.Second)

	quarantined, err := c.IsQuarantined(ctx, "com/example/Widget")
	require.NoError(t, err)
	require.False(t, quarantined)
}

func TestIsolationBetweenClasses(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Mark(ctx, "com/example/A", time.Minute))

	aQuarantined, err := c.IsQuarantined(ctx, "com/example/A")
	require.NoError(t, err)
	require.True(t, aQuarantined)

	bQuarantined, err := c.IsQuarantined(ctx, "com/example/B")
	require.NoError(t, err)
	require.False(t, bQuarantined)
}
