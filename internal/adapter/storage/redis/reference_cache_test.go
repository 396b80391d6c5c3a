package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*ReferenceCache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	return NewReferenceCache(client), s
}

func TestReferenceCache_SeenUnmarked(t *testing.T) {
	cache, _ := newTestCache(t)

	seen, err := cache.Seen(context.Background(), "user-1:DEPOSIT:REF-1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestReferenceCache_MarkThenSeen(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Mark(ctx, "user-1:SPEND:ORDER-9", time.Minute))

	seen, err := cache.Seen(ctx, "user-1:SPEND:ORDER-9")
	require.NoError(t, err)
	assert.True(t, seen)

	// Same reference under a different entry type is a distinct key.
	seen, err = cache.Seen(ctx, "user-1:REFUND:ORDER-9")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestReferenceCache_MarkIsIdempotent(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Mark(ctx, "user-2:DEPOSIT:REF-7", time.Minute))
	require.NoError(t, cache.Mark(ctx, "user-2:DEPOSIT:REF-7", time.Minute))

	seen, err := cache.Seen(ctx, "user-2:DEPOSIT:REF-7")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestReferenceCache_Expiry(t *testing.T) {
	cache, s := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Mark(ctx, "user-3:DEPOSIT:REF-1", time.Second))
	s.FastForward(2 * time.Second)

	seen, err := cache.Seen(ctx, "user-3:DEPOSIT:REF-1")
	require.NoError(t, err)
	assert.False(t, seen, "expired marker falls back to the authoritative log query")
}
