package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheExpires(t *testing.T) {
	c := NewMemoryCache()
	clock := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "reference:regions", []byte("[]"), time.Minute))
	v, ok, err := c.Get(ctx, "reference:regions")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("[]"), v)

	clock = clock.Add(time.Minute)
	_, ok, err = c.Get(ctx, "reference:regions")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheDeletePrefix(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "reference:jobs:region=1", []byte("a"), 0))
	require.NoError(t, c.Set(ctx, "reference:jobs:region=2", []byte("b"), 0))
	require.NoError(t, c.Set(ctx, "reference:regions", []byte("c"), 0))

	require.NoError(t, c.DeletePrefix(ctx, "reference:jobs"))

	_, ok, _ := c.Get(ctx, "reference:jobs:region=1")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "reference:regions")
	assert.True(t, ok)
}

func TestMemoryLimiterPerKey(t *testing.T) {
	l := NewMemoryLimiter()

	assert.True(t, l.Allow("10.0.0.1", 2, time.Hour))
	assert.True(t, l.Allow("10.0.0.1", 2, time.Hour))
	assert.False(t, l.Allow("10.0.0.1", 2, time.Hour))
	assert.True(t, l.Allow("10.0.0.2", 2, time.Hour))
	assert.True(t, l.Allow("", 2, time.Hour))
}
