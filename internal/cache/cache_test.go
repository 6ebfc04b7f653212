package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Stock int64  `json:"stock"`
}

func TestMemoryCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.Set(ctx, ProductKey(1), sample{ID: 1, Name: "Laptop", Stock: 3}, 0))

	var got sample
	found, err := c.Get(ctx, ProductKey(1), &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, sample{ID: 1, Name: "Laptop", Stock: 3}, got)

	require.NoError(t, c.Delete(ctx, ProductKey(1), ProductKey(2)))
	found, err = c.Get(ctx, ProductKey(1), &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	require.NoError(t, c.Set(ctx, "k", 1, time.Minute))
	var v int
	found, _ := c.Get(ctx, "k", &v)
	assert.True(t, found)

	clock = clock.Add(time.Minute)
	found, _ = c.Get(ctx, "k", &v)
	assert.False(t, found)
}

func TestMemoryCache_ClaimOnce(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	ok, err := c.Claim(ctx, IdempotencyKey("abc"), time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Claim(ctx, IdempotencyKey("abc"), time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	clock = clock.Add(2 * time.Hour)
	ok, err = c.Claim(ctx, IdempotencyKey("abc"), time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "product:42", ProductKey(42))
	assert.Equal(t, "idempotent-key:xyz", IdempotencyKey("xyz"))
}
