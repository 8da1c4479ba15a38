package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_SetGetExpire(t *testing.T) {
	c := New(true, 0)
	defer c.Close()
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	etag := c.Set("ledger:summary", []byte(`{"a":1}`), time.Minute)
	body, got, ok := c.Get("ledger:summary")
	assert.True(t, ok)
	assert.Equal(t, etag, got)
	assert.Equal(t, `{"a":1}`, string(body))
	assert.Equal(t, 1, c.Len())

	now = now.Add(time.Minute)
	_, _, ok = c.Get("ledger:summary")
	assert.False(t, ok)

	c.sweep()
	assert.Empty(t, c.entries)
}

func TestCache_Disabled(t *testing.T) {
	c := New(false, time.Minute)
	defer c.Close()

	etag := c.Set("k", []byte("x"), time.Hour)
	assert.Equal(t, ETag([]byte("x")), etag)
	_, _, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_Invalidate(t *testing.T) {
	c := New(true, 0)
	defer c.Close()
	c.Set("ledger:summary", []byte("1"), time.Hour)
	c.Set("ledger:other", []byte("2"), time.Hour)
	c.Set("health", []byte("3"), time.Hour)

	assert.Equal(t, 2, c.Invalidate("ledger:"))
	assert.Equal(t, 1, c.Len())
}

func TestMatches(t *testing.T) {
	etag := ETag([]byte("body"))
	assert.False(t, Matches("", etag))
	assert.True(t, Matches("*", etag))
	assert.True(t, Matches(etag, etag))
	assert.True(t, Matches(`W/"nope", `+etag, etag))
	assert.False(t, Matches(`W/"nope"`, etag))
}
