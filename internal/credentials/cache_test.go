package credentials

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheSetGetClear(t *testing.T) {
	c := NewCache(24 * time.Hour)

	_, ok := c.Get("tenant-a")
	require.False(t, ok)

	c.Set("tenant-a", "key-a")
	v, ok := c.Get("tenant-a")
	require.True(t, ok)
	require.Equal(t, "key-a", v)

	c.Clear("tenant-a")
	_, ok = c.Get("tenant-a")
	require.False(t, ok)
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewCache(24 * time.Hour)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("tenant-a", "key-a")

	now = now.Add(23 * time.Hour)
	_, ok := c.Get("tenant-a")
	require.True(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok = c.Get("tenant-a")
	require.False(t, ok)

	// Re-setting starts a fresh TTL.
	c.Set("tenant-a", "key-b")
	v, ok := c.Get("tenant-a")
	require.True(t, ok)
	require.Equal(t, "key-b", v)
}

func TestCacheGlobalKeyNeverExpires(t *testing.T) {
	c := NewCache(time.Hour)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(GlobalKey, "global-key")

	now = now.Add(1000 * time.Hour)
	v, ok := c.Get(GlobalKey)
	require.True(t, ok)
	require.Equal(t, "global-key", v)
}

func TestCacheTenantIsolation(t *testing.T) {
	c := NewCache(time.Hour)
	c.Set("tenant-a", "key-a")
	c.Set("tenant-b", "key-b")

	v, _ := c.Get("tenant-a")
	require.Equal(t, "key-a", v)
	v, _ = c.Get("tenant-b")
	require.Equal(t, "key-b", v)

	c.Clear("tenant-a")
	_, ok := c.Get("tenant-a")
	require.False(t, ok)
	_, ok = c.Get("tenant-b")
	require.True(t, ok)
}

func TestCacheStatusFor(t *testing.T) {
	c := NewCache(time.Hour)

	st := c.StatusFor("tenant-a")
	require.False(t, st.Present)

	c.Set(GlobalKey, "global-key-value")
	st = c.StatusFor("tenant-a")
	require.True(t, st.Present)
	require.True(t, st.Global)
	require.Equal(t, "global-k", st.Preview)

	c.Set("tenant-a", "tenant-key-value")
	st = c.StatusFor("tenant-a")
	require.True(t, st.Present)
	require.False(t, st.Global)
	require.Equal(t, "tenant-k", st.Preview)
	require.False(t, st.ExpiresAt.IsZero())
}
