package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

func newTestBulk(ttl time.Duration) (*BulkStore, *fakeClock) {
	clock := newFakeClock()
	b := NewBulkStore(ttl)
	b.now = clock.Now
	return b, clock
}

func TestBulkStore_Empty(t *testing.T) {
	b, _ := newTestBulk(time.Minute)

	_, ok := b.Get()
	assert.False(t, ok)
	assert.Equal(t, BulkStats{}, b.Stats())
}

func TestBulkStore_PutGet(t *testing.T) {
	b, clock := newTestBulk(time.Minute)
	flags := map[string]domain.Flag{
		"checkout": {Key: "checkout", IsEnabled: true},
	}

	b.Put(flags)
	snap, ok := b.Get()
	require.True(t, ok)
	assert.Equal(t, flags, snap.Flags)
	assert.Equal(t, clock.Now(), snap.CachedAt)
	assert.Equal(t, clock.Now().Add(time.Minute), snap.ExpiresAt)

	flag, ok := b.Lookup("checkout")
	require.True(t, ok)
	assert.True(t, flag.IsEnabled)

	_, ok = b.Lookup("missing")
	assert.False(t, ok)
}

func TestBulkStore_StoresCopy(t *testing.T) {
	b, _ := newTestBulk(time.Minute)
	flags := map[string]domain.Flag{"a": {Key: "a", IsEnabled: true}}

	b.Put(flags)
	flags["a"] = domain.Flag{Key: "a"}
	flags["b"] = domain.Flag{Key: "b"}

	snap, ok := b.Get()
	require.True(t, ok)
	assert.Len(t, snap.Flags, 1)
	assert.True(t, snap.Flags["a"].IsEnabled)
}

func TestBulkStore_Expiry(t *testing.T) {
	b, clock := newTestBulk(time.Minute)
	b.Put(map[string]domain.Flag{"a": {Key: "a"}})

	clock.Advance(59 * time.Second)
	_, ok := b.Get()
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = b.Get()
	assert.False(t, ok, "snapshot is stale at its expiry instant")
	assert.False(t, b.Stats().Cached)
}

func TestBulkStore_Replace(t *testing.T) {
	b, _ := newTestBulk(time.Minute)
	b.Put(map[string]domain.Flag{"a": {Key: "a"}})
	b.Put(map[string]domain.Flag{"b": {Key: "b"}, "c": {Key: "c"}})

	snap, ok := b.Get()
	require.True(t, ok)
	assert.NotContains(t, snap.Flags, "a")
	assert.Equal(t, 2, b.Stats().FlagCount)
}

func TestBulkStore_Clear(t *testing.T) {
	b, _ := newTestBulk(time.Minute)
	b.Put(map[string]domain.Flag{"a": {Key: "a"}})

	b.Clear()
	_, ok := b.Get()
	assert.False(t, ok)
}

func TestBulkStore_PutDuringStaleRead(t *testing.T) {
	b, clock := newTestBulk(time.Minute)
	b.Put(map[string]domain.Flag{"old": {Key: "old"}})
	clock.Advance(2 * time.Minute)

	// A concurrent Put lands after Get has found the snapshot stale.
	interleaved := false
	b.now = func() time.Time {
		now := clock.Now()
		if !interleaved {
			interleaved = true
			b.now = clock.Now
			b.Put(map[string]domain.Flag{"fresh": {Key: "fresh", IsEnabled: true}})
		}
		return now
	}

	_, ok := b.Get()
	assert.False(t, ok)

	flag, ok := b.Lookup("fresh")
	require.True(t, ok, "fresh snapshot must survive the stale read")
	assert.True(t, flag.IsEnabled)
	_, ok = b.Lookup("old")
	assert.False(t, ok)
}

func TestBulkStore_StaleReadRemovesSnapshot(t *testing.T) {
	b, clock := newTestBulk(time.Minute)
	b.Put(map[string]domain.Flag{"a": {Key: "a"}})
	clock.Advance(time.Minute)

	_, ok := b.Get()
	assert.False(t, ok)
	assert.Equal(t, BulkStats{}, b.Stats())
}
