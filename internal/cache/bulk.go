package cache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

const snapshotKey = "flags"

// Snapshot is one bulk fetch of the flag catalog. It is never mutated
// after being stored.
type Snapshot struct {
	Flags     map[string]domain.Flag
	CachedAt  time.Time
	ExpiresAt time.Time
}

// BulkStore holds at most one flag snapshot.
type BulkStore struct {
	// mu orders Put against the delete of a stale snapshot.
	mu    sync.Mutex
	ttl   time.Duration
	items *gocache.Cache
	now   func() time.Time
}

// NewBulkStore creates an empty bulk store. Expiry is checked on read,
// so no janitor goroutine is started.
func NewBulkStore(ttl time.Duration) *BulkStore {
	return &BulkStore{
		ttl:   ttl,
		items: gocache.New(ttl, 0),
		now:   time.Now,
	}
}

// Get returns the snapshot while it is fresh.
func (b *BulkStore) Get() (*Snapshot, bool) {
	v, ok := b.items.Get(snapshotKey)
	if !ok {
		return nil, false
	}

	snap := v.(*Snapshot)
	if !b.now().Before(snap.ExpiresAt) {
		b.deleteIfCurrent(snap)
		return nil, false
	}

	return snap, true
}

// deleteIfCurrent drops snap unless a newer snapshot replaced it.
func (b *BulkStore) deleteIfCurrent(snap *Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if v, ok := b.items.Get(snapshotKey); ok && v.(*Snapshot) == snap {
		b.items.Delete(snapshotKey)
	}
}

// Lookup returns one flag from a fresh snapshot.
func (b *BulkStore) Lookup(flagKey string) (domain.Flag, bool) {
	snap, ok := b.Get()
	if !ok {
		return domain.Flag{}, false
	}
	flag, ok := snap.Flags[flagKey]
	return flag, ok
}

// Put replaces the snapshot with a copy of flags.
func (b *BulkStore) Put(flags map[string]domain.Flag) *Snapshot {
	now := b.now()
	snap := &Snapshot{
		Flags:     domain.CopyFlags(flags),
		CachedAt:  now,
		ExpiresAt: now.Add(b.ttl),
	}
	b.mu.Lock()
	b.items.Set(snapshotKey, snap, gocache.NoExpiration)
	b.mu.Unlock()
	return snap
}

// Clear drops the snapshot.
func (b *BulkStore) Clear() {
	b.items.Flush()
}

// BulkStats describes the bulk snapshot.
type BulkStats struct {
	Cached    bool
	FlagCount int
	CachedAt  time.Time
	ExpiresAt time.Time
}

// Stats reports the snapshot without removing it.
func (b *BulkStore) Stats() BulkStats {
	v, ok := b.items.Get(snapshotKey)
	if !ok {
		return BulkStats{}
	}
	snap := v.(*Snapshot)
	return BulkStats{
		Cached:    b.now().Before(snap.ExpiresAt),
		FlagCount: len(snap.Flags),
		CachedAt:  snap.CachedAt,
		ExpiresAt: snap.ExpiresAt,
	}
}
