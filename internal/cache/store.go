package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

// entryOverheadBytes approximates the value and timestamps of one entry.
const entryOverheadBytes = 32

type entry struct {
	key          domain.CacheKey
	value        bool
	cachedAt     time.Time
	expiresAt    time.Time
	lastAccessed time.Time
	hits         uint64
}

// FlagStore is the per-flag cache: TTL entries with strict LRU eviction.
// The list front is the most recently accessed entry.
type FlagStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	items      map[domain.CacheKey]*list.Element
	lru        *list.List

	evictions   uint64
	expirations uint64

	now func() time.Time
}

// NewFlagStore creates a per-flag cache. maxEntries must be positive.
func NewFlagStore(ttl time.Duration, maxEntries int) *FlagStore {
	if maxEntries <= 0 {
		panic("flag store capacity must be positive")
	}
	return &FlagStore{
		ttl:        ttl,
		maxEntries: maxEntries,
		items:      make(map[domain.CacheKey]*list.Element),
		lru:        list.New(),
		now:        time.Now,
	}
}

// Get returns the cached value. Expired entries are removed.
func (s *FlagStore) Get(key domain.CacheKey) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		return false, false
	}

	e := elem.Value.(*entry)
	now := s.now()
	if now.After(e.expiresAt) {
		s.removeElement(elem)
		s.expirations++
		return false, false
	}

	e.lastAccessed = now
	e.hits++
	s.lru.MoveToFront(elem)

	return e.value, true
}

// Put stores a value, evicting the least recently accessed entry when
// the store is full and key is new.
func (s *FlagStore) Put(key domain.CacheKey, value bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[key]; ok {
		s.overwrite(elem, value)
		return
	}

	if s.lru.Len() >= s.maxEntries {
		if oldest := s.lru.Back(); oldest != nil {
			s.removeElement(oldest)
			s.evictions++
		}
	}

	now := s.now()
	s.items[key] = s.lru.PushFront(&entry{
		key:          key,
		value:        value,
		cachedAt:     now,
		expiresAt:    now.Add(s.ttl),
		lastAccessed: now,
	})
}

// Replace overwrites an entry in place. It returns false, and stores
// nothing, when key is not resident.
func (s *FlagStore) Replace(key domain.CacheKey, value bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		return false
	}
	s.overwrite(elem, value)
	return true
}

// overwrite must be called with s.mu held.
func (s *FlagStore) overwrite(elem *list.Element, value bool) {
	now := s.now()
	e := elem.Value.(*entry)
	e.value = value
	e.cachedAt = now
	e.expiresAt = now.Add(s.ttl)
	e.lastAccessed = now
	e.hits = 0
	s.lru.MoveToFront(elem)
}

// InvalidateFlag removes every entry of flagKey, for all targets.
func (s *FlagStore) InvalidateFlag(flagKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, elem := range s.items {
		if key.Flag == flagKey {
			s.removeElement(elem)
			removed++
		}
	}
	return removed
}

// Clear removes all entries.
func (s *FlagStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[domain.CacheKey]*list.Element)
	s.lru.Init()
}

// Len returns the number of resident entries, expired or not.
func (s *FlagStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// RefreshCandidates returns contextless keys expiring within window.
func (s *FlagStore) RefreshCandidates(window time.Duration) []domain.CacheKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var keys []domain.CacheKey
	for elem := s.lru.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*entry)
		if e.key.HasTarget() {
			continue
		}
		if e.expiresAt.Sub(now) <= window {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// StoreStats is a point-in-time view of the per-flag cache.
type StoreStats struct {
	Size int

	// HitRate is the fraction of resident entries whose last access is
	// later than their insertion. It is not a lifetime hit/miss ratio.
	HitRate float64

	// ExpiredEntries are resident entries past expiry not yet removed.
	ExpiredEntries int

	// MemoryUsageEstimate is advisory: 2 bytes per key character plus a
	// fixed overhead per entry.
	MemoryUsageEstimate int

	Evictions   uint64
	Expirations uint64
}

// Stats computes statistics over resident entries.
func (s *FlagStore) Stats() StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stats := StoreStats{
		Size:        s.lru.Len(),
		Evictions:   s.evictions,
		Expirations: s.expirations,
	}

	accessed := 0
	for elem := s.lru.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*entry)
		if e.lastAccessed.After(e.cachedAt) {
			accessed++
		}
		if now.After(e.expiresAt) {
			stats.ExpiredEntries++
		}
		stats.MemoryUsageEstimate += 2*len(e.key.String()) + entryOverheadBytes
	}

	if stats.Size > 0 {
		stats.HitRate = float64(accessed) / float64(stats.Size)
	}

	return stats
}

// EntryInfo describes the cached state of one key.
type EntryInfo struct {
	Key             domain.CacheKey
	Cached          bool
	Value           bool
	CachedAt        time.Time
	ExpiresAt       time.Time
	LastAccessed    time.Time
	TimeUntilExpiry time.Duration
	Expired         bool
	Hits            uint64
}

// Debug reports the state of key without touching its access time.
func (s *FlagStore) Debug(key domain.CacheKey) EntryInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := EntryInfo{Key: key}
	elem, ok := s.items[key]
	if !ok {
		return info
	}

	e := elem.Value.(*entry)
	now := s.now()
	info.Cached = true
	info.Value = e.value
	info.CachedAt = e.cachedAt
	info.ExpiresAt = e.expiresAt
	info.LastAccessed = e.lastAccessed
	info.TimeUntilExpiry = e.expiresAt.Sub(now)
	info.Expired = now.After(e.expiresAt)
	info.Hits = e.hits

	return info
}

// removeElement must be called with s.mu held.
func (s *FlagStore) removeElement(elem *list.Element) {
	s.lru.Remove(elem)
	delete(s.items, elem.Value.(*entry).key)
}
