package build

import (
	"sync"
	"sync/atomic"
	"time"
)

// HashCache caches content hashes keyed by file metadata with LRU eviction
// and TTL.
type HashCache struct {
	entries     map[string]*cacheEntry
	mutex       sync.Mutex
	maxSize     int64
	currentSize int64
	ttl         time.Duration
	// LRU implementation
	head *cacheEntry
	tail *cacheEntry
	// Statistics tracking
	hits      int64
	misses    int64
	evictions int64
}

type cacheEntry struct {
	key       string
	hash      string
	createdAt time.Time
	size      int64
	prev      *cacheEntry
	next      *cacheEntry
}

// NewHashCache creates a new hash cache holding at most maxSize bytes of
// keys and hashes.
func NewHashCache(maxSize int64, ttl time.Duration) *HashCache {
	cache := &HashCache{
		entries: make(map[string]*cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}

	cache.head = &cacheEntry{}
	cache.tail = &cacheEntry{}
	cache.head.next = cache.tail
	cache.tail.prev = cache.head

	return cache
}

// GetHash retrieves a cached hash for a metadata key.
func (c *HashCache) GetHash(key string) (string, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		atomic.AddInt64(&c.misses, 1)
		return "", false
	}

	if c.ttl > 0 && time.Since(entry.createdAt) > c.ttl {
		c.remove(entry)
		atomic.AddInt64(&c.misses, 1)
		return "", false
	}

	c.moveToFront(entry)
	atomic.AddInt64(&c.hits, 1)
	return entry.hash, true
}

// SetHash stores a hash under a metadata key.
func (c *HashCache) SetHash(key string, hash string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entrySize := int64(len(key) + len(hash))

	if existing, exists := c.entries[key]; exists {
		c.currentSize += entrySize - existing.size
		existing.hash = hash
		existing.size = entrySize
		existing.createdAt = time.Now()
		c.moveToFront(existing)
		return
	}

	c.evictIfNeeded(entrySize)

	entry := &cacheEntry{
		key:       key,
		hash:      hash,
		createdAt: time.Now(),
		size:      entrySize,
	}
	c.entries[key] = entry
	c.addToFront(entry)
	c.currentSize += entrySize
}

// Clear clears all cache entries and resets statistics
func (c *HashCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.currentSize = 0
	c.head.next = c.tail
	c.tail.prev = c.head

	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
	atomic.StoreInt64(&c.evictions, 0)
}

// Stats returns the entry count, hits, and misses.
func (c *HashCache) Stats() (int, int64, int64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries), atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Evictions returns how many entries were evicted to stay under the size limit.
func (c *HashCache) Evictions() int64 {
	return atomic.LoadInt64(&c.evictions)
}

func (c *HashCache) evictIfNeeded(newSize int64) {
	for c.currentSize+newSize > c.maxSize && c.tail.prev != c.head {
		c.remove(c.tail.prev)
		atomic.AddInt64(&c.evictions, 1)
	}
}

func (c *HashCache) remove(entry *cacheEntry) {
	c.unlink(entry)
	delete(c.entries, entry.key)
	c.currentSize -= entry.size
}

// LRU doubly-linked list operations
func (c *HashCache) addToFront(entry *cacheEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *HashCache) unlink(entry *cacheEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
}

func (c *HashCache) moveToFront(entry *cacheEntry) {
	c.unlink(entry)
	c.addToFront(entry)
}
