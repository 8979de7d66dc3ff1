// internal/cache/cache.go
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/forumgrep/pkg/models"
)

// Defaults for NewPageCache
const (
	DefaultTTL     = 10 * time.Minute
	DefaultMaxSize = 64 * 1024 * 1024

	cleanupInterval = time.Minute
	entryOverhead   = 256
)

// PageCache keeps fetched pages in memory so a thread that turns up for
// several keywords of a batch is downloaded once. Entries expire after the
// TTL and the least recently used ones are evicted beyond the size limit.
type PageCache struct {
	ttl     time.Duration
	maxSize int64
	now     func() time.Time

	mu      sync.Mutex
	store   map[string]*list.Element
	lruList *list.List
	size    int64
	hits    uint64
	misses  uint64

	cancel context.CancelFunc
}

// cacheEntry is one cached page with its expiry
type cacheEntry struct {
	key       string
	page      models.Page
	expiresAt time.Time
}

func (e *cacheEntry) size() int64 {
	return int64(len(e.page.HTML)+len(e.page.Link)+len(e.key)) + entryOverhead
}

// Stats is a snapshot of cache usage
type Stats struct {
	Entries int
	Size    int64
	MaxSize int64
	Hits    uint64
	Misses  uint64
}

// HitRate is the share of lookups served from cache, in percent
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// NewPageCache creates a cache and starts its background cleanup, which
// runs until Close. Non-positive arguments use the defaults.
func NewPageCache(ttl time.Duration, maxSizeBytes int64) *PageCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSizeBytes <= 0 {
		maxSizeBytes = DefaultMaxSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &PageCache{
		ttl:     ttl,
		maxSize: maxSizeBytes,
		now:     time.Now,
		store:   make(map[string]*list.Element),
		lruList: list.New(),
		cancel:  cancel,
	}
	go c.cleanupExpired(ctx)
	return c
}

// Get returns the page cached under url
func (c *PageCache) Get(url string) (models.Page, bool) {
	if c == nil {
		return models.Page{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.store[url]
	if !ok {
		c.misses++
		return models.Page{}, false
	}

	entry := element.Value.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.removeLocked(element)
		c.misses++
		return models.Page{}, false
	}

	c.lruList.MoveToFront(element)
	c.hits++
	log.Debug().Str("url", url).Msg("Cache hit")
	return entry.page, true
}

// Set caches page under url, replacing any previous entry. Pages larger
// than the whole cache are not stored.
func (c *PageCache) Set(url string, page models.Page) {
	if c == nil {
		return
	}

	entry := &cacheEntry{key: url, page: page, expiresAt: c.now().Add(c.ttl)}
	size := entry.size()
	if size > c.maxSize {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.store[url]; ok {
		c.removeLocked(element)
	}
	for c.size+size > c.maxSize && c.lruList.Len() > 0 {
		evicted := c.lruList.Back()
		log.Debug().Str("url", evicted.Value.(*cacheEntry).key).Msg("Evicted from cache (LRU)")
		c.removeLocked(evicted)
	}

	c.store[url] = c.lruList.PushFront(entry)
	c.size += size
}

// Len returns the number of cached pages
func (c *PageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruList.Len()
}

// Stats returns cache statistics
func (c *PageCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries: c.lruList.Len(),
		Size:    c.size,
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

// Close stops the background cleanup goroutine
func (c *PageCache) Close() {
	if c == nil {
		return
	}
	c.cancel()
}

// removeLocked drops element; the caller holds c.mu
func (c *PageCache) removeLocked(element *list.Element) {
	entry := element.Value.(*cacheEntry)
	c.lruList.Remove(element)
	delete(c.store, entry.key)
	c.size -= entry.size()
}

func (c *PageCache) purgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	purged := 0
	var next *list.Element
	for element := c.lruList.Front(); element != nil; element = next {
		next = element.Next()
		if now.After(element.Value.(*cacheEntry).expiresAt) {
			c.removeLocked(element)
			purged++
		}
	}
	return purged
}

// cleanupExpired periodically removes expired entries
func (c *PageCache) cleanupExpired(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := c.purgeExpired(); n > 0 {
				log.Debug().Int("purged", n).Msg("Expired cache entries removed")
			}
		case <-ctx.Done():
			return
		}
	}
}
