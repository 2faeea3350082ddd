package exrdeep

import (
	"container/list"
	"sync"
)

// scanlineCacheSize is the number of decoded scanlines a Reader keeps.
// 64 lines cover a reasonably sized tile without decoding anything twice.
const scanlineCacheSize = 64

// lineCache is an LRU of decoded scanlines keyed by y. It is safe for
// concurrent use.
type lineCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[int]*list.Element
	lru      *list.List // front = most recent

	hits, misses uint64
}

type cacheEntry struct {
	y    int
	line *scanline
}

func newLineCache(capacity int) *lineCache {
	return &lineCache{
		capacity: max(capacity, 1),
		entries:  make(map[int]*list.Element),
		lru:      list.New(),
	}
}

func (c *lineCache) get(y int) (*scanline, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[y]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.lru.MoveToFront(e)
	return e.Value.(*cacheEntry).line, true
}

func (c *lineCache) put(y int, line *scanline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[y]; ok {
		e.Value.(*cacheEntry).line = line
		c.lru.MoveToFront(e)
		return
	}
	c.entries[y] = c.lru.PushFront(&cacheEntry{y: y, line: line})
	for c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).y)
	}
}

func (c *lineCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *lineCache) stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
