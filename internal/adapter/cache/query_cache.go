package cache

import (
	"container/list"
	"strconv"
	"sync"
	"time"

	"qbank/internal/domain"
)

// QueryCache is an LRU cache of search results with a TTL. Entries belong to
// a generation; Invalidate starts a new generation so results computed
// against an older index are never served.
type QueryCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	maxSize int
	ttl     time.Duration
	gen     uint64
	now     func() time.Time
}

type cacheEntry struct {
	key       string
	results   []domain.ResultRecord
	timestamp time.Time
	gen       uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(query string, k int) string {
	return strconv.Itoa(k) + "\x00" + query
}

// Get returns a copy of the cached results for (query, k).
func (c *QueryCache) Get(query string, k int) ([]domain.ResultRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query, k)
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if entry.gen != c.gen || c.now().Sub(entry.timestamp) > c.ttl {
		c.order.Remove(el)
		delete(c.entries, key)
		return nil, false
	}

	c.order.MoveToFront(el)
	return append([]domain.ResultRecord(nil), entry.results...), true
}

func (c *QueryCache) Put(query string, k int, results []domain.ResultRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query, k)
	entry := &cacheEntry{
		key:       key,
		results:   append([]domain.ResultRecord(nil), results...),
		timestamp: c.now(),
		gen:       c.gen,
	}

	if el, ok := c.entries[key]; ok {
		el.Value = entry
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = c.order.PushFront(entry)
}

// Invalidate drops every entry.
func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.gen++
}

func (c *QueryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *QueryCache) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}
	c.order.Remove(el)
	delete(c.entries, el.Value.(*cacheEntry).key)
}
