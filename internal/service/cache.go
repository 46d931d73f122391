package service

import (
	"container/list"
	"sync"

	"github.com/hydrologic/mainstem/internal/geo"
)

// resultCache is a bounded LRU of trace results keyed by the canonical
// request. Entries are treated as read-only by everyone who touches
// them.
//
// The engine itself never caches (repeated calls re-query the provider);
// this sits in the outer layer, keyed by the full request.
type resultCache struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List // front = most recent; values are *cacheEntry
	entries map[string]*list.Element
}

type cacheEntry struct {
	key      string
	features []geo.Feature
	mime     string
}

func newResultCache(maxSize int) *resultCache {
	return &resultCache{
		maxSize: maxSize,
		order:   list.New(),
		entries: make(map[string]*list.Element, maxSize),
	}
}

func (c *resultCache) get(key string) (string, []geo.Feature, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return "", nil, false
	}
	c.order.MoveToFront(el)
	e := el.Value.(*cacheEntry)
	return e.mime, e.features, true
}

// put stores a result, evicting the least recently used entry when full.
// Called even for no-cache requests: revalidation bypasses the lookup
// but still refreshes the stored result.
func (c *resultCache) put(key, mime string, features []geo.Feature) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		e := el.Value.(*cacheEntry)
		e.mime = mime
		e.features = features
		return
	}

	el := c.order.PushFront(&cacheEntry{key: key, mime: mime, features: features})
	c.entries[key] = el

	for c.order.Len() > c.maxSize {
		last := c.order.Back()
		c.order.Remove(last)
		delete(c.entries, last.Value.(*cacheEntry).key)
	}
}

func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
