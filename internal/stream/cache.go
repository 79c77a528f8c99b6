package stream

import (
	"container/list"
	"sync"

	"github.com/aevon-lab/aevon-datum/internal/core/datum"
	"github.com/google/uuid"
)

// lruCache is a thread-safe LRU cache of stream metadata by stream ID. It
// stores and returns copies.
type lruCache struct {
	mu       sync.Mutex
	capacity int
	cache    map[uuid.UUID]*list.Element
	order    *list.List
}

func newLRUCache(capacity int) *lruCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &lruCache{
		capacity: capacity,
		cache:    make(map[uuid.UUID]*list.Element),
		order:    list.New(),
	}
}

// Get returns nil on a miss.
func (c *lruCache) Get(id uuid.UUID) *datum.ObjectDatumStreamMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.cache[id]
	if !exists {
		return nil
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*datum.ObjectDatumStreamMetadata).Clone()
}

// Put adds m, evicting the least recently used entry when full. It returns
// the evicted metadata, if any.
func (c *lruCache) Put(m *datum.ObjectDatumStreamMetadata) *datum.ObjectDatumStreamMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.cache[m.StreamID]; exists {
		c.order.MoveToFront(elem)
		elem.Value = m.Clone()
		return nil
	}

	var evicted *datum.ObjectDatumStreamMetadata
	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			evicted = oldest.Value.(*datum.ObjectDatumStreamMetadata)
			delete(c.cache, evicted.StreamID)
			c.order.Remove(oldest)
		}
	}

	c.cache[m.StreamID] = c.order.PushFront(m.Clone())
	return evicted
}

// Invalidate removes id and returns what was cached for it.
func (c *lruCache) Invalidate(id uuid.UUID) *datum.ObjectDatumStreamMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.cache[id]
	if !exists {
		return nil
	}
	delete(c.cache, id)
	c.order.Remove(elem)
	return elem.Value.(*datum.ObjectDatumStreamMetadata)
}

func (c *lruCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
