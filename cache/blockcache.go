// Package cache implements the block cache collaborator named in spec §6:
// get_or_fill(sst_id, block_idx, fill) with an at-most-one-concurrent-fill
// guarantee, so parallel readers racing on the same miss observe a single
// I/O (§4.2).
package cache

import (
	"container/list"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Key identifies one cached block.
type Key struct {
	SSTID    uint64
	BlockIdx int
}

// BlockCache is a bounded LRU keyed by (sst_id, block_idx). Values are
// opaque (`any`) so this package stays independent of the sstable package's
// internal block representation — it is wired in the reverse direction:
// sstable.Table.ReadBlockCached calls into BlockCache, not the other way
// around.
//
// Single-fill is provided by golang.org/x/sync/singleflight, grounded in the
// devlibx-pebble go.mod (which pulls golang.org/x/sync) — the idiomatic Go
// mechanism for exactly this "parallel misses collapse to one call"
// contract, in place of a hand-rolled per-key mutex table.
type BlockCache struct {
	capacity int

	mu    sync.Mutex
	ll    *list.List
	items map[Key]*list.Element

	group singleflight.Group
}

type cacheEntry struct {
	key   Key
	value any
}

// New creates a block cache holding up to capacity entries.
func New(capacity int) *BlockCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &BlockCache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[Key]*list.Element, capacity),
	}
}

// GetOrFill returns the cached value for key, calling fill on a miss.
// Concurrent callers racing on the same key observe exactly one fill call;
// all of them receive its result.
func (c *BlockCache) GetOrFill(sstID uint64, blockIdx int, fill func() (any, error)) (any, error) {
	key := Key{SSTID: sstID, BlockIdx: blockIdx}

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		v := el.Value.(*cacheEntry).value
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	groupKey := fmt.Sprint(sstID, ":", blockIdx)
	v, err, _ := c.group.Do(groupKey, func() (any, error) {
		// Re-check: another goroutine may have filled it while we were
		// queued behind the singleflight call for an earlier miss.
		c.mu.Lock()
		if el, ok := c.items[key]; ok {
			val := el.Value.(*cacheEntry).value
			c.mu.Unlock()
			return val, nil
		}
		c.mu.Unlock()

		val, err := fill()
		if err != nil {
			return nil, err
		}
		c.install(key, val)
		return val, nil
	})
	return v, err
}

func (c *BlockCache) install(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).value = value
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&cacheEntry{key: key, value: value})
	c.items[key] = el

	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

// Len reports the number of entries currently cached.
func (c *BlockCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
