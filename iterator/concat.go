package iterator

import (
	"github.com/nplabs/lsmkv/cache"
	"github.com/nplabs/lsmkv/sstable"
)

// SstConcatIterator walks a run of sorted, non-overlapping tables (a level,
// or a tier) as a single sorted stream (§4.4) — exactly the shape a sorted
// run has, so no merging is needed between tables, only sequencing.
type SstConcatIterator struct {
	tables []*sstable.Table
	cache  *cache.BlockCache

	idx int
	cur *sstable.Iterator
}

// NewSstConcatIteratorAtFirst positions at the first entry of tables[0].
// tables must already be sorted by key range with no overlaps (the
// invariant every Strategy is required to maintain for non-L0 levels).
func NewSstConcatIteratorAtFirst(tables []*sstable.Table, bc *cache.BlockCache) (*SstConcatIterator, error) {
	c := &SstConcatIterator{tables: tables, cache: bc}
	if err := c.seekTable(0, nil); err != nil {
		return nil, err
	}
	return c, nil
}

// NewSstConcatIteratorAtKey positions at the first entry >= key, skipping
// whole tables whose key range ends before key.
func NewSstConcatIteratorAtKey(tables []*sstable.Table, bc *cache.BlockCache, key []byte) (*SstConcatIterator, error) {
	c := &SstConcatIterator{tables: tables, cache: bc}
	lo, hi := 0, len(tables)
	for lo < hi {
		mid := (lo + hi) / 2
		if compareLastKey(tables[mid], key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if err := c.seekTable(lo, key); err != nil {
		return nil, err
	}
	return c, nil
}

func compareLastKey(t *sstable.Table, key []byte) int {
	return compareBytes(t.LastKey(), key)
}

// seekTable loads tables[idx] (if in range) and positions its inner
// iterator: at the first key if seekKey is nil, else at the first key >=
// seekKey. It then advances to a later table if the current one has no
// matching entry.
func (c *SstConcatIterator) seekTable(idx int, seekKey []byte) error {
	c.idx = idx
	for c.idx < len(c.tables) {
		c.cur = sstable.NewIterator(c.tables[c.idx], c.cache)
		var err error
		if seekKey == nil {
			err = c.cur.SeekToFirst()
		} else {
			err = c.cur.SeekToKey(seekKey)
		}
		if err != nil {
			return err
		}
		if c.cur.IsValid() {
			return nil
		}
		c.idx++
	}
	c.cur = nil
	return nil
}

func (c *SstConcatIterator) IsValid() bool { return c.cur != nil && c.cur.IsValid() }

func (c *SstConcatIterator) Key() []byte { return c.cur.Key() }

func (c *SstConcatIterator) Value() []byte { return c.cur.Value() }

// Next advances within the current table, moving to the next table's first
// entry once the current one is exhausted.
func (c *SstConcatIterator) Next() error {
	if err := c.cur.Next(); err != nil {
		return err
	}
	if c.cur.IsValid() {
		return nil
	}
	return c.seekTable(c.idx+1, nil)
}
