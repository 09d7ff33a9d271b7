package sstable

import "github.com/nplabs/lsmkv/cache"

// Iterator walks one Table's entries in key order, reading blocks through an
// optional shared cache. It satisfies iterator.StorageIterator structurally
// (Key/Value/IsValid/Next) without importing that package, so sstable stays
// free of any dependency on iterator — iterator depends on sstable instead.
type Iterator struct {
	table *Table
	cache *cache.BlockCache

	blockIdx int
	entries  []entry
	entryIdx int
}

// NewIterator creates an iterator positioned before the first entry. Callers
// must call SeekToFirst or SeekToKey before using it.
func NewIterator(t *Table, bc *cache.BlockCache) *Iterator {
	return &Iterator{table: t, cache: bc}
}

func (it *Iterator) loadBlock(idx int) error {
	if idx < 0 || idx >= it.table.NumBlocks() {
		it.entries = nil
		it.blockIdx = idx
		it.entryIdx = 0
		return nil
	}
	var (
		entries []entry
		err     error
	)
	if it.cache != nil {
		entries, err = it.table.ReadBlockCached(it.cache, idx)
	} else {
		entries, err = it.table.ReadBlock(idx)
	}
	if err != nil {
		return err
	}
	it.blockIdx = idx
	it.entries = entries
	it.entryIdx = 0
	return nil
}

// SeekToFirst positions the iterator at the table's first entry.
func (it *Iterator) SeekToFirst() error {
	if it.table.NumBlocks() == 0 {
		it.entries = nil
		return nil
	}
	return it.loadBlock(0)
}

// SeekToKey positions the iterator at the first entry >= key, or past the
// end if none exists.
func (it *Iterator) SeekToKey(key []byte) error {
	idx := it.table.FindBlockIdx(key)
	if err := it.loadBlock(idx); err != nil {
		return err
	}
	for it.IsValid() && compareBytes(it.Key(), key) < 0 {
		if err := it.Next(); err != nil {
			return err
		}
	}
	return nil
}

// IsValid reports whether the iterator currently points at an entry.
func (it *Iterator) IsValid() bool {
	return it.entryIdx < len(it.entries)
}

// Key returns the current entry's key. Valid only when IsValid.
func (it *Iterator) Key() []byte { return it.entries[it.entryIdx].Key }

// Value returns the current entry's value (empty for a tombstone). Valid
// only when IsValid.
func (it *Iterator) Value() []byte { return it.entries[it.entryIdx].Value }

// Next advances to the next entry, crossing into the following block when
// the current one is exhausted.
func (it *Iterator) Next() error {
	it.entryIdx++
	if it.entryIdx < len(it.entries) {
		return nil
	}
	return it.loadBlock(it.blockIdx + 1)
}
