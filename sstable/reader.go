package sstable

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/nplabs/lsmkv/cache"
	"github.com/nplabs/lsmkv/internal/errs"
)

// Table is an open, immutable SST: the handle every storage-state snapshot
// entry in Snapshot.SSTables points at (§3). Table.id is unique for the
// engine's lifetime and never reused once the table retires.
type Table struct {
	id      uint64
	file    *os.File
	path    string
	codec   Codec
	size    int64
	metaOff uint32

	metas    []BlockMeta
	firstKey []byte
	lastKey  []byte

	bloom *bloom // in-memory only; see bloom.go
	maxTS uint64 // unused by the compaction core; always 0 here (no MVCC)
}

// Open reads an existing SST's trailing footer and block-meta region into
// memory (§4.1). The data blocks themselves are read lazily, through
// ReadBlock / ReadBlockCached.
func Open(id uint64, path string, codec Codec) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sstable: open %s: %w", path, err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("sstable: stat %s: %w", path, err)
	}
	size := stat.Size()
	if size < metaFooterSize {
		f.Close()
		return nil, errs.NewFormatError("sstable %s: truncated file (%d bytes)", path, size)
	}

	footer := make([]byte, metaFooterSize)
	if _, err := f.ReadAt(footer, size-metaFooterSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("sstable: read footer of %s: %w", path, err)
	}
	metaOff := binary.BigEndian.Uint32(footer)
	if int64(metaOff) > size-metaFooterSize || metaOff < 0 {
		f.Close()
		return nil, errs.NewFormatError("sstable %s: meta_offset %d out of range (size %d)", path, metaOff, size)
	}

	metaRegion := make([]byte, size-metaFooterSize-int64(metaOff))
	if _, err := f.ReadAt(metaRegion, int64(metaOff)); err != nil {
		f.Close()
		return nil, fmt.Errorf("sstable: read meta region of %s: %w", path, err)
	}
	metas, err := decodeBlockMetas(metaRegion)
	if err != nil {
		f.Close()
		return nil, err
	}
	if len(metas) == 0 {
		f.Close()
		return nil, errs.NewFormatError("sstable %s: zero blocks", path)
	}

	return &Table{
		id:       id,
		file:     f,
		path:     path,
		codec:    codec,
		size:     size,
		metaOff:  metaOff,
		metas:    metas,
		firstKey: metas[0].FirstKey,
		lastKey:  metas[len(metas)-1].LastKey,
	}, nil
}

func (t *Table) ID() uint64        { return t.id }
func (t *Table) Path() string      { return t.path }
func (t *Table) Size() int64       { return t.size }
func (t *Table) FirstKey() []byte  { return t.firstKey }
func (t *Table) LastKey() []byte   { return t.lastKey }
func (t *Table) NumBlocks() int    { return len(t.metas) }
func (t *Table) BlockMeta(i int) BlockMeta { return t.metas[i] }

// Overlaps reports whether [start, end] intersects this table's key range.
// Either bound may be nil to mean unbounded.
func (t *Table) Overlaps(start, end []byte) bool {
	if start != nil && bytesGreater(start, t.lastKey) {
		return false
	}
	if end != nil && bytesGreater(t.firstKey, end) {
		return false
	}
	return true
}

func bytesGreater(a, b []byte) bool { return compareBytes(a, b) > 0 }

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

// FindBlockIdx returns the largest i such that metas[i].FirstKey <= key, or 0
// if none (§4.2) — the candidate block that might hold key.
func (t *Table) FindBlockIdx(key []byte) int {
	idx := sort.Search(len(t.metas), func(i int) bool {
		return compareBytes(t.metas[i].FirstKey, key) > 0
	})
	if idx == 0 {
		return 0
	}
	return idx - 1
}

// ReadBlock reads and decodes block idx directly from disk, bypassing the
// block cache.
func (t *Table) ReadBlock(idx int) ([]entry, error) {
	if idx < 0 || idx >= len(t.metas) {
		return nil, errs.NewFormatError("sstable %s: block index %d out of range", t.path, idx)
	}
	start := int64(t.metas[idx].Offset)
	var end int64
	if idx+1 < len(t.metas) {
		end = int64(t.metas[idx+1].Offset)
	} else {
		end = int64(t.metaOff)
	}
	buf := make([]byte, end-start)
	if _, err := t.file.ReadAt(buf, start); err != nil {
		return nil, fmt.Errorf("sstable: read block %d of %s: %w", idx, t.path, err)
	}
	return decodeBlock(buf, t.codec)
}

// ReadBlockCached reads block idx through bc, which guarantees at-most-one
// concurrent fill per (sst_id, block_idx) (§4.2).
func (t *Table) ReadBlockCached(bc *cache.BlockCache, idx int) ([]entry, error) {
	v, err := bc.GetOrFill(t.id, idx, func() (any, error) {
		return t.ReadBlock(idx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]entry), nil
}

// Get performs a point lookup, consulting the bloom filter first when one
// is attached. It does not go through the block cache; callers that care
// about cache-backed reads use ReadBlockCached via an iterator instead.
func (t *Table) Get(key []byte) (value []byte, found bool, err error) {
	if t.bloom != nil && !t.bloom.mayContain(key) {
		return nil, false, nil
	}
	idx := t.FindBlockIdx(key)
	entries, err := t.ReadBlock(idx)
	if err != nil {
		return nil, false, err
	}
	for _, e := range entries {
		if compareBytes(e.Key, key) == 0 {
			if len(e.Value) == 0 {
				return nil, false, nil // tombstone
			}
			return e.Value, true, nil
		}
	}
	return nil, false, nil
}

// Close closes the underlying file handle.
func (t *Table) Close() error {
	if t.file == nil {
		return nil
	}
	return t.file.Close()
}

// Remove closes and unlinks the SST file. Per §3's lifecycle and §5's
// ordering guarantee, callers invoke this only after the id has already
// been removed from every snapshot (the executor's commit step, §4.7 step 6).
func (t *Table) Remove() error {
	t.Close()
	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("sstable: remove %s: %w", t.path, err)
	}
	return nil
}
