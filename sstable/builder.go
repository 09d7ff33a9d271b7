package sstable

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/nplabs/lsmkv/internal/errs"
)

// Builder streams sorted (key, value) pairs into a new, size-bounded SST
// (§4.3). Callers MUST call Add in non-decreasing key order.
type Builder struct {
	file      *os.File
	path      string
	codec     Codec
	blockSize int

	pending        []entry
	pendingRawSize int

	metas       []BlockMeta
	blockOffset uint64

	bl *bloom
}

// NewBuilder creates the output file and prepares to accept entries.
// expectedKeys sizes the in-memory bloom filter attached to the resulting
// Table; it need not be exact.
func NewBuilder(path string, blockSize int, codec Codec, expectedKeys int) (*Builder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sstable: create %s: %w", path, err)
	}
	return &Builder{
		file:      f,
		path:      path,
		codec:     codec,
		blockSize: blockSize,
		bl:        newBloom(expectedKeys, 0.01),
	}, nil
}

// Add appends one pair, flushing the current block first if it would
// otherwise exceed blockSize (§4.3's block-boundary invariant).
func (b *Builder) Add(key, value []byte) error {
	entrySize := 2 + len(key) + 4 + len(value)
	if len(b.pending) > 0 && b.pendingRawSize+entrySize > b.blockSize {
		if err := b.flushBlock(); err != nil {
			return err
		}
	}
	b.pending = append(b.pending, entry{Key: append([]byte(nil), key...), Value: append([]byte(nil), value...)})
	b.pendingRawSize += entrySize
	b.bl.add(key)
	return nil
}

func (b *Builder) flushBlock() error {
	if len(b.pending) == 0 {
		return nil
	}
	firstKey := b.pending[0].Key
	lastKey := b.pending[len(b.pending)-1].Key

	encoded, err := encodeBlock(b.pending, b.codec)
	if err != nil {
		return err
	}
	if _, err := b.file.Write(encoded); err != nil {
		return fmt.Errorf("sstable: write block to %s: %w", b.path, err)
	}

	b.metas = append(b.metas, BlockMeta{Offset: uint32(b.blockOffset), FirstKey: firstKey, LastKey: lastKey})
	b.blockOffset += uint64(len(encoded))
	b.pending = nil
	b.pendingRawSize = 0
	return nil
}

// EstimatedSize returns the total encoded bytes so far: flushed block data,
// the pending (unflushed) block's raw size, and the meta region as it would
// encode right now (§4.3).
func (b *Builder) EstimatedSize() int64 {
	return int64(b.blockOffset) + int64(b.pendingRawSize) + int64(len(encodeBlockMetas(b.metas)))
}

// Build finalizes the current block, writes the meta region and the
// trailing meta_offset, fsyncs, and reopens the file read-only (§4.3's
// "write to disk, fsync, reopen read-only").
func (b *Builder) Build(id uint64) (*Table, error) {
	if err := b.flushBlock(); err != nil {
		return nil, err
	}
	if len(b.metas) == 0 {
		b.file.Close()
		os.Remove(b.path)
		return nil, errs.NewFormatError("sstable %s: builder produced zero blocks", b.path)
	}

	metaOffset := b.blockOffset
	metaBytes := encodeBlockMetas(b.metas)
	if _, err := b.file.Write(metaBytes); err != nil {
		return nil, fmt.Errorf("sstable: write meta region to %s: %w", b.path, err)
	}

	footer := make([]byte, metaFooterSize)
	binary.BigEndian.PutUint32(footer, uint32(metaOffset))
	if _, err := b.file.Write(footer); err != nil {
		return nil, fmt.Errorf("sstable: write footer to %s: %w", b.path, err)
	}
	if err := b.file.Sync(); err != nil {
		return nil, fmt.Errorf("sstable: fsync %s: %w", b.path, err)
	}
	if err := b.file.Close(); err != nil {
		return nil, fmt.Errorf("sstable: close %s: %w", b.path, err)
	}

	t, err := Open(id, b.path, b.codec)
	if err != nil {
		return nil, err
	}
	t.bloom = b.bl
	return t, nil
}

// Abort closes and deletes the partially-written file.
func (b *Builder) Abort() error {
	b.file.Close()
	if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
