// Package sstable implements the on-disk sorted string table format shared
// by every compaction strategy: encoding and decoding (C1), the reader that
// locates and serves blocks (C2), and the builder that streams sorted pairs
// into a new file (C3).
package sstable

import (
	"encoding/binary"

	"github.com/nplabs/lsmkv/internal/errs"
)

// Codec selects the block compression algorithm. It is a builder/reader
// configuration, not a per-file tag: the on-disk layout stays exactly
// [data blocks][block meta region][meta_offset] so implementations round-trip
// each other's files regardless of which codec produced them, as long as
// both sides agree on the codec out of band (the engine's Options).
type Codec uint8

const (
	CodecNone Codec = iota
	CodecSnappy
	CodecZstd
)

// BlockMeta records one data block's file offset and key range.
type BlockMeta struct {
	Offset   uint32
	FirstKey []byte
	LastKey  []byte
}

// metaFooterSize is the trailing pointer to the start of the block meta
// region: a single big-endian u32.
const metaFooterSize = 4

// encodeBlockMetas concatenates block_metas records:
// { offset: u32, first_key_len: u16, first_key, last_key_len: u16, last_key },
// all big-endian, in order.
func encodeBlockMetas(metas []BlockMeta) []byte {
	size := 0
	for _, m := range metas {
		size += 4 + 2 + len(m.FirstKey) + 2 + len(m.LastKey)
	}
	buf := make([]byte, size)
	off := 0
	for _, m := range metas {
		binary.BigEndian.PutUint32(buf[off:], m.Offset)
		off += 4
		binary.BigEndian.PutUint16(buf[off:], uint16(len(m.FirstKey)))
		off += 2
		off += copy(buf[off:], m.FirstKey)
		binary.BigEndian.PutUint16(buf[off:], uint16(len(m.LastKey)))
		off += 2
		off += copy(buf[off:], m.LastKey)
	}
	return buf
}

// decodeBlockMetas is the inverse of encodeBlockMetas. An empty region
// decodes to a nil (zero-length) slice and no error; callers reject zero
// blocks explicitly, since "zero blocks" is its own distinct format error.
func decodeBlockMetas(data []byte) ([]BlockMeta, error) {
	var metas []BlockMeta
	off := 0
	for off < len(data) {
		if off+4+2 > len(data) {
			return nil, errs.NewFormatError("block meta region truncated at offset %d", off)
		}
		offset := binary.BigEndian.Uint32(data[off:])
		off += 4
		keyLen := int(binary.BigEndian.Uint16(data[off:]))
		off += 2
		if off+keyLen+2 > len(data) {
			return nil, errs.NewFormatError("block meta first_key truncated at offset %d", off)
		}
		firstKey := append([]byte(nil), data[off:off+keyLen]...)
		off += keyLen
		lastLen := int(binary.BigEndian.Uint16(data[off:]))
		off += 2
		if off+lastLen > len(data) {
			return nil, errs.NewFormatError("block meta last_key truncated at offset %d", off)
		}
		lastKey := append([]byte(nil), data[off:off+lastLen]...)
		off += lastLen
		metas = append(metas, BlockMeta{Offset: offset, FirstKey: firstKey, LastKey: lastKey})
	}
	return metas, nil
}
