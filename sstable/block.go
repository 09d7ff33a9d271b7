package sstable

import (
	"bytes"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/nplabs/lsmkv/internal/errs"
)

// checksumSize is the trailing xxhash64 appended to every on-disk block,
// computed over the (possibly compressed) payload. This lives inside the
// opaque byte range addressed by a pair of BlockMeta offsets, so it does not
// disturb the compat-critical outer file layout.
const checksumSize = 8

// entry is one (key, value) pair as it appears inside a decoded block.
// An empty Value denotes a tombstone (§3).
type entry struct {
	Key   []byte
	Value []byte
}

// encodeBlock serializes entries as a sequence of
// { key_len: u16, key, value_len: u32, value }, compresses the result with
// codec, and appends an xxhash64 checksum of the compressed bytes.
func encodeBlock(entries []entry, codec Codec) ([]byte, error) {
	var raw bytes.Buffer
	var lenBuf [4]byte
	for _, e := range entries {
		binary.BigEndian.PutUint16(lenBuf[:2], uint16(len(e.Key)))
		raw.Write(lenBuf[:2])
		raw.Write(e.Key)
		binary.BigEndian.PutUint32(lenBuf[:4], uint32(len(e.Value)))
		raw.Write(lenBuf[:4])
		raw.Write(e.Value)
	}

	payload, err := compress(raw.Bytes(), codec)
	if err != nil {
		return nil, err
	}

	sum := xxhash.Sum64(payload)
	out := make([]byte, len(payload)+checksumSize)
	copy(out, payload)
	binary.BigEndian.PutUint64(out[len(payload):], sum)
	return out, nil
}

// decodeBlock verifies the trailing checksum, decompresses, and parses
// entries back out. Any mismatch is reported as a FormatError.
func decodeBlock(data []byte, codec Codec) ([]entry, error) {
	if len(data) < checksumSize {
		return nil, errs.NewFormatError("block too small to hold a checksum (%d bytes)", len(data))
	}
	payload := data[:len(data)-checksumSize]
	want := binary.BigEndian.Uint64(data[len(data)-checksumSize:])
	if got := xxhash.Sum64(payload); got != want {
		return nil, errs.NewFormatError("block checksum mismatch: got %x want %x", got, want)
	}

	raw, err := decompress(payload, codec)
	if err != nil {
		return nil, err
	}

	var entries []entry
	off := 0
	for off < len(raw) {
		if off+2 > len(raw) {
			return nil, errs.NewFormatError("block entry truncated at offset %d", off)
		}
		keyLen := int(binary.BigEndian.Uint16(raw[off:]))
		off += 2
		if off+keyLen+4 > len(raw) {
			return nil, errs.NewFormatError("block entry key truncated at offset %d", off)
		}
		key := raw[off : off+keyLen]
		off += keyLen
		valLen := int(binary.BigEndian.Uint32(raw[off:]))
		off += 4
		if off+valLen > len(raw) {
			return nil, errs.NewFormatError("block entry value truncated at offset %d", off)
		}
		value := raw[off : off+valLen]
		off += valLen
		entries = append(entries, entry{Key: key, Value: value})
	}
	return entries, nil
}

func compress(raw []byte, codec Codec) ([]byte, error) {
	switch codec {
	case CodecNone:
		return raw, nil
	case CodecSnappy:
		return snappy.Encode(nil, raw), nil
	case CodecZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(raw, nil), nil
	default:
		return nil, errs.NewFormatError("unknown block codec %d", codec)
	}
}

func decompress(payload []byte, codec Codec) ([]byte, error) {
	switch codec {
	case CodecNone:
		return payload, nil
	case CodecSnappy:
		out, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, errs.NewFormatError("snappy decode failed: %v", err)
		}
		return out, nil
	case CodecZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		out, err := dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, errs.NewFormatError("zstd decode failed: %v", err)
		}
		return out, nil
	default:
		return nil, errs.NewFormatError("unknown block codec %d", codec)
	}
}
