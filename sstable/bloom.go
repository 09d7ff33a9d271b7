package sstable

import (
	"hash/fnv"
	"math"
)

// bloom is a probabilistic membership filter attached to a Table in memory
// at build time. It is optional and, per the data model, not consulted by
// the compaction core itself (only by Table.Get's point lookups), so it is
// never persisted to disk: the wire format stays exactly
// [data blocks][block meta region][meta_offset]. Reopening an existing SST
// after a restart simply rebuilds without one.
//
// Adapted from the teacher's lsm.BloomFilter (double hashing via two FNV
// variants), generalized from string keys to raw byte keys.
type bloom struct {
	bits      []byte
	numBits   uint64
	numHashes uint32
}

func newBloom(expectedKeys int, falsePositiveRate float64) *bloom {
	if expectedKeys <= 0 {
		expectedKeys = 1
	}
	numBits := uint64(math.Ceil(-float64(expectedKeys) * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2)))
	if numBits == 0 {
		numBits = 1
	}
	numHashes := uint32(math.Ceil(float64(numBits) / float64(expectedKeys) * math.Ln2))
	if numHashes == 0 {
		numHashes = 1
	}
	numBytes := (numBits + 7) / 8
	return &bloom{bits: make([]byte, numBytes), numBits: numBits, numHashes: numHashes}
}

func (b *bloom) hashes(key []byte) []uint64 {
	h1 := fnv.New64a()
	h1.Write(key)
	a := h1.Sum64()

	h2 := fnv.New64()
	h2.Write(key)
	c := h2.Sum64()

	out := make([]uint64, b.numHashes)
	for i := uint32(0); i < b.numHashes; i++ {
		out[i] = (a + uint64(i)*c) % b.numBits
	}
	return out
}

func (b *bloom) add(key []byte) {
	for _, h := range b.hashes(key) {
		b.bits[h/8] |= 1 << (h % 8)
	}
}

func (b *bloom) mayContain(key []byte) bool {
	for _, h := range b.hashes(key) {
		if b.bits[h/8]&(1<<(h%8)) == 0 {
			return false
		}
	}
	return true
}
