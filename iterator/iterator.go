// Package iterator implements the merging-iterator suite (§4.4): the single
// abstraction every compaction input (an SST or a sorted run of SSTs) is
// adapted to, and the two combinators (MergeIterator, TwoMergeIterator) that stream
// a compaction's output in sorted, duplicate-resolved order without ever
// materializing a whole level in memory.
package iterator

// StorageIterator is satisfied by anything that can be walked in
// non-decreasing key order: sstable.Iterator, SstConcatIterator, and every
// combinator in this package. A tombstone is represented as a
// present key with an empty value — callers decide whether to filter it.
type StorageIterator interface {
	IsValid() bool
	Key() []byte
	Value() []byte
	Next() error
}
