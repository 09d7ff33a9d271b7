package engine

import (
	"sort"
	"sync"
)

// memtableEntry is one resident write. An empty Value is a tombstone (§3),
// so no separate deleted flag is carried.
type memtableEntry struct {
	Key   []byte
	Value []byte
}

// memtable is the mutable write buffer named as an external collaborator in
// §1's scope note; the compaction core only ever sees it as a flush
// producing one new SST. Kept sorted by key via binary-search insertion,
// adapted from the teacher's MemTable.
type memtable struct {
	mu      sync.RWMutex
	entries []memtableEntry
	size    int
	maxSize int
}

func newMemtable(maxSize int) *memtable {
	return &memtable{
		entries: make([]memtableEntry, 0, 1024),
		maxSize: maxSize,
	}
}

func (m *memtable) search(key []byte) int {
	return sort.Search(len(m.entries), func(i int) bool {
		return string(m.entries[i].Key) >= string(key)
	})
}

// Put inserts or overwrites key with value (empty value = tombstone).
func (m *memtable) Put(key, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.search(key)
	e := memtableEntry{Key: append([]byte(nil), key...), Value: append([]byte(nil), value...)}

	if idx < len(m.entries) && string(m.entries[idx].Key) == string(key) {
		m.size += len(value) - len(m.entries[idx].Value)
		m.entries[idx] = e
		return
	}
	m.entries = append(m.entries, memtableEntry{})
	copy(m.entries[idx+1:], m.entries[idx:])
	m.entries[idx] = e
	m.size += len(key) + len(value) + 16
}

// Get returns the value for key and whether it was found at all (a found
// tombstone returns found=true, value=nil — callers distinguish "not
// present" from "deleted").
func (m *memtable) Get(key []byte) (value []byte, found bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx := m.search(key)
	if idx < len(m.entries) && string(m.entries[idx].Key) == string(key) {
		return m.entries[idx].Value, true
	}
	return nil, false
}

// Size reports the approximate resident byte size.
func (m *memtable) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// IsFull reports whether the memtable has reached its configured maxSize.
func (m *memtable) IsFull() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size >= m.maxSize
}

// Entries returns a sorted copy of all resident entries, suitable for
// streaming into an SST builder during a flush.
func (m *memtable) Entries() []memtableEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]memtableEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of resident entries.
func (m *memtable) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
