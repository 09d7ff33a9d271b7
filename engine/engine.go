// Package engine assembles the compaction core's external collaborators
// (§1, §6) — memtable, WAL, manifest, block cache — into a complete
// get/put/scan storage engine, and runs the background compaction/flush
// driver (§4.8) that keeps the core busy.
package engine

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/nplabs/lsmkv/cache"
	"github.com/nplabs/lsmkv/compaction"
	"github.com/nplabs/lsmkv/sstable"
)

// Engine is the public storage-engine facade. It owns the mutable write
// path (memtable + WAL) and delegates all on-disk organization to the
// compaction core.
type Engine struct {
	config Config

	mu         sync.Mutex // serializes memtable/WAL swaps; NOT the state mutex
	active     *memtable
	immutables []*memtable // oldest first
	wal        *wal
	walSeq     uint64
	frozenWALs []*wal // one per queued immutable, removed once flushed

	holder   *compaction.StateHolder
	strategy compaction.Strategy
	executor *compaction.Executor
	cache    *cache.BlockCache
	manifest *manifest

	nextSSTID atomic.Uint64

	shutdown chan struct{}
	wg       sync.WaitGroup
}

// Open creates or recovers an engine rooted at config.DataDir.
func Open(config Config) (*Engine, error) {
	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("engine: create data dir %s: %w", config.DataDir, err)
	}

	m, err := openManifest(filepath.Join(config.DataDir, "MANIFEST"))
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:   config,
		active:   newMemtable(config.MemtableSize),
		cache:    cache.New(config.BlockCacheCapacity),
		strategy: compaction.NewStrategy(config.CompactionOptions),
		manifest: m,
		shutdown: make(chan struct{}),
	}
	e.holder = compaction.NewStateHolder(&compaction.Snapshot{SSTables: map[uint64]*sstable.Table{}})
	e.executor = &compaction.Executor{
		NextSSTID:     e.allocSSTID,
		PathOfSST:     e.pathOfSST,
		BlockSize:     config.BlockSize,
		TargetSSTSize: config.TargetSSTSize,
		Cache:         e.cache,
		Codec:         config.Codec,
		Strategy:      e.strategy,
		Opts:          config.CompactionOptions,
		OnCommit:      e.recordCompaction,
	}

	if err := e.recover(); err != nil {
		return nil, fmt.Errorf("engine: recover %s: %w", config.DataDir, err)
	}

	walPath := filepath.Join(config.DataDir, e.walName())
	w, err := newWAL(walPath)
	if err != nil {
		return nil, err
	}
	e.wal = w

	e.wg.Add(2)
	go e.compactionLoop()
	go e.flushLoop()

	log.Printf("engine: opened at %s", config.DataDir)
	return e, nil
}

func (e *Engine) walName() string { return fmt.Sprintf("%06d.wal", e.walSeq) }

func (e *Engine) allocSSTID() uint64 { return e.nextSSTID.Add(1) - 1 }

func (e *Engine) pathOfSST(id uint64) string {
	return filepath.Join(e.config.DataDir, fmt.Sprintf("%06d.sst", id))
}

// Put inserts key with value. An empty value is indistinguishable from a
// tombstone on read (§3); callers that need to store an empty payload
// should not rely on presence-vs-absence of data to mean anything.
func (e *Engine) Put(key, value []byte) error {
	return e.write(key, value)
}

// Delete installs a tombstone at key.
func (e *Engine) Delete(key []byte) error {
	return e.write(key, nil)
}

func (e *Engine) write(key, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.wal.Append(key, value); err != nil {
		return fmt.Errorf("engine: append wal: %w", err)
	}
	e.active.Put(key, value)

	if e.active.IsFull() {
		e.rotateMemtableLocked()
	}
	return nil
}

// rotateMemtableLocked freezes the active memtable into the immutable
// queue and opens a fresh active memtable and WAL segment. Caller holds mu.
func (e *Engine) rotateMemtableLocked() {
	e.immutables = append(e.immutables, e.active)
	e.active = newMemtable(e.config.MemtableSize)

	oldWAL := e.wal
	e.walSeq++
	w, err := newWAL(filepath.Join(e.config.DataDir, e.walName()))
	if err != nil {
		log.Printf("engine: error opening new wal segment: %v", err)
		e.walSeq--
		return
	}
	e.wal = w
	e.frozenWALs = append(e.frozenWALs, oldWAL)
}

// Get returns the value for key. found is false for a key that has never
// been written or whose latest write was a tombstone.
func (e *Engine) Get(key []byte) ([]byte, bool, error) {
	e.mu.Lock()
	if v, ok := e.active.Get(key); ok {
		e.mu.Unlock()
		return tombstoneToNotFound(v)
	}
	for i := len(e.immutables) - 1; i >= 0; i-- {
		if v, ok := e.immutables[i].Get(key); ok {
			e.mu.Unlock()
			return tombstoneToNotFound(v)
		}
	}
	e.mu.Unlock()

	snapshot := e.holder.Load()

	// lookup reports a tombstone as found with an empty value, so the newest
	// SST holding key decides the result.
	lookup := func(id uint64) ([]byte, bool, error) {
		it := sstable.NewIterator(snapshot.Table(id), e.cache)
		if err := it.SeekToKey(key); err != nil || !it.IsValid() || !bytes.Equal(it.Key(), key) {
			return nil, false, err
		}
		return append([]byte(nil), it.Value()...), true, nil
	}

	for _, id := range snapshot.L0 {
		v, found, err := lookup(id)
		if err != nil {
			return nil, false, err
		}
		if found {
			return tombstoneToNotFound(v)
		}
	}

	for _, level := range snapshot.Levels {
		for _, id := range level.SSTIDs {
			t := snapshot.Table(id)
			if !t.Overlaps(key, key) {
				continue
			}
			v, found, err := lookup(id)
			if err != nil {
				return nil, false, err
			}
			if found {
				return tombstoneToNotFound(v)
			}
			break // non-overlapping within a level; no other SST can hold key
		}
	}

	for _, tier := range snapshot.Tiers {
		for _, id := range tier.SSTIDs {
			t := snapshot.Table(id)
			if !t.Overlaps(key, key) {
				continue
			}
			v, found, err := lookup(id)
			if err != nil {
				return nil, false, err
			}
			if found {
				return tombstoneToNotFound(v)
			}
		}
	}

	return nil, false, nil
}

func tombstoneToNotFound(v []byte) ([]byte, bool, error) {
	if len(v) == 0 {
		return nil, false, nil
	}
	return v, true, nil
}

// Scan returns all live (non-tombstone) entries with keys in [start, end],
// inclusive, in sorted order. It merges across memtables and every SST via
// a full materialize-then-sort; callers scanning hot ranges repeatedly
// should prefer narrower bounds.
func (e *Engine) Scan(start, end []byte) ([]KV, error) {
	latest := make(map[string][]byte)
	order := make([]string, 0)

	record := func(key, value []byte) {
		if start != nil && bytes.Compare(key, start) < 0 {
			return
		}
		if end != nil && bytes.Compare(key, end) > 0 {
			return
		}
		ks := string(key)
		if _, seen := latest[ks]; seen {
			return // a newer source already supplied this key
		}
		order = append(order, ks)
		latest[ks] = value
	}

	e.mu.Lock()
	for _, en := range e.active.Entries() {
		record(en.Key, en.Value)
	}
	for i := len(e.immutables) - 1; i >= 0; i-- {
		for _, en := range e.immutables[i].Entries() {
			record(en.Key, en.Value)
		}
	}
	e.mu.Unlock()

	snapshot := e.holder.Load()
	for _, id := range snapshot.L0 {
		if err := scanTable(snapshot.Table(id), e.cache, record); err != nil {
			return nil, err
		}
	}
	for _, level := range snapshot.Levels {
		for _, id := range level.SSTIDs {
			if err := scanTable(snapshot.Table(id), e.cache, record); err != nil {
				return nil, err
			}
		}
	}
	for _, tier := range snapshot.Tiers {
		for _, id := range tier.SSTIDs {
			if err := scanTable(snapshot.Table(id), e.cache, record); err != nil {
				return nil, err
			}
		}
	}

	sort.Strings(order)
	out := make([]KV, 0, len(order))
	for _, k := range order {
		v := latest[k]
		if len(v) == 0 {
			continue // tombstone
		}
		out = append(out, KV{Key: []byte(k), Value: v})
	}
	return out, nil
}

// KV is one (key, value) pair returned by Scan.
type KV struct {
	Key   []byte
	Value []byte
}

func scanTable(t *sstable.Table, bc *cache.BlockCache, record func(key, value []byte)) error {
	it := sstable.NewIterator(t, bc)
	if err := it.SeekToFirst(); err != nil {
		return err
	}
	for it.IsValid() {
		record(it.Key(), it.Value())
		if err := it.Next(); err != nil {
			return err
		}
	}
	return nil
}

// Sync forces the active WAL segment durable.
func (e *Engine) Sync() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wal.Sync()
}

// ForceFullCompaction synchronously compacts all of L0 and L1 into L1,
// ignoring the configured strategy (§6).
func (e *Engine) ForceFullCompaction() error {
	snapshot := e.holder.Load()
	task := compaction.NewForceFullTask(snapshot)
	if len(task.ForceFull.L0IDs) == 0 && len(task.ForceFull.L1IDs) == 0 {
		return nil
	}
	return e.executor.Execute(task, e.holder)
}

// Close signals both background loops, waits for them, flushes any
// remaining memtables, and closes open handles.
func (e *Engine) Close() error {
	close(e.shutdown)
	e.wg.Wait()

	e.mu.Lock()
	if e.active.Len() > 0 {
		e.immutables = append(e.immutables, e.active)
		e.active = newMemtable(0)
	}
	pending := e.immutables
	e.immutables = nil
	e.mu.Unlock()

	for _, mt := range pending {
		if err := e.flushOne(mt); err != nil {
			return err
		}
	}

	if err := e.wal.Close(); err != nil {
		return err
	}
	if err := e.manifest.Close(); err != nil {
		return err
	}

	snapshot := e.holder.Load()
	for _, t := range snapshot.SSTables {
		t.Close()
	}
	return nil
}
