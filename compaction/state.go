// Package compaction implements the compaction task model, the three
// pluggable strategies, and the executor that drives one compaction to
// completion and commits its result (§3, §4.5-§4.7).
package compaction

import (
	"github.com/nplabs/lsmkv/internal/errs"
	"github.com/nplabs/lsmkv/sstable"
)

// Level holds one non-L0 level's resident SST ids, sorted by key range with
// no overlap (§3's levels invariant).
type Level struct {
	SSTIDs []uint64
}

// Tier is one sorted run in the tiered strategy: an id naming the tier
// (assigned at creation, stable across the tier's lifetime) and the SST ids
// it currently contains (a single id until merged).
type Tier struct {
	ID     uint64
	SSTIDs []uint64
}

// Snapshot is an immutable view of the storage state (§3). Readers obtain
// one by cloning the pointer under a read lock and then read it without
// further locking; writers build a new Snapshot and publish it atomically
// (§5).
type Snapshot struct {
	L0       []uint64 // newest first
	Levels   []Level  // L1, L2, ... (leveled/simple strategies)
	Tiers    []Tier   // tiered strategy only; empty otherwise
	SSTables map[uint64]*sstable.Table
}

// Clone returns a deep-enough copy: slices and the map are copied so the
// returned Snapshot can be mutated by a strategy's ApplyResult without
// aliasing the original.
func (s *Snapshot) Clone() *Snapshot {
	n := &Snapshot{
		L0:       append([]uint64(nil), s.L0...),
		SSTables: make(map[uint64]*sstable.Table, len(s.SSTables)),
	}
	for i := range s.Levels {
		n.Levels = append(n.Levels, Level{SSTIDs: append([]uint64(nil), s.Levels[i].SSTIDs...)})
	}
	for i := range s.Tiers {
		n.Tiers = append(n.Tiers, Tier{ID: s.Tiers[i].ID, SSTIDs: append([]uint64(nil), s.Tiers[i].SSTIDs...)})
	}
	for id, t := range s.SSTables {
		n.SSTables[id] = t
	}
	return n
}

// Table looks up a table by id, panicking via InvariantViolation if it is
// referenced by L0/Levels/Tiers but absent from SSTables — §3 invariant 1.
func (s *Snapshot) Table(id uint64) *sstable.Table {
	t, ok := s.SSTables[id]
	if !ok {
		errs.Invariant("sstable id %d referenced but not present in snapshot", id)
	}
	return t
}

func tablesFor(s *Snapshot, ids []uint64) []*sstable.Table {
	out := make([]*sstable.Table, len(ids))
	for i, id := range ids {
		out[i] = s.Table(id)
	}
	return out
}
