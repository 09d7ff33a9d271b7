package engine

import (
	"fmt"

	"github.com/nplabs/lsmkv/compaction"
	"github.com/nplabs/lsmkv/internal/errs"
	"github.com/nplabs/lsmkv/sstable"
)

// flushOne writes mt's entries as a new SST and publishes it at the head of
// L0 (newest-first, §3), or under tiered compaction as a new single-SST tier
// at the head of Tiers, then retires the WAL segment that backed
// mt. It is the "external force_flush_next_immutable_memtable interface"
// the compaction core's background driver consumes (§6).
func (e *Engine) flushOne(mt *memtable) error {
	entries := mt.Entries()
	if len(entries) == 0 {
		return e.retireOldestWAL()
	}

	id := e.allocSSTID()
	b, err := sstable.NewBuilder(e.pathOfSST(id), e.config.BlockSize, e.config.Codec, len(entries))
	if err != nil {
		return err
	}
	for _, en := range entries {
		if err := b.Add(en.Key, en.Value); err != nil {
			b.Abort()
			return err
		}
	}
	t, err := b.Build(id)
	if err != nil {
		return err
	}

	e.holder.Mutate(func(s *compaction.Snapshot) (*compaction.Snapshot, []uint64) {
		ns := s.Clone()
		if _, exists := ns.SSTables[id]; exists {
			errs.Invariant("sstable id %d already present at flush commit", id)
		}
		ns.SSTables[id] = t
		if e.config.CompactionOptions.Tiered != nil {
			ns.Tiers = append([]compaction.Tier{{ID: id, SSTIDs: []uint64{id}}}, ns.Tiers...)
		} else {
			ns.L0 = append([]uint64{id}, ns.L0...)
		}
		return ns, nil
	})

	if err := e.manifest.RecordFlush(id); err != nil {
		return fmt.Errorf("engine: record flush event: %w", err)
	}

	return e.retireOldestWAL()
}

func (e *Engine) retireOldestWAL() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.frozenWALs) == 0 {
		return nil
	}
	w := e.frozenWALs[0]
	e.frozenWALs = e.frozenWALs[1:]
	return w.Remove()
}

func (e *Engine) recordCompaction(task *compaction.Task, outputIDs []uint64) error {
	return e.manifest.RecordCompaction(task, outputIDs)
}
