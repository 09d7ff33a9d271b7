package compaction

import (
	"github.com/nplabs/lsmkv/cache"
	"github.com/nplabs/lsmkv/internal/errs"
	"github.com/nplabs/lsmkv/iterator"
	"github.com/nplabs/lsmkv/sstable"
)

// Executor drives one Task to completion (§4.7): open inputs, merge,
// rewrite into new SSTs, and commit the result. Its dependencies are the
// memtable/flush collaborator's surface named in §6 — the executor never
// reaches into the engine package directly.
type Executor struct {
	NextSSTID     func() uint64
	PathOfSST     func(id uint64) string
	BlockSize     int
	TargetSSTSize int64
	Cache         *cache.BlockCache
	Codec         sstable.Codec
	Strategy      Strategy
	Opts          Options

	// OnCommit, if set, is called once with the task and its output ids
	// right after the in-memory state commits and before displaced files
	// are unlinked — the hook the engine uses to append the manifest event
	// named in §6. Manifest persistence is an external collaborator (§1);
	// the executor only provides the call site.
	OnCommit func(task *Task, outputIDs []uint64) error
}

// Execute runs task against holder's current snapshot and commits the
// result. It returns an error without mutating state if any step before
// the commit fails; per §7, the caller (the background driver) logs and
// continues — a failed compaction leaves state unchanged.
func (e *Executor) Execute(task *Task, holder *StateHolder) error {
	snapshot := holder.Load()

	it, err := e.buildIterator(snapshot, task)
	if err != nil {
		return err
	}

	bottomLevel := task.CompactToBottomLevel(e.Opts.MaxLevels())
	outputs, err := e.stream(it, bottomLevel)
	if err != nil {
		for _, t := range outputs {
			t.Remove()
		}
		return err
	}

	outputIDs := make([]uint64, len(outputs))
	for i, t := range outputs {
		outputIDs[i] = t.ID()
	}

	var oldTables map[uint64]*sstable.Table
	_, deleted := holder.Mutate(func(s *Snapshot) (*Snapshot, []uint64) {
		oldTables = s.SSTables

		// Outputs enter SSTables before Apply: strategies that keep a level
		// sorted by first key look the output tables up by id.
		withOutputs := s.Clone()
		for _, t := range outputs {
			if _, exists := withOutputs.SSTables[t.ID()]; exists {
				errs.Invariant("sstable id %d already present at commit", t.ID())
			}
			withOutputs.SSTables[t.ID()] = t
		}
		ns, del := Apply(e.Strategy, withOutputs, task, outputIDs)

		for _, id := range del {
			if _, exists := ns.SSTables[id]; !exists {
				errs.Invariant("sstable id %d missing from snapshot at commit", id)
			}
			delete(ns.SSTables, id)
		}
		return ns, del
	})

	if e.OnCommit != nil {
		if err := e.OnCommit(task, outputIDs); err != nil {
			return err
		}
	}

	// Unlink displaced files (§4.7 step 6). A concurrent reader that cloned
	// the snapshot pointer before this Mutate call still holds its own
	// *sstable.Table with an open file handle, so this is safe on POSIX.
	for _, id := range deleted {
		if t, ok := oldTables[id]; ok {
			if err := t.Remove(); err != nil {
				return err
			}
		}
	}
	return nil
}

// stream merges it into a sequence of output SSTs, finalizing the current
// builder whenever its estimated size reaches TargetSSTSize (§4.7 step 3).
// When bottomLevel is true, entries with an empty value (tombstones) are
// dropped instead of written, since no older SST can still be shadowed by
// them.
func (e *Executor) stream(it iterator.StorageIterator, bottomLevel bool) ([]*sstable.Table, error) {
	var outputs []*sstable.Table
	var builder *sstable.Builder
	var curID uint64

	finalize := func() error {
		if builder == nil {
			return nil
		}
		t, err := builder.Build(curID)
		if err != nil {
			return err
		}
		outputs = append(outputs, t)
		builder = nil
		return nil
	}

	for it.IsValid() {
		key, value := it.Key(), it.Value()
		if bottomLevel && len(value) == 0 {
			if err := it.Next(); err != nil {
				return outputs, err
			}
			continue
		}

		if builder == nil {
			curID = e.NextSSTID()
			b, err := sstable.NewBuilder(e.PathOfSST(curID), e.BlockSize, e.Codec, 0)
			if err != nil {
				return outputs, err
			}
			builder = b
		}

		if err := builder.Add(key, value); err != nil {
			return outputs, err
		}

		if builder.EstimatedSize() >= e.TargetSSTSize {
			if err := finalize(); err != nil {
				return outputs, err
			}
		}

		if err := it.Next(); err != nil {
			return outputs, err
		}
	}

	if err := finalize(); err != nil {
		return outputs, err
	}
	return outputs, nil
}

// buildIterator picks the merge shape named by the iterator-selection table
// in §4.7, keyed on the task's tag and (for Simple/Leveled) whether the
// upper side is L0.
func (e *Executor) buildIterator(s *Snapshot, task *Task) (iterator.StorageIterator, error) {
	switch {
	case task.ForceFull != nil:
		t := task.ForceFull
		return e.twoMergeL0(s, t.L0IDs, t.L1IDs)

	case task.Simple != nil:
		t := task.Simple
		if t.UpperLevel == 0 {
			return e.twoMergeL0(s, t.UpperIDs, t.LowerIDs)
		}
		return e.twoMergeConcat(s, t.UpperIDs, t.LowerIDs)

	case task.Leveled != nil:
		t := task.Leveled
		if t.UpperLevel == 0 {
			return e.twoMergeL0(s, t.UpperIDs, t.LowerIDs)
		}
		return e.twoMergeConcat(s, t.UpperIDs, t.LowerIDs)

	case task.Tiered != nil:
		return e.tieredMerge(s, task.Tiered.ContributingTierIDs)

	default:
		errs.Invariant("compaction task has no variant set")
		return nil, nil
	}
}

func (e *Executor) twoMergeL0(s *Snapshot, upperIDs, lowerIDs []uint64) (iterator.StorageIterator, error) {
	upper, err := l0MergeIterator(tablesFor(s, upperIDs), e.Cache)
	if err != nil {
		return nil, err
	}
	lower, err := iterator.NewSstConcatIteratorAtFirst(tablesFor(s, lowerIDs), e.Cache)
	if err != nil {
		return nil, err
	}
	return iterator.NewTwoMergeIterator(upper, lower)
}

func (e *Executor) twoMergeConcat(s *Snapshot, upperIDs, lowerIDs []uint64) (iterator.StorageIterator, error) {
	upper, err := iterator.NewSstConcatIteratorAtFirst(tablesFor(s, upperIDs), e.Cache)
	if err != nil {
		return nil, err
	}
	lower, err := iterator.NewSstConcatIteratorAtFirst(tablesFor(s, lowerIDs), e.Cache)
	if err != nil {
		return nil, err
	}
	return iterator.NewTwoMergeIterator(upper, lower)
}

func (e *Executor) tieredMerge(s *Snapshot, tierIDs []uint64) (iterator.StorageIterator, error) {
	contributing := make(map[uint64]bool, len(tierIDs))
	for _, id := range tierIDs {
		contributing[id] = true
	}

	var its []iterator.StorageIterator
	for _, tier := range s.Tiers {
		if !contributing[tier.ID] {
			continue
		}
		c, err := iterator.NewSstConcatIteratorAtFirst(tablesFor(s, tier.SSTIDs), e.Cache)
		if err != nil {
			return nil, err
		}
		its = append(its, c)
	}
	return iterator.NewMergeIterator(its)
}

func l0MergeIterator(tables []*sstable.Table, bc *cache.BlockCache) (iterator.StorageIterator, error) {
	its := make([]iterator.StorageIterator, len(tables))
	for i, t := range tables {
		sit := sstable.NewIterator(t, bc)
		if err := sit.SeekToFirst(); err != nil {
			return nil, err
		}
		its[i] = sit
	}
	return iterator.NewMergeIterator(its)
}
