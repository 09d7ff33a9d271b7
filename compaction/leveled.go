package compaction

import "bytes"

// leveledStrategy implements "Leveled (with dynamic level sizing)" (§4.6):
// per-level target sizes are derived bottom-up from the deepest level's
// actual size, and the compaction candidate is whichever level most
// exceeds its target.
type leveledStrategy struct {
	opts LeveledOptions
}

func levelActualSize(s *Snapshot, lvl int) int64 {
	var sz int64
	for _, id := range levelIDs(s, lvl) {
		sz += s.Table(id).Size()
	}
	return sz
}

// computeTargets returns per-level target sizes, 1-indexed (index 0 unused).
func computeTargets(s *Snapshot, o LeveledOptions) []int64 {
	targets := make([]int64, o.MaxLevels+1)
	base := o.BaseLevelSizeMB * 1024 * 1024

	deepestActual := levelActualSize(s, o.MaxLevels)
	if deepestActual > base {
		targets[o.MaxLevels] = deepestActual
	} else {
		targets[o.MaxLevels] = base
	}

	for lvl := o.MaxLevels - 1; lvl >= 1; lvl-- {
		t := targets[lvl+1] / int64(o.LevelSizeMultiplier)
		if t < base {
			t = 0
		}
		targets[lvl] = t
	}
	return targets
}

// baseLevel is the shallowest level with a nonzero target; shallower levels
// sit above it with target zero and are never compaction destinations on
// their own.
func baseLevel(targets []int64) int {
	for lvl := 1; lvl < len(targets); lvl++ {
		if targets[lvl] > 0 {
			return lvl
		}
	}
	return len(targets) - 1
}

func unionKeyRange(s *Snapshot, ids []uint64) (lo, hi []byte) {
	for _, id := range ids {
		t := s.Table(id)
		if lo == nil || bytes.Compare(t.FirstKey(), lo) < 0 {
			lo = t.FirstKey()
		}
		if hi == nil || bytes.Compare(t.LastKey(), hi) > 0 {
			hi = t.LastKey()
		}
	}
	return lo, hi
}

func (s *leveledStrategy) GenerateTask(snapshot *Snapshot) *Task {
	o := s.opts
	targets := computeTargets(snapshot, o)
	base := baseLevel(targets)

	if len(snapshot.L0) >= o.Level0FileNumCompactionTrigger {
		l0IDs := append([]uint64(nil), snapshot.L0...)
		lo, hi := unionKeyRange(snapshot, l0IDs)

		var lowerIDs []uint64
		for _, id := range levelIDs(snapshot, base) {
			if snapshot.Table(id).Overlaps(lo, hi) {
				lowerIDs = append(lowerIDs, id)
			}
		}
		return &Task{Leveled: &LeveledTask{
			UpperLevel: 0,
			UpperIDs:   l0IDs,
			LowerLevel: base,
			LowerIDs:   lowerIDs,
		}}
	}

	bestLevel := -1
	bestRatio := 1.0
	for lvl := 1; lvl <= o.MaxLevels; lvl++ {
		target := targets[lvl]
		if target <= 0 {
			continue
		}
		ratio := float64(levelActualSize(snapshot, lvl)) / float64(target)
		if ratio > bestRatio {
			bestRatio = ratio
			bestLevel = lvl
		}
	}
	if bestLevel == -1 || bestLevel >= o.MaxLevels {
		return nil
	}

	ids := levelIDs(snapshot, bestLevel)
	oldest := ids[0]
	for _, id := range ids[1:] {
		if id < oldest {
			oldest = id
		}
	}
	lo, hi := snapshot.Table(oldest).FirstKey(), snapshot.Table(oldest).LastKey()

	var lowerIDs []uint64
	for _, id := range levelIDs(snapshot, bestLevel+1) {
		if snapshot.Table(id).Overlaps(lo, hi) {
			lowerIDs = append(lowerIDs, id)
		}
	}
	return &Task{Leveled: &LeveledTask{
		UpperLevel: bestLevel,
		UpperIDs:   []uint64{oldest},
		LowerLevel: bestLevel + 1,
		LowerIDs:   lowerIDs,
	}}
}

func (s *leveledStrategy) ApplyResult(snapshot *Snapshot, task *Task, outputIDs []uint64) (*Snapshot, []uint64) {
	t := task.Leveled
	ns := snapshot.Clone()

	var deleted []uint64
	if t.UpperLevel == 0 {
		deleted = append(deleted, t.UpperIDs...)
		removeFromL0(ns, t.UpperIDs)
	} else {
		deleted = append(deleted, t.UpperIDs...)
		removeIDs(ns, t.UpperLevel, t.UpperIDs)
	}
	deleted = append(deleted, t.LowerIDs...)
	removeIDs(ns, t.LowerLevel, t.LowerIDs)

	survivors := levelIDs(ns, t.LowerLevel)
	setLevelIDs(ns, t.LowerLevel, mergeSortedByFirstKey(ns, survivors, outputIDs))

	return ns, deleted
}

func removeIDs(s *Snapshot, lvl int, remove []uint64) {
	rm := make(map[uint64]bool, len(remove))
	for _, id := range remove {
		rm[id] = true
	}
	var kept []uint64
	for _, id := range levelIDs(s, lvl) {
		if !rm[id] {
			kept = append(kept, id)
		}
	}
	setLevelIDs(s, lvl, kept)
}

func mergeSortedByFirstKey(s *Snapshot, a, b []uint64) []uint64 {
	out := make([]uint64, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if bytes.Compare(s.Table(a[i]).FirstKey(), s.Table(b[j]).FirstKey()) < 0 {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
