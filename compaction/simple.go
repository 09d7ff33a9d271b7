package compaction

// simpleStrategy implements "Simple leveled" (§4.6): an L0 size trigger and
// a per-level count-ratio trigger, each compacting one level wholesale into
// the next.
type simpleStrategy struct {
	opts SimpleOptions
}

func (s *simpleStrategy) GenerateTask(snapshot *Snapshot) *Task {
	o := s.opts

	if len(snapshot.L0) >= o.Level0FileNumCompactionTrigger {
		return &Task{Simple: &SimpleTask{
			UpperLevel: 0,
			UpperIDs:   append([]uint64(nil), snapshot.L0...),
			LowerLevel: 1,
			LowerIDs:   append([]uint64(nil), levelIDs(snapshot, 1)...),
		}}
	}

	for i := 1; i < o.MaxLevels; i++ {
		upper := levelIDs(snapshot, i)
		if len(upper) == 0 {
			continue
		}
		lower := levelIDs(snapshot, i+1)
		if len(lower)*100/len(upper) < o.SizeRatioPercent {
			return &Task{Simple: &SimpleTask{
				UpperLevel: i,
				UpperIDs:   append([]uint64(nil), upper...),
				LowerLevel: i + 1,
				LowerIDs:   append([]uint64(nil), lower...),
			}}
		}
	}
	return nil
}

func (s *simpleStrategy) ApplyResult(snapshot *Snapshot, task *Task, outputIDs []uint64) (*Snapshot, []uint64) {
	t := task.Simple
	ns := snapshot.Clone()

	var deleted []uint64
	if t.UpperLevel == 0 {
		deleted = append(deleted, t.UpperIDs...)
		removeFromL0(ns, t.UpperIDs)
	} else {
		deleted = append(deleted, levelIDs(ns, t.UpperLevel)...)
		setLevelIDs(ns, t.UpperLevel, nil)
	}
	deleted = append(deleted, levelIDs(ns, t.LowerLevel)...)
	setLevelIDs(ns, t.LowerLevel, append([]uint64(nil), outputIDs...))

	return ns, deleted
}
