package compaction

// NewForceFullTask builds the synchronous force_full_compaction task (§6):
// all of L0 and all of L1 into L1, regardless of the configured strategy.
func NewForceFullTask(s *Snapshot) *Task {
	return &Task{ForceFull: &ForceFullTask{
		L0IDs: append([]uint64(nil), s.L0...),
		L1IDs: append([]uint64(nil), levelIDs(s, 1)...),
	}}
}

// Apply computes the post-commit snapshot for task: the ForceFull special
// case bypasses the configured strategy entirely (§6), everything else
// dispatches to strategy.ApplyResult. Both the executor's commit step and
// manifest replay at startup share this so the two can never disagree on
// how a persisted event reshapes the snapshot.
func Apply(strategy Strategy, s *Snapshot, task *Task, outputIDs []uint64) (*Snapshot, []uint64) {
	if task.ForceFull != nil {
		return applyForceFull(s, task.ForceFull, outputIDs)
	}
	return strategy.ApplyResult(s, task, outputIDs)
}

// applyForceFull is ForceFullTask's own ApplyResult logic. It does not
// belong to any Strategy because it runs independent of the configured one.
func applyForceFull(s *Snapshot, t *ForceFullTask, outputIDs []uint64) (*Snapshot, []uint64) {
	ns := s.Clone()

	deleted := append([]uint64(nil), t.L0IDs...)
	deleted = append(deleted, t.L1IDs...)

	removeFromL0(ns, t.L0IDs)
	removeIDs(ns, 1, t.L1IDs)
	setLevelIDs(ns, 1, mergeSortedByFirstKey(ns, levelIDs(ns, 1), outputIDs))

	return ns, deleted
}
