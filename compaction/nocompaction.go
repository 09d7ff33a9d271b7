package compaction

// noCompactionStrategy never generates a task. Memtable flushes still
// target L0 under this strategy (§4.6 "No-compaction"); that behavior
// lives in the engine's flush path, not here.
type noCompactionStrategy struct{}

func (s *noCompactionStrategy) GenerateTask(snapshot *Snapshot) *Task { return nil }

func (s *noCompactionStrategy) ApplyResult(snapshot *Snapshot, task *Task, outputIDs []uint64) (*Snapshot, []uint64) {
	return snapshot.Clone(), nil
}
