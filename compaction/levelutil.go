package compaction

// levelIDs returns the ids currently in 1-indexed level i (i=1 is L1, the
// first entry of snapshot.Levels), or nil if the level does not exist yet.
func levelIDs(s *Snapshot, i int) []uint64 {
	if i < 1 || i > len(s.Levels) {
		return nil
	}
	return s.Levels[i-1].SSTIDs
}

// setLevelIDs assigns ids to 1-indexed level i, growing s.Levels as needed.
func setLevelIDs(s *Snapshot, i int, ids []uint64) {
	for len(s.Levels) < i {
		s.Levels = append(s.Levels, Level{})
	}
	s.Levels[i-1].SSTIDs = ids
}

// removeFromL0 drops exactly the named ids from s.L0, preserving the
// relative order of survivors. A plain "clear L0" would be wrong here: new
// flushes can append to L0 between a task's snapshot read and its commit
// (§5 — the state mutex serializes writers but does not pause foreground
// flush between a compaction's merge and its publish).
func removeFromL0(s *Snapshot, ids []uint64) {
	rm := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		rm[id] = true
	}
	var kept []uint64
	for _, id := range s.L0 {
		if !rm[id] {
			kept = append(kept, id)
		}
	}
	s.L0 = kept
}
