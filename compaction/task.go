package compaction

// Task is a tagged union over the four compaction shapes (§3, §4.5). Exactly
// one of the pointer fields is non-nil; the executor switches on which one
// to pick the right iterator construction (§4.7) without importing any
// strategy-specific type beyond this tag.
type Task struct {
	ForceFull *ForceFullTask
	Simple    *SimpleTask
	Tiered    *TieredTask
	Leveled   *LeveledTask
}

// ForceFullTask compacts all of L0 and all of L1 into L1, regardless of the
// configured strategy (the synchronous force_full_compaction control, §6).
type ForceFullTask struct {
	L0IDs []uint64
	L1IDs []uint64
}

// SimpleTask compacts every SST of UpperIDs into LowerLevel (§4.6 "Simple
// leveled"). UpperLevel is 0 for an L0 trigger (UpperIDs then holds the
// whole L0 stack) and i for an L_i -> L_{i+1} trigger.
type SimpleTask struct {
	UpperLevel int
	UpperIDs   []uint64
	LowerLevel int
	LowerIDs   []uint64
}

// TieredTask compacts the tiers named by ContributingTierIDs into one new
// tier, inserted at the position of the oldest removed tier.
type TieredTask struct {
	ContributingTierIDs []uint64
	IncludesBottomTier  bool
}

// LeveledTask compacts UpperIDs (L0 or a single SST from level UpperLevel)
// into LowerLevel, merging with the overlapping LowerIDs (§4.6 "Leveled").
// UpperLevel is 0 for an L0->base trigger.
type LeveledTask struct {
	UpperLevel int
	UpperIDs   []uint64
	LowerLevel int
	LowerIDs   []uint64
}

// CompactToBottomLevel derives whether outputs of t may elide tombstones
// (§4.5): true for ForceFullCompaction; for Leveled/Simple, true iff the
// destination is the deepest configured level; for Tiered, true iff the
// task includes the deepest existing tier.
func (t *Task) CompactToBottomLevel(maxLevels int) bool {
	switch {
	case t.ForceFull != nil:
		return true
	case t.Simple != nil:
		return t.Simple.LowerLevel == maxLevels
	case t.Leveled != nil:
		return t.Leveled.LowerLevel == maxLevels
	case t.Tiered != nil:
		return t.Tiered.IncludesBottomTier
	default:
		return false
	}
}
