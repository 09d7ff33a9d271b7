package compaction

// tieredStrategy implements "Tiered (universal)" (§4.6): every flush forms
// a new single-SST tier at the head; three triggers fire in a fixed
// priority order (space-amp, size-ratio, reduce-sorted-runs) — the first
// implementations resolution to the open question in §9 about simultaneous
// matches.
type tieredStrategy struct {
	opts TieredOptions
}

func tierSize(s *Snapshot, t Tier) int64 {
	var sz int64
	for _, id := range t.SSTIDs {
		sz += s.Table(id).Size()
	}
	return sz
}

func (s *tieredStrategy) GenerateTask(snapshot *Snapshot) *Task {
	o := s.opts
	tiers := snapshot.Tiers
	n := len(tiers)
	if n == 0 {
		return nil
	}

	// 1. Space-amp: sum of all-but-last over last, against the whole run.
	if n >= 2 {
		var nonLast int64
		for i := 0; i < n-1; i++ {
			nonLast += tierSize(snapshot, tiers[i])
		}
		last := tierSize(snapshot, tiers[n-1])
		if last > 0 && nonLast*100/last >= int64(o.MaxSizeAmplificationPercent) {
			return tieredTaskForRange(tiers, 0, n-1, n)
		}
	}

	// 2. Size-ratio: accumulate from the newest tier; fire at the first
	// width >= MinMergeWidth whose accumulated size clears the next tier by
	// size_ratio.
	var accumulated int64
	for k := 1; k < n; k++ {
		accumulated += tierSize(snapshot, tiers[k-1])
		next := tierSize(snapshot, tiers[k])
		if k >= o.MinMergeWidth && next > 0 && accumulated*100/next >= int64(100+o.SizeRatio) {
			return tieredTaskForRange(tiers, 0, k-1, n)
		}
	}

	// 3. Reduce sorted runs: too many tiers present; compact the oldest ones.
	if n > o.NumTiers {
		width := n - o.NumTiers + 1
		if width > n {
			width = n
		}
		return tieredTaskForRange(tiers, n-width, n-1, n)
	}

	return nil
}

// tieredTaskForRange builds a TieredTask over the contiguous tier range
// [lo, hi] (inclusive, 0-indexed, newest-first). numTiers is the total tier
// count, used to detect whether the range includes the deepest tier.
func tieredTaskForRange(tiers []Tier, lo, hi, numTiers int) *Task {
	ids := make([]uint64, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		ids = append(ids, tiers[i].ID)
	}
	return &Task{Tiered: &TieredTask{
		ContributingTierIDs: ids,
		IncludesBottomTier:  hi == numTiers-1,
	}}
}

func (s *tieredStrategy) ApplyResult(snapshot *Snapshot, task *Task, outputIDs []uint64) (*Snapshot, []uint64) {
	t := task.Tiered
	ns := snapshot.Clone()

	contributing := make(map[uint64]bool, len(t.ContributingTierIDs))
	for _, id := range t.ContributingTierIDs {
		contributing[id] = true
	}

	lo := -1
	var deleted []uint64
	var kept []Tier
	for i, tier := range ns.Tiers {
		if contributing[tier.ID] {
			if lo == -1 {
				lo = i
			}
			deleted = append(deleted, tier.SSTIDs...)
			continue
		}
		kept = append(kept, tier)
	}
	if lo == -1 {
		return ns, nil
	}

	newTier := Tier{SSTIDs: append([]uint64(nil), outputIDs...)}
	if len(outputIDs) > 0 {
		newTier.ID = outputIDs[0]
	}

	// kept holds survivors in original relative order but with the
	// contributing run removed; splice the new tier back in at lo,
	// clamping to len(kept) in case the run reached the tail.
	insertAt := lo
	if insertAt > len(kept) {
		insertAt = len(kept)
	}
	result := make([]Tier, 0, len(kept)+1)
	result = append(result, kept[:insertAt]...)
	result = append(result, newTier)
	result = append(result, kept[insertAt:]...)
	ns.Tiers = result

	return ns, deleted
}
