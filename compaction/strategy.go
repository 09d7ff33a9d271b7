package compaction

// Strategy is the shared two-method contract every compaction policy
// implements (§4.6, §9 "Polymorphism over strategies"). The executor never
// sees a strategy-specific type: it calls these two methods and otherwise
// only inspects Task's tag.
type Strategy interface {
	// GenerateTask inspects snapshot and returns a Task to run, or nil if no
	// work is currently warranted.
	GenerateTask(snapshot *Snapshot) *Task

	// ApplyResult computes the post-commit snapshot given the task that ran
	// and the ids of the SSTs it produced (in key order); snapshot already
	// holds the output tables in SSTables. It returns the new snapshot (with
	// inputs removed from L0/Levels/Tiers but still present in SSTables - the
	// executor deletes them there) and the list of input ids to delete from
	// disk.
	ApplyResult(snapshot *Snapshot, task *Task, outputIDs []uint64) (*Snapshot, []uint64)
}

// Options is a tagged union over the four configuration shapes named in §6.
// Exactly one field is non-nil.
type Options struct {
	Leveled *LeveledOptions
	Simple  *SimpleOptions
	Tiered  *TieredOptions
	None    *NoCompactionOptions
}

// LeveledOptions configures the dynamic-level-sizing leveled strategy.
type LeveledOptions struct {
	LevelSizeMultiplier             int
	Level0FileNumCompactionTrigger  int
	MaxLevels                       int
	BaseLevelSizeMB                 int64
}

// SimpleOptions configures the simple-leveled strategy.
type SimpleOptions struct {
	SizeRatioPercent               int
	Level0FileNumCompactionTrigger int
	MaxLevels                      int
}

// TieredOptions configures the tiered (universal) strategy.
type TieredOptions struct {
	NumTiers                    int
	MaxSizeAmplificationPercent int
	SizeRatio                   int
	MinMergeWidth               int
}

// NoCompactionOptions selects the strategy that never generates a task.
type NoCompactionOptions struct{}

// NewStrategy builds the Strategy implementation named by opts.
func NewStrategy(opts Options) Strategy {
	switch {
	case opts.Leveled != nil:
		return &leveledStrategy{opts: *opts.Leveled}
	case opts.Simple != nil:
		return &simpleStrategy{opts: *opts.Simple}
	case opts.Tiered != nil:
		return &tieredStrategy{opts: *opts.Tiered}
	default:
		return &noCompactionStrategy{}
	}
}

// MaxLevels reports the configured level depth, used by Task.CompactToBottomLevel.
// Tiered and no-compaction have no fixed level depth and report 0; the value is
// ignored for tiered and force-full tasks.
func (o Options) MaxLevels() int {
	switch {
	case o.Leveled != nil:
		return o.Leveled.MaxLevels
	case o.Simple != nil:
		return o.Simple.MaxLevels
	default:
		return 0
	}
}
