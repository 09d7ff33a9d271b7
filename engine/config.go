package engine

import (
	"github.com/nplabs/lsmkv/compaction"
	"github.com/nplabs/lsmkv/sstable"
)

// Config mirrors the memtable/flush collaborator's options surface named in
// §6: block_size, target_sst_size, num_memtable_limit, compaction_options,
// plus the ambient engine settings (data directory, block cache size, SST
// compression codec) the teacher's own Config carries.
type Config struct {
	DataDir string

	BlockSize        int
	TargetSSTSize    int64
	NumMemtableLimit int
	MemtableSize     int

	BlockCacheCapacity int
	Codec              sstable.Codec

	CompactionOptions compaction.Options
}

// DefaultConfig returns sensible defaults, adapted from the teacher's
// LSMConfig: a 4 KiB block, 2 MiB target SST, 4 MiB memtables, at most 2
// resident immutables, a 256-block cache, and leveled compaction.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:            dataDir,
		BlockSize:          4096,
		TargetSSTSize:      2 << 20,
		NumMemtableLimit:   2,
		MemtableSize:       4 << 20,
		BlockCacheCapacity: 256,
		Codec:              sstable.CodecSnappy,
		CompactionOptions: compaction.Options{
			Leveled: &compaction.LeveledOptions{
				LevelSizeMultiplier:            4,
				Level0FileNumCompactionTrigger: 4,
				MaxLevels:                      6,
				BaseLevelSizeMB:                2,
			},
		},
	}
}
