package compaction

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/nplabs/lsmkv/internal/testutil"
	"github.com/nplabs/lsmkv/sstable"
)

// buildTable builds a single-block SST containing one key (so callers can
// control key ranges precisely); callers register it into snapshot.SSTables.
func buildTable(t *testing.T, dir string, id uint64, key string, valueSize int) *sstable.Table {
	t.Helper()
	b, err := sstable.NewBuilder(filepath.Join(dir, fmt.Sprintf("%d.sst", id)), 4096, sstable.CodecNone, 1)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	value := make([]byte, valueSize)
	for i := range value {
		value[i] = 'v'
	}
	if err := b.Add([]byte(key), value); err != nil {
		t.Fatalf("Add: %v", err)
	}
	table, err := b.Build(id)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return table
}

// buildRangeTable builds a single SST holding every key in keys (given in
// sorted order), so its range spans keys[0] through the last key.
func buildRangeTable(t *testing.T, dir string, id uint64, keys []string) *sstable.Table {
	t.Helper()
	b, err := sstable.NewBuilder(filepath.Join(dir, fmt.Sprintf("%d.sst", id)), 4096, sstable.CodecNone, len(keys))
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	for _, k := range keys {
		if err := b.Add([]byte(k), []byte("v-"+k)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	table, err := b.Build(id)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return table
}

func newTestSnapshot() *Snapshot {
	return &Snapshot{SSTables: make(map[uint64]*sstable.Table)}
}

func testDir(t *testing.T) string {
	return testutil.TempDir(t)
}
