package engine

import (
	"path/filepath"
	"testing"

	"github.com/nplabs/lsmkv/compaction"
	"github.com/nplabs/lsmkv/internal/testutil"
	"github.com/stretchr/testify/require"
)

func TestManifestRecordFlushAndReplay(t *testing.T) {
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "MANIFEST")

	m, err := openManifest(path)
	require.NoError(t, err)
	require.NoError(t, m.RecordFlush(1))
	require.NoError(t, m.RecordFlush(2))
	m.Close()

	events, err := ReadManifest(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.NotNil(t, events[0].Flush)
	require.EqualValues(t, 1, events[0].Flush.SSTID)
	require.NotNil(t, events[1].Flush)
	require.EqualValues(t, 2, events[1].Flush.SSTID)
}

func TestManifestRecordCompactionAndReplay(t *testing.T) {
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "MANIFEST")

	m, err := openManifest(path)
	require.NoError(t, err)
	task := &compaction.Task{ForceFull: &compaction.ForceFullTask{L0IDs: []uint64{1}, L1IDs: []uint64{2}}}
	require.NoError(t, m.RecordCompaction(task, []uint64{3}))
	m.Close()

	events, err := ReadManifest(path)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Compaction)

	got := events[0].Compaction
	require.NotNil(t, got.Task.ForceFull)
	require.Equal(t, []uint64{1}, got.Task.ForceFull.L0IDs)
	require.Equal(t, []uint64{3}, got.OutputIDs)
}

func TestReadManifestMissingFileReturnsEmpty(t *testing.T) {
	dir := testutil.TempDir(t)
	events, err := ReadManifest(filepath.Join(dir, "does-not-exist"))
	require.NoError(t, err)
	require.Empty(t, events)
}
