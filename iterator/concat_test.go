package iterator

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/nplabs/lsmkv/internal/testutil"
	"github.com/nplabs/lsmkv/sstable"
)

func buildConcatTable(t *testing.T, dir string, id uint64, keys []string) *sstable.Table {
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

func TestSstConcatIteratorSequential(t *testing.T) {
	dir := testutil.TempDir(t)
	t1 := buildConcatTable(t, dir, 1, []string{"a", "b", "c"})
	t2 := buildConcatTable(t, dir, 2, []string{"d", "e"})
	defer t1.Close()
	defer t2.Close()

	it, err := NewSstConcatIteratorAtFirst([]*sstable.Table{t1, t2}, nil)
	if err != nil {
		t.Fatalf("NewSstConcatIteratorAtFirst: %v", err)
	}
	got := drain(t, it)
	want := []string{"a", "b", "c", "d", "e"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want keys %v", got, want)
	}
	for i, k := range want {
		if got[i][0] != k {
			t.Errorf("entry %d: key = %q, want %q", i, got[i][0], k)
		}
	}
}

func TestSstConcatIteratorSeekToKeySkipsTables(t *testing.T) {
	dir := testutil.TempDir(t)
	t1 := buildConcatTable(t, dir, 1, []string{"a", "b"})
	t2 := buildConcatTable(t, dir, 2, []string{"c", "d"})
	t3 := buildConcatTable(t, dir, 3, []string{"e", "f"})
	defer t1.Close()
	defer t2.Close()
	defer t3.Close()

	it, err := NewSstConcatIteratorAtKey([]*sstable.Table{t1, t2, t3}, nil, []byte("d"))
	if err != nil {
		t.Fatalf("NewSstConcatIteratorAtKey: %v", err)
	}
	got := drain(t, it)
	want := []string{"d", "e", "f"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want keys %v", got, want)
	}
	for i, k := range want {
		if got[i][0] != k {
			t.Errorf("entry %d: key = %q, want %q", i, got[i][0], k)
		}
	}
}

func TestSstConcatIteratorSeekBetweenTablesLandsOnNext(t *testing.T) {
	dir := testutil.TempDir(t)
	t1 := buildConcatTable(t, dir, 1, []string{"a", "b"})
	t2 := buildConcatTable(t, dir, 2, []string{"e", "f"})
	defer t1.Close()
	defer t2.Close()

	it, err := NewSstConcatIteratorAtKey([]*sstable.Table{t1, t2}, nil, []byte("c"))
	if err != nil {
		t.Fatalf("NewSstConcatIteratorAtKey: %v", err)
	}
	if !it.IsValid() || string(it.Key()) != "e" {
		t.Fatalf("expected to land on %q, got valid=%v key=%q", "e", it.IsValid(), it.Key())
	}
}
