package engine

import "testing"

func TestMemtablePutGetOverwrite(t *testing.T) {
	m := newMemtable(1 << 20)
	m.Put([]byte("b"), []byte("1"))
	m.Put([]byte("a"), []byte("2"))
	m.Put([]byte("b"), []byte("3")) // overwrite

	v, found := m.Get([]byte("b"))
	if !found || string(v) != "3" {
		t.Fatalf("Get(b) = (%q, %v), want (3, true)", v, found)
	}
	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (overwrite must not grow entry count)", m.Len())
	}

	entries := m.Entries()
	if string(entries[0].Key) != "a" || string(entries[1].Key) != "b" {
		t.Fatalf("entries not sorted by key: %+v", entries)
	}
}

func TestMemtableTombstoneFoundWithNilValue(t *testing.T) {
	m := newMemtable(1 << 20)
	m.Put([]byte("k"), []byte("v"))
	m.Put([]byte("k"), nil)

	v, found := m.Get([]byte("k"))
	if !found {
		t.Fatal("expected the tombstone entry itself to be found")
	}
	if len(v) != 0 {
		t.Fatalf("expected a nil/empty tombstone value, got %q", v)
	}
}

func TestMemtableIsFull(t *testing.T) {
	m := newMemtable(10)
	if m.IsFull() {
		t.Fatal("empty memtable should not report full")
	}
	m.Put([]byte("key"), []byte("value-longer-than-ten-bytes"))
	if !m.IsFull() {
		t.Fatal("expected memtable to report full after exceeding maxSize")
	}
}

func TestMemtableGetMissingKey(t *testing.T) {
	m := newMemtable(1 << 20)
	m.Put([]byte("a"), []byte("1"))
	if _, found := m.Get([]byte("z")); found {
		t.Fatal("expected miss for a key never written")
	}
}
