package iterator

import "testing"

func drain(t *testing.T, it StorageIterator) [][2]string {
	t.Helper()
	var out [][2]string
	for it.IsValid() {
		out = append(out, [2]string{string(it.Key()), string(it.Value())})
		if err := it.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	return out
}

func TestMergeIteratorZeroInputsIsImmediatelyInvalid(t *testing.T) {
	m, err := NewMergeIterator(nil)
	if err != nil {
		t.Fatalf("NewMergeIterator: %v", err)
	}
	if m.IsValid() {
		t.Fatal("expected an immediately invalid iterator over zero inputs")
	}
}

func TestMergeIteratorDedupesByPriority(t *testing.T) {
	newer := newSliceIterator([][2]string{{"a", "new-a"}, {"b", "new-b"}})
	older := newSliceIterator([][2]string{{"a", "old-a"}, {"c", "old-c"}})

	m, err := NewMergeIterator([]StorageIterator{newer, older})
	if err != nil {
		t.Fatalf("NewMergeIterator: %v", err)
	}
	got := drain(t, m)
	want := [][2]string{{"a", "new-a"}, {"b", "new-b"}, {"c", "old-c"}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMergeIteratorIdenticalKeySequencesLowerIndexWins(t *testing.T) {
	a := newSliceIterator([][2]string{{"k1", "a1"}, {"k2", "a2"}})
	b := newSliceIterator([][2]string{{"k1", "b1"}, {"k2", "b2"}})

	m, err := NewMergeIterator([]StorageIterator{a, b})
	if err != nil {
		t.Fatalf("NewMergeIterator: %v", err)
	}
	got := drain(t, m)
	want := [][2]string{{"k1", "a1"}, {"k2", "a2"}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMergeIteratorManyInputs(t *testing.T) {
	in := []StorageIterator{
		newSliceIterator([][2]string{{"d", "3"}}),
		newSliceIterator([][2]string{{"a", "0"}, {"c", "2"}}),
		newSliceIterator([][2]string{{"b", "1"}}),
	}
	m, err := NewMergeIterator(in)
	if err != nil {
		t.Fatalf("NewMergeIterator: %v", err)
	}
	got := drain(t, m)
	want := [][2]string{{"a", "0"}, {"b", "1"}, {"c", "2"}, {"d", "3"}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
