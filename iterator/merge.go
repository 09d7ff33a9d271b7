package iterator

import "container/heap"

// heapItem pairs an input iterator with its original index. idx is the
// tie-breaker: when two inputs agree on the current key, the one with the
// smaller idx wins (§4.4) — callers order inputs from newest to oldest so
// this matches "newest write wins".
type heapItem struct {
	it  StorageIterator
	idx int
}

type iterHeap []*heapItem

func (h iterHeap) Len() int { return len(h) }

func (h iterHeap) Less(i, j int) bool {
	c := compareBytes(h[i].it.Key(), h[j].it.Key())
	if c != 0 {
		return c < 0
	}
	return h[i].idx < h[j].idx
}

func (h iterHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *iterHeap) Push(x any) { *h = append(*h, x.(*heapItem)) }

func (h *iterHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MergeIterator k-way merges inputs already in key order. When several
// inputs hold the same key, only the one with the smallest original index
// is surfaced; the rest are silently advanced past it (§4.4's duplicate
// resolution rule) so the caller never sees a key twice.
type MergeIterator struct {
	h       iterHeap
	current *heapItem
}

// NewMergeIterator builds a MergeIterator over inputs, ordered newest-first.
// Exhausted iterators (IsValid() == false) are dropped immediately.
func NewMergeIterator(inputs []StorageIterator) (*MergeIterator, error) {
	m := &MergeIterator{}
	for i, it := range inputs {
		if it.IsValid() {
			m.h = append(m.h, &heapItem{it: it, idx: i})
		}
	}
	heap.Init(&m.h)
	if err := m.pop(); err != nil {
		return nil, err
	}
	return m, nil
}

// pop pulls the winning iterator off the heap into current, discarding any
// other iterators currently positioned at the same key.
func (m *MergeIterator) pop() error {
	if m.h.Len() == 0 {
		m.current = nil
		return nil
	}
	m.current = heap.Pop(&m.h).(*heapItem)

	for m.h.Len() > 0 && compareBytes(m.h[0].it.Key(), m.current.it.Key()) == 0 {
		dup := heap.Pop(&m.h).(*heapItem)
		if err := dup.it.Next(); err != nil {
			return err
		}
		if dup.it.IsValid() {
			heap.Push(&m.h, dup)
		}
	}
	return nil
}

func (m *MergeIterator) IsValid() bool { return m.current != nil }

func (m *MergeIterator) Key() []byte { return m.current.it.Key() }

func (m *MergeIterator) Value() []byte { return m.current.it.Value() }

// Next advances past the current key. The winning iterator is pushed back
// onto the heap (if still valid) before the next winner is chosen, so an
// input that still has the smallest key keeps winning on subsequent calls.
func (m *MergeIterator) Next() error {
	cur := m.current
	if err := cur.it.Next(); err != nil {
		return err
	}
	if cur.it.IsValid() {
		heap.Push(&m.h, cur)
	}
	return m.pop()
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}
