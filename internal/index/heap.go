package index

import "fmt"

// Entry is a (key, id) pair held by a Heap.
type Entry[K any] struct {
	Key K
	ID  int64
}

// Heap is an array-backed binary heap of record IDs ordered by key. The
// entry whose key comes first under before sits at the root; entries with
// equal keys come out lowest id first. A position map makes removal by id
// O(log n).
type Heap[K any] struct {
	items  []Entry[K]
	pos    map[int64]int
	before func(a, b K) bool
}

// NewHeap returns an empty heap. For a max-heap on ints pass
// func(a, b int) bool { return a > b }.
func NewHeap[K any](before func(a, b K) bool) *Heap[K] {
	return &Heap[K]{
		pos:    make(map[int64]int),
		before: before,
	}
}

// Len returns the number of entries.
func (h *Heap[K]) Len() int {
	return len(h.items)
}

// Contains reports whether id is in the heap.
func (h *Heap[K]) Contains(id int64) bool {
	_, ok := h.pos[id]
	return ok
}

// Key returns the key stored for id.
func (h *Heap[K]) Key(id int64) (K, bool) {
	i, ok := h.pos[id]
	if !ok {
		var zero K
		return zero, false
	}
	return h.items[i].Key, true
}

// Push appends the entry and sifts it up. It returns false, leaving the heap
// untouched, when id is already present.
func (h *Heap[K]) Push(key K, id int64) bool {
	if h.Contains(id) {
		return false
	}
	h.items = append(h.items, Entry[K]{Key: key, ID: id})
	h.pos[id] = len(h.items) - 1
	h.up(len(h.items) - 1)
	return true
}

// Peek returns the root id without removing it.
func (h *Heap[K]) Peek() (int64, bool) {
	if len(h.items) == 0 {
		return 0, false
	}
	return h.items[0].ID, true
}

// Pop removes and returns the root id: the root is swapped with the last
// leaf, the slice shrinks and the new root sifts down.
func (h *Heap[K]) Pop() (int64, bool) {
	if len(h.items) == 0 {
		return 0, false
	}
	id := h.items[0].ID
	h.removeAt(0)
	return id, true
}

// Remove deletes id from anywhere in the heap.
func (h *Heap[K]) Remove(id int64) bool {
	i, ok := h.pos[id]
	if !ok {
		return false
	}
	h.removeAt(i)
	return true
}

func (h *Heap[K]) removeAt(i int) {
	last := len(h.items) - 1
	removed := h.items[i].ID
	if i != last {
		h.swap(i, last)
	}
	h.items = h.items[:last]
	delete(h.pos, removed)

	if i < len(h.items) {
		if !h.down(i) {
			h.up(i)
		}
	}
}

// Rebuild replaces the contents with entries and heapifies bottom-up in O(n).
// Later duplicates of an id are ignored.
func (h *Heap[K]) Rebuild(entries []Entry[K]) {
	h.items = make([]Entry[K], 0, len(entries))
	h.pos = make(map[int64]int, len(entries))
	for _, e := range entries {
		if _, dup := h.pos[e.ID]; dup {
			continue
		}
		h.pos[e.ID] = len(h.items)
		h.items = append(h.items, e)
	}
	for i := len(h.items)/2 - 1; i >= 0; i-- {
		h.down(i)
	}
}

// Ordered returns the ids in the order repeated Pop calls would produce,
// without modifying the heap.
func (h *Heap[K]) Ordered() []int64 {
	cp := &Heap[K]{
		items:  append([]Entry[K](nil), h.items...),
		pos:    make(map[int64]int, len(h.items)),
		before: h.before,
	}
	for i, e := range cp.items {
		cp.pos[e.ID] = i
	}

	ids := make([]int64, 0, len(cp.items))
	for {
		id, ok := cp.Pop()
		if !ok {
			return ids
		}
		ids = append(ids, id)
	}
}

// Validate checks the heap property and the position map.
func (h *Heap[K]) Validate() error {
	if len(h.pos) != len(h.items) {
		return fmt.Errorf("heap: %d positions for %d items", len(h.pos), len(h.items))
	}
	for i, e := range h.items {
		if p, ok := h.pos[e.ID]; !ok || p != i {
			return fmt.Errorf("heap: id %d at slot %d, position map says %d", e.ID, i, p)
		}
		if i > 0 && h.less(i, (i-1)/2) {
			return fmt.Errorf("heap: id %d outranks its parent", e.ID)
		}
	}
	return nil
}

// less reports whether the entry at i must sit above the entry at j.
func (h *Heap[K]) less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if h.before(a.Key, b.Key) {
		return true
	}
	if h.before(b.Key, a.Key) {
		return false
	}
	return a.ID < b.ID
}

func (h *Heap[K]) swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.pos[h.items[i].ID] = i
	h.pos[h.items[j].ID] = j
}

func (h *Heap[K]) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			break
		}
		h.swap(i, parent)
		i = parent
	}
}

// down sifts i toward the leaves and reports whether it moved.
func (h *Heap[K]) down(i int) bool {
	start := i
	n := len(h.items)
	for {
		left, right := 2*i+1, 2*i+2
		top := i
		if left < n && h.less(left, top) {
			top = left
		}
		if right < n && h.less(right, top) {
			top = right
		}
		if top == i {
			break
		}
		h.swap(i, top)
		i = top
	}
	return i > start
}
