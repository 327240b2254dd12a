// Package index holds the secondary structures kept alongside a canonical
// record collection. Each structure stores only record IDs plus the sort key
// it needs; the owner of the records keeps them in step.
//
// None of the types in this package are safe for concurrent use.
package index

import (
	"fmt"
	"iter"
)

type treeNode[K any] struct {
	key         K
	id          int64
	left, right *treeNode[K]
}

// Tree is an unbalanced binary search tree mapping sort keys to record IDs.
// Equal keys are inserted to the right, so an in-order walk yields entries
// with equal keys in insertion order. Every node satisfies
// left < node <= right.
type Tree[K any] struct {
	root *treeNode[K]
	cmp  func(a, b K) int
	size int
}

// NewTree returns an empty tree ordered by cmp, which must return a negative
// number when a < b, zero when equal and a positive number when a > b.
func NewTree[K any](cmp func(a, b K) int) *Tree[K] {
	return &Tree[K]{cmp: cmp}
}

// Len returns the number of entries.
func (t *Tree[K]) Len() int {
	return t.size
}

// Insert adds an entry. Duplicate keys are allowed; the tree does not check
// for a duplicate id.
func (t *Tree[K]) Insert(key K, id int64) {
	link := &t.root
	for *link != nil {
		if t.cmp(key, (*link).key) < 0 {
			link = &(*link).left
		} else {
			link = &(*link).right
		}
	}
	*link = &treeNode[K]{key: key, id: id}
	t.size++
}

// Find returns the id of the first entry met with an equal key.
func (t *Tree[K]) Find(key K) (int64, bool) {
	n := t.root
	for n != nil {
		c := t.cmp(key, n.key)
		switch {
		case c == 0:
			return n.id, true
		case c < 0:
			n = n.left
		default:
			n = n.right
		}
	}
	return 0, false
}

// Contains reports whether the exact (key, id) entry is present.
func (t *Tree[K]) Contains(key K, id int64) bool {
	return *t.locate(key, id) != nil
}

// locate returns the link pointing at the (key, id) node, or at the nil slot
// where the search ended. Equal keys with a different id live in the right
// subtree.
func (t *Tree[K]) locate(key K, id int64) **treeNode[K] {
	link := &t.root
	for *link != nil {
		n := *link
		c := t.cmp(key, n.key)
		switch {
		case c < 0:
			link = &n.left
		case c == 0 && n.id == id:
			return link
		default:
			link = &n.right
		}
	}
	return link
}

// Remove deletes the (key, id) entry. A node with two children takes over
// its in-order successor's entry; a node with one child is replaced by it.
func (t *Tree[K]) Remove(key K, id int64) bool {
	link := t.locate(key, id)
	n := *link
	if n == nil {
		return false
	}

	switch {
	case n.left == nil:
		*link = n.right
	case n.right == nil:
		*link = n.left
	default:
		succ := &n.right
		for (*succ).left != nil {
			succ = &(*succ).left
		}
		s := *succ
		*succ = s.right
		n.key, n.id = s.key, s.id
	}
	t.size--
	return true
}

// Clear drops every entry.
func (t *Tree[K]) Clear() {
	t.root = nil
	t.size = 0
}

// All returns an in-order iterator over (key, id) pairs. The walk uses an
// explicit stack and may be restarted by ranging again. The tree must not be
// modified during iteration.
func (t *Tree[K]) All() iter.Seq2[K, int64] {
	return func(yield func(K, int64) bool) {
		var stack []*treeNode[K]
		n := t.root
		for n != nil || len(stack) > 0 {
			for n != nil {
				stack = append(stack, n)
				n = n.left
			}
			n = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(n.key, n.id) {
				return
			}
			n = n.right
		}
	}
}

// IDs returns the ids in key order.
func (t *Tree[K]) IDs() iter.Seq[int64] {
	return func(yield func(int64) bool) {
		for _, id := range t.All() {
			if !yield(id) {
				return
			}
		}
	}
}

// Validate checks the ordering invariant and the cached size.
func (t *Tree[K]) Validate() error {
	type bound struct {
		n      *treeNode[K]
		lo, hi *K // lo inclusive, hi exclusive
	}

	count := 0
	stack := []bound{{n: t.root}}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if b.n == nil {
			continue
		}
		count++
		if b.lo != nil && t.cmp(b.n.key, *b.lo) < 0 {
			return fmt.Errorf("tree: id %d sorts before its lower bound", b.n.id)
		}
		if b.hi != nil && t.cmp(b.n.key, *b.hi) >= 0 {
			return fmt.Errorf("tree: id %d is not below its upper bound", b.n.id)
		}
		key := b.n.key
		stack = append(stack,
			bound{n: b.n.left, lo: b.lo, hi: &key},
			bound{n: b.n.right, lo: &key, hi: b.hi},
		)
	}

	if count != t.size {
		return fmt.Errorf("tree: counted %d nodes, size says %d", count, t.size)
	}
	return nil
}
