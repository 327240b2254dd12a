package index

import (
	"cmp"
	"iter"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/joescharf/civic/internal/models"
)

// Edge is an undirected link between two records, stored with A < B.
type Edge struct {
	A, B int64
}

type idSet = orderedmap.OrderedMap[int64, struct{}]

type bucket struct {
	name string // display name, as first seen
	ids  *idSet
}

// Graph partitions record IDs by category and optionally links records to
// each other. Two records in the same bucket are implicitly related; explicit
// edges are undirected and added with AddEdge. Category matching is
// case-insensitive.
type Graph struct {
	buckets map[string]*bucket
	member  map[int64]string // id -> normalized category
	adj     map[int64]*idSet
	edges   int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		buckets: make(map[string]*bucket),
		member:  make(map[int64]string),
		adj:     make(map[int64]*idSet),
	}
}

// Len returns the total number of bucket members.
func (g *Graph) Len() int {
	return len(g.member)
}

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int {
	return g.edges
}

// Add places id in the bucket for category, creating the bucket if needed.
// It returns false if id is already a member or the category is blank.
func (g *Graph) Add(id int64, category string) bool {
	key := models.NormalizeCategory(category)
	if key == "" {
		return false
	}
	if _, ok := g.member[id]; ok {
		return false
	}
	b, ok := g.buckets[key]
	if !ok {
		b = &bucket{name: strings.TrimSpace(category), ids: orderedmap.New[int64, struct{}]()}
		g.buckets[key] = b
	}
	b.ids.Set(id, struct{}{})
	g.member[id] = key
	return true
}

// Remove deletes id from its bucket and drops every edge touching it.
// Buckets left empty are deleted.
func (g *Graph) Remove(id int64) bool {
	if !g.leaveBucket(id) {
		return false
	}
	if neighbors, ok := g.adj[id]; ok {
		for pair := neighbors.Oldest(); pair != nil; pair = pair.Next() {
			if other, ok := g.adj[pair.Key]; ok {
				other.Delete(id)
			}
			g.edges--
		}
		delete(g.adj, id)
	}
	return true
}

// Move re-buckets id under category, keeping its edges.
func (g *Graph) Move(id int64, category string) bool {
	key := models.NormalizeCategory(category)
	current, ok := g.member[id]
	if !ok || key == "" {
		return false
	}
	if current == key {
		return true
	}
	g.leaveBucket(id)
	return g.Add(id, category)
}

func (g *Graph) leaveBucket(id int64) bool {
	key, ok := g.member[id]
	if !ok {
		return false
	}
	if b, ok := g.buckets[key]; ok {
		b.ids.Delete(id)
		if b.ids.Len() == 0 {
			delete(g.buckets, key)
		}
	}
	delete(g.member, id)
	return true
}

// CategoryOf returns the normalized category id belongs to.
func (g *Graph) CategoryOf(id int64) (string, bool) {
	key, ok := g.member[id]
	return key, ok
}

// Related yields the members of category in insertion order. An unknown
// category yields nothing.
func (g *Graph) Related(category string) iter.Seq[int64] {
	return func(yield func(int64) bool) {
		b, ok := g.buckets[models.NormalizeCategory(category)]
		if !ok {
			return
		}
		for pair := b.ids.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key) {
				return
			}
		}
	}
}

// BucketLen returns the size of the bucket for category.
func (g *Graph) BucketLen(category string) int {
	if b, ok := g.buckets[models.NormalizeCategory(category)]; ok {
		return b.ids.Len()
	}
	return 0
}

// Categories returns the display name of every non-empty bucket, sorted
// case-insensitively.
func (g *Graph) Categories() []string {
	names := make([]string, 0, len(g.buckets))
	for _, b := range g.buckets {
		names = append(names, b.name)
	}
	slices.SortFunc(names, func(a, b string) int {
		return cmp.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return names
}

// AddEdge links a and b. Both must be members and distinct. Adding an
// existing edge is a no-op that still reports true.
func (g *Graph) AddEdge(a, b int64) bool {
	if a == b {
		return false
	}
	if _, ok := g.member[a]; !ok {
		return false
	}
	if _, ok := g.member[b]; !ok {
		return false
	}

	na := g.neighborSet(a)
	if _, exists := na.Get(b); exists {
		return true
	}
	na.Set(b, struct{}{})
	g.neighborSet(b).Set(a, struct{}{})
	g.edges++
	return true
}

// HasEdge reports whether a and b are linked.
func (g *Graph) HasEdge(a, b int64) bool {
	if n, ok := g.adj[a]; ok {
		_, exists := n.Get(b)
		return exists
	}
	return false
}

func (g *Graph) neighborSet(id int64) *idSet {
	n, ok := g.adj[id]
	if !ok {
		n = orderedmap.New[int64, struct{}]()
		g.adj[id] = n
	}
	return n
}

// Neighbors returns the ids linked to id in the order the edges were added.
func (g *Graph) Neighbors(id int64) []int64 {
	n, ok := g.adj[id]
	if !ok {
		return nil
	}
	ids := make([]int64, 0, n.Len())
	for pair := n.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// Edges returns every edge once, sorted by (A, B).
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, g.edges)
	for a, n := range g.adj {
		for pair := n.Oldest(); pair != nil; pair = pair.Next() {
			if a < pair.Key {
				edges = append(edges, Edge{A: a, B: pair.Key})
			}
		}
	}
	slices.SortFunc(edges, func(x, y Edge) int {
		if c := cmp.Compare(x.A, y.A); c != 0 {
			return c
		}
		return cmp.Compare(x.B, y.B)
	})
	return edges
}

// BFS returns the ids reachable from start in breadth-first order, start
// first. An unknown start yields an empty result.
func (g *Graph) BFS(start int64) []int64 {
	if _, ok := g.member[start]; !ok {
		return nil
	}

	seen := mapset.NewThreadUnsafeSet(start)
	queue := []int64{start}
	var visited []int64
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		visited = append(visited, cur)
		for _, next := range g.Neighbors(cur) {
			if seen.Add(next) {
				queue = append(queue, next)
			}
		}
	}
	return visited
}

// DFS returns the ids reachable from start in depth-first pre-order,
// visiting neighbors in edge insertion order. It uses an explicit stack.
func (g *Graph) DFS(start int64) []int64 {
	if _, ok := g.member[start]; !ok {
		return nil
	}

	seen := mapset.NewThreadUnsafeSet[int64]()
	stack := []int64{start}
	var visited []int64
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !seen.Add(cur) {
			continue
		}
		visited = append(visited, cur)

		neighbors := g.Neighbors(cur)
		for i := len(neighbors) - 1; i >= 0; i-- {
			if !seen.Contains(neighbors[i]) {
				stack = append(stack, neighbors[i])
			}
		}
	}
	return visited
}
