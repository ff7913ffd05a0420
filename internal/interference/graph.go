// Package interference builds the non-colocation graph of an ssa.Body and
// contracts it as variables are merged.
//
// Nodes live in an arena indexed like liveness.Info names. Contraction is a
// union-find with path compression and union by size; each root owns the
// member and adjacency bitsets of its group, united only when two groups
// merge.
package interference

import (
	"slices"

	"github.com/bits-and-blooms/bitset"
)

type Graph struct {
	names []string
	index map[string]uint

	parent  []uint
	size    []int
	members []*bitset.BitSet // per root
	adj     []*bitset.BitSet // per root, over node ids
	rep     []string         // per root
}

func newGraph(names []string) *Graph {
	g := &Graph{index: make(map[string]uint, len(names))}
	for _, name := range names {
		g.node(name)
	}
	return g
}

// node returns the id of name, adding an isolated node if needed.
func (g *Graph) node(name string) uint {
	if id, ok := g.index[name]; ok {
		return id
	}
	id := uint(len(g.names))
	g.names = append(g.names, name)
	g.index[name] = id
	g.parent = append(g.parent, id)
	g.size = append(g.size, 1)
	g.members = append(g.members, bitset.New(id+1).Set(id))
	g.adj = append(g.adj, bitset.New(0))
	g.rep = append(g.rep, name)
	return id
}

func (g *Graph) find(id uint) uint {
	root := id
	for g.parent[root] != root {
		root = g.parent[root]
	}
	for g.parent[id] != root {
		next := g.parent[id]
		g.parent[id] = root
		id = next
	}
	return root
}

func (g *Graph) addEdge(a, b uint) {
	if a == b {
		return
	}
	g.adj[a].Set(b)
	g.adj[b].Set(a)
}

// HasInterference reports whether the groups of a and b interfere. Names in
// the same group never do. Unknown names interfere with nothing.
func (g *Graph) HasInterference(a, b string) bool {
	ia, okA := g.index[a]
	ib, okB := g.index[b]
	if !okA || !okB {
		return false
	}
	ra, rb := g.find(ia), g.find(ib)
	if ra == rb {
		return false
	}
	return g.adj[ra].IntersectionCardinality(g.members[rb]) > 0
}

// MergeGroup contracts the groups of names into one node represented by
// representative. The caller is responsible for checking interference first.
func (g *Graph) MergeGroup(names []string, representative string) {
	root := g.find(g.node(representative))
	for _, name := range names {
		root = g.union(root, g.find(g.node(name)))
	}
	g.rep[root] = representative
}

func (g *Graph) union(ra, rb uint) uint {
	if ra == rb {
		return ra
	}
	if g.size[ra] < g.size[rb] {
		ra, rb = rb, ra
	}
	g.parent[rb] = ra
	g.size[ra] += g.size[rb]
	g.members[ra].InPlaceUnion(g.members[rb])
	g.adj[ra].InPlaceUnion(g.adj[rb])
	g.members[rb], g.adj[rb] = nil, nil
	return ra
}

// Representative returns the name standing for the group of name.
func (g *Graph) Representative(name string) string {
	id, ok := g.index[name]
	if !ok {
		return name
	}
	return g.rep[g.find(id)]
}

// Neighbors returns the representatives of the groups interfering with the
// group of name, sorted.
func (g *Graph) Neighbors(name string) []string {
	id, ok := g.index[name]
	if !ok {
		return nil
	}
	r := g.find(id)
	seen := make(map[uint]struct{})
	var out []string
	adj := g.adj[r]
	for i, ok := adj.NextSet(0); ok; i, ok = adj.NextSet(i + 1) {
		nr := g.find(i)
		if nr == r {
			continue
		}
		if _, dup := seen[nr]; dup {
			continue
		}
		seen[nr] = struct{}{}
		out = append(out, g.rep[nr])
	}
	slices.Sort(out)
	return out
}

// EdgeCount returns the number of interfering group pairs.
func (g *Graph) EdgeCount() int {
	type pair struct{ a, b uint }
	seen := make(map[pair]struct{})
	for id := range g.names {
		r := uint(id)
		if g.parent[r] != r {
			continue
		}
		adj := g.adj[r]
		for i, ok := adj.NextSet(0); ok; i, ok = adj.NextSet(i + 1) {
			nr := g.find(i)
			if nr == r {
				continue
			}
			p := pair{min(r, nr), max(r, nr)}
			seen[p] = struct{}{}
		}
	}
	return len(seen)
}

// Groups returns the number of distinct groups.
func (g *Graph) Groups() int {
	n := 0
	for id := range g.parent {
		if g.parent[id] == uint(id) {
			n++
		}
	}
	return n
}
