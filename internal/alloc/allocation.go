// Package alloc partitions the SSA names of a function into merge groups.
// Every group becomes one variable in the generated C code.
package alloc

import (
	"slices"

	"matisse/internal/ssa"
)

// Stats counts merge attempts made while building an Allocation.
type Stats struct {
	// Merged counts committed merges, mandatory ones included.
	Merged int
	// AlreadyJoined counts attempts on names already sharing a group.
	AlreadyJoined int
	// Interfering counts attempts rejected by the interference graph.
	Interfering int
	// PolicyRejected counts attempts rejected by the MergePolicy.
	PolicyRejected int
}

// Allocation is a partition of variable names. Groups only grow: a merge is
// never undone.
type Allocation struct {
	names   []string
	index   map[string]int
	parent  []int
	members [][]int

	stats Stats
}

func newAllocation() *Allocation {
	return &Allocation{index: make(map[string]int)}
}

// add registers name as a singleton group unless it is already known.
func (a *Allocation) add(name string) int {
	if id, ok := a.index[name]; ok {
		return id
	}
	id := len(a.names)
	a.names = append(a.names, name)
	a.index[name] = id
	a.parent = append(a.parent, id)
	a.members = append(a.members, []int{id})
	return id
}

func (a *Allocation) find(id int) int {
	root := id
	for a.parent[root] != root {
		root = a.parent[root]
	}
	for a.parent[id] != root {
		next := a.parent[id]
		a.parent[id] = root
		id = next
	}
	return root
}

// Has reports whether name belongs to the partition.
func (a *Allocation) Has(name string) bool {
	_, ok := a.index[name]
	return ok
}

// Len returns the number of names in the partition.
func (a *Allocation) Len() int { return len(a.names) }

// GroupOf returns the members of name's group in registration order, or nil
// for unknown names.
func (a *Allocation) GroupOf(name string) []string {
	id, ok := a.index[name]
	if !ok {
		return nil
	}
	return a.group(a.find(id))
}

func (a *Allocation) group(root int) []string {
	out := make([]string, 0, len(a.members[root]))
	for _, m := range a.members[root] {
		out = append(out, a.names[m])
	}
	return out
}

// Representative returns the first registered member of name's group.
func (a *Allocation) Representative(name string) string {
	id, ok := a.index[name]
	if !ok {
		return ""
	}
	return a.names[a.members[a.find(id)][0]]
}

// Same reports whether x and y share a group.
func (a *Allocation) Same(x, y string) bool {
	ix, okx := a.index[x]
	iy, oky := a.index[y]
	if !okx || !oky {
		return false
	}
	return a.find(ix) == a.find(iy)
}

// Groups lists every group, ordered by its representative.
func (a *Allocation) Groups() [][]string {
	var out [][]string
	for id := range a.names {
		if a.find(id) == id {
			out = append(out, a.group(id))
		}
	}
	slices.SortFunc(out, func(x, y []string) int {
		return a.index[x[0]] - a.index[y[0]]
	})
	return out
}

// NumGroups returns the number of groups.
func (a *Allocation) NumGroups() int {
	n := 0
	for id := range a.names {
		if a.find(id) == id {
			n++
		}
	}
	return n
}

// Merge unites the groups of x and y, registering either name if needed, and
// returns the merged group.
func (a *Allocation) Merge(x, y string) []string {
	rx := a.find(a.add(x))
	ry := a.find(a.add(y))
	if rx == ry {
		return a.group(rx)
	}
	if len(a.members[rx]) < len(a.members[ry]) {
		rx, ry = ry, rx
	}
	a.parent[ry] = rx
	merged := append(a.members[rx], a.members[ry]...)
	slices.Sort(merged)
	a.members[rx] = merged
	a.members[ry] = nil
	a.stats.Merged++
	return a.group(rx)
}

// Stats returns the merge counters.
func (a *Allocation) Stats() Stats { return a.stats }

// Allocator builds an Allocation for a function body.
type Allocator interface {
	Allocate(body *ssa.Body, canMerge MergePolicy) (*Allocation, error)
}
