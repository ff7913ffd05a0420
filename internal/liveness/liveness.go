// Package liveness computes per-instruction live sets for an ssa.Body.
package liveness

import (
	"github.com/bits-and-blooms/bitset"

	"matisse/internal/ssa"
)

// Info answers liveness queries for one body. It is read-only once built.
type Info struct {
	names []string
	index map[string]uint

	// entry[b][i] and exit[b][i] are the sets live before and after
	// instruction i of block b.
	entry [][]*bitset.BitSet
	exit  [][]*bitset.BitSet

	in  []*bitset.BitSet
	out []*bitset.BitSet

	undefined  []string
	iterations int
}

// Names returns every name the analysis knows about, locals and globals.
func (info *Info) Names() []string { return info.names }

// Index returns the dense index of name.
func (info *Info) Index(name string) (uint, bool) {
	i, ok := info.index[name]
	return i, ok
}

// Name is the inverse of Index.
func (info *Info) Name(i uint) string { return info.names[i] }

func (info *Info) NumNames() int { return len(info.names) }

// Iterations reports how many block visits the fixed point needed.
func (info *Info) Iterations() int { return info.iterations }

// UndefinedAtEntry lists the locals live at function entry. A valid body
// has none.
func (info *Info) UndefinedAtEntry() []string { return info.undefined }

func (info *Info) IsLiveAtEntry(name string, b ssa.BlockID, instr int) bool {
	return info.test(info.entry, name, b, instr)
}

func (info *Info) IsLiveAtExit(name string, b ssa.BlockID, instr int) bool {
	return info.test(info.exit, name, b, instr)
}

func (info *Info) LiveAtEntry(b ssa.BlockID, instr int) []string {
	return info.list(info.EntrySet(b, instr))
}

func (info *Info) LiveAtExit(b ssa.BlockID, instr int) []string {
	return info.list(info.ExitSet(b, instr))
}

// LiveIn returns the names live on entry to block b, before its phis.
func (info *Info) LiveIn(b ssa.BlockID) []string { return info.list(info.in[b]) }

// LiveOut returns the names live on exit from block b, including phi inputs
// consumed on its outgoing edges.
func (info *Info) LiveOut(b ssa.BlockID) []string { return info.list(info.out[b]) }

// EntrySet exposes the raw set behind LiveAtEntry. Callers must not modify it.
func (info *Info) EntrySet(b ssa.BlockID, instr int) *bitset.BitSet {
	if !info.inRange(b, instr) {
		return nil
	}
	return info.entry[b][instr]
}

// ExitSet exposes the raw set behind LiveAtExit. Callers must not modify it.
func (info *Info) ExitSet(b ssa.BlockID, instr int) *bitset.BitSet {
	if !info.inRange(b, instr) {
		return nil
	}
	return info.exit[b][instr]
}

func (info *Info) inRange(b ssa.BlockID, instr int) bool {
	return b >= 0 && int(b) < len(info.entry) && instr >= 0 && instr < len(info.entry[b])
}

func (info *Info) test(sets [][]*bitset.BitSet, name string, b ssa.BlockID, instr int) bool {
	i, ok := info.index[name]
	if !ok || !info.inRange(b, instr) {
		return false
	}
	return sets[b][instr].Test(i)
}

func (info *Info) list(s *bitset.BitSet) []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, s.Count())
	for i, ok := s.NextSet(0); ok; i, ok = s.NextSet(i + 1) {
		out = append(out, info.names[i])
	}
	return out
}
