// Package cssa rewrites phi nodes into conventional SSA form, where all
// names related by a phi can share one storage location.
//
// Each phi input gets a fresh temporary assigned by a parallel copy at the
// end of its predecessor, and the phi output is renamed to a fresh temporary
// copied back right after the block's phi group. The copies are simultaneous,
// so swapped phi operands are handled.
package cssa

import (
	"slices"

	"github.com/bits-and-blooms/bitset"

	"matisse/internal/cfg"
	"matisse/internal/diag"
	"matisse/internal/ssa"
)

// Namer returns a fresh name for a copy of oldName feeding or produced by
// the phi defining phiOut.
type Namer func(oldName, phiOut string) string

// Result summarizes one conversion.
type Result struct {
	// Phis is the number of phis rewritten; already converted phis are not
	// counted.
	Phis int
	// Copies is the number of ParallelCopy instructions inserted.
	Copies int
}

// DefaultNamer names temporaries after the variable they copy and records
// their provenance and type on body.
func DefaultNamer(body *ssa.Body) Namer {
	return func(oldName, phiOut string) string {
		fam := body.Family(oldName)
		hint := fam
		if hint == "" {
			hint = temporaryHint(oldName)
		}
		name := body.MakeTemporary(hint)
		if fam != "" {
			if body.Origins == nil {
				body.Origins = make(map[string]string)
			}
			body.Origins[name] = fam
		}
		// A' = phi(B', C') must give A', B' and C' one type to share a slot.
		if typ, ok := body.TypeOf(phiOut); ok {
			body.Types[name] = typ
		}
		return name
	}
}

// temporaryHint extracts "x" from "$x$3".
func temporaryHint(name string) string {
	rest := name
	if len(rest) > 0 && rest[0] == ssa.VersionSep {
		rest = rest[1:]
	}
	for i := 0; i < len(rest); i++ {
		if rest[i] == ssa.VersionSep {
			rest = rest[:i]
			break
		}
	}
	if rest == "" {
		return "phi"
	}
	return rest
}

type pending struct {
	ins  []string
	outs []string
}

func (p *pending) add(in, out string) {
	p.ins = append(p.ins, in)
	p.outs = append(p.outs, out)
}

// Convert rewrites body in place. A nil namer means DefaultNamer(body).
// Running it again on its own output changes nothing.
func Convert(body *ssa.Body, namer Namer) (Result, error) {
	var res Result
	if namer == nil {
		namer = DefaultNamer(body)
	}
	graph := cfg.Build(body)

	index, definedAt := definedAtExit(body, graph)

	atEnd := make([]pending, len(body.Blocks))
	afterPhis := make([]pending, len(body.Blocks))

	for bi := range body.Blocks {
		s := ssa.BlockID(bi)
		if !graph.Reachable(s) {
			continue
		}
		blk := body.Block(s)
		for ii := 0; ii < blk.PhiEnd(); ii++ {
			ins := &blk.Instrs[ii]
			if ins.Kind != ssa.InstrPhi {
				continue
			}
			phi := &ins.Phi
			if len(phi.Ins) != len(phi.Preds) {
				return res, diag.Internal("%s: phi %s in block #%d has %d inputs for %d predecessors",
					body.Name, phi.Out, s, len(phi.Ins), len(phi.Preds))
			}
			for k, p := range phi.Preds {
				if !body.HasBlock(p) || !graph.HasEdge(p, s) {
					return res, diag.Internal("%s: phi %s in block #%d names #%d, which is not a predecessor",
						body.Name, phi.Out, s, p)
				}
				in := phi.Ins[k]
				idx, ok := index[in]
				if !ok {
					return res, diag.Internal("%s: phi %s in block #%d reads %s, which is never defined",
						body.Name, phi.Out, s, in)
				}
				if !definedAt[p].Test(idx) {
					return res, diag.Internal("%s: phi %s in block #%d reads %s, which is not defined on every path to the end of #%d",
						body.Name, phi.Out, s, in, p)
				}
			}
			if converted(body, s, phi) {
				continue
			}

			ins2 := slices.Clone(phi.Ins)
			for k, p := range phi.Preds {
				tmp := namer(phi.Ins[k], phi.Out)
				atEnd[p].add(phi.Ins[k], tmp)
				ins2[k] = tmp
			}
			phi.Ins = ins2

			tmp := namer(phi.Out, phi.Out)
			afterPhis[s].add(tmp, phi.Out)
			phi.Out = tmp
			res.Phis++
		}
	}

	for bi := range body.Blocks {
		blk := &body.Blocks[bi]
		if pc := atEnd[bi]; len(pc.ins) > 0 {
			blk.Insert(blk.EndIndex(), ssa.ParallelCopy(pc.ins, pc.outs))
			res.Copies++
		}
	}
	for bi := range body.Blocks {
		blk := &body.Blocks[bi]
		if pc := afterPhis[bi]; len(pc.ins) > 0 {
			blk.Insert(blk.PhiEnd(), ssa.ParallelCopy(pc.ins, pc.outs))
			res.Copies++
		}
	}
	return res, nil
}

// definedAtExit numbers every name the body defines and returns, per block,
// the names defined on every path from the entry to the end of that block.
// Unreachable blocks keep an empty set.
func definedAtExit(body *ssa.Body, graph *cfg.Graph) (map[string]uint, []*bitset.BitSet) {
	index := make(map[string]uint)
	body.ForEach(func(_ ssa.BlockID, _ int, ins *ssa.Instr) {
		for _, out := range ins.Outputs() {
			if _, ok := index[out]; !ok {
				index[out] = uint(len(index))
			}
		}
	})
	n := uint(len(index))

	gen := make([]*bitset.BitSet, len(body.Blocks))
	out := make([]*bitset.BitSet, len(body.Blocks))
	for b := range out {
		gen[b] = bitset.New(n)
		for i := range body.Blocks[b].Instrs {
			for _, name := range body.Blocks[b].Instrs[i].Outputs() {
				gen[b].Set(index[name])
			}
		}
		switch {
		case b == 0:
			out[b] = gen[b].Clone()
		case graph.Reachable(ssa.BlockID(b)):
			out[b] = bitset.New(n).Complement()
		default:
			out[b] = bitset.New(n)
		}
	}

	for changed := true; changed; {
		changed = false
		for b := 1; b < len(out); b++ {
			if !graph.Reachable(ssa.BlockID(b)) {
				continue
			}
			var in *bitset.BitSet
			for _, p := range graph.Preds(ssa.BlockID(b)) {
				if in == nil {
					in = out[p].Clone()
				} else {
					in.InPlaceIntersection(out[p])
				}
			}
			if in == nil {
				in = bitset.New(n)
			}
			in.InPlaceUnion(gen[b])
			if !in.Equal(out[b]) {
				out[b] = in
				changed = true
			}
		}
	}
	return index, out
}

// converted reports whether phi already reads values copied at the end of
// each predecessor and feeds a copy placed after the phi group.
func converted(body *ssa.Body, s ssa.BlockID, phi *ssa.PhiInstr) bool {
	if !copiesRun(body.Block(s), body.Block(s).PhiEnd(), 1, func(pc *ssa.ParallelCopyInstr) bool {
		return slices.Contains(pc.Ins, phi.Out)
	}) {
		return false
	}
	for k, p := range phi.Preds {
		blk := body.Block(p)
		in := phi.Ins[k]
		if !copiesRun(blk, blk.EndIndex()-1, -1, func(pc *ssa.ParallelCopyInstr) bool {
			return slices.Contains(pc.Outs, in)
		}) {
			return false
		}
	}
	return true
}

// copiesRun scans the run of consecutive parallel copies starting at start
// and moving by step, and reports whether any satisfies match.
func copiesRun(blk *ssa.Block, start, step int, match func(*ssa.ParallelCopyInstr) bool) bool {
	for i := start; i >= 0 && i < len(blk.Instrs); i += step {
		ins := &blk.Instrs[i]
		if ins.Kind != ssa.InstrParallelCopy {
			return false
		}
		if match(&ins.ParallelCopy) {
			return true
		}
	}
	return false
}
