package liveness

import (
	"github.com/bits-and-blooms/bitset"

	"matisse/internal/cfg"
	"matisse/internal/ssa"
)

// Analyze runs a backward worklist fixed point over graph.
//
// Besides ordinary uses and definitions:
//   - a phi input is used at the exit of the predecessor it names, never in
//     the phi's own block;
//   - ReadGlobal uses its global and WriteGlobal defines it, and every global
//     the body touches is live at each exit block so writes reach the caller;
//   - $ret values are live at each exit block;
//   - an Iter output and the bounds of a For stay live to the end of the loop
//     body region, since the loop reads them on every iteration.
func Analyze(body *ssa.Body, graph *cfg.Graph) *Info {
	info := &Info{index: make(map[string]uint)}
	for _, name := range body.Names() {
		info.index[name] = uint(len(info.names))
		info.names = append(info.names, name)
	}
	n := uint(len(info.names))
	nb := len(body.Blocks)

	info.entry = make([][]*bitset.BitSet, nb)
	info.exit = make([][]*bitset.BitSet, nb)
	info.in = make([]*bitset.BitSet, nb)
	info.out = make([]*bitset.BitSet, nb)
	for b := range body.Blocks {
		k := len(body.Blocks[b].Instrs)
		info.entry[b] = make([]*bitset.BitSet, k)
		info.exit[b] = make([]*bitset.BitSet, k)
		for i := 0; i < k; i++ {
			info.entry[b][i] = bitset.New(n)
			info.exit[b][i] = bitset.New(n)
		}
		info.in[b] = bitset.New(n)
		info.out[b] = bitset.New(n)
	}
	if nb == 0 {
		return info
	}

	seeds := info.seeds(body, graph)
	edgeUses := info.edgeUses(body, graph)

	a := analyzer{info: info, body: body, graph: graph, seeds: seeds, edgeUses: edgeUses, n: n}
	a.run()

	for i, ok := info.in[0].NextSet(0); ok; i, ok = info.in[0].NextSet(i + 1) {
		if !ssa.IsGlobal(info.names[i]) {
			info.undefined = append(info.undefined, info.names[i])
		}
	}
	return info
}

// seeds returns, per block, the names forced live at its exit.
func (info *Info) seeds(body *ssa.Body, graph *cfg.Graph) []*bitset.BitSet {
	n := uint(len(info.names))
	seeds := make([]*bitset.BitSet, len(body.Blocks))
	for b := range seeds {
		seeds[b] = bitset.New(n)
	}

	atExit := bitset.New(n)
	body.ForEach(func(_ ssa.BlockID, _ int, ins *ssa.Instr) {
		for _, g := range ins.Globals() {
			atExit.Set(info.index[g])
		}
		for _, out := range ins.Outputs() {
			if ssa.IsReturn(out) {
				atExit.Set(info.index[out])
			}
		}
	})
	for _, b := range graph.Exits() {
		seeds[b].InPlaceUnion(atExit)
	}

	body.ForEach(func(b ssa.BlockID, _ int, ins *ssa.Instr) {
		switch ins.Kind {
		case ssa.InstrIter:
			end := cfg.BlockEnd(body, b)
			seeds[end].Set(info.index[ins.Iter.Out])
		case ssa.InstrFor:
			end := cfg.BlockEnd(body, ins.For.Loop)
			for _, bound := range ins.Inputs() {
				seeds[end].Set(info.index[bound])
			}
		}
	})
	return seeds
}

// edgeUses returns, per block, the phi inputs its successors read on the
// connecting edge.
func (info *Info) edgeUses(body *ssa.Body, graph *cfg.Graph) []*bitset.BitSet {
	n := uint(len(info.names))
	uses := make([]*bitset.BitSet, len(body.Blocks))
	for b := range uses {
		uses[b] = bitset.New(n)
	}
	for b := range body.Blocks {
		blk := &body.Blocks[b]
		for i := range blk.Instrs {
			ins := &blk.Instrs[i]
			if ins.Kind != ssa.InstrPhi {
				continue
			}
			for k, in := range ins.Phi.Ins {
				if k >= len(ins.Phi.Preds) {
					break
				}
				p := ins.Phi.Preds[k]
				if p < 0 || int(p) >= len(uses) || !graph.HasEdge(p, ssa.BlockID(b)) {
					continue
				}
				uses[p].Set(info.index[in])
			}
		}
	}
	return uses
}

type analyzer struct {
	info     *Info
	body     *ssa.Body
	graph    *cfg.Graph
	seeds    []*bitset.BitSet
	edgeUses []*bitset.BitSet
	n        uint
}

func (a *analyzer) run() {
	nb := len(a.body.Blocks)
	queued := make([]bool, nb)
	var work []ssa.BlockID
	for b := nb - 1; b >= 0; b-- {
		if a.graph.Reachable(ssa.BlockID(b)) {
			work = append(work, ssa.BlockID(b))
			queued[b] = true
		}
	}

	for len(work) > 0 {
		b := work[0]
		work = work[1:]
		queued[b] = false
		a.info.iterations++

		if !a.visit(b) {
			continue
		}
		for _, p := range a.graph.Preds(b) {
			if !queued[p] {
				queued[p] = true
				work = append(work, p)
			}
		}
	}
}

// visit recomputes block b and reports whether its entry set changed.
func (a *analyzer) visit(b ssa.BlockID) bool {
	info := a.info
	out := a.seeds[b].Clone()
	out.InPlaceUnion(a.edgeUses[b])
	for _, s := range a.graph.Succs(b) {
		out.InPlaceUnion(info.in[s])
	}
	info.out[b] = out

	live := out.Clone()
	instrs := a.body.Blocks[b].Instrs
	for i := len(instrs) - 1; i >= 0; i-- {
		ins := &instrs[i]
		info.exit[b][i] = live.Clone()
		for _, d := range a.defs(ins) {
			live.Clear(d)
		}
		for _, u := range a.uses(ins) {
			live.Set(u)
		}
		info.entry[b][i] = live.Clone()
	}

	if live.Equal(info.in[b]) {
		return false
	}
	info.in[b] = live
	return true
}

func (a *analyzer) defs(ins *ssa.Instr) []uint {
	var out []uint
	for _, d := range ins.Outputs() {
		out = append(out, a.info.index[d])
	}
	if ins.Kind == ssa.InstrWriteGlobal {
		out = append(out, a.info.index[ins.Global.Global])
	}
	return out
}

func (a *analyzer) uses(ins *ssa.Instr) []uint {
	if ins.Kind == ssa.InstrPhi {
		return nil
	}
	var out []uint
	for _, u := range ins.Inputs() {
		out = append(out, a.info.index[u])
	}
	if ins.Kind == ssa.InstrReadGlobal {
		out = append(out, a.info.index[ins.Global.Global])
	}
	return out
}
