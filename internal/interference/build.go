package interference

import (
	"github.com/bits-and-blooms/bitset"

	"matisse/internal/liveness"
	"matisse/internal/ssa"
)

// Build derives the interference graph of body from info. For every
// instruction it connects:
//   - every pair of names live at its entry, and every pair live at its exit;
//   - each name it defines with everything live at its exit;
//   - each of its interferent names with everything live across it, so
//     that operands of calls lowered opaquely never share a slot with
//     anything else alive there.
func Build(body *ssa.Body, info *liveness.Info) *Graph {
	g := newGraph(info.Names())
	for b := range body.Blocks {
		blk := &body.Blocks[b]
		for i := range blk.Instrs {
			ins := &blk.Instrs[i]
			entry := info.EntrySet(ssa.BlockID(b), i)
			exit := info.ExitSet(ssa.BlockID(b), i)
			g.clique(entry)
			g.clique(exit)

			for _, d := range defs(ins) {
				g.connect(g.node(d), exit)
			}
			if names := ins.Interferent(); len(names) > 0 {
				across := entry.Union(exit)
				for _, name := range names {
					g.connect(g.node(name), across)
				}
			}
		}
	}
	for id := range g.adj {
		g.adj[id].Clear(uint(id))
	}
	return g
}

func defs(ins *ssa.Instr) []string {
	out := ins.Outputs()
	if ins.Kind == ssa.InstrWriteGlobal {
		out = append(append([]string(nil), out...), ins.Global.Global)
	}
	return out
}

// clique makes every member of set adjacent to every other member.
func (g *Graph) clique(set *bitset.BitSet) {
	if set == nil || set.Count() < 2 {
		return
	}
	for i, ok := set.NextSet(0); ok; i, ok = set.NextSet(i + 1) {
		g.adj[i].InPlaceUnion(set)
	}
}

// connect makes id adjacent to every member of set.
func (g *Graph) connect(id uint, set *bitset.BitSet) {
	if set == nil {
		return
	}
	for i, ok := set.NextSet(0); ok; i, ok = set.NextSet(i + 1) {
		g.addEdge(id, i)
	}
}
