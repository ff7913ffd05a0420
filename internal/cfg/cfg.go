// Package cfg derives control-flow edges from the structured control
// instructions of an ssa.Body.
//
// Blocks are owned by the construct that names them: a Branch owns its two
// arms and the join block, a For or While owns its body and exit. A block
// without a control instruction continues wherever its enclosing construct
// continues: the join block after a branch arm, the loop head (and, for For,
// the exit) after a loop body, nowhere at the top level.
package cfg

import (
	"slices"

	"matisse/internal/ssa"
)

type Graph struct {
	succs     [][]ssa.BlockID
	preds     [][]ssa.BlockID
	reachable []bool
}

func (g *Graph) NumBlocks() int { return len(g.succs) }

func (g *Graph) Succs(b ssa.BlockID) []ssa.BlockID { return g.succs[b] }

func (g *Graph) Preds(b ssa.BlockID) []ssa.BlockID { return g.preds[b] }

// Reachable reports whether b can be reached from the entry block.
func (g *Graph) Reachable(b ssa.BlockID) bool { return g.reachable[b] }

// Exits returns the reachable blocks with no successors, in block order.
func (g *Graph) Exits() []ssa.BlockID {
	var out []ssa.BlockID
	for b := range g.succs {
		if g.reachable[b] && len(g.succs[b]) == 0 {
			out = append(out, ssa.BlockID(b))
		}
	}
	return out
}

// HasEdge reports whether to is a successor of from.
func (g *Graph) HasEdge(from, to ssa.BlockID) bool {
	return slices.Contains(g.succs[from], to)
}

func (g *Graph) addEdge(from, to ssa.BlockID) {
	if g.HasEdge(from, to) {
		return
	}
	g.succs[from] = append(g.succs[from], to)
	g.preds[to] = append(g.preds[to], from)
}

type frameKind uint8

const (
	frameSimple frameKind = iota
	frameArm
	frameWhile
	frameFor
)

// frame is the structural context a block is visited in.
type frame struct {
	kind   frameKind
	block  ssa.BlockID
	parent *frame

	join ssa.BlockID // frameArm
	exit ssa.BlockID // loops: break target
	head ssa.BlockID // loops: continue target
}

// next lists the frames control falls through to from f.
func (f *frame) next() []*frame {
	switch f.kind {
	case frameArm:
		return []*frame{{kind: frameSimple, block: f.join, parent: f.parent}}
	case frameWhile:
		return []*frame{{kind: frameSimple, block: f.head, parent: f}}
	case frameFor:
		return []*frame{
			{kind: frameSimple, block: f.head, parent: f},
			{kind: frameSimple, block: f.exit, parent: f.parent},
		}
	default:
		if f.parent == nil {
			return nil
		}
		return f.parent.next()
	}
}

// loop returns the innermost enclosing loop frame, or nil.
func (f *frame) loop() *frame {
	for cur := f; cur != nil; cur = cur.parent {
		if cur.kind == frameWhile || cur.kind == frameFor {
			return cur
		}
	}
	return nil
}

// Build walks the body breadth-first from the entry block. Each block is
// expanded once, in the context it is first reached from.
func Build(body *ssa.Body) *Graph {
	n := len(body.Blocks)
	g := &Graph{
		succs:     make([][]ssa.BlockID, n),
		preds:     make([][]ssa.BlockID, n),
		reachable: make([]bool, n),
	}
	if n == 0 {
		return g
	}

	queue := []*frame{{kind: frameSimple, block: 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if g.reachable[cur.block] {
			continue
		}
		g.reachable[cur.block] = true

		ctrl, ok := body.Block(cur.block).Control()
		if !ok {
			for _, nf := range cur.next() {
				g.addEdge(cur.block, nf.block)
				queue = append(queue, nf)
			}
			continue
		}

		switch ctrl.Kind {
		case ssa.InstrBranch:
			br := ctrl.Branch
			g.addEdge(cur.block, br.True)
			g.addEdge(cur.block, br.False)
			queue = append(queue,
				&frame{kind: frameArm, block: br.True, parent: cur, join: br.End},
				&frame{kind: frameArm, block: br.False, parent: cur, join: br.End})
		case ssa.InstrWhile:
			// while loops are while(1) at this stage; the exit is reached
			// through break only.
			w := ctrl.While
			g.addEdge(cur.block, w.Loop)
			queue = append(queue, &frame{kind: frameWhile, block: w.Loop, parent: cur, exit: w.End, head: w.Loop})
		case ssa.InstrFor:
			f := ctrl.For
			g.addEdge(cur.block, f.Loop)
			g.addEdge(cur.block, f.End)
			queue = append(queue,
				&frame{kind: frameFor, block: f.Loop, parent: cur, exit: f.End, head: f.Loop},
				&frame{kind: frameSimple, block: f.End, parent: cur})
		case ssa.InstrBreak:
			if l := cur.loop(); l != nil {
				g.addEdge(cur.block, l.exit)
				queue = append(queue, &frame{kind: frameSimple, block: l.exit, parent: l.parent})
			}
		case ssa.InstrContinue:
			if l := cur.loop(); l != nil {
				g.addEdge(cur.block, l.head)
				queue = append(queue, &frame{kind: frameSimple, block: l.head, parent: l})
			}
		default:
			panic("cfg: unexpected control instruction " + ctrl.Kind.String())
		}
	}
	return g
}

// BlockEnd returns the last block of the structured region starting at b:
// the block reached by following End targets of trailing control
// instructions.
func BlockEnd(body *ssa.Body, b ssa.BlockID) ssa.BlockID {
	for {
		ctrl, ok := body.Block(b).Control()
		if !ok {
			return b
		}
		end, ok := ctrl.EndBlock()
		if !ok {
			return b
		}
		b = end
	}
}
