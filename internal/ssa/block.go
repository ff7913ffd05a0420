package ssa

import "slices"

type Block struct {
	Instrs []Instr
}

func (b *Block) Add(ins Instr) {
	b.Instrs = append(b.Instrs, ins)
}

// Insert places ins at position i, shifting later instructions.
func (b *Block) Insert(i int, ins ...Instr) {
	b.Instrs = slices.Insert(b.Instrs, i, ins...)
}

// Control returns the trailing control instruction, if any.
func (b *Block) Control() (*Instr, bool) {
	if len(b.Instrs) == 0 {
		return nil, false
	}
	last := &b.Instrs[len(b.Instrs)-1]
	if !last.IsControl() {
		return nil, false
	}
	return last, true
}

// EndIndex is the insertion point for code that must run last in the block,
// just before its control instruction.
func (b *Block) EndIndex() int {
	if _, ok := b.Control(); ok {
		return len(b.Instrs) - 1
	}
	return len(b.Instrs)
}

// PhiEnd returns the index just past the leading phi group. Line and comment
// markers interleaved with the phis belong to the group.
func (b *Block) PhiEnd() int {
	end := 0
	for i := range b.Instrs {
		switch b.Instrs[i].Kind {
		case InstrPhi:
			end = i + 1
		case InstrLine, InstrComment:
		default:
			return end
		}
	}
	return end
}
