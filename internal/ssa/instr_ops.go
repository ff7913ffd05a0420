package ssa

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Outputs returns the local names defined by the instruction. Globals written
// by WriteGlobal are reported by Globals, not here.
func (ins *Instr) Outputs() []string {
	switch ins.Kind {
	case InstrArgument:
		return []string{ins.Argument.Out}
	case InstrAssign:
		return []string{ins.Assign.Out}
	case InstrPhi:
		return []string{ins.Phi.Out}
	case InstrBranch, InstrFor, InstrWhile, InstrBreak, InstrContinue:
		return nil
	case InstrIter:
		return []string{ins.Iter.Out}
	case InstrTypedCall, InstrUntypedCall:
		return ins.Call.Outs
	case InstrMatrixGet:
		return []string{ins.MatrixGet.Out}
	case InstrMatrixSet, InstrSimpleSet:
		return []string{ins.MatrixSet.Out}
	case InstrMultiSet:
		return []string{ins.MultiSet.Out}
	case InstrParallelCopy:
		return ins.ParallelCopy.Outs
	case InstrReadGlobal:
		return []string{ins.Global.Var}
	case InstrWriteGlobal, InstrLine, InstrComment:
		return nil
	case InstrEnd:
		return []string{ins.End.Out}
	default:
		panic(fmt.Sprintf("ssa: unknown instruction kind %d", ins.Kind))
	}
}

// Inputs returns the local names read by the instruction, in operand order.
// Phi inputs are included even though they are used on the incoming edge.
func (ins *Instr) Inputs() []string {
	switch ins.Kind {
	case InstrArgument, InstrIter, InstrWhile, InstrBreak, InstrContinue,
		InstrReadGlobal, InstrLine, InstrComment:
		return nil
	case InstrAssign:
		if ins.Assign.Src.Kind == ValueVar {
			return []string{ins.Assign.Src.Name}
		}
		return nil
	case InstrPhi:
		return ins.Phi.Ins
	case InstrBranch:
		return []string{ins.Branch.Cond}
	case InstrFor:
		return []string{ins.For.Start, ins.For.Step, ins.For.Stop}
	case InstrTypedCall, InstrUntypedCall:
		return ins.Call.Ins
	case InstrMatrixGet:
		out := make([]string, 0, 1+len(ins.MatrixGet.Indices))
		out = append(out, ins.MatrixGet.Matrix)
		return append(out, ins.MatrixGet.Indices...)
	case InstrMatrixSet, InstrSimpleSet:
		out := make([]string, 0, 2+len(ins.MatrixSet.Indices))
		out = append(out, ins.MatrixSet.Matrix)
		out = append(out, ins.MatrixSet.Indices...)
		return append(out, ins.MatrixSet.Value)
	case InstrMultiSet:
		out := make([]string, 0, 1+len(ins.MultiSet.Values))
		out = append(out, ins.MultiSet.Matrix)
		return append(out, ins.MultiSet.Values...)
	case InstrParallelCopy:
		return ins.ParallelCopy.Ins
	case InstrWriteGlobal:
		return []string{ins.Global.Var}
	case InstrEnd:
		return []string{ins.End.Matrix}
	default:
		panic(fmt.Sprintf("ssa: unknown instruction kind %d", ins.Kind))
	}
}

// Targets returns the blocks owned by a control instruction.
func (ins *Instr) Targets() []BlockID {
	switch ins.Kind {
	case InstrBranch:
		return []BlockID{ins.Branch.True, ins.Branch.False, ins.Branch.End}
	case InstrFor:
		return []BlockID{ins.For.Loop, ins.For.End}
	case InstrWhile:
		return []BlockID{ins.While.Loop, ins.While.End}
	case InstrArgument, InstrAssign, InstrPhi, InstrBreak, InstrContinue, InstrIter,
		InstrTypedCall, InstrUntypedCall, InstrMatrixGet, InstrMatrixSet, InstrSimpleSet,
		InstrMultiSet, InstrParallelCopy, InstrReadGlobal, InstrWriteGlobal,
		InstrLine, InstrEnd, InstrComment:
		return nil
	default:
		panic(fmt.Sprintf("ssa: unknown instruction kind %d", ins.Kind))
	}
}

// EndBlock returns the block control reaches after the structured region of a
// Branch, For or While.
func (ins *Instr) EndBlock() (BlockID, bool) {
	switch ins.Kind {
	case InstrBranch:
		return ins.Branch.End, true
	case InstrFor:
		return ins.For.End, true
	case InstrWhile:
		return ins.While.End, true
	default:
		return NoBlockID, false
	}
}

// IsControl reports whether the instruction must terminate its block.
func (ins *Instr) IsControl() bool {
	switch ins.Kind {
	case InstrBranch, InstrFor, InstrWhile, InstrBreak, InstrContinue:
		return true
	case InstrArgument, InstrAssign, InstrPhi, InstrIter, InstrTypedCall, InstrUntypedCall,
		InstrMatrixGet, InstrMatrixSet, InstrSimpleSet, InstrMultiSet, InstrParallelCopy,
		InstrReadGlobal, InstrWriteGlobal, InstrLine, InstrEnd, InstrComment:
		return false
	default:
		panic(fmt.Sprintf("ssa: unknown instruction kind %d", ins.Kind))
	}
}

// Globals returns the global variables referenced by the instruction.
func (ins *Instr) Globals() []string {
	if ins.Kind == InstrReadGlobal || ins.Kind == InstrWriteGlobal {
		return []string{ins.Global.Global}
	}
	return nil
}

// Interferent returns the names that must not share storage with anything
// live across the instruction. Untyped calls may be lowered to anything, so
// all their operands qualify. A typed call qualifies an input that is passed
// in several slots when one of those slots is by reference.
func (ins *Instr) Interferent() []string {
	switch ins.Kind {
	case InstrUntypedCall:
		out := make([]string, 0, len(ins.Call.Ins)+len(ins.Call.Outs))
		out = append(out, ins.Call.Ins...)
		return append(out, ins.Call.Outs...)
	case InstrTypedCall:
		ft := ins.Call.Type
		if ft == nil {
			return nil
		}
		var out []string
		for i, name := range ins.Call.Ins {
			if slices.Contains(out, name) {
				continue
			}
			count, byRef := 0, false
			for j, other := range ins.Call.Ins {
				if other != name {
					continue
				}
				count++
				byRef = byRef || ft.IsInputReference(j)
			}
			if count > 1 && byRef {
				out = append(out, ins.Call.Ins[i])
			}
		}
		return out
	default:
		return nil
	}
}

// Rename replaces every local name found in m. Globals are left untouched.
func (ins *Instr) Rename(m map[string]string) {
	one := func(s string) string {
		if r, ok := m[s]; ok {
			return r
		}
		return s
	}
	many := func(s []string) []string {
		if len(s) == 0 {
			return s
		}
		out := slices.Clone(s)
		for i := range out {
			out[i] = one(out[i])
		}
		return out
	}

	switch ins.Kind {
	case InstrArgument:
		ins.Argument.Out = one(ins.Argument.Out)
	case InstrAssign:
		ins.Assign.Out = one(ins.Assign.Out)
		if ins.Assign.Src.Kind == ValueVar {
			ins.Assign.Src.Name = one(ins.Assign.Src.Name)
		}
	case InstrPhi:
		ins.Phi.Out = one(ins.Phi.Out)
		ins.Phi.Ins = many(ins.Phi.Ins)
	case InstrBranch:
		ins.Branch.Cond = one(ins.Branch.Cond)
	case InstrFor:
		ins.For.Start = one(ins.For.Start)
		ins.For.Step = one(ins.For.Step)
		ins.For.Stop = one(ins.For.Stop)
	case InstrWhile, InstrBreak, InstrContinue, InstrLine, InstrComment:
	case InstrIter:
		ins.Iter.Out = one(ins.Iter.Out)
	case InstrTypedCall, InstrUntypedCall:
		ins.Call.Outs = many(ins.Call.Outs)
		ins.Call.Ins = many(ins.Call.Ins)
	case InstrMatrixGet:
		ins.MatrixGet.Out = one(ins.MatrixGet.Out)
		ins.MatrixGet.Matrix = one(ins.MatrixGet.Matrix)
		ins.MatrixGet.Indices = many(ins.MatrixGet.Indices)
	case InstrMatrixSet, InstrSimpleSet:
		ins.MatrixSet.Out = one(ins.MatrixSet.Out)
		ins.MatrixSet.Matrix = one(ins.MatrixSet.Matrix)
		ins.MatrixSet.Indices = many(ins.MatrixSet.Indices)
		ins.MatrixSet.Value = one(ins.MatrixSet.Value)
	case InstrMultiSet:
		ins.MultiSet.Out = one(ins.MultiSet.Out)
		ins.MultiSet.Matrix = one(ins.MultiSet.Matrix)
		ins.MultiSet.Values = many(ins.MultiSet.Values)
	case InstrParallelCopy:
		ins.ParallelCopy.Ins = many(ins.ParallelCopy.Ins)
		ins.ParallelCopy.Outs = many(ins.ParallelCopy.Outs)
	case InstrReadGlobal, InstrWriteGlobal:
		ins.Global.Var = one(ins.Global.Var)
	case InstrEnd:
		ins.End.Out = one(ins.End.Out)
		ins.End.Matrix = one(ins.End.Matrix)
	default:
		panic(fmt.Sprintf("ssa: unknown instruction kind %d", ins.Kind))
	}
}

// Clone returns a deep copy of the instruction.
func (ins *Instr) Clone() Instr {
	c := *ins
	c.Phi.Ins = slices.Clone(ins.Phi.Ins)
	c.Phi.Preds = slices.Clone(ins.Phi.Preds)
	c.Call.Outs = slices.Clone(ins.Call.Outs)
	c.Call.Ins = slices.Clone(ins.Call.Ins)
	c.MatrixGet.Indices = slices.Clone(ins.MatrixGet.Indices)
	c.MatrixSet.Indices = slices.Clone(ins.MatrixSet.Indices)
	c.MultiSet.Values = slices.Clone(ins.MultiSet.Values)
	c.ParallelCopy.Ins = slices.Clone(ins.ParallelCopy.Ins)
	c.ParallelCopy.Outs = slices.Clone(ins.ParallelCopy.Outs)
	return c
}

// String renders the instruction in the textual IR format accepted by Parse.
func (ins *Instr) String() string {
	var sb strings.Builder
	lhs := func(names []string) {
		if len(names) > 0 {
			sb.WriteString(strings.Join(names, ", "))
			sb.WriteString(" = ")
		}
	}

	switch ins.Kind {
	case InstrArgument:
		fmt.Fprintf(&sb, "%s = arg %d", ins.Argument.Out, ins.Argument.Index)
	case InstrAssign:
		sb.WriteString(ins.Assign.Out)
		sb.WriteString(" = ")
		if ins.Assign.Src.Kind == ValueVar {
			sb.WriteString(ins.Assign.Src.Name)
		} else {
			sb.WriteString(ins.Assign.Src.literal())
		}
	case InstrPhi:
		fmt.Fprintf(&sb, "%s = phi", ins.Phi.Out)
		for i, in := range ins.Phi.Ins {
			if i > 0 {
				sb.WriteByte(',')
			}
			pred := NoBlockID
			if i < len(ins.Phi.Preds) {
				pred = ins.Phi.Preds[i]
			}
			fmt.Fprintf(&sb, " #%d:%s", pred, in)
		}
	case InstrBranch:
		b := ins.Branch
		fmt.Fprintf(&sb, "branch %s, #%d, #%d, #%d", b.Cond, b.True, b.False, b.End)
	case InstrFor:
		f := ins.For
		fmt.Fprintf(&sb, "for %s, %s, %s, #%d, #%d", f.Start, f.Step, f.Stop, f.Loop, f.End)
	case InstrWhile:
		fmt.Fprintf(&sb, "while #%d, #%d", ins.While.Loop, ins.While.End)
	case InstrBreak:
		sb.WriteString("break")
	case InstrContinue:
		sb.WriteString("continue")
	case InstrIter:
		fmt.Fprintf(&sb, "%s = iter", ins.Iter.Out)
	case InstrTypedCall:
		lhs(ins.Call.Outs)
		fmt.Fprintf(&sb, "call %s %s", ins.Call.Func, ins.Call.Type)
		if len(ins.Call.Ins) > 0 {
			sb.WriteByte(' ')
			sb.WriteString(strings.Join(ins.Call.Ins, ", "))
		}
	case InstrUntypedCall:
		lhs(ins.Call.Outs)
		sb.WriteString("untyped ")
		sb.WriteString(ins.Call.Func)
		if len(ins.Call.Ins) > 0 {
			sb.WriteByte(' ')
			sb.WriteString(strings.Join(ins.Call.Ins, ", "))
		}
	case InstrMatrixGet:
		g := ins.MatrixGet
		fmt.Fprintf(&sb, "%s = get %s", g.Out, strings.Join(append([]string{g.Matrix}, g.Indices...), ", "))
	case InstrMatrixSet, InstrSimpleSet:
		s := ins.MatrixSet
		fmt.Fprintf(&sb, "%s = %s %s <- %s", s.Out, ins.Kind,
			strings.Join(append([]string{s.Matrix}, s.Indices...), ", "), s.Value)
	case InstrMultiSet:
		m := ins.MultiSet
		fmt.Fprintf(&sb, "%s = multi_set %s", m.Out, strings.Join(append([]string{m.Matrix}, m.Values...), ", "))
	case InstrParallelCopy:
		lhs(ins.ParallelCopy.Outs)
		sb.WriteString("parallel_copy ")
		sb.WriteString(strings.Join(ins.ParallelCopy.Ins, ", "))
	case InstrReadGlobal:
		fmt.Fprintf(&sb, "%s = read_global %s", ins.Global.Var, ins.Global.Global)
	case InstrWriteGlobal:
		fmt.Fprintf(&sb, "write_global %s, %s", ins.Global.Global, ins.Global.Var)
	case InstrLine:
		fmt.Fprintf(&sb, "line %d", ins.Line.Line)
	case InstrEnd:
		e := ins.End
		fmt.Fprintf(&sb, "%s = end %s, %d, %d", e.Out, e.Matrix, e.Index, e.NumIndices)
	case InstrComment:
		sb.WriteString("% ")
		sb.WriteString(ins.Comment.Text)
	default:
		panic(fmt.Sprintf("ssa: unknown instruction kind %d", ins.Kind))
	}
	return sb.String()
}

func (v Value) literal() string {
	if v.Text != "" {
		return v.Text
	}
	return strconv.FormatFloat(v.Number, 'g', -1, 64)
}
