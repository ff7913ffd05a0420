package alloc

import (
	"fmt"
	"slices"
	"strings"

	"matisse/internal/ssa"
)

// Strategy decides the order in which merge opportunities are tried.
type Strategy interface {
	Name() string
	Run(m *Merger)
}

// PriorityStrategy scans the body once for structural copies, once more for
// calling-convention and global copies, and a last time for the remaining
// plain copies. A cheaper merge never takes a name a copy elimination needed.
type PriorityStrategy struct{}

func (PriorityStrategy) Name() string { return "priority" }

func (PriorityStrategy) Run(m *Merger) {
	phases := []struct {
		name string
		rule func(*Merger, *ssa.Instr)
	}{
		{"high", HighPriority},
		{"medium", MediumPriority},
		{"low", LowPriority},
	}
	for _, ph := range phases {
		m.SetPhase(ph.name)
		m.body.ForEach(func(_ ssa.BlockID, _ int, ins *ssa.Instr) {
			ph.rule(m, ins)
		})
	}
}

// SinglePassStrategy tries every rule set on each instruction before moving
// to the next one.
type SinglePassStrategy struct{}

func (SinglePassStrategy) Name() string { return "single-pass" }

func (SinglePassStrategy) Run(m *Merger) {
	m.SetPhase("single")
	m.body.ForEach(func(_ ssa.BlockID, _ int, ins *ssa.Instr) {
		HighPriority(m, ins)
		MediumPriority(m, ins)
		LowPriority(m, ins)
	})
}

var strategies = map[string]Strategy{
	PriorityStrategy{}.Name():   PriorityStrategy{},
	SinglePassStrategy{}.Name(): SinglePassStrategy{},
}

// LookupStrategy returns the strategy registered under name. The empty name
// selects PriorityStrategy.
func LookupStrategy(name string) (Strategy, error) {
	if name == "" {
		return PriorityStrategy{}, nil
	}
	if s, ok := strategies[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("unknown allocation strategy %q (expected: %s)", name, strings.Join(StrategyNames(), "|"))
}

// StrategyNames lists the registered strategies in sorted order.
func StrategyNames() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// HighPriority merges structural copies: renames of one source variable or
// of a temporary, parallel copy pairs, and in-bounds matrix updates.
func HighPriority(m *Merger, ins *ssa.Instr) {
	switch ins.Kind {
	case ssa.InstrAssign:
		if ins.Assign.Src.Kind != ssa.ValueVar {
			return
		}
		out, in := ins.Assign.Out, ins.Assign.Src.Name
		outFam, inFam := m.body.Family(out), m.body.Family(in)
		if outFam == "" || inFam == "" || outFam == inFam {
			m.TryMerge(out, in)
		}
	case ssa.InstrParallelCopy:
		pc := &ins.ParallelCopy
		for i := range pc.Ins {
			m.TryMerge(pc.Outs[i], pc.Ins[i])
		}
	case ssa.InstrSimpleSet:
		m.TryMerge(ins.MatrixSet.Out, ins.MatrixSet.Matrix)
	case ssa.InstrMultiSet:
		m.TryMerge(ins.MultiSet.Out, ins.MultiSet.Matrix)
	case ssa.InstrArgument, ssa.InstrPhi, ssa.InstrBranch, ssa.InstrFor, ssa.InstrWhile,
		ssa.InstrBreak, ssa.InstrContinue, ssa.InstrIter, ssa.InstrTypedCall, ssa.InstrUntypedCall,
		ssa.InstrMatrixGet, ssa.InstrMatrixSet, ssa.InstrReadGlobal, ssa.InstrWriteGlobal,
		ssa.InstrLine, ssa.InstrEnd, ssa.InstrComment:
	default:
		panic(fmt.Sprintf("alloc: unknown instruction kind %d", ins.Kind))
	}
}

// MediumPriority merges calling-convention copies: call outputs returned
// through by-reference arguments, checked matrix updates, and global
// loads and stores.
func MediumPriority(m *Merger, ins *ssa.Instr) {
	switch ins.Kind {
	case ssa.InstrTypedCall:
		if !m.Allows(DirectiveCallAlias) {
			return
		}
		call := &ins.Call
		for i, out := range call.Outs {
			arg, ok := call.Type.ByRefAlias(i)
			if !ok || arg >= len(call.Ins) {
				continue
			}
			m.TryMerge(out, call.Ins[arg])
		}
	case ssa.InstrMatrixSet:
		m.TryMerge(ins.MatrixSet.Out, ins.MatrixSet.Matrix)
	case ssa.InstrReadGlobal, ssa.InstrWriteGlobal:
		if !m.Allows(DirectiveGlobal) {
			return
		}
		m.TryMerge(ins.Global.Global, ins.Global.Var)
	case ssa.InstrArgument, ssa.InstrAssign, ssa.InstrPhi, ssa.InstrBranch, ssa.InstrFor,
		ssa.InstrWhile, ssa.InstrBreak, ssa.InstrContinue, ssa.InstrIter, ssa.InstrUntypedCall,
		ssa.InstrMatrixGet, ssa.InstrSimpleSet, ssa.InstrMultiSet, ssa.InstrParallelCopy,
		ssa.InstrLine, ssa.InstrEnd, ssa.InstrComment:
	default:
		panic(fmt.Sprintf("alloc: unknown instruction kind %d", ins.Kind))
	}
}

// LowPriority merges any remaining copy between two variables, whatever
// source variables they version.
func LowPriority(m *Merger, ins *ssa.Instr) {
	if ins.Kind != ssa.InstrAssign || ins.Assign.Src.Kind != ssa.ValueVar {
		return
	}
	if !m.Allows(DirectiveCopy) {
		return
	}
	m.TryMerge(ins.Assign.Out, ins.Assign.Src.Name)
}
