package testkit

import (
	"fmt"

	"matisse/internal/alloc"
	"matisse/internal/interference"
	"matisse/internal/ssa"
)

// CheckAllocation runs the invariants every allocator must keep on body:
// 1) every name of body belongs to some group
// 2) no two members of a group interfere in g
// 3) a phi and all of its operands share one group
//
// g must be built from the same body the allocation was computed on.
func CheckAllocation(body *ssa.Body, a *alloc.Allocation, g *interference.Graph) error {
	if body == nil || a == nil {
		return fmt.Errorf("nil body or allocation")
	}

	for _, name := range body.Names() {
		if !a.Has(name) {
			return fmt.Errorf("%s: %s has no variable", body.Name, name)
		}
	}

	if g != nil {
		for _, group := range a.Groups() {
			for i := range group {
				for j := i + 1; j < len(group); j++ {
					if g.HasInterference(group[i], group[j]) {
						return fmt.Errorf("%s: %s and %s share a variable but interfere", body.Name, group[i], group[j])
					}
				}
			}
		}
	}

	for bi := range body.Blocks {
		for _, ins := range body.Blocks[bi].Instrs {
			if ins.Kind != ssa.InstrPhi {
				continue
			}
			for _, in := range ins.Phi.Ins {
				if !a.Same(ins.Phi.Out, in) {
					return fmt.Errorf("%s: phi %s and operand %s are in different variables", body.Name, ins.Phi.Out, in)
				}
			}
		}
	}
	return nil
}
