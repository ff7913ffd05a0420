package alloc

import (
	"matisse/internal/diag"
	"matisse/internal/ssa"
)

// Dummy builds only the mandatory groups: a by-reference argument with its
// $ret alias, and every phi with all of its inputs. Other names stay alone.
// Mandatory groups are not subject to the MergePolicy.
type Dummy struct{}

func (Dummy) Allocate(body *ssa.Body, _ MergePolicy) (*Allocation, error) {
	a := newAllocation()
	for _, name := range body.Names() {
		a.add(name)
	}
	claimed := make(map[string]struct{})

	var err error
	body.ForEach(func(b ssa.BlockID, i int, ins *ssa.Instr) {
		if err != nil {
			return
		}
		switch ins.Kind {
		case ssa.InstrArgument:
			out := ins.Argument.Out
			if !body.IsByRef(out) {
				return
			}
			alias := ssa.ReturnAlias(out)
			if alias == "" || alias == out {
				return
			}
			err = a.mandatory(claimed, body, b, i, []string{out, alias})
		case ssa.InstrPhi:
			group := append([]string{ins.Phi.Out}, ins.Phi.Ins...)
			err = a.mandatory(claimed, body, b, i, group)
		default:
		}
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// mandatory joins names into one group. Touching two groups that earlier
// mandatory constraints built means the body is not in conventional SSA.
func (a *Allocation) mandatory(claimed map[string]struct{}, body *ssa.Body, b ssa.BlockID, i int, names []string) error {
	var owner string
	for _, name := range names {
		if _, ok := claimed[name]; !ok {
			continue
		}
		switch {
		case owner == "":
			owner = name
		case !a.Same(owner, name):
			return diag.Internal("%s: block #%d instruction %d joins %s and %s, which already belong to different groups",
				body.Name, b, i, owner, name)
		}
	}
	for _, name := range names[1:] {
		if !a.Same(names[0], name) {
			a.Merge(names[0], name)
		}
	}
	for _, name := range names {
		claimed[name] = struct{}{}
	}
	return nil
}
