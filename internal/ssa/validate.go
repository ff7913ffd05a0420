package ssa

import (
	"errors"

	"matisse/internal/diag"
)

// Validate checks the structural invariants every pass relies on. Each
// violation is reported as a diag.InternalError; all of them are joined.
func Validate(body *Body) error {
	if body == nil {
		return nil
	}
	var errs []error
	if len(body.Blocks) == 0 {
		errs = append(errs, diag.Internal("%s: function has no blocks", body.Name))
	}
	errs = append(errs, validateShape(body)...)
	errs = append(errs, validateDefinitions(body)...)
	return errors.Join(errs...)
}

// validateShape checks control placement, block targets and phi arity.
func validateShape(body *Body) []error {
	var errs []error
	for bi := range body.Blocks {
		blk := &body.Blocks[bi]
		phis := true
		for ii := range blk.Instrs {
			ins := &blk.Instrs[ii]
			if ins.IsControl() && ii != len(blk.Instrs)-1 {
				errs = append(errs, diag.Internal("%s: #%d:%d: %s is not the last instruction of its block",
					body.Name, bi, ii, ins.Kind))
			}
			for _, t := range ins.Targets() {
				if !body.HasBlock(t) {
					errs = append(errs, diag.Internal("%s: #%d:%d: %s targets missing block #%d",
						body.Name, bi, ii, ins.Kind, t))
				}
			}
			switch ins.Kind {
			case InstrPhi:
				if !phis {
					errs = append(errs, diag.Internal("%s: #%d:%d: phi %s after a non-phi instruction",
						body.Name, bi, ii, ins.Phi.Out))
				}
				if len(ins.Phi.Ins) != len(ins.Phi.Preds) {
					errs = append(errs, diag.Internal("%s: #%d:%d: phi %s has %d inputs but %d predecessors",
						body.Name, bi, ii, ins.Phi.Out, len(ins.Phi.Ins), len(ins.Phi.Preds)))
				}
				for _, p := range ins.Phi.Preds {
					if !body.HasBlock(p) {
						errs = append(errs, diag.Internal("%s: #%d:%d: phi %s names missing block #%d",
							body.Name, bi, ii, ins.Phi.Out, p))
					}
				}
			case InstrLine, InstrComment:
			default:
				phis = false
			}
			if ins.Kind == InstrTypedCall && ins.Call.Type == nil {
				errs = append(errs, diag.Internal("%s: #%d:%d: typed call to %s has no function type",
					body.Name, bi, ii, ins.Call.Func))
			}
			if ins.Kind == InstrParallelCopy && len(ins.ParallelCopy.Ins) != len(ins.ParallelCopy.Outs) {
				errs = append(errs, diag.Internal("%s: #%d:%d: parallel copy arity mismatch", body.Name, bi, ii))
			}
		}
	}
	return errs
}

// validateDefinitions checks single static assignment. Argument outputs are
// exempt.
func validateDefinitions(body *Body) []error {
	var errs []error
	defined := make(map[string]BlockID)
	body.ForEach(func(bi BlockID, ii int, ins *Instr) {
		if ins.Kind == InstrArgument {
			return
		}
		for _, out := range ins.Outputs() {
			if out == "" {
				errs = append(errs, diag.Internal("%s: #%d:%d: %s defines an empty name", body.Name, bi, ii, ins.Kind))
				continue
			}
			if IsGlobal(out) {
				errs = append(errs, diag.Internal("%s: #%d:%d: global %s defined as a local", body.Name, bi, ii, out))
				continue
			}
			if prev, dup := defined[out]; dup {
				errs = append(errs, diag.Internal("%s: #%d:%d: %s already defined in block #%d",
					body.Name, bi, ii, out, prev))
				continue
			}
			defined[out] = bi
		}
	})
	return errs
}
