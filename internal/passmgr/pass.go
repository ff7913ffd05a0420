// Package passmgr sequences the lowering of SSA function bodies: caller
// supplied passes, validation, conversion to conventional SSA, liveness and
// variable allocation. It also memoizes specialized functions.
package passmgr

import (
	"context"
	"strconv"

	"tlog.app/go/errors"

	"matisse/internal/cssa"
	"matisse/internal/ssa"
	"matisse/internal/trace"
)

// Pass transforms a body in place.
type Pass interface {
	Name() string
	Apply(ctx context.Context, body *ssa.Body) error
}

// Recipe is an ordered list of passes.
type Recipe []Pass

// Apply runs every pass in order, each in its own span, and stops at the
// first error.
func (r Recipe) Apply(ctx context.Context, body *ssa.Body) error {
	for _, p := range r {
		span, pctx := trace.Start(ctx, trace.ScopePass, p.Name())
		err := p.Apply(pctx, body)
		if err != nil {
			span.End(err.Error())
			return errors.Wrap(err, "pass %s", p.Name())
		}
		span.End("")
	}
	return nil
}

// PassFunc adapts a function to Pass.
type PassFunc struct {
	PassName string
	Fn       func(ctx context.Context, body *ssa.Body) error
}

func (f PassFunc) Name() string { return f.PassName }

func (f PassFunc) Apply(ctx context.Context, body *ssa.Body) error {
	return f.Fn(ctx, body)
}

// ValidatePass rejects bodies that are not well-formed SSA.
type ValidatePass struct{}

func (ValidatePass) Name() string { return "validate" }

func (ValidatePass) Apply(_ context.Context, body *ssa.Body) error {
	return ssa.Validate(body)
}

// CSSAPass converts phis to conventional SSA. The last result is kept for
// reporting.
type CSSAPass struct {
	Namer  cssa.Namer
	Result cssa.Result
}

func (*CSSAPass) Name() string { return "cssa" }

func (p *CSSAPass) Apply(ctx context.Context, body *ssa.Body) error {
	res, err := cssa.Convert(body, p.Namer)
	if err != nil {
		return err
	}
	p.Result = res
	trace.Point(trace.FromContext(ctx), trace.ScopeNode, "cssa",
		body.Name+": "+strconv.Itoa(res.Phis)+" phis, "+strconv.Itoa(res.Copies)+" copies")
	return nil
}

// LineEliminationPass drops line markers and comments.
type LineEliminationPass struct{}

func (LineEliminationPass) Name() string { return "line_elimination" }

func (LineEliminationPass) Apply(_ context.Context, body *ssa.Body) error {
	for bi := range body.Blocks {
		blk := &body.Blocks[bi]
		kept := blk.Instrs[:0]
		for _, ins := range blk.Instrs {
			if ins.Kind == ssa.InstrLine || ins.Kind == ssa.InstrComment {
				continue
			}
			kept = append(kept, ins)
		}
		blk.Instrs = kept
	}
	return nil
}
