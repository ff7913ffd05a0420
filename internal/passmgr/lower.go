package passmgr

import (
	"context"
	"strconv"
	"strings"

	"tlog.app/go/errors"

	"matisse/internal/alloc"
	"matisse/internal/cfg"
	"matisse/internal/cssa"
	"matisse/internal/diag"
	"matisse/internal/liveness"
	"matisse/internal/observ"
	"matisse/internal/ssa"
	"matisse/internal/trace"
)

// Options configures Lower. The zero value lowers with the efficient
// allocator, priority strategy and type-compatible merges.
type Options struct {
	// Recipe runs before validation.
	Recipe Recipe
	// Allocator defaults to an alloc.Efficient.
	Allocator alloc.Allocator
	// Policy builds the merge policy for a body; nil means alloc.SameType.
	Policy func(body *ssa.Body) alloc.MergePolicy
	// Namer names CSSA temporaries; nil means cssa.DefaultNamer.
	Namer cssa.Namer
	// SkipCSSA lowers bodies that are already conventional.
	SkipCSSA bool
}

// Lowered is a body ready for C emission together with the analyses that
// produced its allocation.
type Lowered struct {
	Body       *ssa.Body
	Graph      *cfg.Graph
	Liveness   *liveness.Info
	Allocation *alloc.Allocation
	CSSA       cssa.Result
	Timings    observ.Report
}

// liveAllocator is implemented by allocators that can reuse liveness.
type liveAllocator interface {
	AllocateLive(body *ssa.Body, info *liveness.Info, canMerge alloc.MergePolicy) (*alloc.Allocation, error)
}

// Lower runs the full out-of-SSA pipeline on body, mutating it. Broken
// invariants come back as diag.InternalError.
func Lower(ctx context.Context, body *ssa.Body, opts Options) (_ *Lowered, err error) {
	fspan, ctx := trace.Start(ctx, trace.ScopeModule, "function:"+body.Name)
	defer func() {
		if err != nil {
			fspan.End(err.Error())
			return
		}
		fspan.End("")
	}()

	timer := observ.NewTimer()
	stage := func(name string, fn func(context.Context) error) error {
		idx := timer.Begin(name)
		span, sctx := trace.Start(ctx, trace.ScopePass, name)
		err := fn(sctx)
		if err != nil {
			span.End(err.Error())
			timer.End(idx, "failed")
			return errors.Wrap(err, "%s: %s", body.Name, name)
		}
		span.End("")
		timer.End(idx, "")
		return nil
	}

	out := &Lowered{Body: body}

	if len(opts.Recipe) > 0 {
		if err := stage("recipe", func(c context.Context) error { return opts.Recipe.Apply(c, body) }); err != nil {
			return nil, err
		}
	}
	if err := stage("validate", func(c context.Context) error { return ValidatePass{}.Apply(c, body) }); err != nil {
		return nil, err
	}
	if !opts.SkipCSSA {
		pass := &CSSAPass{Namer: opts.Namer}
		if err := stage("cssa", func(c context.Context) error { return pass.Apply(c, body) }); err != nil {
			return nil, err
		}
		out.CSSA = pass.Result
	}
	if err := stage("cfg", func(context.Context) error {
		out.Graph = cfg.Build(body)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := stage("liveness", func(context.Context) error {
		out.Liveness = liveness.Analyze(body, out.Graph)
		if undef := out.Liveness.UndefinedAtEntry(); len(undef) > 0 {
			return diag.Internal("%s: %s used before any definition", body.Name, strings.Join(undef, ", "))
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if err := stage("allocation", func(c context.Context) error {
		a, err := allocate(c, body, out.Liveness, opts)
		out.Allocation = a
		return err
	}); err != nil {
		return nil, err
	}

	out.Timings = timer.Report()
	fspan.WithExtra("groups", strconv.Itoa(out.Allocation.NumGroups()))
	return out, nil
}

func allocate(ctx context.Context, body *ssa.Body, info *liveness.Info, opts Options) (*alloc.Allocation, error) {
	policy := alloc.SameType(body)
	if opts.Policy != nil {
		policy = opts.Policy(body)
	}
	allocator := opts.Allocator
	if allocator == nil {
		allocator = &alloc.Efficient{Tracer: trace.FromContext(ctx)}
	}
	if la, ok := allocator.(liveAllocator); ok {
		return la.AllocateLive(body, info, policy)
	}
	return allocator.Allocate(body, policy)
}
