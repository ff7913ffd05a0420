package passmgr

import (
	"context"
	stderrors "errors"
	"runtime"

	"golang.org/x/sync/errgroup"

	"matisse/internal/diag"
	"matisse/internal/source"
	"matisse/internal/ssa"
	"matisse/internal/trace"
)

// Specializer produces the SSA body of a function specialized for the
// argument types in key. It is provided by type inference. Failures should
// be reported as diag.Diagnostic values.
type Specializer interface {
	Specialize(ctx context.Context, key SpecKey) (*ssa.Body, error)
}

// SpecializerFunc adapts a function to Specializer.
type SpecializerFunc func(ctx context.Context, key SpecKey) (*ssa.Body, error)

func (f SpecializerFunc) Specialize(ctx context.Context, key SpecKey) (*ssa.Body, error) {
	return f(ctx, key)
}

// Manager lowers functions, memoizing specializations in Cache.
type Manager struct {
	Specializer Specializer
	// Cache may be nil.
	Cache   Cache
	Options Options
	// Jobs bounds LowerAll parallelism; zero means GOMAXPROCS.
	Jobs int
}

func NewManager(spec Specializer, cache Cache, opts Options) *Manager {
	return &Manager{Specializer: spec, Cache: cache, Options: opts}
}

// Specialize returns the lowered specialization for key, producing and
// lowering it on a cache miss. A specializer failure is returned as a
// diag.Diagnostic; lowering failures keep their internal error.
func (m *Manager) Specialize(ctx context.Context, key SpecKey) (*Lowered, error) {
	if m.Cache != nil {
		if l, ok := m.Cache.Lookup(key); ok {
			return l, nil
		}
	}
	if m.Specializer == nil {
		return nil, diag.NewError(diag.SpecNoMatch, source.Span{}, "no specializer for "+key.String())
	}
	body, err := m.Specializer.Specialize(ctx, key)
	if err != nil {
		var d diag.Diagnostic
		if stderrors.As(err, &d) {
			return nil, d
		}
		return nil, diag.NewError(diag.SpecNoMatch, source.Span{}, key.String()+": "+err.Error())
	}
	if body == nil {
		return nil, diag.NewError(diag.SpecNoMatch, source.Span{}, "no specialization of "+key.String())
	}
	l, err := Lower(ctx, body, m.Options)
	if err != nil {
		if diag.IsInternal(err) {
			return nil, err
		}
		return nil, diag.NewError(diag.SpecAllocationFailed, body.Span, err.Error())
	}
	if m.Cache != nil {
		m.Cache.Insert(key, l)
	}
	return l, nil
}

// Job is one function to lower. A nil Body is produced by the Specializer.
type Job struct {
	Key  SpecKey
	Body *ssa.Body
}

// Result is the outcome of one Job. Err is per function: one failing
// function does not stop the others.
type Result struct {
	Key     SpecKey
	Lowered *Lowered
	Err     error
}

// LowerAll lowers jobs in parallel. The returned error is non-nil only when
// ctx is cancelled; cancellation is noticed between functions.
func (m *Manager) LowerAll(ctx context.Context, jobs []Job) ([]Result, error) {
	span, ctx := trace.Start(ctx, trace.ScopeDriver, "lower_all")
	defer span.End("")

	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results, nil
	}
	limit := m.Jobs
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(limit, len(jobs)))
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = m.lowerJob(gctx, job)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (m *Manager) lowerJob(ctx context.Context, job Job) Result {
	res := Result{Key: job.Key}
	if job.Body == nil {
		res.Lowered, res.Err = m.Specialize(ctx, job.Key)
		return res
	}
	if m.Cache != nil {
		if l, ok := m.Cache.Lookup(job.Key); ok {
			res.Lowered = l
			return res
		}
	}
	res.Lowered, res.Err = Lower(ctx, job.Body, m.Options)
	if res.Err == nil && m.Cache != nil {
		m.Cache.Insert(job.Key, res.Lowered)
	}
	return res
}
