package passmgr_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matisse/internal/alloc"
	"matisse/internal/diag"
	"matisse/internal/interference"
	"matisse/internal/passmgr"
	"matisse/internal/source"
	"matisse/internal/ssa"
	"matisse/internal/testkit"
	"matisse/internal/trace"
)

const scale = `
function scale
block #0:
  line 3
  A$1 = arg 0
  n$1 = arg 1
  one$1 = 1
  for one$1, one$1, n$1, #1, #2
block #1:
  A$2 = phi #0:A$1, #1:A$3
  % update
  $i$1 = iter
  A$3 = set A$2, $i$1 <- one$1
block #2:
  A$4 = phi #0:A$1, #1:A$3
  A$ret = A$4
`

func TestLowerRunsWholePipeline(t *testing.T) {
	ring := trace.NewRingTracer(256, trace.LevelDetail)
	ctx := trace.WithTracer(context.Background(), ring)
	body := ssa.MustParseOne(scale)

	l, err := passmgr.Lower(ctx, body, passmgr.Options{
		Recipe: passmgr.Recipe{passmgr.LineEliminationPass{}},
	})
	require.NoError(t, err)
	require.NoError(t, testkit.CheckAllocation(l.Body, l.Allocation, interference.Build(l.Body, l.Liveness)))
	assert.Equal(t, 2, l.CSSA.Phis)
	assert.Equal(t, 4, l.CSSA.Copies)
	assert.True(t, l.Graph.HasEdge(1, 1))
	assert.Empty(t, l.Liveness.UndefinedAtEntry())
	assert.True(t, l.Allocation.Same("A$2", "A$3"))
	assert.True(t, l.Allocation.Same("A$4", "A$ret"))
	assert.False(t, l.Allocation.Same("A$2", "A$4"), "the loop and exit phis are fed by the same parallel copies")

	for bi := range body.Blocks {
		for _, ins := range body.Blocks[bi].Instrs {
			assert.NotEqual(t, ssa.InstrLine, ins.Kind)
			assert.NotEqual(t, ssa.InstrComment, ins.Kind)
		}
	}

	var stages []string
	for _, ev := range ring.Snapshot() {
		if ev.Kind == trace.KindSpanEnd && ev.Scope == trace.ScopePass {
			stages = append(stages, ev.Name)
		}
	}
	assert.Equal(t, []string{"line_elimination", "recipe", "validate", "cssa", "cfg", "liveness", "allocation"}, stages)

	var phases []string
	for _, p := range l.Timings.Phases {
		phases = append(phases, p.Name)
	}
	assert.Equal(t, []string{"recipe", "validate", "cssa", "cfg", "liveness", "allocation"}, phases)
}

func TestLowerReportsInvalidSSA(t *testing.T) {
	body := ssa.MustParseOne(`
function dup
block #0:
  a$1 = 1
  a$1 = 2
`)
	_, err := passmgr.Lower(context.Background(), body, passmgr.Options{})
	require.Error(t, err)
	assert.True(t, diag.IsInternal(err))
	assert.ErrorContains(t, err, "validate")
}

func TestLowerReportsUndefinedLocals(t *testing.T) {
	body := ssa.MustParseOne(`
function undef
block #0:
  b$ret = a$1
`)
	_, err := passmgr.Lower(context.Background(), body, passmgr.Options{})
	require.Error(t, err)
	assert.True(t, diag.IsInternal(err))
	assert.ErrorContains(t, err, "a$1 used before any definition")
}

func TestRecipeStopsAtFirstError(t *testing.T) {
	var ran []string
	pass := func(name string, fail bool) passmgr.Pass {
		return passmgr.PassFunc{PassName: name, Fn: func(context.Context, *ssa.Body) error {
			ran = append(ran, name)
			if fail {
				return errors.New("boom")
			}
			return nil
		}}
	}
	r := passmgr.Recipe{pass("a", false), pass("b", true), pass("c", false)}
	err := r.Apply(context.Background(), ssa.NewBody("f"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "pass b")
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, []string{"a", "b"}, ran)
}

func TestCustomAllocatorAndPolicy(t *testing.T) {
	body := ssa.MustParseOne(scale)
	l, err := passmgr.Lower(context.Background(), body, passmgr.Options{
		Allocator: alloc.Dummy{},
		Policy:    func(*ssa.Body) alloc.MergePolicy { return alloc.AllowAll },
	})
	require.NoError(t, err)
	assert.False(t, l.Allocation.Same("A$2", "A$3"))
}

func TestMemoryCache(t *testing.T) {
	c := passmgr.NewMemoryCache()
	key := passmgr.SpecKey{Function: "f", Signature: "double"}
	_, ok := c.Lookup(key)
	assert.False(t, ok)

	first := &passmgr.Lowered{}
	c.Insert(key, first)
	c.Insert(key, &passmgr.Lowered{})
	got, ok := c.Lookup(key)
	require.True(t, ok)
	assert.Same(t, first, got)
	assert.Equal(t, 1, c.Len())

	hits, misses := c.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
	assert.Equal(t, "f(double)", key.String())
}

func TestSpecializeMemoizes(t *testing.T) {
	var calls atomic.Int32
	spec := passmgr.SpecializerFunc(func(_ context.Context, key passmgr.SpecKey) (*ssa.Body, error) {
		calls.Add(1)
		if key.Signature != "double" {
			return nil, diag.NewError(diag.SpecNoMatch, source.Span{}, "no "+key.Function+" for "+key.Signature)
		}
		return ssa.MustParseOne(scale), nil
	})
	m := passmgr.NewManager(spec, passmgr.NewMemoryCache(), passmgr.Options{})

	key := passmgr.SpecKey{Function: "scale", Signature: "double"}
	a, err := m.Specialize(context.Background(), key)
	require.NoError(t, err)
	b, err := m.Specialize(context.Background(), key)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.EqualValues(t, 1, calls.Load())

	_, err = m.Specialize(context.Background(), passmgr.SpecKey{Function: "scale", Signature: "char"})
	var d diag.Diagnostic
	require.ErrorAs(t, err, &d)
	assert.Equal(t, diag.SpecNoMatch, d.Code)
	assert.Equal(t, "no scale for char", d.Message)
}

func TestSpecializePlainErrorBecomesDiagnostic(t *testing.T) {
	m := passmgr.NewManager(passmgr.SpecializerFunc(func(context.Context, passmgr.SpecKey) (*ssa.Body, error) {
		return nil, errors.New("types unknown")
	}), nil, passmgr.Options{})
	_, err := m.Specialize(context.Background(), passmgr.SpecKey{Function: "g"})
	var d diag.Diagnostic
	require.ErrorAs(t, err, &d)
	assert.Equal(t, diag.SpecNoMatch, d.Code)
	assert.Contains(t, d.Message, "types unknown")
}

func TestLowerAllIsolatesFailures(t *testing.T) {
	var jobs []passmgr.Job
	for i := range 8 {
		text := scale
		if i%3 == 0 {
			text = `
function broken
block #0:
  b$ret = a$1
`
		}
		jobs = append(jobs, passmgr.Job{
			Key:  passmgr.SpecKey{Function: fmt.Sprintf("f%d", i)},
			Body: ssa.MustParseOne(text),
		})
	}
	m := &passmgr.Manager{Jobs: 3}
	results, err := m.LowerAll(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, results, len(jobs))
	for i, r := range results {
		assert.Equal(t, jobs[i].Key, r.Key)
		if i%3 == 0 {
			assert.True(t, diag.IsInternal(r.Err), "job %d", i)
			assert.Nil(t, r.Lowered)
			continue
		}
		require.NoError(t, r.Err, "job %d", i)
		assert.True(t, r.Lowered.Allocation.Same("A$2", "A$3"))
	}
}

func TestLowerAllHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &passmgr.Manager{}
	_, err := m.LowerAll(ctx, []passmgr.Job{{Body: ssa.MustParseOne(scale)}})
	assert.ErrorIs(t, err, context.Canceled)
}
