package interference_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matisse/internal/cfg"
	"matisse/internal/interference"
	"matisse/internal/liveness"
	"matisse/internal/ssa"
)

func build(t *testing.T, text string) (*ssa.Body, *liveness.Info, *interference.Graph) {
	t.Helper()
	body := ssa.MustParseOne(text)
	require.NoError(t, ssa.Validate(body))
	info := liveness.Analyze(body, cfg.Build(body))
	return body, info, interference.Build(body, info)
}

const loopBody = `
function scale
block #0:
  A$1 = arg 0
  n$1 = arg 1
  one$1 = 1
  for one$1, one$1, n$1, #1, #2
block #1:
  A$2 = phi #0:A$1, #1:A$3
  $i$1 = iter
  A$3 = set A$2, $i$1 <- one$1
block #2:
  B$ret = untyped foo A$1
`

func TestLoopCarriedInterference(t *testing.T) {
	_, _, g := build(t, loopBody)
	assert.True(t, g.HasInterference("A$1", "A$3"))
	assert.True(t, g.HasInterference("A$3", "A$1"))
	assert.True(t, g.HasInterference("A$1", "A$2"))
	assert.False(t, g.HasInterference("A$2", "A$3"), "A$2 dies where A$3 is born")
	assert.True(t, g.HasInterference("$i$1", "A$3"))
	assert.False(t, g.HasInterference("A$1", "nope"))
}

func TestSymmetric(t *testing.T) {
	_, info, g := build(t, loopBody)
	names := info.Names()
	for _, a := range names {
		assert.False(t, g.HasInterference(a, a))
		for _, b := range names {
			assert.Equal(t, g.HasInterference(a, b), g.HasInterference(b, a), "%s %s", a, b)
		}
	}
}

func TestMergeGroupContracts(t *testing.T) {
	_, _, g := build(t, loopBody)
	before := g.EdgeCount()
	groups := g.Groups()

	g.MergeGroup([]string{"A$2", "A$3"}, "A$2")
	assert.Equal(t, "A$2", g.Representative("A$3"))
	assert.Equal(t, "A$2", g.Representative("A$2"))
	assert.Equal(t, groups-1, g.Groups())
	assert.False(t, g.HasInterference("A$2", "A$3"))
	assert.True(t, g.HasInterference("A$1", "A$2"))
	assert.True(t, g.HasInterference("A$3", "A$1"), "queries go through the representative")
	assert.Less(t, g.EdgeCount(), before)

	assert.Contains(t, g.Neighbors("A$3"), "A$1")
	assert.NotContains(t, g.Neighbors("A$3"), "A$2")
}

func TestMergeChainsUnion(t *testing.T) {
	_, _, g := build(t, `
function f
block #0:
  a$1 = 1
  b$1 = a$1
  c$1 = b$1
  d$1 = 2
  r$ret = c$1
`)
	assert.False(t, g.HasInterference("a$1", "c$1"))
	assert.True(t, g.HasInterference("c$1", "d$1"))

	g.MergeGroup([]string{"a$1", "b$1"}, "a$1")
	g.MergeGroup([]string{"b$1", "c$1"}, "b$1")
	assert.Equal(t, "b$1", g.Representative("a$1"))
	assert.True(t, g.HasInterference("a$1", "d$1"), "adjacency of c$1 now belongs to the group")
}

func TestUntypedCallOperandsInterfere(t *testing.T) {
	_, _, g := build(t, `
function f
block #0:
  A$1 = arg 0
  B$ret = untyped foo A$1
`)
	assert.True(t, g.HasInterference("A$1", "B$ret"))
}

func TestTypedCallRepeatedByRefInput(t *testing.T) {
	_, _, g := build(t, `
function f
block #0:
  x$1 = arg 0
  y$1 = call g {a&, b -> a} x$1, x$1
  r$ret = y$1
`)
	assert.True(t, g.HasInterference("x$1", "y$1"))

	_, _, g = build(t, `
function f
block #0:
  x$1 = arg 0
  y$1 = call g {a, b} x$1, x$1
  r$ret = y$1
`)
	assert.False(t, g.HasInterference("x$1", "y$1"))
}

func TestDeadDefinitionStillInterferes(t *testing.T) {
	_, _, g := build(t, `
function f
block #0:
  a$1 = 1
  dead$1 = 2
  r$ret = a$1
`)
	assert.True(t, g.HasInterference("a$1", "dead$1"))
}

func TestMergeUnknownNamesAddsNodes(t *testing.T) {
	_, _, g := build(t, loopBody)
	g.MergeGroup([]string{"fresh"}, "A$2")
	assert.Equal(t, "A$2", g.Representative("fresh"))
	assert.True(t, g.HasInterference("fresh", "A$1"))
}
