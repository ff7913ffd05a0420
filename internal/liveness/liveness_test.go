package liveness_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matisse/internal/cfg"
	"matisse/internal/liveness"
	"matisse/internal/ssa"
)

func analyze(t *testing.T, text string) (*ssa.Body, *cfg.Graph, *liveness.Info) {
	t.Helper()
	body := ssa.MustParseOne(text)
	require.NoError(t, ssa.Validate(body))
	g := cfg.Build(body)
	return body, g, liveness.Analyze(body, g)
}

const loopBody = `
function scale
args: A, n
outs: B
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

func TestGlobalReadBeforeWrite(t *testing.T) {
	_, _, info := analyze(t, `
function f
block #0:
  a$1 = read_global ^a
  v$1 = 2
  write_global ^a, v$1
  a$2 = read_global ^a
  r$ret = a$2
`)
	assert.True(t, info.IsLiveAtEntry("^a", 0, 0), "read before any write")
	assert.False(t, info.IsLiveAtEntry("^a", 0, 2), "the write kills the old value")
	assert.True(t, info.IsLiveAtExit("^a", 0, 2), "read again after the write")
	assert.True(t, info.IsLiveAtExit("^a", 0, 4), "globals are written back at exit")
	assert.Empty(t, info.UndefinedAtEntry())
}

func TestGlobalConditionallyOverwritten(t *testing.T) {
	_, _, info := analyze(t, `
function f
block #0:
  a$1 = read_global ^a
  c$1 = a$1
  branch c$1, #1, #2, #3
block #1:
  v$1 = 2
  write_global ^a, v$1
block #2:
block #3:
  a$2 = read_global ^a
  r$ret = a$2
`)
	assert.True(t, info.IsLiveAtEntry("^a", 0, 0))
	assert.True(t, info.IsLiveAtExit("^a", 0, 2), "the untouched arm still needs the old value")
	assert.False(t, info.IsLiveAtEntry("^a", 1, 0))
	assert.True(t, info.IsLiveAtExit("^a", 1, 1))
	assert.Contains(t, info.LiveIn(2), "^a")
}

func TestGlobalWrittenOnlyIsNotLiveAtEntry(t *testing.T) {
	_, _, info := analyze(t, `
function f
block #0:
  v$1 = 2
  write_global ^a, v$1
`)
	assert.False(t, info.IsLiveAtEntry("^a", 0, 0))
	assert.True(t, info.IsLiveAtExit("^a", 0, 1))
}

func TestPhiInputsLiveOnEdgeOnly(t *testing.T) {
	_, _, info := analyze(t, `
function f
block #0:
  c$1 = arg 0
  branch c$1, #1, #2, #3
block #1:
  x$1 = 1
block #2:
  z$1 = 2
block #3:
  y$ret = phi #1:x$1, #2:z$1
`)
	assert.Contains(t, info.LiveOut(1), "x$1")
	assert.NotContains(t, info.LiveOut(1), "z$1")
	assert.Contains(t, info.LiveOut(2), "z$1")
	assert.NotContains(t, info.LiveIn(3), "x$1")
	assert.NotContains(t, info.LiveIn(3), "z$1")
	assert.False(t, info.IsLiveAtEntry("x$1", 3, 0))
}

func TestLoopPhiAndBackEdge(t *testing.T) {
	_, _, info := analyze(t, loopBody)

	// phi output live at entry of its block requires each input live at
	// the exit of the matching predecessor
	assert.True(t, info.IsLiveAtExit("A$1", 0, 3))
	assert.True(t, info.IsLiveAtExit("A$3", 1, 2))
	assert.NotContains(t, info.LiveIn(1), "A$3")

	assert.True(t, info.IsLiveAtExit("A$1", 1, 2), "A$1 is read after the loop")
	assert.True(t, info.IsLiveAtEntry("A$2", 1, 2))
	assert.False(t, info.IsLiveAtExit("A$2", 1, 2))
	assert.Empty(t, info.UndefinedAtEntry())
}

func TestLoopReadsBoundsAndIterator(t *testing.T) {
	_, _, info := analyze(t, `
function f
block #0:
  n$1 = arg 0
  one$1 = 1
  for one$1, one$1, n$1, #1, #5
block #1:
  $i$1 = iter
  branch $i$1, #2, #3, #4
block #2:
block #3:
block #4:
  x$1 = 3
block #5:
`)
	assert.True(t, info.IsLiveAtExit("$i$1", 4, 0), "iterator lives to the end of the body")
	assert.True(t, info.IsLiveAtExit("n$1", 4, 0), "stop bound is re-read every iteration")
	assert.Contains(t, info.LiveIn(2), "$i$1")
	assert.NotContains(t, info.LiveIn(1), "$i$1", "defined by iter after the loop head")
	assert.NotContains(t, info.LiveIn(5), "n$1")
}

func TestReturnValuesLiveAtExit(t *testing.T) {
	_, _, info := analyze(t, `
function f
outs: A
block #0:
  A$ret = 1
  t$1 = 2
  u$1 = t$1
`)
	assert.True(t, info.IsLiveAtExit("A$ret", 0, 0))
	assert.True(t, info.IsLiveAtExit("A$ret", 0, 2))
	assert.False(t, info.IsLiveAtEntry("A$ret", 0, 0))
	assert.False(t, info.IsLiveAtExit("u$1", 0, 2))
}

func TestUndefinedLocalAtEntry(t *testing.T) {
	_, _, info := analyze(t, `
function f
block #0:
  y$1 = x$1
  g$1 = read_global ^g
  r$ret = y$1
`)
	assert.Equal(t, []string{"x$1"}, info.UndefinedAtEntry())
}

func TestUnknownQueriesAreNeverLive(t *testing.T) {
	_, _, info := analyze(t, loopBody)
	assert.False(t, info.IsLiveAtEntry("nope", 0, 0))
	assert.False(t, info.IsLiveAtExit("A$1", 7, 0))
	assert.False(t, info.IsLiveAtExit("A$1", 0, 99))
	assert.Nil(t, info.EntrySet(0, -1))
}

func TestSuccessorConsistency(t *testing.T) {
	for _, text := range []string{loopBody, `
function f
block #0:
  c$1 = arg 0
  while #1, #4
block #1:
  branch c$1, #2, #3, #5
block #2:
  break
block #3:
  d$1 = c$1
  continue
block #4:
  r$ret = c$1
block #5:
`} {
		body, g, info := analyze(t, text)
		for b := range body.Blocks {
			id := ssa.BlockID(b)
			n := len(body.Blocks[b].Instrs)
			for i := 0; i+1 < n; i++ {
				assert.Equal(t, info.LiveAtExit(id, i), info.LiveAtEntry(id, i+1), "block %d instr %d", b, i)
			}
			out := info.LiveOut(id)
			if n > 0 {
				assert.Equal(t, out, info.LiveAtExit(id, n-1))
			}
			for _, s := range g.Succs(id) {
				for _, name := range info.LiveIn(s) {
					assert.Contains(t, out, name, "edge %d -> %d", b, s)
				}
			}
		}
	}
}
