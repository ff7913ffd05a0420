package cfg_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"matisse/internal/cfg"
	"matisse/internal/ssa"
)

func ids(v ...ssa.BlockID) []ssa.BlockID { return v }

func TestBranchJoin(t *testing.T) {
	body := ssa.MustParseOne(`
function f
block #0:
  c$1 = arg 0
  branch c$1, #1, #2, #3
block #1:
  x$1 = 1
block #2:
block #3:
  y$1 = phi #1:x$1, #2:c$1
`)
	g := cfg.Build(body)
	assert.Equal(t, 4, g.NumBlocks())
	assert.Equal(t, ids(1, 2), g.Succs(0))
	assert.Equal(t, ids(3), g.Succs(1))
	assert.Equal(t, ids(3), g.Succs(2), "empty arm falls through to the join")
	assert.ElementsMatch(t, ids(1, 2), g.Preds(3))
	assert.Empty(t, g.Succs(3))
	assert.Equal(t, ids(3), g.Exits())
}

func TestForLoop(t *testing.T) {
	body := ssa.MustParseOne(`
function f
block #0:
  n$1 = arg 0
  one$1 = 1
  for one$1, one$1, n$1, #1, #2
block #1:
  $i$1 = iter
block #2:
`)
	g := cfg.Build(body)
	assert.Equal(t, ids(1, 2), g.Succs(0))
	assert.Equal(t, ids(1, 2), g.Succs(1), "body loops back and may exit")
	assert.ElementsMatch(t, ids(0, 1), g.Preds(1))
	assert.ElementsMatch(t, ids(0, 1), g.Preds(2))
	assert.True(t, g.HasEdge(1, 1))
	assert.Equal(t, ids(2), g.Exits())
}

const nested = `
function f
block #0:
  n$1 = arg 0
  for n$1, n$1, n$1, #1, #5
block #1:
  branch n$1, #2, #3, #4
block #2:
block #3:
  break
block #4:
block #5:
`

func TestNestedBranchInLoop(t *testing.T) {
	g := cfg.Build(ssa.MustParseOne(nested))
	assert.Equal(t, ids(1, 5), g.Succs(0))
	assert.Equal(t, ids(2, 3), g.Succs(1))
	assert.Equal(t, ids(4), g.Succs(2))
	assert.Equal(t, ids(5), g.Succs(3), "break leaves the loop")
	assert.Equal(t, ids(1, 5), g.Succs(4), "join inside the loop continues with the loop")
	assert.Empty(t, g.Succs(5))
	assert.ElementsMatch(t, ids(0, 4), g.Preds(1))
	assert.ElementsMatch(t, ids(0, 3, 4), g.Preds(5))
}

func TestWhileBreakContinue(t *testing.T) {
	body := ssa.MustParseOne(`
function f
block #0:
  c$1 = arg 0
  while #1, #4
block #1:
  branch c$1, #2, #3, #5
block #2:
  break
block #3:
  continue
block #4:
block #5:
`)
	g := cfg.Build(body)
	assert.Equal(t, ids(1), g.Succs(0), "while(1) has no direct exit edge")
	assert.Equal(t, ids(4), g.Succs(2))
	assert.Equal(t, ids(1), g.Succs(3))
	assert.ElementsMatch(t, ids(0, 3), g.Preds(1))
	assert.False(t, g.Reachable(5), "both arms jump away, the join is dead")
	assert.Empty(t, g.Preds(5))
	assert.Equal(t, ids(4), g.Exits())
}

func TestNestedLoopsBreakInnermost(t *testing.T) {
	body := ssa.MustParseOne(`
function f
block #0:
  while #1, #4
block #1:
  while #2, #3
block #2:
  break
block #3:
block #4:
`)
	g := cfg.Build(body)
	assert.Equal(t, ids(2), g.Succs(1))
	assert.Equal(t, ids(3), g.Succs(2))
	assert.Equal(t, ids(1), g.Succs(3), "inner exit falls back to the outer head")
	assert.False(t, g.Reachable(4))
	assert.Empty(t, g.Exits())
}

func TestEmptyAndUnreachable(t *testing.T) {
	g := cfg.Build(ssa.NewBody("empty"))
	assert.Equal(t, 0, g.NumBlocks())
	assert.Empty(t, g.Exits())

	body := ssa.MustParseOne(`
function f
block #0:
block #1:
  x$1 = 1
`)
	g = cfg.Build(body)
	assert.True(t, g.Reachable(0))
	assert.False(t, g.Reachable(1), "no implicit fallthrough at the top level")
	assert.Equal(t, ids(0), g.Exits())
}

func TestBlockEnd(t *testing.T) {
	body := ssa.MustParseOne(nested)
	assert.Equal(t, ssa.BlockID(5), cfg.BlockEnd(body, 0))
	assert.Equal(t, ssa.BlockID(4), cfg.BlockEnd(body, 1))
	assert.Equal(t, ssa.BlockID(3), cfg.BlockEnd(body, 3))
}
