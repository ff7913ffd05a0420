package testkit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matisse/internal/alloc"
	"matisse/internal/cfg"
	"matisse/internal/cssa"
	"matisse/internal/interference"
	"matisse/internal/liveness"
	"matisse/internal/ssa"
	"matisse/internal/testkit"
)

const loop = `function scale
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
  A$4 = phi #0:A$1, #1:A$3
  A$ret = A$4
`

func TestCheckAllocationAcceptsEfficient(t *testing.T) {
	body := ssa.MustParseOne(loop)
	_, err := cssa.Convert(body, cssa.DefaultNamer(body))
	require.NoError(t, err)
	info := liveness.Analyze(body, cfg.Build(body))

	a, err := alloc.NewEfficient(alloc.PriorityStrategy{}).AllocateLive(body, info, alloc.AllowAll)
	require.NoError(t, err)
	assert.NoError(t, testkit.CheckAllocation(body, a, interference.Build(body, info)))
}

func TestCheckAllocationReportsMissingName(t *testing.T) {
	body := ssa.MustParseOne(loop)
	_, err := cssa.Convert(body, cssa.DefaultNamer(body))
	require.NoError(t, err)
	a, err := alloc.Dummy{}.Allocate(body, alloc.AllowAll)
	require.NoError(t, err)

	body.Block(2).Add(ssa.Assign("extra$1", "A$4"))
	err = testkit.CheckAllocation(body, a, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extra$1")
}

func TestCheckAllocationNilInputs(t *testing.T) {
	assert.Error(t, testkit.CheckAllocation(nil, nil, nil))
}
