package ssa_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matisse/internal/diag"
	"matisse/internal/ssa"
)

const roundTrip = `function update
line: 12
args: A, n
outs: A, B
byref: A
disable: global_merge
type A$1: double[]
origin $t$1: A
block #0:
  A$1 = arg 0
  n$1 = arg 1
  one$1 = 1
  g$1 = read_global ^g
  for one$1, one$1, n$1, #1, #2
block #1:
  A$2 = phi #0:A$1, #1:A$3
  $i$1 = iter
  line 14
  v$1 = get A$2, $i$1
  A$3 = set A$2, $i$1 <- one$1
  $t$1 = simple_set A$3, $i$1 <- v$1
  % keep the write
  e$1 = end A$3, 0, 1
block #2:
  A$4 = phi #0:A$1, #1:A$3
  A$5, B$1 = call scale {M&, k -> M, _} A$4, g$1
  B$ret = untyped disp B$1
  call log {msg} B$1
  untyped tic
  m$1 = multi_set A$5, one$1, n$1
  x$1, y$1 = parallel_copy one$1, n$1
  write_global ^g, one$1
  branch x$1, #3, #4, #5
block #3:
  while #6, #7
block #4:
  break
block #5:
  continue
block #6:
block #7:
  A$ret = A$5
`

func TestParseDumpRoundTrip(t *testing.T) {
	bodies, err := ssa.Parse(roundTrip)
	require.NoError(t, err)
	require.Len(t, bodies, 1)
	body := bodies[0]

	assert.Equal(t, "update", body.Name)
	assert.Equal(t, 12, body.FirstLine)
	assert.Equal(t, []string{"A", "n"}, body.Args)
	assert.Equal(t, []string{"A"}, body.ByRef)
	assert.True(t, body.OptimizationDisabled("global_merge"))
	assert.Equal(t, "double[]", body.Types["A$1"])
	assert.Equal(t, "A", body.Family("$t$1"))
	require.Len(t, body.Blocks, 8)

	call := body.Blocks[2].Instrs[1]
	require.Equal(t, ssa.InstrTypedCall, call.Kind)
	assert.Equal(t, []string{"A$5", "B$1"}, call.Call.Outs)
	idx, ok := call.Call.Type.ByRefAlias(0)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)

	noOut := body.Blocks[2].Instrs[3]
	assert.Equal(t, ssa.InstrTypedCall, noOut.Kind)
	assert.Empty(t, noOut.Call.Outs)

	assert.Equal(t, roundTrip, body.String())
}

func TestParseMultipleFunctions(t *testing.T) {
	bodies, err := ssa.Parse(`
// two functions
function a
block #0:
  x$1 = 2.5

function b
block #0:
  y$1 = -1
`)
	require.NoError(t, err)
	require.Len(t, bodies, 2)
	assert.Equal(t, "b", bodies[1].Name)
	c := bodies[0].Blocks[0].Instrs[0]
	assert.Equal(t, ssa.ValueNumber, c.Assign.Src.Kind)
	assert.InDelta(t, 2.5, c.Assign.Src.Number, 1e-12)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		text string
		code diag.Code
	}{
		{"no function", "block #0:\n", diag.IRMissingFunction},
		{"bad header", "function f\nfoo bar\n", diag.IRBadHeader},
		{"out of order block", "function f\nblock #1:\n", diag.IRBadBlockRef},
		{"unknown statement", "function f\nblock #0:\n  jump #1\n", diag.IRUnknownInstr},
		{"bad branch", "function f\nblock #0:\n  branch c$1, #1\n", diag.IRBadOperand},
		{"bad ref", "function f\nblock #0:\n  while 1, #2\n", diag.IRBadBlockRef},
		{"bad number", "function f\nblock #0:\n  x$1 = 1.2.3\n", diag.IRBadNumber},
		{"set without value", "function f\nblock #0:\n  m$2 = set m$1, i$1\n", diag.IRBadOperand},
		{"two outputs for get", "function f\nblock #0:\n  a, b = get m$1\n", diag.IRBadOperand},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ssa.Parse(tc.text)
			require.Error(t, err)
			var d diag.Diagnostic
			require.True(t, errors.As(err, &d))
			assert.Equal(t, tc.code, d.Code)
		})
	}
}

func TestParseErrorPointsAtLine(t *testing.T) {
	_, err := ssa.Parse("function f\nblock #0:\n  x$1 = 1\n  nope\n")
	var d diag.Diagnostic
	require.True(t, errors.As(err, &d))
	assert.Equal(t, uint32(len("function f\nblock #0:\n  x$1 = 1\n")), d.Primary.Start)
}

func TestParseBodySpanCoversFunction(t *testing.T) {
	first := "function f\nblock #0:\n  x$1 = 1"
	second := "function g\nblock #0:\n  y$1 = 2"
	text := first + "\n\n// between\n" + second + "\n"
	bodies, err := ssa.Parse(text)
	require.NoError(t, err)
	require.Len(t, bodies, 2)

	f, g := bodies[0].Span, bodies[1].Span
	assert.Equal(t, first, text[f.Start:f.End])
	assert.Equal(t, second, text[g.Start:g.End])
	assert.Equal(t, f.File, g.File)
}
