package alloc_test

import (
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"strings"
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

const maxRegionDepth = 3

// bodyGen builds random structured bodies: straight-line code, branches with
// join phis and for/while loops with loop-head phis, nested a few levels
// deep. Every use reads the current version of its variable, so the result
// is strict SSA.
type bodyGen struct {
	r        *rand.Rand
	body     *ssa.Body
	versions map[string]int

	phis  int
	loops int
}

// env maps a variable family to its current version.
type env map[string]string

var families = []string{"a", "b", "c", "d", "$t"}

func newBodyGen(seed uint64) *bodyGen {
	return &bodyGen{r: rand.New(rand.NewPCG(seed, 0x5eed)), versions: make(map[string]int)}
}

func (g *bodyGen) version(fam string) string {
	g.versions[fam]++
	return fmt.Sprintf("%s$%d", fam, g.versions[fam])
}

func (g *bodyGen) fresh() string {
	return g.version(families[g.r.IntN(len(families))])
}

func (g *bodyGen) pick(vars env) string {
	keys := slices.Sorted(maps.Keys(vars))
	return vars[keys[g.r.IntN(len(keys))]]
}

func familyOf(name string) string {
	return name[:strings.LastIndexByte(name, ssa.VersionSep)]
}

func (g *bodyGen) fill(b ssa.BlockID, vars env, n int) {
	for range n {
		var ins ssa.Instr
		switch g.r.IntN(9) {
		case 0:
			ins = ssa.AssignConst(g.fresh(), 1, "1")
		case 1, 2:
			ins = ssa.Assign(g.fresh(), g.pick(vars))
		case 3:
			ins = ssa.UntypedCall("f", []string{g.fresh()}, []string{g.pick(vars), g.pick(vars)})
		case 4:
			ft := &ssa.FunctionType{Args: []string{"m", "v"}, ByRef: []bool{true, false}, OutputsAsInputs: []string{"m"}}
			ins = ssa.TypedCall("upd", ft, []string{g.fresh()}, []string{g.pick(vars), g.pick(vars)})
		case 5:
			ins = ssa.MatrixSet(g.fresh(), g.pick(vars), []string{g.pick(vars)}, g.pick(vars))
		case 6:
			ins = ssa.SimpleSet(g.fresh(), g.pick(vars), []string{g.pick(vars)}, g.pick(vars))
		case 7:
			ins = ssa.MatrixGet(g.fresh(), g.pick(vars), g.pick(vars))
		default:
			if g.r.IntN(2) == 0 {
				ins = ssa.ReadGlobal(g.fresh(), "^g")
			} else {
				ins = ssa.WriteGlobal("^g", g.pick(vars))
			}
		}
		g.body.Block(b).Add(ins)
		for _, out := range ins.Outputs() {
			vars[familyOf(out)] = out
		}
	}
}

// region fills b and appends up to two nested constructs. It returns the
// block the region ends in, which has no control instruction; vars is left
// holding the versions live at its end.
func (g *bodyGen) region(b ssa.BlockID, vars env, depth int) ssa.BlockID {
	g.fill(b, vars, g.r.IntN(4))
	if depth >= maxRegionDepth {
		return b
	}
	for range g.r.IntN(3) {
		switch g.r.IntN(3) {
		case 0:
			b = g.branch(b, vars, depth)
		case 1:
			b = g.forLoop(b, vars, depth)
		default:
			b = g.whileLoop(b, vars, depth)
		}
		g.fill(b, vars, g.r.IntN(3))
	}
	return b
}

func (g *bodyGen) branch(b ssa.BlockID, vars env, depth int) ssa.BlockID {
	t, f, join := g.body.AddBlock(), g.body.AddBlock(), g.body.AddBlock()
	g.body.Block(b).Add(ssa.Branch(g.pick(vars), t, f, join))

	tv, fv := maps.Clone(vars), maps.Clone(vars)
	tEnd := g.region(t, tv, depth+1)
	fEnd := g.region(f, fv, depth+1)

	// Families first defined in one arm do not survive the join.
	for _, fam := range slices.Sorted(maps.Keys(vars)) {
		if tv[fam] == fv[fam] {
			vars[fam] = tv[fam]
			continue
		}
		out := g.version(fam)
		g.body.Block(join).Add(ssa.Phi(out, []string{tv[fam], fv[fam]}, []ssa.BlockID{tEnd, fEnd}))
		vars[fam] = out
		g.phis++
	}
	return join
}

type carriedVar struct {
	fam string
	idx int // phi position in the loop head
}

// carry opens loop-head phis for a random subset of vars. Their back edge is
// filled in by closeLoop once the latch is known.
func (g *bodyGen) carry(head, from ssa.BlockID, vars env) []carriedVar {
	var out []carriedVar
	for _, fam := range slices.Sorted(maps.Keys(vars)) {
		if g.r.IntN(3) == 0 {
			continue
		}
		name := g.version(fam)
		blk := g.body.Block(head)
		out = append(out, carriedVar{fam: fam, idx: len(blk.Instrs)})
		blk.Add(ssa.Phi(name, []string{vars[fam], name}, []ssa.BlockID{from, from}))
		vars[fam] = name
		g.phis++
	}
	return out
}

func (g *bodyGen) closeLoop(head, latch ssa.BlockID, carried []carriedVar, vars env) {
	for _, c := range carried {
		phi := &g.body.Block(head).Instrs[c.idx].Phi
		phi.Ins[1], phi.Preds[1] = vars[c.fam], latch
	}
}

// forLoop leaves the loop through its exit block, which is reached both
// before the first iteration and after the last one.
func (g *bodyGen) forLoop(b ssa.BlockID, vars env, depth int) ssa.BlockID {
	head, exit := g.body.AddBlock(), g.body.AddBlock()
	g.body.Block(b).Add(ssa.For(g.pick(vars), g.pick(vars), g.pick(vars), head, exit))
	g.loops++

	inner := maps.Clone(vars)
	carried := g.carry(head, b, inner)
	iter := g.version("$i")
	g.body.Block(head).Add(ssa.Iter(iter))
	inner[familyOf(iter)] = iter
	latch := g.region(head, inner, depth+1)
	g.closeLoop(head, latch, carried, inner)

	for _, c := range carried {
		out := g.version(c.fam)
		g.body.Block(exit).Add(ssa.Phi(out, []string{vars[c.fam], inner[c.fam]}, []ssa.BlockID{b, latch}))
		vars[c.fam] = out
		g.phis++
	}
	return exit
}

// whileLoop ends its body with a branch whose true arm breaks out and whose
// false arm either continues or falls through to the join, which returns to
// the head.
func (g *bodyGen) whileLoop(b ssa.BlockID, vars env, depth int) ssa.BlockID {
	head, exit := g.body.AddBlock(), g.body.AddBlock()
	g.body.Block(b).Add(ssa.While(head, exit))
	g.loops++

	inner := maps.Clone(vars)
	carried := g.carry(head, b, inner)
	end := g.region(head, inner, depth+1)

	brk, cont, join := g.body.AddBlock(), g.body.AddBlock(), g.body.AddBlock()
	g.body.Block(end).Add(ssa.Branch(g.pick(inner), brk, cont, join))

	after := maps.Clone(inner)
	g.fill(brk, after, g.r.IntN(3))
	g.body.Block(brk).Add(ssa.Break())

	latch := cont
	g.fill(cont, inner, g.r.IntN(3))
	if g.r.IntN(2) == 0 {
		g.body.Block(cont).Add(ssa.Continue())
	} else {
		latch = join
		g.fill(join, inner, g.r.IntN(3))
	}
	g.closeLoop(head, latch, carried, inner)

	clear(vars)
	maps.Copy(vars, after)
	return exit
}

func (g *bodyGen) build() *ssa.Body {
	g.body = ssa.NewBody("random")
	entry := g.body.AddBlock()
	g.body.Block(entry).Add(ssa.Argument("a$0", 0))
	g.body.Block(entry).Add(ssa.Argument("b$0", 1))
	vars := env{"a": "a$0", "b": "b$0"}

	end := g.region(entry, vars, 0)
	g.body.Block(end).Add(ssa.Assign("r$ret", g.pick(vars)))
	return g.body
}

func TestMergedGroupsNeverInterfere(t *testing.T) {
	strategies := []alloc.Strategy{alloc.PriorityStrategy{}, alloc.SinglePassStrategy{}}
	phis, loops := 0, 0
	for seed := range uint64(200) {
		g := newBodyGen(seed)
		body := g.build()
		phis += g.phis
		loops += g.loops
		require.NoError(t, ssa.Validate(body), "seed %d\n%s", seed, body)

		_, err := cssa.Convert(body, nil)
		require.NoError(t, err, "seed %d\n%s", seed, body)
		require.NoError(t, ssa.Validate(body), "seed %d", seed)

		info := liveness.Analyze(body, cfg.Build(body))
		require.Empty(t, info.UndefinedAtEntry(), "seed %d\n%s", seed, body)
		graph := interference.Build(body, info)

		for _, s := range strategies {
			a, err := alloc.NewEfficient(s).AllocateLive(body, info, alloc.AllowAll)
			require.NoError(t, err, "seed %d %s\n%s", seed, s.Name(), body)
			require.NoError(t, testkit.CheckAllocation(body, a, graph), "seed %d %s\n%s", seed, s.Name(), body)
		}
	}
	assert.Positive(t, phis)
	assert.Positive(t, loops)
}

func TestDummyGroupsOfConvertedBodiesNeverInterfere(t *testing.T) {
	for seed := range uint64(100) {
		body := newBodyGen(seed).build()
		_, err := cssa.Convert(body, nil)
		require.NoError(t, err, "seed %d", seed)

		info := liveness.Analyze(body, cfg.Build(body))
		a, err := alloc.Dummy{}.Allocate(body, nil)
		require.NoError(t, err, "seed %d", seed)
		require.NoError(t, testkit.CheckAllocation(body, a, interference.Build(body, info)), "seed %d\n%s", seed, body)
	}
}
