package ssa

import (
	"maps"
	"slices"
	"strconv"

	"matisse/internal/source"
)

// Body is the SSA form of one function. Passes mutate it in place.
type Body struct {
	Name      string
	FirstLine int
	Span      source.Span

	Blocks []Block

	// Args and Outs name the function parameters and results in declaration
	// order.
	Args []string
	Outs []string
	// ByRef lists the source variables passed by reference.
	ByRef []string

	// Properties holds the "disable optimization" directive ids.
	Properties []string

	// Types maps variable names to their inferred type, once known.
	Types map[string]string
	// Origins maps SSA names to the source variable they version. When set,
	// it takes priority over name parsing.
	Origins map[string]string

	used map[string]struct{}
	temp int
}

func NewBody(name string) *Body {
	return &Body{Name: name}
}

// AddBlock appends an empty block and returns its id.
func (b *Body) AddBlock() BlockID {
	b.Blocks = append(b.Blocks, Block{})
	return BlockID(len(b.Blocks) - 1)
}

func (b *Body) Block(id BlockID) *Block {
	return &b.Blocks[id]
}

func (b *Body) HasBlock(id BlockID) bool {
	return id >= 0 && int(id) < len(b.Blocks)
}

// DisableOptimization records a directive. Recording it twice is harmless.
func (b *Body) DisableOptimization(id string) {
	if !slices.Contains(b.Properties, id) {
		b.Properties = append(b.Properties, id)
	}
}

func (b *Body) OptimizationDisabled(id string) bool {
	return slices.Contains(b.Properties, id)
}

// IsByRef reports whether the family of name is passed by reference.
func (b *Body) IsByRef(name string) bool {
	fam := b.Family(name)
	return fam != "" && slices.Contains(b.ByRef, fam)
}

// Family returns the source variable an SSA name versions, or "" for
// compiler temporaries.
func (b *Body) Family(name string) string {
	if fam, ok := b.Origins[name]; ok {
		return fam
	}
	return familyFromName(name)
}

// TypeOf returns the inferred type of name, if any.
func (b *Body) TypeOf(name string) (string, bool) {
	t, ok := b.Types[name]
	return t, ok
}

// MakeTemporary returns a fresh name $semantics$N that does not collide with
// any name in the body.
func (b *Body) MakeTemporary(semantics string) string {
	if b.used == nil {
		b.used = make(map[string]struct{})
		b.ForEach(func(_ BlockID, _ int, ins *Instr) {
			for _, n := range ins.Outputs() {
				b.used[n] = struct{}{}
			}
			for _, n := range ins.Inputs() {
				b.used[n] = struct{}{}
			}
		})
	}
	prefix := string(VersionSep) + semantics + string(VersionSep)
	for {
		b.temp++
		name := prefix + strconv.Itoa(b.temp)
		if _, taken := b.used[name]; !taken {
			b.used[name] = struct{}{}
			return name
		}
	}
}

// ForEach visits every instruction in block order.
func (b *Body) ForEach(fn func(block BlockID, idx int, ins *Instr)) {
	for bi := range b.Blocks {
		blk := &b.Blocks[bi]
		for ii := range blk.Instrs {
			fn(BlockID(bi), ii, &blk.Instrs[ii])
		}
	}
}

// Names returns every local and global name referenced by the body, in first
// occurrence order.
func (b *Body) Names() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(names []string) {
		for _, n := range names {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	b.ForEach(func(_ BlockID, _ int, ins *Instr) {
		add(ins.Outputs())
		add(ins.Inputs())
		add(ins.Globals())
	})
	return out
}

// Clone returns a deep copy that shares nothing with b.
func (b *Body) Clone() *Body {
	c := &Body{
		Name:       b.Name,
		FirstLine:  b.FirstLine,
		Span:       b.Span,
		Args:       slices.Clone(b.Args),
		Outs:       slices.Clone(b.Outs),
		ByRef:      slices.Clone(b.ByRef),
		Properties: slices.Clone(b.Properties),
		Types:      maps.Clone(b.Types),
		Origins:    maps.Clone(b.Origins),
		temp:       b.temp,
	}
	c.Blocks = make([]Block, len(b.Blocks))
	for i := range b.Blocks {
		instrs := make([]Instr, len(b.Blocks[i].Instrs))
		for j := range b.Blocks[i].Instrs {
			instrs[j] = b.Blocks[i].Instrs[j].Clone()
		}
		c.Blocks[i].Instrs = instrs
	}
	return c
}
