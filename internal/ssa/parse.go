package ssa

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"matisse/internal/diag"
	"matisse/internal/source"
)

// Parse reads bodies from in-memory text. It is mostly used by tests.
func Parse(text string) ([]*Body, error) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("<input>", []byte(text))
	return ParseFile(fs.Get(id))
}

// MustParseOne parses text holding exactly one function and panics otherwise.
func MustParseOne(text string) *Body {
	bodies, err := Parse(text)
	if err != nil {
		panic(err)
	}
	if len(bodies) != 1 {
		panic(fmt.Sprintf("ssa: expected one function, got %d", len(bodies)))
	}
	return bodies[0]
}

// ParseFile parses every function of f. A body's Span runs from its header to
// its last non-blank line. The first malformed line stops the parse and is
// returned as a diag.Diagnostic.
func ParseFile(f *source.File) ([]*Body, error) {
	p := &parser{file: f}
	sc := bufio.NewScanner(bytes.NewReader(f.Content))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		p.line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "//") {
			continue
		}
		if err := p.parseLine(text); err != nil {
			return nil, err
		}
		if p.cur != nil {
			p.cur.Span = p.cur.Span.Cover(p.file.LineSpan(p.line))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, p.errorf(diag.IOLoadFileError, "%v", err)
	}
	return p.bodies, nil
}

type parser struct {
	file   *source.File
	line   int
	bodies []*Body
	cur    *Body
}

func (p *parser) errorf(code diag.Code, format string, args ...any) error {
	return diag.NewError(code, p.file.LineSpan(p.line), fmt.Sprintf(format, args...))
}

func (p *parser) parseLine(text string) error {
	if name, ok := strings.CutPrefix(text, "function "); ok {
		name = strings.TrimSpace(name)
		if name == "" {
			return p.errorf(diag.IRBadHeader, "function without a name")
		}
		p.cur = NewBody(name)
		p.cur.Span = p.file.LineSpan(p.line)
		p.bodies = append(p.bodies, p.cur)
		return nil
	}
	if p.cur == nil {
		return p.errorf(diag.IRMissingFunction, "%q before any function header", text)
	}
	if rest, ok := strings.CutPrefix(text, "block "); ok {
		return p.parseBlockHeader(rest)
	}
	if len(p.cur.Blocks) == 0 {
		return p.parseHeader(text)
	}
	ins, err := p.parseInstr(text)
	if err != nil {
		return err
	}
	blk := &p.cur.Blocks[len(p.cur.Blocks)-1]
	blk.Add(ins)
	return nil
}

func (p *parser) parseBlockHeader(rest string) error {
	ref, ok := strings.CutSuffix(strings.TrimSpace(rest), ":")
	if !ok {
		return p.errorf(diag.IRBadBlockRef, "block header must end with ':'")
	}
	id, err := p.blockRef(ref)
	if err != nil {
		return err
	}
	if int(id) != len(p.cur.Blocks) {
		return p.errorf(diag.IRBadBlockRef, "expected block #%d, got #%d", len(p.cur.Blocks), id)
	}
	p.cur.AddBlock()
	return nil
}

func (p *parser) parseHeader(text string) error {
	if rest, ok := strings.CutPrefix(text, "type "); ok {
		name, typ, found := strings.Cut(rest, ":")
		if !found {
			return p.errorf(diag.IRBadHeader, "type entry needs 'name: type'")
		}
		if p.cur.Types == nil {
			p.cur.Types = make(map[string]string)
		}
		p.cur.Types[strings.TrimSpace(name)] = strings.TrimSpace(typ)
		return nil
	}
	if rest, ok := strings.CutPrefix(text, "origin "); ok {
		name, fam, found := strings.Cut(rest, ":")
		if !found {
			return p.errorf(diag.IRBadHeader, "origin entry needs 'name: variable'")
		}
		if p.cur.Origins == nil {
			p.cur.Origins = make(map[string]string)
		}
		p.cur.Origins[strings.TrimSpace(name)] = strings.TrimSpace(fam)
		return nil
	}

	key, value, found := strings.Cut(text, ":")
	if !found {
		return p.errorf(diag.IRBadHeader, "unexpected %q in function header", text)
	}
	value = strings.TrimSpace(value)
	switch strings.TrimSpace(key) {
	case "line":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return p.errorf(diag.IRBadNumber, "bad line number %q", value)
		}
		p.cur.FirstLine = n
	case "args":
		p.cur.Args = splitList(value)
	case "outs":
		p.cur.Outs = splitList(value)
	case "byref":
		p.cur.ByRef = splitList(value)
	case "disable":
		for _, id := range splitList(value) {
			p.cur.DisableOptimization(id)
		}
	default:
		return p.errorf(diag.IRBadHeader, "unknown header key %q", key)
	}
	return nil
}

func (p *parser) parseInstr(text string) (Instr, error) {
	if rest, ok := strings.CutPrefix(text, "%"); ok {
		return Comment(strings.TrimSpace(rest)), nil
	}
	lhs, rhs, hasOut := strings.Cut(text, " = ")
	if !hasOut {
		return p.parseStatement(text)
	}
	outs := splitList(lhs)
	if len(outs) == 0 {
		return Instr{}, p.errorf(diag.IRBadOperand, "missing output before '='")
	}
	op, args := splitOp(rhs)

	single := func() (string, error) {
		if len(outs) != 1 {
			return "", p.errorf(diag.IRBadOperand, "%s defines exactly one name, got %d", op, len(outs))
		}
		return outs[0], nil
	}

	switch op {
	case "arg":
		out, err := single()
		if err != nil {
			return Instr{}, err
		}
		n, err := p.integer(args)
		if err != nil {
			return Instr{}, err
		}
		return Argument(out, n), nil
	case "phi":
		out, err := single()
		if err != nil {
			return Instr{}, err
		}
		return p.parsePhi(out, args)
	case "iter":
		out, err := single()
		if err != nil {
			return Instr{}, err
		}
		return Iter(out), nil
	case "call":
		name, ft, ins, err := p.parseTypedCall(args)
		if err != nil {
			return Instr{}, err
		}
		return TypedCall(name, ft, outs, ins), nil
	case "untyped":
		name, rest := splitOp(args)
		return UntypedCall(name, outs, splitList(rest)), nil
	case "get":
		out, err := single()
		if err != nil {
			return Instr{}, err
		}
		ops := splitList(args)
		if len(ops) == 0 {
			return Instr{}, p.errorf(diag.IRBadOperand, "get needs a matrix")
		}
		return MatrixGet(out, ops[0], ops[1:]...), nil
	case "set", "simple_set":
		out, err := single()
		if err != nil {
			return Instr{}, err
		}
		target, value, found := strings.Cut(args, "<-")
		ops := splitList(target)
		value = strings.TrimSpace(value)
		if !found || len(ops) == 0 || value == "" {
			return Instr{}, p.errorf(diag.IRBadOperand, "%s needs 'matrix, indices <- value'", op)
		}
		if op == "set" {
			return MatrixSet(out, ops[0], ops[1:], value), nil
		}
		return SimpleSet(out, ops[0], ops[1:], value), nil
	case "multi_set":
		out, err := single()
		if err != nil {
			return Instr{}, err
		}
		ops := splitList(args)
		if len(ops) == 0 {
			return Instr{}, p.errorf(diag.IRBadOperand, "multi_set needs a matrix")
		}
		return MultiSet(out, ops[0], ops[1:]...), nil
	case "parallel_copy":
		ins := splitList(args)
		if len(ins) != len(outs) {
			return Instr{}, p.errorf(diag.IRBadOperand, "parallel_copy has %d outputs but %d inputs", len(outs), len(ins))
		}
		return ParallelCopy(ins, outs), nil
	case "read_global":
		out, err := single()
		if err != nil {
			return Instr{}, err
		}
		if !IsGlobal(args) {
			return Instr{}, p.errorf(diag.IRBadOperand, "read_global needs a global, got %q", args)
		}
		return ReadGlobal(out, args), nil
	case "end":
		out, err := single()
		if err != nil {
			return Instr{}, err
		}
		ops := splitList(args)
		if len(ops) != 3 {
			return Instr{}, p.errorf(diag.IRBadOperand, "end needs 'matrix, index, count'")
		}
		idx, err := p.integer(ops[1])
		if err != nil {
			return Instr{}, err
		}
		n, err := p.integer(ops[2])
		if err != nil {
			return Instr{}, err
		}
		return End(out, ops[0], idx, n), nil
	}

	out, err := single()
	if err != nil {
		return Instr{}, err
	}
	if args != "" {
		return Instr{}, p.errorf(diag.IRUnknownInstr, "unknown instruction %q", op)
	}
	if isNumberStart(op) {
		n, err := strconv.ParseFloat(op, 64)
		if err != nil {
			return Instr{}, p.errorf(diag.IRBadNumber, "bad number %q", op)
		}
		return AssignConst(out, n, op), nil
	}
	return Assign(out, op), nil
}

func (p *parser) parseStatement(text string) (Instr, error) {
	op, args := splitOp(text)
	switch op {
	case "branch":
		ops := splitList(args)
		if len(ops) != 4 {
			return Instr{}, p.errorf(diag.IRBadOperand, "branch needs 'cond, #true, #false, #end'")
		}
		ids, err := p.blockRefs(ops[1:])
		if err != nil {
			return Instr{}, err
		}
		return Branch(ops[0], ids[0], ids[1], ids[2]), nil
	case "for":
		ops := splitList(args)
		if len(ops) != 5 {
			return Instr{}, p.errorf(diag.IRBadOperand, "for needs 'start, step, stop, #loop, #end'")
		}
		ids, err := p.blockRefs(ops[3:])
		if err != nil {
			return Instr{}, err
		}
		return For(ops[0], ops[1], ops[2], ids[0], ids[1]), nil
	case "while":
		ids, err := p.blockRefs(splitList(args))
		if err != nil {
			return Instr{}, err
		}
		if len(ids) != 2 {
			return Instr{}, p.errorf(diag.IRBadOperand, "while needs '#loop, #end'")
		}
		return While(ids[0], ids[1]), nil
	case "break":
		return Break(), nil
	case "continue":
		return Continue(), nil
	case "call":
		name, ft, ins, err := p.parseTypedCall(args)
		if err != nil {
			return Instr{}, err
		}
		return TypedCall(name, ft, nil, ins), nil
	case "untyped":
		name, rest := splitOp(args)
		return UntypedCall(name, nil, splitList(rest)), nil
	case "write_global":
		ops := splitList(args)
		if len(ops) != 2 || !IsGlobal(ops[0]) {
			return Instr{}, p.errorf(diag.IRBadOperand, "write_global needs '^global, value'")
		}
		return WriteGlobal(ops[0], ops[1]), nil
	case "line":
		n, err := p.integer(args)
		if err != nil {
			return Instr{}, err
		}
		return Line(n), nil
	}
	return Instr{}, p.errorf(diag.IRUnknownInstr, "unknown instruction %q", op)
}

func (p *parser) parsePhi(out, args string) (Instr, error) {
	var ins []string
	var preds []BlockID
	for _, op := range splitList(args) {
		ref, name, found := strings.Cut(op, ":")
		if !found {
			return Instr{}, p.errorf(diag.IRBadOperand, "phi operand %q needs '#block:name'", op)
		}
		id, err := p.blockRef(ref)
		if err != nil {
			return Instr{}, err
		}
		preds = append(preds, id)
		ins = append(ins, strings.TrimSpace(name))
	}
	return Phi(out, ins, preds), nil
}

// parseTypedCall reads "name {a&, b -> a, _} x, y".
func (p *parser) parseTypedCall(args string) (string, *FunctionType, []string, error) {
	name, rest := splitOp(args)
	if !strings.HasPrefix(rest, "{") {
		return "", nil, nil, p.errorf(diag.IRBadOperand, "typed call to %s needs a function type", name)
	}
	sig, ins, found := strings.Cut(rest[1:], "}")
	if !found {
		return "", nil, nil, p.errorf(diag.IRBadOperand, "unterminated function type")
	}
	ft := &FunctionType{}
	params, outs, _ := strings.Cut(sig, "->")
	for _, arg := range splitList(params) {
		name, byRef := strings.CutSuffix(arg, "&")
		ft.Args = append(ft.Args, name)
		ft.ByRef = append(ft.ByRef, byRef)
	}
	for _, o := range splitList(outs) {
		if o == "_" {
			o = ""
		}
		ft.OutputsAsInputs = append(ft.OutputsAsInputs, o)
	}
	return name, ft, splitList(ins), nil
}

func (p *parser) integer(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, p.errorf(diag.IRBadNumber, "bad integer %q", s)
	}
	return n, nil
}

func (p *parser) blockRef(s string) (BlockID, error) {
	digits, ok := strings.CutPrefix(strings.TrimSpace(s), "#")
	if !ok {
		return NoBlockID, p.errorf(diag.IRBadBlockRef, "block reference %q must start with '#'", s)
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return NoBlockID, p.errorf(diag.IRBadBlockRef, "bad block reference %q", s)
	}
	id, err := safecast.Conv[int32](n)
	if err != nil {
		return NoBlockID, p.errorf(diag.IRBadBlockRef, "block reference %q out of range", s)
	}
	return BlockID(id), nil
}

func (p *parser) blockRefs(refs []string) ([]BlockID, error) {
	out := make([]BlockID, 0, len(refs))
	for _, r := range refs {
		id, err := p.blockRef(r)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// splitOp splits "op rest" at the first space.
func splitOp(s string) (op, rest string) {
	s = strings.TrimSpace(s)
	op, rest, _ = strings.Cut(s, " ")
	return op, strings.TrimSpace(rest)
}

func splitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isNumberStart(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return c >= '0' && c <= '9' || c == '-' || c == '+' || c == '.'
}
