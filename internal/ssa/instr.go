package ssa

// BlockID indexes a block inside its Body. Block 0 is the entry.
type BlockID int32

// NoBlockID marks an absent block reference.
const NoBlockID BlockID = -1

// InstrKind enumerates instruction kinds in the SSA IR.
//
//exhaustive:enforce
type InstrKind uint8

const (
	// InstrArgument binds a function argument to an SSA name.
	InstrArgument InstrKind = iota
	// InstrAssign copies a variable or a constant.
	InstrAssign
	// InstrPhi merges one version per predecessor.
	InstrPhi
	// InstrBranch is a two-way conditional with an explicit join block.
	InstrBranch
	// InstrFor is a counted loop.
	InstrFor
	// InstrWhile is an unconditional loop left through break.
	InstrWhile
	// InstrBreak leaves the innermost loop.
	InstrBreak
	// InstrContinue jumps back to the innermost loop head.
	InstrContinue
	// InstrIter defines the iteration variable of the enclosing for loop.
	InstrIter
	// InstrTypedCall calls a resolved function with a known FunctionType.
	InstrTypedCall
	// InstrUntypedCall calls a function not yet resolved by type inference.
	InstrUntypedCall
	// InstrMatrixGet reads a matrix element.
	InstrMatrixGet
	// InstrMatrixSet writes a matrix element, producing a new matrix version.
	InstrMatrixSet
	// InstrSimpleSet writes an element known to be in bounds.
	InstrSimpleSet
	// InstrMultiSet writes consecutive elements.
	InstrMultiSet
	// InstrParallelCopy performs simultaneous copies.
	InstrParallelCopy
	// InstrReadGlobal loads a global into an SSA name.
	InstrReadGlobal
	// InstrWriteGlobal stores an SSA name into a global.
	InstrWriteGlobal
	// InstrLine records the source line of the following instructions.
	InstrLine
	// InstrEnd computes the MATLAB `end` value of a matrix dimension.
	InstrEnd
	// InstrComment carries a comment through to the generated code.
	InstrComment

	numInstrKinds
)

var instrKindNames = [...]string{
	InstrArgument:     "arg",
	InstrAssign:       "assign",
	InstrPhi:          "phi",
	InstrBranch:       "branch",
	InstrFor:          "for",
	InstrWhile:        "while",
	InstrBreak:        "break",
	InstrContinue:     "continue",
	InstrIter:         "iter",
	InstrTypedCall:    "call",
	InstrUntypedCall:  "untyped",
	InstrMatrixGet:    "get",
	InstrMatrixSet:    "set",
	InstrSimpleSet:    "simple_set",
	InstrMultiSet:     "multi_set",
	InstrParallelCopy: "parallel_copy",
	InstrReadGlobal:   "read_global",
	InstrWriteGlobal:  "write_global",
	InstrLine:         "line",
	InstrEnd:          "end",
	InstrComment:      "comment",
}

func (k InstrKind) String() string {
	if k < numInstrKinds {
		return instrKindNames[k]
	}
	return "unknown"
}

// Kinds lists every instruction kind in declaration order.
func Kinds() []InstrKind {
	out := make([]InstrKind, 0, numInstrKinds)
	for k := InstrKind(0); k < numInstrKinds; k++ {
		out = append(out, k)
	}
	return out
}

// Instr represents an SSA instruction. Exactly one payload is meaningful,
// selected by Kind.
type Instr struct {
	Kind InstrKind

	Argument     ArgumentInstr
	Assign       AssignInstr
	Phi          PhiInstr
	Branch       BranchInstr
	For          ForInstr
	While        WhileInstr
	Iter         IterInstr
	Call         CallInstr
	MatrixGet    MatrixGetInstr
	MatrixSet    MatrixSetInstr
	MultiSet     MultiSetInstr
	ParallelCopy ParallelCopyInstr
	Global       GlobalInstr
	Line         LineInstr
	End          EndInstr
	Comment      CommentInstr
}

// ArgumentInstr binds argument Index to Out.
type ArgumentInstr struct {
	Out   string
	Index int
}

// ValueKind distinguishes assignment sources.
type ValueKind uint8

const (
	// ValueVar reads another SSA name.
	ValueVar ValueKind = iota
	// ValueNumber is a numeric literal.
	ValueNumber
)

// Value is the source of an assignment.
type Value struct {
	Kind ValueKind
	Name string
	// Text preserves the literal as written; Number is its parsed value.
	Text   string
	Number float64
}

// AssignInstr represents Out = Src.
type AssignInstr struct {
	Out string
	Src Value
}

// PhiInstr represents Out = phi(Ins[i] from Preds[i]).
type PhiInstr struct {
	Out   string
	Ins   []string
	Preds []BlockID
}

// BranchInstr jumps to True or False; both fall through to End.
type BranchInstr struct {
	Cond  string
	True  BlockID
	False BlockID
	End   BlockID
}

// ForInstr iterates from Start by Step up to Stop over the Loop body, then
// continues at End.
type ForInstr struct {
	Start string
	Step  string
	Stop  string
	Loop  BlockID
	End   BlockID
}

// WhileInstr runs Loop until a break, then continues at End.
type WhileInstr struct {
	Loop BlockID
	End  BlockID
}

// IterInstr defines the iteration variable.
type IterInstr struct {
	Out string
}

// CallInstr is shared by typed and untyped calls. Type is nil for untyped
// calls.
type CallInstr struct {
	Func string
	Type *FunctionType
	Outs []string
	Ins  []string
}

// MatrixGetInstr represents Out = Matrix(Indices...).
type MatrixGetInstr struct {
	Out     string
	Matrix  string
	Indices []string
}

// MatrixSetInstr represents Out = Matrix with Matrix(Indices...) = Value.
type MatrixSetInstr struct {
	Out     string
	Matrix  string
	Indices []string
	Value   string
}

// MultiSetInstr represents Out = Matrix with Matrix(1:len(Values)) = Values.
type MultiSetInstr struct {
	Out    string
	Matrix string
	Values []string
}

// ParallelCopyInstr copies Ins[i] to Outs[i] for all i at once.
type ParallelCopyInstr struct {
	Ins  []string
	Outs []string
}

// GlobalInstr is shared by ReadGlobal (Var = Global) and WriteGlobal
// (Global = Var).
type GlobalInstr struct {
	Global string
	Var    string
}

// LineInstr records a source line.
type LineInstr struct {
	Line int
}

// EndInstr represents Out = end of dimension Index (of NumIndices) of Matrix.
type EndInstr struct {
	Out        string
	Matrix     string
	Index      int
	NumIndices int
}

// CommentInstr carries free text.
type CommentInstr struct {
	Text string
}

func Argument(out string, index int) Instr {
	return Instr{Kind: InstrArgument, Argument: ArgumentInstr{Out: out, Index: index}}
}

func Assign(out, in string) Instr {
	return Instr{Kind: InstrAssign, Assign: AssignInstr{Out: out, Src: Value{Kind: ValueVar, Name: in}}}
}

// AssignConst builds a ConstAssignment.
func AssignConst(out string, n float64, text string) Instr {
	return Instr{Kind: InstrAssign, Assign: AssignInstr{Out: out, Src: Value{Kind: ValueNumber, Number: n, Text: text}}}
}

func Phi(out string, ins []string, preds []BlockID) Instr {
	return Instr{Kind: InstrPhi, Phi: PhiInstr{Out: out, Ins: ins, Preds: preds}}
}

func Branch(cond string, ifTrue, ifFalse, end BlockID) Instr {
	return Instr{Kind: InstrBranch, Branch: BranchInstr{Cond: cond, True: ifTrue, False: ifFalse, End: end}}
}

func For(start, step, stop string, loop, end BlockID) Instr {
	return Instr{Kind: InstrFor, For: ForInstr{Start: start, Step: step, Stop: stop, Loop: loop, End: end}}
}

func While(loop, end BlockID) Instr {
	return Instr{Kind: InstrWhile, While: WhileInstr{Loop: loop, End: end}}
}

func Break() Instr    { return Instr{Kind: InstrBreak} }
func Continue() Instr { return Instr{Kind: InstrContinue} }

func Iter(out string) Instr {
	return Instr{Kind: InstrIter, Iter: IterInstr{Out: out}}
}

func TypedCall(fn string, ft *FunctionType, outs, ins []string) Instr {
	return Instr{Kind: InstrTypedCall, Call: CallInstr{Func: fn, Type: ft, Outs: outs, Ins: ins}}
}

func UntypedCall(fn string, outs, ins []string) Instr {
	return Instr{Kind: InstrUntypedCall, Call: CallInstr{Func: fn, Outs: outs, Ins: ins}}
}

func MatrixGet(out, matrix string, indices ...string) Instr {
	return Instr{Kind: InstrMatrixGet, MatrixGet: MatrixGetInstr{Out: out, Matrix: matrix, Indices: indices}}
}

func MatrixSet(out, matrix string, indices []string, value string) Instr {
	return Instr{Kind: InstrMatrixSet, MatrixSet: MatrixSetInstr{Out: out, Matrix: matrix, Indices: indices, Value: value}}
}

func SimpleSet(out, matrix string, indices []string, value string) Instr {
	return Instr{Kind: InstrSimpleSet, MatrixSet: MatrixSetInstr{Out: out, Matrix: matrix, Indices: indices, Value: value}}
}

func MultiSet(out, matrix string, values ...string) Instr {
	return Instr{Kind: InstrMultiSet, MultiSet: MultiSetInstr{Out: out, Matrix: matrix, Values: values}}
}

func ParallelCopy(ins, outs []string) Instr {
	return Instr{Kind: InstrParallelCopy, ParallelCopy: ParallelCopyInstr{Ins: ins, Outs: outs}}
}

func ReadGlobal(out, global string) Instr {
	return Instr{Kind: InstrReadGlobal, Global: GlobalInstr{Global: global, Var: out}}
}

func WriteGlobal(global, in string) Instr {
	return Instr{Kind: InstrWriteGlobal, Global: GlobalInstr{Global: global, Var: in}}
}

func Line(line int) Instr {
	return Instr{Kind: InstrLine, Line: LineInstr{Line: line}}
}

func End(out, matrix string, index, numIndices int) Instr {
	return Instr{Kind: InstrEnd, End: EndInstr{Out: out, Matrix: matrix, Index: index, NumIndices: numIndices}}
}

func Comment(text string) Instr {
	return Instr{Kind: InstrComment, Comment: CommentInstr{Text: text}}
}
