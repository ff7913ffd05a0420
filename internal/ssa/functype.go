package ssa

import "strings"

// FunctionType is the calling-convention metadata type inference attaches to
// a typed call.
type FunctionType struct {
	// Args holds the callee-side argument names.
	Args []string
	// ByRef marks arguments whose callee-side writes are visible to the caller.
	ByRef []bool
	// OutputsAsInputs holds, per output, the argument name it is returned
	// through, or "" when the output is returned by value.
	OutputsAsInputs []string
}

// IsInputReference reports whether argument i is passed by reference.
func (ft *FunctionType) IsInputReference(i int) bool {
	if ft == nil || i < 0 || i >= len(ft.ByRef) {
		return false
	}
	return ft.ByRef[i]
}

// ByRefAlias returns the argument index that output outputIndex aliases, if
// that argument is passed by reference.
func (ft *FunctionType) ByRefAlias(outputIndex int) (int, bool) {
	if ft == nil || outputIndex < 0 || outputIndex >= len(ft.OutputsAsInputs) {
		return 0, false
	}
	name := ft.OutputsAsInputs[outputIndex]
	if name == "" {
		return 0, false
	}
	for i, arg := range ft.Args {
		if arg == name && ft.IsInputReference(i) {
			return i, true
		}
	}
	return 0, false
}

// String renders {a&, b -> a, _}.
func (ft *FunctionType) String() string {
	if ft == nil {
		return "{}"
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i, arg := range ft.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(arg)
		if ft.IsInputReference(i) {
			sb.WriteByte('&')
		}
	}
	if len(ft.OutputsAsInputs) > 0 {
		sb.WriteString(" ->")
		for i, name := range ft.OutputsAsInputs {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteByte(' ')
			if name == "" {
				name = "_"
			}
			sb.WriteString(name)
		}
	}
	sb.WriteByte('}')
	return sb.String()
}
