package ssa

import (
	"fmt"
	"io"
	"slices"
	"strings"
)

// Dump writes body in the textual format accepted by Parse.
func Dump(w io.Writer, body *Body) error {
	if w == nil || body == nil {
		return nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "function %s\n", body.Name)
	if body.FirstLine > 0 {
		fmt.Fprintf(&sb, "line: %d\n", body.FirstLine)
	}
	list := func(key string, names []string) {
		if len(names) > 0 {
			fmt.Fprintf(&sb, "%s: %s\n", key, strings.Join(names, ", "))
		}
	}
	list("args", body.Args)
	list("outs", body.Outs)
	list("byref", body.ByRef)
	list("disable", body.Properties)
	for _, name := range sortedKeys(body.Types) {
		fmt.Fprintf(&sb, "type %s: %s\n", name, body.Types[name])
	}
	for _, name := range sortedKeys(body.Origins) {
		fmt.Fprintf(&sb, "origin %s: %s\n", name, body.Origins[name])
	}
	for bi := range body.Blocks {
		fmt.Fprintf(&sb, "block #%d:\n", bi)
		for ii := range body.Blocks[bi].Instrs {
			sb.WriteString("  ")
			sb.WriteString(body.Blocks[bi].Instrs[ii].String())
			sb.WriteByte('\n')
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// DumpAll writes several bodies separated by blank lines.
func DumpAll(w io.Writer, bodies []*Body) error {
	for i, b := range bodies {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := Dump(w, b); err != nil {
			return err
		}
	}
	return nil
}

func (b *Body) String() string {
	var sb strings.Builder
	_ = Dump(&sb, b)
	return sb.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
