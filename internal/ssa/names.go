package ssa

import "strings"

const (
	// VersionSep separates a variable family from its SSA version (A$1).
	VersionSep = '$'
	// GlobalSigil prefixes every global variable name (^a).
	GlobalSigil = '^'
	// RetSuffix marks the value returned through an output slot (A$ret).
	RetSuffix = "$ret"
)

// IsGlobal reports whether name refers to a global variable.
func IsGlobal(name string) bool {
	return name != "" && name[0] == GlobalSigil
}

// IsTemporary reports whether name was invented by the compiler ($t$1).
func IsTemporary(name string) bool {
	return name != "" && name[0] == VersionSep
}

// IsReturn reports whether name is a returned value.
func IsReturn(name string) bool {
	return strings.HasSuffix(name, RetSuffix)
}

// familyFromName derives the source variable from a versioned name.
// Temporaries have no family.
func familyFromName(name string) string {
	idx := strings.IndexByte(name, VersionSep)
	switch {
	case idx < 0:
		return name
	case idx == 0:
		return ""
	default:
		return name[:idx]
	}
}

// ReturnAlias returns the $ret name sharing a family with name.
func ReturnAlias(name string) string {
	fam := familyFromName(name)
	if fam == "" {
		return ""
	}
	return fam + RetSuffix
}
