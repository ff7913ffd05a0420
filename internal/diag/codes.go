package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// IR text format
	IRInfo            Code = 1000
	IRUnexpectedToken Code = 1001
	IRBadHeader       Code = 1002
	IRUnknownInstr    Code = 1003
	IRBadOperand      Code = 1004
	IRBadBlockRef     Code = 1005
	IRBadNumber       Code = 1006
	IRMissingFunction Code = 1007

	// Lowering
	LowInfo             Code = 2000
	LowInvalidSSA       Code = 2001
	LowUndefinedAtEntry Code = 2002
	LowInternal         Code = 2003
	LowCacheMiss        Code = 2004

	// Specialization
	SpecInfo             Code = 3000
	SpecNoMatch          Code = 3001
	SpecAmbiguous        Code = 3002
	SpecAllocationFailed Code = 3003

	// IO
	IOLoadFileError Code = 4001
	IOCacheError    Code = 4002

	// Project
	ProjInfo            Code = 5000
	ProjManifestInvalid Code = 5001
	ProjUnknownStrategy Code = 5002
)

var codeDescription = map[Code]string{
	UnknownCode: "Unknown error",

	IRInfo:            "IR information",
	IRUnexpectedToken: "Unexpected token",
	IRBadHeader:       "Malformed function header",
	IRUnknownInstr:    "Unknown instruction",
	IRBadOperand:      "Malformed operand list",
	IRBadBlockRef:     "Malformed block reference",
	IRBadNumber:       "Malformed number",
	IRMissingFunction: "Instructions outside of a function",

	LowInfo:             "Lowering information",
	LowInvalidSSA:       "Invalid SSA form",
	LowUndefinedAtEntry: "Local variable live at function entry",
	LowInternal:         "Internal compiler error",
	LowCacheMiss:        "Allocation cache miss",

	SpecInfo:             "Specialization information",
	SpecNoMatch:          "No specialization matches the argument types",
	SpecAmbiguous:        "Ambiguous specialization",
	SpecAllocationFailed: "Specialized function could not be allocated",

	IOLoadFileError: "Failed to load file",
	IOCacheError:    "Cache read or write failed",

	ProjInfo:            "Project information",
	ProjManifestInvalid: "Invalid matisse.toml",
	ProjUnknownStrategy: "Unknown allocation strategy",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("IR%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("LOW%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("SPC%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("PRJ%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
