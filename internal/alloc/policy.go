package alloc

import "matisse/internal/ssa"

// MergePolicy vets a candidate group before two groups are merged. A false
// result leaves the names apart; it is never an error.
type MergePolicy func(group []string) bool

// AllowAll accepts every group.
func AllowAll(group []string) bool { return true }

// SameType accepts groups whose typed members all share one type. Names with
// no inferred type are compatible with anything.
func SameType(body *ssa.Body) MergePolicy {
	return func(group []string) bool {
		var first string
		seen := false
		for _, name := range group {
			typ, ok := body.TypeOf(name)
			if !ok {
				continue
			}
			if !seen {
				first, seen = typ, true
				continue
			}
			if typ != first {
				return false
			}
		}
		return true
	}
}

// NoGlobalPairs rejects groups that would hold two different globals.
func NoGlobalPairs(group []string) bool {
	global := ""
	for _, name := range group {
		if !ssa.IsGlobal(name) {
			continue
		}
		if global != "" && global != name {
			return false
		}
		global = name
	}
	return true
}

// All accepts a group only when every policy does. Nil policies are skipped.
func All(policies ...MergePolicy) MergePolicy {
	return func(group []string) bool {
		for _, p := range policies {
			if p != nil && !p(group) {
				return false
			}
		}
		return true
	}
}
