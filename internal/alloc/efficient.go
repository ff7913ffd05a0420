package alloc

import (
	"matisse/internal/cfg"
	"matisse/internal/diag"
	"matisse/internal/interference"
	"matisse/internal/liveness"
	"matisse/internal/ssa"
	"matisse/internal/trace"
)

// Directives understood by the allocator, set with
// "disable optimization <name>".
const (
	// DirectiveEfficient turns Efficient into Dummy.
	DirectiveEfficient = "efficient_variable_allocation"
	// DirectiveCallAlias stops merging call outputs with the by-reference
	// inputs they alias.
	DirectiveCallAlias = "call_alias_merge"
	// DirectiveGlobal stops merging globals with the locals that read or
	// write them.
	DirectiveGlobal = "global_merge"
	// DirectiveCopy stops merging copies between unrelated variables.
	DirectiveCopy = "copy_merge"
)

// Efficient starts from the Dummy groups and then coalesces copies whose
// names do not interfere, in the order chosen by its Strategy.
type Efficient struct {
	// Strategy defaults to PriorityStrategy.
	Strategy Strategy
	// Tracer receives one node-scope event per committed merge.
	Tracer trace.Tracer
}

// NewEfficient returns an allocator running strategy.
func NewEfficient(strategy Strategy) *Efficient {
	return &Efficient{Strategy: strategy}
}

func (e *Efficient) Allocate(body *ssa.Body, canMerge MergePolicy) (*Allocation, error) {
	info := liveness.Analyze(body, cfg.Build(body))
	return e.AllocateLive(body, info, canMerge)
}

// AllocateLive is Allocate with liveness already computed for body. A
// mandatory group whose members interfere is an internal error; with the
// efficient directive disabled the checked Dummy groups are returned as is.
func (e *Efficient) AllocateLive(body *ssa.Body, info *liveness.Info, canMerge MergePolicy) (*Allocation, error) {
	a, err := Dummy{}.Allocate(body, canMerge)
	if err != nil {
		return nil, err
	}

	graph := interference.Build(body, info)
	groups := a.Groups()
	for _, g := range groups {
		if err := disjoint(body, graph, g); err != nil {
			return nil, err
		}
	}
	if body.OptimizationDisabled(DirectiveEfficient) {
		return a, nil
	}
	for _, g := range groups {
		if len(g) > 1 {
			graph.MergeGroup(g, g[0])
		}
	}

	if canMerge == nil {
		canMerge = AllowAll
	}
	tracer := e.Tracer
	if tracer == nil {
		tracer = trace.Nop
	}
	m := &Merger{body: body, alloc: a, graph: graph, canMerge: canMerge, tracer: tracer}
	strategy := e.Strategy
	if strategy == nil {
		strategy = PriorityStrategy{}
	}
	strategy.Run(m)
	return a, nil
}

// disjoint fails when two members of a mandatory group are live at the same
// time, which happens when phis reach the allocator before CSSA conversion.
func disjoint(body *ssa.Body, graph *interference.Graph, group []string) error {
	for i, x := range group {
		for _, y := range group[i+1:] {
			if graph.HasInterference(x, y) {
				return diag.Internal("%s: %s and %s must share storage but interfere", body.Name, x, y)
			}
		}
	}
	return nil
}

// Merger is the merge primitive handed to a Strategy. It keeps the
// allocation and the interference graph contracted in step.
type Merger struct {
	body     *ssa.Body
	alloc    *Allocation
	graph    *interference.Graph
	canMerge MergePolicy
	tracer   trace.Tracer
	phase    string
}

func (m *Merger) Body() *ssa.Body { return m.body }

// Allows reports whether directive has not been disabled on the body.
func (m *Merger) Allows(directive string) bool {
	return !m.body.OptimizationDisabled(directive)
}

// SetPhase labels the merges that follow in trace output.
func (m *Merger) SetPhase(phase string) { m.phase = phase }

// TryMerge merges the groups of x and y unless they interfere or the policy
// rejects the union. It reports whether x and y share a group afterwards.
func (m *Merger) TryMerge(x, y string) bool {
	if x == "" || y == "" {
		return false
	}
	if m.alloc.Same(x, y) {
		m.alloc.stats.AlreadyJoined++
		return true
	}
	if m.graph.HasInterference(x, y) {
		m.alloc.stats.Interfering++
		return false
	}
	combined := append(m.group(x), m.group(y)...)
	if !m.canMerge(combined) {
		m.alloc.stats.PolicyRejected++
		return false
	}
	group := m.alloc.Merge(x, y)
	m.graph.MergeGroup(group, group[0])
	if m.tracer.Enabled() {
		trace.Point(m.tracer, trace.ScopeNode, "merge", m.body.Name+" "+m.phase+": "+x+" <- "+y)
	}
	return true
}

func (m *Merger) group(name string) []string {
	if g := m.alloc.GroupOf(name); g != nil {
		return g
	}
	return []string{name}
}
