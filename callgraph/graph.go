// Package callgraph builds the whole-program call graph, detects
// recursion via Tarjan's SCC algorithm, and computes each function's
// thread context (spec.md §4.2).
package callgraph

import (
	"sort"

	"github.com/blendsdk/blend65/ssair"
)

// CallSite is one call instruction's location, kept for
// IllegalRecursion diagnostics that must name every call site forming
// a cycle.
type CallSite struct {
	From, To string
	Pos      ssair.Pos
	Indirect bool
}

// Graph is the whole-program call graph.
type Graph struct {
	Module *ssair.Module

	// edges[f] is the set of functions f may call, through a direct
	// call or an over-approximated indirect one, deduplicated.
	edges map[string]map[string]bool

	// sites records every call site contributing an edge, in
	// declaration order, for diagnostics.
	sites []CallSite

	// entryMain is the module's designated main entry point, by the
	// "main" naming convention (spec.md names no other mechanism).
	entryMain string
	// entryISRs are every function flagged IsISREntry.
	entryISRs []string
}

// Build walks every function's instructions, collecting direct call
// edges (OpCall) and over-approximated indirect call edges
// (OpCallIndirect, matched against every function whose address is
// taken anywhere in the module and whose signature matches the call
// site — spec.md §4.2's conservative over-approximation).
func Build(mod *ssair.Module) *Graph {
	g := &Graph{
		Module: mod,
		edges:  make(map[string]map[string]bool),
	}

	addressTaken := collectAddressTaken(mod)

	for _, fn := range mod.Functions {
		g.edges[fn.Name] = make(map[string]bool)
		if fn.Name == "main" {
			g.entryMain = fn.Name
		}
		if fn.IsISREntry {
			g.entryISRs = append(g.entryISRs, fn.Name)
		}
	}

	for _, fn := range mod.Functions {
		for _, blk := range fn.Blocks {
			for _, ins := range blk.AllInstructions() {
				switch ins.Opcode {
				case ssair.OpCall:
					g.addEdge(fn.Name, ins.Name, ins.Pos, false)
				case ssair.OpCallIndirect:
					for _, target := range addressTaken {
						targetFn := mod.FunctionByName(target)
						if targetFn == nil || !targetFn.Signature().Equal(ins.Signature) {
							continue
						}
						g.addEdge(fn.Name, target, ins.Pos, true)
					}
				}
			}
		}
	}
	return g
}

func (g *Graph) addEdge(from, to string, pos ssair.Pos, indirect bool) {
	if g.edges[from] == nil {
		g.edges[from] = make(map[string]bool)
	}
	if !g.edges[from][to] {
		g.edges[from][to] = true
	}
	g.sites = append(g.sites, CallSite{From: from, To: to, Pos: pos, Indirect: indirect})
}

// collectAddressTaken returns every function name referenced by an
// `addr_of` instruction anywhere in the module, sorted for
// deterministic iteration.
func collectAddressTaken(mod *ssair.Module) []string {
	taken := map[string]bool{}
	for _, fn := range mod.Functions {
		for _, blk := range fn.Blocks {
			for _, ins := range blk.AllInstructions() {
				if ins.Opcode == ssair.OpAddrOf && mod.FunctionByName(ins.Name) != nil {
					taken[ins.Name] = true
				}
			}
		}
	}
	out := make([]string, 0, len(taken))
	for name := range taken {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Callees returns every function fn may call (direct callees plus the
// over-approximated call_indirect targets), sorted.
func (g *Graph) Callees(fn string) []string {
	out := make([]string, 0, len(g.edges[fn]))
	for to := range g.edges[fn] {
		out = append(out, to)
	}
	sort.Strings(out)
	return out
}

// Functions returns every function name in the graph, sorted.
func (g *Graph) Functions() []string {
	out := make([]string, 0, len(g.edges))
	for name := range g.edges {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// CallSitesBetween returns every recorded call site from->to, in the
// order they were discovered.
func (g *Graph) CallSitesBetween(from, to string) []CallSite {
	var out []CallSite
	for _, s := range g.sites {
		if s.From == from && s.To == to {
			out = append(out, s)
		}
	}
	return out
}
