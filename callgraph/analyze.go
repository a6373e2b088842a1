package callgraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/blendsdk/blend65/compileerr"
	"github.com/blendsdk/blend65/ssair"
)

// Result is C2's output: the recursive flag, thread context, and
// call-depth bound for every function (spec.md §4.2).
type Result struct {
	Graph *Graph

	Recursive     map[string]bool
	ThreadContext map[string]ssair.ThreadContext
	CallDepth     map[string]int // valid only for non-recursive functions.

	// CallDepthWarnings names functions whose call-depth bound exceeds
	// the platform's configured threshold (invariant (ii), §4.2).
	CallDepthWarnings []string
}

// Analyze runs the recursion-legality check and the thread-context/
// call-depth dataflows, returning every error found (IllegalRecursion)
// collected rather than stopping at the first one.
func Analyze(g *Graph, callDepthWarningThreshold int) (*Result, *compileerr.List) {
	var errs compileerr.List

	res := &Result{
		Graph:         g,
		Recursive:     map[string]bool{},
		ThreadContext: map[string]ssair.ThreadContext{},
		CallDepth:     map[string]int{},
	}

	sccs := g.SCC()
	for _, comp := range sccs {
		cyclic := len(comp) > 1
		if len(comp) == 1 && g.HasSelfEdge(comp[0]) {
			cyclic = true
		}
		if !cyclic {
			continue
		}
		for _, name := range comp {
			res.Recursive[name] = true
		}
		checkRecursionOptIn(g, comp, &errs)
	}

	computeThreadContexts(g, res)
	computeCallDepths(g, res, callDepthWarningThreshold)

	return res, &errs
}

// checkRecursionOptIn requires every member of a cyclic component to
// have declared itself recursive; otherwise it reports an
// IllegalRecursion error naming the complete cycle and every call site
// that forms it.
func checkRecursionOptIn(g *Graph, comp []string, errs *compileerr.List) {
	missing := map[string]bool{}
	for _, name := range comp {
		fn := g.Module.FunctionByName(name)
		if fn == nil || !fn.Recursive {
			missing[name] = true
		}
	}
	if len(missing) == 0 {
		return
	}

	var sites []CallSite
	members := map[string]bool{}
	for _, n := range comp {
		members[n] = true
	}
	for _, from := range comp {
		for _, to := range g.Callees(from) {
			if members[to] {
				sites = append(sites, g.CallSitesBetween(from, to)...)
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "cycle %s is not opt in to recursion (missing: %s); call sites forming the cycle: ",
		strings.Join(comp, " -> "), strings.Join(sortedKeys(missing), ", "))
	for i, s := range sites {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s -> %s at %s", s.From, s.To, s.Pos)
	}

	var anyPos ssair.Pos
	if fn := g.Module.FunctionByName(comp[0]); fn != nil {
		anyPos = fn.Pos
	}
	errs.Add(compileerr.New(compileerr.IllegalRecursion, anyPos, "%s", b.String()))
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// computeThreadContexts is a forward dataflow from the module's entry
// points: main's reachable set gets ThreadContextMain, each ISR
// entry's reachable set gets ThreadContextISR; a function reachable
// from both gets ThreadContextBoth (spec.md §4.2, §3.7).
func computeThreadContexts(g *Graph, res *Result) {
	mark := func(root string, ctx ssair.ThreadContext) {
		if root == "" {
			return
		}
		visited := map[string]bool{}
		var stack []string
		stack = append(stack, root)
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[n] {
				continue
			}
			visited[n] = true
			merge(res.ThreadContext, n, ctx)
			stack = append(stack, g.Callees(n)...)
		}
	}

	mark(g.entryMain, ssair.ThreadContextMain)
	for _, isr := range g.entryISRs {
		mark(isr, ssair.ThreadContextISR)
	}
}

func merge(m map[string]ssair.ThreadContext, name string, ctx ssair.ThreadContext) {
	existing, ok := m[name]
	if !ok {
		m[name] = ctx
		return
	}
	if existing == ctx {
		return
	}
	m[name] = ssair.ThreadContextBoth
}

// computeCallDepths computes, for every non-recursive function, the
// longest direct-call chain starting at it (its call-depth bound),
// flagging any exceeding threshold (invariant (ii), §4.2). Functions
// inside a recursive cycle have no finite bound and are left out of
// CallDepth.
func computeCallDepths(g *Graph, res *Result, threshold int) {
	memo := map[string]int{}
	var depth func(name string, onPath map[string]bool) int
	depth = func(name string, onPath map[string]bool) int {
		if res.Recursive[name] {
			return 0 // handled by the software stack, not this bound.
		}
		if d, ok := memo[name]; ok {
			return d
		}
		if onPath[name] {
			return 0 // guards against an unexpected cycle slipping through.
		}
		onPath[name] = true
		best := 0
		for _, callee := range g.Callees(name) {
			if d := depth(callee, onPath); d+1 > best {
				best = d + 1
			}
		}
		onPath[name] = false
		memo[name] = best
		return best
	}

	for _, name := range g.Functions() {
		if res.Recursive[name] {
			continue
		}
		d := depth(name, map[string]bool{})
		res.CallDepth[name] = d
		if d > threshold {
			res.CallDepthWarnings = append(res.CallDepthWarnings, name)
		}
	}
	sort.Strings(res.CallDepthWarnings)
}
