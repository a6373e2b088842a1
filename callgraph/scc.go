package callgraph

import "sort"

// SCC computes the graph's strongly connected components via an
// iterative (explicit-stack) Tarjan's algorithm, the same
// explicit-stack shape as ssair's reversePostorder, kept stack-safe on
// deep call graphs instead of recursing once per function.
//
// Components are returned in no particular order; each component is
// sorted for deterministic diagnostics.
func (g *Graph) SCC() [][]string {
	names := g.Functions()

	index := map[string]int{}
	low := map[string]int{}
	onStack := map[string]bool{}
	var stack []string
	next := 0
	var comps [][]string

	type frame struct {
		node    string
		childIx int
	}

	for _, root := range names {
		if _, seen := index[root]; seen {
			continue
		}

		var work []frame
		push := func(n string) {
			index[n] = next
			low[n] = next
			next++
			stack = append(stack, n)
			onStack[n] = true
			work = append(work, frame{node: n})
		}
		push(root)

		for len(work) > 0 {
			top := &work[len(work)-1]
			callees := g.Callees(top.node)
			if top.childIx < len(callees) {
				w := callees[top.childIx]
				top.childIx++
				if _, seen := index[w]; !seen {
					push(w)
					continue
				} else if onStack[w] {
					if low[w] < low[top.node] {
						low[top.node] = low[w]
					}
				}
				continue
			}

			// All children processed: propagate low-link to parent and,
			// if this node is a component root, pop its component.
			if low[top.node] == index[top.node] {
				var comp []string
				for {
					n := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[n] = false
					comp = append(comp, n)
					if n == top.node {
						break
					}
				}
				sort.Strings(comp)
				comps = append(comps, comp)
			}
			node := top.node
			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := &work[len(work)-1]
				if low[node] < low[parent.node] {
					low[parent.node] = low[node]
				}
			}
		}
	}
	return comps
}

// HasSelfEdge reports whether fn calls itself directly.
func (g *Graph) HasSelfEdge(fn string) bool {
	return g.edges[fn] != nil && g.edges[fn][fn]
}
