package frame

import (
	"sort"

	"github.com/blendsdk/blend65/callgraph"
)

// Group is one coalescing equivalence class (spec.md §4.3): every pair
// of members satisfies the overlap predicate, so the group is safe to
// lay out as a single shared region sized to its largest member.
type Group struct {
	ID        int
	Members   []string
	FrameSize int // max(frame_size(f)) across every member.
}

// reachability precomputes, for every function, the set of functions
// it can reach through zero or more calls (direct or over-approximated
// indirect edges), used to test "neither is a transitive caller of the
// other" without recomputing a BFS per pair.
func reachability(g *callgraph.Graph) map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(g.Functions()))
	for _, name := range g.Functions() {
		visited := map[string]bool{}
		stack := append([]string{}, g.Callees(name)...)
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[n] {
				continue
			}
			visited[n] = true
			stack = append(stack, g.Callees(n)...)
		}
		out[name] = visited
	}
	return out
}

// canCoalesce implements the overlap predicate (spec.md §4.3): f and g
// may share memory iff neither is recursive, they run in the same
// thread context, and neither can reach the other through the call
// graph (so they can never be live on the call stack simultaneously).
func canCoalesce(f, g string, res *callgraph.Result, reach map[string]map[string]bool) bool {
	if f == g {
		return true
	}
	if res.Recursive[f] || res.Recursive[g] {
		return false
	}
	if res.ThreadContext[f] != res.ThreadContext[g] {
		return false
	}
	if reach[f][g] || reach[g][f] {
		return false
	}
	return true
}

// Coalesce groups every non-recursive function into equivalence
// classes via an agglomerative join (spec.md §4.3): candidates are
// visited in order of decreasing frame size, ties broken by
// declaration order for determinism (P-SFA-3), and each is accepted
// into the first existing group every one of whose members it
// satisfies the overlap predicate against; failing that, it starts a
// new group. Recursive functions never appear in the result — they get
// their own software-stack frame, laid out separately by Allocate.
func Coalesce(functionNames []string, res *callgraph.Result, sizes map[string]int) []*Group {
	reach := reachability(res.Graph)

	type candidate struct {
		name string
		size int
		decl int
	}
	var cands []candidate
	for i, name := range functionNames {
		if res.Recursive[name] {
			continue
		}
		cands = append(cands, candidate{name: name, size: sizes[name], decl: i})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].size != cands[j].size {
			return cands[i].size > cands[j].size
		}
		return cands[i].decl < cands[j].decl
	})

	var groups []*Group
	for _, c := range cands {
		placed := false
		for _, grp := range groups {
			ok := true
			for _, m := range grp.Members {
				if !canCoalesce(c.name, m, res, reach) {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
			grp.Members = append(grp.Members, c.name)
			if c.size > grp.FrameSize {
				grp.FrameSize = c.size
			}
			placed = true
			break
		}
		if !placed {
			groups = append(groups, &Group{ID: len(groups), Members: []string{c.name}, FrameSize: c.size})
		}
	}
	return groups
}
