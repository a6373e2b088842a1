package ssair

// CFG holds the control-flow analysis results for one function: a
// reverse-postorder block list, immediate dominators, and per-block
// loop depth (spec.md §3.3, §4.4). Preds/Succs on the function's
// blocks are (re)computed as a side effect, superseding whatever the
// Builder tracked during incremental SSA construction (see builder.go)
// so that the CFG reflects every terminator actually emitted.
//
// The dominator computation is the iterative "engineered" algorithm
// from Cooper, Harvey & Kennedy, "A Simple, Fast Dominance Algorithm" —
// the same algorithm the teacher's ssa package uses in
// passCalculateImmediateDominators, adapted from the teacher's
// block-argument SSA to ssair's explicit PHI blocks (the dominance
// computation itself is representation-agnostic).
type CFG struct {
	RPO   []*Block          // blocks in reverse postorder from Entry.
	order map[*Block]int    // RPO index, for fast dominance queries.
	idom  map[*Block]*Block // immediate dominator; Entry maps to itself.
}

// ComputeCFG (re)derives Preds/Succs from each block's terminator,
// then computes dominators and loop depths.
func ComputeCFG(f *Function) *CFG {
	for _, b := range f.Blocks {
		b.Succs = nil
		b.Preds = nil
	}
	for _, b := range f.Blocks {
		for _, lbl := range successorLabels(b) {
			succ := f.BlockByLabel(lbl)
			if succ == nil {
				continue // dangling label; surfaced by verify.go
			}
			b.Succs = append(b.Succs, succ)
			succ.Preds = append(succ.Preds, b)
		}
	}

	rpo := reversePostorder(f.Entry)
	order := make(map[*Block]int, len(rpo))
	for i, b := range rpo {
		order[b] = i
	}

	idom := computeDominators(rpo, order)

	cfg := &CFG{RPO: rpo, order: order, idom: idom}
	cfg.computeLoopDepths(f)
	return cfg
}

func successorLabels(b *Block) []string {
	if b.Term == nil {
		return nil
	}
	switch b.Term.Opcode {
	case OpBr:
		return b.Term.Targets
	case OpBrIf:
		return b.Term.Targets
	default:
		return nil
	}
}

// reversePostorder walks the CFG from entry and returns blocks in
// reverse postorder (entry first), required by the dominance
// algorithm below. Implemented as an explicit-stack DFS, each frame
// tracking how many of its successors have already been pushed, to
// avoid recursion depth proportional to function size.
func reversePostorder(entry *Block) []*Block {
	if entry == nil {
		return nil
	}
	type frame struct {
		b   *Block
		idx int
	}
	visited := map[*Block]bool{entry: true}
	var post []*Block
	stack := []frame{{b: entry}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.idx < len(top.b.Succs) {
			s := top.b.Succs[top.idx]
			top.idx++
			if !visited[s] {
				visited[s] = true
				stack = append(stack, frame{b: s})
			}
			continue
		}
		post = append(post, top.b)
		stack = stack[:len(stack)-1]
	}
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// computeDominators implements Cooper-Harvey-Kennedy.
func computeDominators(rpo []*Block, order map[*Block]int) map[*Block]*Block {
	if len(rpo) == 0 {
		return nil
	}
	idom := make(map[*Block]*Block, len(rpo))
	entry := rpo[0]
	idom[entry] = entry

	changed := true
	for changed {
		changed = false
		for _, b := range rpo[1:] {
			var newIdom *Block
			for _, p := range b.Preds {
				if _, ok := idom[p]; !ok {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = intersect(newIdom, p, order, idom)
			}
			if newIdom != nil && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	return idom
}

func intersect(a, b *Block, order map[*Block]int, idom map[*Block]*Block) *Block {
	for a != b {
		for order[a] > order[b] {
			a = idom[a]
		}
		for order[b] > order[a] {
			b = idom[b]
		}
	}
	return a
}

// Dominates reports whether a dominates b (every path from entry to b
// passes through a), inclusive of a == b.
func (c *CFG) Dominates(a, b *Block) bool {
	if a == b {
		return true
	}
	cur := b
	for {
		next, ok := c.idom[cur]
		if !ok {
			return false
		}
		if next == cur {
			return false // reached entry without hitting a
		}
		if next == a {
			return true
		}
		cur = next
	}
}

// computeLoopDepths finds every back edge (a successor that dominates
// its own predecessor), derives each one's natural loop, and
// propagates a loop-nesting depth to every member block, for the
// zero-page allocator's access-frequency weighting (spec.md §4.4).
// Back edges sharing a header contribute to the same loop.
func (c *CFG) computeLoopDepths(f *Function) {
	headers := map[*Block]bool{}
	bodies := map[*Block]map[*Block]bool{}
	for _, latch := range f.Blocks {
		for _, header := range latch.Succs {
			if !c.Dominates(header, latch) {
				continue
			}
			headers[header] = true
			if bodies[header] == nil {
				bodies[header] = map[*Block]bool{header: true}
			}
			naturalLoopBody(latch, header, bodies[header])
		}
	}

	for h, members := range bodies {
		depth := countEnclosingLoops(h, headers, c)
		for m := range members {
			if depth+1 > m.loopDepth {
				m.loopDepth = depth + 1
			}
		}
	}
}

// naturalLoopBody walks Preds backward from latch, stopping at
// header, adding every block it finds to members.
func naturalLoopBody(latch, header *Block, members map[*Block]bool) {
	if members[latch] {
		return
	}
	members[latch] = true
	if latch == header {
		return
	}
	for _, p := range latch.Preds {
		naturalLoopBody(p, header, members)
	}
}

func countEnclosingLoops(h *Block, headers map[*Block]bool, c *CFG) int {
	count := 0
	cur := h
	for {
		next, ok := c.idom[cur]
		if !ok || next == cur {
			return count
		}
		if headers[next] {
			count++
		}
		cur = next
	}
}
