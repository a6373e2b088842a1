package backend

import "github.com/blendsdk/blend65/ssair"

// BuildParallelCopy collects the moves that resolve succ's PHIs along
// the pred->succ edge: for every PHI at the head of succ, the operand
// coming from pred must end up in the PHI's own home slot by the time
// control reaches succ (spec.md §4.1, §4.5). A PHI whose incoming
// value already lives in the same slot as the PHI result needs no
// move at all — the common case for a loop-carried value that simply
// keeps its slot across iterations.
func BuildParallelCopy(ctx *Context, fn *ssair.Function, pred, succ *ssair.Block) []Copy {
	var copies []Copy
	for _, phi := range succ.Phis {
		for _, e := range phi.Phi {
			if e.Pred != pred.Label {
				continue
			}
			_, dstName, _ := ctx.Home(fn, phi.Result)
			_, srcName, _ := ctx.Home(fn, e.Value)
			if dstName == "" || srcName == "" || dstName == srcName {
				continue
			}
			copies = append(copies, Copy{Dst: dstName, Src: srcName, Type: phi.Result.Type()})
		}
	}
	return copies
}

// SequenceCopies orders a set of parallel moves into a safe sequential
// order, breaking any cycles through scratch (spec.md §9's "parallel
// copy... with a scratch register/cell to break cycles"). Every
// destination name is unique within copies (each is one PHI's home),
// so the only hazard is a move whose source is another move's
// destination: that move must run first, or — if two moves form a
// cycle through each other — the cycle must be broken by first saving
// one value to scratch.
func SequenceCopies(copies []Copy, scratch string) []Copy {
	if len(copies) == 0 {
		return nil
	}

	order := make([]string, 0, len(copies))
	pending := make(map[string]Copy, len(copies))
	for _, c := range copies {
		order = append(order, c.Dst)
		pending[c.Dst] = c
	}

	// srcRefs counts how many pending moves still need to read a given
	// name as their source; recomputed fresh each round since
	// redirections during cycle-breaking change it, and the move sets
	// here are small enough (one per PHI at a block head) that
	// recomputing is simpler than maintaining it incrementally.
	srcRefs := func() map[string]int {
		m := make(map[string]int, len(pending))
		for _, c := range pending {
			m[c.Src]++
		}
		return m
	}

	var result []Copy
	for len(pending) > 0 {
		refs := srcRefs()
		progressed := false
		for _, dst := range order {
			c, ok := pending[dst]
			if !ok || refs[dst] > 0 {
				continue
			}
			result = append(result, c)
			delete(pending, dst)
			progressed = true
		}
		if progressed {
			continue
		}

		// Every remaining move is part of a cycle. Break it by first
		// saving the value "first" is about to lose (its own current
		// contents) to scratch, then redirecting every other pending
		// move that reads "first" to read scratch instead. first's own
		// move (e.g. a<-b) is left untouched and runs after the
		// scratch save, so it is free to clobber first's slot.
		var first string
		for _, dst := range order {
			if _, ok := pending[dst]; ok {
				first = dst
				break
			}
		}
		c := pending[first]
		result = append(result, Copy{Dst: scratch, Src: first, Type: c.Type})
		for _, dst := range order {
			other, ok := pending[dst]
			if ok && dst != first && other.Src == first {
				other.Src = scratch
				pending[dst] = other
			}
		}
	}
	return result
}
