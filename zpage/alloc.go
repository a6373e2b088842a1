package zpage

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"

	"github.com/blendsdk/blend65/compileerr"
	"github.com/blendsdk/blend65/frame"
	"github.com/blendsdk/blend65/platform"
	"github.com/blendsdk/blend65/ssair"
)

// request is one candidate for zero-page promotion. A request can name
// more than one (func, slot) pair: when two or more slots occupy the
// same offset within the same coalescing group, they already share a
// frame-region byte (spec.md §4.3's coalescing), so promoting one must
// promote all of them to the same zero-page address (spec.md §4.4's
// "coalescing-aware" rule) — that only holds when the shared slots are
// the same size; a mismatch is treated as independent requests instead
// of guessing which one "owns" the byte.
type request struct {
	funcs     []string
	slotNames []string
	size      int
	directive ssair.ZPDirective
	score     int
}

// requestQueue is a container/heap priority queue ordering requests by
// (directive rank, score) descending, per spec.md §4.4's "sort by
// (directive rank, score) descending" allocation rule; ties break on
// the representative slot's name so Pop order is fully deterministic.
type requestQueue []*request

func (q requestQueue) Len() int { return len(q) }
func (q requestQueue) Less(i, j int) bool {
	if directiveRank(q[i].directive) != directiveRank(q[j].directive) {
		return directiveRank(q[i].directive) > directiveRank(q[j].directive)
	}
	if q[i].score != q[j].score {
		return q[i].score > q[j].score
	}
	return q[i].funcs[0]+"."+q[i].slotNames[0] < q[j].funcs[0]+"."+q[j].slotNames[0]
}
func (q requestQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *requestQueue) Push(x any)   { *q = append(*q, x.(*request)) }
func (q *requestQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// ZPMap is C4's output: for every promoted (function, slot), its
// assigned zero-page address.
type ZPMap struct {
	Addr map[string]map[string]uint16
}

func (z *ZPMap) set(fn, slot string, addr uint16) {
	if z.Addr[fn] == nil {
		z.Addr[fn] = map[string]uint16{}
	}
	z.Addr[fn][slot] = addr
}

// Allocate runs C4 end to end. fm is mutated in place: every promoted
// slot's FuncFrame.Slots entry is rewritten to LocZeroPage so
// downstream lowering only ever has to read one source of truth.
func Allocate(fm *frame.Map, cfg platform.Config, slots map[string][]frame.SlotInfo) (*ZPMap, *compileerr.List) {
	var errs compileerr.List
	zm := &ZPMap{Addr: map[string]map[string]uint16{}}

	q := requestQueue(buildRequests(fm, slots))
	heap.Init(&q)

	free := cfg.ZeroPageAvailable()
	for q.Len() > 0 {
		req := heap.Pop(&q).(*request)
		addr, ok := place(free, req.size)
		if !ok {
			if req.directive == ssair.ZPRequired {
				errs.Add(compileerr.New(compileerr.ZPRequiredUnsatisfiable, ssair.Pos{},
					"slot %s (func %s) requires zero page but no %d contiguous free byte(s) remain; current residents: %s",
					req.slotNames[0], req.funcs[0], req.size, residentsList(zm)))
			}
			// preferred: silently remains in the frame region (non-fatal).
			continue
		}
		if req.directive == ssair.ZPNone && req.score < cfg.ZPAutoThreshold {
			continue
		}

		free = consume(free, addr, req.size)
		for i, fnName := range req.funcs {
			slotName := req.slotNames[i]
			zm.set(fnName, slotName, addr)
			if ff := fm.Funcs[fnName]; ff != nil {
				ff.Slots[slotName] = frame.SlotLocation{Kind: frame.LocZeroPage, Addr: addr}
			}
		}
	}

	return zm, &errs
}

// buildRequests collects one scoring request per named slot, merging
// slots that already share a frame-region byte through coalescing.
// Iteration order is pinned to sorted function/slot names so the
// result (and therefore placement) is deterministic (spec.md §8.2).
func buildRequests(fm *frame.Map, slots map[string][]frame.SlotInfo) []*request {
	type posKey struct {
		group  int
		offset int
	}
	merged := map[posKey]*request{}
	var mergedOrder []posKey
	var standalone []*request

	fnNames := make([]string, 0, len(slots))
	for name := range slots {
		fnNames = append(fnNames, name)
	}
	sort.Strings(fnNames)

	for _, fnName := range fnNames {
		infos := slots[fnName]
		ff := fm.Funcs[fnName]
		if ff == nil {
			continue
		}
		for _, s := range infos {
			if s.Directive == ssair.ZPForbidden {
				continue
			}
			loc, ok := ff.Slots[s.Name]
			if !ok || loc.Kind != frame.LocStatic || ff.GroupID < 0 {
				standalone = append(standalone, newRequest(fnName, s))
				continue
			}

			key := posKey{group: ff.GroupID, offset: loc.Offset}
			existing, seen := merged[key]
			if seen && existing.size == s.Size() {
				existing.funcs = append(existing.funcs, fnName)
				existing.slotNames = append(existing.slotNames, s.Name)
				if sc := Score(s); sc > existing.score {
					existing.score = sc
				}
				if directiveRank(s.Directive) > directiveRank(existing.directive) {
					existing.directive = s.Directive
				}
				continue
			}
			if seen {
				// Size mismatch at the same shared byte position: fall
				// back to an independent request rather than merging.
				standalone = append(standalone, newRequest(fnName, s))
				continue
			}
			merged[key] = newRequest(fnName, s)
			mergedOrder = append(mergedOrder, key)
		}
	}

	reqs := standalone
	for _, key := range mergedOrder {
		reqs = append(reqs, merged[key])
	}
	return reqs
}

func newRequest(fnName string, s frame.SlotInfo) *request {
	return &request{
		funcs:     []string{fnName},
		slotNames: []string{s.Name},
		size:      s.Size(),
		directive: s.Directive,
		score:     Score(s),
	}
}

// place finds the first free range with at least size contiguous
// bytes (first-fit, per spec.md §4.4's "next free ZP bytes").
func place(free []platform.AddrRange, size int) (uint16, bool) {
	for _, r := range free {
		if r.Len() >= size {
			return r.Start, true
		}
	}
	return 0, false
}

// consume removes [addr, addr+size) from free, keeping the remainder
// of whichever range it came from.
func consume(free []platform.AddrRange, addr uint16, size int) []platform.AddrRange {
	out := make([]platform.AddrRange, 0, len(free))
	for _, r := range free {
		if r.Start == addr {
			newStart := addr + uint16(size)
			if newStart < r.End {
				out = append(out, platform.AddrRange{Start: newStart, End: r.End})
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

func residentsList(zm *ZPMap) string {
	var names []string
	for fn, slots := range zm.Addr {
		for slot, addr := range slots {
			names = append(names, fmt.Sprintf("%s.%s@$%02X", fn, slot, addr))
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
