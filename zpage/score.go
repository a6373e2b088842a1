// Package zpage implements C4, the zero-page allocator (spec.md §4.4):
// priority scoring, greedy contiguous placement under directive
// policy, and coalescing-aware sharing of promoted slots.
package zpage

import (
	"github.com/blendsdk/blend65/frame"
	"github.com/blendsdk/blend65/ssair"
)

// typeWeight is the base weight by type (spec.md §4.4): ptr benefits
// most since indirect-indexed addressing requires zero page, u8 next
// since single-byte ops on it are cheapest, then u16.
func typeWeight(t ssair.Type) int {
	switch t.Kind {
	case ssair.KindPtr:
		return 30
	case ssair.KindU8, ssair.KindI1:
		return 20
	case ssair.KindU16:
		return 10
	default:
		return 5
	}
}

// loopMultiplier is the per-nesting-level access-frequency multiplier
// spec.md §4.4 gives as an example factor ("×10 per level").
const loopMultiplier = 10

// directiveBonus adds to the score so ties within the same directive
// rank still favor a stronger directive at the margin; directiveRank
// is the real primary sort key.
func directiveBonus(d ssair.ZPDirective) int {
	switch d {
	case ssair.ZPRequired:
		return 1000
	case ssair.ZPPreferred:
		return 500
	default:
		return 0
	}
}

// directiveRank orders directives for the primary sort key: required,
// then preferred, then none. Forbidden never reaches scoring.
func directiveRank(d ssair.ZPDirective) int {
	switch d {
	case ssair.ZPRequired:
		return 2
	case ssair.ZPPreferred:
		return 1
	default:
		return 0
	}
}

// Score computes a slot's zero-page placement priority (spec.md §4.4).
func Score(s frame.SlotInfo) int {
	freq := s.AccessCount
	for i := 0; i < s.MaxLoopDepth; i++ {
		freq *= loopMultiplier
	}
	return typeWeight(s.Type) + freq + directiveBonus(s.Directive)
}
