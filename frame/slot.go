// Package frame implements C3, the static frame allocator (spec.md
// §4.3): slot layout within a function, the coalescing overlap
// predicate, the agglomerative coalescing join, and recursive
// software-stack frames.
package frame

import "github.com/blendsdk/blend65/ssair"

// SlotInfo is one of a function's declared slots (ssair.LocalSlot)
// enriched with the access metrics spec.md §3.2 derives "from the IL
// scan": how often it is touched, and the deepest loop nesting any of
// those touches occurs at. zpage's priority score is computed directly
// from these two fields plus Directive.
type SlotInfo struct {
	ssair.LocalSlot
	AccessCount  int
	MaxLoopDepth int
}

// Size is the slot's footprint in bytes (1 for byte/bool, 2 for
// word/ptr, N for arrays).
func (s SlotInfo) Size() int { return s.Type.Size() }

// ScanSlots computes per-slot access metrics for fn by walking every
// block once. The caller must have already run ssair.ComputeCFG(fn) so
// that each block's LoopDepth is populated; ScanSlots itself only
// reads that field, it does not recompute dominance.
func ScanSlots(fn *ssair.Function) []SlotInfo {
	infos := make([]SlotInfo, len(fn.Locals))
	index := make(map[string]int, len(fn.Locals))
	for i, l := range fn.Locals {
		infos[i] = SlotInfo{LocalSlot: l}
		index[l.Name] = i
	}

	touch := func(name string, depth int) {
		i, ok := index[name]
		if !ok {
			return
		}
		infos[i].AccessCount++
		if depth > infos[i].MaxLoopDepth {
			infos[i].MaxLoopDepth = depth
		}
	}
	touchValue := func(v ssair.Value, depth int) {
		if v.Valid() {
			touch(fn.SlotName(v.ID()), depth)
		}
	}

	for _, blk := range fn.Blocks {
		depth := blk.LoopDepth()
		for _, ins := range blk.AllInstructions() {
			switch ins.Opcode {
			case ssair.OpLoadVar, ssair.OpStoreVar, ssair.OpAddrOf, ssair.OpLen:
				touch(ins.Name, depth)
			case ssair.OpCopy:
				if ins.Name != "" {
					touch(ins.Name, depth)
				}
			}
			// Every operand and result is, in the end, a read or write
			// of that value's home slot (named or compiler-generated
			// temporary) — counting these generically is what lets ZP
			// scoring see hot unnamed temporaries (e.g. loop-local
			// pointer arithmetic), not just source-level locals.
			touchValue(ins.Result, depth)
			for _, a := range ins.Args {
				touchValue(a, depth)
			}
			for _, pe := range ins.Phi {
				touchValue(pe.Value, depth)
			}
		}
	}
	return infos
}

// FrameSize is the sum of every slot's size; with the platform's
// Alignment at 1 (no padding) this is exactly the byte count the frame
// region or software stack frame must reserve for fn (spec.md §4.3's
// "slot layout within a frame").
func FrameSize(infos []SlotInfo) int {
	total := 0
	for _, s := range infos {
		total += s.Size()
	}
	return total
}
