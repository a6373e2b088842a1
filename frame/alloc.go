package frame

import (
	"strings"

	"github.com/blendsdk/blend65/callgraph"
	"github.com/blendsdk/blend65/compileerr"
	"github.com/blendsdk/blend65/platform"
	"github.com/blendsdk/blend65/ssair"
)

// LocationKind distinguishes a static frame-region address from an
// offset relative to a recursive function's software stack frame
// pointer (spec.md §4.3's FrameMap output).
type LocationKind byte

const (
	LocStatic LocationKind = iota
	LocStackRelative
	LocZeroPage
)

// SlotLocation is one slot's assigned home.
type SlotLocation struct {
	Kind   LocationKind
	Offset int    // byte offset within the frame (static) or from the frame pointer (stack-relative).
	Addr   uint16 // absolute address; meaningful only when Kind == LocStatic.
}

// FuncFrame is one function's entry in the FrameMap.
type FuncFrame struct {
	Recursive bool
	GroupID   int // -1 for recursive functions, which never coalesce.
	Base      uint16
	TotalSize int
	Slots     map[string]SlotLocation
}

// Map is C3's output, the FrameMap of spec.md §4.3: every function's
// frame base, slot locations, total size, and coalescing group id.
type Map struct {
	Funcs  map[string]*FuncFrame
	Groups []*Group
}

// Allocate runs C3 end to end: it sizes every function's frame from
// its scanned slots, coalesces the non-recursive ones, lays out
// recursive software-stack frames, and places coalescing groups
// consecutively in the platform's frame region. slots must contain one
// entry (from ScanSlots) per function in mod.Functions.
func Allocate(mod *ssair.Module, cfg platform.Config, res *callgraph.Result, slots map[string][]SlotInfo) (*Map, *compileerr.List) {
	var errs compileerr.List

	sizes := make(map[string]int, len(slots))
	for name, s := range slots {
		sizes[name] = FrameSize(s)
	}

	var names []string
	for _, fn := range mod.Functions {
		names = append(names, fn.Name)
	}

	groups := Coalesce(names, res, sizes)
	fm := &Map{Funcs: make(map[string]*FuncFrame, len(names)), Groups: groups}

	for _, fn := range mod.Functions {
		if res.Recursive[fn.Name] {
			fm.Funcs[fn.Name] = layoutRecursiveFrame(slots[fn.Name])
		}
	}

	base := int(cfg.FrameRegion.Start)
	regionEnd := int(cfg.FrameRegion.End)
	for _, grp := range groups {
		// A zero-size group occupies no bytes, so it cannot overflow.
		if grp.FrameSize > 0 && base+grp.FrameSize > regionEnd {
			errs.Add(compileerr.New(compileerr.FrameOverflow, ssair.Pos{},
				"coalescing group %d (%s) needs %d bytes starting at $%04X, but the frame region ends at $%04X",
				grp.ID, strings.Join(grp.Members, ", "), grp.FrameSize, base, regionEnd))
			base += grp.FrameSize // keep accumulating so later groups still report accurately.
			continue
		}
		for _, name := range grp.Members {
			fm.Funcs[name] = layoutStaticFrame(slots[name], uint16(base), grp)
		}
		base += grp.FrameSize
	}

	return fm, &errs
}

// layoutRecursiveFrame lays out the software-stack frame
// [return_addr(2)][saved_prev_frame_ptr(2)][params...][locals...]
// (spec.md §4.3's "Recursive frames"). Offsets are relative to the
// frame pointer the prologue establishes; the first two cells are
// reserved for the call mechanism itself, not a named slot.
func layoutRecursiveFrame(infos []SlotInfo) *FuncFrame {
	ff := &FuncFrame{Recursive: true, GroupID: -1, Slots: map[string]SlotLocation{}}
	offset := 4
	for _, s := range infos {
		ff.Slots[s.Name] = SlotLocation{Kind: LocStackRelative, Offset: offset}
		offset += s.Size()
	}
	ff.TotalSize = offset
	return ff
}

// layoutStaticFrame lays out a non-recursive function's slots
// contiguously from base, in declaration order (parameters first, then
// locals, per §4.3's slot-layout rule; ScanSlots preserves that order
// since it mirrors fn.Locals).
func layoutStaticFrame(infos []SlotInfo, base uint16, grp *Group) *FuncFrame {
	ff := &FuncFrame{GroupID: grp.ID, Base: base, TotalSize: grp.FrameSize, Slots: map[string]SlotLocation{}}
	offset := 0
	for _, s := range infos {
		ff.Slots[s.Name] = SlotLocation{Kind: LocStatic, Offset: offset, Addr: base + uint16(offset)}
		offset += s.Size()
	}
	return ff
}
