package zpage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blendsdk/blend65/frame"
	"github.com/blendsdk/blend65/platform"
	"github.com/blendsdk/blend65/ssair"
)

func oneFreeByteConfig() platform.Config {
	return platform.Config{
		Name:            "test",
		ZeroPagePool:    platform.AddrRange{Start: 0x10, End: 0x11},
		FrameRegion:     platform.AddrRange{Start: 0x200, End: 0x400},
		Alignment:       1,
		ZPAutoThreshold: 100,
	}
}

func zeroFreeByteConfig() platform.Config {
	return platform.Config{
		Name:            "test",
		ZeroPagePool:    platform.AddrRange{Start: 0x10, End: 0x10},
		FrameRegion:     platform.AddrRange{Start: 0x200, End: 0x400},
		Alignment:       1,
		ZPAutoThreshold: 100,
	}
}

func singleSlotFrame(directive ssair.ZPDirective, accessCount, loopDepth int) (*frame.Map, map[string][]frame.SlotInfo) {
	fm := &frame.Map{Funcs: map[string]*frame.FuncFrame{
		"f": {GroupID: 0, Slots: map[string]frame.SlotLocation{
			"x": {Kind: frame.LocStatic, Offset: 0},
		}},
	}}
	slots := map[string][]frame.SlotInfo{
		"f": {{
			LocalSlot:    ssair.LocalSlot{Name: "x", Kind: ssair.SlotLocal, Type: ssair.U8, Directive: directive},
			AccessCount:  accessCount,
			MaxLoopDepth: loopDepth,
		}},
	}
	return fm, slots
}

// Boundary scenario (spec.md §8.3): a @zp required u8 local succeeds
// when the pool has exactly one free byte of the right alignment.
func TestAllocate_RequiredSucceedsWithExactlyOneFreeByte(t *testing.T) {
	fm, slots := singleSlotFrame(ssair.ZPRequired, 1, 0)
	zm, errs := Allocate(fm, oneFreeByteConfig(), slots)
	require.Equal(t, 0, errs.Len())
	require.Equal(t, uint16(0x10), zm.Addr["f"]["x"])
	require.Equal(t, frame.LocZeroPage, fm.Funcs["f"].Slots["x"].Kind)
}

// Boundary scenario (spec.md §8.3): with zero free bytes, the same
// required slot fails with ZPRequiredUnsatisfiable.
func TestAllocate_RequiredFailsWithZeroFreeBytes(t *testing.T) {
	fm, slots := singleSlotFrame(ssair.ZPRequired, 1, 0)
	_, errs := Allocate(fm, zeroFreeByteConfig(), slots)
	require.Equal(t, 1, errs.Len())
	require.Contains(t, errs.Errs()[0].Error(), "ZPRequiredUnsatisfiable")
}

func TestAllocate_PreferredFallsBackSilentlyWhenFull(t *testing.T) {
	fm, slots := singleSlotFrame(ssair.ZPPreferred, 1, 0)
	zm, errs := Allocate(fm, zeroFreeByteConfig(), slots)
	require.Equal(t, 0, errs.Len())
	require.Empty(t, zm.Addr["f"])
	require.Equal(t, frame.LocStatic, fm.Funcs["f"].Slots["x"].Kind)
}

func TestAllocate_NoneDirectiveOnlyPromotedAboveThreshold(t *testing.T) {
	fm, slots := singleSlotFrame(ssair.ZPNone, 1, 0) // low score, below threshold.
	zm, errs := Allocate(fm, oneFreeByteConfig(), slots)
	require.Equal(t, 0, errs.Len())
	require.Empty(t, zm.Addr["f"])

	fmHot, slotsHot := singleSlotFrame(ssair.ZPNone, 5, 3) // deep in loops, high score.
	zmHot, errsHot := Allocate(fmHot, oneFreeByteConfig(), slotsHot)
	require.Equal(t, 0, errsHot.Len())
	require.NotEmpty(t, zmHot.Addr["f"])
}

func TestAllocate_RequiredOutranksPreferredForOneFreeByte(t *testing.T) {
	fm := &frame.Map{Funcs: map[string]*frame.FuncFrame{
		"f": {GroupID: 0, Slots: map[string]frame.SlotLocation{
			"req":  {Kind: frame.LocStatic, Offset: 0},
			"pref": {Kind: frame.LocStatic, Offset: 1},
		}},
	}}
	slots := map[string][]frame.SlotInfo{
		"f": {
			{LocalSlot: ssair.LocalSlot{Name: "pref", Kind: ssair.SlotLocal, Type: ssair.U8, Directive: ssair.ZPPreferred}, AccessCount: 100},
			{LocalSlot: ssair.LocalSlot{Name: "req", Kind: ssair.SlotLocal, Type: ssair.U8, Directive: ssair.ZPRequired}, AccessCount: 1},
		},
	}
	zm, errs := Allocate(fm, oneFreeByteConfig(), slots)
	require.Equal(t, 0, errs.Len())
	require.Contains(t, zm.Addr["f"], "req")
	require.NotContains(t, zm.Addr["f"], "pref")
}

// Coalescing-aware sharing (spec.md §4.4): two functions in the same
// coalescing group with a same-size slot at the same offset already
// share a frame-region byte, so promoting one promotes both to the
// same zero-page address.
func TestBuildRequests_MergesSameGroupSameOffsetSameSize(t *testing.T) {
	fm := &frame.Map{Funcs: map[string]*frame.FuncFrame{
		"a": {GroupID: 0, Slots: map[string]frame.SlotLocation{"x": {Kind: frame.LocStatic, Offset: 0}}},
		"b": {GroupID: 0, Slots: map[string]frame.SlotLocation{"y": {Kind: frame.LocStatic, Offset: 0}}},
	}}
	slots := map[string][]frame.SlotInfo{
		"a": {{LocalSlot: ssair.LocalSlot{Name: "x", Kind: ssair.SlotLocal, Type: ssair.U8, Directive: ssair.ZPRequired}, AccessCount: 1}},
		"b": {{LocalSlot: ssair.LocalSlot{Name: "y", Kind: ssair.SlotLocal, Type: ssair.U8, Directive: ssair.ZPRequired}, AccessCount: 1}},
	}
	zm, errs := Allocate(fm, oneFreeByteConfig(), slots)
	require.Equal(t, 0, errs.Len())
	require.Equal(t, zm.Addr["a"]["x"], zm.Addr["b"]["y"])
}

func TestScore_DirectiveOrdering(t *testing.T) {
	req := frame.SlotInfo{LocalSlot: ssair.LocalSlot{Type: ssair.U8, Directive: ssair.ZPRequired}, AccessCount: 1}
	pref := frame.SlotInfo{LocalSlot: ssair.LocalSlot{Type: ssair.U8, Directive: ssair.ZPPreferred}, AccessCount: 1}
	none := frame.SlotInfo{LocalSlot: ssair.LocalSlot{Type: ssair.U8, Directive: ssair.ZPNone}, AccessCount: 1}
	require.Greater(t, directiveRank(req.Directive), directiveRank(pref.Directive))
	require.Greater(t, directiveRank(pref.Directive), directiveRank(none.Directive))
	require.Greater(t, Score(req), Score(none))
}
