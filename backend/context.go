// Package backend holds the target-independent half of C5, ASM-IL
// lowering (spec.md §4.5): the Machine interface a concrete ISA
// backend (backend/m6502) implements, the Compiler that drives it over
// a whole module, and the PHI parallel-copy resolution spec.md §4.5/§9
// requires but never ties to one particular ISA.
package backend

import (
	"github.com/blendsdk/blend65/callgraph"
	"github.com/blendsdk/blend65/frame"
	"github.com/blendsdk/blend65/platform"
	"github.com/blendsdk/blend65/ssair"
)

// Context bundles everything C5 needs that was already computed by
// earlier stages: the FrameMap (C3, with C4's zero-page promotions
// folded in by Allocate's in-place rewrite), the call-graph analysis
// (C2, for recursive/thread-context flags the calling convention
// depends on), and the platform descriptor (mul/div helper cells,
// scratch region, hardware stack).
type Context struct {
	Module    *ssair.Module
	Frame     *frame.Map
	CallGraph *callgraph.Result
	Platform  platform.Config
}

// FuncFrame returns fn's already-allocated frame, or nil if none was
// recorded — callers treat that as an internal invariant violation,
// since every function C1 emits gets a FrameMap entry from C3.
func (c *Context) FuncFrame(fn *ssair.Function) *frame.FuncFrame {
	return c.Frame.Funcs[fn.Name]
}

// Home resolves value v's storage location within fn: its slot name
// (TempSlotName for an anonymous SSA value, or the bound name for a
// parameter — see ssair.Function.SlotName) and the concrete
// frame/zero-page location C3/C4 assigned that name.
func (c *Context) Home(fn *ssair.Function, v ssair.Value) (loc frame.SlotLocation, name string, ok bool) {
	ff := c.FuncFrame(fn)
	if ff == nil {
		return frame.SlotLocation{}, "", false
	}
	name = fn.SlotName(v.ID())
	loc, ok = ff.Slots[name]
	return loc, name, ok
}
