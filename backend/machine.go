package backend

import (
	"github.com/blendsdk/blend65/asmil"
	"github.com/blendsdk/blend65/ssair"
)

// Copy is one parallel-copy move — dst := src — both named by frame-
// slot name rather than by register, since every PHI operand already
// has a fixed home assigned by C3/C4 (spec.md §4.5's PHI resolution).
type Copy struct {
	Dst, Src string
	Type     ssair.Type
}

// Machine is a backend for one target ISA. spec.md only ever
// instantiates backend/m6502's Machine, but keeping the interface
// separate — grounded on the teacher's backend.Machine — is what lets
// Compiler's per-function, per-block iteration stay free of any
// 6502-specific detail.
type Machine interface {
	// Reset clears per-function state, readying the Machine to lower
	// the next function.
	Reset()

	// StartFunction begins lowering fn and returns the asmil.Function
	// that subsequent StartBlock/LowerInstr/EndBlock calls append to.
	StartFunction(fn *ssair.Function) *asmil.Function

	// StartBlock begins lowering blk, returning the asmil.Block that
	// subsequent LowerInstr/LowerParallelCopy calls append to. Unlike
	// the teacher's Machine, which lowers a block's instructions in
	// reverse (last to first) to feed its liveness-driven register
	// allocator, m6502 lowers forward: spec.md §4.5's load/op/store
	// recipe reads naturally in program order, and every value's
	// location is already fixed before lowering starts, so there is no
	// liveness scan to drive backward.
	StartBlock(blk *ssair.Block) *asmil.Block

	// LowerInstr lowers one ssair instruction — including a block's
	// PHIs (a no-op; see LowerParallelCopy) and its terminator — into
	// zero or more instructions appended to the current block.
	LowerInstr(ins *ssair.Instruction)

	// LowerParallelCopy emits an already-sequenced (cycle-broken) list
	// of moves at the end of the current block, immediately before its
	// terminator is lowered — the predecessor-inserted move sequence
	// that resolves a successor's PHIs (spec.md §4.5/§9).
	LowerParallelCopy(copies []Copy)

	// EndBlock finishes the current block.
	EndBlock()

	// EndFunction finishes the current function and returns it.
	EndFunction() *asmil.Function
}
