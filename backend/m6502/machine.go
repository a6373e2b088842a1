// Package m6502 implements C5's concrete target: lowering ssair into
// ASM-IL for the MOS 6502 (spec.md §4.5). It is the only Machine
// implementation spec.md's core needs, but is kept as its own package,
// behind the backend.Machine interface, exactly the way the teacher
// keeps arm64 lowering behind backend.Machine in its own
// backend/isa/arm64 package.
package m6502

import (
	"github.com/blendsdk/blend65/asmil"
	"github.com/blendsdk/blend65/backend"
	"github.com/blendsdk/blend65/compileerr"
	"github.com/blendsdk/blend65/frame"
	"github.com/blendsdk/blend65/ssair"
)

// framePointerSlot names the zero-page cell holding a recursive
// function's current software-stack frame pointer (spec.md §4.3); it
// is the fixed zero-page cell platform.Config.FramePointer, bound to
// this name by registerRuntimeSymbols, since indirect-indexed
// addressing only works out of zero page. Shared with backend.Compiler's symbol registration via
// backend.FramePointerSym, so both sides always agree on the name.
const framePointerSlot = backend.FramePointerSym

// Machine lowers one function's ssair into ASM-IL at a time. It holds
// no state across functions beyond what Reset clears.
type Machine struct {
	ctx *backend.Context

	fn  *ssair.Function
	ff  *frame.FuncFrame
	afn *asmil.Function
	blk *asmil.Block

	regs *backend.Tracker
	errs *compileerr.List

	// labelCounter mints unique synthetic block labels for comparison
	// boolean-materialization (see materializeFlagAsBool); reset per
	// function so labels stay short and deterministic run to run.
	labelCounter int
}

// New builds a Machine lowering against ctx. errs accumulates any
// InternalInvariantViolation found along the way (an unhandled opcode,
// a value with no recorded home) — conditions that should never arise
// on output already validated by ssair.Verify and callgraph.Analyze.
func New(ctx *backend.Context, errs *compileerr.List) *Machine {
	return &Machine{ctx: ctx, regs: backend.NewTracker(), errs: errs}
}

var _ backend.Machine = (*Machine)(nil)

// Reset clears per-function state.
func (m *Machine) Reset() {
	m.fn = nil
	m.ff = nil
	m.afn = nil
	m.blk = nil
	m.regs.InvalidateAll()
	m.labelCounter = 0
}

// StartFunction begins lowering fn.
func (m *Machine) StartFunction(fn *ssair.Function) *asmil.Function {
	m.fn = fn
	m.ff = m.ctx.FuncFrame(fn)
	m.afn = &asmil.Function{Name: fn.Name}
	return m.afn
}

// StartBlock begins lowering blk, including synthetic critical-edge
// detour blocks the Compiler fabricates (see backend.Compiler), which
// carry a Label but are not members of fn.Blocks.
func (m *Machine) StartBlock(blk *ssair.Block) *asmil.Block {
	ab := &asmil.Block{Label: blk.Label}
	m.afn.Blocks = append(m.afn.Blocks, ab)
	m.blk = ab
	// Nothing survives a block boundary in a register: every live
	// value has a fixed slot home, so a fresh block always reloads
	// from there rather than trusting a stale cache.
	m.regs.InvalidateAll()
	return ab
}

// EndBlock finishes the current block.
func (m *Machine) EndBlock() { m.blk = nil }

// EndFunction finishes and returns the current function.
func (m *Machine) EndFunction() *asmil.Function {
	f := m.afn
	m.afn = nil
	m.fn = nil
	m.ff = nil
	return f
}

func (m *Machine) emit(ins asmil.Instruction) { m.blk.Instrs = append(m.blk.Instrs, ins) }

func (m *Machine) fail(pos ssair.Pos, format string, args ...interface{}) {
	m.errs.Add(compileerr.Internal(compileerr.InternalInvariantViolation, pos, format, args...))
}

// home resolves v's slot name and location, reporting an internal
// error and returning ok=false if C3/C4 never recorded one.
func (m *Machine) home(v ssair.Value, pos ssair.Pos) (frame.SlotLocation, string, bool) {
	loc, name, ok := m.ctx.Home(m.fn, v)
	if !ok {
		m.fail(pos, "value v%d has no recorded frame/zero-page location", v.ID())
	}
	return loc, name, ok
}

func loadMnemonicFor(r backend.Reg) asmil.Mnemonic {
	switch r {
	case backend.RegX:
		return asmil.LDX
	case backend.RegY:
		return asmil.LDY
	default:
		return asmil.LDA
	}
}

func storeMnemonicFor(r backend.Reg) asmil.Mnemonic {
	switch r {
	case backend.RegX:
		return asmil.STX
	case backend.RegY:
		return asmil.STY
	default:
		return asmil.STA
	}
}

// loadByte loads the one-byte slot name into register dst, skipping
// the load entirely if dst already caches srcID (the Tracker's only
// job: avoid an immediately-redundant reload within one block).
func (m *Machine) loadByte(dst backend.Reg, srcID ssair.ValueID, loc frame.SlotLocation, name string, pos ssair.Pos) {
	if held, ok := m.regs.Holds(dst); ok && held == srcID {
		return
	}
	switch loc.Kind {
	case frame.LocStackRelative:
		m.emit(asmil.New(asmil.LDY, asmil.Imm(uint8(loc.Offset)), pos))
		m.emit(asmil.New(asmil.LDA, asmil.IndirectY(framePointerSlot), pos))
		m.regs.Invalidate(backend.RegY)
		switch dst {
		case backend.RegX:
			m.emit(asmil.NewImplied(asmil.TAX, pos))
		case backend.RegY:
			m.emit(asmil.NewImplied(asmil.TAY, pos))
		}
	case frame.LocZeroPage:
		m.emit(asmil.New(loadMnemonicFor(dst), asmil.ZP(name), pos))
	default:
		m.emit(asmil.New(loadMnemonicFor(dst), asmil.Abs(name), pos))
	}
	m.regs.Bind(dst, srcID)
}

// storeByte stores register src to the one-byte slot name.
func (m *Machine) storeByte(src backend.Reg, dstID ssair.ValueID, loc frame.SlotLocation, name string, pos ssair.Pos) {
	switch loc.Kind {
	case frame.LocStackRelative:
		if src != backend.RegA {
			switch src {
			case backend.RegX:
				m.emit(asmil.NewImplied(asmil.TXA, pos))
			case backend.RegY:
				m.emit(asmil.NewImplied(asmil.TYA, pos))
			}
		}
		m.emit(asmil.New(asmil.LDY, asmil.Imm(uint8(loc.Offset)), pos))
		m.emit(asmil.New(asmil.STA, asmil.IndirectY(framePointerSlot), pos))
		m.regs.Invalidate(backend.RegY)
	case frame.LocZeroPage:
		m.emit(asmil.New(storeMnemonicFor(src), asmil.ZP(name), pos))
	default:
		m.emit(asmil.New(storeMnemonicFor(src), asmil.Abs(name), pos))
	}
	m.regs.Bind(src, dstID)
}

// loadWord loads a two-byte (u16/ptr) slot into the A(lo)/X(hi) pair
// via the LOAD_WORD macro (spec.md §4.5), which the textual emitter
// expands into the two LDA/LDA-at-consecutive-addresses this
// addressing mode needs; stack-relative words instead go through two
// explicit indirect-indexed byte loads, since the macro's single
// symbolic operand has nowhere to carry a frame-pointer-relative
// offset.
func (m *Machine) loadWord(srcID ssair.ValueID, loc frame.SlotLocation, name string, pos ssair.Pos) {
	if loc.Kind == frame.LocStackRelative {
		m.emit(asmil.New(asmil.LDY, asmil.Imm(uint8(loc.Offset)), pos))
		m.emit(asmil.New(asmil.LDA, asmil.IndirectY(framePointerSlot), pos))
		m.emit(asmil.New(asmil.LDY, asmil.Imm(uint8(loc.Offset+1)), pos))
		m.emit(asmil.New(asmil.LDA, asmil.IndirectY(framePointerSlot), pos))
		m.emit(asmil.NewImplied(asmil.TAX, pos))
		m.regs.InvalidateAll()
		return
	}
	op := asmil.ZP(name)
	if loc.Kind != frame.LocZeroPage {
		op = asmil.Abs(name)
	}
	m.emit(asmil.New(asmil.MacroLoadWord, op, pos))
	m.regs.InvalidateAll()
	m.regs.Bind(backend.RegA, srcID)
}

// storeWord is loadWord's mirror: A(lo)/X(hi) to a two-byte slot.
func (m *Machine) storeWord(dstID ssair.ValueID, loc frame.SlotLocation, name string, pos ssair.Pos) {
	if loc.Kind == frame.LocStackRelative {
		m.emit(asmil.New(asmil.LDY, asmil.Imm(uint8(loc.Offset)), pos))
		m.emit(asmil.New(asmil.STA, asmil.IndirectY(framePointerSlot), pos))
		m.emit(asmil.NewImplied(asmil.TXA, pos))
		m.emit(asmil.New(asmil.LDY, asmil.Imm(uint8(loc.Offset+1)), pos))
		m.emit(asmil.New(asmil.STA, asmil.IndirectY(framePointerSlot), pos))
		m.regs.InvalidateAll()
		return
	}
	op := asmil.ZP(name)
	if loc.Kind != frame.LocZeroPage {
		op = asmil.Abs(name)
	}
	m.emit(asmil.New(asmil.MacroStoreWord, op, pos))
	m.regs.Bind(backend.RegA, dstID)
}

// loadValue dispatches to loadByte/loadWord by t's width.
func (m *Machine) loadValue(dst backend.Reg, id ssair.ValueID, loc frame.SlotLocation, name string, t ssair.Type, pos ssair.Pos) {
	if t.IsWord() {
		m.loadWord(id, loc, name, pos)
		return
	}
	m.loadByte(dst, id, loc, name, pos)
}

// storeValue dispatches to storeByte/storeWord by t's width.
func (m *Machine) storeValue(src backend.Reg, id ssair.ValueID, loc frame.SlotLocation, name string, t ssair.Type, pos ssair.Pos) {
	if t.IsWord() {
		m.storeWord(id, loc, name, pos)
		return
	}
	m.storeByte(src, id, loc, name, pos)
}
