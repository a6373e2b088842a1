package m6502

import (
	"github.com/blendsdk/blend65/asmil"
	"github.com/blendsdk/blend65/backend"
	"github.com/blendsdk/blend65/ssair"
)

// lowerCall lowers a direct call (spec.md §4.5's calling convention):
// every argument is written straight into the callee's statically
// allocated parameter slot, since a non-recursive callee's address is
// fixed and the caller can never be executing it concurrently with
// itself. A recursive callee additionally gets its software-stack
// frame pushed/popped around the JSR (spec.md §4.3); any return value
// comes back in A (byte/bool) or A/X (word/ptr), and the callee is
// free to clobber A/X/Y, so every register binding is invalidated
// immediately after the call.
func (m *Machine) lowerCall(ins *ssair.Instruction) {
	callee := m.ctx.Module.FunctionByName(ins.Name)
	if callee == nil {
		m.fail(ins.Pos, "call to unknown function %q", ins.Name)
		return
	}
	calleeFrame := m.ctx.FuncFrame(callee)
	if calleeFrame == nil {
		m.fail(ins.Pos, "function %q has no recorded frame", ins.Name)
		return
	}
	recursive := m.ctx.CallGraph.Recursive[ins.Name]
	if recursive {
		m.emit(asmil.New(asmil.MacroPushFrame, asmil.Abs(ins.Name), ins.Pos))
		m.regs.InvalidateAll()
	}

	for i, arg := range ins.Args {
		loc0, name0, ok0 := m.home(arg, ins.Pos)
		if !ok0 {
			return
		}
		param := callee.Params[i]
		dst, ok := calleeFrame.Slots[param.Name]
		if !ok {
			m.fail(ins.Pos, "parameter %q of %q has no recorded frame location", param.Name, ins.Name)
			return
		}
		m.loadValue(backend.RegA, arg.ID(), loc0, name0, param.Type, ins.Pos)
		m.storeValue(backend.RegA, arg.ID(), dst, param.Name, param.Type, ins.Pos)
	}

	m.emit(asmil.New(asmil.JSR, asmil.Abs(ins.Name), ins.Pos))
	m.regs.InvalidateAll()

	if ins.Result.Valid() {
		locR, nameR, okR := m.home(ins.Result, ins.Pos)
		if !okR {
			return
		}
		m.storeValue(backend.RegA, ins.Result.ID(), locR, nameR, ins.Result.Type(), ins.Pos)
	}

	if recursive {
		m.emit(asmil.New(asmil.MacroPopFrame, asmil.Abs(ins.Name), ins.Pos))
		m.regs.InvalidateAll()
	}
}

// lowerCallIndirect lowers a call through a runtime-computed function
// pointer. Direct calls can write arguments straight into the
// callee's own static parameter slots because the callee is known at
// lowering time; an indirect callee is chosen only at runtime, so its
// slot addresses aren't available here. spec.md §9 leaves the
// argument-passing convention for call_indirect, like the trampoline
// itself, an implementation detail — this lowers byte arguments
// through the three fixed scratch bytes (scratchByte0-2), at most one
// word argument through the mul helper's operand pair (idle during any
// call), and the target through scratchPtr for the `JMPTO` trampoline. A target with more
// arguments than these cells cover is rejected as an internal error;
// every real caller in this core passes at most a couple of operands.
func (m *Machine) lowerCallIndirect(ins *ssair.Instruction) {
	target := ins.Args[0]
	args := ins.Args[1:]
	locT, nameT, okT := m.home(target, ins.Pos)
	if !okT {
		return
	}

	byteCells := []string{scratchByte0, scratchByte1, scratchByte2}
	byteIdx := 0
	wordUsed := false
	for _, arg := range args {
		loc0, name0, ok0 := m.home(arg, ins.Pos)
		if !ok0 {
			return
		}
		if arg.Type().IsWord() {
			if wordUsed {
				m.fail(ins.Pos, "call_indirect: more than one word argument is not supported")
				return
			}
			wordUsed = true
			m.loadWord(arg.ID(), loc0, name0, ins.Pos)
			m.emit(asmil.New(asmil.MacroStoreWord, asmil.ZP(backend.MulOperandLoSym), ins.Pos))
			m.regs.InvalidateAll()
			continue
		}
		if byteIdx >= len(byteCells) {
			m.fail(ins.Pos, "call_indirect: more than %d byte arguments is not supported", len(byteCells))
			return
		}
		m.loadByte(backend.RegA, arg.ID(), loc0, name0, ins.Pos)
		m.emit(asmil.New(asmil.STA, asmil.ZP(byteCells[byteIdx]), ins.Pos))
		m.regs.InvalidateAll()
		byteIdx++
	}

	m.loadWord(target.ID(), locT, nameT, ins.Pos)
	m.emit(asmil.New(asmil.MacroStoreWord, asmil.ZP(scratchPtr), ins.Pos))
	m.regs.InvalidateAll()
	m.emit(asmil.New(asmil.MacroCallIndirect, asmil.ZP(scratchPtr), ins.Pos))
	m.regs.InvalidateAll()

	if ins.Result.Valid() {
		locR, nameR, okR := m.home(ins.Result, ins.Pos)
		if !okR {
			return
		}
		m.storeValue(backend.RegA, ins.Result.ID(), locR, nameR, ins.Result.Type(), ins.Pos)
	}
}

// lowerReturn lowers a return, loading the optional value into A
// (byte/bool) or A/X (word/ptr) before the RTS; a void return lowers
// to exactly RTS, which is what spec.md §8.3's empty-function boundary
// test expects.
func (m *Machine) lowerReturn(ins *ssair.Instruction) {
	if len(ins.Args) == 0 {
		m.emit(asmil.NewImplied(asmil.RTS, ins.Pos))
		return
	}
	arg := ins.Args[0]
	loc0, name0, ok0 := m.home(arg, ins.Pos)
	if !ok0 {
		return
	}
	m.loadValue(backend.RegA, arg.ID(), loc0, name0, arg.Type(), ins.Pos)
	m.emit(asmil.NewImplied(asmil.RTS, ins.Pos))
}

// lowerMulDivMod lowers mul/div/mod to the fixed runtime-helper
// calling convention (spec.md §4.5): the left operand is written to
// the MulOperandLo/Hi or DivOperandLo/Hi cells (mod reuses the div
// cells, since the two helpers are never live at once), the right
// operand travels in A (byte) or A/X (word), and the macro's Comment
// records the result type so the (out-of-scope) emitter can pick the
// matching byte/word helper variant. The result comes back the same
// way a direct call's would.
func (m *Machine) lowerMulDivMod(ins *ssair.Instruction, macro asmil.Mnemonic) {
	arg0, arg1 := ins.Args[0], ins.Args[1]
	loc0, name0, ok0 := m.home(arg0, ins.Pos)
	loc1, name1, ok1 := m.home(arg1, ins.Pos)
	locR, nameR, okR := m.home(ins.Result, ins.Pos)
	if !ok0 || !ok1 || !okR {
		return
	}

	operandLo := backend.MulOperandLoSym
	if macro != asmil.MacroMul {
		operandLo = backend.DivOperandLoSym
	}

	t := ins.Result.Type()
	if t.IsWord() {
		m.loadWord(arg0.ID(), loc0, name0, ins.Pos)
		m.emit(asmil.New(asmil.MacroStoreWord, asmil.ZP(operandLo), ins.Pos))
		m.loadWord(arg1.ID(), loc1, name1, ins.Pos)
	} else {
		m.loadByte(backend.RegA, arg0.ID(), loc0, name0, ins.Pos)
		m.emit(asmil.New(asmil.STA, asmil.ZP(operandLo), ins.Pos))
		m.loadByte(backend.RegA, arg1.ID(), loc1, name1, ins.Pos)
	}
	m.regs.InvalidateAll()

	call := asmil.NewImplied(macro, ins.Pos)
	call.Comment = t.String()
	m.emit(call)
	m.regs.InvalidateAll()

	m.storeValue(backend.RegA, ins.Result.ID(), locR, nameR, t, ins.Pos)
}
