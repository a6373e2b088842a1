package m6502

import (
	"github.com/blendsdk/blend65/asmil"
	"github.com/blendsdk/blend65/backend"
	"github.com/blendsdk/blend65/frame"
	"github.com/blendsdk/blend65/ssair"
)

// LowerInstr implements backend.Machine. Every opcode spec.md §3.5
// names is handled except logical_and/logical_or, which C1 lowers to
// branches before C5 runs; they reach the default case and are
// reported as unhandled. The handled set includes opcodes the current
// frontend never emits (load_var/store_var, load_mem/store_mem).
func (m *Machine) LowerInstr(ins *ssair.Instruction) {
	switch ins.Opcode {
	case ssair.OpPhi:
		// Resolved entirely by parallel-copy moves inserted by
		// backend.Compiler along each predecessor edge; the PHI itself
		// lowers to nothing.
	case ssair.OpConst:
		m.lowerConst(ins)
	case ssair.OpCopy:
		m.lowerCopy(ins)
	case ssair.OpLoadVar:
		m.lowerLoadVar(ins)
	case ssair.OpStoreVar:
		m.lowerStoreVar(ins)
	case ssair.OpMapLoadField:
		m.lowerMapLoadField(ins)
	case ssair.OpMapStoreField:
		m.lowerMapStoreField(ins)
	case ssair.OpMapLoadRange:
		m.lowerMapLoadRange(ins)
	case ssair.OpMapStoreRange:
		m.lowerMapStoreRange(ins)
	case ssair.OpLoadMem:
		m.lowerLoadMem(ins)
	case ssair.OpStoreMem:
		m.lowerStoreMem(ins)
	case ssair.OpAddrOf:
		m.lowerAddrOf(ins)
	case ssair.OpLen:
		m.lowerLen(ins)
	case ssair.OpAdd:
		m.lowerAdd(ins)
	case ssair.OpSub:
		m.lowerSub(ins)
	case ssair.OpMul:
		m.lowerMulDivMod(ins, asmil.MacroMul)
	case ssair.OpDiv:
		m.lowerMulDivMod(ins, asmil.MacroDiv)
	case ssair.OpMod:
		m.lowerMulDivMod(ins, asmil.MacroMod)
	case ssair.OpNeg:
		m.lowerNeg(ins)
	case ssair.OpAnd:
		m.lowerBitwise(ins, asmil.AND)
	case ssair.OpOr:
		m.lowerBitwise(ins, asmil.ORA)
	case ssair.OpXor:
		m.lowerBitwise(ins, asmil.EOR)
	case ssair.OpShl:
		m.lowerShift(ins, asmil.ASL)
	case ssair.OpShr:
		m.lowerShift(ins, asmil.LSR)
	case ssair.OpNot:
		m.lowerNot(ins)
	case ssair.OpEq:
		m.lowerCompare(ins, condEq)
	case ssair.OpNe:
		m.lowerCompare(ins, condNe)
	case ssair.OpLt:
		m.lowerCompare(ins, condLt)
	case ssair.OpGe:
		m.lowerCompare(ins, condGe)
	case ssair.OpGt:
		m.lowerCompareSwapped(ins, condLt)
	case ssair.OpLe:
		m.lowerCompareSwapped(ins, condGe)
	case ssair.OpZext:
		m.lowerZext(ins)
	case ssair.OpTruncate:
		m.lowerTruncate(ins)
	case ssair.OpBoolToByte:
		m.lowerCopy(ins)
	case ssair.OpByteToBool:
		m.lowerByteToBool(ins)
	case ssair.OpPeek:
		m.lowerPeek(ins)
	case ssair.OpPoke:
		m.lowerPoke(ins)
	case ssair.OpBr:
		m.emit(asmil.New(asmil.JMP, asmil.Rel(ins.Targets[0]), ins.Pos))
	case ssair.OpBrIf:
		m.lowerBrIf(ins)
	case ssair.OpReturn:
		m.lowerReturn(ins)
	case ssair.OpCall:
		m.lowerCall(ins)
	case ssair.OpCallIndirect:
		m.lowerCallIndirect(ins)
	default:
		m.fail(ins.Pos, "unhandled opcode %s", ins.Opcode)
	}
}

func (m *Machine) homeName(name string, pos ssair.Pos) (frame.SlotLocation, bool) {
	if m.ff == nil {
		m.fail(pos, "variable %q: no frame allocated for function %s", name, m.fn.Name)
		return frame.SlotLocation{}, false
	}
	loc, ok := m.ff.Slots[name]
	if !ok {
		m.fail(pos, "variable %q has no recorded frame location", name)
	}
	return loc, ok
}

// storeConst emits the byte or byte-pair immediate sequence for a
// compile-time constant, then stores it to the result's home.
func (m *Machine) storeConst(t ssair.Type, v uint16, locR frame.SlotLocation, nameR string, pos ssair.Pos) {
	m.emit(asmil.New(asmil.LDA, asmil.Imm(uint8(v)), pos))
	if !t.IsWord() {
		m.regs.InvalidateAll()
		m.storeByteTo(locR, nameR, pos)
		return
	}
	m.storeWordResultTo(locR, nameR, pos, func() {
		m.emit(asmil.New(asmil.LDA, asmil.Imm(uint8(v>>8)), pos))
	})
}

func (m *Machine) lowerConst(ins *ssair.Instruction) {
	locR, nameR, okR := m.home(ins.Result, ins.Pos)
	if !okR {
		return
	}
	var v uint16
	switch ins.Const.Type.Kind {
	case ssair.KindI1:
		if ins.Const.Bool {
			v = 1
		}
	case ssair.KindU16, ssair.KindPtr:
		v = ins.Const.U16
	default:
		v = uint16(ins.Const.U8)
	}
	m.storeConst(ins.Const.Type, v, locR, nameR, ins.Pos)
}

func (m *Machine) lowerCopy(ins *ssair.Instruction) {
	arg := ins.Args[0]
	loc0, name0, ok0 := m.home(arg, ins.Pos)
	locR, nameR, okR := m.home(ins.Result, ins.Pos)
	if !ok0 || !okR {
		return
	}
	t := arg.Type()
	m.loadValue(backend.RegA, arg.ID(), loc0, name0, t, ins.Pos)
	m.storeValue(backend.RegA, ins.Result.ID(), locR, nameR, t, ins.Pos)
}

func (m *Machine) lowerLoadVar(ins *ssair.Instruction) {
	loc, ok := m.homeName(ins.Name, ins.Pos)
	locR, nameR, okR := m.home(ins.Result, ins.Pos)
	if !ok || !okR {
		return
	}
	t := ins.Result.Type()
	m.loadValue(backend.RegA, ins.Result.ID(), loc, ins.Name, t, ins.Pos)
	m.storeValue(backend.RegA, ins.Result.ID(), locR, nameR, t, ins.Pos)
}

func (m *Machine) lowerStoreVar(ins *ssair.Instruction) {
	arg := ins.Args[0]
	loc0, name0, ok0 := m.home(arg, ins.Pos)
	dst, ok := m.homeName(ins.Name, ins.Pos)
	if !ok0 || !ok {
		return
	}
	t := arg.Type()
	m.loadValue(backend.RegA, arg.ID(), loc0, name0, t, ins.Pos)
	m.storeValue(backend.RegA, arg.ID(), dst, ins.Name, t, ins.Pos)
}

// mapFieldSymbol is the data-section symbol name registered by
// backend.registerRuntimeSymbols for a @map field access: the map name
// alone for a simple map (field is always "" there), or
// "map.field" for one field of a struct-layout map.
func mapFieldSymbol(mapName, field string) string {
	if field == "" {
		return mapName
	}
	return mapName + "." + field
}

func (m *Machine) lowerMapLoadField(ins *ssair.Instruction) {
	sym := mapFieldSymbol(ins.Name, ins.Field)
	locR, nameR, okR := m.home(ins.Result, ins.Pos)
	if !okR {
		return
	}
	t := ins.Result.Type()
	if t.IsWord() {
		m.emit(asmil.New(asmil.MacroLoadWord, asmil.Abs(sym), ins.Pos))
		m.regs.InvalidateAll()
		m.regs.Bind(backend.RegA, ins.Result.ID())
		m.storeValue(backend.RegA, ins.Result.ID(), locR, nameR, t, ins.Pos)
		return
	}
	m.emit(asmil.New(asmil.LDA, asmil.Abs(sym), ins.Pos))
	m.regs.InvalidateAll()
	m.storeByte(backend.RegA, ins.Result.ID(), locR, nameR, ins.Pos)
}

func (m *Machine) lowerMapStoreField(ins *ssair.Instruction) {
	sym := mapFieldSymbol(ins.Name, ins.Field)
	arg := ins.Args[0]
	loc0, name0, ok0 := m.home(arg, ins.Pos)
	if !ok0 {
		return
	}
	t := arg.Type()
	if t.IsWord() {
		m.loadWord(arg.ID(), loc0, name0, ins.Pos)
		m.emit(asmil.New(asmil.MacroStoreWord, asmil.Abs(sym), ins.Pos))
		return
	}
	m.loadByte(backend.RegA, arg.ID(), loc0, name0, ins.Pos)
	m.emit(asmil.New(asmil.STA, asmil.Abs(sym), ins.Pos))
}

// lowerMapLoadRange exploits absolute,X-indexed addressing for a
// one-byte element (spec.md §4.5's zero-overhead `@map range` access):
// the index travels in X and the element load is a single instruction,
// LDA base,X. Word-element ranges double the index in A (ASL A) and
// then index with X as well, reading the second byte after an INX,
// since a 2-byte stride needs the index scaled.
func (m *Machine) lowerMapLoadRange(ins *ssair.Instruction) {
	md := m.ctx.Module.MapByName(ins.Name)
	if md == nil {
		m.fail(ins.Pos, "map %q not found", ins.Name)
		return
	}
	idx := ins.Args[0]
	locIdx, nameIdx, okIdx := m.home(idx, ins.Pos)
	locR, nameR, okR := m.home(ins.Result, ins.Pos)
	if !okIdx || !okR {
		return
	}
	t := ins.Result.Type()
	if !t.IsWord() {
		m.loadByte(backend.RegX, idx.ID(), locIdx, nameIdx, ins.Pos)
		m.emit(asmil.New(asmil.LDA, asmil.AbsX(ins.Name), ins.Pos))
		m.regs.InvalidateAll()
		m.storeByte(backend.RegA, ins.Result.ID(), locR, nameR, ins.Pos)
		return
	}
	// Word element: scale the index by 2 in A, transfer to X, then load
	// two consecutive bytes at base+2*idx and base+2*idx+1.
	m.loadByte(backend.RegA, idx.ID(), locIdx, nameIdx, ins.Pos)
	m.emit(asmil.New(asmil.ASL, asmil.Acc(), ins.Pos))
	m.emit(asmil.NewImplied(asmil.TAX, ins.Pos))
	m.emit(asmil.New(asmil.LDA, asmil.AbsX(ins.Name), ins.Pos))
	m.storeWordResultTo(locR, nameR, ins.Pos, func() {
		m.emit(asmil.NewImplied(asmil.INX, ins.Pos))
		m.emit(asmil.New(asmil.LDA, asmil.AbsX(ins.Name), ins.Pos))
	})
}

func (m *Machine) lowerMapStoreRange(ins *ssair.Instruction) {
	md := m.ctx.Module.MapByName(ins.Name)
	if md == nil {
		m.fail(ins.Pos, "map %q not found", ins.Name)
		return
	}
	idx, val := ins.Args[0], ins.Args[1]
	locIdx, nameIdx, okIdx := m.home(idx, ins.Pos)
	locV, nameV, okV := m.home(val, ins.Pos)
	if !okIdx || !okV {
		return
	}
	t := val.Type()
	if !t.IsWord() {
		m.loadByte(backend.RegX, idx.ID(), locIdx, nameIdx, ins.Pos)
		m.loadByte(backend.RegA, val.ID(), locV, nameV, ins.Pos)
		m.emit(asmil.New(asmil.STA, asmil.AbsX(ins.Name), ins.Pos))
		return
	}
	m.loadByte(backend.RegA, idx.ID(), locIdx, nameIdx, ins.Pos)
	m.emit(asmil.New(asmil.ASL, asmil.Acc(), ins.Pos))
	m.emit(asmil.NewImplied(asmil.TAX, ins.Pos))
	m.regs.InvalidateAll()
	lo, hi := m.wordOperandBytes(locV, nameV, scratchByte0, scratchByte1, ins.Pos)
	m.emit(asmil.New(asmil.LDA, lo, ins.Pos))
	m.emit(asmil.New(asmil.STA, asmil.AbsX(ins.Name), ins.Pos))
	m.emit(asmil.NewImplied(asmil.INX, ins.Pos))
	m.emit(asmil.New(asmil.LDA, hi, ins.Pos))
	m.emit(asmil.New(asmil.STA, asmil.AbsX(ins.Name), ins.Pos))
	m.regs.InvalidateAll()
}

// lowerLoadMem/lowerStoreMem lower a raw-address access identically to
// peek/poke: the ssair contract draws no distinction between them
// beyond naming (spec.md §3.5 keeps load_mem/store_mem as the
// internal-IL spelling the optimizer may introduce, and peek/poke as
// the source-level spelling), so both funnel into the same lowering.
func (m *Machine) lowerLoadMem(ins *ssair.Instruction) { m.lowerPeek(ins) }

func (m *Machine) lowerStoreMem(ins *ssair.Instruction) { m.lowerPoke(ins) }

func (m *Machine) lowerPeek(ins *ssair.Instruction) {
	addr := ins.Args[0]
	locA, nameA, okA := m.home(addr, ins.Pos)
	locR, nameR, okR := m.home(ins.Result, ins.Pos)
	if !okA || !okR {
		return
	}
	m.loadWord(addr.ID(), locA, nameA, ins.Pos)
	m.regs.InvalidateAll()
	ptrLo, ptrHi := wordBytes(scratchPtr)
	m.emit(asmil.New(asmil.STA, asmil.ZP(ptrLo), ins.Pos))
	m.emit(asmil.NewImplied(asmil.TXA, ins.Pos))
	m.emit(asmil.New(asmil.STA, asmil.ZP(ptrHi), ins.Pos))
	m.emit(asmil.New(asmil.LDY, asmil.Imm(0), ins.Pos))
	m.emit(asmil.New(asmil.LDA, asmil.IndirectY(ptrLo), ins.Pos))
	m.regs.InvalidateAll()
	m.storeByte(backend.RegA, ins.Result.ID(), locR, nameR, ins.Pos)
}

func (m *Machine) lowerPoke(ins *ssair.Instruction) {
	addr, val := ins.Args[0], ins.Args[1]
	locA, nameA, okA := m.home(addr, ins.Pos)
	locV, nameV, okV := m.home(val, ins.Pos)
	if !okA || !okV {
		return
	}
	m.loadByte(backend.RegA, val.ID(), locV, nameV, ins.Pos)
	m.emit(asmil.New(asmil.STA, asmil.ZP(scratchByte2), ins.Pos))
	m.loadWord(addr.ID(), locA, nameA, ins.Pos)
	m.regs.InvalidateAll()
	ptrLo, ptrHi := wordBytes(scratchPtr)
	m.emit(asmil.New(asmil.STA, asmil.ZP(ptrLo), ins.Pos))
	m.emit(asmil.NewImplied(asmil.TXA, ins.Pos))
	m.emit(asmil.New(asmil.STA, asmil.ZP(ptrHi), ins.Pos))
	m.emit(asmil.New(asmil.LDY, asmil.Imm(0), ins.Pos))
	m.emit(asmil.New(asmil.LDA, asmil.ZP(scratchByte2), ins.Pos))
	m.emit(asmil.New(asmil.STA, asmil.IndirectY(ptrLo), ins.Pos))
	m.regs.InvalidateAll()
}

func (m *Machine) lowerAddrOf(ins *ssair.Instruction) {
	locR, nameR, okR := m.home(ins.Result, ins.Pos)
	if !okR {
		return
	}
	if m.ctx.Module.FunctionByName(ins.Name) != nil {
		m.emit(asmil.New(asmil.LDA, asmil.ImmLo(ins.Name), ins.Pos))
		m.storeWordResultTo(locR, nameR, ins.Pos, func() {
			m.emit(asmil.New(asmil.LDA, asmil.ImmHi(ins.Name), ins.Pos))
		})
		return
	}
	loc, ok := m.homeName(ins.Name, ins.Pos)
	if !ok {
		return
	}
	if loc.Kind == frame.LocStackRelative {
		m.fail(ins.Pos, "cannot take address of %q: lives in a recursive function's software-stack frame, which has no static address", ins.Name)
		return
	}
	m.emit(asmil.New(asmil.LDA, asmil.ImmLo(ins.Name), ins.Pos))
	m.storeWordResultTo(locR, nameR, ins.Pos, func() {
		m.emit(asmil.New(asmil.LDA, asmil.ImmHi(ins.Name), ins.Pos))
	})
}

func (m *Machine) lowerLen(ins *ssair.Instruction) {
	slot := m.fn.SlotByName(ins.Name)
	if slot == nil || slot.Type.Kind != ssair.KindArray {
		m.fail(ins.Pos, "len: %q is not an array slot", ins.Name)
		return
	}
	locR, nameR, okR := m.home(ins.Result, ins.Pos)
	if !okR {
		return
	}
	m.storeConst(ins.Result.Type(), uint16(slot.Type.Len), locR, nameR, ins.Pos)
}

func (m *Machine) lowerAdd(ins *ssair.Instruction) {
	carry := false
	if ins.Result.Type().IsWord() {
		m.lowerArithWord(ins, asmil.ADC, carry)
		return
	}
	m.lowerArithByte(ins, asmil.ADC, &carry)
}

func (m *Machine) lowerSub(ins *ssair.Instruction) {
	carry := true
	if ins.Result.Type().IsWord() {
		m.lowerArithWord(ins, asmil.SBC, carry)
		return
	}
	m.lowerArithByte(ins, asmil.SBC, &carry)
}

func (m *Machine) lowerBitwise(ins *ssair.Instruction, mnemonic asmil.Mnemonic) {
	if ins.Result.Type().IsWord() {
		m.lowerBitwiseWord(ins, mnemonic)
		return
	}
	m.lowerArithByte(ins, mnemonic, nil)
}

func (m *Machine) lowerNeg(ins *ssair.Instruction) {
	arg := ins.Args[0]
	loc0, name0, ok0 := m.home(arg, ins.Pos)
	locR, nameR, okR := m.home(ins.Result, ins.Pos)
	if !ok0 || !okR {
		return
	}
	if !arg.Type().IsWord() {
		op0 := m.directByteOperand(loc0, name0, scratchByte0, ins.Pos)
		m.emit(asmil.NewImplied(asmil.SEC, ins.Pos))
		m.emit(asmil.New(asmil.LDA, asmil.Imm(0), ins.Pos))
		m.emit(asmil.New(asmil.SBC, op0, ins.Pos))
		m.regs.InvalidateAll()
		m.storeByte(backend.RegA, ins.Result.ID(), locR, nameR, ins.Pos)
		return
	}
	lo0, hi0 := m.wordOperandBytes(loc0, name0, scratchByte0, scratchByte1, ins.Pos)
	m.emit(asmil.NewImplied(asmil.SEC, ins.Pos))
	m.emit(asmil.New(asmil.LDA, asmil.Imm(0), ins.Pos))
	m.emit(asmil.New(asmil.SBC, lo0, ins.Pos))
	m.storeWordResultTo(locR, nameR, ins.Pos, func() {
		m.emit(asmil.New(asmil.LDA, asmil.Imm(0), ins.Pos))
		m.emit(asmil.New(asmil.SBC, hi0, ins.Pos))
	})
}

func (m *Machine) lowerNot(ins *ssair.Instruction) {
	arg := ins.Args[0]
	loc0, name0, ok0 := m.home(arg, ins.Pos)
	locR, nameR, okR := m.home(ins.Result, ins.Pos)
	if !ok0 || !okR {
		return
	}
	m.loadByte(backend.RegA, arg.ID(), loc0, name0, ins.Pos)
	m.emit(asmil.New(asmil.EOR, asmil.Imm(1), ins.Pos))
	m.regs.InvalidateAll()
	m.storeByte(backend.RegA, ins.Result.ID(), locR, nameR, ins.Pos)
}

func (m *Machine) lowerCompare(ins *ssair.Instruction, cond condBranch) {
	if ins.Args[0].Type().IsWord() {
		switch cond {
		case condEq:
			m.lowerCompareWordEq(ins, true)
		case condNe:
			m.lowerCompareWordEq(ins, false)
		case condLt:
			m.lowerCompareWordOrder(ins, true)
		default:
			m.lowerCompareWordOrder(ins, false)
		}
		return
	}
	m.lowerCompareByte(ins, cond)
}

// lowerCompareSwapped lowers Gt as Lt(arg1,arg0) and Le as Ge(arg1,arg0).
func (m *Machine) lowerCompareSwapped(ins *ssair.Instruction, cond condBranch) {
	swapped := *ins
	swapped.Args = []ssair.Value{ins.Args[1], ins.Args[0]}
	m.lowerCompare(&swapped, cond)
}

func (m *Machine) lowerZext(ins *ssair.Instruction) {
	arg := ins.Args[0]
	loc0, name0, ok0 := m.home(arg, ins.Pos)
	locR, nameR, okR := m.home(ins.Result, ins.Pos)
	if !ok0 || !okR {
		return
	}
	m.loadByte(backend.RegA, arg.ID(), loc0, name0, ins.Pos)
	m.storeWordResultTo(locR, nameR, ins.Pos, func() {
		m.emit(asmil.New(asmil.LDA, asmil.Imm(0), ins.Pos))
	})
}

func (m *Machine) lowerTruncate(ins *ssair.Instruction) {
	arg := ins.Args[0]
	loc0, name0, ok0 := m.home(arg, ins.Pos)
	locR, nameR, okR := m.home(ins.Result, ins.Pos)
	if !ok0 || !okR {
		return
	}
	lo0, _ := m.wordOperandBytes(loc0, name0, scratchByte0, scratchByte1, ins.Pos)
	m.emit(asmil.New(asmil.LDA, lo0, ins.Pos))
	m.regs.InvalidateAll()
	m.storeByte(backend.RegA, ins.Result.ID(), locR, nameR, ins.Pos)
}

func (m *Machine) lowerByteToBool(ins *ssair.Instruction) {
	arg := ins.Args[0]
	loc0, name0, ok0 := m.home(arg, ins.Pos)
	locR, nameR, okR := m.home(ins.Result, ins.Pos)
	if !ok0 || !okR {
		return
	}
	m.loadByte(backend.RegA, arg.ID(), loc0, name0, ins.Pos)
	m.regs.InvalidateAll()
	m.materializeFlagAsBool(asmil.BNE, ins.Pos)
	m.storeByteTo(locR, nameR, ins.Pos)
	m.regs.Bind(backend.RegA, ins.Result.ID())
}

func (m *Machine) lowerBrIf(ins *ssair.Instruction) {
	cond := ins.Args[0]
	loc, name, ok := m.home(cond, ins.Pos)
	if !ok {
		return
	}
	op := m.directByteOperand(loc, name, scratchByte0, ins.Pos)
	m.emit(asmil.New(asmil.LDA, op, ins.Pos))
	m.emit(asmil.New(asmil.CMP, asmil.Imm(0), ins.Pos))
	m.emit(asmil.New(asmil.BNE, asmil.Rel(ins.Targets[0]), ins.Pos))
	m.emit(asmil.New(asmil.JMP, asmil.Rel(ins.Targets[1]), ins.Pos))
	m.regs.InvalidateAll()
}
