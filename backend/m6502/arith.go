package m6502

import (
	"strconv"

	"github.com/blendsdk/blend65/asmil"
	"github.com/blendsdk/blend65/backend"
	"github.com/blendsdk/blend65/frame"
	"github.com/blendsdk/blend65/ssair"
)

// scratchByte0/1/2 name the compiler's own zero-page scratch cells
// (within platform.Config.ScratchRegion) used to spill a second
// operand out of a recursive function's stack-relative frame, since
// ADC/SBC/AND/ORA/EOR/CMP can only address zero page or absolute
// memory directly, never frame-pointer-relative (spec.md §6.3, §9).
const (
	scratchByte0 = backend.ScratchByte0Sym
	scratchByte1 = backend.ScratchByte1Sym
	scratchByte2 = backend.ScratchByte2Sym

	// scratchPtr names a two-byte scratch cell pair (scratchPtr,
	// scratchPtr+1) used as the (zp),Y pointer for peek/poke's
	// raw-address indirection — the only addressing mode that can read
	// a 16-bit pointer out of memory at all (spec.md §4.5).
	scratchPtr = backend.ScratchPtrSym
)

// wordBytes derives the low/high symbol names for a two-byte slot: the
// slot's own name for the low byte, name+"+1" for the high byte — a
// label-plus-offset expression any 6502 assembler accepts, which is
// why ssair never needs to declare the high byte as a second slot.
func wordBytes(name string) (lo, hi string) { return name, name + "+1" }

func (m *Machine) directByteOperand(loc frame.SlotLocation, name, scratch string, pos ssair.Pos) asmil.Operand {
	if loc.Kind == frame.LocStackRelative {
		m.emit(asmil.New(asmil.LDY, asmil.Imm(uint8(loc.Offset)), pos))
		m.emit(asmil.New(asmil.LDA, asmil.IndirectY(framePointerSlot), pos))
		m.emit(asmil.New(asmil.STA, asmil.ZP(scratch), pos))
		m.regs.InvalidateAll()
		return asmil.ZP(scratch)
	}
	if loc.Kind == frame.LocZeroPage {
		return asmil.ZP(name)
	}
	return asmil.Abs(name)
}

// wordOperandBytes returns the low/high operands for a two-byte slot,
// spilling a stack-relative slot into two scratch cells first (see
// directByteOperand).
func (m *Machine) wordOperandBytes(loc frame.SlotLocation, name string, scratchLo, scratchHi string, pos ssair.Pos) (asmil.Operand, asmil.Operand) {
	if loc.Kind == frame.LocStackRelative {
		m.emit(asmil.New(asmil.LDY, asmil.Imm(uint8(loc.Offset)), pos))
		m.emit(asmil.New(asmil.LDA, asmil.IndirectY(framePointerSlot), pos))
		m.emit(asmil.New(asmil.STA, asmil.ZP(scratchLo), pos))
		m.emit(asmil.New(asmil.LDY, asmil.Imm(uint8(loc.Offset+1)), pos))
		m.emit(asmil.New(asmil.LDA, asmil.IndirectY(framePointerSlot), pos))
		m.emit(asmil.New(asmil.STA, asmil.ZP(scratchHi), pos))
		m.regs.InvalidateAll()
		return asmil.ZP(scratchLo), asmil.ZP(scratchHi)
	}
	lo, hi := wordBytes(name)
	if loc.Kind == frame.LocZeroPage {
		return asmil.ZP(lo), asmil.ZP(hi)
	}
	return asmil.Abs(lo), asmil.Abs(hi)
}

func (m *Machine) storeByteTo(loc frame.SlotLocation, name string, pos ssair.Pos) {
	switch loc.Kind {
	case frame.LocStackRelative:
		m.emit(asmil.New(asmil.LDY, asmil.Imm(uint8(loc.Offset)), pos))
		m.emit(asmil.New(asmil.STA, asmil.IndirectY(framePointerSlot), pos))
		m.regs.InvalidateAll()
	case frame.LocZeroPage:
		m.emit(asmil.New(asmil.STA, asmil.ZP(name), pos))
	default:
		m.emit(asmil.New(asmil.STA, asmil.Abs(name), pos))
	}
}

func (m *Machine) storeWordResultTo(loc frame.SlotLocation, name string, pos ssair.Pos, storeLowFirst func()) {
	// storeLowFirst stores the already-computed low byte from A; the
	// caller then computes the high byte into A before this returns
	// control, so the two stores bracket independent A computations.
	lo, hi := wordBytes(name)
	switch loc.Kind {
	case frame.LocStackRelative:
		m.emit(asmil.New(asmil.LDY, asmil.Imm(uint8(loc.Offset)), pos))
		m.emit(asmil.New(asmil.STA, asmil.IndirectY(framePointerSlot), pos))
	case frame.LocZeroPage:
		m.emit(asmil.New(asmil.STA, asmil.ZP(lo), pos))
	default:
		m.emit(asmil.New(asmil.STA, asmil.Abs(lo), pos))
	}
	storeLowFirst()
	switch loc.Kind {
	case frame.LocStackRelative:
		m.emit(asmil.New(asmil.LDY, asmil.Imm(uint8(loc.Offset+1)), pos))
		m.emit(asmil.New(asmil.STA, asmil.IndirectY(framePointerSlot), pos))
	case frame.LocZeroPage:
		m.emit(asmil.New(asmil.STA, asmil.ZP(hi), pos))
	default:
		m.emit(asmil.New(asmil.STA, asmil.Abs(hi), pos))
	}
	m.regs.InvalidateAll()
}

// lowerArithByte lowers a one-byte binary op via the literal
// load-operand/op/store-result recipe (spec.md §4.5): arg0 into A,
// arg1 as the op's direct memory operand, result back to its home.
// carry, if non-nil, selects CLC/SEC before the op (ADC/SBC need it;
// AND/ORA/EOR/CMP don't).
func (m *Machine) lowerArithByte(ins *ssair.Instruction, mnemonic asmil.Mnemonic, carry *bool) {
	arg0, arg1 := ins.Args[0], ins.Args[1]
	loc0, name0, ok0 := m.home(arg0, ins.Pos)
	loc1, name1, ok1 := m.home(arg1, ins.Pos)
	locR, nameR, okR := m.home(ins.Result, ins.Pos)
	if !ok0 || !ok1 || !okR {
		return
	}
	op1 := m.directByteOperand(loc1, name1, scratchByte0, ins.Pos)
	m.loadByte(backend.RegA, arg0.ID(), loc0, name0, ins.Pos)
	if carry != nil {
		if *carry {
			m.emit(asmil.NewImplied(asmil.SEC, ins.Pos))
		} else {
			m.emit(asmil.NewImplied(asmil.CLC, ins.Pos))
		}
	}
	m.emit(asmil.New(mnemonic, op1, ins.Pos))
	m.regs.InvalidateAll()
	m.storeByte(backend.RegA, ins.Result.ID(), locR, nameR, ins.Pos)
}

// lowerArithWord lowers a two-byte Add/Sub (mnemonic ADC/SBC) low byte
// first (carrying into the high-byte op), then the high byte.
func (m *Machine) lowerArithWord(ins *ssair.Instruction, mnemonic asmil.Mnemonic, carry bool) {
	arg0, arg1 := ins.Args[0], ins.Args[1]
	loc0, name0, ok0 := m.home(arg0, ins.Pos)
	loc1, name1, ok1 := m.home(arg1, ins.Pos)
	locR, nameR, okR := m.home(ins.Result, ins.Pos)
	if !ok0 || !ok1 || !okR {
		return
	}
	lo0, hi0 := m.wordOperandBytes(loc0, name0, scratchByte0, scratchByte1, ins.Pos)
	lo1, hi1 := m.wordOperandBytes(loc1, name1, scratchByte0, scratchByte1, ins.Pos)

	if carry {
		m.emit(asmil.NewImplied(asmil.SEC, ins.Pos))
	} else {
		m.emit(asmil.NewImplied(asmil.CLC, ins.Pos))
	}
	m.emit(asmil.New(asmil.LDA, lo0, ins.Pos))
	m.emit(asmil.New(mnemonic, lo1, ins.Pos))
	m.storeWordResultTo(locR, nameR, ins.Pos, func() {
		m.emit(asmil.New(asmil.LDA, hi0, ins.Pos))
		m.emit(asmil.New(mnemonic, hi1, ins.Pos))
	})
}

// lowerShift lowers shl/shr by a runtime-variable count: the 6502's
// ASL/LSR only ever shift by one bit, so a dynamic count becomes a
// counted loop, X counting the remaining shifts down to zero. Byte
// values shift directly in A; lowerShiftWord handles the two-byte
// case, where each iteration must chain the carry out of the low byte
// into the high byte (or vice versa for a right shift).
func (m *Machine) lowerShift(ins *ssair.Instruction, mnemonic asmil.Mnemonic) {
	if ins.Result.Type().IsWord() {
		m.lowerShiftWord(ins, mnemonic)
		return
	}
	arg0, arg1 := ins.Args[0], ins.Args[1]
	loc0, name0, ok0 := m.home(arg0, ins.Pos)
	loc1, name1, ok1 := m.home(arg1, ins.Pos)
	locR, nameR, okR := m.home(ins.Result, ins.Pos)
	if !ok0 || !ok1 || !okR {
		return
	}
	m.loadByte(backend.RegX, arg1.ID(), loc1, name1, ins.Pos)
	m.loadByte(backend.RegA, arg0.ID(), loc0, name0, ins.Pos)

	loopLabel := m.freshLabel("shloop")
	doneLabel := m.freshLabel("shdone")
	m.emit(asmil.New(asmil.JMP, asmil.Rel(loopLabel), ins.Pos))

	loopBlk := &asmil.Block{Label: loopLabel}
	loopBlk.Instrs = append(loopBlk.Instrs,
		asmil.New(asmil.CPX, asmil.Imm(0), ins.Pos),
		asmil.New(asmil.BEQ, asmil.Rel(doneLabel), ins.Pos),
		asmil.New(mnemonic, asmil.Acc(), ins.Pos),
		asmil.NewImplied(asmil.DEX, ins.Pos),
		asmil.New(asmil.JMP, asmil.Rel(loopLabel), ins.Pos),
	)
	m.afn.Blocks = append(m.afn.Blocks, loopBlk)

	doneBlk := &asmil.Block{Label: doneLabel}
	m.afn.Blocks = append(m.afn.Blocks, doneBlk)
	m.blk = doneBlk
	m.regs.InvalidateAll()
	m.storeByte(backend.RegA, ins.Result.ID(), locR, nameR, ins.Pos)
}

// lowerShiftWord is lowerShift's two-byte case: each loop iteration
// first shifts the byte whose outgoing bit lands in the carry (the low
// byte for ASL, the high byte for LSR), then the other byte
// with ROL/ROR so the bit shifted out of one lane rotates into the
// other, giving a true 16-bit shift rather than two independent
// 8-bit ones.
func (m *Machine) lowerShiftWord(ins *ssair.Instruction, mnemonic asmil.Mnemonic) {
	arg0, arg1 := ins.Args[0], ins.Args[1]
	loc0, name0, ok0 := m.home(arg0, ins.Pos)
	loc1, name1, ok1 := m.home(arg1, ins.Pos)
	locR, nameR, okR := m.home(ins.Result, ins.Pos)
	if !ok0 || !ok1 || !okR {
		return
	}
	lo0, hi0 := m.wordOperandBytes(loc0, name0, scratchByte0, scratchByte1, ins.Pos)
	m.loadByte(backend.RegX, arg1.ID(), loc1, name1, ins.Pos)
	m.emit(asmil.New(asmil.LDA, lo0, ins.Pos))
	m.emit(asmil.New(asmil.STA, asmil.ZP(scratchByte0), ins.Pos))
	m.emit(asmil.New(asmil.LDA, hi0, ins.Pos))
	m.emit(asmil.New(asmil.STA, asmil.ZP(scratchByte1), ins.Pos))
	m.regs.InvalidateAll()

	rotate := asmil.ROL
	first, second := scratchByte0, scratchByte1
	if mnemonic == asmil.LSR {
		rotate = asmil.ROR
		first, second = scratchByte1, scratchByte0
	}

	loopLabel := m.freshLabel("wshloop")
	doneLabel := m.freshLabel("wshdone")
	m.emit(asmil.New(asmil.JMP, asmil.Rel(loopLabel), ins.Pos))

	loopBlk := &asmil.Block{Label: loopLabel}
	loopBlk.Instrs = append(loopBlk.Instrs,
		asmil.New(asmil.CPX, asmil.Imm(0), ins.Pos),
		asmil.New(asmil.BEQ, asmil.Rel(doneLabel), ins.Pos),
		asmil.New(mnemonic, asmil.ZP(first), ins.Pos),
		asmil.New(rotate, asmil.ZP(second), ins.Pos),
		asmil.NewImplied(asmil.DEX, ins.Pos),
		asmil.New(asmil.JMP, asmil.Rel(loopLabel), ins.Pos),
	)
	m.afn.Blocks = append(m.afn.Blocks, loopBlk)

	doneBlk := &asmil.Block{Label: doneLabel}
	m.afn.Blocks = append(m.afn.Blocks, doneBlk)
	m.blk = doneBlk
	m.regs.InvalidateAll()

	m.emit(asmil.New(asmil.LDA, asmil.ZP(scratchByte0), ins.Pos))
	m.storeWordResultTo(locR, nameR, ins.Pos, func() {
		m.emit(asmil.New(asmil.LDA, asmil.ZP(scratchByte1), ins.Pos))
	})
}

// lowerBitwiseWord lowers AND/ORA/EOR on a two-byte operand pair: no
// carry chain, just the same op applied independently to each byte.
func (m *Machine) lowerBitwiseWord(ins *ssair.Instruction, mnemonic asmil.Mnemonic) {
	arg0, arg1 := ins.Args[0], ins.Args[1]
	loc0, name0, ok0 := m.home(arg0, ins.Pos)
	loc1, name1, ok1 := m.home(arg1, ins.Pos)
	locR, nameR, okR := m.home(ins.Result, ins.Pos)
	if !ok0 || !ok1 || !okR {
		return
	}
	lo0, hi0 := m.wordOperandBytes(loc0, name0, scratchByte0, scratchByte1, ins.Pos)
	lo1, hi1 := m.wordOperandBytes(loc1, name1, scratchByte0, scratchByte1, ins.Pos)
	m.emit(asmil.New(asmil.LDA, lo0, ins.Pos))
	m.emit(asmil.New(mnemonic, lo1, ins.Pos))
	m.storeWordResultTo(locR, nameR, ins.Pos, func() {
		m.emit(asmil.New(asmil.LDA, hi0, ins.Pos))
		m.emit(asmil.New(mnemonic, hi1, ins.Pos))
	})
}

type condBranch byte

const (
	condEq condBranch = iota
	condNe
	condLt // unsigned <
	condGe // unsigned >=
)

func (c condBranch) branchOnTrue() asmil.Mnemonic {
	switch c {
	case condEq:
		return asmil.BEQ
	case condNe:
		return asmil.BNE
	case condLt:
		return asmil.BCC
	default:
		return asmil.BCS
	}
}

// lowerCompareByte lowers a single-byte comparison: CMP against the
// direct operand, then materializeFlagAsBool converts the resulting
// flag into an explicit 0/1 in A. Gt/Le are lowered by the caller
// swapping operand order (a>b == b<a, a<=b == b>=a) rather than
// needing separate logic here.
func (m *Machine) lowerCompareByte(ins *ssair.Instruction, cond condBranch) {
	arg0, arg1 := ins.Args[0], ins.Args[1]
	loc0, name0, ok0 := m.home(arg0, ins.Pos)
	loc1, name1, ok1 := m.home(arg1, ins.Pos)
	locR, nameR, okR := m.home(ins.Result, ins.Pos)
	if !ok0 || !ok1 || !okR {
		return
	}
	op1 := m.directByteOperand(loc1, name1, scratchByte0, ins.Pos)
	m.loadByte(backend.RegA, arg0.ID(), loc0, name0, ins.Pos)
	m.emit(asmil.New(asmil.CMP, op1, ins.Pos))
	m.regs.InvalidateAll()
	m.materializeFlagAsBool(cond.branchOnTrue(), ins.Pos)
	m.storeByteTo(locR, nameR, ins.Pos)
	m.regs.Bind(backend.RegA, ins.Result.ID())
}

// lowerCompareWordEq lowers word equality/inequality branch-free up to
// the final materialize step: XOR each byte pair, OR the two
// differences together, then BEQ/BNE on the combined zero flag.
func (m *Machine) lowerCompareWordEq(ins *ssair.Instruction, equal bool) {
	arg0, arg1 := ins.Args[0], ins.Args[1]
	loc0, name0, ok0 := m.home(arg0, ins.Pos)
	loc1, name1, ok1 := m.home(arg1, ins.Pos)
	locR, nameR, okR := m.home(ins.Result, ins.Pos)
	if !ok0 || !ok1 || !okR {
		return
	}
	lo0, hi0 := m.wordOperandBytes(loc0, name0, scratchByte0, scratchByte1, ins.Pos)
	lo1, hi1 := m.wordOperandBytes(loc1, name1, scratchByte0, scratchByte1, ins.Pos)

	m.emit(asmil.New(asmil.LDA, lo0, ins.Pos))
	m.emit(asmil.New(asmil.EOR, lo1, ins.Pos))
	m.emit(asmil.New(asmil.STA, asmil.ZP(scratchByte2), ins.Pos))
	m.emit(asmil.New(asmil.LDA, hi0, ins.Pos))
	m.emit(asmil.New(asmil.EOR, hi1, ins.Pos))
	m.emit(asmil.New(asmil.ORA, asmil.ZP(scratchByte2), ins.Pos))
	m.regs.InvalidateAll()

	cond := condNe
	if equal {
		cond = condEq
	}
	m.materializeFlagAsBool(cond.branchOnTrue(), ins.Pos)
	m.storeByteTo(locR, nameR, ins.Pos)
	m.regs.Bind(backend.RegA, ins.Result.ID())
}

// lowerCompareWordOrder lowers a word ordering comparison (Lt/Ge; Gt/Le
// are the caller swapping operands) as a single 16-bit subtraction:
// the final carry out of the high-byte SBC is the unsigned "no borrow
// occurred" bit, i.e. arg0 >= arg1.
func (m *Machine) lowerCompareWordOrder(ins *ssair.Instruction, lessThan bool) {
	arg0, arg1 := ins.Args[0], ins.Args[1]
	loc0, name0, ok0 := m.home(arg0, ins.Pos)
	loc1, name1, ok1 := m.home(arg1, ins.Pos)
	locR, nameR, okR := m.home(ins.Result, ins.Pos)
	if !ok0 || !ok1 || !okR {
		return
	}
	lo0, hi0 := m.wordOperandBytes(loc0, name0, scratchByte0, scratchByte1, ins.Pos)
	lo1, hi1 := m.wordOperandBytes(loc1, name1, scratchByte0, scratchByte1, ins.Pos)

	m.emit(asmil.NewImplied(asmil.SEC, ins.Pos))
	m.emit(asmil.New(asmil.LDA, lo0, ins.Pos))
	m.emit(asmil.New(asmil.SBC, lo1, ins.Pos))
	m.emit(asmil.New(asmil.LDA, hi0, ins.Pos))
	m.emit(asmil.New(asmil.SBC, hi1, ins.Pos))
	m.regs.InvalidateAll()

	cond := condGe
	if lessThan {
		cond = condLt
	}
	m.materializeFlagAsBool(cond.branchOnTrue(), ins.Pos)
	m.storeByteTo(locR, nameR, ins.Pos)
	m.regs.Bind(backend.RegA, ins.Result.ID())
}

// materializeFlagAsBool converts the CPU flag state left by the
// preceding comparison into an explicit 0/1 byte in A, via the
// classic branch-then-converge shape (spec.md has no flags-only IL
// value, so every comparison must produce a real i1 byte). It does
// this by splitting the current block: the branch and false-path `LDA
// #0` stay in the block lowering is already appending to, a fresh
// "true" block supplies `LDA #1`, and both join at a fresh block that
// becomes the new current block for whatever ssair instruction is
// lowered next.
func (m *Machine) materializeFlagAsBool(branchOnTrue asmil.Mnemonic, pos ssair.Pos) {
	trueLabel := m.freshLabel("ctrue")
	joinLabel := m.freshLabel("cjoin")

	m.emit(asmil.New(branchOnTrue, asmil.Rel(trueLabel), pos))
	m.emit(asmil.New(asmil.LDA, asmil.Imm(0), pos))
	m.emit(asmil.New(asmil.JMP, asmil.Rel(joinLabel), pos))

	trueBlk := &asmil.Block{Label: trueLabel}
	trueBlk.Instrs = append(trueBlk.Instrs,
		asmil.New(asmil.LDA, asmil.Imm(1), pos),
		asmil.New(asmil.JMP, asmil.Rel(joinLabel), pos),
	)
	m.afn.Blocks = append(m.afn.Blocks, trueBlk)

	joinBlk := &asmil.Block{Label: joinLabel}
	m.afn.Blocks = append(m.afn.Blocks, joinBlk)
	m.blk = joinBlk
	m.regs.InvalidateAll()
}

func (m *Machine) freshLabel(prefix string) string {
	m.labelCounter++
	return prefix + strconv.Itoa(m.labelCounter)
}
