package m6502

import (
	"github.com/blendsdk/blend65/asmil"
	"github.com/blendsdk/blend65/backend"
	"github.com/blendsdk/blend65/frame"
	"github.com/blendsdk/blend65/ssair"
)

// LowerParallelCopy implements backend.Machine. copies is already
// sequenced and cycle-broken (backend.SequenceCopies); each move here
// is a plain load-then-store between two fixed slot homes, the same
// load/op/store recipe every other instruction in this package uses.
// No source position survives into a PHI move (the move exists only
// because C3/C4 gave the PHI result and its operand different homes),
// so every emitted instruction carries the zero Pos.
func (m *Machine) LowerParallelCopy(copies []backend.Copy) {
	for _, c := range copies {
		m.lowerCopyMove(c)
	}
}

func (m *Machine) lowerCopyMove(c backend.Copy) {
	pos := ssair.Pos{}
	srcLoc, ok := m.homeName(c.Src, pos)
	if !ok {
		return
	}
	dstLoc, ok := m.homeName(c.Dst, pos)
	if !ok {
		return
	}
	if c.Type.IsWord() {
		m.copyWordMove(srcLoc, c.Src, dstLoc, c.Dst, pos)
		return
	}
	m.copyByteMove(srcLoc, c.Src, dstLoc, c.Dst, pos)
}

func (m *Machine) copyByteMove(srcLoc frame.SlotLocation, srcName string, dstLoc frame.SlotLocation, dstName string, pos ssair.Pos) {
	switch srcLoc.Kind {
	case frame.LocStackRelative:
		m.emit(asmil.New(asmil.LDY, asmil.Imm(uint8(srcLoc.Offset)), pos))
		m.emit(asmil.New(asmil.LDA, asmil.IndirectY(framePointerSlot), pos))
	case frame.LocZeroPage:
		m.emit(asmil.New(asmil.LDA, asmil.ZP(srcName), pos))
	default:
		m.emit(asmil.New(asmil.LDA, asmil.Abs(srcName), pos))
	}
	m.storeByteTo(dstLoc, dstName, pos)
	m.regs.InvalidateAll()
}

func (m *Machine) copyWordMove(srcLoc frame.SlotLocation, srcName string, dstLoc frame.SlotLocation, dstName string, pos ssair.Pos) {
	loadLow := func() {
		if srcLoc.Kind == frame.LocStackRelative {
			m.emit(asmil.New(asmil.LDY, asmil.Imm(uint8(srcLoc.Offset)), pos))
			m.emit(asmil.New(asmil.LDA, asmil.IndirectY(framePointerSlot), pos))
			return
		}
		lo, _ := wordBytes(srcName)
		if srcLoc.Kind == frame.LocZeroPage {
			m.emit(asmil.New(asmil.LDA, asmil.ZP(lo), pos))
		} else {
			m.emit(asmil.New(asmil.LDA, asmil.Abs(lo), pos))
		}
	}
	loadHigh := func() {
		if srcLoc.Kind == frame.LocStackRelative {
			m.emit(asmil.New(asmil.LDY, asmil.Imm(uint8(srcLoc.Offset+1)), pos))
			m.emit(asmil.New(asmil.LDA, asmil.IndirectY(framePointerSlot), pos))
			return
		}
		_, hi := wordBytes(srcName)
		if srcLoc.Kind == frame.LocZeroPage {
			m.emit(asmil.New(asmil.LDA, asmil.ZP(hi), pos))
		} else {
			m.emit(asmil.New(asmil.LDA, asmil.Abs(hi), pos))
		}
	}
	loadLow()
	m.storeWordResultTo(dstLoc, dstName, pos, loadHigh)
}
