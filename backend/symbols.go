package backend

// Fixed zero-page cell names the m6502 Machine and Compiler share,
// bound to the platform's configured addresses by
// registerRuntimeSymbols. Keeping them here, rather than duplicating
// the literal strings in backend/m6502, is what guarantees the names
// Machine emits and the addresses Compiler registers always agree.
const (
	// MulOperandLoSym/MulOperandHiSym and DivOperandLoSym/
	// DivOperandHiSym are the runtime mul/div/mod helper calling
	// convention (spec.md §4.5): the left operand is always written
	// here before the CALL_MUL/CALL_DIV/CALL_MOD macro runs, the right
	// operand travels in A (byte) or A/X (word), and the result comes
	// back the same way.
	MulOperandLoSym = "__mul_operand_lo"
	MulOperandHiSym = "__mul_operand_hi"
	DivOperandLoSym = "__div_operand_lo"
	DivOperandHiSym = "__div_operand_hi"

	// FramePointerSym is the recursive-function software-stack frame
	// pointer (spec.md §4.3); always zero page, since indirect-indexed
	// addressing only works out of zero page.
	FramePointerSym = "__fp"

	// ScratchPtrSym is a two-byte scratch cell pair used as the
	// (zp),Y pointer for peek/poke's raw-address indirection.
	ScratchPtrSym = "__scratchptr"

	// ScratchByte0Sym/ScratchByte1Sym/ScratchByte2Sym are single-byte
	// scratch cells spilling a second operand out of a recursive
	// function's stack-relative frame for instructions that can only
	// address zero page or absolute memory directly.
	ScratchByte0Sym = "__scratch0"
	ScratchByte1Sym = "__scratch1"
	ScratchByte2Sym = "__scratch2"

	// PhiScratchSym breaks a PHI parallel-copy cycle (spec.md §9).
	PhiScratchSym = "__phi_scratch"
)
