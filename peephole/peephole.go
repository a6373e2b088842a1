// Package peephole implements C6, the optional cleanup pass over
// ASM-IL (spec.md §4.6): redundant load/store collapsing, redundant
// CLC/SEC removal, and dead-store elimination via a backward liveness
// analysis across block boundaries. It never touches `@map`-backed
// addresses, which must be treated as volatile hardware registers
// rather than ordinary memory.
//
// Grounded on the teacher's passDeadCodeEliminationOpt shape (mark
// live via a worklist/fixed point, then sweep), adapted from ssair
// values to asmil instructions, since C6 operates one stage later
// than the teacher's own DCE pass.
package peephole

import "github.com/blendsdk/blend65/asmil"

// Run cleans up every function in mod in place and returns it, so call
// sites can chain it directly onto backend.Compiler.Compile's result.
// Applying it to a module that is already clean is a no-op (spec.md
// §8.2's idempotence law): every rule here only ever removes
// instructions, so a fixed point is reached in at most len(instrs)
// iterations and is stable once reached.
func Run(mod *asmil.Module) *asmil.Module {
	for _, fn := range mod.Functions {
		runFunction(fn, mod)
	}
	return mod
}

func runFunction(fn *asmil.Function, mod *asmil.Module) {
	for {
		changed := false
		for _, blk := range fn.Blocks {
			before := len(blk.Instrs)
			blk.Instrs = collapseLoadsAndStores(blk.Instrs, mod)
			blk.Instrs = collapseCarryFlags(blk.Instrs)
			if len(blk.Instrs) != before {
				changed = true
			}
		}
		if eliminateDeadStores(fn, mod) {
			changed = true
		}
		if !changed {
			return
		}
	}
}

func isVolatile(sym string, mod *asmil.Module) bool {
	s := mod.SymbolByName(sym)
	return s != nil && s.Kind == asmil.SymData
}

func isOpaque(m asmil.Mnemonic) bool {
	switch m {
	case asmil.JSR, asmil.MacroCallIndirect, asmil.MacroPushFrame, asmil.MacroPopFrame,
		asmil.MacroMul, asmil.MacroDiv, asmil.MacroMod, asmil.MacroLoadWord, asmil.MacroStoreWord:
		return true
	default:
		return false
	}
}

func writesA(ins asmil.Instruction) bool {
	switch ins.Mnemonic {
	case asmil.LDA, asmil.ADC, asmil.SBC, asmil.AND, asmil.ORA, asmil.EOR, asmil.TXA, asmil.TYA, asmil.PLA:
		return true
	case asmil.ASL, asmil.LSR, asmil.ROL, asmil.ROR:
		return ins.Operand != nil && ins.Operand.Mode == asmil.AddrAccumulator
	default:
		return false
	}
}

func writesMemory(ins asmil.Instruction) (string, bool) {
	switch ins.Mnemonic {
	case asmil.STA, asmil.STX, asmil.STY, asmil.INC, asmil.DEC, asmil.ASL, asmil.LSR, asmil.ROL, asmil.ROR:
		if ins.Operand != nil && (ins.Operand.Mode == asmil.AddrZeroPage || ins.Operand.Mode == asmil.AddrAbsolute) {
			return ins.Operand.Symbol, true
		}
	}
	return "", false
}

// collapseLoadsAndStores tracks, within one block, two independent
// facts about the accumulator: aImm, the immediate value last loaded
// into it (if any), and aMirror, a memory symbol whose contents
// currently equal it. Together they implement both of spec.md §4.6's
// load/store rules: a repeated `LDA #k` is dropped while aImm still
// reads k (rule c — note the two stores in between go to different,
// unrelated addresses and are themselves untouched by this pass), and
// an `LDA x` right after the value was stored to or read from x is
// dropped because aMirror already says x holds it (rule a). Both
// pieces of state reset at every block boundary, matching
// backend.Machine's own rule that nothing survives one (see
// m6502.Machine.StartBlock): a pass that only ever looks backward
// within the block it is cleaning up is automatically sound against
// that invariant.
func collapseLoadsAndStores(instrs []asmil.Instruction, mod *asmil.Module) []asmil.Instruction {
	out := make([]asmil.Instruction, 0, len(instrs))
	var aImm *uint8
	var aMirror string

	clearMirrorIfHit := func(sym string) {
		if aMirror == sym {
			aMirror = ""
		}
	}

	for _, ins := range instrs {
		switch {
		case ins.Mnemonic == asmil.LDA && ins.Operand != nil && ins.Operand.Mode == asmil.AddrImmediate:
			if aImm != nil && *aImm == ins.Operand.Imm {
				continue
			}
			out = append(out, ins)
			v := ins.Operand.Imm
			aImm = &v
			aMirror = ""

		case ins.Mnemonic == asmil.LDA && ins.Operand != nil &&
			(ins.Operand.Mode == asmil.AddrZeroPage || ins.Operand.Mode == asmil.AddrAbsolute):
			sym := ins.Operand.Symbol
			if aMirror == sym && !isVolatile(sym, mod) {
				continue
			}
			out = append(out, ins)
			aImm = nil
			aMirror = sym

		case ins.Mnemonic == asmil.STA && ins.Operand != nil &&
			(ins.Operand.Mode == asmil.AddrZeroPage || ins.Operand.Mode == asmil.AddrAbsolute):
			out = append(out, ins)
			if isVolatile(ins.Operand.Symbol, mod) {
				clearMirrorIfHit(ins.Operand.Symbol)
			} else {
				aMirror = ins.Operand.Symbol
			}

		default:
			out = append(out, ins)
			if sym, ok := writesMemory(ins); ok {
				clearMirrorIfHit(sym)
			}
			if writesA(ins) || isOpaque(ins.Mnemonic) {
				aImm, aMirror = nil, ""
			}
		}
	}
	return out
}

type carryState byte

const (
	carryUnknown carryState = iota
	carrySet
	carryClear
)

func affectsCarry(m asmil.Mnemonic) bool {
	switch m {
	case asmil.ADC, asmil.SBC, asmil.CMP, asmil.CPX, asmil.CPY,
		asmil.ASL, asmil.LSR, asmil.ROL, asmil.ROR, asmil.PLP:
		return true
	default:
		return isOpaque(m)
	}
}

// collapseCarryFlags removes a CLC/SEC whose state the preceding
// CLC/SEC (with nothing carry-affecting between them, still within one
// block) already established.
func collapseCarryFlags(instrs []asmil.Instruction) []asmil.Instruction {
	out := make([]asmil.Instruction, 0, len(instrs))
	state := carryUnknown
	for _, ins := range instrs {
		switch ins.Mnemonic {
		case asmil.SEC:
			if state == carrySet {
				continue
			}
			state = carrySet
		case asmil.CLC:
			if state == carryClear {
				continue
			}
			state = carryClear
		default:
			if affectsCarry(ins.Mnemonic) {
				state = carryUnknown
			}
		}
		out = append(out, ins)
	}
	return out
}
