// Package asmil defines the ASM-IL instruction set and operand model
// C5 lowers into and C6 cleans up (spec.md §4.5, §6.2): 6502 mnemonics
// with symbolic operands, a data section, and a symbol table.
package asmil

import "fmt"

// AddressingMode names a 6502 operand addressing mode, restricted to
// the subset spec.md §6.2 requires the emitter to be able to
// distinguish (grounded on hejops-gone/cpu's AddressingMode
// vocabulary: Immediate, ZeroPage, ZeroPageX/Y, Absolute,
// AbsoluteX/Y, IndirectX/Y, Accumulator, Implied).
type AddressingMode byte

const (
	AddrImplied AddressingMode = iota
	AddrAccumulator
	AddrImmediate
	AddrZeroPage
	AddrZeroPageX
	AddrZeroPageY
	AddrAbsolute
	AddrAbsoluteX
	AddrAbsoluteY
	AddrIndirectX // (zp,X)
	AddrIndirectY // (zp),Y — the only mode that reads a 16-bit pointer from zero page.
	AddrRelative  // branch targets (BEQ/BNE/...).
	AddrImmLo     // #<symbol — low byte of a symbol's resolved address.
	AddrImmHi     // #>symbol — high byte of a symbol's resolved address.
)

func (m AddressingMode) String() string {
	switch m {
	case AddrAccumulator:
		return "A"
	case AddrImmediate:
		return "#"
	case AddrZeroPage:
		return "zp"
	case AddrZeroPageX:
		return "zp,X"
	case AddrZeroPageY:
		return "zp,Y"
	case AddrAbsolute:
		return "abs"
	case AddrAbsoluteX:
		return "abs,X"
	case AddrAbsoluteY:
		return "abs,Y"
	case AddrIndirectX:
		return "(zp,X)"
	case AddrIndirectY:
		return "(zp),Y"
	case AddrRelative:
		return "rel"
	case AddrImmLo:
		return "#<"
	case AddrImmHi:
		return "#>"
	default:
		return "implied"
	}
}

// Operand is one instruction operand (spec.md §6.2): an immediate
// byte, a symbolic zero-page/absolute address (resolved to a concrete
// address by the symbol table at emission time, outside this core), or
// a branch/call label.
type Operand struct {
	Mode   AddressingMode
	Imm    uint8
	Symbol string // symbolic name: a global, frame slot, ZP cell, function entry, or block label.
}

// Imm builds an immediate-byte operand.
func Imm(v uint8) Operand { return Operand{Mode: AddrImmediate, Imm: v} }

// Acc builds the accumulator operand (ASL A, ROR A, ...).
func Acc() Operand { return Operand{Mode: AddrAccumulator} }

// Implied builds the empty operand for implied-mode instructions (RTS,
// CLC, INX, ...).
func Implied() Operand { return Operand{Mode: AddrImplied} }

// ZP builds a zero-page-direct operand naming a symbol.
func ZP(sym string) Operand { return Operand{Mode: AddrZeroPage, Symbol: sym} }

// ZPX builds a zero-page,X-indexed operand.
func ZPX(sym string) Operand { return Operand{Mode: AddrZeroPageX, Symbol: sym} }

// ZPY builds a zero-page,Y-indexed operand.
func ZPY(sym string) Operand { return Operand{Mode: AddrZeroPageY, Symbol: sym} }

// Abs builds an absolute operand naming a symbol.
func Abs(sym string) Operand { return Operand{Mode: AddrAbsolute, Symbol: sym} }

// AbsX builds an absolute,X-indexed operand.
func AbsX(sym string) Operand { return Operand{Mode: AddrAbsoluteX, Symbol: sym} }

// AbsY builds an absolute,Y-indexed operand.
func AbsY(sym string) Operand { return Operand{Mode: AddrAbsoluteY, Symbol: sym} }

// IndirectX builds a (zp,X) operand.
func IndirectX(sym string) Operand { return Operand{Mode: AddrIndirectX, Symbol: sym} }

// IndirectY builds a (zp),Y operand — the mode `@map` range access and
// `addr_of`-taken indirect calls rely on.
func IndirectY(sym string) Operand { return Operand{Mode: AddrIndirectY, Symbol: sym} }

// Rel builds a branch-target operand naming a block label.
func Rel(label string) Operand { return Operand{Mode: AddrRelative, Symbol: label} }

// ImmLo builds a "#<symbol" operand: the low byte of sym's resolved
// address, for materializing a pointer value a byte at a time (addr_of
// lowering, spec.md §3.5).
func ImmLo(sym string) Operand { return Operand{Mode: AddrImmLo, Symbol: sym} }

// ImmHi builds a "#>symbol" operand: the high byte of sym's resolved
// address.
func ImmHi(sym string) Operand { return Operand{Mode: AddrImmHi, Symbol: sym} }

func (o Operand) String() string {
	switch o.Mode {
	case AddrImplied:
		return ""
	case AddrAccumulator:
		return "A"
	case AddrImmediate:
		return fmt.Sprintf("#$%02X", o.Imm)
	case AddrImmLo:
		return "#<" + o.Symbol
	case AddrImmHi:
		return "#>" + o.Symbol
	case AddrZeroPage, AddrAbsolute, AddrRelative:
		return o.Symbol
	case AddrZeroPageX, AddrAbsoluteX:
		return o.Symbol + ",X"
	case AddrZeroPageY, AddrAbsoluteY:
		return o.Symbol + ",Y"
	case AddrIndirectX:
		return "(" + o.Symbol + ",X)"
	case AddrIndirectY:
		return "(" + o.Symbol + "),Y"
	default:
		return o.Symbol
	}
}
