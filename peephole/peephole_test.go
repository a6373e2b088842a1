package peephole

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blendsdk/blend65/asmil"
	"github.com/blendsdk/blend65/ssair"
)

func moduleWith(fn *asmil.Function, mapSyms ...string) *asmil.Module {
	mod := &asmil.Module{Functions: []*asmil.Function{fn}}
	for _, s := range mapSyms {
		_ = mod.AddSymbol(asmil.Symbol{Name: s, Kind: asmil.SymData})
	}
	return mod
}

func mnemonics(blk *asmil.Block) []asmil.Mnemonic {
	out := make([]asmil.Mnemonic, len(blk.Instrs))
	for i, ins := range blk.Instrs {
		out[i] = ins.Mnemonic
	}
	return out
}

func TestRun_RemovesRedundantReload(t *testing.T) {
	blk := &asmil.Block{Label: "entry", Instrs: []asmil.Instruction{
		asmil.New(asmil.LDA, asmil.Imm(5), ssair.Pos{}),
		asmil.New(asmil.STA, asmil.ZP("x"), ssair.Pos{}),
		asmil.New(asmil.LDA, asmil.ZP("x"), ssair.Pos{}),
		asmil.NewImplied(asmil.RTS, ssair.Pos{}),
	}}
	fn := &asmil.Function{Name: "f", Blocks: []*asmil.Block{blk}}
	mod := moduleWith(fn)

	Run(mod)

	require.Equal(t, []asmil.Mnemonic{asmil.LDA, asmil.STA, asmil.RTS}, mnemonics(blk))
}

func TestRun_CollapsesRepeatedImmediateLoads(t *testing.T) {
	blk := &asmil.Block{Label: "entry", Instrs: []asmil.Instruction{
		asmil.New(asmil.LDA, asmil.Imm(0), ssair.Pos{}),
		asmil.New(asmil.STA, asmil.ZP("x"), ssair.Pos{}),
		asmil.New(asmil.LDA, asmil.Imm(0), ssair.Pos{}),
		asmil.New(asmil.STA, asmil.ZP("y"), ssair.Pos{}),
		asmil.NewImplied(asmil.RTS, ssair.Pos{}),
	}}
	fn := &asmil.Function{Name: "f", Blocks: []*asmil.Block{blk}}
	mod := moduleWith(fn)

	Run(mod)

	require.Equal(t, []asmil.Mnemonic{asmil.LDA, asmil.STA, asmil.STA, asmil.RTS}, mnemonics(blk))
	require.Equal(t, "x", blk.Instrs[1].Operand.Symbol)
	require.Equal(t, "y", blk.Instrs[2].Operand.Symbol)
}

func TestRun_PreservesMappedAccessesAsVolatile(t *testing.T) {
	// Same store-then-reload shape as TestRun_RemovesRedundantReload,
	// which collapses for an ordinary symbol; a @map-backed one must
	// keep both the store and the reload since either could be a real
	// hardware side effect.
	blk := &asmil.Block{Label: "entry", Instrs: []asmil.Instruction{
		asmil.New(asmil.LDA, asmil.Imm(5), ssair.Pos{}),
		asmil.New(asmil.STA, asmil.ZP("port"), ssair.Pos{}),
		asmil.New(asmil.LDA, asmil.ZP("port"), ssair.Pos{}),
		asmil.NewImplied(asmil.RTS, ssair.Pos{}),
	}}
	fn := &asmil.Function{Name: "f", Blocks: []*asmil.Block{blk}}
	mod := moduleWith(fn, "port")

	Run(mod)

	require.Equal(t, []asmil.Mnemonic{asmil.LDA, asmil.STA, asmil.LDA, asmil.RTS}, mnemonics(blk))
}

func TestRun_RemovesRedundantCarryOps(t *testing.T) {
	blk := &asmil.Block{Label: "entry", Instrs: []asmil.Instruction{
		asmil.NewImplied(asmil.SEC, ssair.Pos{}),
		asmil.NewImplied(asmil.SEC, ssair.Pos{}),
		asmil.New(asmil.LDA, asmil.ZP("x"), ssair.Pos{}),
		asmil.NewImplied(asmil.CLC, ssair.Pos{}),
		asmil.NewImplied(asmil.CLC, ssair.Pos{}),
		asmil.NewImplied(asmil.RTS, ssair.Pos{}),
	}}
	fn := &asmil.Function{Name: "f", Blocks: []*asmil.Block{blk}}
	mod := moduleWith(fn)

	Run(mod)

	require.Equal(t, []asmil.Mnemonic{asmil.SEC, asmil.LDA, asmil.CLC, asmil.RTS}, mnemonics(blk))
}

func TestRun_DoesNotCollapseCarryAcrossAffectingInstruction(t *testing.T) {
	blk := &asmil.Block{Label: "entry", Instrs: []asmil.Instruction{
		asmil.NewImplied(asmil.SEC, ssair.Pos{}),
		asmil.New(asmil.ADC, asmil.ZP("x"), ssair.Pos{}),
		asmil.NewImplied(asmil.SEC, ssair.Pos{}),
		asmil.NewImplied(asmil.RTS, ssair.Pos{}),
	}}
	fn := &asmil.Function{Name: "f", Blocks: []*asmil.Block{blk}}
	mod := moduleWith(fn)

	Run(mod)

	require.Equal(t, []asmil.Mnemonic{asmil.SEC, asmil.ADC, asmil.SEC, asmil.RTS}, mnemonics(blk))
}

func TestRun_EliminatesDeadStoreAcrossBlocks(t *testing.T) {
	entry := &asmil.Block{Label: "entry", Instrs: []asmil.Instruction{
		asmil.New(asmil.LDA, asmil.Imm(1), ssair.Pos{}),
		asmil.New(asmil.STA, asmil.ZP("tmp"), ssair.Pos{}),
		asmil.New(asmil.LDA, asmil.Imm(2), ssair.Pos{}),
		asmil.New(asmil.STA, asmil.ZP("tmp"), ssair.Pos{}),
		asmil.New(asmil.JMP, asmil.Rel("next"), ssair.Pos{}),
	}}
	next := &asmil.Block{Label: "next", Instrs: []asmil.Instruction{
		asmil.New(asmil.LDA, asmil.ZP("tmp"), ssair.Pos{}),
		asmil.NewImplied(asmil.RTS, ssair.Pos{}),
	}}
	fn := &asmil.Function{Name: "f", Blocks: []*asmil.Block{entry, next}}
	mod := moduleWith(fn)

	Run(mod)

	stores := 0
	var lastStoreValue uint8
	for _, ins := range entry.Instrs {
		if ins.Mnemonic == asmil.STA {
			stores++
			lastStoreValue = precedingImmediate(entry.Instrs, ins)
		}
	}
	require.Equal(t, 1, stores)
	require.Equal(t, uint8(2), lastStoreValue)
}

// precedingImmediate finds the immediate value loaded into A most
// recently before target among instrs (used only to sanity-check which
// store survived dead-store elimination).
func precedingImmediate(instrs []asmil.Instruction, target asmil.Instruction) uint8 {
	var last uint8
	for _, ins := range instrs {
		if ins.Mnemonic == asmil.LDA && ins.Operand != nil && ins.Operand.Mode == asmil.AddrImmediate {
			last = ins.Operand.Imm
		}
		if ins.Mnemonic == target.Mnemonic && ins.Operand != nil && target.Operand != nil &&
			ins.Operand.Symbol == target.Operand.Symbol {
			break
		}
	}
	return last
}

func TestRun_KeepsStoreLiveAcrossBranch(t *testing.T) {
	entry := &asmil.Block{Label: "entry", Instrs: []asmil.Instruction{
		asmil.New(asmil.LDA, asmil.Imm(1), ssair.Pos{}),
		asmil.New(asmil.STA, asmil.ZP("tmp"), ssair.Pos{}),
		asmil.New(asmil.LDX, asmil.Imm(0), ssair.Pos{}),
		asmil.New(asmil.CPX, asmil.Imm(0), ssair.Pos{}),
		asmil.New(asmil.BEQ, asmil.Rel("used"), ssair.Pos{}),
		asmil.New(asmil.JMP, asmil.Rel("unused"), ssair.Pos{}),
	}}
	used := &asmil.Block{Label: "used", Instrs: []asmil.Instruction{
		asmil.New(asmil.LDA, asmil.ZP("tmp"), ssair.Pos{}),
		asmil.NewImplied(asmil.RTS, ssair.Pos{}),
	}}
	unused := &asmil.Block{Label: "unused", Instrs: []asmil.Instruction{
		asmil.NewImplied(asmil.RTS, ssair.Pos{}),
	}}
	fn := &asmil.Function{Name: "f", Blocks: []*asmil.Block{entry, used, unused}}
	mod := moduleWith(fn)

	Run(mod)

	require.Contains(t, mnemonics(entry), asmil.STA)
}

func TestRun_VolatileStoreNeverEliminatedAsDead(t *testing.T) {
	entry := &asmil.Block{Label: "entry", Instrs: []asmil.Instruction{
		asmil.New(asmil.LDA, asmil.Imm(1), ssair.Pos{}),
		asmil.New(asmil.STA, asmil.ZP("port"), ssair.Pos{}),
		asmil.New(asmil.LDA, asmil.Imm(2), ssair.Pos{}),
		asmil.New(asmil.STA, asmil.ZP("port"), ssair.Pos{}),
		asmil.NewImplied(asmil.RTS, ssair.Pos{}),
	}}
	fn := &asmil.Function{Name: "f", Blocks: []*asmil.Block{entry}}
	mod := moduleWith(fn, "port")

	Run(mod)

	sta := 0
	for _, m := range mnemonics(entry) {
		if m == asmil.STA {
			sta++
		}
	}
	require.Equal(t, 2, sta)
}

// Idempotence law (spec.md §8.2): applying the pass a second time to
// already-cleaned ASM-IL must yield exactly the same output.
func TestRun_IsIdempotent(t *testing.T) {
	blk := &asmil.Block{Label: "entry", Instrs: []asmil.Instruction{
		asmil.New(asmil.LDA, asmil.Imm(5), ssair.Pos{}),
		asmil.New(asmil.STA, asmil.ZP("x"), ssair.Pos{}),
		asmil.New(asmil.LDA, asmil.ZP("x"), ssair.Pos{}),
		asmil.New(asmil.LDA, asmil.Imm(0), ssair.Pos{}),
		asmil.New(asmil.STA, asmil.ZP("y"), ssair.Pos{}),
		asmil.New(asmil.LDA, asmil.Imm(0), ssair.Pos{}),
		asmil.New(asmil.STA, asmil.ZP("z"), ssair.Pos{}),
		asmil.NewImplied(asmil.SEC, ssair.Pos{}),
		asmil.NewImplied(asmil.SEC, ssair.Pos{}),
		asmil.NewImplied(asmil.RTS, ssair.Pos{}),
	}}
	fn := &asmil.Function{Name: "f", Blocks: []*asmil.Block{blk}}
	mod := moduleWith(fn)

	Run(mod)
	once := append([]asmil.Mnemonic(nil), mnemonics(blk)...)

	Run(mod)
	twice := mnemonics(blk)

	require.Equal(t, once, twice)
}
