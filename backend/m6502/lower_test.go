package m6502

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blendsdk/blend65/asmil"
	"github.com/blendsdk/blend65/backend"
	"github.com/blendsdk/blend65/callgraph"
	"github.com/blendsdk/blend65/compileerr"
	"github.com/blendsdk/blend65/frame"
	"github.com/blendsdk/blend65/platform"
	"github.com/blendsdk/blend65/ssair"
	"github.com/blendsdk/blend65/zpage"
)

// buildCtx runs C2-C4 over mod directly (bypassing the frontend, the
// same raw ssair.Function construction frame/alloc_test.go uses) so
// these tests can drive backend.Compiler/m6502.Machine in isolation.
func buildCtx(t *testing.T, mod *ssair.Module) *backend.Context {
	t.Helper()
	slots := make(map[string][]frame.SlotInfo, len(mod.Functions))
	for _, fn := range mod.Functions {
		ssair.ComputeCFG(fn)
		slots[fn.Name] = frame.ScanSlots(fn)
	}
	cfg := platform.C64()
	g := callgraph.Build(mod)
	cgRes, cgErrs := callgraph.Analyze(g, cfg.CallDepthWarningThreshold)
	require.Equal(t, 0, cgErrs.Len())
	fm, frameErrs := frame.Allocate(mod, cfg, cgRes, slots)
	require.Equal(t, 0, frameErrs.Len())
	zm, zpErrs := zpage.Allocate(fm, cfg, slots)
	require.Equal(t, 0, zpErrs.Len())
	_ = zm
	return &backend.Context{Module: mod, Frame: fm, CallGraph: cgRes, Platform: cfg}
}

func compileFn(t *testing.T, mod *ssair.Module) *asmil.Module {
	t.Helper()
	ctx := buildCtx(t, mod)
	var errs compileerr.List
	machine := New(ctx, &errs)
	compiler := backend.NewCompiler(ctx, machine, backend.PhiScratchSym)
	out := compiler.Compile()
	require.NoError(t, errs.Err())
	return out
}

func allInstrs(fn *asmil.Function) []asmil.Instruction {
	var out []asmil.Instruction
	for _, b := range fn.Blocks {
		out = append(out, b.Instrs...)
	}
	return out
}

// An empty void function lowers to exactly one RTS (spec.md §8.3's
// empty-function boundary case).
func TestLowerInstr_EmptyVoidFunction_SingleRTS(t *testing.T) {
	blk := &ssair.Block{Label: "entry", Term: &ssair.Instruction{Opcode: ssair.OpReturn}}
	fn := &ssair.Function{Name: "noop", Blocks: []*ssair.Block{blk}, Entry: blk}
	mod := &ssair.Module{Functions: []*ssair.Function{fn}}

	out := compileFn(t, mod)
	asmFn := out.FunctionByName("noop")
	require.NotNil(t, asmFn)
	instrs := allInstrs(asmFn)
	require.Len(t, instrs, 1)
	require.Equal(t, asmil.RTS, instrs[0].Mnemonic)
}

// A plain byte add of two constants loads the first operand, adds the
// second straight from its frame slot with ADC, and stores the result
// to its own frame slot.
func TestLowerInstr_ConstAdd_StoresResult(t *testing.T) {
	fn := &ssair.Function{Name: "addTwo"}
	bld := ssair.NewBuilder(fn)
	blk := bld.NewBlock("entry")

	a := bld.NewValue(ssair.U8)
	b := bld.NewValue(ssair.U8)
	r := bld.NewValue(ssair.U8)
	blk.Instrs = append(blk.Instrs,
		&ssair.Instruction{Opcode: ssair.OpConst, Result: a, Const: ssair.ConstValue{Type: ssair.U8, U8: 2}},
		&ssair.Instruction{Opcode: ssair.OpConst, Result: b, Const: ssair.ConstValue{Type: ssair.U8, U8: 3}},
		&ssair.Instruction{Opcode: ssair.OpAdd, Result: r, Args: []ssair.Value{a, b}},
	)
	blk.Term = &ssair.Instruction{Opcode: ssair.OpReturn, Args: []ssair.Value{r}}
	mod := &ssair.Module{Functions: []*ssair.Function{fn}}

	out := compileFn(t, mod)
	asmFn := out.FunctionByName("addTwo")
	require.NotNil(t, asmFn)
	instrs := allInstrs(asmFn)
	require.NotEmpty(t, instrs)
	require.Equal(t, asmil.RTS, instrs[len(instrs)-1].Mnemonic)

	rHome := fn.SlotName(r.ID())
	var sawADC, sawStore bool
	for _, ins := range instrs {
		if ins.Mnemonic == asmil.ADC {
			sawADC = true
		}
		if ins.Mnemonic == asmil.STA && ins.Operand != nil && ins.Operand.Symbol == rHome {
			sawStore = true
		}
	}
	require.True(t, sawADC, "expected an ADC among:\n%v", instrs)
	require.True(t, sawStore, "expected a store of the sum to %s among:\n%v", rHome, instrs)
}

// Regression test for the @map simple-store symbol lookup: a MapSimple
// field access carries an empty Field, and the store must reference
// the bare map name (the symbol registerRuntimeSymbols actually binds)
// rather than a name with a trailing dot.
func TestLowerInstr_MapSimpleStore_UsesBareSymbolName(t *testing.T) {
	fn := &ssair.Function{Name: "setBorder"}
	bld := ssair.NewBuilder(fn)
	blk := bld.NewBlock("entry")

	v := bld.NewValue(ssair.U8)
	blk.Instrs = append(blk.Instrs,
		&ssair.Instruction{Opcode: ssair.OpConst, Result: v, Const: ssair.ConstValue{Type: ssair.U8, U8: 5}},
		&ssair.Instruction{Opcode: ssair.OpMapStoreField, Name: "border", Args: []ssair.Value{v}},
	)
	blk.Term = &ssair.Instruction{Opcode: ssair.OpReturn}
	mod := &ssair.Module{
		Functions: []*ssair.Function{fn},
		Maps:      []*ssair.MapDecl{{Name: "border", Kind: ssair.MapSimple, Addr: 0xD020, Type: ssair.U8}},
	}

	out := compileFn(t, mod)
	asmFn := out.FunctionByName("setBorder")
	require.NotNil(t, asmFn)

	// The constant is first stored to its own temp slot (no peephole
	// runs here); every other STA is the map store.
	constHome := fn.SlotName(v.ID())
	var foundStore bool
	for _, ins := range allInstrs(asmFn) {
		if ins.Mnemonic == asmil.STA && ins.Operand != nil && ins.Operand.Symbol != constHome {
			require.Equal(t, "border", ins.Operand.Symbol, "must not carry a trailing-dot field suffix for a simple map")
			foundStore = true
		}
	}
	require.True(t, foundStore)

	sym := out.SymbolByName("border")
	require.NotNil(t, sym)
	require.Equal(t, uint16(0xD020), sym.Addr)
}

// LowerParallelCopy: a PHI merging two branch-local values must emit a
// copy move on the predecessor edge where the PHI operand's home
// differs from the PHI result's home (if CoalescePhis already merged
// them, the move count must be zero rather than wrong).
func TestLowerParallelCopy_CopiesAcrossDistinctHomes(t *testing.T) {
	fn := &ssair.Function{Name: "phiFn"}
	bld := ssair.NewBuilder(fn)
	entry := bld.NewBlock("entry")
	thenBlk := bld.NewBlock("then")
	join := bld.NewBlock("join")
	entry.Succs = []*ssair.Block{thenBlk, join}
	thenBlk.Preds = []*ssair.Block{entry}
	thenBlk.Succs = []*ssair.Block{join}
	join.Preds = []*ssair.Block{entry, thenBlk}

	cond := bld.NewValue(ssair.I1)
	tVal := bld.NewValue(ssair.U8) // kept as its own temp: this test builds ssair directly, skipping the CoalescePhis pass frontend.lowerFunc runs.
	phiResult := bld.NewValue(ssair.U8)
	tTemp := fn.SlotName(tVal.ID())

	entry.Instrs = append(entry.Instrs, &ssair.Instruction{Opcode: ssair.OpConst, Result: cond, Const: ssair.ConstValue{Type: ssair.I1, Bool: true}})
	entry.Term = &ssair.Instruction{Opcode: ssair.OpBrIf, Args: []ssair.Value{cond}, Targets: []string{"then", "join"}}

	thenBlk.Instrs = append(thenBlk.Instrs, &ssair.Instruction{Opcode: ssair.OpConst, Result: tVal, Const: ssair.ConstValue{Type: ssair.U8, U8: 10}})
	thenBlk.Term = &ssair.Instruction{Opcode: ssair.OpBr, Targets: []string{"join"}}

	join.Phis = append(join.Phis, &ssair.Instruction{
		Opcode: ssair.OpPhi,
		Result: phiResult,
		Phi: []ssair.PhiEdge{
			{Pred: "entry", Value: ssair.InvalidValue()},
			{Pred: "then", Value: tVal},
		},
	})
	join.Term = &ssair.Instruction{Opcode: ssair.OpReturn, Args: []ssair.Value{phiResult}}

	mod := &ssair.Module{Functions: []*ssair.Function{fn}}
	out := compileFn(t, mod)
	asmFn := out.FunctionByName("phiFn")
	require.NotNil(t, asmFn)

	thenOut := asmFn.BlockByLabel("then")
	require.NotNil(t, thenOut)
	var sawLoadOfTemp, sawStoreOfResult bool
	phiHome := fn.SlotName(phiResult.ID())
	for _, ins := range thenOut.Instrs {
		if ins.Mnemonic == asmil.LDA && ins.Operand != nil && ins.Operand.Symbol == tTemp {
			sawLoadOfTemp = true
		}
		if ins.Mnemonic == asmil.STA && ins.Operand != nil && ins.Operand.Symbol == phiHome {
			sawStoreOfResult = true
		}
	}
	require.True(t, sawLoadOfTemp, "expected the parallel copy to load the branch's own temp:\n%v", thenOut.Instrs)
	require.True(t, sawStoreOfResult, "expected the parallel copy to store into the phi's own home:\n%v", thenOut.Instrs)
}
