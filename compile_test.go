package blend65_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	blend65 "github.com/blendsdk/blend65"
	"github.com/blendsdk/blend65/asmil"
	"github.com/blendsdk/blend65/frontend"
	"github.com/blendsdk/blend65/platform"
	"github.com/blendsdk/blend65/ssair"
)

func countInstrs(fn *asmil.Function) int {
	n := 0
	for _, b := range fn.Blocks {
		n += len(b.Instrs)
	}
	return n
}

func allInstrs(fn *asmil.Function) []asmil.Instruction {
	var out []asmil.Instruction
	for _, b := range fn.Blocks {
		out = append(out, b.Instrs...)
	}
	return out
}

func mnemonics(instrs []asmil.Instruction) []string {
	out := make([]string, len(instrs))
	for i, ins := range instrs {
		out[i] = string(ins.Mnemonic)
	}
	return out
}

// Scenario D (spec.md §8.4): countdown(n) calls itself and is flagged
// recursive. Expected: the call site brackets its JSR with
// PUSH_FRAME/POP_FRAME, and the recursive countdown never shares a
// coalescing group with main (spec.md §4.2/§4.3 forbid coalescing any
// frame that can be live more than once at a time).
//
// countdown(n u8) u8 { if n == 0 { return n } return countdown(n - 1) }
func TestCompile_ScenarioD_RecursionGetsSoftwareFrame(t *testing.T) {
	fd := &frontend.FuncDecl{
		Name:       "countdown",
		Params:     []frontend.Param{{Name: "n", Type: ssair.U8}},
		ReturnType: ssair.U8,
		Recursive:  true,
		Body: []frontend.Stmt{
			&frontend.If{
				Cond: &frontend.Binary{Op: ssair.OpEq, Left: &frontend.Ident{Name: "n", Typ: ssair.U8}, Right: &frontend.IntLiteral{Value: 0, Typ: ssair.U8}, Typ: ssair.I1},
				Then: []frontend.Stmt{&frontend.Return{Value: &frontend.Ident{Name: "n", Typ: ssair.U8}}},
			},
			&frontend.Return{Value: &frontend.Call{
				Callee: "countdown",
				Args:   []frontend.Expr{&frontend.Binary{Op: ssair.OpSub, Left: &frontend.Ident{Name: "n", Typ: ssair.U8}, Right: &frontend.IntLiteral{Value: 1, Typ: ssair.U8}, Typ: ssair.U8}},
				Typ:    ssair.U8,
			}},
		},
	}
	main := &frontend.FuncDecl{
		Name:       "main",
		ReturnType: ssair.Type{Kind: ssair.KindInvalid},
		Body: []frontend.Stmt{
			&frontend.ExprStmt{X: &frontend.Call{Callee: "countdown", Args: []frontend.Expr{&frontend.IntLiteral{Value: 5, Typ: ssair.U8}}}},
			&frontend.Return{},
		},
	}

	res, err := blend65.Compile(&frontend.File{Funcs: []*frontend.FuncDecl{fd, main}}, platform.C64())
	require.NoError(t, err)

	require.True(t, res.CallGraph.Recursive["countdown"])

	asmFn := res.ASM.FunctionByName("countdown")
	require.NotNil(t, asmFn)

	instrs := allInstrs(asmFn)
	pushIdx, popIdx, jsrIdx := -1, -1, -1
	for i, ins := range instrs {
		switch ins.Mnemonic {
		case asmil.MacroPushFrame:
			pushIdx = i
		case asmil.MacroPopFrame:
			popIdx = i
		case asmil.JSR:
			jsrIdx = i
		}
	}
	require.GreaterOrEqual(t, pushIdx, 0, "expected a PUSH_FRAME around the recursive call:\n%v", mnemonics(instrs))
	require.GreaterOrEqual(t, popIdx, 0, "expected a POP_FRAME around the recursive call:\n%v", mnemonics(instrs))
	require.GreaterOrEqual(t, jsrIdx, 0)
	require.True(t, pushIdx < jsrIdx && jsrIdx < popIdx, "expected PUSH_FRAME, JSR, POP_FRAME in order:\n%v", mnemonics(instrs))

	// A recursive function's frame never joins a coalescing group with
	// anything else.
	require.NotEqual(t, res.Frame.Funcs["countdown"].GroupID, res.Frame.Funcs["main"].GroupID)
}

// Scenario E (spec.md §8.4): if (c) x = 10 else x = 20; return x.
// x is declared with the parameter d as its initial value, so the
// declaration itself adds no constant load. Each branch must store
// directly into x's merged home and jump to the join block; the join
// must load that one home and return. No stray
// `LDA #0` stub may appear anywhere, and the total LDA-immediate count
// is exactly two (the 10 and the 20).
func TestCompile_ScenarioE_PhiThroughIfElse(t *testing.T) {
	fd := &frontend.FuncDecl{
		Name:       "pick",
		Params:     []frontend.Param{{Name: "c", Type: ssair.I1}, {Name: "d", Type: ssair.U8}},
		ReturnType: ssair.U8,
		Body: []frontend.Stmt{
			&frontend.LocalDecl{Name: "x", Type: ssair.U8, Init: &frontend.Ident{Name: "d", Typ: ssair.U8}},
			&frontend.If{
				Cond: &frontend.Ident{Name: "c", Typ: ssair.I1},
				Then: []frontend.Stmt{
					&frontend.Assign{Target: &frontend.Ident{Name: "x", Typ: ssair.U8}, Value: &frontend.IntLiteral{Value: 10, Typ: ssair.U8}},
				},
				Else: []frontend.Stmt{
					&frontend.Assign{Target: &frontend.Ident{Name: "x", Typ: ssair.U8}, Value: &frontend.IntLiteral{Value: 20, Typ: ssair.U8}},
				},
			},
			&frontend.Return{Value: &frontend.Ident{Name: "x", Typ: ssair.U8}},
		},
	}

	res, err := blend65.Compile(&frontend.File{Funcs: []*frontend.FuncDecl{fd}}, platform.C64())
	require.NoError(t, err)

	asmFn := res.ASM.FunctionByName("pick")
	require.NotNil(t, asmFn)
	instrs := allInstrs(asmFn)

	var immOperands []uint8
	for _, ins := range instrs {
		if ins.Mnemonic == asmil.LDA && ins.Operand != nil && ins.Operand.Mode == asmil.AddrImmediate {
			immOperands = append(immOperands, ins.Operand.Imm)
			require.NotEqual(t, uint8(0), ins.Operand.Imm, "no LDA #0 stub must appear:\n%v", mnemonics(instrs))
		}
	}
	require.ElementsMatch(t, []uint8{10, 20}, immOperands, "expected exactly the 10 and 20 immediates:\n%v", mnemonics(instrs))

	// Every LDA #10/#20 is immediately followed by a store to the same
	// symbol, i.e. each branch stores directly into x's merged home
	// rather than a branch-private temp.
	var homes []string
	for i, ins := range instrs {
		if ins.Mnemonic == asmil.LDA && ins.Operand != nil && ins.Operand.Mode == asmil.AddrImmediate && (ins.Operand.Imm == 10 || ins.Operand.Imm == 20) {
			require.Less(t, i+1, len(instrs), "LDA #imm must be followed by a store")
			next := instrs[i+1]
			require.Equal(t, asmil.STA, next.Mnemonic)
			require.NotNil(t, next.Operand)
			homes = append(homes, next.Operand.Symbol)
		}
	}
	require.Len(t, homes, 2)
	require.Equal(t, homes[0], homes[1], "both branches must store into the same merged home")
}

// Scenario F (spec.md §8.4): `@map border at $D020 : u8; border = 5;`
// lowers to exactly two instructions, with no call and no indirection.
func TestCompile_ScenarioF_MapStoreIsZeroOverhead(t *testing.T) {
	fd := &frontend.FuncDecl{
		Name: "setBorder",
		Body: []frontend.Stmt{
			&frontend.Assign{Target: &frontend.MapFieldAccess{Map: "border", Typ: ssair.U8}, Value: &frontend.IntLiteral{Value: 5, Typ: ssair.U8}},
			&frontend.Return{},
		},
	}
	mapDecl := &frontend.MapDecl{Name: "border", Kind: ssair.MapSimple, Addr: 0xD020, Type: ssair.U8}

	res, err := blend65.Compile(&frontend.File{Funcs: []*frontend.FuncDecl{fd}, Maps: []*frontend.MapDecl{mapDecl}}, platform.C64())
	require.NoError(t, err)

	asmFn := res.ASM.FunctionByName("setBorder")
	require.NotNil(t, asmFn)
	instrs := allInstrs(asmFn)

	require.Equal(t, 3, countInstrs(asmFn), "expected LDA #5, STA border, RTS:\n%v", mnemonics(instrs))
	require.Equal(t, asmil.LDA, instrs[0].Mnemonic)
	require.Equal(t, asmil.AddrImmediate, instrs[0].Operand.Mode)
	require.Equal(t, uint8(5), instrs[0].Operand.Imm)
	require.Equal(t, asmil.STA, instrs[1].Mnemonic)
	require.Equal(t, "border", instrs[1].Operand.Symbol)
	require.Equal(t, asmil.RTS, instrs[2].Mnemonic)

	sym := res.ASM.SymbolByName("border")
	require.NotNil(t, sym)
	require.Equal(t, uint16(0xD020), sym.Addr)
}
