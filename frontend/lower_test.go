package frontend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blendsdk/blend65/ssair"
)

func verifyWellFormed(t *testing.T, fn *ssair.Function) *ssair.CFG {
	t.Helper()
	cfg := ssair.ComputeCFG(fn)
	errs := ssair.Verify(fn, cfg)
	require.Empty(t, errs, "%v", errs)
	return cfg
}

// max(a, b u8) u8 { if a > b { return a } else { return b } }
func TestLower_IfElseBothReturn(t *testing.T) {
	fd := &FuncDecl{
		Name:       "max",
		Params:     []Param{{Name: "a", Type: ssair.U8}, {Name: "b", Type: ssair.U8}},
		ReturnType: ssair.U8,
		Body: []Stmt{
			&If{
				Cond: &Binary{Op: ssair.OpGt, Left: &Ident{Name: "a", Typ: ssair.U8}, Right: &Ident{Name: "b", Typ: ssair.U8}, Typ: ssair.I1},
				Then: []Stmt{&Return{Value: &Ident{Name: "a", Typ: ssair.U8}}},
				Else: []Stmt{&Return{Value: &Ident{Name: "b", Typ: ssair.U8}}},
			},
		},
	}

	lw := NewLowerer()
	mod := lw.Lower(&File{Funcs: []*FuncDecl{fd}})
	require.NoError(t, lw.Err())

	fn := mod.FunctionByName("max")
	require.NotNil(t, fn)
	verifyWellFormed(t, fn)

	// Both arms return directly, so the "endif" join that would
	// normally follow the if/else is unreachable: exactly one
	// non-entry block should end up with no predecessors.
	unreachable := 0
	for _, b := range fn.Blocks {
		if b != fn.Entry && len(b.Preds) == 0 {
			unreachable++
		}
	}
	require.Equal(t, 1, unreachable)
}

// count(limit u8) u8 { total := 0; i := 0; while i < limit { total = total + 1; i = i + 1 }; return total }
func TestLower_WhileLoopPhis(t *testing.T) {
	fd := &FuncDecl{
		Name:       "count",
		Params:     []Param{{Name: "limit", Type: ssair.U8}},
		ReturnType: ssair.U8,
		Body: []Stmt{
			&LocalDecl{Name: "total", Type: ssair.U8, Init: &IntLiteral{Value: 0, Typ: ssair.U8}},
			&LocalDecl{Name: "i", Type: ssair.U8, Init: &IntLiteral{Value: 0, Typ: ssair.U8}},
			&While{
				Cond: &Binary{Op: ssair.OpLt, Left: &Ident{Name: "i", Typ: ssair.U8}, Right: &Ident{Name: "limit", Typ: ssair.U8}, Typ: ssair.I1},
				Body: []Stmt{
					&Assign{Target: &Ident{Name: "total", Typ: ssair.U8}, Value: &Binary{Op: ssair.OpAdd, Left: &Ident{Name: "total", Typ: ssair.U8}, Right: &IntLiteral{Value: 1, Typ: ssair.U8}, Typ: ssair.U8}},
					&Assign{Target: &Ident{Name: "i", Typ: ssair.U8}, Value: &Binary{Op: ssair.OpAdd, Left: &Ident{Name: "i", Typ: ssair.U8}, Right: &IntLiteral{Value: 1, Typ: ssair.U8}, Typ: ssair.U8}},
				},
			},
			&Return{Value: &Ident{Name: "total", Typ: ssair.U8}},
		},
	}

	lw := NewLowerer()
	mod := lw.Lower(&File{Funcs: []*FuncDecl{fd}})
	require.NoError(t, lw.Err())

	fn := mod.FunctionByName("count")
	require.NotNil(t, fn)
	cfg := verifyWellFormed(t, fn)

	// entry -> header is the only edge out of entry.
	require.Len(t, fn.Entry.Succs, 1)
	header := fn.Entry.Succs[0]
	require.NotEmpty(t, header.Phis, "loop header should carry phis for total and i")
	require.Equal(t, 1, header.LoopDepth())

	// header's two successors are the body and the exit; the body is
	// whichever one the header itself dominates but that also loops
	// back to the header.
	require.Len(t, header.Succs, 2)
	var body *ssair.Block
	for _, s := range header.Succs {
		if cfg.Dominates(header, s) && len(s.Succs) == 1 && s.Succs[0] == header {
			body = s
		}
	}
	require.NotNil(t, body, "expected to find the loop body among header's successors")
	require.Equal(t, 1, body.LoopDepth())
	require.True(t, cfg.Dominates(header, body))
}

// flag := a && b, lowered to a branch/phi shape that still verifies.
func TestLower_ShortCircuitAnd(t *testing.T) {
	fd := &FuncDecl{
		Name:       "both",
		Params:     []Param{{Name: "a", Type: ssair.I1}, {Name: "b", Type: ssair.I1}},
		ReturnType: ssair.I1,
		Body: []Stmt{
			&Return{Value: &Binary{Op: ssair.OpLogicalAnd, Left: &Ident{Name: "a", Typ: ssair.I1}, Right: &Ident{Name: "b", Typ: ssair.I1}, Typ: ssair.I1}},
		},
	}

	lw := NewLowerer()
	mod := lw.Lower(&File{Funcs: []*FuncDecl{fd}})
	require.NoError(t, lw.Err())

	fn := mod.FunctionByName("both")
	verifyWellFormed(t, fn)
}

// a && (b && c): the right operand of the outer && is itself a
// short-circuit expression, so its lowering introduces its own
// scrhs/scshort/join blocks before returning control to the outer
// lowering. The outer join's PHI must take its "rhs" incoming value
// from whichever block the nested && actually finished in, not from
// the block the nested && started in (spec.md §4.1/§9) — verifyWellFormed
// would catch a PHI/dominance mismatch either way.
func TestLower_NestedShortCircuitAnd(t *testing.T) {
	fd := &FuncDecl{
		Name: "all3",
		Params: []Param{
			{Name: "a", Type: ssair.I1},
			{Name: "b", Type: ssair.I1},
			{Name: "c", Type: ssair.I1},
		},
		ReturnType: ssair.I1,
		Body: []Stmt{
			&Return{Value: &Binary{
				Op:   ssair.OpLogicalAnd,
				Left: &Ident{Name: "a", Typ: ssair.I1},
				Right: &Binary{
					Op:   ssair.OpLogicalAnd,
					Left: &Ident{Name: "b", Typ: ssair.I1},
					Right: &Ident{Name: "c", Typ: ssair.I1},
					Typ:  ssair.I1,
				},
				Typ: ssair.I1,
			}},
		},
	}

	lw := NewLowerer()
	mod := lw.Lower(&File{Funcs: []*FuncDecl{fd}})
	require.NoError(t, lw.Err())

	fn := mod.FunctionByName("all3")
	verifyWellFormed(t, fn)
}

// Boundary behavior (spec.md §8.3): an empty function (no statements,
// void return) produces a one-block IL function containing only
// `return`.
func TestLower_EmptyVoidFunctionIsOneBlockWithOnlyReturn(t *testing.T) {
	fd := &FuncDecl{
		Name:       "noop",
		ReturnType: ssair.Type{Kind: ssair.KindInvalid},
		Body:       nil,
	}

	lw := NewLowerer()
	mod := lw.Lower(&File{Funcs: []*FuncDecl{fd}})
	require.NoError(t, lw.Err())

	fn := mod.FunctionByName("noop")
	require.NotNil(t, fn)
	require.Len(t, fn.Blocks, 1)
	require.Empty(t, fn.Entry.Instrs)
	require.Empty(t, fn.Entry.Phis)
	require.NotNil(t, fn.Entry.Term)
	require.Equal(t, ssair.OpReturn, fn.Entry.Term.Opcode)
	require.Nil(t, fn.Entry.Term.Args)

	verifyWellFormed(t, fn)
}

func TestLower_MapFieldAssignAndRead(t *testing.T) {
	fd := &FuncDecl{
		Name: "setBorder",
		Body: []Stmt{
			&Assign{Target: &MapFieldAccess{Map: "border", Typ: ssair.U8}, Value: &IntLiteral{Value: 2, Typ: ssair.U8}},
		},
	}
	lw := NewLowerer()
	mapDecl := &MapDecl{Name: "border", Kind: ssair.MapSimple, Addr: 0xD020, Type: ssair.U8}
	mod := lw.Lower(&File{Funcs: []*FuncDecl{fd}, Maps: []*MapDecl{mapDecl}})
	require.NoError(t, lw.Err())

	fn := mod.FunctionByName("setBorder")
	verifyWellFormed(t, fn)

	found := false
	for _, ins := range fn.Entry.Instrs {
		if ins.Opcode == ssair.OpMapStoreField && ins.Name == "border" {
			found = true
		}
	}
	require.True(t, found)
}
