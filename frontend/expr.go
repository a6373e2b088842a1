package frontend

import (
	"github.com/blendsdk/blend65/compileerr"
	"github.com/blendsdk/blend65/ssair"
)

func (fl *funcLowerer) lowerExpr(e Expr) ssair.Value {
	switch n := e.(type) {
	case *IntLiteral:
		v := fl.b.NewValue(n.Typ)
		c := ssair.ConstValue{Type: n.Typ}
		if n.Typ.IsWord() {
			c.U16 = n.Value
		} else {
			c.U8 = uint8(n.Value)
		}
		fl.b.Emit(fl.cur, &ssair.Instruction{Opcode: ssair.OpConst, Pos: n.Pos, Result: v, Const: c})
		return v

	case *BoolLiteral:
		v := fl.b.NewValue(ssair.I1)
		fl.b.Emit(fl.cur, &ssair.Instruction{Opcode: ssair.OpConst, Pos: n.Pos, Result: v, Const: ssair.ConstValue{Type: ssair.I1, Bool: n.Value}})
		return v

	case *Ident:
		return fl.b.ReadVariable(ssair.Variable(n.Name), fl.cur)

	case *Binary:
		return fl.lowerBinary(n)

	case *Unary:
		x := fl.lowerExpr(n.X)
		v := fl.b.NewValue(n.Typ)
		fl.b.Emit(fl.cur, &ssair.Instruction{Opcode: n.Op, Pos: n.Pos, Result: v, Args: []ssair.Value{x}})
		return v

	case *Call:
		args := fl.lowerExprList(n.Args)
		var result ssair.Value
		if n.Typ.Kind != ssair.KindInvalid {
			result = fl.b.NewValue(n.Typ)
		}
		fl.b.Emit(fl.cur, &ssair.Instruction{
			Opcode: ssair.OpCall, Pos: n.Pos, Result: result, Name: n.Callee, Args: args,
			Signature: &ssair.Signature{Result: n.Typ},
		})
		return result

	case *CallIndirect:
		target := fl.lowerExpr(n.Target)
		args := fl.lowerExprList(n.Args)
		var result ssair.Value
		if n.Typ.Kind != ssair.KindInvalid {
			result = fl.b.NewValue(n.Typ)
		}
		fl.b.Emit(fl.cur, &ssair.Instruction{
			Opcode: ssair.OpCallIndirect, Pos: n.Pos, Result: result,
			Args: append([]ssair.Value{target}, args...),
			Signature: &ssair.Signature{Result: n.Typ},
		})
		return result

	case *MapFieldAccess:
		v := fl.b.NewValue(n.Typ)
		fl.b.Emit(fl.cur, &ssair.Instruction{Opcode: ssair.OpMapLoadField, Pos: n.Pos, Result: v, Name: n.Map, Field: n.Field})
		return v

	case *MapRangeAccess:
		idx := fl.lowerExpr(n.Index)
		v := fl.b.NewValue(n.Typ)
		fl.b.Emit(fl.cur, &ssair.Instruction{Opcode: ssair.OpMapLoadRange, Pos: n.Pos, Result: v, Name: n.Map, Args: []ssair.Value{idx}})
		return v

	case *AddrOf:
		v := fl.b.NewValue(n.Typ)
		fl.b.Emit(fl.cur, &ssair.Instruction{Opcode: ssair.OpAddrOf, Pos: n.Pos, Result: v, Name: n.Name})
		return v

	case *Len:
		v := fl.b.NewValue(ssair.U8)
		fl.b.Emit(fl.cur, &ssair.Instruction{Opcode: ssair.OpLen, Pos: n.Pos, Result: v, Name: n.Name})
		return v

	case *Peek:
		addr := fl.lowerExpr(n.Addr)
		v := fl.b.NewValue(n.Typ)
		fl.b.Emit(fl.cur, &ssair.Instruction{Opcode: ssair.OpPeek, Pos: n.Pos, Result: v, Args: []ssair.Value{addr}})
		return v

	case *Poke:
		addr := fl.lowerExpr(n.Addr)
		val := fl.lowerExpr(n.Value)
		fl.b.Emit(fl.cur, &ssair.Instruction{Opcode: ssair.OpPoke, Pos: n.Pos, Args: []ssair.Value{addr, val}})
		return ssair.InvalidValue()

	default:
		fl.lw.errs.Addf(compileerr.InternalInvariantViolation, ssair.Pos{}, "unhandled expression type %T", e)
		return fl.b.NewValue(ssair.U8)
	}
}

func (fl *funcLowerer) lowerExprList(es []Expr) []ssair.Value {
	out := make([]ssair.Value, len(es))
	for i, e := range es {
		out[i] = fl.lowerExpr(e)
	}
	return out
}

// lowerBinary lowers ordinary binary operators directly, and
// short-circuits && / || into a branch-and-phi shape (spec.md §4.1):
//
//	a && b  ==>  if a { t = b } else { t = false }; use t
//	a || b  ==>  if a { t = true } else { t = b }; use t
func (fl *funcLowerer) lowerBinary(n *Binary) ssair.Value {
	if n.Op != ssair.OpLogicalAnd && n.Op != ssair.OpLogicalOr {
		l := fl.lowerExpr(n.Left)
		r := fl.lowerExpr(n.Right)
		v := fl.b.NewValue(n.Typ)
		fl.b.Emit(fl.cur, &ssair.Instruction{Opcode: n.Op, Pos: n.Pos, Result: v, Args: []ssair.Value{l, r}})
		return v
	}

	const tmp = ssair.Variable("$sc_tmp")
	lhs := fl.lowerExpr(n.Left)
	// The left operand may itself contain control flow (e.g. a nested
	// `a && (b && c)`), which leaves fl.cur pointing at whatever block
	// its own lowering actually finished in, not the block lowering
	// started in — that finishing block, not a block captured before
	// n.Left was lowered, is the one that branches on lhs.
	lhsBlk := fl.cur

	rhsBlk := fl.newBlock("scrhs")
	shortBlk := fl.newBlock("scshort")
	join := fl.newBlock("scjoin")

	var targets []string
	if n.Op == ssair.OpLogicalAnd {
		targets = []string{rhsBlk.Label, shortBlk.Label}
	} else {
		targets = []string{shortBlk.Label, rhsBlk.Label}
	}
	fl.b.SetTerm(lhsBlk, &ssair.Instruction{Opcode: ssair.OpBrIf, Pos: n.Pos, Args: []ssair.Value{lhs}, Targets: targets})
	fl.b.AddPred(rhsBlk, lhsBlk)
	fl.b.AddPred(shortBlk, lhsBlk)
	fl.b.Seal(rhsBlk)
	fl.b.Seal(shortBlk)

	fl.b.DeclareVariable(tmp, n.Typ)

	fl.cur = rhsBlk
	rhs := fl.lowerExpr(n.Right)
	// Same reasoning as lhsBlk: n.Right may have branched into its own
	// nested blocks, so the block that actually holds rhs at its end
	// is fl.cur now, not rhsBlk itself.
	rhsEndBlk := fl.cur
	fl.b.WriteVariable(tmp, rhsEndBlk, rhs)
	fl.b.SetTerm(rhsEndBlk, &ssair.Instruction{Opcode: ssair.OpBr, Targets: []string{join.Label}})
	fl.b.AddPred(join, rhsEndBlk)

	shortVal := fl.b.NewValue(n.Typ)
	fl.b.Emit(shortBlk, &ssair.Instruction{
		Opcode: ssair.OpConst, Result: shortVal,
		Const: ssair.ConstValue{Type: n.Typ, Bool: n.Op == ssair.OpLogicalOr},
	})
	fl.b.WriteVariable(tmp, shortBlk, shortVal)
	fl.b.SetTerm(shortBlk, &ssair.Instruction{Opcode: ssair.OpBr, Targets: []string{join.Label}})
	fl.b.AddPred(join, shortBlk)

	fl.b.Seal(join)
	fl.cur = join
	return fl.b.ReadVariable(tmp, join)
}
