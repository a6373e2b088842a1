package ssair

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// if/else merge: a single variable written differently on each arm
// must read back as a phi in the join block naming both predecessors.
func TestBuilder_IfElsePhi(t *testing.T) {
	fn := &Function{Name: "max"}
	b := NewBuilder(fn)
	b.DeclareVariable("x", U8)

	entry := b.NewBlock("entry")
	thenBlk := b.NewBlock("then")
	elseBlk := b.NewBlock("else")
	join := b.NewBlock("join")

	b.AddPred(thenBlk, entry)
	b.AddPred(elseBlk, entry)
	b.Seal(thenBlk)
	b.Seal(elseBlk)

	one := b.NewValue(U8)
	b.Emit(entry, &Instruction{Opcode: OpConst, Result: one, Const: ConstValue{Type: U8, U8: 1}})
	b.SetTerm(entry, &Instruction{Opcode: OpBrIf, Targets: []string{"then", "else"}})

	b.WriteVariable("x", thenBlk, one)
	b.SetTerm(thenBlk, &Instruction{Opcode: OpBr, Targets: []string{"join"}})

	two := b.NewValue(U8)
	b.Emit(elseBlk, &Instruction{Opcode: OpConst, Result: two, Const: ConstValue{Type: U8, U8: 2}})
	b.WriteVariable("x", elseBlk, two)
	b.SetTerm(elseBlk, &Instruction{Opcode: OpBr, Targets: []string{"join"}})

	b.AddPred(join, thenBlk)
	b.AddPred(join, elseBlk)
	b.Seal(join)

	got := b.ReadVariable("x", join)
	b.SetTerm(join, &Instruction{Opcode: OpReturn, Args: []Value{got}})

	require.Len(t, join.Phis, 1)
	phi := join.Phis[0]
	require.Equal(t, got.ID(), phi.Result.ID())
	require.Len(t, phi.Phi, 2)

	byPred := map[string]ValueID{}
	for _, e := range phi.Phi {
		byPred[e.Pred] = e.Value.ID()
	}
	require.Equal(t, one.ID(), byPred["then"])
	require.Equal(t, two.ID(), byPred["else"])
}

// A variable written once before a loop header and never reassigned
// in the loop body still gets a phi at the header, because the header
// has two predecessors (entry and the back edge) and this builder
// does not perform Braun et al.'s trivial-phi elimination (spec.md
// does not require CSE/optimization beyond the peephole/DCE pass).
// The phi's back-edge operand resolves to itself, which later passes
// must treat as "keep whatever value is already there".
func TestBuilder_LoopInvariantSelfPhi(t *testing.T) {
	fn := &Function{Name: "count"}
	b := NewBuilder(fn)
	b.DeclareVariable("limit", U8)

	entry := b.NewBlock("entry")
	header := b.NewBlock("header")
	body := b.NewBlock("body")
	exit := b.NewBlock("exit")

	limit := b.NewValue(U8)
	b.Emit(entry, &Instruction{Opcode: OpConst, Result: limit, Const: ConstValue{Type: U8, U8: 10}})
	b.WriteVariable("limit", entry, limit)
	b.SetTerm(entry, &Instruction{Opcode: OpBr, Targets: []string{"header"}})

	b.AddPred(header, entry)
	// header has a back edge from body, added once body exists, so it
	// cannot be sealed yet.
	inHeader := b.ReadVariable("limit", header)
	b.SetTerm(header, &Instruction{Opcode: OpBrIf, Targets: []string{"body", "exit"}})

	b.AddPred(body, header)
	b.Seal(body)
	b.SetTerm(body, &Instruction{Opcode: OpBr, Targets: []string{"header"}})

	b.AddPred(header, body)
	b.Seal(header)

	b.AddPred(exit, header)
	b.Seal(exit)
	b.SetTerm(exit, &Instruction{Opcode: OpReturn, Args: []Value{inHeader}})

	require.Len(t, header.Phis, 1)
	phi := header.Phis[0]
	require.Equal(t, inHeader.ID(), phi.Result.ID())
	require.Len(t, phi.Phi, 2)

	byPred := map[string]ValueID{}
	for _, e := range phi.Phi {
		byPred[e.Pred] = e.Value.ID()
	}
	require.Equal(t, limit.ID(), byPred["entry"])
	require.Equal(t, phi.Result.ID(), byPred["body"], "back edge operand is self-referential without trivial-phi elimination")
}
