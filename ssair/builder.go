package ssair

// Builder incrementally constructs one Function's SSA form while the
// frontend walks the AST (spec.md §4.1). It implements the Braun et
// al. "simple and efficient SSA construction" algorithm: each block
// keeps a map from source variable name to its current definition;
// reads that miss in the current block recurse to predecessors, and a
// block with unknown predecessors (a loop header not yet Seal-ed) gets
// an incomplete PHI patched once Seal is called.
//
// This is the same incremental-construction shape as the teacher's
// ssa.Builder (DeclareVariable/DefineVariable/FindValue/Seal), adapted
// to emit explicit `phi` instructions (spec.md §3.5) instead of block
// parameters, since spec.md requires a visible PHI instruction and a
// PHI-lowering problem at C5.
type Builder struct {
	fn *Function

	varTypes map[Variable]Type

	// defs[block][variable] is the current definition of variable at
	// the end of block, as constructed so far.
	defs map[*Block]map[Variable]Value

	// incomplete[block][variable] is a placeholder PHI awaiting
	// operands once block is sealed.
	incomplete map[*Block]map[Variable]*Instruction
}

// NewBuilder creates a Builder for fn, which must be freshly
// constructed (no blocks yet).
func NewBuilder(fn *Function) *Builder {
	return &Builder{
		fn:         fn,
		varTypes:   make(map[Variable]Type),
		defs:       make(map[*Block]map[Variable]Value),
		incomplete: make(map[*Block]map[Variable]*Instruction),
	}
}

// NewBlock allocates and appends a new, unsealed basic block with a
// unique label.
func (b *Builder) NewBlock(label string) *Block {
	blk := &Block{Label: label}
	b.fn.Blocks = append(b.fn.Blocks, blk)
	b.defs[blk] = make(map[Variable]Value)
	if b.fn.Entry == nil {
		b.fn.Entry = blk
	}
	return blk
}

// DeclareVariable records variable's static type. Must be called once
// before the variable is ever written or read.
func (b *Builder) DeclareVariable(v Variable, t Type) {
	b.varTypes[v] = t
}

// NewValue mints a fresh SSA value of type t in the function under
// construction, with a compiler-generated temporary as its home slot.
func (b *Builder) NewValue(t Type) Value {
	return b.fn.allocateValue(t)
}

// NewNamedValue mints a fresh SSA value whose home is an
// already-declared slot (name) rather than a new temporary — the
// parameter-materialization case, where the value's storage is the
// parameter slot C1 already added to fn.Locals, not a fresh one.
func (b *Builder) NewNamedValue(t Type, name string) Value {
	v := b.fn.allocateValueNoSlot(t)
	b.fn.bindValueName(v.id, name)
	return v
}

// AddPred registers pred as a predecessor of blk. Must be called for
// every incoming edge before blk is Seal-ed.
func (b *Builder) AddPred(blk, pred *Block) {
	blk.Preds = append(blk.Preds, pred)
}

// WriteVariable records val as variable's definition at the end of
// blk.
func (b *Builder) WriteVariable(v Variable, blk *Block, val Value) {
	b.defs[blk][v] = val
}

// ReadVariable returns variable's current definition as observed at
// the end of blk, inserting PHIs at merge points as needed.
func (b *Builder) ReadVariable(v Variable, blk *Block) Value {
	if val, ok := b.defs[blk][v]; ok {
		return val
	}
	return b.readVariableRecursive(v, blk)
}

func (b *Builder) readVariableRecursive(v Variable, blk *Block) Value {
	var val Value
	switch {
	case !blk.sealed:
		// Predecessors aren't all known yet (typically a loop header):
		// emit an incomplete PHI and patch it in Seal.
		phi := b.newPhi(blk, v)
		if b.incomplete[blk] == nil {
			b.incomplete[blk] = make(map[Variable]*Instruction)
		}
		b.incomplete[blk][v] = phi
		val = phi.Result
	case len(blk.Preds) == 1:
		val = b.ReadVariable(v, blk.Preds[0])
	default:
		// Tentatively define the PHI before recursing into
		// predecessors, breaking cycles through loop back-edges.
		phi := b.newPhi(blk, v)
		b.WriteVariable(v, blk, phi.Result)
		b.fillPhiOperands(v, phi, blk)
		val = phi.Result
	}
	b.WriteVariable(v, blk, val)
	return val
}

// newPhi allocates an OpPhi instruction at the head of blk (after any
// existing PHIs) with no operands yet.
func (b *Builder) newPhi(blk *Block, v Variable) *Instruction {
	t := b.varTypes[v]
	phi := &Instruction{
		Opcode: OpPhi,
		Result: b.NewValue(t),
	}
	blk.Phis = append(blk.Phis, phi)
	return phi
}

// fillPhiOperands resolves variable's value along every predecessor of
// blk and stores the (label, value) pairs onto phi, in predecessor
// order (the PHI-1 invariant: spec.md §3.5, §8.1).
func (b *Builder) fillPhiOperands(v Variable, phi *Instruction, blk *Block) {
	phi.Phi = make([]PhiEdge, 0, len(blk.Preds))
	for _, pred := range blk.Preds {
		incoming := b.ReadVariable(v, pred)
		phi.Phi = append(phi.Phi, PhiEdge{Pred: pred.Label, Value: incoming})
	}
}

// Seal declares that every predecessor of blk is now known (AddPred
// will no longer be called for it) and resolves any incomplete PHIs
// that were created while it was unsealed.
func (b *Builder) Seal(blk *Block) {
	for v, phi := range b.incomplete[blk] {
		b.fillPhiOperands(v, phi, blk)
	}
	delete(b.incomplete, blk)
	blk.sealed = true
}

// Emit appends ins to blk's ordinary instruction list (PHIs must go
// through newPhi/ReadVariable instead) and returns its result value,
// if any.
func (b *Builder) Emit(blk *Block, ins *Instruction) Value {
	blk.Instrs = append(blk.Instrs, ins)
	return ins.Result
}

// SetTerm installs ins as blk's terminator. It must be one of
// OpBr/OpBrIf/OpReturn (spec.md §3.3).
func (b *Builder) SetTerm(blk *Block, ins *Instruction) {
	blk.Term = ins
}
