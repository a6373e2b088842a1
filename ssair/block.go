package ssair

// Block is a basic block: a maximal straight-line instruction sequence
// ending in exactly one terminator (spec.md §3.3).
type Block struct {
	Label string

	// Phis are the PHI instructions at the block head, in the order
	// they were declared.
	Phis []*Instruction

	// Instrs are the ordinary (non-PHI, non-terminator) instructions,
	// in program order.
	Instrs []*Instruction

	// Term is the block's single terminator: OpBr, OpBrIf, or
	// OpReturn. Nil only while the block is still under construction.
	Term *Instruction

	// Preds/Succs are derived and cached by ComputeCFG; nil before
	// that has run.
	Preds []*Block
	Succs []*Block

	// sealed is true once every predecessor of this block is known,
	// per the incremental SSA construction algorithm (spec.md §4.1).
	sealed bool

	// loopDepth is the number of enclosing natural loops this block is
	// nested in, computed by the dominance pass and consumed by the
	// zero-page allocator's access-frequency scoring (spec.md §4.4).
	loopDepth int
}

// LoopDepth returns the block's nesting depth inside natural loops.
func (b *Block) LoopDepth() int { return b.loopDepth }

// AllInstructions returns Phis followed by Instrs followed by Term, in
// the order they appear in the block (PHIs precede all non-PHI
// instructions per spec.md §3.3's invariant).
func (b *Block) AllInstructions() []*Instruction {
	out := make([]*Instruction, 0, len(b.Phis)+len(b.Instrs)+1)
	out = append(out, b.Phis...)
	out = append(out, b.Instrs...)
	if b.Term != nil {
		out = append(out, b.Term)
	}
	return out
}
