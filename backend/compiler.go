package backend

import (
	"github.com/blendsdk/blend65/asmil"
	"github.com/blendsdk/blend65/ssair"
)

// registerRuntimeSymbols binds the fixed mul/div/mod operand cells
// (backend.MulOperandLoSym etc.) to the platform's configured
// addresses, so m6502's lowering can reference them by name like any
// other zero-page symbol.
func registerRuntimeSymbols(out *asmil.Module, ctx *Context) {
	bindZP := func(name string, addr uint16) {
		_ = out.AddSymbol(asmil.Symbol{Name: name, Kind: asmil.SymZeroPage, Addr: addr})
	}
	bindZP(MulOperandLoSym, ctx.Platform.MulOperandLo)
	bindZP(MulOperandHiSym, ctx.Platform.MulOperandHi)
	bindZP(DivOperandLoSym, ctx.Platform.DivOperandLo)
	bindZP(DivOperandHiSym, ctx.Platform.DivOperandHi)
	bindZP(FramePointerSym, ctx.Platform.FramePointer)
	bindZP(ScratchPtrSym, ctx.Platform.ScratchPtr)
	bindZP(ScratchByte0Sym, ctx.Platform.Scratch0)
	bindZP(ScratchByte1Sym, ctx.Platform.Scratch1)
	bindZP(ScratchByte2Sym, ctx.Platform.Scratch2)
	bindZP(PhiScratchSym, ctx.Platform.PhiScratch)

	bindData := func(name string, addr uint16) {
		_ = out.AddSymbol(asmil.Symbol{Name: name, Kind: asmil.SymData, Addr: addr})
	}
	for _, md := range ctx.Module.Maps {
		switch md.Kind {
		case ssair.MapSimple:
			bindData(md.Name, md.Addr)
		case ssair.MapRange:
			bindData(md.Name, md.Base)
		case ssair.MapStruct:
			for _, f := range md.Fields {
				bindData(md.Name+"."+f.Name, f.Addr)
			}
		}
	}
}

// Compiler drives a Machine over every function in a Context's module,
// handling the block-order iteration and PHI parallel-copy insertion
// common to any target ISA (spec.md §4.5, §6.2); only the per-opcode
// lowering itself is target-specific (backend/m6502). Grounded on the
// teacher's backend.compiler's per-block lowering loop, adapted from
// its reverse-instruction/already-lowered-skip-set shape to the
// forward, fully-pre-allocated shape this spec's C5 needs (see
// Machine.StartBlock's doc comment for why the iteration direction
// differs).
type Compiler struct {
	Ctx     *Context
	Machine Machine

	// ScratchSlot names the zero-page cell SequenceCopies may use to
	// break a PHI parallel-copy cycle (spec.md §9); it must be a cell
	// the platform's ScratchRegion reserves, never a user-visible slot.
	ScratchSlot string
}

// NewCompiler builds a Compiler over ctx, lowering with m.
func NewCompiler(ctx *Context, m Machine, scratchSlot string) *Compiler {
	return &Compiler{Ctx: ctx, Machine: m, ScratchSlot: scratchSlot}
}

// Compile lowers every function in Ctx.Module into a finished
// asmil.Module. Symbols hold the runtime zero-page cells and the @map
// addresses (registerRuntimeSymbols); Data holds every global with an
// Init; functions are appended in declaration order.
func (c *Compiler) Compile() *asmil.Module {
	out := &asmil.Module{}
	registerRuntimeSymbols(out, c.Ctx)
	for _, g := range c.Ctx.Module.Globals {
		if len(g.Init) > 0 {
			out.Data = append(out.Data, &asmil.DataItem{Label: g.Name, Bytes: g.Init})
		}
	}
	for _, fn := range c.Ctx.Module.Functions {
		out.Functions = append(out.Functions, c.compileFunction(fn))
	}
	return out
}

// compileFunction lowers one function block by block, in source order.
// For every block, its ordinary instructions and terminator are
// lowered first; then, for each successor, the PHI parallel copies
// that edge needs are sequenced and lowered as the predecessor-
// inserted move discipline spec.md §4.5 requires, rather than
// successor-inserted loads.
//
// A block with a single successor can always have its moves inserted
// directly before its terminator — the terminator runs unconditionally
// either way. A block with two successors (an `br_if`) cannot: the
// moves for one edge must never execute when the other edge is taken.
// Since the builder never gives a block a PHI unless it has at least
// two predecessors, a non-empty move set on an edge out of a two-
// successor block is exactly wazevo's "critical edge" case, and is
// handled the standard way — by splitting it into a dedicated detour
// block (synthetic, asmil-only; it has no ssair counterpart) that runs
// the moves and then jumps on to the real successor.
func (c *Compiler) compileFunction(fn *ssair.Function) *asmil.Function {
	c.Machine.Reset()
	c.Machine.StartFunction(fn)

	for _, blk := range fn.Blocks {
		c.Machine.StartBlock(blk)
		for _, phi := range blk.Phis {
			c.Machine.LowerInstr(phi)
		}
		for _, ins := range blk.Instrs {
			c.Machine.LowerInstr(ins)
		}

		type split struct {
			targetIdx int
			succ      *ssair.Block
			label     string
			copies    []Copy
		}
		var direct []Copy
		var splits []split
		multiSucc := len(blk.Succs) > 1
		for i, succ := range blk.Succs {
			copies := BuildParallelCopy(c.Ctx, fn, blk, succ)
			if len(copies) == 0 {
				continue
			}
			if !multiSucc {
				direct = append(direct, copies...)
				continue
			}
			splits = append(splits, split{targetIdx: i, succ: succ, label: blk.Label + "$to$" + succ.Label, copies: copies})
		}
		if len(direct) > 0 {
			c.Machine.LowerParallelCopy(SequenceCopies(direct, c.ScratchSlot))
		}

		if blk.Term != nil {
			term := blk.Term
			if len(splits) > 0 {
				redirected := *term
				redirected.Targets = append([]string(nil), term.Targets...)
				for _, s := range splits {
					redirected.Targets[s.targetIdx] = s.label
				}
				term = &redirected
			}
			c.Machine.LowerInstr(term)
		}
		c.Machine.EndBlock()

		for _, s := range splits {
			c.Machine.StartBlock(&ssair.Block{Label: s.label})
			c.Machine.LowerParallelCopy(SequenceCopies(s.copies, c.ScratchSlot))
			c.Machine.LowerInstr(&ssair.Instruction{Opcode: ssair.OpBr, Targets: []string{s.succ.Label}})
			c.Machine.EndBlock()
		}
	}

	return c.Machine.EndFunction()
}
