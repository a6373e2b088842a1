package peephole

import "github.com/blendsdk/blend65/asmil"

// symSet tracks which zero-page/absolute symbols are live. allSymbols
// is the conservative top element: any instruction this pass can't
// fully reason about (indexed/indirect addressing, a call into code it
// can't see) forces every symbol live rather than risk eliding a real
// use, which only costs optimality, never soundness.
type symSet struct {
	all   bool
	names map[string]bool
}

const allSymbols = "*"

func newSymSet() *symSet { return &symSet{names: map[string]bool{}} }

func (s *symSet) clone() *symSet {
	if s.all {
		return &symSet{all: true, names: map[string]bool{}}
	}
	c := make(map[string]bool, len(s.names))
	for k := range s.names {
		c[k] = true
	}
	return &symSet{names: c}
}

func (s *symSet) has(sym string) bool { return s.all || s.names[sym] }

func (s *symSet) add(sym string) {
	if sym == allSymbols {
		s.all = true
		return
	}
	if !s.all {
		s.names[sym] = true
	}
}

func (s *symSet) union(o *symSet) *symSet {
	if s.all || o.all {
		return &symSet{all: true, names: map[string]bool{}}
	}
	u := s.clone()
	for k := range o.names {
		u.names[k] = true
	}
	return u
}

func (s *symSet) equal(o *symSet) bool {
	if s.all != o.all {
		return false
	}
	if s.all {
		return true
	}
	if len(s.names) != len(o.names) {
		return false
	}
	for k := range s.names {
		if !o.names[k] {
			return false
		}
	}
	return true
}

// successorsOf returns the labels blk can branch to: every Rel operand
// in it. ASM-IL blocks never fall through implicitly (see asmil.Block)
// — C5 always pairs a conditional branch with an explicit JMP for the
// not-taken path, so the Rel operands alone are the complete successor
// set.
func successorsOf(fn *asmil.Function, idx int) []string {
	blk := fn.Blocks[idx]
	var labels []string
	for _, ins := range blk.Instrs {
		if ins.Operand != nil && ins.Operand.Mode == asmil.AddrRelative {
			labels = append(labels, ins.Operand.Symbol)
		}
	}
	return labels
}

func blockIndexByLabel(fn *asmil.Function) map[string]int {
	m := make(map[string]int, len(fn.Blocks))
	for i, b := range fn.Blocks {
		m[b.Label] = i
	}
	return m
}

// directStore reports whether ins is a direct-mode STA/STX/STY -
// exactly the instructions eligible to be removed as a dead store. It
// is deliberately narrower than writesMemory in peephole.go (which
// also needs to recognize read-modify-write instructions like INC/ROL
// for the aSource-invalidation check): a store is only safe to delete
// outright when it is the sole effect of the instruction.
func directStore(ins asmil.Instruction) (string, bool) {
	switch ins.Mnemonic {
	case asmil.STA, asmil.STX, asmil.STY:
		if ins.Operand != nil && (ins.Operand.Mode == asmil.AddrZeroPage || ins.Operand.Mode == asmil.AddrAbsolute) {
			return ins.Operand.Symbol, true
		}
	}
	return "", false
}

// pureStore mnemonics write memory without reading it first, so they
// never contribute a use — only directStore's kill applies to them.
// Everything else that addresses memory directly (loads, and the
// read-modify-write INC/DEC/ASL/LSR/ROL/ROR family) reads the address
// too and so counts as a use, even though some of those also write it
// back.
func pureStore(m asmil.Mnemonic) bool {
	switch m {
	case asmil.STA, asmil.STX, asmil.STY:
		return true
	default:
		return false
	}
}

// usesOf returns the symbols ins reads, using allSymbols whenever ins
// addresses memory in a way this pass can't resolve to one concrete
// symbol (indexed/indirect) or is opaque (a call, whose callee may
// touch anything).
func usesOf(ins asmil.Instruction) []string {
	if isOpaque(ins.Mnemonic) {
		return []string{allSymbols}
	}
	if ins.Operand == nil {
		return nil
	}
	switch ins.Operand.Mode {
	case asmil.AddrZeroPage, asmil.AddrAbsolute:
		if ins.Mnemonic == asmil.JMP || ins.Mnemonic == asmil.JSR || pureStore(ins.Mnemonic) {
			return nil
		}
		return []string{ins.Operand.Symbol}
	case asmil.AddrZeroPageX, asmil.AddrZeroPageY, asmil.AddrAbsoluteX, asmil.AddrAbsoluteY,
		asmil.AddrIndirectX, asmil.AddrIndirectY:
		return []string{allSymbols}
	default:
		return nil
	}
}

// eliminateDeadStores runs a backward liveness dataflow over fn's
// block graph and drops any direct-mode store whose destination is not
// live immediately after it (spec.md §4.6's rule d: dead-store
// elimination across block boundaries). Volatile (@map-backed) symbols
// are never eligible, matching the same exception
// collapseLoadsAndStores honors for redundant reloads. Reports whether
// it changed anything so runFunction can keep iterating to a fixed
// point alongside the other two passes.
func eliminateDeadStores(fn *asmil.Function, mod *asmil.Module) bool {
	n := len(fn.Blocks)
	if n == 0 {
		return false
	}
	idxOf := blockIndexByLabel(fn)
	liveIn := make([]*symSet, n)
	liveOut := make([]*symSet, n)
	for i := range fn.Blocks {
		liveIn[i] = newSymSet()
		liveOut[i] = newSymSet()
	}

	for {
		stable := true
		for i := n - 1; i >= 0; i-- {
			out := newSymSet()
			for _, succ := range successorsOf(fn, i) {
				if j, ok := idxOf[succ]; ok {
					out = out.union(liveIn[j])
				}
			}
			in := blockLiveIn(fn.Blocks[i].Instrs, out)
			if !out.equal(liveOut[i]) || !in.equal(liveIn[i]) {
				stable = false
			}
			liveOut[i] = out
			liveIn[i] = in
		}
		if stable {
			break
		}
	}

	changed := false
	for i, blk := range fn.Blocks {
		live := liveOut[i].clone()
		out := make([]asmil.Instruction, len(blk.Instrs))
		copy(out, blk.Instrs)
		for k := len(out) - 1; k >= 0; k-- {
			ins := out[k]
			if sym, ok := directStore(ins); ok && !isVolatile(sym, mod) && !live.has(sym) {
				out = append(out[:k], out[k+1:]...)
				changed = true
				continue
			}
			for _, sym := range usesOf(ins) {
				live.add(sym)
			}
			if sym, ok := directStore(ins); ok {
				live = killSym(live, sym)
			}
		}
		blk.Instrs = out
	}
	return changed
}

// blockLiveIn propagates out backward through one block's instructions
// to compute what must be live at its head.
func blockLiveIn(instrs []asmil.Instruction, out *symSet) *symSet {
	live := out.clone()
	for k := len(instrs) - 1; k >= 0; k-- {
		ins := instrs[k]
		if sym, ok := directStore(ins); ok {
			live = killSym(live, sym)
		}
		for _, sym := range usesOf(ins) {
			live.add(sym)
		}
	}
	return live
}

func killSym(s *symSet, sym string) *symSet {
	if s.all {
		return s
	}
	c := s.clone()
	delete(c.names, sym)
	return c
}
