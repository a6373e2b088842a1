package ssair

import "fmt"

// VerifyError describes a single broken IL invariant (spec.md §8.1).
// It is always an internal-error-class finding: well-formed frontend
// output should never trip these, so any VerifyError indicates a bug
// in the frontend or in an earlier pass rather than a user-facing
// diagnostic.
type VerifyError struct {
	Func string
	Msg  string
}

func (e VerifyError) Error() string {
	return fmt.Sprintf("ssair: function %q: %s", e.Func, e.Msg)
}

// Verify checks the SSA-1 and PHI-1 invariants (spec.md §8.1) against
// f's already-computed CFG and returns every violation found.
//
//   - SSA-1: each value is the Result of exactly one instruction, and
//     every use of a value is dominated by its definition.
//   - PHI-1: a PHI's incoming edges name exactly the block's
//     predecessor set (no more, no fewer, no duplicates), and each
//     incoming value is defined at (or dominates) the end of the
//     corresponding predecessor.
func Verify(f *Function, cfg *CFG) []VerifyError {
	var errs []VerifyError

	defSite := map[ValueID]*Block{}
	defBlock := func(id ValueID, b *Block) {
		if prior, ok := defSite[id]; ok && prior != b {
			errs = append(errs, VerifyError{Func: f.Name, Msg: fmt.Sprintf("value v%d redefined in block %q (first defined in %q)", id, b.Label, prior.Label)})
			return
		}
		defSite[id] = b
	}

	for _, b := range f.Blocks {
		for _, ins := range b.AllInstructions() {
			if ins.Result.Valid() {
				defBlock(ins.Result.ID(), b)
			}
		}
	}

	for _, b := range f.Blocks {
		for _, phi := range b.Phis {
			errs = append(errs, verifyPhi(f, cfg, b, phi)...)
		}
		for _, ins := range b.Instrs {
			errs = append(errs, verifyUses(f, cfg, b, ins, defSite)...)
		}
		if b.Term != nil {
			errs = append(errs, verifyUses(f, cfg, b, b.Term, defSite)...)
		}
	}
	return errs
}

func verifyPhi(f *Function, cfg *CFG, b *Block, phi *Instruction) []VerifyError {
	var errs []VerifyError

	seen := make(map[string]bool, len(phi.Phi))
	for _, e := range phi.Phi {
		seen[e.Pred] = true
	}
	predNames := make(map[string]bool, len(b.Preds))
	for _, p := range b.Preds {
		predNames[p.Label] = true
	}
	if len(phi.Phi) != len(b.Preds) {
		errs = append(errs, VerifyError{Func: f.Name, Msg: fmt.Sprintf("phi v%d in block %q has %d incoming edges, block has %d predecessors", phi.Result.ID(), b.Label, len(phi.Phi), len(b.Preds))})
	}
	for pred := range predNames {
		if !seen[pred] {
			errs = append(errs, VerifyError{Func: f.Name, Msg: fmt.Sprintf("phi v%d in block %q missing incoming value for predecessor %q", phi.Result.ID(), b.Label, pred)})
		}
	}
	for name := range seen {
		if !predNames[name] {
			errs = append(errs, VerifyError{Func: f.Name, Msg: fmt.Sprintf("phi v%d in block %q names %q, which is not a predecessor", phi.Result.ID(), b.Label, name)})
		}
	}
	return errs
}

func verifyUses(f *Function, cfg *CFG, b *Block, ins *Instruction, defSite map[ValueID]*Block) []VerifyError {
	var errs []VerifyError
	for _, arg := range ins.Args {
		if !arg.Valid() {
			continue
		}
		defB, ok := defSite[arg.ID()]
		if !ok {
			errs = append(errs, VerifyError{Func: f.Name, Msg: fmt.Sprintf("use of v%d in block %q has no reaching definition", arg.ID(), b.Label)})
			continue
		}
		if defB == b {
			continue // same-block def always precedes its uses by construction
		}
		if !cfg.Dominates(defB, b) {
			errs = append(errs, VerifyError{Func: f.Name, Msg: fmt.Sprintf("use of v%d in block %q is not dominated by its definition in block %q", arg.ID(), b.Label, defB.Label)})
		}
	}
	for _, e := range ins.Phi {
		if !e.Value.Valid() {
			continue
		}
		if _, ok := defSite[e.Value.ID()]; !ok {
			errs = append(errs, VerifyError{Func: f.Name, Msg: fmt.Sprintf("phi incoming value v%d from %q has no reaching definition", e.Value.ID(), e.Pred)})
		}
	}
	return errs
}
