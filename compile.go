// Package blend65 wires the compiler's stages together end to end
// (spec.md §2's pipeline): C1 IL generation from a frontend AST, C2
// call-graph/recursion analysis, C3 static frame allocation, C4
// zero-page promotion, C5 ASM-IL lowering for the 6502, and the
// optional C6 peephole cleanup. Everything upstream of C1 (lexing,
// parsing) and downstream of C6 (the textual emitter, linker) is
// out of scope (spec.md's Non-goals) — Compile's input is already an
// AST, its output is an in-memory asmil.Module.
package blend65

import (
	"github.com/blendsdk/blend65/asmil"
	"github.com/blendsdk/blend65/backend"
	"github.com/blendsdk/blend65/backend/m6502"
	"github.com/blendsdk/blend65/callgraph"
	"github.com/blendsdk/blend65/compileerr"
	"github.com/blendsdk/blend65/frame"
	"github.com/blendsdk/blend65/frontend"
	"github.com/blendsdk/blend65/peephole"
	"github.com/blendsdk/blend65/platform"
	"github.com/blendsdk/blend65/ssair"
	"github.com/blendsdk/blend65/zpage"
)

// Result bundles every stage's output, not just the final ASM-IL, so
// a caller (or debugview) can inspect the IL, the call graph, and the
// frame/zero-page maps a run produced.
type Result struct {
	IL        *ssair.Module
	CallGraph *callgraph.Result
	Frame     *frame.Map
	ZeroPage  *zpage.ZPMap
	ASM       *asmil.Module
}

// Compile runs the whole pipeline over file for the given platform and
// returns the lowered, peephole-cleaned ASM-IL module. Any diagnostic
// collected at any stage (spec.md §7's taxonomy) is joined into a
// single error via errors.Join; Compile still runs every later stage
// it can on best-effort output so a caller investigating multiple
// problems at once sees all of them, matching each stage's own
// collect-everything design (frontend.Lowerer.Err, ssair.Verify,
// callgraph.Analyze, frame.Allocate, zpage.Allocate all do the same).
func Compile(file *frontend.File, cfg platform.Config) (*Result, error) {
	var errs compileerr.List

	lw := frontend.NewLowerer()
	mod := lw.Lower(file)
	if err := lw.Err(); err != nil {
		errs.Add(err)
	}

	for _, overlap := range mod.ValidateMaps() {
		errs.Addf(compileerr.MapOverlap, ssair.Pos{}, "%s", overlap.Error())
	}
	for _, overrun := range mod.ValidateMapBounds() {
		errs.Addf(compileerr.MapOverlap, ssair.Pos{}, "%s", overrun.Error())
	}

	slots := make(map[string][]frame.SlotInfo, len(mod.Functions))
	for _, fn := range mod.Functions {
		cfgGraph := ssair.ComputeCFG(fn)
		for _, verr := range ssair.Verify(fn, cfgGraph) {
			errs.Addf(compileerr.InternalInvariantViolation, ssair.Pos{}, "%s", verr.Error())
		}
		slots[fn.Name] = frame.ScanSlots(fn)
	}

	g := callgraph.Build(mod)
	cgResult, cgErrs := callgraph.Analyze(g, cfg.CallDepthWarningThreshold)
	for _, e := range cgErrs.Errs() {
		errs.Add(e)
	}

	fm, frameErrs := frame.Allocate(mod, cfg, cgResult, slots)
	for _, e := range frameErrs.Errs() {
		errs.Add(e)
	}

	zm, zpErrs := zpage.Allocate(fm, cfg, slots)
	for _, e := range zpErrs.Errs() {
		errs.Add(e)
	}

	if errs.Len() > 0 {
		return &Result{IL: mod, CallGraph: cgResult, Frame: fm, ZeroPage: zm}, errs.Err()
	}

	ctx := &backend.Context{Module: mod, Frame: fm, CallGraph: cgResult, Platform: cfg}
	var lowerErrs compileerr.List
	machine := m6502.New(ctx, &lowerErrs)
	compiler := backend.NewCompiler(ctx, machine, backend.PhiScratchSym)
	out := compiler.Compile()
	peephole.Run(out)

	result := &Result{IL: mod, CallGraph: cgResult, Frame: fm, ZeroPage: zm, ASM: out}
	if err := lowerErrs.Err(); err != nil {
		return result, err
	}
	return result, nil
}
