// Package debugview renders colorized, human-readable text dumps of
// the compiler's intermediate state (IL, call graph, frame map,
// zero-page map, ASM-IL) for tests and manual inspection. It never
// touches compiler output and is not on the Compile path (spec.md §1:
// diagnostic formatting is out of scope for the core; this package is
// a development aid, not part of the pipeline).
package debugview

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"

	blend65 "github.com/blendsdk/blend65"
	"github.com/blendsdk/blend65/asmil"
	"github.com/blendsdk/blend65/callgraph"
	"github.com/blendsdk/blend65/frame"
	"github.com/blendsdk/blend65/ssair"
	"github.com/blendsdk/blend65/zpage"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	addrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	warnStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	recurStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
)

func header(title string) string {
	return headerStyle.Render("== " + title + " ==")
}

// Dump renders every stage of a Result in pipeline order: IL, call
// graph, frame map, zero-page map, and ASM-IL (when lowering
// succeeded). This is the usual entry point for a test failure
// printout or a manual `go run` inspection tool.
func Dump(res *blend65.Result) string {
	var sections []string
	if res.IL != nil {
		sections = append(sections, Module(res.IL))
	}
	if res.CallGraph != nil {
		sections = append(sections, CallGraph(res.CallGraph))
	}
	if res.Frame != nil {
		sections = append(sections, Frame(res.Frame))
	}
	if res.ZeroPage != nil {
		sections = append(sections, ZeroPage(res.ZeroPage))
	}
	if res.ASM != nil {
		sections = append(sections, ASM(res.ASM))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// Module renders an IL module: every global, @map declaration, and
// function body, reusing ssair's own String() formatting (format.go)
// for instruction-level detail.
func Module(mod *ssair.Module) string {
	var b strings.Builder
	b.WriteString(header("IL Module"))
	b.WriteByte('\n')

	for _, g := range mod.Globals {
		fmt.Fprintf(&b, "  %s global %s %s\n", dimStyle.Render(classString(g.Class)), g.Name, g.Type.String())
	}
	for _, md := range mod.Maps {
		fmt.Fprintf(&b, "  @map %s (%s)\n", md.Name, mapKindString(md.Kind))
	}
	b.WriteByte('\n')

	for _, fn := range mod.Functions {
		b.WriteString(fn.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func classString(c ssair.StorageClass) string {
	switch c {
	case ssair.StorageRAM:
		return "ram"
	case ssair.StorageData:
		return "data"
	case ssair.StorageZP:
		return "zp"
	case ssair.StorageMap:
		return "map"
	default:
		return "?"
	}
}

func mapKindString(k ssair.MapKind) string {
	switch k {
	case ssair.MapSimple:
		return "simple"
	case ssair.MapRange:
		return "range"
	case ssair.MapStruct:
		return "struct"
	default:
		return "?"
	}
}

// CallGraph renders the per-function recursive flag, thread context,
// and call-depth bound C2 computed, plus any call-depth warnings
// (spec.md §4.2).
func CallGraph(res *callgraph.Result) string {
	var b strings.Builder
	b.WriteString(header("Call Graph"))
	b.WriteByte('\n')

	names := make([]string, 0, len(res.Graph.Module.Functions))
	for _, fn := range res.Graph.Module.Functions {
		names = append(names, fn.Name)
	}
	sort.Strings(names)

	for _, name := range names {
		tc := res.ThreadContext[name]
		line := fmt.Sprintf("  %-16s thread=%-5s depth=%d", name, tc.String(), res.CallDepth[name])
		if res.Recursive[name] {
			line += " " + recurStyle.Render("[recursive]")
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if len(res.CallDepthWarnings) > 0 {
		b.WriteString(warnStyle.Render("  deep call chains: "+strings.Join(res.CallDepthWarnings, ", ")) + "\n")
	}
	return b.String()
}

// Frame renders the FrameMap: every coalescing group's base/size and
// member functions, then each function's slot table (spec.md §4.3).
func Frame(fm *frame.Map) string {
	var b strings.Builder
	b.WriteString(header("Frame Map"))
	b.WriteByte('\n')

	for _, grp := range fm.Groups {
		members := append([]string(nil), grp.Members...)
		sort.Strings(members)
		base := uint16(0)
		if len(grp.Members) > 0 {
			if ff := fm.Funcs[grp.Members[0]]; ff != nil {
				base = ff.Base
			}
		}
		fmt.Fprintf(&b, "  group %d  base=%s size=%d  members=[%s]\n",
			grp.ID, addrStyle.Render(hexAddr(base)), grp.FrameSize, strings.Join(members, ", "))
	}
	b.WriteByte('\n')

	names := make([]string, 0, len(fm.Funcs))
	for name := range fm.Funcs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ff := fm.Funcs[name]
		kind := "static"
		if ff.Recursive {
			kind = "stack-relative"
		}
		fmt.Fprintf(&b, "  %s  base=%s size=%d kind=%s group=%d\n",
			name, addrStyle.Render(hexAddr(ff.Base)), ff.TotalSize, kind, ff.GroupID)

		slotNames := make([]string, 0, len(ff.Slots))
		for s := range ff.Slots {
			slotNames = append(slotNames, s)
		}
		sort.Strings(slotNames)
		for _, s := range slotNames {
			loc := ff.Slots[s]
			fmt.Fprintf(&b, "      %-12s %s\n", s, locationString(loc))
		}
	}
	return b.String()
}

func locationString(loc frame.SlotLocation) string {
	switch loc.Kind {
	case frame.LocStatic:
		return addrStyle.Render(hexAddr(loc.Addr))
	case frame.LocZeroPage:
		return addrStyle.Render("zp:"+hexAddr(loc.Addr))
	case frame.LocStackRelative:
		return fmt.Sprintf("sp+%d", loc.Offset)
	default:
		return "?"
	}
}

// ZeroPage renders the ZPMap: every promoted (function, slot) pair and
// its assigned address (spec.md §4.4).
func ZeroPage(zm *zpage.ZPMap) string {
	var b strings.Builder
	b.WriteString(header("Zero Page Map"))
	b.WriteByte('\n')

	fns := make([]string, 0, len(zm.Addr))
	for fn := range zm.Addr {
		fns = append(fns, fn)
	}
	sort.Strings(fns)

	for _, fn := range fns {
		slots := make([]string, 0, len(zm.Addr[fn]))
		for s := range zm.Addr[fn] {
			slots = append(slots, s)
		}
		sort.Strings(slots)
		for _, s := range slots {
			fmt.Fprintf(&b, "  %-16s %-12s %s\n", fn, s, addrStyle.Render(hexAddr(zm.Addr[fn][s])))
		}
	}
	return b.String()
}

// ASM renders a lowered ASM-IL module via asmil's own Format(), under
// a matching section header.
func ASM(mod *asmil.Module) string {
	return header("ASM-IL") + "\n" + mod.Format()
}

// Raw dumps any stage's Go value with go-spew, for the rare case where
// the structured renderers above elide a field a test needs to assert
// on (mirrors hejops-gone's cpu debugger's use of spew.Sdump for
// opcode tables it doesn't otherwise format).
func Raw(v interface{}) string {
	return spew.Sdump(v)
}

func hexAddr(addr uint16) string {
	return fmt.Sprintf("$%04X", addr)
}
