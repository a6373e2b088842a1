package ssair

import (
	"fmt"
	"sort"

	"github.com/blendsdk/blend65/platform"
)

// StorageClass is the storage class of a module-level global (spec.md
// §3.1).
type StorageClass byte

const (
	StorageRAM StorageClass = iota
	StorageData
	StorageZP
	StorageMap
)

// Global is a named, fixed-storage-class address (spec.md §3.1). Init
// is only meaningful for StorageData.
type Global struct {
	Name  string
	Class StorageClass
	Type  Type
	Init  []byte
	Pos   Pos
}

// MapKind distinguishes the three @map layouts (spec.md §3.1).
type MapKind byte

const (
	MapSimple MapKind = iota
	MapRange
	MapStruct
)

// MapField is one field of a struct-layout @map declaration. Addr is
// always the fully resolved absolute address: ssair does not care
// whether the source used sequential or explicit field placement
// (spec.md §6.1 — the input AST already carries resolved addresses).
type MapField struct {
	Name string
	Type Type
	Addr uint16
}

// MapDecl is a memory-mapped variable declaration (spec.md §3.1).
// Exactly the fields relevant to Kind are populated.
type MapDecl struct {
	Name string
	Kind MapKind
	Pos  Pos

	// MapSimple.
	Addr uint16
	Type Type

	// MapRange.
	Base     uint16
	ElemType Type
	Count    int

	// MapStruct.
	Fields []MapField
}

// wideRange is [Start, End) using int arithmetic so a declaration
// whose last byte is exactly $FFFF (End == 0x10000) can be represented
// without the uint16 wraparound that platform.AddrRange's 16-bit End
// would suffer (spec.md §8.3's boundary case).
type wideRange struct {
	start, end int
}

func (r wideRange) overlaps(o wideRange) bool {
	return r.start < o.end && o.start < r.end
}

// wideRanges is AddrRanges' int-arithmetic twin, used internally for
// overlap and overrun checking where the uint16-bounded public type
// would wrap.
func (m *MapDecl) wideRanges() []wideRange {
	switch m.Kind {
	case MapSimple:
		return []wideRange{{start: int(m.Addr), end: int(m.Addr) + m.Type.Size()}}
	case MapRange:
		return []wideRange{{start: int(m.Base), end: int(m.Base) + m.ElemType.Size()*m.Count}}
	case MapStruct:
		out := make([]wideRange, 0, len(m.Fields))
		for _, f := range m.Fields {
			out = append(out, wideRange{start: int(f.Addr), end: int(f.Addr) + f.Type.Size()})
		}
		return out
	default:
		return nil
	}
}

// AddrRanges returns the set of byte ranges this declaration covers,
// used by Module validation to check the no-overlap invariant (spec.md
// §3.1, MAP-1). A declaration whose last byte reaches the top of the
// address space ($FFFF) reports End as the full 16-bit span rather
// than wrapping to 0; callers that need exact overlap semantics at
// that boundary should use wideRanges/ValidateMaps instead of summing
// Start+size themselves.
func (m *MapDecl) AddrRanges() []platform.AddrRange {
	out := make([]platform.AddrRange, 0, 4)
	for _, wr := range m.wideRanges() {
		end := wr.end
		if end > 0x10000 {
			end = 0x10000
		}
		out = append(out, platform.AddrRange{Start: uint16(wr.start), End: uint16(end)})
	}
	return out
}

// FieldAddr resolves a struct field's address and type, or ok=false if
// the field does not exist (UnknownField, spec.md §7 — the frontend
// should never produce this on well-typed input; it is an internal
// error if it reaches here).
func (m *MapDecl) FieldAddr(field string) (uint16, Type, bool) {
	if m.Kind != MapStruct {
		return 0, Type{}, false
	}
	for _, f := range m.Fields {
		if f.Name == field {
			return f.Addr, f.Type, true
		}
	}
	return 0, Type{}, false
}

// Module is the whole-program IL unit after linking imports (spec.md
// §3.1).
type Module struct {
	Globals   []*Global
	Functions []*Function
	Maps      []*MapDecl
}

// MapByName finds a @map declaration by name, or nil.
func (m *Module) MapByName(name string) *MapDecl {
	for _, md := range m.Maps {
		if md.Name == name {
			return md
		}
	}
	return nil
}

// FunctionByName finds a function by name, or nil.
func (m *Module) FunctionByName(name string) *Function {
	for _, f := range m.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// ValidateMaps checks the MAP-1 invariant: no two @map declarations
// share any address. It is run once at module construction (spec.md
// §3.1) and returns every overlapping pair found, not just the first.
// Overlap arithmetic runs in wideRange's int domain so a declaration
// reaching exactly $FFFF (spec.md §8.3's boundary case) is compared
// correctly instead of wrapping through 0.
func (m *Module) ValidateMaps() []MapOverlapError {
	type tagged struct {
		name string
		r    wideRange
	}
	var all []tagged
	for _, md := range m.Maps {
		for _, r := range md.wideRanges() {
			all = append(all, tagged{name: md.Name, r: r})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].r.start < all[j].r.start })

	var errs []MapOverlapError
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[j].r.start >= all[i].r.end {
				break // sorted by start; nothing further can overlap all[i]
			}
			if all[i].name == all[j].name {
				continue
			}
			if all[i].r.overlaps(all[j].r) {
				errs = append(errs, MapOverlapError{
					A: all[i].name, B: all[j].name,
					Range: platform.AddrRange{Start: uint16(all[i].r.start), End: uint16(all[i].r.end)},
				})
			}
		}
	}
	return errs
}

// ValidateMapBounds checks that every @map declaration's address range
// fits within the 16-bit address space (spec.md §8.3: a struct whose
// last field extends exactly to $FFFF is accepted; extending past it
// is rejected at construction time).
func (m *Module) ValidateMapBounds() []MapOverrunError {
	var errs []MapOverrunError
	for _, md := range m.Maps {
		for _, r := range md.wideRanges() {
			if r.end > 0x10000 {
				errs = append(errs, MapOverrunError{Name: md.Name, Start: uint16(r.start), End: r.end})
			}
		}
	}
	return errs
}

// MapOverlapError describes two @map declarations sharing an address
// (spec.md §7, category MapOverlap).
type MapOverlapError struct {
	A, B  string
	Range platform.AddrRange
}

// MapOverrunError describes a @map declaration whose address range
// extends past the top of the 16-bit address space ($FFFF).
type MapOverrunError struct {
	Name  string
	Start uint16
	End   int
}

func (e MapOverrunError) Error() string {
	return fmt.Sprintf("@map %s at $%04X extends to $%X, past the top of the address space ($FFFF)", e.Name, e.Start, e.End-1)
}

func (e MapOverlapError) Error() string {
	return fmt.Sprintf("@map %q and %q overlap at $%04X-$%04X", e.A, e.B, e.Range.Start, e.Range.End)
}
