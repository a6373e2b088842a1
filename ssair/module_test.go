package ssair

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModule_ValidateMaps_NoOverlap(t *testing.T) {
	m := &Module{
		Maps: []*MapDecl{
			{Name: "border", Kind: MapSimple, Addr: 0xD020, Type: U8},
			{Name: "background", Kind: MapSimple, Addr: 0xD021, Type: U8},
		},
	}
	require.Empty(t, m.ValidateMaps())
}

func TestModule_ValidateMaps_DetectsOverlap(t *testing.T) {
	m := &Module{
		Maps: []*MapDecl{
			{Name: "sprite", Kind: MapRange, Base: 0x2000, ElemType: U8, Count: 64},
			{Name: "screen", Kind: MapSimple, Addr: 0x2010, Type: U16},
		},
	}
	errs := m.ValidateMaps()
	require.Len(t, errs, 1)
	require.ElementsMatch(t, []string{"sprite", "screen"}, []string{errs[0].A, errs[0].B})
}

func TestModule_ValidateMaps_StructFieldsAgainstOther(t *testing.T) {
	m := &Module{
		Maps: []*MapDecl{
			{
				Name: "sprite0",
				Kind: MapStruct,
				Fields: []MapField{
					{Name: "x", Type: U8, Addr: 0xD000},
					{Name: "y", Type: U8, Addr: 0xD001},
				},
			},
			{Name: "spritey", Kind: MapSimple, Addr: 0xD001, Type: U8},
		},
	}
	errs := m.ValidateMaps()
	require.Len(t, errs, 1)
}

// Boundary behavior (spec.md §8.3): a @map struct whose last field
// extends exactly to the last addressable byte ($FFFF) is accepted.
func TestModule_ValidateMapBounds_AcceptsExactTopOfAddressSpace(t *testing.T) {
	m := &Module{
		Maps: []*MapDecl{
			{
				Name: "lastByte",
				Kind: MapStruct,
				Fields: []MapField{
					{Name: "tail", Type: U8, Addr: 0xFFFF},
				},
			},
		},
	}
	require.Empty(t, m.ValidateMapBounds())
	require.Empty(t, m.ValidateMaps())
}

// Overrunning past $FFFF is rejected at construction time.
func TestModule_ValidateMapBounds_RejectsOverrun(t *testing.T) {
	m := &Module{
		Maps: []*MapDecl{
			{Name: "sprite", Kind: MapSimple, Addr: 0xFFFF, Type: U16},
		},
	}
	errs := m.ValidateMapBounds()
	require.Len(t, errs, 1)
	require.Equal(t, "sprite", errs[0].Name)
}

func TestModule_FindersByName(t *testing.T) {
	fn := &Function{Name: "main"}
	md := &MapDecl{Name: "border", Kind: MapSimple, Addr: 0xD020, Type: U8}
	m := &Module{Functions: []*Function{fn}, Maps: []*MapDecl{md}}

	require.Same(t, fn, m.FunctionByName("main"))
	require.Nil(t, m.FunctionByName("missing"))
	require.Same(t, md, m.MapByName("border"))
	require.Nil(t, m.MapByName("missing"))
}
