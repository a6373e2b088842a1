// Package platform describes the target machine parameters the static
// frame allocator, zero-page allocator, and ASM-IL lowering are
// parameterized over. The core algorithms are platform-agnostic; only
// the numbers here change between Commodore targets.
package platform

// AddrRange is a half-open byte range [Start, End) in the target's
// 16-bit address space.
type AddrRange struct {
	Start uint16
	End   uint16
}

// Len returns the number of bytes in the range.
func (r AddrRange) Len() int {
	if r.End < r.Start {
		return 0
	}
	return int(r.End) - int(r.Start)
}

// Contains reports whether addr lies within the range.
func (r AddrRange) Contains(addr uint16) bool {
	return addr >= r.Start && addr < r.End
}

// Overlaps reports whether the two ranges share any byte.
func (r AddrRange) Overlaps(o AddrRange) bool {
	return r.Start < o.End && o.Start < r.End
}

// Config parameterizes the allocators and the ASM-IL lowering for one
// target machine. See spec.md §3.8 and §6.3.
type Config struct {
	// Name identifies the platform for diagnostics, e.g. "c64".
	Name string

	// FrameRegion is the RAM range available for static function
	// frames (spec.md §3.8).
	FrameRegion AddrRange

	// ZeroPagePool is the full zero-page byte range before any
	// reservations are subtracted, normally [0, 256).
	ZeroPagePool AddrRange

	// Reserved lists sub-ranges of ZeroPagePool unavailable to the
	// allocator (e.g. the CPU port at $00/$01 on C64).
	Reserved []AddrRange

	// ScratchRegion is the compiler's own ZP scratch, used by
	// multi-byte arithmetic helpers and to break parallel-copy PHI
	// cycles (spec.md §6.3, §9).
	ScratchRegion AddrRange

	// HardwareStack is fixed at $0100-$01FF on every 6502-family
	// target, but is still configurable for platform-parameterized
	// testing.
	HardwareStack AddrRange

	// PointerSize is the width, in bytes, of a ptr/u16 value. Always
	// 2 on 6502-family targets.
	PointerSize int

	// Alignment is the byte alignment required for word and array
	// slots. 1 (no alignment) on C64; spec.md §9 leaves this
	// platform-tunable.
	Alignment int

	// ZPAutoThreshold is the minimum zero-page priority score a
	// `none`-directive slot must reach before the allocator considers
	// it for automatic promotion (spec.md §4.4, §9 Open Question).
	ZPAutoThreshold int

	// CallDepthWarningThreshold flags non-recursive call chains deeper
	// than this many frames, to guard the 256-byte hardware stack
	// (spec.md §4.2).
	CallDepthWarningThreshold int

	// MulOperandLo/Hi, DivOperandLo/Hi name the fixed ZP cells the
	// runtime mul/div/mod helpers read their operands from (spec.md
	// §4.5's "fixed calling convention" for these JSR helpers).
	MulOperandLo, MulOperandHi uint16
	DivOperandLo, DivOperandHi uint16

	// FramePointer is the two-byte zero-page cell holding a recursive
	// function's current software-stack frame pointer (spec.md §4.3).
	FramePointer uint16

	// ScratchPtr is a two-byte zero-page cell pair used as the (zp),Y
	// pointer for peek/poke's raw-address indirection (spec.md §4.5).
	ScratchPtr uint16

	// Scratch0/1/2 are single-byte zero-page cells C5 uses to spill a
	// second operand out of a recursive function's stack-relative frame
	// (spec.md §6.3).
	Scratch0, Scratch1, Scratch2 uint16

	// PhiScratch is the zero-page cell SequenceCopies uses to break a
	// PHI parallel-copy cycle (spec.md §9).
	PhiScratch uint16
}

// ZeroPageAvailable returns the usable zero-page ranges: the pool minus
// Reserved minus ScratchRegion, as non-overlapping sorted ranges.
func (c Config) ZeroPageAvailable() []AddrRange {
	excluded := append([]AddrRange{c.ScratchRegion}, c.Reserved...)
	return subtractRanges(c.ZeroPagePool, excluded)
}

// subtractRanges removes every range in cut from base, returning the
// remaining coverage as sorted, non-overlapping ranges.
func subtractRanges(base AddrRange, cut []AddrRange) []AddrRange {
	// Mark every excluded byte, then re-run-length-encode. The ranges
	// involved are always small (<= 256 bytes for zero page), so a
	// byte-level pass is simple and fast enough.
	excludedAt := make([]bool, base.Len())
	for _, c := range cut {
		lo := c.Start
		if lo < base.Start {
			lo = base.Start
		}
		hi := c.End
		if hi > base.End {
			hi = base.End
		}
		for a := lo; a < hi; a++ {
			excludedAt[a-base.Start] = true
		}
	}

	var out []AddrRange
	inRun := false
	var runStart uint16
	for i := 0; i < len(excludedAt); i++ {
		addr := base.Start + uint16(i)
		if !excludedAt[i] {
			if !inRun {
				inRun = true
				runStart = addr
			}
		} else if inRun {
			out = append(out, AddrRange{Start: runStart, End: addr})
			inRun = false
		}
	}
	if inRun {
		out = append(out, AddrRange{Start: runStart, End: base.End})
	}
	return out
}

// C64 returns the reference platform descriptor (spec.md §6.3).
func C64() Config {
	return Config{
		Name:        "c64",
		FrameRegion: AddrRange{Start: 0x0200, End: 0x0400},
		ZeroPagePool: AddrRange{
			// The allocator draws from the full 256-byte zero page;
			// Reserved and ScratchRegion below subtract the CPU port
			// and compiler scratch, leaving the spec's 142-byte pool
			// ($0002-$008F) for normal use.
			Start: 0x0000, End: 0x0100,
		},
		Reserved: []AddrRange{
			{Start: 0x0000, End: 0x0002}, // CPU port, $00/$01
			{Start: 0x0090, End: 0x00F0}, // BASIC/KERNAL working storage, left untouched
		},
		ScratchRegion:             AddrRange{Start: 0x00F0, End: 0x0100},
		HardwareStack:             AddrRange{Start: 0x0100, End: 0x0200},
		PointerSize:               2,
		Alignment:                 1,
		ZPAutoThreshold:           100,
		CallDepthWarningThreshold: 16,
		MulOperandLo:              0x00F0,
		MulOperandHi:              0x00F1,
		DivOperandLo:              0x00F2,
		DivOperandHi:              0x00F3,
		FramePointer:              0x00F4,
		ScratchPtr:                0x00F6,
		Scratch0:                  0x00F8,
		Scratch1:                  0x00F9,
		Scratch2:                  0x00FA,
		PhiScratch:                0x00FB,
	}
}
