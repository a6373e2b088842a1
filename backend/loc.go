package backend

import "github.com/blendsdk/blend65/ssair"

// Reg names the three addressable 6502 registers ASM-IL lowering may
// cache a value in between one instruction and the next, mirroring the
// A/X/Y register set `_examples/hejops-gone/cpu` models.
type Reg byte

const (
	RegNone Reg = iota
	RegA
	RegX
	RegY
)

func (r Reg) String() string {
	switch r {
	case RegA:
		return "A"
	case RegX:
		return "X"
	case RegY:
		return "Y"
	default:
		return "none"
	}
}

// Tracker remembers, for the block currently being lowered, which SSA
// value (if any) each of A/X/Y currently holds. Every value's
// permanent home is its frame/zero-page slot, assigned once by C3/C4;
// Tracker exists only so a value loaded for one instruction doesn't
// need reloading if the very next instruction consumes it straight
// from the same register. It is invalidated aggressively — on any
// store to the register, any call, and unconditionally at every block
// boundary, since nothing survives a branch by construction (spec.md
// §4.5: every live-out value has a fixed slot home, not a register
// home). Real redundant-load elimination belongs to C6, not here;
// Tracker is only a cheap, local nicety that keeps obviously
// redundant LDAs from ever being emitted in the first place.
type Tracker struct {
	regs [3]ssair.ValueID
	has  [3]bool
}

// NewTracker returns an empty register tracker.
func NewTracker() *Tracker { return &Tracker{} }

func index(r Reg) int { return int(r) - 1 }

// Holds reports which value (if any) register r currently caches.
func (t *Tracker) Holds(r Reg) (ssair.ValueID, bool) {
	i := index(r)
	return t.regs[i], t.has[i]
}

// FindReg reports which register (if any) currently caches v.
func (t *Tracker) FindReg(v ssair.ValueID) (Reg, bool) {
	for i, ok := range t.has {
		if ok && t.regs[i] == v {
			return Reg(i + 1), true
		}
	}
	return RegNone, false
}

// Bind records that register r now holds v, evicting v from whichever
// other register previously cached it — a value is never
// simultaneously "in" two registers.
func (t *Tracker) Bind(r Reg, v ssair.ValueID) {
	i := index(r)
	for j := range t.has {
		if j != i && t.has[j] && t.regs[j] == v {
			t.has[j] = false
		}
	}
	t.regs[i] = v
	t.has[i] = true
}

// Invalidate clears register r's cached value, e.g. because it was
// just overwritten for an unrelated purpose.
func (t *Tracker) Invalidate(r Reg) { t.has[index(r)] = false }

// InvalidateAll clears every register — called at block boundaries and
// around calls, whose callee is free to clobber A/X/Y.
func (t *Tracker) InvalidateAll() {
	for i := range t.has {
		t.has[i] = false
	}
}
