package ssair

import (
	"fmt"
	"math"
)

// ValueID is the pure identifier of a Value, unique within a function.
type ValueID uint32

const invalidValueID = ValueID(math.MaxUint32)

// Value is an SSA value: the result of exactly one defining
// instruction (spec.md §3.4). Values are compared by ID.
type Value struct {
	id  ValueID
	typ Type
}

// invalidValue is returned where no value is present, e.g. a `return`
// with no operand.
var invalidValue = Value{id: invalidValueID}

// InvalidValue is the exported sentinel for "no value", for use by
// frontends constructing instructions whose result is void (e.g.
// `poke`).
func InvalidValue() Value { return invalidValue }

// ID returns the value's identifier.
func (v Value) ID() ValueID { return v.id }

// Type returns the value's static type.
func (v Value) Type() Type { return v.typ }

// Valid reports whether this is a real value (as opposed to the
// invalid/absent sentinel).
func (v Value) Valid() bool { return v.id != invalidValueID }

// String implements fmt.Stringer.
func (v Value) String() string {
	if !v.Valid() {
		return "<novalue>"
	}
	return fmt.Sprintf("v%d", v.id)
}

// Variable is a source-level variable name, used only during SSA
// construction (spec.md §4.1) to look up "the current definition" in a
// block; it does not appear in finished IL.
type Variable string
