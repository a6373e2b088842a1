package ssair

// Opcode enumerates the IL instruction set (spec.md §3.5). Each
// instruction's operand/result shape is documented in spec.md; this
// type is just the tag.
type Opcode uint8

const (
	OpInvalid Opcode = iota

	// Constants and moves.
	OpConst
	OpCopy

	// Memory, variable-addressed.
	OpLoadVar
	OpStoreVar

	// Memory, map-addressed.
	OpMapLoadField
	OpMapStoreField
	OpMapLoadRange
	OpMapStoreRange

	// Memory, raw address.
	OpLoadMem
	OpStoreMem

	// Address-of.
	OpAddrOf

	// Arithmetic.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg

	// Bitwise.
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpNot

	// Comparison.
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe

	// Logical short-circuit (only before C1 lowers them away; spec.md
	// §3.5 lists them "for completeness of the surface set").
	OpLogicalAnd
	OpLogicalOr

	// Type conversions.
	OpZext
	OpTruncate
	OpBoolToByte
	OpByteToBool

	// Intrinsics.
	OpLen
	OpPeek
	OpPoke

	// Control flow (terminators).
	OpBr
	OpBrIf
	OpReturn

	// Calls.
	OpCall
	OpCallIndirect

	// PHI.
	OpPhi
)

var opcodeNames = map[Opcode]string{
	OpInvalid:       "invalid",
	OpConst:         "const",
	OpCopy:          "copy",
	OpLoadVar:       "load_var",
	OpStoreVar:      "store_var",
	OpMapLoadField:  "map_load_field",
	OpMapStoreField: "map_store_field",
	OpMapLoadRange:  "map_load_range",
	OpMapStoreRange: "map_store_range",
	OpLoadMem:       "load_mem",
	OpStoreMem:      "store_mem",
	OpAddrOf:        "addr_of",
	OpAdd:           "add",
	OpSub:           "sub",
	OpMul:           "mul",
	OpDiv:           "div",
	OpMod:           "mod",
	OpNeg:           "neg",
	OpAnd:           "and",
	OpOr:            "or",
	OpXor:           "xor",
	OpShl:           "shl",
	OpShr:           "shr",
	OpNot:           "not",
	OpEq:            "eq",
	OpNe:            "ne",
	OpLt:            "lt",
	OpLe:            "le",
	OpGt:            "gt",
	OpGe:            "ge",
	OpLogicalAnd:    "logical_and",
	OpLogicalOr:     "logical_or",
	OpZext:          "zext",
	OpTruncate:      "truncate",
	OpBoolToByte:    "bool_to_byte",
	OpByteToBool:    "byte_to_bool",
	OpLen:           "len",
	OpPeek:          "peek",
	OpPoke:          "poke",
	OpBr:            "br",
	OpBrIf:          "br_if",
	OpReturn:        "return",
	OpCall:          "call",
	OpCallIndirect:  "call_indirect",
	OpPhi:           "phi",
}

// String implements fmt.Stringer.
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "unknown"
}

// IsTerminator reports whether this opcode ends a basic block.
func (op Opcode) IsTerminator() bool {
	switch op {
	case OpBr, OpBrIf, OpReturn:
		return true
	default:
		return false
	}
}

// ConstValue holds a compile-time constant operand for `const`
// (spec.md §3.5). Exactly one field is meaningful, selected by Type.
type ConstValue struct {
	Type Type
	U8   uint8
	U16  uint16
	Bool bool
}

// PhiEdge is one (predecessor label, incoming value) pair of a PHI
// instruction (spec.md §3.5, §4.1).
type PhiEdge struct {
	Pred  string
	Value Value
}

// Instruction is a single IL instruction. Only the fields relevant to
// Opcode are populated; see spec.md §3.5 for the per-opcode contract.
// A flattened struct (rather than one type per opcode) is deliberate:
// it keeps lowering switches (C5) and verification walks (SSA-1/PHI-1)
// working over one concrete type, the way the teacher's own
// ssa.Instruction is a single flattened struct across all Wasm
// opcodes.
type Instruction struct {
	Opcode Opcode
	Pos    Pos

	// Result is the value this instruction defines, or the invalid
	// value if it defines none (stores, branches, calls to void
	// functions, poke).
	Result Value

	// Args holds the generic operand list for instructions with a
	// fixed small arity: unary ops use Args[0], binary ops use
	// Args[0:2], load_mem/store_mem/poke use an address plus
	// optionally a stored value.
	Args []Value

	// Const is populated for OpConst.
	Const ConstValue

	// Name is populated for OpLoadVar/OpStoreVar (variable name),
	// OpAddrOf (variable or function name), OpMapLoad*/OpMapStore*
	// (map name), OpCall (function name), OpLen (array variable name).
	Name string

	// Field is populated for OpMapLoadField/OpMapStoreField.
	Field string

	// Targets holds branch labels: one for OpBr, two
	// (true, false) for OpBrIf.
	Targets []string

	// Signature is populated for OpCall/OpCallIndirect: the callee's
	// parameter/result types, used by call-graph analysis to match
	// call_indirect targets (spec.md §4.2) and by C5 to emit the
	// correct calling sequence.
	Signature *Signature

	// Phi holds the incoming edges of an OpPhi instruction, in the
	// same order as the owning block's Preds.
	Phi []PhiEdge
}

// HasSideEffects reports whether this instruction must be kept even if
// its result is unused — a requirement for the dead-code pass (C1's
// optimizer and C6's peephole alike must never elide these).
func (ins *Instruction) HasSideEffects() bool {
	switch ins.Opcode {
	case OpStoreVar, OpMapStoreField, OpMapStoreRange, OpStoreMem, OpPoke,
		OpCall, OpCallIndirect, OpBr, OpBrIf, OpReturn:
		return true
	default:
		return false
	}
}
