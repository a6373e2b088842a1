package ssair

import (
	"fmt"
	"strings"
)

// String renders ins in a debug textual form, e.g.
//
//	v3 = add.u8 v1, v2
//	br_if v4, then, else
//	v5 = phi [then: v3, else: v2]
//
// This mirrors the teacher's instruction-dump style (one instruction
// per line, result first) and is used by debugview and by test
// failure messages; it is never parsed back.
func (ins *Instruction) String() string {
	var sb strings.Builder
	if ins.Result.Valid() {
		fmt.Fprintf(&sb, "v%d = ", ins.Result.ID())
	}
	sb.WriteString(ins.Opcode.String())

	switch ins.Opcode {
	case OpConst:
		fmt.Fprintf(&sb, " %s", ins.Const.String())
	case OpPhi:
		sb.WriteString(" [")
		for i, e := range ins.Phi {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s: v%d", e.Pred, e.Value.ID())
		}
		sb.WriteString("]")
	case OpBr:
		fmt.Fprintf(&sb, " %s", strings.Join(ins.Targets, ", "))
	case OpBrIf:
		fmt.Fprintf(&sb, " v%d, %s", argID(ins, 0), strings.Join(ins.Targets, ", "))
	case OpCall, OpCallIndirect:
		if ins.Name != "" {
			fmt.Fprintf(&sb, " %s(%s)", ins.Name, argList(ins))
		} else {
			fmt.Fprintf(&sb, " (%s)", argList(ins))
		}
	case OpLoadVar, OpStoreVar, OpAddrOf, OpLen:
		fmt.Fprintf(&sb, " %s", ins.Name)
		if len(ins.Args) > 0 {
			fmt.Fprintf(&sb, ", %s", argList(ins))
		}
	case OpMapLoadField, OpMapStoreField:
		fmt.Fprintf(&sb, " %s.%s", ins.Name, ins.Field)
		if len(ins.Args) > 0 {
			fmt.Fprintf(&sb, ", %s", argList(ins))
		}
	case OpMapLoadRange, OpMapStoreRange:
		fmt.Fprintf(&sb, " %s[%s]", ins.Name, argList(ins))
	default:
		if len(ins.Args) > 0 {
			fmt.Fprintf(&sb, " %s", argList(ins))
		}
	}
	if ins.Result.Valid() {
		fmt.Fprintf(&sb, " : %s", ins.Result.Type().String())
	}
	return sb.String()
}

func argID(ins *Instruction, i int) ValueID {
	if i >= len(ins.Args) {
		return invalidValueID
	}
	return ins.Args[i].ID()
}

func argList(ins *Instruction) string {
	parts := make([]string, len(ins.Args))
	for i, a := range ins.Args {
		parts[i] = fmt.Sprintf("v%d", a.ID())
	}
	return strings.Join(parts, ", ")
}

func (c ConstValue) String() string {
	switch c.Type.Kind {
	case KindI1:
		return fmt.Sprintf("%t", c.Bool)
	case KindU8:
		return fmt.Sprintf("%d", c.U8)
	case KindU16, KindPtr:
		return fmt.Sprintf("%d", c.U16)
	default:
		return "?"
	}
}

// String renders a block as its label followed by every instruction,
// one per indented line.
func (b *Block) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:\n", b.Label)
	for _, ins := range b.AllInstructions() {
		fmt.Fprintf(&sb, "    %s\n", ins.String())
	}
	return sb.String()
}

// String renders the whole function signature followed by every
// block in declaration order.
func (f *Function) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "func %s(", f.Name)
	for i, p := range f.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %s", p.Name, p.Type.String())
	}
	sb.WriteString(")")
	if f.ReturnType.Kind != KindInvalid {
		fmt.Fprintf(&sb, " %s", f.ReturnType.String())
	}
	sb.WriteString(" {\n")
	for _, b := range f.Blocks {
		for _, line := range strings.Split(strings.TrimRight(b.String(), "\n"), "\n") {
			fmt.Fprintf(&sb, "  %s\n", line)
		}
	}
	sb.WriteString("}")
	return sb.String()
}
