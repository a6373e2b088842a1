package asmil

import "strings"

// Format renders a full module as indented assembly-like text, purely
// for debug output (debugview and test failure messages) — never
// parsed back in, and never the textual emitter spec.md's Non-goals
// exclude.
func (m *Module) Format() string {
	var b strings.Builder
	for _, fn := range m.Functions {
		fn.format(&b)
		b.WriteByte('\n')
	}
	if len(m.Data) > 0 {
		b.WriteString("; data\n")
		for _, d := range m.Data {
			b.WriteString(d.Label)
			b.WriteString(": .byte ")
			b.WriteString(formatBytes(d.Bytes))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (f *Function) format(b *strings.Builder) {
	b.WriteString("; function ")
	b.WriteString(f.Name)
	b.WriteByte('\n')
	for _, blk := range f.Blocks {
		b.WriteString(blk.Label)
		b.WriteString(":\n")
		for _, instr := range blk.Instrs {
			b.WriteString("    ")
			b.WriteString(instr.String())
			if instr.Comment != "" {
				b.WriteString("  ; ")
				b.WriteString(instr.Comment)
			}
			b.WriteByte('\n')
		}
	}
}

func formatBytes(bs []byte) string {
	parts := make([]string, len(bs))
	for i, x := range bs {
		parts[i] = "$" + byteHex(x)
	}
	return strings.Join(parts, ", ")
}

const hexDigits = "0123456789ABCDEF"

func byteHex(b byte) string {
	return string([]byte{hexDigits[b>>4], hexDigits[b&0xF]})
}
