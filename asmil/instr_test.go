package asmil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blendsdk/blend65/ssair"
)

func TestInstructionString(t *testing.T) {
	ld := New(LDA, ZP("x"), ssair.Pos{Line: 1})
	require.Equal(t, "LDA x", ld.String())

	rts := NewImplied(RTS, ssair.Pos{Line: 2})
	require.Equal(t, "RTS", rts.String())

	acc := New(ASL, Acc(), ssair.Pos{})
	require.Equal(t, "ASL A", acc.String())
}
