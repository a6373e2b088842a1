package ssair

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeDominators(t *testing.T) {
	const numBlocks = 10

	for _, tc := range []struct {
		name    string
		edges   map[int][]int
		expDoms map[int]int
	}{
		{
			name: "linear",
			// 0 -> 1 -> 2 -> 3 -> 4
			edges:   map[int][]int{0: {1}, 1: {2}, 2: {3}, 3: {4}},
			expDoms: map[int]int{1: 0, 2: 1, 3: 2, 4: 3},
		},
		{
			name: "diamond",
			//  0
			// / \
			// 1   2
			// \ /
			//  3
			edges:   map[int][]int{0: {1, 2}, 1: {3}, 2: {3}},
			expDoms: map[int]int{1: 0, 2: 0, 3: 0},
		},
		{
			name: "loop",
			// 0 -> 1 -> 2
			// ^         |
			// 3 <-------
			edges:   map[int][]int{0: {1}, 1: {2}, 2: {3}, 3: {0}},
			expDoms: map[int]int{1: 0, 2: 1, 3: 2},
		},
		{
			name: "nested loops",
			//     0
			//    / \
			//   1 -> 2
			//   ^    |
			//   4 <- 3
			edges:   map[int][]int{0: {1, 2}, 1: {2}, 2: {3, 1}, 3: {4}, 4: {1}},
			expDoms: map[int]int{1: 0, 2: 0, 3: 2, 4: 3},
		},
		{
			name: "two intersecting loops",
			//   0
			//   v
			//   1 --> 2 --> 3
			//   ^     |     |
			//   4 <-- 5 <-- 6
			edges: map[int][]int{
				0: {1}, 1: {2, 4}, 2: {3, 5}, 3: {6}, 4: {1}, 5: {4}, 6: {5},
			},
			expDoms: map[int]int{1: 0, 2: 1, 3: 2, 4: 1, 5: 2, 6: 3},
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			blocks := make(map[int]*Block, numBlocks)
			for i := 0; i < numBlocks; i++ {
				blocks[i] = &Block{Label: fmt.Sprintf("b%d", i)}
			}

			var fromIDs []int
			for from := range tc.edges {
				fromIDs = append(fromIDs, from)
			}
			sort.Ints(fromIDs)
			for _, from := range fromIDs {
				tos := append([]int(nil), tc.edges[from]...)
				sort.Ints(tos)
				for _, to := range tos {
					blocks[from].Succs = append(blocks[from].Succs, blocks[to])
					blocks[to].Preds = append(blocks[to].Preds, blocks[from])
				}
			}

			rpo := reversePostorder(blocks[0])
			order := make(map[*Block]int, len(rpo))
			for i, b := range rpo {
				order[b] = i
			}
			idom := computeDominators(rpo, order)

			for blockID, expDomID := range tc.expDoms {
				require.Equal(t, blocks[expDomID], idom[blocks[blockID]],
					"block %d expecting dominator %d", blockID, expDomID)
			}
		})
	}
}

func TestCFGLoopDepth(t *testing.T) {
	fn := &Function{Name: "loopy"}
	b := NewBuilder(fn)

	entry := b.NewBlock("entry")
	header := b.NewBlock("header")
	body := b.NewBlock("body")
	exit := b.NewBlock("exit")

	entry.Term = &Instruction{Opcode: OpBr, Targets: []string{"header"}}
	header.Term = &Instruction{Opcode: OpBrIf, Targets: []string{"body", "exit"}}
	body.Term = &Instruction{Opcode: OpBr, Targets: []string{"header"}}
	exit.Term = &Instruction{Opcode: OpReturn}

	cfg := ComputeCFG(fn)

	require.Equal(t, 0, entry.LoopDepth())
	require.Equal(t, 1, header.LoopDepth())
	require.Equal(t, 1, body.LoopDepth())
	require.Equal(t, 0, exit.LoopDepth())

	require.True(t, cfg.Dominates(entry, exit))
	require.True(t, cfg.Dominates(header, body))
	require.False(t, cfg.Dominates(body, header))
}
