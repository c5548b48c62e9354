package chunker

import (
	"github.com/dgallion1/docoutline/internal/doctree"
)

// Budget returns the usable token budget for a prompt: a fraction of the
// model context window minus the fixed cost of the instruction template.
// It never returns a negative value.
func Budget(contextWindow int, fraction float64, overhead int) int {
	b := int(float64(contextWindow)*fraction) - overhead
	if b < 0 {
		return 0
	}
	return b
}

// Group is a run of consecutive block indices that fits one prompt.
type Group struct {
	Indices []int
	Tokens  int
}

// GroupBlocks packs blocks (rendered by render) into consecutive groups
// whose token cost stays within budget. A block that exceeds the budget on
// its own forms a single-block group. Blocks for which keep returns false
// are skipped; a nil keep keeps everything.
func GroupBlocks(blocks []doctree.Block, budget int, count Counter, render func(i int, b doctree.Block) string, keep func(doctree.Block) bool) []Group {
	if count == nil {
		count = EstimateTokens
	}
	var groups []Group
	var cur Group

	for i, b := range blocks {
		if keep != nil && !keep(b) {
			continue
		}
		cost := count(render(i, b))
		if len(cur.Indices) > 0 && cur.Tokens+cost > budget {
			groups = append(groups, cur)
			cur = Group{}
		}
		cur.Indices = append(cur.Indices, i)
		cur.Tokens += cost
	}
	if len(cur.Indices) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

// Batch splits indices into consecutive batches of at most size entries.
func Batch(indices []int, size int) [][]int {
	if size <= 0 {
		size = 1
	}
	var out [][]int
	for i := 0; i < len(indices); i += size {
		end := min(i+size, len(indices))
		out = append(out, indices[i:end])
	}
	return out
}
