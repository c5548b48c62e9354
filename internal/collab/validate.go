package collab

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dgallion1/docoutline/internal/doctree"
)

type summaryEntry struct {
	Summary         string `json:"summary"`
	IsAbruptChange  bool   `json:"isAbruptChange"`
	StartBlockIndex int    `json:"startBlockIndex"`
	EndBlockIndex   int    `json:"endBlockIndex"`
}

// normalizeSpans turns model-reported summary ranges into Summary elements
// that partition from..to. Gaps between entries are absorbed by the
// preceding entry and the ends are stretched to the range bounds, since
// models routinely skip decorative blocks. Entries that start outside the
// range or overlap are rejected.
func normalizeSpans(entries []summaryEntry, from, to int) ([]doctree.Element, error) {
	var kept []summaryEntry
	for _, e := range entries {
		if strings.TrimSpace(e.Summary) != "" {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("no summaries in reply")
	}
	slices.SortStableFunc(kept, func(a, b summaryEntry) int { return a.StartBlockIndex - b.StartBlockIndex })

	out := make([]doctree.Element, 0, len(kept))
	prevEnd := from - 1
	for i, e := range kept {
		start, end := e.StartBlockIndex, max(e.EndBlockIndex, e.StartBlockIndex)
		if start < from || start > to {
			return nil, fmt.Errorf("summary %d starts at %d outside %d..%d", i, start, from, to)
		}
		if start <= prevEnd {
			return nil, fmt.Errorf("summary %d at %d overlaps previous ending at %d", i, start, prevEnd)
		}
		out = append(out, doctree.SummaryElement(strings.TrimSpace(e.Summary), start, min(end, to)))
		prevEnd = min(end, to)
	}

	out[0].Source.From = from
	for i := 1; i < len(out); i++ {
		out[i-1].Source.To = out[i].Source.From - 1
	}
	out[len(out)-1].Source.To = to
	return out, nil
}

// spansByMeaningful gives each meaningful block in from..to its own span,
// extended over the decorative blocks that follow it. The first span starts
// at from. It returns the meaningful indices alongside the spans.
func spansByMeaningful(blocks []doctree.Block, from, to int) ([]int, []doctree.Span) {
	var idx []int
	for i := from; i <= to; i++ {
		if blocks[i].Meaningful {
			idx = append(idx, i)
		}
	}
	spans := make([]doctree.Span, len(idx))
	for j, i := range idx {
		spans[j] = doctree.Span{From: i, To: to}
		if j > 0 {
			spans[j-1].To = i - 1
		}
	}
	if len(spans) > 0 {
		spans[0].From = from
	}
	return idx, spans
}
