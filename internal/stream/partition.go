package stream

import (
	"fmt"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// checkPartition verifies that summaries are Summary elements whose spans
// cover from..to contiguously, in order, without overlap.
func checkPartition(summaries []doctree.Element, from, to int) error {
	if len(summaries) == 0 {
		return fmt.Errorf("no summaries returned")
	}
	next := from
	for i, s := range summaries {
		if s.IsTitle() {
			return fmt.Errorf("entry %d is not a summary", i)
		}
		if s.Source.From != next || s.Source.To < s.Source.From {
			return fmt.Errorf("entry %d covers %d..%d, expected to start at %d", i, s.Source.From, s.Source.To, next)
		}
		next = s.Source.To + 1
	}
	if next != to+1 {
		return fmt.Errorf("summaries end at %d, expected %d", next-1, to)
	}
	return nil
}

// Number stamps 1-based sequential identifiers onto Title elements in
// document order. The input is not modified.
func Number(elements []doctree.Element) []doctree.Element {
	out := make([]doctree.Element, len(elements))
	n := 0
	for i, e := range elements {
		if e.IsTitle() {
			n++
			e.Number = n
		}
		out[i] = e
	}
	return out
}
