// Package sections assembles the nested outline from an inferred title
// hierarchy, the numbered element stream and the original blocks.
package sections

import (
	"slices"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// Build returns the top-level sections of the outline. Summaries that
// precede the first title form an untitled leading section, so a document
// without titles yields a single section covering all of it. Siblings are
// ordered by their first title number. Build never fails; identifiers
// absent from the stream become placeholder headings.
func Build(h []doctree.Hierarchy, elements []doctree.Element, blocks []doctree.Block) []*doctree.Section {
	b := newBuilder(elements, blocks)

	var out []*doctree.Section
	if lead := b.leading(); lead != nil {
		out = append(out, lead)
	}
	return append(out, b.build(h)...)
}

type builder struct {
	elements []doctree.Element
	blocks   []doctree.Block
	byNumber map[int]int // title number -> element position
}

func newBuilder(elements []doctree.Element, blocks []doctree.Block) *builder {
	b := &builder{elements: elements, blocks: blocks, byNumber: make(map[int]int)}
	for i, e := range elements {
		if e.IsTitle() {
			if _, dup := b.byNumber[e.Number]; !dup {
				b.byNumber[e.Number] = i
			}
		}
	}
	return b
}

func (b *builder) build(nodes []doctree.Hierarchy) []*doctree.Section {
	ordered := slices.Clone(nodes)
	slices.SortStableFunc(ordered, func(x, y doctree.Hierarchy) int {
		return firstID(x) - firstID(y)
	})

	out := make([]*doctree.Section, 0, len(ordered))
	for _, n := range ordered {
		out = append(out, b.section(n))
	}
	return out
}

func (b *builder) section(n doctree.Hierarchy) *doctree.Section {
	s := &doctree.Section{
		Heading:       make([]string, 0, len(n.Content)),
		Children:      []doctree.Child{},
		DirectSummary: []string{},
	}
	for _, id := range n.Content {
		if pos, ok := b.byNumber[id]; ok {
			s.Heading = append(s.Heading, b.elements[pos].Content)
		} else {
			s.Heading = append(s.Heading, doctree.PlaceholderHeading(id))
		}
	}

	if len(n.Content) > 0 {
		if pos, ok := b.byNumber[n.Content[len(n.Content)-1]]; ok {
			b.attach(s, pos+1)
		}
	}
	if len(n.Children) > 0 {
		s.Children = append(s.Children, doctree.SectionsChild(b.build(n.Children)))
	}
	return s
}

// leading returns the section for summaries before the first title, or nil.
func (b *builder) leading() *doctree.Section {
	if len(b.elements) == 0 || b.elements[0].IsTitle() {
		return nil
	}
	s := &doctree.Section{
		Heading:       []string{},
		Children:      []doctree.Child{},
		DirectSummary: []string{},
	}
	b.attach(s, 0)
	return s
}

// attach adds the summaries starting at element position start, up to the
// next title, and the blocks they cover.
func (b *builder) attach(s *doctree.Section, start int) {
	for i := start; i < len(b.elements) && !b.elements[i].IsTitle(); i++ {
		sum := b.elements[i]
		s.DirectSummary = append(s.DirectSummary, sum.Content)
		for j := max(sum.Source.From, 0); j <= sum.Source.To && j < len(b.blocks); j++ {
			s.Children = append(s.Children, doctree.ParagraphChild(b.blocks[j].Content))
		}
	}
}

// Unattached returns, in document order, the titles inside combined nodes
// whose following summaries Build leaves out: only the summaries after a
// node's last title are attached.
func Unattached(h []doctree.Hierarchy, elements []doctree.Element) []int {
	b := newBuilder(elements, nil)
	var out []int
	var walk func([]doctree.Hierarchy)
	walk = func(nodes []doctree.Hierarchy) {
		for _, n := range nodes {
			for _, id := range n.Content[:max(len(n.Content)-1, 0)] {
				pos, ok := b.byNumber[id]
				if ok && pos+1 < len(elements) && !elements[pos+1].IsTitle() {
					out = append(out, id)
				}
			}
			walk(n.Children)
		}
	}
	walk(h)
	slices.Sort(out)
	return out
}

func firstID(h doctree.Hierarchy) int {
	if len(h.Content) == 0 {
		return 0
	}
	return slices.Min(h.Content)
}
