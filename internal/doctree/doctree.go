package doctree

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Source is a loaded document ready for segmentation.
type Source struct {
	Title string // Document title (from metadata or filename)
	Text  string // Markdown-ish plain text
}

// Block is an atomic, order-preserving unit of document text.
type Block struct {
	Content    string `json:"content"`
	Meaningful bool   `json:"meaningful"`
}

// Confidence grades a title classification.
type Confidence string

const (
	ConfidenceHigh     Confidence = "high"
	ConfidenceModerate Confidence = "moderate"
)

// TitleConfidence holds block indices a classifier considers titles.
type TitleConfidence struct {
	High     []int `json:"highConfidence"`
	Moderate []int `json:"moderateConfidence"`
}

// Span is an inclusive range of block indices.
type Span struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Len returns the number of blocks covered.
func (s Span) Len() int { return s.To - s.From + 1 }

// ElementKind discriminates Element variants.
type ElementKind int

const (
	KindTitle ElementKind = iota
	KindSummary
)

func (k ElementKind) String() string {
	switch k {
	case KindTitle:
		return "title"
	case KindSummary:
		return "summary"
	}
	return "unknown"
}

// Element is one entry of the ordered document stream. Title elements use
// Confidence, BlockIndex and Number; Summary elements use Source.
type Element struct {
	Kind       ElementKind
	Content    string
	Confidence Confidence
	BlockIndex int
	Number     int // 1-based once numbered, 0 before
	Source     Span
}

// TitleElement builds a Title element.
func TitleElement(content string, conf Confidence, blockIndex int) Element {
	return Element{Kind: KindTitle, Content: content, Confidence: conf, BlockIndex: blockIndex}
}

// SummaryElement builds a Summary element.
func SummaryElement(content string, from, to int) Element {
	return Element{Kind: KindSummary, Content: content, Source: Span{From: from, To: to}}
}

func (e Element) IsTitle() bool { return e.Kind == KindTitle }

// Label renders the element the way collaborator prompts reference it.
func (e Element) Label() string {
	if e.IsTitle() {
		return fmt.Sprintf("T%d: %s", e.Number, e.Content)
	}
	return e.Content
}

type elementJSON struct {
	Type         string     `json:"type"`
	Content      string     `json:"content"`
	Confidence   Confidence `json:"confidence,omitempty"`
	BlockIndex   *int       `json:"blockIndex,omitempty"`
	Number       int        `json:"number,omitempty"`
	SourceBlocks *Span      `json:"sourceBlocks,omitempty"`
}

func (e Element) MarshalJSON() ([]byte, error) {
	out := elementJSON{Type: e.Kind.String(), Content: e.Content}
	if e.IsTitle() {
		idx := e.BlockIndex
		out.Confidence = e.Confidence
		out.BlockIndex = &idx
		out.Number = e.Number
	} else {
		src := e.Source
		out.SourceBlocks = &src
	}
	return json.Marshal(out)
}

// Titles returns the title elements of a stream in order.
func Titles(elements []Element) []Element {
	var out []Element
	for _, e := range elements {
		if e.IsTitle() {
			out = append(out, e)
		}
	}
	return out
}

// Hierarchy is one node of the inferred title nesting. Content holds
// co-equal title numbers; children only hold greater numbers.
type Hierarchy struct {
	Content  []int       `json:"content"`
	Children []Hierarchy `json:"children,omitempty"`
}

// IDs returns every title number in the forest in pre-order.
func IDs(h []Hierarchy) []int {
	var out []int
	var walk func([]Hierarchy)
	walk = func(nodes []Hierarchy) {
		for _, n := range nodes {
			out = append(out, n.Content...)
			walk(n.Children)
		}
	}
	walk(h)
	return out
}

// Flat returns a hierarchy with each numbered title as its own top-level node.
func Flat(elements []Element) []Hierarchy {
	var out []Hierarchy
	for _, t := range Titles(elements) {
		out = append(out, Hierarchy{Content: []int{t.Number}})
	}
	return out
}

// Issues lists identifier mismatches between a hierarchy and the titles it
// was built from.
type Issues struct {
	Missing    []int `json:"missing,omitempty"`
	Unknown    []int `json:"unknown,omitempty"`
	Duplicates []int `json:"duplicates,omitempty"`
}

func (i Issues) Empty() bool {
	return len(i.Missing) == 0 && len(i.Unknown) == 0 && len(i.Duplicates) == 0
}

// Reconcile removes repeated identifiers (keeping the first occurrence),
// drops nodes left empty by that, and reports identifiers that are missing
// from or unknown to the numbered title stream.
func Reconcile(h []Hierarchy, elements []Element) ([]Hierarchy, Issues) {
	known := make(map[int]bool)
	for _, t := range Titles(elements) {
		known[t.Number] = true
	}

	var issues Issues
	seen := make(map[int]bool)
	var clean func([]Hierarchy) []Hierarchy
	clean = func(nodes []Hierarchy) []Hierarchy {
		var out []Hierarchy
		for _, n := range nodes {
			var content []int
			for _, id := range n.Content {
				if seen[id] {
					issues.Duplicates = append(issues.Duplicates, id)
					continue
				}
				seen[id] = true
				if !known[id] {
					issues.Unknown = append(issues.Unknown, id)
				}
				content = append(content, id)
			}
			children := clean(n.Children)
			if len(content) == 0 {
				out = append(out, children...)
				continue
			}
			out = append(out, Hierarchy{Content: content, Children: children})
		}
		return out
	}
	result := clean(h)

	for _, t := range Titles(elements) {
		if !seen[t.Number] {
			issues.Missing = append(issues.Missing, t.Number)
		}
	}
	return result, issues
}

// Section is a node of the final outline.
type Section struct {
	Heading       []string `json:"heading"`
	Children      []Child  `json:"children"`
	DirectSummary []string `json:"directSummary"`
	Summary       []string `json:"summary,omitempty"`
	LongSummary   []string `json:"longSummary,omitempty"`
}

// ChildKind discriminates Child variants.
type ChildKind int

const (
	ChildParagraph ChildKind = iota
	ChildSections
)

// Child is either a paragraph string or a nested list of sections.
type Child struct {
	Kind      ChildKind
	Paragraph string
	Sections  []*Section
}

func ParagraphChild(text string) Child { return Child{Kind: ChildParagraph, Paragraph: text} }

func SectionsChild(sections []*Section) Child {
	return Child{Kind: ChildSections, Sections: sections}
}

// MarshalJSON encodes paragraphs as strings and section lists as arrays.
func (c Child) MarshalJSON() ([]byte, error) {
	if c.Kind == ChildSections {
		if c.Sections == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.Sections)
	}
	return json.Marshal(c.Paragraph)
}

func (c *Child) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		c.Kind = ChildSections
		return json.Unmarshal(data, &c.Sections)
	}
	c.Kind = ChildParagraph
	return json.Unmarshal(data, &c.Paragraph)
}

// Subsections returns the nested sections of s in order.
func (s *Section) Subsections() []*Section {
	var out []*Section
	for _, c := range s.Children {
		if c.Kind == ChildSections {
			out = append(out, c.Sections...)
		}
	}
	return out
}

// Paragraphs returns the direct paragraph children of s.
func (s *Section) Paragraphs() []string {
	var out []string
	for _, c := range s.Children {
		if c.Kind == ChildParagraph {
			out = append(out, c.Paragraph)
		}
	}
	return out
}

// PlaceholderHeading is used for identifiers absent from the title stream.
func PlaceholderHeading(id int) string {
	return "Unknown Title " + strconv.Itoa(id)
}
