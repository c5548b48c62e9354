// Package asciitree reads and writes the textual title tree exchanged with
// the hierarchy inference service, e.g.
//
//	T1
//	├── T2 - T3
//	└── T4
//	    └── T5
package asciitree

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// tabWidth is the prefix width counted for a tab.
const tabWidth = 4

// idRe matches a title reference at the start of an entry or after a
// " - " combiner.
var idRe = regexp.MustCompile(`(?:^|\s[-–—]\s+)T(\d+)\b`)

func isTreeRune(r rune) bool {
	switch r {
	case ' ', '\t', '│', '├', '└', '─', '|', '`', '+', '-', '*':
		return true
	}
	return false
}

type node struct {
	content  []int
	children []*node
}

// Parse converts tree text into a hierarchy. Lines that do not start with a
// title reference after the drawing prefix are ignored, so fenced output or
// prose around the tree is tolerated. Depth is relative: an entry is a
// child of the nearest preceding entry with a narrower prefix, so any
// connector style or indent step nests the same way.
func Parse(text string) []doctree.Hierarchy {
	var roots []*node
	var stack []*node
	var widths []int // prefix width of each open node on stack

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \r")
		width := 0
		rest := line
		for _, r := range line {
			if !isTreeRune(r) {
				break
			}
			if r == '\t' {
				width += tabWidth
			} else {
				width++
			}
			rest = rest[len(string(r)):]
		}
		ids := parseIDs(rest)
		if len(ids) == 0 {
			continue
		}
		for len(stack) > 0 && widths[len(widths)-1] >= width {
			stack, widths = stack[:len(stack)-1], widths[:len(widths)-1]
		}
		n := &node{content: ids}
		if len(stack) == 0 {
			roots = append(roots, n)
		} else {
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, n)
		}
		stack, widths = append(stack, n), append(widths, width)
	}
	return convert(roots)
}

func parseIDs(entry string) []int {
	if !strings.HasPrefix(entry, "T") {
		return nil
	}
	var ids []int
	for _, m := range idRe.FindAllStringSubmatch(entry, -1) {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func convert(nodes []*node) []doctree.Hierarchy {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]doctree.Hierarchy, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, doctree.Hierarchy{Content: n.content, Children: convert(n.children)})
	}
	return out
}

// Render writes a hierarchy in the box-drawing form Parse reads.
func Render(h []doctree.Hierarchy) string {
	var b strings.Builder
	for _, n := range h {
		b.WriteString(label(n.Content))
		b.WriteString("\n")
		renderChildren(&b, n.Children, "")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func renderChildren(b *strings.Builder, children []doctree.Hierarchy, prefix string) {
	for i, c := range children {
		branch, next := "├── ", "│   "
		if i == len(children)-1 {
			branch, next = "└── ", "    "
		}
		b.WriteString(prefix + branch + label(c.Content) + "\n")
		renderChildren(b, c.Children, prefix+next)
	}
}

func label(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "T" + strconv.Itoa(id)
	}
	return strings.Join(parts, " - ")
}

// Spine returns the title identifiers on the rightmost path of the forest:
// the last top-level node, its last child, and so on down to a leaf.
func Spine(h []doctree.Hierarchy) []int {
	var out []int
	for len(h) > 0 {
		last := h[len(h)-1]
		out = append(out, last.Content...)
		h = last.Children
	}
	return out
}
