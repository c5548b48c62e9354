// Package segment splits raw document text into ordered blocks.
package segment

import (
	"regexp"
	"strings"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// Config controls segmentation.
type Config struct {
	ListIndent int // Leading spaces that continue a list item without a marker
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{ListIndent: 2}
}

// Segmentation is the result of splitting a document. Breaks[i] holds the
// blank lines observed immediately before Blocks[i]; the final entry of
// Breaks holds the blank lines after the last block.
type Segmentation struct {
	Blocks []doctree.Block
	Breaks [][]string
}

// Text reassembles the original document.
func (s Segmentation) Text() string {
	var units []string
	for i, b := range s.Blocks {
		if i < len(s.Breaks) {
			units = append(units, s.Breaks[i]...)
		}
		units = append(units, b.Content)
	}
	if len(s.Breaks) > len(s.Blocks) {
		units = append(units, s.Breaks[len(s.Blocks)]...)
	}
	return strings.Join(units, "\n")
}

type mode int

const (
	modePlain mode = iota
	modeFence
	modeTable
	modeList
	modeQuote
)

var (
	orderedMarker  = regexp.MustCompile(`^\d+[.)]\s`)
	tableRule      = regexp.MustCompile(`\|\s*:?-{2,}`)
	imageRef       = regexp.MustCompile(`^!\[[^\]]*\]\(`)
	horizontalRule = regexp.MustCompile(`^(?:(?:-\s*){3,}|(?:\*\s*){3,}|(?:_\s*){3,})$`)
)

// Segment splits text using DefaultConfig.
func Segment(text string) Segmentation {
	return SegmentWith(text, DefaultConfig())
}

// Blocks is a convenience wrapper returning only the blocks of text.
func Blocks(text string) []doctree.Block {
	return Segment(text).Blocks
}

// SegmentWith splits text line by line into blocks. It never fails.
func SegmentWith(text string, cfg Config) Segmentation {
	if cfg.ListIndent <= 0 {
		cfg.ListIndent = DefaultConfig().ListIndent
	}
	s := &segmenter{cfg: cfg, pending: []string{}}
	for _, line := range strings.Split(text, "\n") {
		s.feed(line)
	}
	s.flush()
	s.out.Breaks = append(s.out.Breaks, s.pending)
	return s.out
}

type segmenter struct {
	cfg     Config
	mode    mode
	fence   string
	buf     []string
	pending []string
	out     Segmentation
}

func (s *segmenter) feed(line string) {
	trimmed := strings.TrimSpace(line)

	if s.mode == modeFence {
		s.buf = append(s.buf, line)
		if closesFence(trimmed, s.fence) {
			s.flush()
		}
		return
	}

	if trimmed == "" {
		s.flush()
		s.pending = append(s.pending, line)
		return
	}

	if s.mode != modePlain {
		if s.continues(line, trimmed) {
			s.buf = append(s.buf, line)
			return
		}
		// The terminating line starts fresh in plain mode.
		s.flush()
	}

	switch {
	case isFence(trimmed):
		s.mode = modeFence
		s.fence = fenceMarker(trimmed)
		s.buf = []string{line}
	case isTableRow(line, trimmed):
		s.mode = modeTable
		s.buf = []string{line}
	case isListItem(trimmed):
		s.mode = modeList
		s.buf = []string{line}
	case isQuote(trimmed):
		s.mode = modeQuote
		s.buf = []string{line}
	default:
		s.emit(line, Meaningful(line))
	}
}

func (s *segmenter) continues(line, trimmed string) bool {
	switch s.mode {
	case modeTable:
		return isTableRow(line, trimmed)
	case modeList:
		return isListItem(trimmed) || s.indented(line)
	case modeQuote:
		return isQuote(trimmed)
	}
	return false
}

func (s *segmenter) indented(line string) bool {
	if strings.HasPrefix(line, "\t") {
		return true
	}
	return len(line)-len(strings.TrimLeft(line, " ")) >= s.cfg.ListIndent
}

// flush closes any open multi-line buffer.
func (s *segmenter) flush() {
	if s.mode == modePlain {
		return
	}
	s.emit(strings.Join(s.buf, "\n"), true)
	s.mode = modePlain
	s.fence = ""
	s.buf = nil
}

func (s *segmenter) emit(content string, meaningful bool) {
	s.out.Breaks = append(s.out.Breaks, s.pending)
	s.pending = []string{}
	s.out.Blocks = append(s.out.Blocks, doctree.Block{Content: content, Meaningful: meaningful})
}

func isFence(trimmed string) bool {
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}

// fenceMarker returns the run of backticks or tildes opening a fence.
func fenceMarker(trimmed string) string {
	n := 0
	for n < len(trimmed) && trimmed[n] == trimmed[0] {
		n++
	}
	return trimmed[:n]
}

// closesFence reports whether a line is a closing marker for a fence opened
// with marker: the same character, at least as many times, and nothing else.
func closesFence(trimmed, marker string) bool {
	return len(trimmed) >= len(marker) && strings.Trim(trimmed, marker[:1]) == ""
}

func isTableRow(line, trimmed string) bool {
	if !strings.Contains(line, "|") {
		return false
	}
	return strings.HasPrefix(trimmed, "|") || tableRule.MatchString(line)
}

func isListItem(trimmed string) bool {
	switch {
	case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "), strings.HasPrefix(trimmed, "+ "):
		return !horizontalRule.MatchString(trimmed)
	}
	return orderedMarker.MatchString(trimmed)
}

func isQuote(trimmed string) bool {
	return strings.HasPrefix(trimmed, ">")
}

// Meaningful reports whether a single line carries content worth
// summarizing. Captions, image references and rules do not.
func Meaningful(line string) bool {
	t := strings.TrimSpace(line)
	switch {
	case t == "":
		return false
	case strings.HasPrefix(t, "Figure "), strings.HasPrefix(t, "Table "):
		return false
	case imageRef.MatchString(t):
		return false
	case horizontalRule.MatchString(t):
		return false
	}
	return true
}
