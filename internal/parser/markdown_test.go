package parser

import (
	"strings"
	"testing"
)

func TestMarkdownParser_TitleFromFirstHeading(t *testing.T) {
	input := `Preamble line.

## Not this one

# The *Real* Title

Body.
`
	p := &MarkdownParser{}
	src, err := p.Parse(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Title != "The Real Title" {
		t.Errorf("expected title %q, got %q", "The Real Title", src.Title)
	}
	if src.Text != input {
		t.Errorf("expected text to pass through unchanged")
	}
}

func TestMarkdownParser_CodeBlockHeadingIgnored(t *testing.T) {
	input := "```\n# not a heading\n```\n\nText.\n"
	p := &MarkdownParser{}
	src, err := p.Parse(strings.NewReader(input), "api.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Title != "api" {
		t.Errorf("expected filename title, got %q", src.Title)
	}
}

func TestMarkdownParser_NormalizesLineEndings(t *testing.T) {
	p := &MarkdownParser{}
	src, err := p.Parse(strings.NewReader("# A\r\n\r\nbody\r\n"), "crlf.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Text != "# A\n\nbody\n" {
		t.Errorf("unexpected text %q", src.Text)
	}
	if src.Title != "A" {
		t.Errorf("expected title %q, got %q", "A", src.Title)
	}
}

func TestMarkdownParser_TitleStripping(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"readme.md", "readme"},
		{"notes.markdown", "notes"},
		{"dir/plain.md", "plain"},
	}
	p := &MarkdownParser{}
	for _, tt := range tests {
		src, err := p.Parse(strings.NewReader("text"), tt.filename)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tt.filename, err)
		}
		if src.Title != tt.want {
			t.Errorf("filename=%q: expected title %q, got %q", tt.filename, tt.want, src.Title)
		}
	}
}
