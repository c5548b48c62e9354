package parser

import (
	"strings"
	"testing"
)

func TestCSVParser_PipeTables(t *testing.T) {
	input := "name,qty\napple,3\npear,5\nfig,1\n"
	p := &CSVParser{BatchRows: 2}
	src, err := p.Parse(strings.NewReader(input), "fruit.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Title != "fruit" {
		t.Errorf("expected title %q, got %q", "fruit", src.Title)
	}
	want := "**Rows 2-3**\n\n" +
		"| name | qty |\n| --- | --- |\n| apple | 3 |\n| pear | 5 |\n\n" +
		"**Rows 4-4**\n\n" +
		"| name | qty |\n| --- | --- |\n| fig | 1 |"
	if src.Text != want {
		t.Errorf("unexpected text:\n%s", src.Text)
	}
}

func TestCSVParser_HeaderOnlyAndEmpty(t *testing.T) {
	p := &CSVParser{}
	src, err := p.Parse(strings.NewReader("a,b\n"), "h.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Text != "| a | b |\n| --- | --- |" {
		t.Errorf("unexpected text %q", src.Text)
	}

	src, err = p.Parse(strings.NewReader(""), "e.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Text != "" {
		t.Errorf("expected empty text, got %q", src.Text)
	}
}

func TestForFile(t *testing.T) {
	for _, name := range []string{"a.txt", "a.MD", "a.markdown", "a.csv", "a.html", "a.htm", "a.pdf", "a.docx"} {
		if _, err := ForFile(name); err != nil {
			t.Errorf("ForFile(%q): %v", name, err)
		}
		if !IsSupportedExtension(name) {
			t.Errorf("IsSupportedExtension(%q) = false", name)
		}
	}
	if _, err := ForFile("a.exe"); err == nil {
		t.Errorf("expected error for unsupported extension")
	}
}
