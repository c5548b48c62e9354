package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/pipeline"
)

var (
	// docTitleStyle for the document title banner
	docTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	// headingStyle for section headings
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("81"))

	// untitledStyle for the leading section before any title
	untitledStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("245"))

	// summaryStyle for hook summaries
	summaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// warnStyle for run warnings
	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))
)

const indentUnit = "  "

// renderOutline writes a human-readable outline of a run.
func renderOutline(w io.Writer, res *pipeline.Result) {
	title := res.Title
	if title == "" {
		title = "(untitled document)"
	}
	fmt.Fprintln(w, docTitleStyle.Render(title))
	renderSections(w, res.Sections, 0)

	for _, warning := range res.Warnings {
		fmt.Fprintln(w, warnStyle.Render("! "+warning))
	}
}

func renderSections(w io.Writer, sections []*doctree.Section, depth int) {
	indent := strings.Repeat(indentUnit, depth)
	for _, s := range sections {
		fmt.Fprintln(w, indent+headingText(s))
		if len(s.Summary) > 0 {
			fmt.Fprintln(w, indent+indentUnit+summaryStyle.Render(s.Summary[0]))
		}
		renderSections(w, s.Subsections(), depth+1)
	}
}

func headingText(s *doctree.Section) string {
	if len(s.Heading) == 0 {
		return untitledStyle.Render("(untitled)")
	}
	parts := make([]string, 0, len(s.Heading))
	for _, h := range s.Heading {
		parts = append(parts, strings.TrimSpace(strings.TrimLeft(h, "#")))
	}
	return headingStyle.Render(strings.Join(parts, " / "))
}
