// Package pipeline composes the outline stages into a single run and
// schedules runs over a worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/docoutline/internal/aggregate"
	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/resolver"
	"github.com/dgallion1/docoutline/internal/sections"
	"github.com/dgallion1/docoutline/internal/segment"
	"github.com/dgallion1/docoutline/internal/stream"
)

// Classifier reports which blocks are titles.
type Classifier interface {
	Classify(ctx context.Context, blocks []doctree.Block) (doctree.TitleConfidence, error)
}

// Components are the stages an Engine runs.
type Components struct {
	Segment    segment.Config
	Classifier Classifier
	Stream     *stream.Builder
	Resolver   *resolver.Resolver
	Aggregator *aggregate.Aggregator
}

// Engine turns one source document into an outline.
type Engine struct {
	c   Components
	log *slog.Logger
}

func NewEngine(c Components, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{c: c, log: log}
}

// Result is the outcome of one run.
type Result struct {
	Title     string              `json:"title"`
	Blocks    []doctree.Block     `json:"blocks"`
	Elements  []doctree.Element   `json:"elements"`
	Hierarchy []doctree.Hierarchy `json:"hierarchy"`
	Tree      string              `json:"tree"`
	Sections  []*doctree.Section  `json:"sections"`
	Warnings  []string            `json:"warnings,omitempty"`
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// PhaseFunc is told when a run enters a new phase.
type PhaseFunc func(JobStatus)

// Run executes every stage. Collaborator failures degrade into warnings.
// A stuck resolver yields a flat hierarchy and the returned error wraps
// resolver.ErrStuck alongside the complete result. Only cancellation
// aborts a run early.
func (e *Engine) Run(ctx context.Context, src *doctree.Source, phase PhaseFunc) (*Result, error) {
	if phase == nil {
		phase = func(JobStatus) {}
	}
	res := &Result{Title: src.Title}
	log := e.log.With("title", src.Title)

	phase(StatusSegmenting)
	res.Blocks = segment.SegmentWith(src.Text, e.c.Segment).Blocks
	log.Debug("segmented", "blocks", len(res.Blocks))

	phase(StatusClassifying)
	titles, err := e.c.Classifier.Classify(ctx, res.Blocks)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		log.Warn("title classification failed, continuing without titles", "error", err)
		res.warn("classification failed: %s", err)
		titles = doctree.TitleConfidence{}
	}

	phase(StatusSummarizing)
	res.Elements = stream.Number(e.c.Stream.Build(ctx, res.Blocks, titles))
	if err := ctx.Err(); err != nil {
		return res, err
	}
	numTitles := len(doctree.Titles(res.Elements))
	log.Info("element stream built", "elements", len(res.Elements), "titles", numTitles)

	phase(StatusResolving)
	rr, runErr := e.c.Resolver.Resolve(ctx, res.Elements)
	res.Tree = rr.Tree
	res.Warnings = append(res.Warnings, rr.Warnings...)
	switch {
	case errors.Is(runErr, resolver.ErrStuck):
		log.Warn("resolver stuck, using a flat hierarchy", "iterations", rr.Iterations)
		res.warn("hierarchy resolution stuck after %d windows", rr.Iterations)
	case runErr != nil:
		return res, runErr
	}

	h := rr.Hierarchy
	if len(h) > 0 {
		var issues doctree.Issues
		h, issues = doctree.Reconcile(h, res.Elements)
		if !issues.Empty() {
			log.Warn("hierarchy does not match titles", "missing", issues.Missing, "unknown", issues.Unknown, "duplicates", issues.Duplicates)
			e.reportIssues(res, issues)
		}
		for _, id := range issues.Missing {
			h = append(h, doctree.Hierarchy{Content: []int{id}})
		}
	}
	if len(h) == 0 && numTitles > 0 {
		if runErr == nil {
			res.warn("hierarchy empty, titles placed at top level")
		}
		h = doctree.Flat(res.Elements)
	}
	res.Hierarchy = h

	phase(StatusBuilding)
	res.Sections = sections.Build(h, res.Elements, res.Blocks)
	if ids := sections.Unattached(h, res.Elements); len(ids) > 0 {
		log.Warn("combined titles drop the summaries between them", "titles", ids)
		res.warn("summaries after combined titles %v are not attached to any section", ids)
	}

	phase(StatusAggregating)
	e.c.Aggregator.Aggregate(ctx, res.Sections)
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, runErr
}

func (e *Engine) reportIssues(res *Result, issues doctree.Issues) {
	if len(issues.Missing) > 0 {
		res.warn("titles missing from hierarchy, placed at top level: %v", issues.Missing)
	}
	if len(issues.Unknown) > 0 {
		res.warn("hierarchy references unknown titles: %v", issues.Unknown)
	}
	if len(issues.Duplicates) > 0 {
		res.warn("hierarchy repeats titles: %v", issues.Duplicates)
	}
}
