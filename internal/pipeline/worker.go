package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/parser"
	"github.com/dgallion1/docoutline/internal/resolver"
)

// Worker processes a single document job.
type Worker struct {
	engine *Engine
	log    *slog.Logger
}

func NewWorker(engine *Engine, log *slog.Logger) *Worker {
	return &Worker{engine: engine, log: log}
}

// Process loads the job's file and runs the engine over it. The job ends
// completed, partial when the run degraded, or failed.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	job.SetStatus(StatusSegmenting, "parsing")
	p, err := parser.ForFile(job.Filename)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.finish(StatusFailed, "parsing", nil, err)
		return
	}

	src, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.finish(StatusFailed, "parsing", nil, fmt.Errorf("parse: %w", err))
		return
	}
	if job.Title != "" {
		src.Title = job.Title
	}
	job.mu.Lock()
	job.Title = src.Title
	job.ContentHash = ContentHashHex([]byte(src.Text))
	job.mu.Unlock()

	res, err := w.engine.Run(ctx, src, func(s JobStatus) { job.SetStatus(s, string(s)) })
	w.finish(log, job, res, err)
}

func (w *Worker) finish(log *slog.Logger, job *Job, res *Result, err error) {
	if res != nil {
		for _, warning := range res.Warnings {
			job.AddWarning(warning)
		}
		job.SetCounts(len(res.Blocks), len(doctree.Titles(res.Elements)), countSections(res.Sections))
	}

	switch {
	case errors.Is(err, resolver.ErrStuck):
		log.Warn("run finished with a flat hierarchy", "error", err)
		job.finish(StatusPartial, "done", res, err)
	case err != nil:
		log.Error("run failed", "error", err)
		job.finish(StatusFailed, job.Snapshot().Phase, res, err)
	case res != nil && len(res.Warnings) > 0:
		log.Info("run finished with warnings", "warnings", len(res.Warnings))
		job.finish(StatusPartial, "done", res, nil)
	default:
		log.Info("run complete", "sections", job.Snapshot().Progress.Sections)
		job.finish(StatusCompleted, "done", res, nil)
	}
}

func countSections(ss []*doctree.Section) int {
	n := 0
	for _, s := range ss {
		n += 1 + countSections(s.Subsections())
	}
	return n
}
