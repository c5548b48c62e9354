// Package aggregate rolls section summaries up the outline bottom-up.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// Ellipsis marks truncated text.
const Ellipsis = "..."

// Rewriter is the multi-stage rewrite service.
type Rewriter interface {
	BoundedSummarize(ctx context.Context, text string) (string, error)
	ShortHook(ctx context.Context, text string) (string, error)
	LongFormRewrite(ctx context.Context, text string) ([]string, error)
}

// Config controls aggregation.
type Config struct {
	HookWords    int // ceiling for Section.Summary
	BoundedWords int // ceiling for the intermediate summary
	Concurrency  int // sections rewritten at once
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{HookWords: 15, BoundedWords: 100, Concurrency: 5}
}

// Aggregator populates Summary and LongSummary on a section tree.
type Aggregator struct {
	rw  Rewriter
	cfg Config
	sem *semaphore.Weighted
	log *slog.Logger
}

func New(rw Rewriter, cfg Config, log *slog.Logger) *Aggregator {
	def := DefaultConfig()
	if cfg.HookWords <= 0 {
		cfg.HookWords = def.HookWords
	}
	if cfg.BoundedWords <= 0 {
		cfg.BoundedWords = def.BoundedWords
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{rw: rw, cfg: cfg, sem: semaphore.NewWeighted(int64(cfg.Concurrency)), log: log}
}

// Aggregate processes every section in the tree and returns when all are
// done. Sections are mutated in place; each goroutine owns one section.
func (a *Aggregator) Aggregate(ctx context.Context, sections []*doctree.Section) {
	a.level(ctx, sections, "")
}

func (a *Aggregator) level(ctx context.Context, sections []*doctree.Section, path string) {
	var g errgroup.Group
	for i, s := range sections {
		p := fmt.Sprintf("%s/%d", path, i)
		g.Go(func() error {
			a.level(ctx, s.Subsections(), p)
			a.section(ctx, s, p)
			return nil
		})
	}
	_ = g.Wait()
}

func (a *Aggregator) section(ctx context.Context, s *doctree.Section, path string) {
	all := Collect(s)
	if len(all) == 0 {
		return
	}
	log := a.log.With("section", path)

	if err := a.sem.Acquire(ctx, 1); err != nil {
		log.Warn("aggregation cancelled, using first summary", "error", err)
		fallback(s, all)
		return
	}
	defer a.sem.Release(1)

	hook, long, err := a.rewrite(ctx, strings.Join(all, " "))
	if err != nil {
		log.Warn("rewrite failed, using first summary", "error", err)
		fallback(s, all)
		return
	}
	s.Summary = []string{hook}
	s.LongSummary = long
}

func (a *Aggregator) rewrite(ctx context.Context, text string) (string, []string, error) {
	bounded, err := a.ceiling(ctx, a.rw.BoundedSummarize, text, a.cfg.BoundedWords)
	if err != nil {
		return "", nil, fmt.Errorf("bounded summary: %w", err)
	}
	hook, err := a.ceiling(ctx, a.rw.ShortHook, bounded, a.cfg.HookWords)
	if err != nil {
		return "", nil, fmt.Errorf("short hook: %w", err)
	}
	long, err := a.rw.LongFormRewrite(ctx, bounded)
	if err != nil {
		return "", nil, fmt.Errorf("long form: %w", err)
	}
	long = nonEmpty(long)
	if len(long) == 0 {
		long = []string{bounded}
	}
	return hook, long, nil
}

// ceiling calls stage and enforces a word limit: one retry feeding the
// over-long result back, then truncation.
func (a *Aggregator) ceiling(ctx context.Context, stage func(context.Context, string) (string, error), text string, limit int) (string, error) {
	out, err := stage(ctx, text)
	if err != nil {
		return "", err
	}
	if CountWords(out) <= limit {
		return out, nil
	}
	out, err = stage(ctx, out)
	if err != nil {
		return "", err
	}
	if CountWords(out) <= limit {
		return out, nil
	}
	return Truncate(out, limit), nil
}

func fallback(s *doctree.Section, all []string) {
	s.Summary = []string{all[0]}
	s.LongSummary = []string{all[0]}
}

// Collect returns the section's direct summaries followed by those of every
// descendant in pre-order.
func Collect(s *doctree.Section) []string {
	out := append([]string(nil), s.DirectSummary...)
	for _, sub := range s.Subsections() {
		out = append(out, Collect(sub)...)
	}
	return out
}

// CountWords counts whitespace-separated words.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// Truncate keeps the first n words of s and appends Ellipsis.
func Truncate(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ") + Ellipsis
}

func nonEmpty(paras []string) []string {
	var out []string
	for _, p := range paras {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
