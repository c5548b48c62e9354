package collab

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docoutline/internal/chunker"
	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/llm"
)

// LLMClassifier asks the model which blocks are titles, a token-bounded
// group of numbered lines at a time.
type LLMClassifier struct {
	c           llm.Completer
	count       chunker.Counter
	budget      int
	concurrency int
	log         *slog.Logger
}

func NewLLMClassifier(c llm.Completer, count chunker.Counter, budget, concurrency int, log *slog.Logger) *LLMClassifier {
	if count == nil {
		count = chunker.EstimateTokens
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &LLMClassifier{c: c, count: count, budget: budget, concurrency: concurrency, log: log}
}

type confidenceSet struct {
	Reason string `json:"reason"`
	Lines  []int  `json:"lines"`
}

type classifyResponse struct {
	HighConfidence     confidenceSet `json:"highConfidence"`
	ModerateConfidence confidenceSet `json:"moderateConfidence"`
}

// Classify returns title indices. A failing group contributes nothing; the
// call fails only when every group fails.
func (l *LLMClassifier) Classify(ctx context.Context, blocks []doctree.Block) (doctree.TitleConfidence, error) {
	groups := chunker.GroupBlocks(blocks, l.budget, l.count, classifyLine, func(b doctree.Block) bool { return b.Meaningful })
	if len(groups) == 0 {
		return doctree.TitleConfidence{}, nil
	}

	results := make([]doctree.TitleConfidence, len(groups))
	var (
		mu       sync.Mutex
		failed   int
		firstErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, grp := range groups {
		g.Go(func() error {
			tc, err := l.classifyGroup(gctx, blocks, grp.Indices)
			if err != nil {
				l.log.Warn("title classification failed for group", "group", i, "first_block", grp.Indices[0], "error", err)
				mu.Lock()
				failed++
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return nil
			}
			results[i] = tc
			return nil
		})
	}
	_ = g.Wait()

	if failed == len(groups) {
		return doctree.TitleConfidence{}, fmt.Errorf("all %d classification groups failed: %w", len(groups), firstErr)
	}

	var out doctree.TitleConfidence
	for _, r := range results {
		out.High = append(out.High, r.High...)
		out.Moderate = append(out.Moderate, r.Moderate...)
	}
	return out, nil
}

func (l *LLMClassifier) classifyGroup(ctx context.Context, blocks []doctree.Block, indices []int) (doctree.TitleConfidence, error) {
	reply, err := l.c.Complete(ctx, BuildClassifyPrompt(blocks, indices))
	if err != nil {
		return doctree.TitleConfidence{}, err
	}
	resp, err := ExtractJSON[classifyResponse](reply)
	if err != nil {
		return doctree.TitleConfidence{}, err
	}
	allowed := make(map[int]bool, len(indices))
	for _, i := range indices {
		allowed[i] = true
	}
	return doctree.TitleConfidence{
		High:     only(resp.HighConfidence.Lines, allowed),
		Moderate: only(resp.ModerateConfidence.Lines, allowed),
	}, nil
}

func only(indices []int, allowed map[int]bool) []int {
	var out []int
	for _, i := range indices {
		if allowed[i] {
			out = append(out, i)
		}
	}
	return out
}

// HeadingClassifier finds titles without a model: markdown headings are
// high confidence, short lines that are entirely bold are moderate.
type HeadingClassifier struct {
	MaxWords int // longest bold line still treated as a title
}

func (h HeadingClassifier) Classify(ctx context.Context, blocks []doctree.Block) (doctree.TitleConfidence, error) {
	maxWords := h.MaxWords
	if maxWords <= 0 {
		maxWords = 12
	}
	md := goldmark.New()

	var out doctree.TitleConfidence
	for i, b := range blocks {
		if !b.Meaningful || strings.Contains(b.Content, "\n") {
			continue
		}
		src := []byte(b.Content)
		doc := md.Parser().Parse(text.NewReader(src))
		first := doc.FirstChild()
		if first == nil {
			continue
		}
		switch n := first.(type) {
		case *ast.Heading:
			out.High = append(out.High, i)
		case *ast.Paragraph:
			if n.ChildCount() != 1 {
				continue
			}
			if em, ok := n.FirstChild().(*ast.Emphasis); ok && em.Level == 2 && len(strings.Fields(b.Content)) <= maxWords {
				out.Moderate = append(out.Moderate, i)
			}
		}
	}
	return out, nil
}
