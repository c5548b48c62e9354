// Package stream merges segmented blocks and title classifications into an
// ordered stream of Title and Summary elements.
package stream

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// FallbackSummary is the content of a Summary emitted when summarizing a
// run fails.
const FallbackSummary = "Error generating summary."

// Summarizer summarizes blocks[from..to] (inclusive, absolute indices) into
// one or more Summary elements whose spans partition that range in order.
type Summarizer interface {
	Summarize(ctx context.Context, blocks []doctree.Block, from, to int) ([]doctree.Element, error)
}

// Builder produces element streams.
type Builder struct {
	summarizer  Summarizer
	concurrency int
	log         *slog.Logger
}

func NewBuilder(s Summarizer, concurrency int, log *slog.Logger) *Builder {
	if concurrency <= 0 {
		concurrency = 5
	}
	if log == nil {
		log = slog.Default()
	}
	return &Builder{summarizer: s, concurrency: concurrency, log: log}
}

// Build emits a Title for every classified block and summaries for the
// meaningful runs between them. Out-of-range indices are ignored; a block
// marked both high and moderate is high.
func (b *Builder) Build(ctx context.Context, blocks []doctree.Block, titles doctree.TitleConfidence) []doctree.Element {
	n := len(blocks)
	conf := make(map[int]doctree.Confidence)
	for _, i := range titles.Moderate {
		if i >= 0 && i < n {
			conf[i] = doctree.ConfidenceModerate
		}
	}
	for _, i := range titles.High {
		if i >= 0 && i < n {
			conf[i] = doctree.ConfidenceHigh
		}
	}

	indices := make([]int, 0, len(conf)+2)
	indices = append(indices, -1)
	for i := range conf {
		indices = append(indices, i)
	}
	sort.Ints(indices[1:])
	indices = append(indices, n)

	pairs := len(indices) - 1
	results := make([][]doctree.Element, pairs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for p := range pairs {
		cur, next := indices[p], indices[p+1]
		g.Go(func() error {
			var out []doctree.Element
			if cur >= 0 {
				out = append(out, doctree.TitleElement(blocks[cur].Content, conf[cur], cur))
			}
			from, to := cur+1, next-1
			if hasMeaningful(blocks, from, to) {
				out = append(out, b.summarize(gctx, blocks, from, to)...)
			}
			results[p] = out
			return nil
		})
	}
	_ = g.Wait()

	var elements []doctree.Element
	for _, r := range results {
		elements = append(elements, r...)
	}
	return elements
}

func (b *Builder) summarize(ctx context.Context, blocks []doctree.Block, from, to int) []doctree.Element {
	log := b.log.With("from", from, "to", to)
	summaries, err := b.summarizer.Summarize(ctx, blocks, from, to)
	if err == nil {
		err = checkPartition(summaries, from, to)
	}
	if err != nil {
		log.Warn("summarization failed, using fallback", "error", err)
		return []doctree.Element{doctree.SummaryElement(FallbackSummary, from, to)}
	}
	return summaries
}

func hasMeaningful(blocks []doctree.Block, from, to int) bool {
	for i := from; i <= to; i++ {
		if blocks[i].Meaningful {
			return true
		}
	}
	return false
}
