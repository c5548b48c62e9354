package collab

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/docoutline/internal/chunker"
	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/llm"
)

// LLMSummarizer writes paragraph summaries for a run of blocks.
type LLMSummarizer struct {
	c llm.Completer
}

func NewLLMSummarizer(c llm.Completer) *LLMSummarizer {
	return &LLMSummarizer{c: c}
}

type summarizeResponse struct {
	Summaries []summaryEntry `json:"summaries"`
}

func (s *LLMSummarizer) Summarize(ctx context.Context, blocks []doctree.Block, from, to int) ([]doctree.Element, error) {
	reply, err := s.c.Complete(ctx, BuildBlocksPrompt(SummarizePrompt, blocks, indexRange(from, to)))
	if err != nil {
		return nil, err
	}
	resp, err := ExtractJSON[summarizeResponse](reply)
	if err != nil {
		return nil, err
	}
	return normalizeSpans(resp.Summaries, from, to)
}

// Compressor shortens each meaningful block above Threshold words to about
// ten words, BatchSize blocks per call, and emits one Summary per block.
type Compressor struct {
	c         llm.Completer
	Threshold int
	BatchSize int
	log       *slog.Logger
}

func NewCompressor(c llm.Completer, log *slog.Logger) *Compressor {
	if log == nil {
		log = slog.Default()
	}
	return &Compressor{c: c, Threshold: 10, BatchSize: 5, log: log}
}

type compressResponse struct {
	Blocks []struct {
		Index          int    `json:"index"`
		CompressedText string `json:"compressedText"`
	} `json:"blocks"`
}

func (c *Compressor) Summarize(ctx context.Context, blocks []doctree.Block, from, to int) ([]doctree.Element, error) {
	idx, spans := spansByMeaningful(blocks, from, to)
	text := make(map[int]string, len(idx))

	var long []int
	for _, i := range idx {
		if len(strings.Fields(blocks[i].Content)) > c.Threshold {
			long = append(long, i)
		} else {
			text[i] = oneLine(blocks[i].Content)
		}
	}

	for _, batch := range chunker.Batch(long, c.BatchSize) {
		reply, err := c.c.Complete(ctx, BuildBlocksPrompt(CompressPrompt, blocks, batch))
		if err != nil {
			return nil, err
		}
		resp, err := ExtractJSON[compressResponse](reply)
		if err != nil {
			return nil, err
		}
		for _, b := range resp.Blocks {
			if t := strings.TrimSpace(b.CompressedText); t != "" {
				text[b.Index] = t
			}
		}
		for _, i := range batch {
			if _, ok := text[i]; !ok {
				return nil, fmt.Errorf("block %d missing from compression reply", i)
			}
		}
		c.log.Debug("compressed blocks", "first", batch[0], "count", len(batch))
	}

	out := make([]doctree.Element, len(idx))
	for j, i := range idx {
		out[j] = doctree.SummaryElement(text[i], spans[j].From, spans[j].To)
	}
	return out, nil
}

func indexRange(from, to int) []int {
	out := make([]int, 0, max(to-from+1, 0))
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

// ExtractiveSummarizer summarizes a run without a model: one Summary
// covering the whole range, built from the first sentence of each of the
// leading meaningful blocks.
type ExtractiveSummarizer struct {
	Sentences int
}

func (e ExtractiveSummarizer) Summarize(ctx context.Context, blocks []doctree.Block, from, to int) ([]doctree.Element, error) {
	n := e.Sentences
	if n <= 0 {
		n = 2
	}
	var parts []string
	for i := from; i <= to && len(parts) < n; i++ {
		if blocks[i].Meaningful {
			parts = append(parts, FirstSentence(blocks[i].Content))
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no meaningful blocks in %d..%d", from, to)
	}
	return []doctree.Element{doctree.SummaryElement(strings.Join(parts, " "), from, to)}, nil
}
