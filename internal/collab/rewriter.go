package collab

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/docoutline/internal/llm"
)

// LLMRewriter implements the three aggregation stages with the model.
type LLMRewriter struct {
	c            llm.Completer
	HookWords    int
	BoundedWords int
}

func NewLLMRewriter(c llm.Completer, hookWords, boundedWords int) *LLMRewriter {
	return &LLMRewriter{c: c, HookWords: hookWords, BoundedWords: boundedWords}
}

func (r *LLMRewriter) BoundedSummarize(ctx context.Context, text string) (string, error) {
	return r.complete(ctx, fmt.Sprintf(BoundedPrompt, r.BoundedWords), text)
}

func (r *LLMRewriter) ShortHook(ctx context.Context, text string) (string, error) {
	return r.complete(ctx, fmt.Sprintf(HookPrompt, r.HookWords), text)
}

func (r *LLMRewriter) LongFormRewrite(ctx context.Context, text string) ([]string, error) {
	out, err := r.complete(ctx, LongPrompt, text)
	if err != nil {
		return nil, err
	}
	return Paragraphs(out), nil
}

func (r *LLMRewriter) complete(ctx context.Context, instruction, text string) (string, error) {
	reply, err := r.c.Complete(ctx, instruction+"\n\n---\n"+text)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(stripCodeBlock(reply))
	if reply == "" {
		return "", fmt.Errorf("empty rewrite reply")
	}
	return reply, nil
}

var blankLineRe = regexp.MustCompile(`\n\s*\n`)

// Paragraphs splits text on blank lines, dropping empty parts.
func Paragraphs(text string) []string {
	var out []string
	for _, p := range blankLineRe.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var sentenceEndRe = regexp.MustCompile(`[.!?](\s|$)`)

// FirstSentence returns text up to and including its first sentence end.
func FirstSentence(text string) string {
	text = oneLine(text)
	if loc := sentenceEndRe.FindStringIndex(text); loc != nil {
		return strings.TrimSpace(text[:loc[0]+1])
	}
	return text
}

// OfflineRewriter aggregates without a model. Each stage is extractive,
// and the word ceilings are left to the aggregator.
type OfflineRewriter struct {
	Sentences int // sentences kept by the bounded stage
}

func (o OfflineRewriter) BoundedSummarize(ctx context.Context, text string) (string, error) {
	n := o.Sentences
	if n <= 0 {
		n = 3
	}
	text = oneLine(text)
	var kept []string
	for len(kept) < n && text != "" {
		s := FirstSentence(text)
		kept = append(kept, s)
		text = strings.TrimSpace(strings.TrimPrefix(text, s))
	}
	return strings.Join(kept, " "), nil
}

func (OfflineRewriter) ShortHook(ctx context.Context, text string) (string, error) {
	return FirstSentence(text), nil
}

func (OfflineRewriter) LongFormRewrite(ctx context.Context, text string) ([]string, error) {
	return Paragraphs(text), nil
}
