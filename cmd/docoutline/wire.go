package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dgallion1/docoutline/internal/aggregate"
	"github.com/dgallion1/docoutline/internal/chunker"
	"github.com/dgallion1/docoutline/internal/collab"
	"github.com/dgallion1/docoutline/internal/config"
	"github.com/dgallion1/docoutline/internal/llm"
	"github.com/dgallion1/docoutline/internal/pipeline"
	"github.com/dgallion1/docoutline/internal/resolver"
	"github.com/dgallion1/docoutline/internal/segment"
	"github.com/dgallion1/docoutline/internal/stream"
)

func newLogger(c config.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// newCompleter returns the throttled transport for the configured
// provider, or nil when running offline.
func newCompleter(c config.Config, stats *llm.LLMStats, log *slog.Logger) (llm.Completer, func(), error) {
	var (
		next    llm.Completer
		closeFn = func() {}
	)
	switch c.LLM.Provider {
	case "offline":
		return nil, closeFn, nil
	case "anthropic":
		opts := []llm.ClaudeOption{llm.WithTemperature(c.LLM.Temperature), llm.WithTimeout(c.LLM.Timeout)}
		if c.LLM.BaseURL != "" {
			opts = append(opts, llm.WithBaseURL(c.LLM.BaseURL))
		}
		claude := llm.NewClaudeClient(c.LLM.APIKey, c.LLM.Model, opts...)
		next, closeFn = claude, claude.Close
	case "openai":
		oc, err := llm.NewOpenAIClient(c.LLM.APIKey, c.LLM.Model, c.LLM.BaseURL, c.LLM.Temperature)
		if err != nil {
			return nil, closeFn, err
		}
		next = oc
	default:
		return nil, closeFn, fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	log.Info("using model", "provider", c.LLM.Provider, "model", next.Model())
	return llm.NewThrottled(next, llm.ThrottleConfig{
		RequestsPerSecond: c.LLM.RequestsPerSecond,
		MaxConcurrent:     c.LLM.MaxConcurrent,
		MaxRetries:        c.LLM.MaxRetries,
	}, stats, log), closeFn, nil
}

// newEngine wires every stage. A nil completer selects the local
// implementation of each collaborator.
func newEngine(c config.Config, comp llm.Completer, log *slog.Logger) *pipeline.Engine {
	count, err := chunker.CounterFor(c.Tokens.Encoding)
	if err != nil {
		log.Warn("token encoding unavailable, estimating", "encoding", c.Tokens.Encoding, "error", err)
	}

	var classifier pipeline.Classifier = collab.HeadingClassifier{}
	if comp != nil && c.Classifier.Mode == "llm" {
		budget := chunker.Budget(c.Tokens.ContextWindow, c.Classifier.BudgetFraction, count(collab.ClassifyPrompt))
		classifier = collab.NewLLMClassifier(comp, count, budget, c.LLM.MaxConcurrent, log)
	}

	var summarizer stream.Summarizer = collab.ExtractiveSummarizer{}
	switch {
	case comp == nil:
	case c.Summarize.Compress:
		summarizer = collab.NewCompressor(comp, log)
	default:
		summarizer = collab.NewLLMSummarizer(comp)
	}

	var (
		inferrer   resolver.Inferrer   = collab.LevelInferrer{}
		structurer resolver.Structurer = collab.LocalStructurer{}
		rewriter   aggregate.Rewriter  = collab.OfflineRewriter{}
	)
	if comp != nil {
		inferrer = collab.NewLLMInferrer(comp, log)
		rewriter = collab.NewLLMRewriter(comp, c.Aggregate.HookWords, c.Aggregate.BoundedWords)
		if c.Resolver.Structurer == "llm" {
			structurer = collab.NewLLMStructurer(comp)
		}
	}
	budget := resolver.Budget(c.Tokens.ContextWindow, c.Resolver.BudgetFraction, collab.HierarchyPrompt, count)

	return pipeline.NewEngine(pipeline.Components{
		Segment:    segment.Config{ListIndent: c.Segment.ListIndent},
		Classifier: classifier,
		Stream:     stream.NewBuilder(summarizer, c.Summarize.Concurrency, log),
		Resolver:   resolver.New(inferrer, structurer, count, budget, log),
		Aggregator: aggregate.New(rewriter, aggregate.Config{
			HookWords:    c.Aggregate.HookWords,
			BoundedWords: c.Aggregate.BoundedWords,
			Concurrency:  c.Aggregate.Concurrency,
		}, log),
	}, log)
}
