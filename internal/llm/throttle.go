package llm

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ThrottleConfig bounds traffic to a Completer.
type ThrottleConfig struct {
	RequestsPerSecond float64 // 0 disables rate limiting
	MaxConcurrent     int
	MaxRetries        int
}

// Throttled wraps a Completer with a rate limiter, a concurrency cap,
// retries with backoff for transient errors and latency recording.
type Throttled struct {
	next    Completer
	limiter *rate.Limiter
	sem     *semaphore.Weighted
	retries int
	stats   *LLMStats
	log     *slog.Logger

	backoff func(attempt int) time.Duration
}

func NewThrottled(next Completer, cfg ThrottleConfig, stats *LLMStats, log *slog.Logger) *Throttled {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = MaxRetries
	}
	if stats == nil {
		stats = NewLLMStats(time.Hour)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(limit, 1),
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		retries: cfg.MaxRetries,
		stats:   stats,
		log:     log,
		backoff: Backoff,
	}
}

func (t *Throttled) Model() string { return t.next.Model() }

// Stats returns the latency recorder.
func (t *Throttled) Stats() *LLMStats { return t.stats }

func (t *Throttled) Complete(ctx context.Context, prompt string) (string, error) {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer t.sem.Release(1)

	var lastErr error
	for attempt := range t.retries {
		if err := t.limiter.Wait(ctx); err != nil {
			return "", err
		}
		start := time.Now()
		out, err := t.next.Complete(ctx, prompt)
		t.stats.Record(time.Since(start), err)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == t.retries-1 {
			break
		}
		t.log.Warn("retryable llm error", "model", t.next.Model(), "attempt", attempt, "error", err)
		select {
		case <-time.After(t.backoff(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}
