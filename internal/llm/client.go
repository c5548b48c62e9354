// Package llm provides the text-generation transports used by the
// collaborators: an Anthropic Messages client, an OpenAI-compatible client
// and a throttling wrapper shared by both.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
	"unicode/utf8"
)

// Completer sends a single prompt and returns the model's text reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// RetryableError marks a transient transport failure: rate limiting,
// overload or a 5xx from the provider.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, Truncate(e.Message, 200))
}

// IsRetryable reports whether err wraps a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// MaxRetries is the default number of attempts per call.
const MaxRetries = 3

const (
	baseDelay = time.Second
	maxDelay  = 30 * time.Second
)

// Backoff is the wait before retrying after a failed attempt (0-indexed):
// exponential from one second, capped, plus up to half again of jitter.
func Backoff(attempt int) time.Duration {
	d := maxDelay
	if attempt < 5 {
		d = min(baseDelay<<attempt, maxDelay)
	}
	return d + rand.N(d/2)
}

// Truncate shortens s to at most n bytes for log and error messages,
// backing off so a multi-byte rune is never split.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
