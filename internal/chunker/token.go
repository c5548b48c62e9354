package chunker

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter returns the token cost of a piece of text.
type Counter func(text string) int

// EstimateTokens gives a rough token count from the word count.
// It is the fallback when no tokenizer encoding is available.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	// Roughly 0.75 words per token for English text.
	tokens := int(float64(words) * 1.33)
	if tokens < 1 && len(text) > 0 {
		tokens = 1
	}
	return tokens
}

var (
	encMu     sync.Mutex
	encodings = map[string]*tiktoken.Tiktoken{}
)

// NewTiktokenCounter returns a BPE counter for the named encoding
// (e.g. "cl100k_base"). The encoding is loaded once per process.
func NewTiktokenCounter(encoding string) (Counter, error) {
	encMu.Lock()
	defer encMu.Unlock()

	enc, ok := encodings[encoding]
	if !ok {
		var err error
		enc, err = tiktoken.GetEncoding(encoding)
		if err != nil {
			return nil, err
		}
		encodings[encoding] = enc
	}
	return func(text string) int {
		if text == "" {
			return 0
		}
		return len(enc.Encode(text, nil, nil))
	}, nil
}

// CounterFor returns a tiktoken counter for the encoding, or EstimateTokens
// when the encoding cannot be loaded. The returned error is informational.
func CounterFor(encoding string) (Counter, error) {
	if encoding == "" || encoding == "estimate" {
		return EstimateTokens, nil
	}
	c, err := NewTiktokenCounter(encoding)
	if err != nil {
		return EstimateTokens, err
	}
	return c, nil
}
