package collab

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/docoutline/internal/llm"
)

var codeBlockRe = regexp.MustCompile("(?s)```(?:json|text)?\\s*(.*?)\\s*```")

// stripCodeBlock returns the body of the first fenced block in s, or s.
func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// ExtractJSON decodes a JSON value from a model reply, tolerating code
// fences, leading prose and trailing commas.
func ExtractJSON[T any](reply string) (T, error) {
	var out T
	content := stripCodeBlock(reply)
	if i := strings.IndexAny(content, "{["); i > 0 {
		content = content[i:]
	}
	if err := json.Unmarshal([]byte(content), &out); err == nil {
		return out, nil
	}
	content = strings.ReplaceAll(content, ",]", "]")
	content = strings.ReplaceAll(content, ",}", "}")
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return out, fmt.Errorf("parse json: %w (raw: %s)", err, llm.Truncate(content, 200))
	}
	return out, nil
}
