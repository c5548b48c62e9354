package collab

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/docoutline/internal/asciitree"
	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/llm"
	"github.com/dgallion1/docoutline/internal/resolver"
)

// LLMInferrer extends the title tree one window at a time.
type LLMInferrer struct {
	c   llm.Completer
	log *slog.Logger
}

func NewLLMInferrer(c llm.Completer, log *slog.Logger) *LLMInferrer {
	if log == nil {
		log = slog.Default()
	}
	return &LLMInferrer{c: c, log: log}
}

// InferTree returns the model's tree in canonical form. Titles the reply
// dropped, from the prior tree or the window, are appended at top level.
func (l *LLMInferrer) InferTree(ctx context.Context, req resolver.Request) (string, error) {
	prompt := BuildHierarchyPrompt(req.PriorTree, req.Context, req.Elements, req.FirstWindow)
	reply, err := l.c.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	h := asciitree.Parse(stripCodeBlock(reply))
	if len(h) == 0 {
		return "", fmt.Errorf("reply contains no title tree: %s", llm.Truncate(reply, 200))
	}

	want := doctree.IDs(asciitree.Parse(req.PriorTree))
	for _, e := range req.Elements {
		if e.IsTitle() {
			want = append(want, e.Number)
		}
	}
	placed := make(map[int]bool)
	for _, id := range doctree.IDs(h) {
		placed[id] = true
	}
	var missing []int
	for _, id := range want {
		if !placed[id] {
			missing = append(missing, id)
			h = append(h, doctree.Hierarchy{Content: []int{id}})
		}
	}
	if len(missing) > 0 {
		l.log.Warn("inferred tree dropped titles, appended at top level", "missing", missing)
	}
	return asciitree.Render(h), nil
}

// LLMStructurer converts tree text to a hierarchy with the model.
type LLMStructurer struct {
	c llm.Completer
}

func NewLLMStructurer(c llm.Completer) *LLMStructurer {
	return &LLMStructurer{c: c}
}

func (l *LLMStructurer) ParseTree(ctx context.Context, tree string) ([]doctree.Hierarchy, error) {
	if strings.TrimSpace(tree) == "" {
		return nil, nil
	}
	reply, err := l.c.Complete(ctx, StructurePrompt+"\n\n---\n"+tree)
	if err != nil {
		return nil, err
	}
	h, err := ExtractJSON[[]doctree.Hierarchy](reply)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// LocalStructurer parses tree text without a model.
type LocalStructurer struct{}

func (LocalStructurer) ParseTree(ctx context.Context, tree string) ([]doctree.Hierarchy, error) {
	return asciitree.Parse(tree), nil
}

// LevelInferrer nests titles by their markdown heading level. Titles
// without a heading marker nest under the most recent title.
type LevelInferrer struct{}

type levelNode struct {
	content  []int
	level    int
	children []*levelNode
}

func (LevelInferrer) InferTree(ctx context.Context, req resolver.Request) (string, error) {
	levels := make(map[int]int)
	for _, e := range req.Context {
		if e.IsTitle() {
			levels[e.Number] = HeadingLevel(e.Content)
		}
	}

	roots := toLevelNodes(asciitree.Parse(req.PriorTree))

	// Reopen the rightmost path of the prior tree.
	var stack []*levelNode
	for cur := roots; len(cur) > 0; {
		last := cur[len(cur)-1]
		last.level = levels[last.content[0]]
		if last.level == 0 {
			last.level = 1
			if len(stack) > 0 {
				last.level = stack[len(stack)-1].level + 1
			}
		}
		stack = append(stack, last)
		cur = last.children
	}

	for _, e := range req.Elements {
		if !e.IsTitle() {
			continue
		}
		n := &levelNode{content: []int{e.Number}, level: HeadingLevel(e.Content)}
		if n.level == 0 {
			n.level = 1
			if len(stack) > 0 {
				n.level = stack[len(stack)-1].level + 1
			}
		}
		for len(stack) > 0 && stack[len(stack)-1].level >= n.level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, n)
		} else {
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, n)
		}
		stack = append(stack, n)
	}
	return asciitree.Render(fromLevelNodes(roots)), nil
}

func toLevelNodes(h []doctree.Hierarchy) []*levelNode {
	out := make([]*levelNode, len(h))
	for i, n := range h {
		out[i] = &levelNode{content: n.Content, children: toLevelNodes(n.Children)}
	}
	return out
}

func fromLevelNodes(ns []*levelNode) []doctree.Hierarchy {
	if len(ns) == 0 {
		return nil
	}
	out := make([]doctree.Hierarchy, len(ns))
	for i, n := range ns {
		out[i] = doctree.Hierarchy{Content: n.content, Children: fromLevelNodes(n.children)}
	}
	return out
}

// HeadingLevel returns the ATX heading level of a line, or 0.
func HeadingLevel(line string) int {
	t := strings.TrimSpace(line)
	n := 0
	for n < len(t) && n < 6 && t[n] == '#' {
		n++
	}
	if n == 0 || n >= len(t) || t[n] != ' ' {
		return 0
	}
	return n
}
