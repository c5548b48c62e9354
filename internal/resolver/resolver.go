// Package resolver places numbered titles into a hierarchy by feeding
// token-bounded windows of the element stream to an inference service.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/docoutline/internal/asciitree"
	"github.com/dgallion1/docoutline/internal/chunker"
	"github.com/dgallion1/docoutline/internal/doctree"
)

// ErrStuck is returned when not even one title fits the remaining budget.
var ErrStuck = errors.New("resolver stuck: token budget too small for the next title")

// State is the resolver session state.
type State int

const (
	StateInit State = iota
	StateIterating
	StateDone
	StateStuck
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateIterating:
		return "iterating"
	case StateDone:
		return "done"
	case StateStuck:
		return "stuck"
	}
	return "unknown"
}

// Request is one inference call.
type Request struct {
	PriorTree   string
	Context     []doctree.Element // open-neighbor titles and their first summary
	Elements    []doctree.Element // packed titles with their trailing summaries
	FirstWindow bool
}

// Inferrer returns an updated tree text covering every title placed so far
// plus the titles in the request.
type Inferrer interface {
	InferTree(ctx context.Context, req Request) (string, error)
}

// Structurer converts final tree text into a hierarchy.
type Structurer interface {
	ParseTree(ctx context.Context, tree string) ([]doctree.Hierarchy, error)
}

// Window records what one iteration sent.
type Window struct {
	Context []doctree.Element
	Titles  []int
	Tokens  int
	Failed  bool
}

// Session is the explicit state carried between iterations.
type Session struct {
	State     State
	Tree      string
	Iteration int
	Windows   []Window
	Warnings  []string

	elements []doctree.Element
	titles   []int // element positions of titles, ascending
	next     int   // first unprocessed entry of titles
}

// Remaining returns the number of titles not yet placed.
func (s *Session) Remaining() int { return len(s.titles) - s.next }

// Resolver drives sessions.
type Resolver struct {
	inferrer   Inferrer
	structurer Structurer
	count      chunker.Counter
	budget     int
	log        *slog.Logger
}

func New(inf Inferrer, st Structurer, count chunker.Counter, budget int, log *slog.Logger) *Resolver {
	if count == nil {
		count = chunker.EstimateTokens
	}
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{inferrer: inf, structurer: st, count: count, budget: budget, log: log}
}

// Budget returns the window budget for a model context window, the share
// of it granted to the resolver and the instruction template sent with
// every call.
func Budget(contextWindow int, fraction float64, template string, count chunker.Counter) int {
	if count == nil {
		count = chunker.EstimateTokens
	}
	return chunker.Budget(contextWindow, fraction, count(template))
}

// Start creates a session over a numbered element stream.
func (r *Resolver) Start(elements []doctree.Element) *Session {
	s := &Session{State: StateInit, elements: elements}
	for i, e := range elements {
		if e.IsTitle() {
			s.titles = append(s.titles, i)
		}
	}
	return s
}

// Step runs one iteration. It returns ErrStuck when the session cannot make
// progress and is a no-op on finished sessions.
func (r *Resolver) Step(ctx context.Context, s *Session) error {
	switch s.State {
	case StateDone:
		return nil
	case StateStuck:
		return ErrStuck
	}
	if s.Remaining() == 0 {
		s.State = StateDone
		return nil
	}
	s.State = StateIterating

	win, packed := r.pack(s, true)
	if len(win.Titles) == 0 && s.Tree != "" {
		r.log.Debug("context crowds out next title, retrying without it", "iteration", s.Iteration)
		win, packed = r.pack(s, false)
	}
	if len(win.Titles) == 0 {
		s.State = StateStuck
		r.log.Error("no title fits window", "iteration", s.Iteration, "budget", r.budget, "context_tokens", win.Tokens)
		return ErrStuck
	}

	log := r.log.With("iteration", s.Iteration, "titles", len(win.Titles))
	tree, err := r.inferrer.InferTree(ctx, Request{
		PriorTree:   s.Tree,
		Context:     win.Context,
		Elements:    packed,
		FirstWindow: s.Iteration == 0,
	})
	if err != nil {
		log.Warn("hierarchy inference failed, appending window titles at top level", "error", err)
		win.Failed = true
		s.Warnings = append(s.Warnings, fmt.Sprintf("window %d: inference failed: %s", s.Iteration, err))
		tree = appendTopLevel(s.Tree, win.Titles)
	}

	s.Tree = tree
	s.Windows = append(s.Windows, win)
	s.next += len(win.Titles)
	s.Iteration++
	if s.Remaining() == 0 {
		s.State = StateDone
	}
	log.Debug("window processed", "remaining", s.Remaining())
	return nil
}

// pack builds the next window: open-neighbor context, then unprocessed
// titles in ascending order with their trailing summaries, until the
// budget is exhausted. A title is never split. Without context neither the
// neighbors nor the prior tree text are charged, so a budget that fits the
// next title alone always makes progress.
func (r *Resolver) pack(s *Session, withContext bool) (Window, []doctree.Element) {
	var win Window
	remaining := r.budget
	if withContext {
		win.Context = r.contextElements(s)
		for _, e := range win.Context {
			win.Tokens += r.count(e.Label())
		}
		remaining -= win.Tokens + r.count(s.Tree)
	}

	var packed []doctree.Element
	used := 0
	for k := s.next; k < len(s.titles); k++ {
		pos := s.titles[k]
		title := s.elements[pos]
		cost := r.count(title.Label())
		if used+cost > remaining {
			break
		}
		used += cost
		packed = append(packed, title)
		win.Titles = append(win.Titles, title.Number)

		for j := pos + 1; j < len(s.elements) && !s.elements[j].IsTitle(); j++ {
			c := r.count(s.elements[j].Label())
			if used+c > remaining {
				break
			}
			used += c
			packed = append(packed, s.elements[j])
		}
	}
	win.Tokens += used
	return win, packed
}

// contextElements returns each open-neighbor title followed by the summary
// immediately after it, if any.
func (r *Resolver) contextElements(s *Session) []doctree.Element {
	if s.Tree == "" {
		return nil
	}
	byNumber := make(map[int]int, len(s.titles))
	for _, pos := range s.titles {
		byNumber[s.elements[pos].Number] = pos
	}

	var out []doctree.Element
	for _, id := range asciitree.Spine(asciitree.Parse(s.Tree)) {
		pos, ok := byNumber[id]
		if !ok {
			continue
		}
		out = append(out, s.elements[pos])
		if pos+1 < len(s.elements) && !s.elements[pos+1].IsTitle() {
			out = append(out, s.elements[pos+1])
		}
	}
	return out
}

func appendTopLevel(tree string, ids []int) string {
	h := asciitree.Parse(tree)
	for _, id := range ids {
		h = append(h, doctree.Hierarchy{Content: []int{id}})
	}
	return asciitree.Render(h)
}

// Result is the outcome of a full resolution.
type Result struct {
	Hierarchy  []doctree.Hierarchy
	Tree       string
	State      State
	Iterations int
	Warnings   []string
}

// Resolve runs a session to completion and structures the final tree. On
// ErrStuck the partial tree is returned without a hierarchy. A structuring
// failure yields an empty hierarchy.
func (r *Resolver) Resolve(ctx context.Context, elements []doctree.Element) (Result, error) {
	s := r.Start(elements)
	for s.State != StateDone {
		if err := ctx.Err(); err != nil {
			return r.result(s, nil), err
		}
		if err := r.Step(ctx, s); err != nil {
			return r.result(s, nil), err
		}
	}
	if len(s.titles) == 0 {
		return r.result(s, nil), nil
	}

	h, err := r.structurer.ParseTree(ctx, s.Tree)
	if err != nil {
		r.log.Warn("structuring failed, hierarchy is empty", "error", err)
		s.Warnings = append(s.Warnings, fmt.Sprintf("structuring failed: %s", err))
		h = nil
	}
	return r.result(s, h), nil
}

func (r *Resolver) result(s *Session, h []doctree.Hierarchy) Result {
	return Result{
		Hierarchy:  h,
		Tree:       s.Tree,
		State:      s.State,
		Iterations: s.Iteration,
		Warnings:   s.Warnings,
	}
}
