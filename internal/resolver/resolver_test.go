package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/dgallion1/docoutline/internal/asciitree"
	"github.com/dgallion1/docoutline/internal/chunker"
	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/stream"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

// xCount charges one token per 'x' so tree text and labels cost nothing
// beyond the content they carry.
func xCount(s string) int { return strings.Count(s, "x") }

// flatInferrer appends every requested title to the prior tree at top level.
type flatInferrer struct {
	requests []Request
	fail     map[int]bool // keyed by call index
}

func (f *flatInferrer) InferTree(ctx context.Context, req Request) (string, error) {
	call := len(f.requests)
	f.requests = append(f.requests, req)
	if f.fail[call] {
		return "", errors.New("service unavailable")
	}
	h := asciitree.Parse(req.PriorTree)
	for _, e := range req.Elements {
		if e.IsTitle() {
			h = append(h, doctree.Hierarchy{Content: []int{e.Number}})
		}
	}
	return asciitree.Render(h), nil
}

type localStructurer struct{ err error }

func (l localStructurer) ParseTree(ctx context.Context, tree string) ([]doctree.Hierarchy, error) {
	if l.err != nil {
		return nil, l.err
	}
	return asciitree.Parse(tree), nil
}

func titles(contents ...string) []doctree.Element {
	var els []doctree.Element
	for i, c := range contents {
		els = append(els, doctree.TitleElement(c, doctree.ConfidenceHigh, i))
	}
	return stream.Number(els)
}

func TestResolve_ThreeWindowsCarryOpenNeighbors(t *testing.T) {
	// Costs 5,1,2,1,4 against a budget of 7 pack as [T1 T2] [T3 T4] [T5].
	elements := titles("xxxxx", "x", "xx", "x", "xxxx")
	inf := &flatInferrer{}
	r := New(inf, localStructurer{}, xCount, 7, testLog)

	res, err := r.Resolve(context.Background(), elements)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State != StateDone {
		t.Fatalf("expected done, got %s", res.State)
	}
	if res.Iterations != 3 || len(inf.requests) != 3 {
		t.Fatalf("expected 3 iterations, got %d (%d calls)", res.Iterations, len(inf.requests))
	}

	var packed [][]int
	for _, req := range inf.requests {
		var ids []int
		for _, e := range req.Elements {
			ids = append(ids, e.Number)
		}
		packed = append(packed, ids)
	}
	if fmt.Sprint(packed) != "[[1 2] [3 4] [5]]" {
		t.Errorf("unexpected packing: %v", packed)
	}

	if !inf.requests[0].FirstWindow || inf.requests[1].FirstWindow {
		t.Errorf("only the first request should be flagged first window")
	}
	ctx2 := inf.requests[1].Context
	if len(ctx2) != 1 || ctx2[0].Number != 2 {
		t.Errorf("iteration 2 should carry open neighbor T2, got %+v", ctx2)
	}
	if inf.requests[1].PriorTree != "T1\nT2" {
		t.Errorf("iteration 2 prior tree: got %q", inf.requests[1].PriorTree)
	}

	want := []int{1, 2, 3, 4, 5}
	if got := doctree.IDs(res.Hierarchy); !reflect.DeepEqual(got, want) {
		t.Errorf("hierarchy ids = %v, want %v", got, want)
	}
}

func TestStep_SingleIteration(t *testing.T) {
	elements := titles("x", "x", "x")
	inf := &flatInferrer{}
	r := New(inf, localStructurer{}, xCount, 2, testLog)

	s := r.Start(elements)
	if s.State != StateInit {
		t.Fatalf("expected init, got %s", s.State)
	}
	if err := r.Step(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State != StateIterating || s.Remaining() != 1 || s.Tree != "T1\nT2" {
		t.Errorf("after one step: state=%s remaining=%d tree=%q", s.State, s.Remaining(), s.Tree)
	}
	if got := s.Windows[0].Titles; fmt.Sprint(got) != "[1 2]" {
		t.Errorf("window titles: %v", got)
	}
}

func TestStep_TrailingSummariesAddedOneAtATime(t *testing.T) {
	elements := stream.Number([]doctree.Element{
		doctree.TitleElement("x", doctree.ConfidenceHigh, 0),
		doctree.SummaryElement("xx", 1, 1),
		doctree.SummaryElement("xxx", 2, 2),
		doctree.TitleElement("x", doctree.ConfidenceHigh, 3),
	})
	inf := &flatInferrer{}
	r := New(inf, localStructurer{}, xCount, 4, testLog)

	s := r.Start(elements)
	if err := r.Step(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []string
	for _, e := range inf.requests[0].Elements {
		got = append(got, e.Kind.String()+":"+e.Content)
	}
	want := "[title:x summary:xx title:x]"
	if fmt.Sprint(got) != want {
		t.Errorf("packed %v, want %s", got, want)
	}
	if s.State != StateDone {
		t.Errorf("expected done, got %s", s.State)
	}
}

func TestResolve_StuckWhenNothingFits(t *testing.T) {
	elements := titles("xxx", "x")
	inf := &flatInferrer{}
	r := New(inf, localStructurer{}, xCount, 2, testLog)

	res, err := r.Resolve(context.Background(), elements)
	if !errors.Is(err, ErrStuck) {
		t.Fatalf("expected ErrStuck, got %v", err)
	}
	if res.State != StateStuck {
		t.Errorf("expected stuck, got %s", res.State)
	}
	if len(inf.requests) != 0 {
		t.Errorf("expected no inference calls, got %d", len(inf.requests))
	}

	s := r.Start(elements)
	_ = r.Step(context.Background(), s)
	if err := r.Step(context.Background(), s); !errors.Is(err, ErrStuck) {
		t.Errorf("stuck session should stay stuck, got %v", err)
	}
}

func TestResolve_TightBudgetDropsContextAndTree(t *testing.T) {
	names := []string{"Intro", "Setup", "Usage", "Tuning", "Limits", "Support"}
	var els []doctree.Element
	for i, n := range names {
		els = append(els, doctree.TitleElement(n, doctree.ConfidenceHigh, i))
	}
	elements := stream.Number(els)
	budget := chunker.EstimateTokens("T1: Intro")

	inf := &flatInferrer{}
	res, err := New(inf, localStructurer{}, chunker.EstimateTokens, budget, testLog).Resolve(context.Background(), elements)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State != StateDone || res.Iterations != len(names) {
		t.Fatalf("state=%s iterations=%d, want done after %d", res.State, res.Iterations, len(names))
	}
	for i, req := range inf.requests[1:] {
		if len(req.Context) != 0 {
			t.Errorf("request %d should carry no context, got %d elements", i+1, len(req.Context))
		}
		if req.PriorTree == "" {
			t.Errorf("request %d should still send the prior tree", i+1)
		}
	}
	if got := doctree.IDs(res.Hierarchy); fmt.Sprint(got) != "[1 2 3 4 5 6]" {
		t.Errorf("hierarchy ids = %v", got)
	}
}

func TestResolve_StuckWithRealCounter(t *testing.T) {
	elements := stream.Number([]doctree.Element{
		doctree.TitleElement("Intro", doctree.ConfidenceHigh, 0),
		doctree.TitleElement("Getting started with the installer", doctree.ConfidenceHigh, 1),
	})
	budget := chunker.EstimateTokens("T1: Intro")

	inf := &flatInferrer{}
	res, err := New(inf, localStructurer{}, chunker.EstimateTokens, budget, testLog).Resolve(context.Background(), elements)
	if !errors.Is(err, ErrStuck) {
		t.Fatalf("expected ErrStuck, got %v", err)
	}
	if res.Iterations != 1 || res.Tree != "T1" {
		t.Errorf("iterations=%d tree=%q, want 1 and T1", res.Iterations, res.Tree)
	}
}

func TestResolve_TerminatesWithinTitleCount(t *testing.T) {
	for k := 1; k <= 12; k++ {
		contents := make([]string, k)
		for i := range contents {
			contents[i] = strings.Repeat("x", 1+i%3)
		}
		inf := &flatInferrer{}
		// Budget fits the largest title with no context.
		r := New(inf, localStructurer{}, xCount, 3, testLog)
		res, err := r.Resolve(context.Background(), titles(contents...))
		if err != nil {
			t.Fatalf("k=%d: unexpected error: %v", k, err)
		}
		if res.Iterations > k {
			t.Errorf("k=%d: %d iterations exceeds title count", k, res.Iterations)
		}
		if got := len(doctree.IDs(res.Hierarchy)); got != k {
			t.Errorf("k=%d: hierarchy has %d ids", k, got)
		}
	}
}

func TestResolve_FailedWindowKeepsTitles(t *testing.T) {
	elements := titles("x", "x", "x", "x")
	inf := &flatInferrer{fail: map[int]bool{0: true}}
	r := New(inf, localStructurer{}, xCount, 2, testLog)

	res, err := r.Resolve(context.Background(), elements)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("expected 1 warning, got %v", res.Warnings)
	}
	if got := doctree.IDs(res.Hierarchy); fmt.Sprint(got) != "[1 2 3 4]" {
		t.Errorf("expected all titles placed, got %v", got)
	}
}

func TestResolve_StructuringFailureIsEmpty(t *testing.T) {
	r := New(&flatInferrer{}, localStructurer{err: errors.New("bad json")}, xCount, 10, testLog)
	res, err := r.Resolve(context.Background(), titles("x", "x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Hierarchy) != 0 {
		t.Errorf("expected empty hierarchy, got %+v", res.Hierarchy)
	}
	if res.Tree != "T1\nT2" {
		t.Errorf("tree should still be reported, got %q", res.Tree)
	}
}

func TestResolve_NoTitles(t *testing.T) {
	inf := &flatInferrer{}
	r := New(inf, localStructurer{}, xCount, 10, testLog)
	res, err := r.Resolve(context.Background(), []doctree.Element{doctree.SummaryElement("s", 0, 3)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State != StateDone || len(inf.requests) != 0 || res.Hierarchy != nil {
		t.Errorf("expected immediate done with no calls, got %+v", res)
	}
}

func TestContextElements_IncludesFollowingSummary(t *testing.T) {
	elements := stream.Number([]doctree.Element{
		doctree.TitleElement("a", doctree.ConfidenceHigh, 0),
		doctree.SummaryElement("about a", 1, 1),
		doctree.TitleElement("b", doctree.ConfidenceHigh, 2),
		doctree.SummaryElement("about b", 3, 3),
		doctree.SummaryElement("more b", 4, 4),
	})
	r := New(&flatInferrer{}, localStructurer{}, xCount, 10, testLog)
	s := r.Start(elements)
	s.Tree = "T1\n└── T2\nT9"

	got := r.contextElements(s)
	var labels []string
	for _, e := range got {
		labels = append(labels, e.Label())
	}
	if fmt.Sprint(labels) != "[]" {
		// T9 is the last root and unknown, so the spine carries nothing known.
		t.Errorf("expected no known open neighbors, got %v", labels)
	}

	s.Tree = "T1\n└── T2"
	labels = nil
	for _, e := range r.contextElements(s) {
		labels = append(labels, e.Label())
	}
	want := "[T1: a about a T2: b about b]"
	if fmt.Sprint(labels) != want {
		t.Errorf("context = %v, want %s", labels, want)
	}
}

func TestBudget(t *testing.T) {
	count := func(s string) int { return len(strings.Fields(s)) }
	if got := Budget(1000, 0.1, "one two three", count); got != 97 {
		t.Errorf("expected 97, got %d", got)
	}
}
