package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/segment"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

// spanSummarizer returns one summary per call covering the whole range.
type spanSummarizer struct {
	mu    sync.Mutex
	calls [][2]int
	fail  map[int]bool // keyed by range start
	delay func(from int) time.Duration
}

func (s *spanSummarizer) Summarize(ctx context.Context, blocks []doctree.Block, from, to int) ([]doctree.Element, error) {
	s.mu.Lock()
	s.calls = append(s.calls, [2]int{from, to})
	s.mu.Unlock()
	if s.delay != nil {
		time.Sleep(s.delay(from))
	}
	if s.fail[from] {
		return nil, errors.New("boom")
	}
	return []doctree.Element{doctree.SummaryElement(fmt.Sprintf("summary %d-%d", from, to), from, to)}, nil
}

func TestBuild_TitleThenSummary(t *testing.T) {
	blocks := segment.Blocks("# Intro\n\nHello world, this is a test paragraph with more than ten words inside it.")
	s := &spanSummarizer{}
	b := NewBuilder(s, 4, testLog)

	got := b.Build(context.Background(), blocks, doctree.TitleConfidence{High: []int{0}})
	if len(got) != 2 {
		t.Fatalf("expected 2 elements, got %d: %+v", len(got), got)
	}
	if !got[0].IsTitle() || got[0].BlockIndex != 0 || got[0].Confidence != doctree.ConfidenceHigh {
		t.Errorf("element 0: expected high title at block 0, got %+v", got[0])
	}
	if got[1].IsTitle() || got[1].Source != (doctree.Span{From: 1, To: 1}) {
		t.Errorf("element 1: expected summary covering block 1, got %+v", got[1])
	}
}

func TestBuild_SentinelsAndEmptyRuns(t *testing.T) {
	blocks := []doctree.Block{
		{Content: "lead", Meaningful: true},
		{Content: "Title A", Meaningful: true},
		{Content: "Figure 1", Meaningful: false},
		{Content: "Title B", Meaningful: true},
		{Content: "body", Meaningful: true},
	}
	s := &spanSummarizer{}
	b := NewBuilder(s, 2, testLog)

	got := b.Build(context.Background(), blocks, doctree.TitleConfidence{High: []int{1}, Moderate: []int{3}})

	var kinds []string
	for _, e := range got {
		kinds = append(kinds, e.Kind.String())
	}
	want := "[summary title title summary]"
	if fmt.Sprint(kinds) != want {
		t.Fatalf("expected %s, got %v", want, kinds)
	}
	if got[0].Source != (doctree.Span{From: 0, To: 0}) {
		t.Errorf("leading summary span: got %+v", got[0].Source)
	}
	if got[2].Confidence != doctree.ConfidenceModerate {
		t.Errorf("expected moderate confidence, got %q", got[2].Confidence)
	}
	if got[3].Source != (doctree.Span{From: 4, To: 4}) {
		t.Errorf("trailing summary span: got %+v", got[3].Source)
	}
	if len(s.calls) != 2 {
		t.Errorf("expected 2 summarize calls (run of only decorative blocks skipped), got %d", len(s.calls))
	}
}

func TestBuild_HighWinsAndBadIndicesIgnored(t *testing.T) {
	blocks := []doctree.Block{{Content: "T", Meaningful: true}, {Content: "x", Meaningful: true}}
	b := NewBuilder(&spanSummarizer{}, 1, testLog)

	got := b.Build(context.Background(), blocks, doctree.TitleConfidence{
		High:     []int{0, 7},
		Moderate: []int{0, -3},
	})
	titles := doctree.Titles(got)
	if len(titles) != 1 {
		t.Fatalf("expected 1 title, got %d", len(titles))
	}
	if titles[0].Confidence != doctree.ConfidenceHigh {
		t.Errorf("expected high to win, got %q", titles[0].Confidence)
	}
}

func TestBuild_FailureDegradesOnlyItsRun(t *testing.T) {
	blocks := []doctree.Block{
		{Content: "A", Meaningful: true},
		{Content: "a1", Meaningful: true},
		{Content: "a2", Meaningful: true},
		{Content: "B", Meaningful: true},
		{Content: "b1", Meaningful: true},
	}
	s := &spanSummarizer{fail: map[int]bool{1: true}}
	b := NewBuilder(s, 4, testLog)

	got := b.Build(context.Background(), blocks, doctree.TitleConfidence{High: []int{0, 3}})
	if len(got) != 4 {
		t.Fatalf("expected 4 elements, got %d", len(got))
	}
	if got[1].Content != FallbackSummary || got[1].Source != (doctree.Span{From: 1, To: 2}) {
		t.Errorf("expected fallback covering 1..2, got %+v", got[1])
	}
	if got[3].Content != "summary 4-4" {
		t.Errorf("sibling run should be unaffected, got %q", got[3].Content)
	}
}

func TestBuild_OrderIndependentOfCompletion(t *testing.T) {
	var blocks []doctree.Block
	var high []int
	for i := range 20 {
		blocks = append(blocks, doctree.Block{Content: fmt.Sprintf("b%d", i), Meaningful: true})
		if i%2 == 0 {
			high = append(high, i)
		}
	}
	// Earlier runs finish last.
	s := &spanSummarizer{delay: func(from int) time.Duration { return time.Duration(20-from) * time.Millisecond }}
	got := NewBuilder(s, 8, testLog).Build(context.Background(), blocks, doctree.TitleConfidence{High: high})

	last := -1
	for _, e := range got {
		start := e.BlockIndex
		if !e.IsTitle() {
			start = e.Source.From
		}
		if start <= last {
			t.Fatalf("elements out of document order: %+v", got)
		}
		last = start
	}
}

type countingSummarizer struct {
	active, peak atomic.Int32
}

func (c *countingSummarizer) Summarize(ctx context.Context, blocks []doctree.Block, from, to int) ([]doctree.Element, error) {
	n := c.active.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	c.active.Add(-1)
	return []doctree.Element{doctree.SummaryElement("s", from, to)}, nil
}

func TestBuild_BoundedConcurrency(t *testing.T) {
	var blocks []doctree.Block
	var high []int
	for i := range 30 {
		blocks = append(blocks, doctree.Block{Content: "x", Meaningful: true})
		if i%2 == 0 {
			high = append(high, i)
		}
	}
	c := &countingSummarizer{}
	NewBuilder(c, 3, testLog).Build(context.Background(), blocks, doctree.TitleConfidence{High: high})
	if p := c.peak.Load(); p > 3 {
		t.Errorf("expected at most 3 concurrent calls, saw %d", p)
	}
}

func TestBuild_MalformedPartitionFallsBack(t *testing.T) {
	blocks := []doctree.Block{{Content: "a", Meaningful: true}, {Content: "b", Meaningful: true}}
	bad := summarizerFunc(func(ctx context.Context, blocks []doctree.Block, from, to int) ([]doctree.Element, error) {
		return []doctree.Element{doctree.SummaryElement("only first", from, from)}, nil
	})
	got := NewBuilder(bad, 1, testLog).Build(context.Background(), blocks, doctree.TitleConfidence{})
	if len(got) != 1 || got[0].Content != FallbackSummary || got[0].Source != (doctree.Span{From: 0, To: 1}) {
		t.Errorf("expected fallback covering 0..1, got %+v", got)
	}
}

type summarizerFunc func(ctx context.Context, blocks []doctree.Block, from, to int) ([]doctree.Element, error)

func (f summarizerFunc) Summarize(ctx context.Context, blocks []doctree.Block, from, to int) ([]doctree.Element, error) {
	return f(ctx, blocks, from, to)
}

func TestBuild_EmptyDocument(t *testing.T) {
	got := NewBuilder(&spanSummarizer{}, 1, testLog).Build(context.Background(), nil, doctree.TitleConfidence{High: []int{0}})
	if len(got) != 0 {
		t.Errorf("expected no elements, got %+v", got)
	}
}

func TestNumber_Dense(t *testing.T) {
	elements := []doctree.Element{
		doctree.SummaryElement("s", 0, 0),
		doctree.TitleElement("a", doctree.ConfidenceHigh, 1),
		doctree.TitleElement("b", doctree.ConfidenceModerate, 2),
		doctree.SummaryElement("s", 3, 4),
		doctree.TitleElement("c", doctree.ConfidenceHigh, 5),
	}
	got := Number(elements)

	var ids []int
	for _, e := range got {
		if e.IsTitle() {
			ids = append(ids, e.Number)
		} else if e.Number != 0 {
			t.Errorf("summary should not be numbered: %+v", e)
		}
	}
	if fmt.Sprint(ids) != "[1 2 3]" {
		t.Errorf("expected [1 2 3], got %v", ids)
	}
	if elements[1].Number != 0 {
		t.Errorf("input should not be modified")
	}
	if got[4].Label() != "T3: c" {
		t.Errorf("unexpected label %q", got[4].Label())
	}
}

func TestCheckPartition(t *testing.T) {
	tests := []struct {
		name    string
		spans   [][2]int
		wantErr bool
	}{
		{"exact", [][2]int{{2, 5}}, false},
		{"split", [][2]int{{2, 3}, {4, 5}}, false},
		{"gap", [][2]int{{2, 2}, {4, 5}}, true},
		{"overlap", [][2]int{{2, 4}, {4, 5}}, true},
		{"short", [][2]int{{2, 4}}, true},
		{"empty", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var els []doctree.Element
			for _, s := range tt.spans {
				els = append(els, doctree.SummaryElement("x", s[0], s[1]))
			}
			err := checkPartition(els, 2, 5)
			if (err != nil) != tt.wantErr {
				t.Errorf("wantErr=%v, got %v", tt.wantErr, err)
			}
		})
	}
}
