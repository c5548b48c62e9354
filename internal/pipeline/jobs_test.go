package pipeline

import (
	"errors"
	"testing"
	"time"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_DifferentInputs(t *testing.T) {
	h1 := ContentHashHex([]byte("aaa"))
	h2 := ContentHashHex([]byte("bbb"))
	if h1 == h2 {
		t.Error("expected different hashes for different inputs")
	}
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	h := ContentHashHex([]byte{})
	// SHA-256 of empty input is well-known.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if h != want {
		t.Errorf("expected hash %q, got %q", want, h)
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := NewJob("doc.md", nil)
	if job.Status != StatusQueued || job.ID == "" {
		t.Fatalf("new job: status=%q id=%q", job.Status, job.ID)
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusSegmenting, "parsing"},
		{StatusClassifying, "classifying"},
		{StatusSummarizing, "summarizing"},
		{StatusResolving, "resolving"},
		{StatusBuilding, "building"},
		{StatusAggregating, "aggregating"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	for _, s := range []JobStatus{StatusCompleted, StatusPartial, StatusFailed} {
		if !s.Terminal() {
			t.Errorf("%q should be terminal", s)
		}
	}
	for _, s := range []JobStatus{StatusQueued, StatusResolving, StatusAggregating} {
		if s.Terminal() {
			t.Errorf("%q should not be terminal", s)
		}
	}
}

func TestNewJob_UniqueIDs(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		id := NewJob("a.txt", nil).ID
		if seen[id] {
			t.Fatalf("duplicate job id %q", id)
		}
		seen[id] = true
	}
}

func TestJob_FinishOnce(t *testing.T) {
	job := NewJob("doc.md", []byte("data"))
	res := &Result{Title: "first"}
	job.finish(StatusCompleted, "done", res, nil)
	job.finish(StatusFailed, "late", nil, errors.New("ignored"))

	select {
	case <-job.Done():
	default:
		t.Fatal("expected done channel to be closed")
	}
	got, err := job.Result()
	if err != nil || got != res {
		t.Errorf("expected first outcome to stick, got %v, %v", got, err)
	}
	if job.Snapshot().Status != StatusCompleted {
		t.Errorf("expected status %q, got %q", StatusCompleted, job.Snapshot().Status)
	}
	if job.FileData() != nil {
		t.Errorf("expected file data released after finish")
	}
}

func TestJob_AddWarning(t *testing.T) {
	job := &Job{ID: "warn-test", UpdatedAt: time.Now()}
	job.AddWarning("window 0: inference failed")
	job.AddWarning("structuring failed")

	snap := job.Snapshot()
	if len(snap.Progress.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(snap.Progress.Warnings))
	}
	if snap.Progress.Warnings[0] != "window 0: inference failed" {
		t.Errorf("expected first warning %q, got %q", "window 0: inference failed", snap.Progress.Warnings[0])
	}
}

func TestJob_SetCounts(t *testing.T) {
	job := &Job{ID: "counts-test", UpdatedAt: time.Now()}
	job.SetCounts(42, 5, 7)

	snap := job.Snapshot()
	if snap.Progress.Blocks != 42 || snap.Progress.Titles != 5 || snap.Progress.Sections != 7 {
		t.Errorf("unexpected counts %+v", snap.Progress)
	}
}

func TestJob_FileData(t *testing.T) {
	job := &Job{ID: "data-test"}
	data := []byte("file content here")
	job.SetFileData(data)
	got := job.FileData()
	if string(got) != string(data) {
		t.Errorf("expected file data %q, got %q", data, got)
	}
}

func TestJob_SnapshotWarningsNotNil(t *testing.T) {
	// Snapshot should always return a non-nil warnings slice.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Warnings == nil {
		t.Error("expected non-nil warnings slice in snapshot")
	}
	if len(snap.Progress.Warnings) != 0 {
		t.Errorf("expected empty warnings, got %d", len(snap.Progress.Warnings))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 job, got %d", store.Len())
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	// Add a fresh job.
	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	// Should not panic on empty store.
	store.Cleanup()
}
