package jobs

import (
	"errors"
	"testing"
	"time"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(nil)
}

func TestRegistry_CreateAndGet(t *testing.T) {
	reg := newTestRegistry(t)

	job := reg.Create(CreateParams{
		FileName: "book.pdf",
		Provider: "openai",
		Voice:    "onyx",
		Speed:    1.0,
	})
	if job.ID == "" {
		t.Fatal("expected job ID")
	}
	if job.Status != StatusQueued {
		t.Errorf("new job status = %s, want queued", job.Status)
	}

	got, err := reg.Get(job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.FileName != "book.pdf" || got.Voice != "onyx" {
		t.Errorf("unexpected job: %+v", got)
	}

	if _, err := reg.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_Transitions(t *testing.T) {
	reg := newTestRegistry(t)
	job := reg.Create(CreateParams{FileName: "a.pdf"})

	if err := reg.Transition(job.ID, StatusProcessing); err != nil {
		t.Fatalf("queued -> processing: %v", err)
	}
	got, _ := reg.Get(job.ID)
	if got.StartedAt == nil {
		t.Error("expected StartedAt to be set")
	}

	if err := reg.Transition(job.ID, StatusCompleted); err != nil {
		t.Fatalf("processing -> completed: %v", err)
	}
	got, _ = reg.Get(job.ID)
	if got.Progress != 100 || got.CompletedAt == nil {
		t.Errorf("completed job: progress=%d completedAt=%v", got.Progress, got.CompletedAt)
	}

	err := reg.Transition(job.ID, StatusProcessing)
	var invalid *ErrInvalidTransition
	if !errors.As(err, &invalid) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if invalid.From != StatusCompleted || invalid.To != StatusProcessing {
		t.Errorf("unexpected transition error: %v", invalid)
	}
}

func TestRegistry_QueuedCanBeCancelled(t *testing.T) {
	reg := newTestRegistry(t)
	job := reg.Create(CreateParams{FileName: "a.pdf"})

	if err := reg.Transition(job.ID, StatusCancelled); err != nil {
		t.Fatalf("queued -> cancelled: %v", err)
	}
}

func TestRegistry_QueuedCannotFail(t *testing.T) {
	reg := newTestRegistry(t)
	job := reg.Create(CreateParams{FileName: "a.pdf"})

	err := reg.Fail(job.ID, "boom")
	var invalid *ErrInvalidTransition
	if !errors.As(err, &invalid) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if invalid.From != StatusQueued || invalid.To != StatusError {
		t.Errorf("unexpected transition error: %v", invalid)
	}
}

func TestRegistry_RequestCancel(t *testing.T) {
	reg := newTestRegistry(t)
	job := reg.Create(CreateParams{FileName: "a.pdf"})
	reg.Transition(job.ID, StatusProcessing)

	first, err := reg.RequestCancel(job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first {
		t.Error("first cancel request should return true")
	}

	got, _ := reg.Get(job.ID)
	if !got.CancelRequested || got.Message != "Cancelling..." {
		t.Errorf("unexpected job after cancel request: %+v", got)
	}
	if got.Status != StatusProcessing {
		t.Errorf("cancel request should not change status, got %s", got.Status)
	}

	again, err := reg.RequestCancel(job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again {
		t.Error("repeated cancel request should return false")
	}

	// Cancelling a finished job is a no-op, not an error.
	reg.Transition(job.ID, StatusCancelled)
	late, err := reg.RequestCancel(job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if late {
		t.Error("cancel of a finished job should return false")
	}

	if _, err := reg.RequestCancel("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_ProgressIsMonotonic(t *testing.T) {
	reg := newTestRegistry(t)
	job := reg.Create(CreateParams{FileName: "a.pdf"})
	reg.Transition(job.ID, StatusProcessing)

	reg.SetProgress(job.ID, 40, "Synthesizing audio")
	reg.SetProgress(job.ID, 25, "Synthesizing audio")

	got, _ := reg.Get(job.ID)
	if got.Progress != 40 {
		t.Errorf("progress regressed to %d", got.Progress)
	}

	reg.SetProgress(job.ID, 60, "")
	got, _ = reg.Get(job.ID)
	if got.Progress != 60 || got.Message != "Synthesizing audio" {
		t.Errorf("unexpected job: progress=%d message=%q", got.Progress, got.Message)
	}
}

func TestRegistry_Fail(t *testing.T) {
	reg := newTestRegistry(t)
	job := reg.Create(CreateParams{FileName: "a.pdf"})
	reg.Transition(job.ID, StatusProcessing)

	if err := reg.Fail(job.ID, "provider exploded"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := reg.Get(job.ID)
	if got.Status != StatusError || got.Error != "provider exploded" {
		t.Errorf("unexpected job: %+v", got)
	}
}

func TestRegistry_ListByBook(t *testing.T) {
	reg := newTestRegistry(t)
	reg.Create(CreateParams{FileName: "other.pdf"})
	reg.Create(CreateParams{BookID: "book1", ChapterIndex: 2, FileName: "b.pdf"})
	reg.Create(CreateParams{BookID: "book1", ChapterIndex: 0, FileName: "b.pdf"})
	reg.Create(CreateParams{BookID: "book1", ChapterIndex: 1, FileName: "b.pdf"})

	jobs := reg.ListByBook("book1")
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	for i, j := range jobs {
		if j.ChapterIndex != i {
			t.Errorf("jobs out of order: position %d has chapter %d", i, j.ChapterIndex)
		}
	}

	if got := reg.ListByBook("unknown"); len(got) != 0 {
		t.Errorf("expected no jobs, got %d", len(got))
	}
}

func TestRegistry_Subscribe(t *testing.T) {
	reg := newTestRegistry(t)
	job := reg.Create(CreateParams{FileName: "a.pdf"})

	ch, cancel, err := reg.Subscribe(job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cancel()

	// A burst of updates coalesces into at least one pending signal.
	reg.Transition(job.ID, StatusProcessing)
	reg.SetProgress(job.ID, 30, "Synthesizing audio")
	reg.SetProgress(job.ID, 50, "Synthesizing audio")

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a change signal")
	}

	// After draining, the terminal transition signals again.
	reg.Transition(job.ID, StatusCompleted)
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a terminal signal")
	}

	got, _ := reg.Get(job.ID)
	if got.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}

	if _, _, err := reg.Subscribe("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_Remove(t *testing.T) {
	reg := newTestRegistry(t)
	job := reg.Create(CreateParams{FileName: "a.pdf"})

	reg.Remove(job.ID)
	if _, err := reg.Get(job.ID); err != nil {
		t.Fatal("running job should not be removable")
	}

	reg.Transition(job.ID, StatusProcessing)
	reg.Transition(job.ID, StatusCompleted)
	reg.Remove(job.ID)
	if _, err := reg.Get(job.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after removal, got %v", err)
	}
}
