package jobs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/narrio/internal/providers"
	"github.com/jackzampolin/narrio/internal/segment"
)

type runnerFixture struct {
	registry *Registry
	runner   *Runner
	mock     *providers.MockTTSProvider
	dir      string
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()

	mock := providers.NewMockTTSProvider()
	prov := providers.NewRegistry()
	prov.RegisterTTS(providers.MockTTSName, mock)

	registry := NewRegistry(nil)
	runner := NewRunner(registry, prov, RunnerConfig{MaxConcurrent: 2}, nil)

	return &runnerFixture{
		registry: registry,
		runner:   runner,
		mock:     mock,
		dir:      t.TempDir(),
	}
}

// createTextJob writes pre-extracted text to disk and registers a job
// that reads it.
func (f *runnerFixture) createTextJob(t *testing.T, text string) Job {
	t.Helper()

	textPath := filepath.Join(f.dir, "chapter.txt")
	if err := os.WriteFile(textPath, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return f.registry.Create(CreateParams{
		FileName:   "book.pdf",
		Provider:   providers.MockTTSName,
		Voice:      "onyx",
		Speed:      1.0,
		TextPath:   textPath,
		OutputPath: filepath.Join(f.dir, "out.mp3"),
	})
}

// waitTerminal blocks until the job reaches a terminal status.
func (f *runnerFixture) waitTerminal(t *testing.T, jobID string) Job {
	t.Helper()

	ch, cancel, err := f.registry.Subscribe(jobID)
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	deadline := time.After(10 * time.Second)
	for {
		job, err := f.registry.Get(jobID)
		if err != nil {
			t.Fatal(err)
		}
		if job.Status.Terminal() {
			return job
		}
		select {
		case <-ch:
		case <-deadline:
			t.Fatalf("job %s did not finish, status %s", jobID, job.Status)
		}
	}
}

func TestRunner_ConvertsTextToAudio(t *testing.T) {
	f := newRunnerFixture(t)
	text := "First paragraph. " + segment.TTSPause + " Second paragraph."
	job := f.createTextJob(t, text)

	f.runner.Launch(context.Background(), job.ID)
	done := f.waitTerminal(t, job.ID)

	if done.Status != StatusCompleted {
		t.Fatalf("status = %s (error %q), want completed", done.Status, done.Error)
	}
	if done.Progress != 100 {
		t.Errorf("progress = %d, want 100", done.Progress)
	}
	if done.AudioBytes == 0 || done.CharCount == 0 {
		t.Errorf("missing synthesis accounting: %+v", done)
	}

	audio, err := os.ReadFile(done.OutputPath)
	if err != nil {
		t.Fatalf("output file: %v", err)
	}
	if !bytes.Contains(audio, []byte("mock-audio")) {
		t.Error("output missing synthesized audio")
	}
	// Two segments should be joined by silent frames.
	if !bytes.Contains(audio, []byte{0xff, 0xf3, 0x64, 0xc4}) {
		t.Error("output missing silence between segments")
	}
	if got := f.mock.RequestCount(); got != 2 {
		t.Errorf("expected 2 synthesis requests, got %d", got)
	}
}

func TestRunner_ChunksLongSegments(t *testing.T) {
	f := newRunnerFixture(t)
	long := strings.TrimSpace(strings.Repeat("A fairly ordinary sentence about nothing much at all. ", 200))
	job := f.createTextJob(t, long)

	f.runner.Launch(context.Background(), job.ID)
	done := f.waitTerminal(t, job.ID)

	if done.Status != StatusCompleted {
		t.Fatalf("status = %s (error %q)", done.Status, done.Error)
	}
	if got := f.mock.RequestCount(); got < 2 {
		t.Errorf("long text should be split into multiple requests, got %d", got)
	}
	for _, req := range f.mock.Requests() {
		if len(req.Text) > 4000 {
			t.Errorf("request exceeds chunk limit: %d chars", len(req.Text))
		}
		if req.Voice != "onyx" || req.Format != "mp3" {
			t.Errorf("unexpected request parameters: %+v", req)
		}
	}
}

func TestRunner_Cancel(t *testing.T) {
	f := newRunnerFixture(t)

	release := make(chan struct{})
	started := make(chan struct{}, 16)
	f.mock.GenerateFn = func(ctx context.Context, req *providers.TTSRequest) (*providers.TTSResult, error) {
		started <- struct{}{}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
		}
		return &providers.TTSResult{Success: true, Audio: []byte("mock-audio")}, nil
	}
	defer func() {
		close(release)
		f.runner.Wait()
	}()

	job := f.createTextJob(t, "Some text to narrate slowly.")
	f.runner.Launch(context.Background(), job.ID)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("synthesis never started")
	}

	if _, err := f.registry.RequestCancel(job.ID); err != nil {
		t.Fatalf("cancel request: %v", err)
	}

	done := f.waitTerminal(t, job.ID)
	if done.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", done.Status)
	}
	if _, err := os.Stat(done.OutputPath); !errors.Is(err, os.ErrNotExist) {
		t.Error("partial output should be deleted on cancel")
	}
}

func TestRunner_CancelWhileQueued(t *testing.T) {
	f := newRunnerFixture(t)

	// Saturate both slots with jobs that block until released.
	release := make(chan struct{})
	f.mock.GenerateFn = func(ctx context.Context, req *providers.TTSRequest) (*providers.TTSResult, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
		}
		return &providers.TTSResult{Success: true, Audio: []byte("mock-audio")}, nil
	}
	defer func() {
		close(release)
		f.runner.Wait()
	}()

	blockers := []Job{
		f.createTextJob(t, "blocker one"),
		f.createTextJob(t, "blocker two"),
	}
	for _, b := range blockers {
		f.runner.Launch(context.Background(), b.ID)
	}

	queued := f.createTextJob(t, "waits in queue")
	f.runner.Launch(context.Background(), queued.ID)

	// Give the queued job time to start polling for a slot, then
	// cancel it before any slot frees up.
	time.Sleep(100 * time.Millisecond)
	if _, err := f.registry.RequestCancel(queued.ID); err != nil {
		t.Fatalf("cancel request: %v", err)
	}

	done := f.waitTerminal(t, queued.ID)
	if done.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", done.Status)
	}
	if done.StartedAt != nil {
		t.Error("cancelled queued job should never have started")
	}
}

func TestRunner_ProviderFailure(t *testing.T) {
	f := newRunnerFixture(t)
	f.mock.ShouldFail = true

	job := f.createTextJob(t, "doomed text")
	f.runner.Launch(context.Background(), job.ID)
	done := f.waitTerminal(t, job.ID)

	if done.Status != StatusError {
		t.Fatalf("status = %s, want error", done.Status)
	}
	if done.Error == "" {
		t.Error("expected error message on failed job")
	}
	if _, err := os.Stat(done.OutputPath); !errors.Is(err, os.ErrNotExist) {
		t.Error("partial output should be deleted on failure")
	}
}

func TestRunner_UnknownProvider(t *testing.T) {
	f := newRunnerFixture(t)

	textPath := filepath.Join(f.dir, "t.txt")
	os.WriteFile(textPath, []byte("some text"), 0o644)
	job := f.registry.Create(CreateParams{
		FileName:   "book.pdf",
		Provider:   "nonexistent",
		TextPath:   textPath,
		OutputPath: filepath.Join(f.dir, "o.mp3"),
	})

	f.runner.Launch(context.Background(), job.ID)
	done := f.waitTerminal(t, job.ID)
	if done.Status != StatusError {
		t.Fatalf("status = %s, want error", done.Status)
	}
}

