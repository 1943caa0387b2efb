package jobs

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates an unknown job ID.
var ErrNotFound = fmt.Errorf("job not found")

// ErrInvalidTransition indicates a status change the state machine
// forbids.
type ErrInvalidTransition struct {
	From, To Status
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid job transition %s -> %s", e.From, e.To)
}

// Registry is the in-memory store of conversion jobs. All reads return
// copies; every mutation notifies the job's subscribers.
type Registry struct {
	mu     sync.RWMutex
	jobs   map[string]*jobEntry
	logger *slog.Logger
}

type jobEntry struct {
	job      Job
	notifier notifier
}

// NewRegistry creates a job registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		jobs:   make(map[string]*jobEntry),
		logger: logger,
	}
}

// Create registers a new queued job and returns its snapshot.
func (r *Registry) Create(params CreateParams) Job {
	id := params.ID
	if id == "" {
		id = uuid.NewString()
	}
	job := Job{
		ID:           id,
		UserID:       params.UserID,
		FileName:     params.FileName,
		BookID:       params.BookID,
		ChapterIndex: params.ChapterIndex,
		Provider:     params.Provider,
		Voice:        params.Voice,
		Speed:        params.Speed,
		InputPath:    params.InputPath,
		TextPath:     params.TextPath,
		OutputPath:   params.OutputPath,
		Status:       StatusQueued,
		CreatedAt:    time.Now().UTC(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = &jobEntry{job: job}
	r.mu.Unlock()

	r.logger.Info("job created", "id", job.ID, "file", job.FileName, "provider", job.Provider)
	return job
}

// Get returns a snapshot of a job.
func (r *Registry) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return entry.job, nil
}

// ListByBook returns snapshots of all jobs belonging to a book,
// ordered by chapter index.
func (r *Registry) ListByBook(bookID string) []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Job
	for _, entry := range r.jobs {
		if entry.job.BookID == bookID {
			out = append(out, entry.job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChapterIndex < out[j].ChapterIndex })
	return out
}

// Transition moves a job to a new status, validating against the state
// machine. Terminal transitions stamp CompletedAt.
func (r *Registry) Transition(id string, to Status) error {
	return r.mutate(id, func(job *Job) error {
		if !transitionAllowed(job.Status, to) {
			return &ErrInvalidTransition{From: job.Status, To: to}
		}
		job.Status = to
		now := time.Now().UTC()
		switch to {
		case StatusProcessing:
			job.StartedAt = &now
		case StatusCompleted:
			job.Progress = 100
			job.Message = ""
			job.CompletedAt = &now
		case StatusCancelled:
			job.Message = ""
			job.CompletedAt = &now
		case StatusError:
			job.CompletedAt = &now
		}
		return nil
	})
}

// Fail moves a job to error with a message.
func (r *Registry) Fail(id string, errMsg string) error {
	if err := r.mutate(id, func(job *Job) error {
		if !transitionAllowed(job.Status, StatusError) {
			return &ErrInvalidTransition{From: job.Status, To: StatusError}
		}
		now := time.Now().UTC()
		job.Status = StatusError
		job.Error = errMsg
		job.CompletedAt = &now
		return nil
	}); err != nil {
		return err
	}
	r.logger.Warn("job failed", "id", id, "error", errMsg)
	return nil
}

// SetProgress updates a job's progress percentage and status message.
// Progress never moves backwards.
func (r *Registry) SetProgress(id string, progress int, message string) error {
	return r.mutate(id, func(job *Job) error {
		if progress > job.Progress {
			job.Progress = progress
		}
		if message != "" {
			job.Message = message
		}
		return nil
	})
}

// RecordSynthesis accumulates audio output accounting on a job.
func (r *Registry) RecordSynthesis(id string, audioBytes int64, costUSD float64, charCount int) error {
	return r.mutate(id, func(job *Job) error {
		job.AudioBytes += audioBytes
		job.CostUSD += costUSD
		job.CharCount += charCount
		return nil
	})
}

// RequestCancel asks a running or queued job to stop. The first
// request returns true; repeat requests and requests against finished
// jobs are no-ops returning false.
func (r *Registry) RequestCancel(id string) (bool, error) {
	first := false
	err := r.mutate(id, func(job *Job) error {
		if job.Status.Terminal() {
			return nil
		}
		if job.CancelRequested {
			return nil
		}
		job.CancelRequested = true
		job.Message = "Cancelling..."
		first = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if first {
		r.logger.Info("job cancel requested", "id", id)
	}
	return first, nil
}

// CancelRequested reports whether a cancel has been requested.
func (r *Registry) CancelRequested(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.jobs[id]
	return ok && entry.job.CancelRequested
}

// Subscribe returns a channel that signals whenever the job changes,
// plus a cancel func the caller must invoke when done. The channel
// coalesces bursts; subscribers re-read the job snapshot on each
// signal. The terminal transition always signals, so a subscriber that
// drains the channel and re-reads will observe the final state.
func (r *Registry) Subscribe(id string) (<-chan struct{}, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.jobs[id]
	if !ok {
		return nil, nil, ErrNotFound
	}
	ch, cancel := entry.notifier.subscribe()
	return ch, cancel, nil
}

// Remove deletes a terminal job from the registry. Running jobs are
// left alone.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.jobs[id]
	if ok && entry.job.Status.Terminal() {
		delete(r.jobs, id)
	}
}

// mutate applies fn to a job under the write lock and notifies
// subscribers if fn succeeded.
func (r *Registry) mutate(id string, fn func(*Job) error) error {
	r.mu.Lock()
	entry, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	err := fn(&entry.job)
	r.mu.Unlock()

	if err != nil {
		return err
	}
	entry.notifier.notify()
	return nil
}
