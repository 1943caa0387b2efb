package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jackzampolin/narrio/internal/providers"
	"github.com/jackzampolin/narrio/internal/segment"
)

// errCancelled aborts a running conversion after a cancel request.
var errCancelled = errors.New("conversion cancelled")

// slotPollInterval is how often a queued job re-checks for a free
// conversion slot and for cancellation.
const slotPollInterval = 500 * time.Millisecond

// RunnerConfig bounds conversion work.
type RunnerConfig struct {
	// MaxConcurrent is the number of conversions allowed to synthesize
	// at once. Additional jobs wait in queued state.
	MaxConcurrent int
}

// Runner executes conversion jobs: extract text, synthesize audio
// segment by segment, and write the output file. A fixed number of
// slots bounds concurrent synthesis across all jobs.
type Runner struct {
	registry  *Registry
	providers *providers.Registry
	logger    *slog.Logger

	slots chan struct{}
	wg    sync.WaitGroup

	mu       sync.Mutex
	limiters map[string]*providers.RateLimiter
}

// NewRunner creates a runner.
func NewRunner(registry *Registry, prov *providers.Registry, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	return &Runner{
		registry:  registry,
		providers: prov,
		logger:    logger,
		slots:     make(chan struct{}, cfg.MaxConcurrent),
		limiters:  make(map[string]*providers.RateLimiter),
	}
}

// Launch starts a job in the background. ctx should be the server
// lifetime context, not the HTTP request context.
func (r *Runner) Launch(ctx context.Context, jobID string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(ctx, jobID)
	}()
}

// Wait blocks until all launched jobs have finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) execute(ctx context.Context, jobID string) {
	if err := r.acquireSlot(ctx, jobID); err != nil {
		r.finish(jobID, err)
		return
	}
	defer func() { <-r.slots }()

	if err := r.registry.Transition(jobID, StatusProcessing); err != nil {
		r.logger.Error("failed to start job", "id", jobID, "error", err)
		return
	}

	// Job-scoped context cancelled when a cancel request arrives, so
	// in-flight provider calls abort promptly.
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go r.watchCancel(jobCtx, jobID, cancel)

	r.finish(jobID, r.run(jobCtx, jobID))
}

// acquireSlot waits for a free conversion slot, polling for cancel
// requests so a queued job can be cancelled before it starts.
func (r *Runner) acquireSlot(ctx context.Context, jobID string) error {
	ticker := time.NewTicker(slotPollInterval)
	defer ticker.Stop()

	for {
		select {
		case r.slots <- struct{}{}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if r.registry.CancelRequested(jobID) {
				return errCancelled
			}
		}
	}
}

func (r *Runner) watchCancel(ctx context.Context, jobID string, cancel context.CancelFunc) {
	ticker := time.NewTicker(slotPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.registry.CancelRequested(jobID) {
				cancel()
				return
			}
		}
	}
}

func (r *Runner) run(ctx context.Context, jobID string) error {
	job, err := r.registry.Get(jobID)
	if err != nil {
		return err
	}

	r.registry.SetProgress(jobID, 5, "Extracting text")

	text, err := r.loadText(job)
	if err != nil {
		return err
	}
	if segment.WordCount(text) == 0 {
		return segment.ErrNoText
	}

	provider, err := r.providers.GetTTS(job.Provider)
	if err != nil {
		return fmt.Errorf("tts provider %q not available: %w", job.Provider, err)
	}

	r.registry.SetProgress(jobID, 20, "Synthesizing audio")

	if err := r.synthesize(ctx, job, provider, text); err != nil {
		return err
	}

	r.registry.SetProgress(jobID, 95, "Finalizing audio")
	return nil
}

// loadText reads pre-extracted chapter text when available, otherwise
// extracts from the uploaded document.
func (r *Runner) loadText(job Job) (string, error) {
	if job.TextPath != "" {
		data, err := os.ReadFile(job.TextPath)
		if err != nil {
			return "", fmt.Errorf("failed to read chapter text: %w", err)
		}
		return string(data), nil
	}
	return segment.ExtractText(job.InputPath)
}

// finish drives the job to its terminal state and cleans up partial
// output on anything but success.
func (r *Runner) finish(jobID string, runErr error) {
	job, err := r.registry.Get(jobID)
	if err != nil {
		return
	}

	switch {
	case runErr == nil:
		if err := r.registry.Transition(jobID, StatusCompleted); err != nil {
			r.logger.Error("failed to complete job", "id", jobID, "error", err)
			return
		}
		r.logger.Info("job completed", "id", jobID, "file", job.FileName,
			"audio_bytes", job.AudioBytes, "cost_usd", job.CostUSD)

	// A job that never left queued can only be here because of
	// shutdown or a cancel race; it ends cancelled, never error.
	case job.Status == StatusQueued ||
		errors.Is(runErr, errCancelled) || errors.Is(runErr, context.Canceled) ||
		r.registry.CancelRequested(jobID):
		r.removeOutput(job)
		if err := r.registry.Transition(jobID, StatusCancelled); err != nil {
			r.logger.Error("failed to cancel job", "id", jobID, "error", err)
			return
		}
		r.logger.Info("job cancelled", "id", jobID, "file", job.FileName)

	default:
		r.removeOutput(job)
		if err := r.registry.Fail(jobID, runErr.Error()); err != nil {
			r.logger.Error("failed to mark job failed", "id", jobID, "error", err)
		}
	}
}

func (r *Runner) removeOutput(job Job) {
	if job.OutputPath == "" {
		return
	}
	if err := os.Remove(job.OutputPath); err != nil && !os.IsNotExist(err) {
		r.logger.Warn("failed to remove partial output", "path", job.OutputPath, "error", err)
	}
}

// limiterFor returns the shared rate limiter for a provider, creating
// it on first use from the provider's declared rate.
func (r *Runner) limiterFor(name string, provider providers.TTSProvider) *providers.RateLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rl, ok := r.limiters[name]; ok {
		return rl
	}
	rl := providers.NewRateLimiter(int(provider.RequestsPerSecond() * 60))
	r.limiters[name] = rl
	return rl
}
