// Package cleanup removes aged uploads, audio output, and cached book
// text on a schedule.
package cleanup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackzampolin/narrio/internal/home"
	"github.com/jackzampolin/narrio/internal/jobs"
)

// Sweeper deletes files in the home directory older than a maximum
// age. Output files belonging to live jobs are left alone regardless
// of age.
type Sweeper struct {
	home     *home.Dir
	jobs     *jobs.Registry
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// New creates a sweeper. maxAge and interval are given in minutes.
func New(homeDir *home.Dir, jobReg *jobs.Registry, maxAgeMinutes, intervalMinutes int, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAgeMinutes <= 0 {
		maxAgeMinutes = 60
	}
	if intervalMinutes <= 0 {
		intervalMinutes = 15
	}
	return &Sweeper{
		home:     homeDir,
		jobs:     jobReg,
		maxAge:   time.Duration(maxAgeMinutes) * time.Minute,
		interval: time.Duration(intervalMinutes) * time.Minute,
		logger:   logger,
	}
}

// Run sweeps immediately and then on every interval until the context
// is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.Sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep removes aged files from the uploads, output, and cache
// directories.
func (s *Sweeper) Sweep() {
	deleted := 0
	deleted += s.sweepDir(s.home.UploadsPath(), nil)
	deleted += s.sweepDir(s.home.OutputPath(), s.jobIsLive)
	deleted += s.sweepCache()

	if deleted > 0 {
		s.logger.Info("cleanup complete", "deleted", deleted, "max_age", s.maxAge)
	}
}

// sweepDir removes aged regular files in one directory. skip, when
// set, exempts files by name.
func (s *Sweeper) sweepDir(dir string, skip func(name string) bool) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	deleted := 0
	cutoff := time.Now().Add(-s.maxAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if skip != nil && skip(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Warn("failed to delete aged file", "path", path, "error", err)
			continue
		}
		s.logger.Debug("deleted aged file", "path", path, "age", time.Since(info.ModTime()).Round(time.Minute))
		deleted++
	}
	return deleted
}

// sweepCache removes whole book cache directories once aged.
func (s *Sweeper) sweepCache() int {
	entries, err := os.ReadDir(s.home.CachePath())
	if err != nil {
		return 0
	}

	deleted := 0
	cutoff := time.Now().Add(-s.maxAge)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.home.CachePath(), entry.Name())
		if err := os.RemoveAll(path); err != nil {
			s.logger.Warn("failed to delete aged book cache", "path", path, "error", err)
			continue
		}
		deleted++
	}
	return deleted
}

// jobIsLive reports whether an output file belongs to a job that is
// still queued or processing.
func (s *Sweeper) jobIsLive(name string) bool {
	jobID := strings.TrimSuffix(name, filepath.Ext(name))
	job, err := s.jobs.Get(jobID)
	if err != nil {
		return false
	}
	return !job.Status.Terminal()
}
