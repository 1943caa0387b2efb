package jobs

import (
	"context"
	"fmt"
	"os"

	"github.com/jackzampolin/narrio/internal/providers"
	"github.com/jackzampolin/narrio/internal/segment"
)

// synthProgressFloor and synthProgressSpan map the synthesizer's
// text fraction onto the progress bar: extraction owns 0-20,
// finalization owns 95-100.
const (
	synthProgressFloor = 20
	synthProgressSpan  = 75
)

// synthesize converts cleaned text to speech and writes the job's
// output file. The synthesizer reports back after every chunk, which
// is where progress, accounting, and cancellation observation happen.
func (r *Runner) synthesize(ctx context.Context, job Job, provider providers.TTSProvider, text string) error {
	segments := segment.SplitSegments(text)
	if len(segments) == 0 {
		return segment.ErrNoText
	}

	out, err := os.Create(job.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	synth := &providers.Synthesizer{
		Provider: provider,
		Limiter:  r.limiterFor(job.Provider, provider),
		Logger:   r.logger,
	}

	err = synth.Run(ctx, out, providers.SynthesisRequest{
		Segments: segments,
		Voice:    job.Voice,
		Speed:    job.Speed,
		OnChunk: func(audioBytes int64, costUSD float64, charCount int) {
			r.registry.RecordSynthesis(job.ID, audioBytes, costUSD, charCount)
		},
		OnProgress: func(fraction float64) {
			pct := synthProgressFloor + int(fraction*synthProgressSpan)
			r.registry.SetProgress(job.ID, pct, "Synthesizing audio")
		},
	})
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}

	if err := out.Sync(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}
