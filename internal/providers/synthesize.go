package providers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"time"
)

// maxChunkChars bounds the text sent in one synthesis request.
const maxChunkChars = 4000

// maxStitchIDs is how many previous request IDs are carried forward
// for prosody stitching.
const maxStitchIDs = 3

// silence is ~1.5s of silent MP3 frames, written between pause
// segments so narration keeps its pacing.
var silence = buildSilence()

func buildSilence() []byte {
	// One silent MPEG frame: sync header followed by empty side info.
	frame := make([]byte, 192)
	copy(frame, []byte{0xff, 0xf3, 0x64, 0xc4})

	const frames = 63
	out := make([]byte, 0, len(frame)*frames)
	for i := 0; i < frames; i++ {
		out = append(out, frame...)
	}
	return out
}

// Synthesizer drives a TTSProvider through long-form text. Oversized
// segments are split into sentence chunks, segments are joined with
// silence, transient failures are retried with backoff, and the
// provider's request IDs are threaded through consecutive chunks.
type Synthesizer struct {
	Provider TTSProvider
	Limiter  *RateLimiter
	Logger   *slog.Logger
}

// SynthesisRequest is one long-form synthesis run.
type SynthesisRequest struct {
	// Segments are the pause-separated pieces of the document text,
	// in narration order.
	Segments []string
	Voice    string
	Speed    float64

	// OnProgress, if set, receives the fraction of input text
	// synthesized so far, in (0, 1]. Called after each chunk's audio
	// has been written.
	OnProgress func(fraction float64)

	// OnChunk, if set, receives per-chunk accounting: audio bytes
	// written, provider cost, and input characters consumed.
	OnChunk func(audioBytes int64, costUSD float64, charCount int)
}

// Run synthesizes the request's segments and writes the audio to w.
// It stops between chunks when ctx is cancelled, returning ctx.Err().
func (s *Synthesizer) Run(ctx context.Context, w io.Writer, req SynthesisRequest) error {
	totalChars := 0
	for _, seg := range req.Segments {
		totalChars += len(seg)
	}
	if totalChars == 0 {
		return fmt.Errorf("no text to synthesize")
	}

	var doneChars int
	var prevRequestIDs []string

	for i, seg := range req.Segments {
		if i > 0 {
			if _, err := w.Write(silence); err != nil {
				return fmt.Errorf("failed to write audio: %w", err)
			}
		}

		for _, chunk := range chunkText(seg, maxChunkChars) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.Limiter.Wait(ctx); err != nil {
				return err
			}

			result, err := s.generateWithRetry(ctx, &TTSRequest{
				Text:               chunk,
				Voice:              req.Voice,
				Format:             "mp3",
				Speed:              req.Speed,
				PreviousRequestIDs: prevRequestIDs,
			})
			if err != nil {
				return err
			}

			if result.RequestID != "" {
				prevRequestIDs = append(prevRequestIDs, result.RequestID)
				if len(prevRequestIDs) > maxStitchIDs {
					prevRequestIDs = prevRequestIDs[len(prevRequestIDs)-maxStitchIDs:]
				}
			}

			n, err := w.Write(result.Audio)
			if err != nil {
				return fmt.Errorf("failed to write audio: %w", err)
			}
			doneChars += len(chunk)

			if req.OnChunk != nil {
				req.OnChunk(int64(n), result.CostUSD, result.CharCount)
			}
			if req.OnProgress != nil {
				req.OnProgress(float64(doneChars) / float64(totalChars))
			}
		}
	}

	return nil
}

// chunkText splits text into pieces of at most max characters,
// breaking at sentence ends where possible and at spaces otherwise.
func chunkText(text string, max int) []string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return []string{text}
	}

	var chunks []string
	for len(text) > max {
		cut := breakPoint(text, max)
		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

func breakPoint(text string, max int) int {
	window := text[:max]
	for _, sep := range []string{". ", "! ", "? ", "; ", ", "} {
		if idx := strings.LastIndex(window, sep); idx > max/2 {
			return idx + len(sep)
		}
	}
	if idx := strings.LastIndex(window, " "); idx > 0 {
		return idx + 1
	}
	return max
}

// generateWithRetry executes one synthesis request, retrying transient
// failures with exponential backoff and honoring Retry-After on rate
// limits.
func (s *Synthesizer) generateWithRetry(ctx context.Context, req *TTSRequest) (*TTSResult, error) {
	maxRetries := s.Provider.MaxRetries()
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := s.Provider.Generate(ctx, req)
		if err == nil && result.Success {
			return result, nil
		}
		if err == nil {
			err = fmt.Errorf("%s", result.ErrorMessage)
		}
		lastErr = err

		if !s.isRetriable(err) || attempt == maxRetries {
			break
		}
		if s.Logger != nil {
			s.Logger.Debug("synthesis request failed, retrying",
				"provider", s.Provider.Name(),
				"attempt", attempt+1,
				"max_attempts", maxRetries+1,
				"error", err)
		}
		if werr := sleepBeforeRetry(ctx, err, attempt, s.Provider.RetryDelayBase()); werr != nil {
			return nil, werr
		}
	}
	return nil, lastErr
}

func (s *Synthesizer) isRetriable(err error) bool {
	if err == nil {
		return false
	}

	if rle, ok := IsRateLimitError(err); ok {
		s.Limiter.Record429(rle.RetryAfter)
		return true
	}

	errStr := err.Error()
	if strings.Contains(errStr, "status 500") ||
		strings.Contains(errStr, "status 502") ||
		strings.Contains(errStr, "status 503") ||
		strings.Contains(errStr, "status 504") {
		return true
	}
	if strings.Contains(errStr, "status 429") ||
		strings.Contains(errStr, "rate limit") {
		s.Limiter.Record429(5 * time.Second)
		return true
	}
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") {
		return true
	}
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF") {
		return true
	}
	return false
}

func sleepBeforeRetry(ctx context.Context, err error, attempt int, base time.Duration) error {
	var delay time.Duration

	if rle, ok := IsRateLimitError(err); ok && rle.RetryAfter > 0 {
		delay = rle.RetryAfter
	} else {
		if base <= 0 {
			base = time.Second
		}
		delay = base * time.Duration(1<<uint(attempt))
		jitter := time.Duration(rand.Intn(1000)) * time.Millisecond
		delay += jitter
		if delay > 30*time.Second {
			delay = 30*time.Second + jitter
		}
	}

	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
