package providers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// TTSProvider converts one chunk of narration text into audio bytes.
// Long-form documents are driven through a provider by Synthesizer,
// which owns chunking, pacing, and retries.
type TTSProvider interface {
	// Name returns the provider identifier (e.g., "openai", "elevenlabs").
	Name() string

	// Generate converts a single chunk of text to audio.
	Generate(ctx context.Context, req *TTSRequest) (*TTSResult, error)

	// HealthCheck verifies the provider API is reachable and credentials are valid.
	HealthCheck(ctx context.Context) error

	// Rate limiting properties
	RequestsPerSecond() float64
	MaxConcurrency() int
	MaxRetries() int
	RetryDelayBase() time.Duration
}

// VoicesLister is implemented by providers that can enumerate available voices.
type VoicesLister interface {
	ListVoices(ctx context.Context) ([]Voice, error)
}

// TTSRequest is one synthesis call. Zero-value fields fall back to the
// provider's configured defaults.
type TTSRequest struct {
	Text  string
	Voice string

	// Output format (provider-specific, e.g. "mp3", "mp3_44100_128")
	Format string

	// Speaking speed multiplier
	Speed float64

	// IDs of the preceding requests, for providers that stitch
	// consecutive chunks into continuous prosody (ElevenLabs).
	PreviousRequestIDs []string
}

// TTSResult is the outcome of one synthesis call. CostUSD and
// CharCount feed the job record's accounting; RequestID feeds the next
// chunk's PreviousRequestIDs.
type TTSResult struct {
	Success bool
	Audio   []byte

	CostUSD   float64
	CharCount int
	RequestID string

	ErrorMessage string
}

// Voice represents a TTS voice.
type Voice struct {
	VoiceID     string `json:"voice_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// RateLimitError indicates a 429 response from a provider.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	StatusCode int
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// IsRateLimitError checks whether err is (or wraps) a RateLimitError.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// parseRetryAfter parses a Retry-After header value (delta-seconds form).
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
