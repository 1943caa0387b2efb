package providers

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func newTestSynthesizer(mock *MockTTSProvider) *Synthesizer {
	return &Synthesizer{
		Provider: mock,
		Limiter:  NewRateLimiter(60000), // effectively unthrottled
	}
}

func TestSynthesizerRun(t *testing.T) {
	mock := NewMockTTSProvider()
	s := newTestSynthesizer(mock)

	var out bytes.Buffer
	var fractions []float64
	var totalBytes int64
	var totalChars int

	err := s.Run(context.Background(), &out, SynthesisRequest{
		Segments: []string{"First paragraph.", "Second paragraph."},
		Voice:    "onyx",
		Speed:    1.0,
		OnProgress: func(fraction float64) {
			fractions = append(fractions, fraction)
		},
		OnChunk: func(audioBytes int64, costUSD float64, charCount int) {
			totalBytes += audioBytes
			totalChars += charCount
		},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := mock.RequestCount(); got != 2 {
		t.Errorf("expected 2 requests, got %d", got)
	}
	// Segments are joined by silent frames.
	if !bytes.Contains(out.Bytes(), []byte{0xff, 0xf3, 0x64, 0xc4}) {
		t.Error("output missing silence between segments")
	}
	if len(fractions) != 2 {
		t.Fatalf("expected 2 progress callbacks, got %d", len(fractions))
	}
	if fractions[0] <= 0 || fractions[0] >= fractions[1] {
		t.Errorf("progress not increasing: %v", fractions)
	}
	if fractions[len(fractions)-1] != 1.0 {
		t.Errorf("final progress = %v, want 1.0", fractions[len(fractions)-1])
	}
	if totalBytes == 0 || totalChars == 0 {
		t.Errorf("missing chunk accounting: bytes=%d chars=%d", totalBytes, totalChars)
	}
}

func TestSynthesizerRun_StitchesRequestIDs(t *testing.T) {
	mock := NewMockTTSProvider()
	n := 0
	mock.GenerateFn = func(ctx context.Context, req *TTSRequest) (*TTSResult, error) {
		n++
		return &TTSResult{
			Success:   true,
			Audio:     []byte("audio"),
			CharCount: len(req.Text),
			RequestID: strings.Repeat("r", n),
		}, nil
	}
	s := newTestSynthesizer(mock)

	var out bytes.Buffer
	segments := []string{"one", "two", "three", "four", "five"}
	if err := s.Run(context.Background(), &out, SynthesisRequest{Segments: segments}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	reqs := mock.Requests()
	if len(reqs) != 5 {
		t.Fatalf("expected 5 requests, got %d", len(reqs))
	}
	if len(reqs[0].PreviousRequestIDs) != 0 {
		t.Errorf("first request should carry no previous IDs: %v", reqs[0].PreviousRequestIDs)
	}
	if got := reqs[1].PreviousRequestIDs; len(got) != 1 || got[0] != "r" {
		t.Errorf("second request IDs = %v, want [r]", got)
	}
	// Only the last few IDs are carried forward.
	if got := reqs[4].PreviousRequestIDs; len(got) != maxStitchIDs {
		t.Errorf("expected %d stitched IDs, got %v", maxStitchIDs, got)
	}
}

func TestSynthesizerRun_RetriesRateLimit(t *testing.T) {
	mock := NewMockTTSProvider()
	mock.RetryDelay = time.Millisecond
	attempts := 0
	mock.GenerateFn = func(ctx context.Context, req *TTSRequest) (*TTSResult, error) {
		attempts++
		if attempts == 1 {
			return nil, &RateLimitError{Message: "slow down", StatusCode: 429}
		}
		return &TTSResult{Success: true, Audio: []byte("audio"), CharCount: len(req.Text)}, nil
	}
	s := newTestSynthesizer(mock)

	var out bytes.Buffer
	if err := s.Run(context.Background(), &out, SynthesisRequest{Segments: []string{"text"}}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected retry after rate limit, got %d attempts", attempts)
	}
}

func TestSynthesizerRun_PermanentFailure(t *testing.T) {
	mock := NewMockTTSProvider()
	mock.GenerateFn = func(ctx context.Context, req *TTSRequest) (*TTSResult, error) {
		return nil, context.DeadlineExceeded // retriable, but never recovers
	}
	mock.Retries = 1
	mock.RetryDelay = time.Millisecond
	s := newTestSynthesizer(mock)

	var out bytes.Buffer
	err := s.Run(context.Background(), &out, SynthesisRequest{Segments: []string{"text"}})
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if got := mock.RequestCount(); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestSynthesizerRun_Cancelled(t *testing.T) {
	mock := NewMockTTSProvider()
	s := newTestSynthesizer(mock)

	ctx, cancel := context.WithCancel(context.Background())
	mock.GenerateFn = func(_ context.Context, req *TTSRequest) (*TTSResult, error) {
		// Cancel after the first chunk lands.
		cancel()
		return &TTSResult{Success: true, Audio: []byte("audio"), CharCount: len(req.Text)}, nil
	}

	var out bytes.Buffer
	err := s.Run(ctx, &out, SynthesisRequest{Segments: []string{"one", "two"}})
	if err != context.Canceled {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if got := mock.RequestCount(); got != 1 {
		t.Errorf("synthesis should stop at the cancelled checkpoint, got %d requests", got)
	}
}

func TestChunkText(t *testing.T) {
	t.Run("short text passes through", func(t *testing.T) {
		chunks := chunkText("short", 100)
		if len(chunks) != 1 || chunks[0] != "short" {
			t.Errorf("unexpected chunks: %v", chunks)
		}
	})

	t.Run("breaks at sentence boundaries", func(t *testing.T) {
		text := strings.TrimSpace(strings.Repeat("One sentence here. ", 50))
		chunks := chunkText(text, 200)
		for _, c := range chunks {
			if len(c) > 200 {
				t.Errorf("chunk too long: %d", len(c))
			}
		}
		for _, c := range chunks[:len(chunks)-1] {
			if !strings.HasSuffix(c, ".") {
				t.Errorf("chunk does not end at sentence: %q", c)
			}
		}
	})

	t.Run("unbreakable text is hard-split", func(t *testing.T) {
		text := strings.Repeat("x", 500)
		chunks := chunkText(text, 200)
		if len(chunks) != 3 {
			t.Errorf("expected 3 chunks, got %d", len(chunks))
		}
	})
}
