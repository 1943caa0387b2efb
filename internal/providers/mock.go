package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockTTSName = "mock"

// MockTTSProvider is a TTSProvider for testing.
type MockTTSProvider struct {
	// Configurable behavior
	Latency    time.Duration
	ShouldFail bool
	FailAfter  int    // Fail after N requests (0 = never)
	Audio      []byte // Audio bytes returned per request
	GenerateFn func(ctx context.Context, req *TTSRequest) (*TTSResult, error)

	// Rate limiting
	RPS         float64
	Concurrency int
	Retries     int
	RetryDelay  time.Duration

	// State
	requestCount atomic.Int64

	mu       sync.Mutex
	requests []*TTSRequest
}

// NewMockTTSProvider creates a new mock TTS provider with sensible defaults.
func NewMockTTSProvider() *MockTTSProvider {
	return &MockTTSProvider{
		Latency:     time.Millisecond,
		Audio:       []byte("mock-audio"),
		RPS:         100,
		Concurrency: 10,
		Retries:     3,
		RetryDelay:  time.Millisecond,
	}
}

// Name returns the provider identifier.
func (p *MockTTSProvider) Name() string {
	return MockTTSName
}

// RequestsPerSecond returns the configured rate limit.
func (p *MockTTSProvider) RequestsPerSecond() float64 {
	return p.RPS
}

// MaxConcurrency returns the configured concurrency limit.
func (p *MockTTSProvider) MaxConcurrency() int {
	return p.Concurrency
}

// MaxRetries returns the configured retry attempts.
func (p *MockTTSProvider) MaxRetries() int {
	return p.Retries
}

// RetryDelayBase returns the configured base retry delay.
func (p *MockTTSProvider) RetryDelayBase() time.Duration {
	return p.RetryDelay
}

// HealthCheck always succeeds unless ShouldFail is set.
func (p *MockTTSProvider) HealthCheck(ctx context.Context) error {
	if p.ShouldFail {
		return fmt.Errorf("mock health check failure")
	}
	return nil
}

// Generate records the request and returns configured audio or an error.
func (p *MockTTSProvider) Generate(ctx context.Context, req *TTSRequest) (*TTSResult, error) {
	count := p.requestCount.Add(1)

	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.GenerateFn != nil {
		return p.GenerateFn(ctx, req)
	}

	if p.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.Latency):
		}
	}

	if p.ShouldFail || (p.FailAfter > 0 && count > int64(p.FailAfter)) {
		err := fmt.Errorf("mock generation failure")
		return &TTSResult{
			Success:      false,
			ErrorMessage: err.Error(),
			CharCount:    len(req.Text),
		}, err
	}

	return &TTSResult{
		Success:   true,
		Audio:     p.Audio,
		CharCount: len(req.Text),
	}, nil
}

// RequestCount returns the number of Generate calls observed.
func (p *MockTTSProvider) RequestCount() int64 {
	return p.requestCount.Load()
}

// Requests returns a copy of the recorded requests.
func (p *MockTTSProvider) Requests() []*TTSRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*TTSRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

// Reset clears the request counter and recorded requests.
func (p *MockTTSProvider) Reset() {
	p.requestCount.Store(0)
	p.mu.Lock()
	p.requests = nil
	p.mu.Unlock()
}

// ListVoices returns a fixed voice list.
func (p *MockTTSProvider) ListVoices(_ context.Context) ([]Voice, error) {
	return []Voice{
		{VoiceID: "mock-1", Name: "Mock One"},
		{VoiceID: "mock-2", Name: "Mock Two"},
	}, nil
}

var _ TTSProvider = (*MockTTSProvider)(nil)
var _ VoicesLister = (*MockTTSProvider)(nil)
