package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket shared by every synthesis request to
// one provider. The bucket holds a minute's worth of requests and
// refills continuously.
type RateLimiter struct {
	mu sync.Mutex

	limit      int     // bucket capacity, requests per minute
	perSecond  float64 // refill rate
	tokens     float64
	lastUpdate time.Time

	totalConsumed int64
	last429       time.Time
}

// RateLimiterStatus is a snapshot of limiter state.
type RateLimiterStatus struct {
	TokensAvailable int
	TokensLimit     int
	TotalConsumed   int64
	Last429Time     time.Time
}

// NewRateLimiter creates a limiter allowing requestsPerMinute requests.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 150
	}
	return &RateLimiter{
		limit:      requestsPerMinute,
		perSecond:  float64(requestsPerMinute) / 60.0,
		tokens:     float64(requestsPerMinute),
		lastUpdate: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1.0 {
			r.tokens--
			r.totalConsumed++
			r.mu.Unlock()
			return nil
		}
		wait := time.Duration((1.0-r.tokens)/r.perSecond*1000) * time.Millisecond
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// TryConsume takes a token without blocking, reporting whether one was
// available.
func (r *RateLimiter) TryConsume() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	if r.tokens >= 1.0 {
		r.tokens--
		r.totalConsumed++
		return true
	}
	return false
}

// Record429 notes a rate-limit response from the provider. When the
// provider supplied a Retry-After, the bucket is drained so callers
// back off for the full window.
func (r *RateLimiter) Record429(retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last429 = time.Now()
	if retryAfter > 0 {
		r.tokens = 0
	}
}

// Status returns a snapshot of the limiter.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		TokensLimit:     r.limit,
		TotalConsumed:   r.totalConsumed,
		Last429Time:     r.last429,
	}
}

// refill adds tokens for elapsed time. Caller holds mu.
func (r *RateLimiter) refill() {
	now := time.Now()
	r.tokens += now.Sub(r.lastUpdate).Seconds() * r.perSecond
	r.lastUpdate = now
	if r.tokens > float64(r.limit) {
		r.tokens = float64(r.limit)
	}
}
