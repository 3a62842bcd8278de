package crawler

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces out fetches of discovered links.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows one fetch per delay. A non-positive delay disables limiting.
// The limiter starts empty, so even the first Wait blocks for a full delay.
func NewRateLimiter(delay time.Duration) *RateLimiter {
	if delay <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	l := rate.NewLimiter(rate.Every(delay), 1)
	l.Allow()
	return &RateLimiter{limiter: l}
}

// Mark takes the available token without blocking, so the next Wait is a full delay
// after this fetch.
func (r *RateLimiter) Mark() {
	r.limiter.Allow()
}

// Wait blocks until the next fetch is allowed or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
