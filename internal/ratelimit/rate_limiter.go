// rate_limiter.go - Rate limiting to keep hosted engines under their request quota

package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces out engine calls. A nil *RateLimiter never waits.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows perMinute calls per minute with a burst of the same size.
// It returns nil when perMinute is not positive.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	every := time.Minute / time.Duration(perMinute)
	return &RateLimiter{limiter: rate.NewLimiter(rate.Every(every), perMinute)}
}

// Wait blocks until a call is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return nil
	}
	return rl.limiter.Wait(ctx)
}
