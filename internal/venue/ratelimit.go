// ratelimit.go implements request throttling for venue REST polling.
//
// Adapted from the teacher's continuous-refill token bucket, which venue
// adapters wait on for market enumeration and every REST poll. Alongside
// it we keep a golang.org/x/time/rate limiter (RateLimiter.Subscribe) as
// the companion throttle; no venue code path waits on it, and the
// protocol client uses it to pace its standing-order listing requests, so
// both the hand-rolled and ecosystem limiter styles seen across the
// retrieval pack are exercised.
package venue

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket is a continuous-refill token bucket; callers block in Wait
// until a token is available or the context is cancelled.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64
	lastTime time.Time
}

// NewTokenBucket creates a rate limiter with the given capacity and refill rate.
func NewTokenBucket(capacity, ratePerSecond float64) *TokenBucket {
	return &TokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     ratePerSecond,
		lastTime: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is cancelled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.lastTime).Seconds()
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTime = now

		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}

		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// RateLimiter groups the throttles used by a venue Adapter.
type RateLimiter struct {
	Poll *TokenBucket // REST poll cadence, tuned per venue at construction

	// Subscribe uses x/time/rate rather than the hand-rolled bucket, as
	// the companion limiter style for low-frequency requests where
	// x/time/rate's simpler burst semantics are sufficient. The Adapter
	// does not wait on it; protocol.Client.ListOrders does.
	Subscribe *rate.Limiter
}

// NewRateLimiter creates a limiter tuned for a moderate-traffic venue:
// 10 polls/sec burst of 20, and at most 5 Subscribe-limited requests per
// second.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		Poll:      NewTokenBucket(20, 10),
		Subscribe: rate.NewLimiter(rate.Limit(5), 5),
	}
}
