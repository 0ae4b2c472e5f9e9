// Package ratelimit implements the embedder's dual requests-per-minute
// and tokens-per-minute limiter, 429 backoff at [1s, 2s, 5s, 10s], and a
// bounded wait queue so a burst of callers fails fast rather than piling
// up unboundedly.
//
// Each axis is a golang.org/x/time/rate token bucket that refills at
// rpm/60 (or tpm/60) per second and holds at most one minute's budget.
// It is not a sliding one-minute window: a full bucket plus its refill
// can admit up to twice the per-minute budget within one minute. Two
// limiters (requests, tokens) run side by side since a single bucket
// cannot represent a TPM budget consumed in variable-sized chunks per call.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/codevault/codevault/internal/cverr"
)

// backoffSchedule is the fixed retry delay ladder for HTTP 429 responses.
var backoffSchedule = []time.Duration{1 * time.Second, 2 * time.Second, 5 * time.Second, 10 * time.Second}

// DefaultQueueSize bounds how many callers may be waiting on the limiter
// at once before new callers are rejected outright.
const DefaultQueueSize = 10000

// Limiter enforces simultaneous RPM and TPM budgets.
type Limiter struct {
	requests *rate.Limiter
	tokens   *rate.Limiter
	queue    chan struct{}
}

// New builds a Limiter allowing rpm requests and tpm tokens per minute.
// A zero value disables that axis's enforcement. queueSize bounds the
// number of callers permitted to wait for a slot concurrently.
func New(rpm, tpm, queueSize int) *Limiter {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	l := &Limiter{queue: make(chan struct{}, queueSize)}
	if rpm > 0 {
		l.requests = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm)
	}
	if tpm > 0 {
		l.tokens = rate.NewLimiter(rate.Limit(float64(tpm)/60.0), tpm)
	}
	return l
}

// Wait blocks until both the request and token budgets admit one call
// consuming estimatedTokens, or ctx is cancelled, or the wait queue is
// full (KindRateLimited).
func (l *Limiter) Wait(ctx context.Context, estimatedTokens int) error {
	select {
	case l.queue <- struct{}{}:
		defer func() { <-l.queue }()
	default:
		return cverr.New(cverr.KindRateLimited, "rate limiter wait queue is full")
	}

	if l.requests != nil {
		if err := l.requests.Wait(ctx); err != nil {
			return cverr.Wrap(cverr.KindRateLimited, "request budget wait", err)
		}
	}
	if l.tokens != nil && estimatedTokens > 0 {
		if err := l.tokens.WaitN(ctx, estimatedTokens); err != nil {
			return cverr.Wrap(cverr.KindRateLimited, "token budget wait", err)
		}
	}
	return nil
}

// BackoffDelay returns the delay to sleep before retrying the attempt'th
// (0-indexed) 429 response, clamped to the longest scheduled delay once
// attempts exceed the schedule's length.
func BackoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(backoffSchedule) {
		attempt = len(backoffSchedule) - 1
	}
	return backoffSchedule[attempt]
}

// MaxAttempts is the number of 429 retries BackoffDelay has an explicit
// schedule entry for.
func MaxAttempts() int {
	return len(backoffSchedule)
}
