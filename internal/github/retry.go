// internal/github/retry.go
package github

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryPolicy configures backoff for rate-limited search requests.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt. Zero disables retrying.
	MaxRetries int
	// InitialBackoff is the delay before the first retry, before jitter.
	InitialBackoff time.Duration
	// MaxBackoff caps every computed delay, before jitter.
	MaxBackoff time.Duration
	// Multiplier grows the delay after each retry. Values below 1 are treated as 1.
	Multiplier float64
}

// DefaultRetryPolicy returns 3 retries starting at 1s, doubling, capped at 60s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		InitialBackoff: time.Second,
		MaxBackoff:     60 * time.Second,
		Multiplier:     2.0,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialBackoff < 0 {
		p.InitialBackoff = 0
	}
	if p.MaxBackoff < 0 {
		p.MaxBackoff = 0
	}
	if p.InitialBackoff > p.MaxBackoff {
		p.InitialBackoff = p.MaxBackoff
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return p
}

// next returns min(current*Multiplier, MaxBackoff). It never returns less than current.
func (p RetryPolicy) next(current time.Duration) time.Duration {
	grown := float64(current) * p.Multiplier
	if grown >= float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	if d := time.Duration(grown); d > current {
		return d
	}
	return current
}

// Schedule returns the un-jittered delays slept before each of the first n retries.
func (p RetryPolicy) Schedule(n int) []time.Duration {
	p = p.normalized()
	if n > p.MaxRetries {
		n = p.MaxRetries
	}
	delays := make([]time.Duration, 0, n)
	backoff := p.InitialBackoff
	for i := 0; i < n; i++ {
		delays = append(delays, backoff)
		backoff = p.next(backoff)
	}
	return delays
}

// quarterJitter returns a uniform value in [0, backoff/4].
func quarterJitter(backoff time.Duration) time.Duration {
	limit := backoff / 4
	if limit <= 0 {
		return 0
	}
	return rand.N(limit + 1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
