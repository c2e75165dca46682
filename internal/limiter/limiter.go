package limiter

import (
	"context"
	"time"
)

// TokenBucket paces the candidate feed using integer nanosecond arithmetic.
// Avoids float64 accumulation drift over long continuous runs.
// Not safe for concurrent use; the feeding loop owns it.
type TokenBucket struct {
	rateNsPerToken int64 // Nanoseconds per token (1e9 / rate)
	bucketSize     int64 // Maximum tokens
	tokens         int64
	lastCheck      int64 // UnixNano
}

// NewTokenBucket creates a limiter with the given rate (candidates/s) and burst size.
// A non-positive rate returns nil, and a nil bucket never waits.
func NewTokenBucket(rate int, burst int) *TokenBucket {
	if rate <= 0 {
		return nil
	}
	nsPerToken := int64(1e9) / int64(rate)
	if nsPerToken < 1 {
		nsPerToken = 1
	}
	burstInt := int64(burst)
	if burstInt < 1 {
		burstInt = 1
	}
	return &TokenBucket{
		rateNsPerToken: nsPerToken,
		bucketSize:     burstInt,
		tokens:         burstInt,
		lastCheck:      time.Now().UnixNano(),
	}
}

// Wait blocks until n tokens are available or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context, n int) error {
	if tb == nil {
		return ctx.Err()
	}
	needed := int64(n)

	now := time.Now().UnixNano()
	elapsed := now - tb.lastCheck
	tb.lastCheck = now

	tb.tokens += elapsed / tb.rateNsPerToken
	if tb.tokens > tb.bucketSize {
		tb.tokens = tb.bucketSize
	}

	if tb.tokens >= needed {
		tb.tokens -= needed
		return nil
	}

	// Sleep for exactly the deficit, then consume everything.
	missing := needed - tb.tokens
	timer := time.NewTimer(time.Duration(missing * tb.rateNsPerToken))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	tb.tokens = 0
	tb.lastCheck = time.Now().UnixNano()
	return nil
}
