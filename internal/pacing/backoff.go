package pacing

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Backoff computes retry delays: exponential doubling from Base with a
// multiplicative jitter in [1, 2), capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBackoff creates a Backoff with the given base and cap.
func NewBackoff(base, max time.Duration) *Backoff {
	return &Backoff{
		Base: base,
		Max:  max,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // jitter, not crypto
	}
}

// Delay returns the wait before retry attempt n (1-based).
func (b *Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}

	b.mu.Lock()
	jitter := 1 + b.rng.Float64()
	b.mu.Unlock()

	d = time.Duration(float64(d) * jitter)
	if d > b.Max {
		d = b.Max
	}
	return d
}

// Sleep waits for d or until ctx is cancelled, returning the context error
// in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
