// Package pace draws jittered delays and sleeps with cancellation.
package pace

import (
	"context"
	"math/rand"
	"time"
)

// Range is a closed interval of durations from which jitter is drawn.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Pick draws a uniform duration from the range. An empty range yields Min.
func (r Range) Pick() time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rand.Int63n(int64(r.Max-r.Min)+1))
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the production SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
