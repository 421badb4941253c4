package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// Backoff describes the delays between connection attempts. Zero fields take
// the values of DefaultBackoff.
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
	Factor   float64
	// Jitter spreads each delay by up to ±Jitter of itself.
	Jitter float64
}

var DefaultBackoff = Backoff{
	Attempts: 5,
	Initial:  200 * time.Millisecond,
	Max:      5 * time.Second,
	Factor:   2,
	Jitter:   0.1,
}

func (b Backoff) normalized() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = DefaultBackoff.Attempts
	}
	if b.Initial <= 0 {
		b.Initial = DefaultBackoff.Initial
	}
	if b.Max <= 0 {
		b.Max = DefaultBackoff.Max
	}
	if b.Factor < 1 {
		b.Factor = DefaultBackoff.Factor
	}
	if b.Jitter < 0 || b.Jitter >= 1 {
		b.Jitter = DefaultBackoff.Jitter
	}
	return b
}

// Delay is the wait after the given failed attempt (1-based), capped at Max.
func (b Backoff) Delay(attempt int) time.Duration {
	b = b.normalized()
	d := float64(b.Initial) * math.Pow(b.Factor, float64(attempt-1))
	d *= 1 + b.Jitter*(2*rand.Float64()-1)
	return time.Duration(min(d, float64(b.Max)))
}

// Retry calls fn until it succeeds, the attempts run out or ctx is done.
// Only connection setup goes through here; evaluation errors are data
// problems and are never retried.
func Retry(ctx context.Context, name string, b Backoff, fn func(ctx context.Context) error) error {
	b = b.normalized()
	log := slog.Default().With("component", "retry", "operation", name)
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			if attempt > 1 {
				log.Info("connected after retry", "attempt", attempt)
			}
			return nil
		}
		if attempt == b.Attempts {
			return fmt.Errorf("%s: giving up after %d attempts: %w", name, attempt, err)
		}
		delay := b.Delay(attempt)
		log.Warn("attempt failed", "attempt", attempt, "of", b.Attempts, "error", err, "retry_in", delay)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: retry abandoned: %w", name, ctx.Err())
		}
	}
}
