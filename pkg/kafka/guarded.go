package kafka

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/resilience"
)

// Guarded bounds every publish with a timeout and stops calling next while
// its circuit breaker is open, so an unreachable broker costs one timeout
// per reset window instead of one per event.
type Guarded struct {
	next    Publisher
	breaker *resilience.Breaker
	timeout time.Duration
}

func NewGuarded(next Publisher, timeout time.Duration, cfg resilience.BreakerConfig) *Guarded {
	return &Guarded{
		next:    next,
		breaker: resilience.NewBreaker("kafka-publish", cfg),
		timeout: timeout,
	}
}

func (g *Guarded) Publish(ctx context.Context, event Event) error {
	return g.breaker.Do(func() error {
		if g.timeout <= 0 {
			return g.next.Publish(ctx, event)
		}
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return g.next.Publish(ctx, event)
	})
}

func (g *Guarded) Close() error {
	return g.next.Close()
}
