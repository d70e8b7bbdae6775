package reasoning

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/aristath/conductor/internal/config"
)

// Resilient wraps a Runner with exponential-backoff retry and a circuit
// breaker. This is the only place retry policy lives: the engine observes a
// single attempt either way, so completing a task stays at-most-once.
type Resilient struct {
	inner Runner
	cb    *gobreaker.CircuitBreaker
	cfg   config.RetryConfig
}

// NewResilient wraps inner with the given retry policy.
func NewResilient(inner Runner, cfg config.RetryConfig) *Resilient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "reasoning",
		MaxRequests: 3, // Allow 3 test requests in half-open state
		Interval:    0, // Don't clear counts automatically
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Don't count caller cancellation as a runner failure
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return false
		},
	})

	return &Resilient{inner: inner, cb: cb, cfg: cfg}
}

// Run executes the request, retrying transient failures with exponential
// backoff. Circuit-open and context-cancellation errors are not retried.
func (r *Resilient) Run(ctx context.Context, req Request) (*Result, error) {
	var result *Result

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		out, err := r.cb.Execute(func() (interface{}, error) {
			return r.inner.Run(ctx, req)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}

		result = out.(*Result)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Duration(r.cfg.InitialIntervalMS) * time.Millisecond
	policy.MaxInterval = time.Duration(r.cfg.MaxIntervalMS) * time.Millisecond
	policy.MaxElapsedTime = time.Duration(r.cfg.MaxElapsedMS) * time.Millisecond
	policy.Multiplier = r.cfg.Multiplier
	policy.RandomizationFactor = r.cfg.RandomizationFactor

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return result, nil
}
