package adapter

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/tiangong-ai/greenlit/internal/log"
)

// RetryPolicy is the single shared backoff policy for adapter invocations.
// It is injected into Invoke rather than duplicated per adapter.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	Jitter      bool
	// Deadline bounds one invocation including all retries. Zero disables.
	Deadline time.Duration
}

// DefaultRetryPolicy mirrors the tuning the upstream services tolerate well:
// three attempts, exponential backoff from one second, capped deadline.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2,
		Jitter:      true,
		Deadline:    2 * time.Minute,
	}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
	}
	if p.Jitter {
		d += time.Duration(rand.Int63n(int64(p.BaseDelay)/2 + 1)) //nolint:gosec // jitter needs no crypto rand
	}
	return d
}

// Invoke runs fn under the retry policy. Only transient failures (network,
// rate_limited) are retried; terminal kinds fail immediately. On exhaustion
// the last typed error is returned unchanged so the taxonomy survives for the
// caller. A policy deadline overrun surfaces as a network-class error rather
// than hanging the process.
func Invoke(ctx context.Context, policy RetryPolicy, sourceID string, fn func(context.Context) (any, error)) (any, error) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.Deadline)
		defer cancel()
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		payload, err := fn(ctx)
		if err == nil {
			return payload, nil
		}
		lastErr = err

		if !KindOf(err).Retryable() {
			return nil, err
		}
		if attempt == policy.MaxAttempts {
			break
		}

		wait := policy.delay(attempt)
		log.Debug(log.CatAdapter, "retrying after transient failure",
			"source", sourceID, "attempt", attempt, "wait", wait, "kind", KindOf(err))

		select {
		case <-ctx.Done():
			return nil, deadlineError(sourceID, ctx.Err(), lastErr)
		case <-time.After(wait):
		}
	}

	if ctx.Err() != nil && !errors.As(lastErr, new(*Error)) {
		return nil, deadlineError(sourceID, ctx.Err(), lastErr)
	}
	return nil, lastErr
}

func deadlineError(sourceID string, ctxErr, lastErr error) error {
	if lastErr != nil {
		return NewError(KindNetwork, sourceID, errors.Join(ctxErr, lastErr))
	}
	return NewError(KindNetwork, sourceID, ctxErr)
}
