package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/lamp-controller/internal/logger"
)

// Policy is an exponential backoff for flag writes. It is immutable after construction.
type Policy struct {
	Attempts int           // total tries including the first
	Initial  time.Duration // delay before the first retry
	Max      time.Duration // cap for growth
}

// DefaultPolicy returns 3 attempts growing from 50ms to at most 500ms.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, Initial: 50 * time.Millisecond, Max: 500 * time.Millisecond}
}

// NewPolicy builds a policy; zero or invalid values fall back to defaults.
func NewPolicy(attempts int, initial, maxDelay time.Duration) Policy {
	p := DefaultPolicy()
	if attempts > 0 {
		p.Attempts = attempts
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the wait before retry n (1-based).
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	d := p.Initial
	for i := 1; i < n; i++ {
		d *= 2
		if d >= p.Max {
			return p.Max
		}
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// RetryingStore retries failed writes of an inner Store. Reads are not retried.
type RetryingStore struct {
	inner  Store
	policy Policy
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryingStore wraps inner with the given policy.
func NewRetryingStore(inner Store, policy Policy) *RetryingStore {
	return &RetryingStore{inner: inner, policy: policy, sleep: sleepCtx}
}

// GetFlag delegates to the inner store.
func (r *RetryingStore) GetFlag(ctx context.Context, key Key) (bool, error) {
	return r.inner.GetFlag(ctx, key)
}

// SetFlag writes through the inner store, retrying until the policy is exhausted.
func (r *RetryingStore) SetFlag(ctx context.Context, key Key, value bool) error {
	var err error
	for attempt := 1; attempt <= r.policy.Attempts; attempt++ {
		if err = r.inner.SetFlag(ctx, key, value); err == nil {
			return nil
		}
		if errors.Is(err, ErrClosed) || attempt == r.policy.Attempts {
			break
		}

		delay := r.policy.Delay(attempt)
		logger.WarnKV(ctx, "flag write failed, retrying",
			"key", key, "attempt", attempt, "delay", delay, "error", err)

		if serr := r.sleep(ctx, delay); serr != nil {
			return fmt.Errorf("write flag %s: %w (retry aborted: %w)", key, err, serr)
		}
	}

	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
