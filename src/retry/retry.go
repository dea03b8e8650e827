// Package retry provides the bounded retry policy shared by market-data
// fetches and order submission.
package retry

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
)

const (
	defaultMaxAttempts = 4
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 8 * time.Second
)

// Policy describes how many times an operation may run and how long to
// wait between attempts.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy mirrors the broker client defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   defaultBaseDelay,
		MaxDelay:    defaultMaxDelay,
	}
}

// Backoff returns the delay before the given 1-based attempt, doubling
// from BaseDelay and capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Do runs fn up to MaxAttempts times, sleeping Backoff between attempts.
// A nil error or a non-retryable error stops the loop immediately. Every
// retry emits its own trace entry.
func (p Policy) Do(ctx context.Context, op string, retryable func(error) bool, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := p.Backoff(attempt)
		logger.WithFields(map[string]interface{}{
			"op":      op,
			"attempt": attempt,
			"delay":   delay.String(),
		}).WithError(err).Warn("retrying after failure")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
