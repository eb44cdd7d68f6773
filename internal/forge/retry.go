package forge

import (
	"context"
	"fmt"
	"time"

	"github.com/workhive/workhive/internal/clock"
	"github.com/workhive/workhive/internal/debug"
)

const (
	retryAttempts = 3
	retryBackoff  = 500 * time.Millisecond
)

// WithRetry runs fn up to three times with a growing backoff. Remote reads
// and writes fail transiently; anything still failing after the last
// attempt surfaces to the caller's poll loop.
func WithRetry[T any](clk clock.Clock, op string, fn func() (T, error)) (T, error) {
	var zero T
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			clk.Sleep(context.Background(), time.Duration(attempt)*retryBackoff)
		}
		var v T
		if v, err = fn(); err == nil {
			return v, nil
		}
		debug.Logf("forge: %s attempt %d failed: %v", op, attempt+1, err)
	}
	return zero, fmt.Errorf("%s: %w", op, err)
}

// WithRetryErr is WithRetry for operations without a return value.
func WithRetryErr(clk clock.Clock, op string, fn func() error) error {
	_, err := WithRetry(clk, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
