// Package clock abstracts time for the agents so that every bounded wait
// (lock grace period, CI polling, daemon sleep) can run against a fake
// clock in tests instead of real multi-second sleeps.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock provides the current time and interruptible sleeps.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is cancelled.
	Sleep(ctx context.Context, d time.Duration)
}

// Real is the wall-clock implementation used in production.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) Sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// WaitUntil polls cond every interval until it returns true, the timeout
// elapses, or ctx is cancelled. It reports whether cond became true.
// cond is always evaluated at least once.
func WaitUntil(ctx context.Context, c Clock, cond func() bool, interval, timeout time.Duration) bool {
	deadline := c.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		if !c.Now().Before(deadline) {
			return false
		}
		c.Sleep(ctx, interval)
	}
}

// Fake is a manually advanced clock for tests. Sleep advances the fake
// time immediately, so polling loops run in microseconds.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a fake clock starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Sleep(_ context.Context, d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Advance moves the fake time forward without a sleep call.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
