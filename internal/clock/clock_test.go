package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitUntilConditionBecomesTrue(t *testing.T) {
	fake := NewFake(time.Unix(1000, 0))
	calls := 0

	ok := WaitUntil(context.Background(), fake, func() bool {
		calls++
		return calls >= 3
	}, 30*time.Second, 10*time.Minute)

	require.True(t, ok)
	require.Equal(t, 3, calls)
	// Two sleeps of the poll interval happened before success.
	require.Equal(t, time.Unix(1060, 0), fake.Now())
}

func TestWaitUntilTimesOut(t *testing.T) {
	fake := NewFake(time.Unix(0, 0))
	calls := 0

	ok := WaitUntil(context.Background(), fake, func() bool {
		calls++
		return false
	}, 30*time.Second, 600*time.Second)

	require.False(t, ok)
	// 600s budget at 30s interval: 21 evaluations (one per interval plus the initial).
	require.Equal(t, 21, calls)
}

func TestWaitUntilRespectsCancel(t *testing.T) {
	fake := NewFake(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok := WaitUntil(ctx, fake, func() bool { return false }, time.Second, time.Hour)
	require.False(t, ok)
}

func TestFakeAdvance(t *testing.T) {
	fake := NewFake(time.Unix(100, 0))
	fake.Advance(5 * time.Minute)
	require.Equal(t, time.Unix(400, 0), fake.Now())
}
