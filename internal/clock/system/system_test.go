package system

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNowIsUTC(t *testing.T) {
	t.Parallel()

	c := New()
	require.Equal(t, time.UTC, c.Now().Location())
}

func TestSleepReturnsAfterDuration(t *testing.T) {
	t.Parallel()

	c := New()
	start := time.Now()
	require.NoError(t, c.Sleep(context.Background(), 10*time.Millisecond))
	require.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestSleepUnblocksOnCancel(t *testing.T) {
	t.Parallel()

	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := c.Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), time.Second)
}

func TestSleepZeroDuration(t *testing.T) {
	t.Parallel()

	c := New()
	require.NoError(t, c.Sleep(context.Background(), 0))
}
