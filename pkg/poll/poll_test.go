package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForCompletes(t *testing.T) {
	calls := 0
	got, err := WaitFor(context.Background(), time.Millisecond, time.Second, func(context.Context) (string, bool, error) {
		calls++
		if calls < 3 {
			return "", false, nil
		}
		return "signature", true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "signature", got)
	assert.Equal(t, 3, calls)
}

func TestWaitForDeadline(t *testing.T) {
	_, err := WaitFor(context.Background(), time.Millisecond, 20*time.Millisecond, func(context.Context) (int, bool, error) {
		return 0, false, nil
	})
	assert.ErrorIs(t, err, ErrDeadline)
}

func TestWaitForProbeError(t *testing.T) {
	boom := errors.New("session failed")
	calls := 0
	_, err := WaitFor(context.Background(), time.Millisecond, time.Second, func(context.Context) (int, bool, error) {
		calls++
		return 0, false, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls, "probe errors abort immediately")
}

func TestWaitForCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := WaitFor(ctx, time.Millisecond, time.Second, func(context.Context) (int, bool, error) {
		return 0, false, nil
	})
	assert.Error(t, err)
}
