package extract

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitForSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	err := WaitFor(context.Background(), time.Second, time.Millisecond, func(context.Context) (bool, error) {
		return calls.Add(1) >= 3, nil
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, calls.Load())
}

func TestWaitForTimesOut(t *testing.T) {
	t.Parallel()

	err := WaitFor(context.Background(), 20*time.Millisecond, time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	})
	require.ErrorIs(t, err, ErrWaitTimeout)
}

func TestWaitForKeepsPollingThroughErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("context destroyed")
	var calls atomic.Int32
	err := WaitFor(context.Background(), time.Second, time.Millisecond, func(context.Context) (bool, error) {
		if calls.Add(1) < 3 {
			return false, boom
		}
		return true, nil
	})
	require.NoError(t, err)

	err = WaitFor(context.Background(), 10*time.Millisecond, time.Millisecond, func(context.Context) (bool, error) {
		return false, boom
	})
	require.ErrorIs(t, err, ErrWaitTimeout)
	require.ErrorIs(t, err, boom)
}

func TestWaitForParentCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitFor(ctx, time.Second, time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, ErrWaitTimeout)
}
