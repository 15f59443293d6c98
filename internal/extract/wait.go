package extract

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrWaitTimeout is returned by WaitFor when the condition is not met in time.
var ErrWaitTimeout = errors.New("wait timed out")

// Condition reports whether a wait is over. Errors count as "not yet".
type Condition func(ctx context.Context) (bool, error)

const defaultPollInterval = 100 * time.Millisecond

// WaitFor polls cond every interval until it returns true or timeout
// elapses. Cancellation of ctx is returned as ctx.Err().
func WaitFor(ctx context.Context, timeout, interval time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		ok, err := cond(waitCtx)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if lastErr != nil {
				return fmt.Errorf("%w after %s: %w", ErrWaitTimeout, timeout, lastErr)
			}
			return fmt.Errorf("%w after %s", ErrWaitTimeout, timeout)
		case <-ticker.C:
		}
	}
}
