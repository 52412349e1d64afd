package lib

import (
	"context"
	"fmt"
	"time"
)

// Eventually polls condition every interval until it returns true, the timeout
// elapses or ctx is done.
func Eventually(ctx context.Context, condition func() bool, timeout time.Duration, interval time.Duration, msgAndArgs ...interface{}) error {
	deadline := time.Now().Add(timeout)
	for now := time.Now(); now.Before(deadline); now = time.Now() {
		if condition() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	msg := "condition not met within timeout"
	if len(msgAndArgs) > 0 {
		if format, ok := msgAndArgs[0].(string); ok {
			msg = fmt.Sprintf(format, msgAndArgs[1:]...)
		}
	}
	return fmt.Errorf("%s: %s", msg, timeout)
}
