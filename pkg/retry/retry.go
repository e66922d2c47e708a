// Package retry implements a bounded retry loop with linear backoff for
// operations that can fail transiently, such as optimistic-lock writes.
package retry

import (
	"context"
	"time"
)

// Do runs fn up to attempts times. After a failed attempt n (when fn returned
// an error accepted by retryable), it sleeps interval*n before the next
// attempt. The sleep is cancellable: if ctx is done during the pause, Do
// returns ctx.Err() immediately. A nil error or a non-retryable error is
// returned as-is; after the final attempt the last error is returned.
func Do(ctx context.Context, attempts int, interval time.Duration, retryable func(error) bool, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil || !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if serr := sleep(ctx, time.Duration(attempt)*interval); serr != nil {
			return serr
		}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
