package pipeline

import (
	"context"
	"time"
)

// DelayFunc waits for d or until the context ends. Tests inject a no-op to
// keep backfill runs instant.
type DelayFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
