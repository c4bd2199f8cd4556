package dialogue

import (
	"context"
	"errors"
	"time"
)

func (r *Runner) callContext(ctx context.Context, started time.Time) (context.Context, context.CancelFunc) {
	if r.cfg.MaxDuration <= 0 {
		return ctx, func() {}
	}
	deadline := started.Add(r.cfg.MaxDuration)
	if parentDeadline, ok := ctx.Deadline(); ok && parentDeadline.Before(deadline) {
		deadline = parentDeadline
	}
	return context.WithDeadline(ctx, deadline)
}

func (r *Runner) durationStatusOnAgentError(started time.Time, err error) (string, bool) {
	if err == nil {
		return "", false
	}
	if errors.Is(err, context.DeadlineExceeded) && reachedDurationLimit(started, r.cfg.MaxDuration) {
		return StatusDurationReached, true
	}
	return "", false
}

func reachedDurationLimit(started time.Time, maxDuration time.Duration) bool {
	return maxDuration > 0 && time.Since(started) >= maxDuration
}

func reachedTokenLimit(totalTokens int, maxTotalTokens int) bool {
	return maxTotalTokens > 0 && totalTokens >= maxTotalTokens
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
