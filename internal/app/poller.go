package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPollInterval = 30 * time.Second
	maxBackoff          = 5 * time.Minute
)

// StartPoller launches a background goroutine that keeps tests and
// statistics fresh while a patient is signed in. Consecutive failures
// stretch the interval exponentially. The returned channel is closed once
// the goroutine exits after ctx is cancelled.
func StartPoller(ctx context.Context, ctrl *Controller, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		timer := time.NewTimer(interval)
		defer timer.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			if err := ctrl.sync(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				failures++
				ctrl.logger.Warn("background refresh failed",
					zap.Error(err),
					zap.Int("failures", failures),
				)
			} else {
				failures = 0
			}
			timer.Reset(calculateBackoff(failures, interval))
		}
	}()
	return done
}

// calculateBackoff doubles base for every consecutive failure, capped at
// maxBackoff. A base above the cap is returned unchanged.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 || base >= maxBackoff {
		return base
	}
	backoff := base
	for range failures {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
