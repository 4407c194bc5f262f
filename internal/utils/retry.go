package utils

import (
	"context"
	"fmt"
	"time"

	"dispatch-service/internal/logging"
)

// Retry runs fn up to maxAttempts times with a fixed delay between attempts.
func Retry(logger *logging.Logger, maxAttempts int, delay time.Duration, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := fn(); err != nil {
			lastErr = err
			logger.Errorf("Attempt %d/%d failed: %v", attempt, maxAttempts, err)
			if attempt < maxAttempts {
				time.Sleep(delay)
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}

// RetryOn runs fn while it fails with an error accepted by retryable, at most
// maxAttempts times. The wait before attempt n+1 is base*n. Other errors are
// returned immediately. The final error wraps the last failure.
func RetryOn(ctx context.Context, logger *logging.Logger, maxAttempts int, base time.Duration, retryable func(error) bool, fn func(attempt int) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
		logger.Warnf("Attempt %d/%d failed: %v", attempt, maxAttempts, err)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry interrupted after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(base * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}
