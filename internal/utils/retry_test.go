package utils

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-service/internal/logging"
)

var errBusy = errors.New("busy")

func isBusy(err error) bool { return errors.Is(err, errBusy) }

func TestRetryOn(t *testing.T) {
	logger := logging.NewWithWriter(io.Discard, "error")
	ctx := context.Background()

	t.Run("exhausts attempts", func(t *testing.T) {
		calls := 0
		err := RetryOn(ctx, logger, 3, time.Millisecond, isBusy, func(int) error {
			calls++
			return errBusy
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, errBusy)
		assert.Equal(t, 3, calls)
	})

	t.Run("succeeds on last attempt", func(t *testing.T) {
		calls := 0
		err := RetryOn(ctx, logger, 3, time.Millisecond, isBusy, func(attempt int) error {
			calls++
			if attempt < 3 {
				return errBusy
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("non retryable returns at once", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := RetryOn(ctx, logger, 3, time.Millisecond, isBusy, func(int) error {
			calls++
			return boom
		})
		assert.Same(t, boom, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("increasing delay", func(t *testing.T) {
		start := time.Now()
		_ = RetryOn(ctx, logger, 3, 10*time.Millisecond, isBusy, func(int) error { return errBusy })
		// waits 10ms then 20ms
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("context canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := RetryOn(cctx, logger, 3, time.Second, isBusy, func(int) error { return errBusy })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRetry(t *testing.T) {
	logger := logging.NewWithWriter(io.Discard, "error")
	calls := 0
	err := Retry(logger, 2, time.Millisecond, func() error {
		calls++
		return errBusy
	})
	assert.ErrorIs(t, err, errBusy)
	assert.Equal(t, 2, calls)
}
