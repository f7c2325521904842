package reindex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryWithBackoff(t *testing.T) {
	t.Run("succeeds first attempt", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), nil, func() error {
			calls++
			return nil
		}, 3, time.Millisecond)

		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("succeeds after retries", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), nil, func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		}, 5, time.Millisecond)

		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		boom := errors.New("permanent")
		calls := 0
		err := RetryWithBackoff(context.Background(), nil, func() error {
			calls++
			return boom
		}, 3, time.Millisecond)

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 3, calls)
	})

	t.Run("invalid max attempts", func(t *testing.T) {
		err := RetryWithBackoff(context.Background(), nil, func() error { return nil }, 0, time.Millisecond)
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := RetryWithBackoff(ctx, nil, func() error {
			calls++
			cancel()
			return errors.New("transient")
		}, 5, 10*time.Second)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	t.Run("pre-cancelled context never runs", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		err := RetryWithBackoff(ctx, nil, func() error {
			calls++
			return nil
		}, 3, time.Millisecond)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, calls)
	})
}
