package helpers

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindsUnwrap(t *testing.T) {
	err := NewSnapshotError("live snapshot unreadable", io.ErrUnexpectedEOF)
	assert.Equal(t, "live snapshot unreadable: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	var snapErr *SnapshotError
	wrapped := errors.Join(errors.New("context"), err)
	assert.True(t, errors.As(wrapped, &snapErr))

	var timeoutErr *TimeoutError
	assert.False(t, errors.As(wrapped, &timeoutErr))
}

func TestValidationErrorMessage(t *testing.T) {
	err := NewValidationError("bar %d missing %s", 3, "time")
	assert.Equal(t, "bar 3 missing time", err.Error())
}

func TestRetryWithBackoffSucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), nil, "dial", 3, time.Millisecond, nil, func() error {
		calls++
		if calls < 3 {
			return errors.New("refused")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoffStopsOnNonRetryable(t *testing.T) {
	calls := 0
	final := NewServerReplyError("no data loaded")
	err := RetryWithBackoff(context.Background(), nil, "query", 5, time.Millisecond,
		func(err error) bool {
			var reply *ServerReplyError
			return !errors.As(err, &reply)
		},
		func() error {
			calls++
			return final
		})
	assert.Equal(t, 1, calls)
	assert.Same(t, final, err)
}

func TestRetryWithBackoffExhausts(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), nil, "dial", 2, time.Millisecond, nil, func() error {
		calls++
		return errors.New("refused")
	})
	assert.EqualError(t, err, "refused")
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoffHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := RetryWithBackoff(ctx, nil, "dial", 10, time.Hour, nil, func() error {
		calls++
		return errors.New("refused")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
