package helpers

import (
	"context"
	"fmt"
	"time"

	"market-relay/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type MarketRelayError struct {
	Message string
	Cause   error
}

func (e *MarketRelayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *MarketRelayError) Unwrap() error {
	return e.Cause
}

// Distinct error kinds for errors.As
type ConfigurationError struct{ MarketRelayError }
type ValidationError struct{ MarketRelayError }
type SnapshotError struct{ MarketRelayError }
type TransportError struct{ MarketRelayError }
type TimeoutError struct{ MarketRelayError }
type ServerReplyError struct{ MarketRelayError }
type DatabaseError struct{ MarketRelayError }

func NewConfigurationError(message string, cause error) *ConfigurationError {
	return &ConfigurationError{MarketRelayError{Message: message, Cause: cause}}
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{MarketRelayError{Message: fmt.Sprintf(format, args...)}}
}

func NewSnapshotError(message string, cause error) *SnapshotError {
	return &SnapshotError{MarketRelayError{Message: message, Cause: cause}}
}

func NewTransportError(message string, cause error) *TransportError {
	return &TransportError{MarketRelayError{Message: message, Cause: cause}}
}

func NewTimeoutError(message string, cause error) *TimeoutError {
	return &TimeoutError{MarketRelayError{Message: message, Cause: cause}}
}

func NewServerReplyError(message string) *ServerReplyError {
	return &ServerReplyError{MarketRelayError{Message: message}}
}

func NewDatabaseError(message string, cause error) *DatabaseError {
	return &DatabaseError{MarketRelayError{Message: message, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff runs fn up to maxRetries+1 times, doubling baseDelay between
// attempts. Errors for which retryable returns false end the loop at once.
func RetryWithBackoff(
	ctx context.Context,
	log *logger.Logger,
	operation string,
	maxRetries int,
	baseDelay time.Duration,
	retryable func(error) bool,
	fn func() error,
) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == maxRetries || (retryable != nil && !retryable(lastErr)) {
			break
		}

		delay := baseDelay * (1 << attempt)
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries+1, operation, lastErr, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}

	return lastErr
}
