package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"
)

// retrySchedule is a short fixed ladder capped by a ceiling, rather
// than a jittered exponential backoff library; the same shape is used
// for the office-converter client.
var retrySchedule = struct {
	delays  []time.Duration
	ceiling time.Duration
}{
	delays:  []time.Duration{200 * time.Millisecond, 500 * time.Millisecond, 1500 * time.Millisecond},
	ceiling: 3 * time.Second,
}

// isRetryable reports whether err looks like a transient object-store
// failure (network blip, throttling) worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "RequestTimeout") ||
		strings.Contains(msg, "SlowDown") ||
		strings.Contains(msg, "ServiceUnavailable") ||
		strings.Contains(msg, "InternalError") ||
		strings.Contains(msg, "connection reset")
}

// withRetry executes fn up to len(retrySchedule.delays)+1 times, retrying
// only on transient errors. Generalizes gcpclient.withRetry from a single
// Vertex-AI-specific predicate to the object-store transient-error set.
func withRetry[T any](ctx context.Context, operation string, fn func() (T, error)) (T, error) {
	result, err := fn()
	if err == nil || !isRetryable(err) {
		return result, err
	}

	for i, delay := range retrySchedule.delays {
		if delay > retrySchedule.ceiling {
			delay = retrySchedule.ceiling
		}

		slog.Warn("objectstore: retrying transient error",
			"operation", operation,
			"attempt", i+2,
			"delay_ms", delay.Milliseconds(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			var zero T
			return zero, fmt.Errorf("%s: context cancelled during retry: %w", operation, ctx.Err())
		case <-time.After(delay):
		}

		result, err = fn()
		if err == nil || !isRetryable(err) {
			return result, err
		}
	}

	slog.Error("objectstore: retries exhausted", "operation", operation, "attempts", len(retrySchedule.delays)+1)
	return result, err
}
