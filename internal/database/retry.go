package database

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	retryBaseDelay = 10 * time.Millisecond
	retryMaxDelay  = 500 * time.Millisecond
)

// IsRetryable reports whether err is worth another attempt. Besides our
// own transient kind this covers the sqlite busy/locked states surfaced by
// the driver when a writer holds the database.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// WithRetry runs fn up to attempts times, backing off exponentially
// between transient failures. Non-retryable errors are returned as-is on
// first occurrence; the last transient error is returned once attempts are
// exhausted, never swallowed.
func WithRetry(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	delay := retryBaseDelay
	var err error
	for i := 0; i < attempts; i++ {
		err = fn(ctx)
		if err == nil || !IsRetryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
	return err
}
