package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrPoolTimeout))
	assert.True(t, IsRetryable(Wrap(KindTransient, "sqlite busy", errors.New("x"))))
	assert.True(t, IsRetryable(errors.New("database is locked (5) (SQLITE_BUSY)")))

	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(ErrBlockContentMismatch))
	assert.False(t, IsRetryable(errors.New("syntax error")))
}

func TestWithRetryEventualSuccess(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 5, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return ErrPoolTimeout
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryNonRetryableFailsFast(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 5, func(ctx context.Context) error {
		calls++
		return ErrNotPrimary
	})
	assert.ErrorIs(t, err, ErrNotPrimary)
	assert.Equal(t, 1, calls)
}

func TestWithRetryExhaustionReturnsLastError(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 3, func(ctx context.Context) error {
		calls++
		return ErrPoolTimeout
	})
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, 3, calls)
}

func TestWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithRetry(ctx, 5, func(ctx context.Context) error {
		return ErrPoolTimeout
	})
	assert.ErrorIs(t, err, context.Canceled)
}
