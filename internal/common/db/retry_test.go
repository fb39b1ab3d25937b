package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
)

var fastRetry = RetryConfig{
	MaxAttempts:  3,
	InitialDelay: time.Millisecond,
	MaxDelay:     2 * time.Millisecond,
	Multiplier:   2,
}

func TestRetryWithBackoff_RetriesSerializationFailures(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), logger.NewDiscard(), fastRetry, func() error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: CodeSerializationFailure}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_StopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errors.New("boom")
	err := RetryWithBackoff(context.Background(), logger.NewDiscard(), fastRetry, func() error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_GivesUp(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), logger.NewDiscard(), fastRetry, func() error {
		calls++
		return &pgconn.PgError{Code: CodeDeadlockDetected}
	})

	require.Error(t, err)
	assert.Equal(t, fastRetry.MaxAttempts, calls)
}

func TestConstraintViolation(t *testing.T) {
	name, ok := ConstraintViolation(&pgconn.PgError{Code: CodeUniqueViolation, ConstraintName: "accounts_username_key"})
	assert.True(t, ok)
	assert.Equal(t, "accounts_username_key", name)

	_, ok = ConstraintViolation(errors.New("other"))
	assert.False(t, ok)
}

func TestExtractTableFromOperation(t *testing.T) {
	assert.Equal(t, "accounts", extractTableFromOperation("adjust balance"))
	assert.Equal(t, "ledger_entries", extractTableFromOperation("list ledger entries"))
	assert.Equal(t, "unknown", extractTableFromOperation("ping"))
}
