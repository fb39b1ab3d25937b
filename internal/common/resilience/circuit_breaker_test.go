package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/crypt-ledger/internal/common/clock"
	commonerrors "github.com/AlibekovAA/crypt-ledger/internal/common/errors"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
)

func newBreaker(clk clock.Clock) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		Threshold:  2,
		Timeout:    time.Second,
		ResetAfter: 10 * time.Second,
		Clock:      clk,
		Logger:     logger.NewDiscard(),
	})
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	clk := clock.NewMockClock(time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC))
	cb := newBreaker(clk)
	boom := errors.New("connection refused")

	for i := 0; i < 2; i++ {
		err := cb.Call(context.Background(), func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
	}

	called := false
	err := cb.Call(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, commonerrors.ErrStoreUnavailable)
	assert.False(t, called)
}

func TestCircuitBreaker_DomainOutcomesDoNotTrip(t *testing.T) {
	cb := newBreaker(nil)

	for i := 0; i < 5; i++ {
		err := cb.Call(context.Background(), func(context.Context) error {
			return commonerrors.ErrInsufficientFunds
		})
		assert.ErrorIs(t, err, commonerrors.ErrInsufficientFunds)
	}
	assert.False(t, cb.IsOpen())
}

func TestCircuitBreaker_HalfOpenAfterReset(t *testing.T) {
	clk := clock.NewMockClock(time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC))
	cb := newBreaker(clk)
	boom := errors.New("connection refused")

	for i := 0; i < 2; i++ {
		_ = cb.Call(context.Background(), func(context.Context) error { return boom })
	}
	require.True(t, cb.IsOpen())

	clk.Advance(11 * time.Second)
	require.False(t, cb.IsOpen())

	_ = cb.Call(context.Background(), func(context.Context) error { return boom })
	assert.True(t, cb.IsOpen(), "a failed trial call reopens the circuit")

	clk.Advance(11 * time.Second)
	require.NoError(t, cb.Call(context.Background(), func(context.Context) error { return nil }))
	assert.False(t, cb.IsOpen())
}

func TestCircuitBreaker_AppliesTimeout(t *testing.T) {
	cb := newBreaker(nil)

	err := cb.Call(context.Background(), func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 100*time.Millisecond)
		return nil
	})
	require.NoError(t, err)
}

func TestIsInfrastructureFailure(t *testing.T) {
	assert.True(t, IsInfrastructureFailure(errors.New("io timeout")))
	assert.True(t, IsInfrastructureFailure(commonerrors.ErrDatabaseError.WithCause(errors.New("conn reset"))))
	assert.False(t, IsInfrastructureFailure(commonerrors.ErrAccountNotFound))
	assert.False(t, IsInfrastructureFailure(context.Canceled))
}
