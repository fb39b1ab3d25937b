package commonerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_WithCauseKeepsIdentity(t *testing.T) {
	cause := errors.New("connection reset")
	err := ErrInsufficientFunds.WithCause(cause)

	assert.True(t, errors.Is(err, ErrInsufficientFunds))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrInvalidAmount))
	assert.Equal(t, "INSUFFICIENT_FUNDS", err.Code())
}

func TestDomainError_WithMessageKeepsIdentity(t *testing.T) {
	err := ErrRecipientNotFound.WithMessage("bob does not have an account.")

	assert.True(t, errors.Is(err, ErrRecipientNotFound))
	assert.Equal(t, "bob does not have an account.", err.Message())
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus())
}

func TestAsDomainError_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("claim: %w", ErrClaimOnCooldown)

	de, ok := AsDomainError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CategoryConflict, de.Category())

	_, ok = AsDomainError(errors.New("plain"))
	assert.False(t, ok)
}
