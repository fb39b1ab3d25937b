package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/crypt-ledger/internal/account/repository"
	"github.com/AlibekovAA/crypt-ledger/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/crypt-ledger/internal/common/crypto"
	commonerrors "github.com/AlibekovAA/crypt-ledger/internal/common/errors"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
)

type mockHasher struct {
	hashFunc    func(string) (string, error)
	compareFunc func(string, string) error
}

func (m *mockHasher) Hash(secret string) (string, error) {
	if m.hashFunc != nil {
		return m.hashFunc(secret)
	}
	return "hashed:" + secret, nil
}

func (m *mockHasher) Compare(hash, secret string) error {
	if m.compareFunc != nil {
		return m.compareFunc(hash, secret)
	}
	if hash != "hashed:"+secret {
		return errors.New("mismatch")
	}
	return nil
}

func newTestService(t *testing.T) (*AccountService, *clock.MockClock) {
	t.Helper()
	clk := clock.NewMockClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	repo := repository.NewMemoryRepository(clk)
	return NewAccountService(repo, &mockHasher{}, commoncrypto.NewUUIDGenerator(), clk, logger.NewDiscard()), clk
}

func TestAccountService_RegisterAndProfile(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Register(ctx, RegisterInput{ExternalID: "u1", Username: "alice", Secret: "pass12345"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), acc.Balance)
	assert.Equal(t, "hashed:pass12345", acc.SecretHash)

	exists, err := svc.Exists(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, exists)

	taken, err := svc.UsernameTaken(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, taken)

	clk.Advance(36 * time.Hour)
	profile, err := svc.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, 2, profile.DaysSinceCreation)
}

func TestAccountService_RegisterConflicts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{ExternalID: "u1", Username: "alice", Secret: "pass12345"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{ExternalID: "u2", Username: "alice", Secret: "pass12345"})
	assert.ErrorIs(t, err, commonerrors.ErrDuplicateUsername)

	_, err = svc.Register(ctx, RegisterInput{ExternalID: "u1", Username: "bob", Secret: "pass12345"})
	assert.ErrorIs(t, err, commonerrors.ErrAccountAlreadyExists)
}

func TestAccountService_Login(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{ExternalID: "u1", Username: "alice", Secret: "pass12345"})
	require.NoError(t, err)

	acc, err := svc.Login(ctx, "alice", "pass12345")
	require.NoError(t, err)
	assert.Equal(t, "u1", acc.ExternalID)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, commonerrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody", "pass12345")
	assert.ErrorIs(t, err, commonerrors.ErrInvalidCredentials)
}

func TestAccountService_ProfileWithoutAccount(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Profile(context.Background(), "ghost")
	assert.ErrorIs(t, err, commonerrors.ErrNotAuthenticated)

	_, err = svc.History(context.Background(), "ghost", 5)
	assert.ErrorIs(t, err, commonerrors.ErrNotAuthenticated)
}

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"ab", "ab", false},
		{"  alice  ", "alice", false},
		{"a", "", true},
		{"abcdefghijk", "", true},
		{"   ", "", true},
		{"abcdefghij", "abcdefghij", false},
	}

	for _, tt := range tests {
		got, err := NormalizeUsername(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, commonerrors.ErrInvalidUsername, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestNormalizeSecret(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"pass1234", false},
		{"pass12345", false},
		{"password1", true},
		{"pa12", true},
		{"  ab12cdef  ", false},
		{"12", true},
	}

	for _, tt := range tests {
		_, err := NormalizeSecret(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, commonerrors.ErrInvalidSecret, tt.in)
		} else {
			assert.NoError(t, err, tt.in)
		}
	}
}
