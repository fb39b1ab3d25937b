package jwtverify

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "github.com/AlibekovAA/crypt-ledger/internal/common/errors"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestIdentityToken_RoundTrip(t *testing.T) {
	in := Claims{ExternalID: "1001", DisplayName: "alice", Tag: "alice#0001", DMEnabled: true}
	token, err := IssueIdentityToken(in, testSecret, time.Hour, time.Now())
	require.NoError(t, err)

	out, err := ParseIdentityToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestIdentityToken_WrongSecret(t *testing.T) {
	token, err := IssueIdentityToken(Claims{ExternalID: "1", DisplayName: "a"}, testSecret, time.Hour, time.Now())
	require.NoError(t, err)

	_, err = ParseIdentityToken(token, []byte("another-secret-another-secret-xx"))
	assert.ErrorIs(t, err, commonerrors.ErrInvalidToken)
}

func TestIdentityToken_MissingClaims(t *testing.T) {
	token, err := IssueIdentityToken(Claims{ExternalID: "1"}, testSecret, time.Hour, time.Now())
	require.NoError(t, err)

	_, err = ParseIdentityToken(token, testSecret)
	assert.ErrorIs(t, err, commonerrors.ErrMissingTokenClaims)
}

func TestSessionToken(t *testing.T) {
	now := time.Now()
	token, err := SignSession("sid-1", testSecret, time.Minute, now)
	require.NoError(t, err)

	id, err := ParseSession(token, testSecret, now)
	require.NoError(t, err)
	assert.Equal(t, "sid-1", id)

	_, err = ParseSession(token, testSecret, now.Add(2*time.Minute))
	assert.ErrorIs(t, err, commonerrors.ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	var got Claims
	handler := Middleware(string(testSecret), logger.NewDiscard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := IssueIdentityToken(Claims{ExternalID: "42", DisplayName: "bob"}, testSecret, time.Hour, time.Now())
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", got.ExternalID)
}
