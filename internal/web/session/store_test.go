package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/crypt-ledger/internal/account/domain"
	"github.com/AlibekovAA/crypt-ledger/internal/common/clock"
	"github.com/AlibekovAA/crypt-ledger/internal/common/constants"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
	"github.com/AlibekovAA/crypt-ledger/internal/reward"
)

const testSecret = "web-session-secret-web-session-secret!"

func newStore(t *testing.T) (*Store, *clock.MockClock) {
	t.Helper()
	clk := clock.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	return NewStore(testSecret, time.Hour, false, clk, nil, logger.NewDiscard()), clk
}

func requestWith(t *testing.T, rec *httptest.ResponseRecorder) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestStore_StartAndLoad(t *testing.T) {
	store, _ := newStore(t)

	rec := httptest.NewRecorder()
	sess, err := store.Start(rec)
	require.NoError(t, err)
	sess.SetAccount(domain.ID("acc-1"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, constants.SessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	loaded, ok := store.Load(requestWith(t, rec))
	require.True(t, ok)
	assert.Same(t, sess, loaded)

	id, ok := loaded.AccountID()
	assert.True(t, ok)
	assert.Equal(t, domain.ID("acc-1"), id)
}

func TestStore_RejectsForgedCookie(t *testing.T) {
	store, _ := newStore(t)
	other := NewStore("another-secret-another-secret-another!", time.Hour, false, nil, nil, logger.NewDiscard())

	rec := httptest.NewRecorder()
	_, err := other.Start(rec)
	require.NoError(t, err)

	_, ok := store.Load(requestWith(t, rec))
	assert.False(t, ok)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: "garbage"})
	_, ok = store.Load(req)
	assert.False(t, ok)
}

func TestStore_ExpiredSessionIsGone(t *testing.T) {
	store, clk := newStore(t)

	rec := httptest.NewRecorder()
	_, err := store.Start(rec)
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	_, ok := store.Load(requestWith(t, rec))
	assert.False(t, ok)

	deleted, err := store.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Equal(t, 0, store.Count())
}

func TestStore_DeleteExpiredDropsStaleChallenges(t *testing.T) {
	store, clk := newStore(t)

	sess, err := store.Start(httptest.NewRecorder())
	require.NoError(t, err)
	sess.SetChallenge(reward.Challenge{Code: "ABC123", IssuedAt: clk.Now()})

	clk.Advance(constants.ChallengeMaxAge - time.Minute)
	_, err = store.DeleteExpired(context.Background())
	require.NoError(t, err)
	_, ok := sess.Challenge()
	assert.True(t, ok)

	clk.Advance(2 * time.Minute)
	_, err = store.DeleteExpired(context.Background())
	require.NoError(t, err)
	_, ok = sess.Challenge()
	assert.False(t, ok)
	assert.Equal(t, 1, store.Count())
}

func TestStore_Destroy(t *testing.T) {
	store, _ := newStore(t)

	rec := httptest.NewRecorder()
	sess, err := store.Start(rec)
	require.NoError(t, err)

	out := httptest.NewRecorder()
	store.Destroy(out, sess)

	_, ok := store.Load(requestWith(t, rec))
	assert.False(t, ok)
	cookies := out.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestStore_LoadOrStartReusesSession(t *testing.T) {
	store, _ := newStore(t)

	rec := httptest.NewRecorder()
	first, err := store.LoadOrStart(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	second, err := store.LoadOrStart(httptest.NewRecorder(), requestWith(t, rec))
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.ID())
}

type countingDeleter struct {
	calls chan struct{}
}

func (c *countingDeleter) DeleteExpired(ctx context.Context) (int64, error) {
	select {
	case c.calls <- struct{}{}:
	default:
	}
	return 1, nil
}

func TestStartCleanup_RunsUntilCancelled(t *testing.T) {
	deleter := &countingDeleter{calls: make(chan struct{}, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		StartCleanup(ctx, deleter, logger.NewDiscard(), 10*time.Millisecond)
		close(done)
	}()

	select {
	case <-deleter.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup never ran")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup did not stop")
	}
}
