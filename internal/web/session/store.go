package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/AlibekovAA/crypt-ledger/internal/account/domain"
	"github.com/AlibekovAA/crypt-ledger/internal/common/clock"
	"github.com/AlibekovAA/crypt-ledger/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/crypt-ledger/internal/common/crypto"
	"github.com/AlibekovAA/crypt-ledger/internal/common/jwtverify"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
	"github.com/AlibekovAA/crypt-ledger/internal/observability/metrics"
	"github.com/AlibekovAA/crypt-ledger/internal/reward"
)

// Session is the server-side bag behind one browser cookie.
type Session struct {
	id string

	mu           sync.Mutex
	accountID    domain.ID
	hasAccount   bool
	challenge    reward.Challenge
	hasChallenge bool
	expiresAt    time.Time
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) AccountID() (domain.ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountID, s.hasAccount
}

func (s *Session) SetAccount(id domain.ID) {
	s.mu.Lock()
	s.accountID = id
	s.hasAccount = true
	s.mu.Unlock()
}

func (s *Session) Challenge() (reward.Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.challenge, s.hasChallenge
}

func (s *Session) SetChallenge(c reward.Challenge) {
	s.mu.Lock()
	s.challenge = c
	s.hasChallenge = true
	s.mu.Unlock()
}

func (s *Session) ClearChallenge() {
	s.mu.Lock()
	s.challenge = reward.Challenge{}
	s.hasChallenge = false
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !now.Before(s.expiresAt)
}

// dropStaleChallenge forgets a challenge nobody answered within maxAge.
func (s *Session) dropStaleChallenge(now time.Time, maxAge time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasChallenge || now.Sub(s.challenge.IssuedAt) < maxAge {
		return false
	}
	s.challenge = reward.Challenge{}
	s.hasChallenge = false
	return true
}

type Store struct {
	secret []byte
	ttl    time.Duration
	secure bool
	clock  clock.Clock
	idGen  commoncrypto.IDGenerator
	log    *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore(secret string, ttl time.Duration, secure bool, clk clock.Clock, idGen commoncrypto.IDGenerator, log *logger.Logger) *Store {
	if ttl <= 0 {
		ttl = constants.DefaultSessionTTL
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}
	if idGen == nil {
		idGen = commoncrypto.NewUUIDGenerator()
	}
	return &Store{
		secret:   []byte(secret),
		ttl:      ttl,
		secure:   secure,
		clock:    clk,
		idGen:    idGen,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Load resolves the session named by the request cookie. Missing, forged and expired
// cookies all report false.
func (s *Store) Load(r *http.Request) (*Session, bool) {
	cookie, err := r.Cookie(constants.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}

	now := s.clock.Now()
	id, err := jwtverify.ParseSession(cookie.Value, s.secret, now)
	if err != nil {
		s.log.WithFields(r.Context(), logger.Fields{
			"error":  err.Error(),
			"action": "web_session_cookie_invalid",
		}).Debug("session cookie rejected")
		return nil, false
	}

	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || sess.expired(now) {
		return nil, false
	}
	return sess, true
}

// Start creates a fresh session and writes its cookie.
func (s *Store) Start(w http.ResponseWriter) (*Session, error) {
	id, err := s.idGen.NewID()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	token, err := jwtverify.SignSession(id, s.secret, s.ttl, now)
	if err != nil {
		return nil, err
	}

	sess := &Session{id: id, expiresAt: now.Add(s.ttl)}
	s.mu.Lock()
	s.sessions[id] = sess
	active := len(s.sessions)
	s.mu.Unlock()
	metrics.WebSessionsActive.Set(float64(active))

	http.SetCookie(w, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sess, nil
}

// LoadOrStart returns the request's session, creating one when there is none.
func (s *Store) LoadOrStart(w http.ResponseWriter, r *http.Request) (*Session, error) {
	if sess, ok := s.Load(r); ok {
		return sess, nil
	}
	return s.Start(w)
}

func (s *Store) Destroy(w http.ResponseWriter, sess *Session) {
	if sess != nil {
		s.mu.Lock()
		delete(s.sessions, sess.id)
		active := len(s.sessions)
		s.mu.Unlock()
		metrics.WebSessionsActive.Set(float64(active))
	}

	http.SetCookie(w, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// DeleteExpired drops sessions past their TTL and forgets unanswered challenges.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	var deleted, stale int64

	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.expired(now) {
			delete(s.sessions, id)
			deleted++
			continue
		}
		if sess.dropStaleChallenge(now, constants.ChallengeMaxAge) {
			stale++
		}
	}
	active := len(s.sessions)
	s.mu.Unlock()

	metrics.WebSessionsActive.Set(float64(active))
	if stale > 0 {
		s.log.WithFields(ctx, logger.Fields{
			"challenges": stale,
			"action":     "web_challenge_cleanup",
		}).Debug("stale challenges dropped")
	}
	return deleted, nil
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
