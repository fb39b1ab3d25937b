package registration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AlibekovAA/crypt-ledger/internal/account/domain"
	accountservice "github.com/AlibekovAA/crypt-ledger/internal/account/service"
	"github.com/AlibekovAA/crypt-ledger/internal/common/clock"
	"github.com/AlibekovAA/crypt-ledger/internal/common/constants"
	commonerrors "github.com/AlibekovAA/crypt-ledger/internal/common/errors"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
	"github.com/AlibekovAA/crypt-ledger/internal/observability/metrics"
)

type Stage int

const (
	StageStarting Stage = iota
	StageAwaitingUsername
	StageAwaitingSecret
	StageCompleted
)

func (s Stage) String() string {
	switch s {
	case StageStarting:
		return "starting"
	case StageAwaitingUsername:
		return "awaiting_username"
	case StageAwaitingSecret:
		return "awaiting_secret"
	case StageCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

type Accounts interface {
	Exists(ctx context.Context, externalID string) (bool, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	Register(ctx context.Context, input accountservice.RegisterInput) (domain.Account, error)
}

type Messenger interface {
	OpenPrivateChannel(ctx context.Context, externalID string) (string, error)
	Send(ctx context.Context, channelID, text string) error
}

type Inbound struct {
	ChannelID string
	AuthorID  string
	Text      string
}

type StartResult struct {
	ChannelID string
	Deadline  time.Time
	Reused    bool
}

type Outcome struct {
	Consumed bool
	Stage    Stage
	Account  *domain.Account
}

type session struct {
	externalID      string
	channelID       string
	stage           Stage
	pendingUsername string
	deadline        time.Time

	ctx    context.Context
	cancel context.CancelFunc
	timer  *time.Timer

	mu     sync.Mutex
	closed bool
}

type Manager struct {
	accounts  Accounts
	messenger Messenger
	clock     clock.Clock
	timeout   time.Duration
	log       *logger.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

func NewManager(accounts Accounts, messenger Messenger, clk clock.Clock, timeout time.Duration, log *logger.Logger) *Manager {
	if timeout <= 0 {
		timeout = constants.DefaultRegistrationTimeout
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &Manager{
		accounts:  accounts,
		messenger: messenger,
		clock:     clk,
		timeout:   timeout,
		log:       log,
		sessions:  make(map[string]*session),
	}
}

// Start opens a registration dialogue for externalID. A second call while a dialogue is
// live re-sends the current prompt and keeps the original deadline.
func (m *Manager) Start(ctx context.Context, externalID string) (StartResult, error) {
	m.mu.Lock()
	if existing, ok := m.sessions[externalID]; ok {
		m.mu.Unlock()
		return m.resume(ctx, existing)
	}
	s := &session{externalID: externalID, stage: StageStarting}
	m.sessions[externalID] = s
	m.mu.Unlock()

	exists, err := m.accounts.Exists(ctx, externalID)
	if err != nil {
		m.discard(s)
		return StartResult{}, fmt.Errorf("failed to check existing account: %w", err)
	}
	if exists {
		m.discard(s)
		metrics.RegistrationsTotal.WithLabelValues("already_exists").Inc()
		return StartResult{}, commonerrors.ErrAccountAlreadyExists
	}

	channelID, err := m.messenger.OpenPrivateChannel(ctx, externalID)
	if err != nil {
		m.discard(s)
		m.log.WithFields(ctx, logger.Fields{
			"external_id": externalID,
			"action":      "registration_channel_unavailable",
		}).Warnf("cannot open private channel: %v", err)
		metrics.RegistrationsTotal.WithLabelValues("channel_unavailable").Inc()
		return StartResult{}, commonerrors.ErrChannelUnavailable.WithCause(err)
	}

	if err := m.messenger.Send(ctx, channelID, promptUsername); err != nil {
		m.discard(s)
		metrics.RegistrationsTotal.WithLabelValues("channel_unavailable").Inc()
		return StartResult{}, commonerrors.ErrChannelUnavailable.WithCause(err)
	}

	deadline := m.clock.Now().Add(m.timeout)

	s.mu.Lock()
	s.channelID = channelID
	s.stage = StageAwaitingUsername
	s.deadline = deadline
	s.ctx, s.cancel = context.WithTimeout(context.Background(), m.timeout)
	s.timer = time.AfterFunc(m.timeout, func() { m.expire(s) })
	s.mu.Unlock()

	metrics.RegistrationSessionsActive.Inc()
	metrics.RegistrationsTotal.WithLabelValues("started").Inc()
	m.log.WithFields(ctx, logger.Fields{
		"external_id": externalID,
		"channel_id":  channelID,
		"action":      "registration_started",
	}).Info("registration dialogue started")

	return StartResult{ChannelID: channelID, Deadline: deadline}, nil
}

func (m *Manager) resume(ctx context.Context, s *session) (StartResult, error) {
	s.mu.Lock()
	stage, channelID, deadline, closed := s.stage, s.channelID, s.deadline, s.closed
	s.mu.Unlock()

	if closed {
		return StartResult{}, commonerrors.ErrSessionExpired
	}

	result := StartResult{ChannelID: channelID, Deadline: deadline, Reused: true}
	prompt := currentPrompt(stage)
	if prompt == "" || channelID == "" {
		return result, nil
	}
	if err := m.messenger.Send(ctx, channelID, prompt); err != nil {
		return StartResult{}, commonerrors.ErrChannelUnavailable.WithCause(err)
	}
	return result, nil
}

// HandleMessage advances the dialogue owning msg. Messages outside any live dialogue are
// not consumed.
func (m *Manager) HandleMessage(ctx context.Context, msg Inbound) (Outcome, error) {
	m.mu.Lock()
	s, ok := m.sessions[msg.AuthorID]
	m.mu.Unlock()
	if !ok {
		return Outcome{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.channelID == "" || s.channelID != msg.ChannelID {
		return Outcome{}, nil
	}
	if s.closed {
		return Outcome{Consumed: true, Stage: s.stage}, commonerrors.ErrSessionExpired
	}

	switch s.stage {
	case StageAwaitingUsername:
		return m.handleUsername(ctx, s, msg.Text)
	case StageAwaitingSecret:
		return m.handleSecret(ctx, s, msg.Text)
	default:
		return Outcome{}, nil
	}
}

func (m *Manager) handleUsername(ctx context.Context, s *session, text string) (Outcome, error) {
	username, err := accountservice.NormalizeUsername(text)
	if err != nil {
		m.reply(ctx, s, commonerrors.ErrInvalidUsername.Message())
		return Outcome{Consumed: true, Stage: s.stage}, err
	}

	taken, err := m.accounts.UsernameTaken(s.ctx, username)
	if err != nil {
		return m.storeFailure(ctx, s, err)
	}
	if taken {
		m.reply(ctx, s, commonerrors.ErrDuplicateUsername.Message())
		return Outcome{Consumed: true, Stage: s.stage}, commonerrors.ErrDuplicateUsername
	}

	s.pendingUsername = username
	s.stage = StageAwaitingSecret
	m.reply(ctx, s, promptSecret)
	return Outcome{Consumed: true, Stage: s.stage}, nil
}

func (m *Manager) handleSecret(ctx context.Context, s *session, text string) (Outcome, error) {
	secret, err := accountservice.NormalizeSecret(text)
	if err != nil {
		m.reply(ctx, s, commonerrors.ErrInvalidSecret.Message())
		return Outcome{Consumed: true, Stage: s.stage}, err
	}

	account, err := m.accounts.Register(s.ctx, accountservice.RegisterInput{
		ExternalID: s.externalID,
		Username:   s.pendingUsername,
		Secret:     secret,
	})
	switch {
	case err == nil:
	case errors.Is(err, commonerrors.ErrDuplicateUsername):
		s.pendingUsername = ""
		s.stage = StageAwaitingUsername
		m.reply(ctx, s, commonerrors.ErrDuplicateUsername.Message())
		return Outcome{Consumed: true, Stage: s.stage}, err
	case errors.Is(err, commonerrors.ErrAccountAlreadyExists):
		m.finish(s, "already_exists")
		m.reply(ctx, s, commonerrors.ErrAccountAlreadyExists.Message())
		return Outcome{Consumed: true, Stage: s.stage}, err
	default:
		return m.storeFailure(ctx, s, err)
	}

	s.stage = StageCompleted
	m.finish(s, "completed")
	m.reply(ctx, s, confirmation(account.Username, secret))

	m.log.WithFields(ctx, logger.Fields{
		"external_id": s.externalID,
		"account_id":  string(account.ID),
		"action":      "registration_completed",
	}).Info("registration completed")

	return Outcome{Consumed: true, Stage: StageCompleted, Account: &account}, nil
}

func (m *Manager) storeFailure(ctx context.Context, s *session, err error) (Outcome, error) {
	if s.ctx.Err() != nil {
		return Outcome{Consumed: true, Stage: s.stage}, commonerrors.ErrSessionExpired.WithCause(err)
	}
	m.log.WithFields(ctx, logger.Fields{
		"external_id": s.externalID,
		"stage":       s.stage.String(),
		"action":      "registration_store_failed",
	}).Errorf("registration store call failed: %v", err)
	m.reply(ctx, s, msgInternalError)
	return Outcome{Consumed: true, Stage: s.stage}, fmt.Errorf("registration store call: %w", err)
}

// Cancel tears down the dialogue for externalID and reports whether one was live.
func (m *Manager) Cancel(ctx context.Context, externalID string) (bool, error) {
	m.mu.Lock()
	s, ok := m.sessions[externalID]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.channelID == "" {
		return false, nil
	}

	m.finish(s, "cancelled")
	if err := m.messenger.Send(ctx, s.channelID, msgCancelled); err != nil {
		m.log.WithFields(ctx, logger.Fields{
			"external_id": externalID,
			"action":      "registration_cancel_notify_failed",
		}).Warnf("failed to send cancel notice: %v", err)
	}
	return true, nil
}

// Shutdown stops every live dialogue without notifying the partners.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		if !s.closed && s.channelID != "" {
			m.finish(s, "shutdown")
		}
		s.mu.Unlock()
	}
}

func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Stage reports the stage of the live dialogue for externalID.
func (m *Manager) Stage(externalID string) (Stage, bool) {
	m.mu.Lock()
	s, ok := m.sessions[externalID]
	m.mu.Unlock()
	if !ok {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage, !s.closed
}

func (m *Manager) expire(s *session) {
	s.cancel()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	m.remove(s)
	s.mu.Unlock()

	metrics.RegistrationSessionsActive.Dec()
	metrics.RegistrationsTotal.WithLabelValues("timed_out").Inc()

	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultRequestTimeout)
	defer cancel()
	if err := m.messenger.Send(ctx, s.channelID, msgTimedOut); err != nil {
		m.log.WithFields(ctx, logger.Fields{
			"external_id": s.externalID,
			"action":      "registration_timeout_notify_failed",
		}).Warnf("failed to send timeout notice: %v", err)
	}

	m.log.WithFields(ctx, logger.Fields{
		"external_id": s.externalID,
		"action":      "registration_timed_out",
	}).Info("registration timed out")
}

// finish must be called with s.mu held on a live, started session.
func (m *Manager) finish(s *session, outcome string) {
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	m.remove(s)
	metrics.RegistrationSessionsActive.Dec()
	metrics.RegistrationsTotal.WithLabelValues(outcome).Inc()
}

// discard drops a session that never got past StageStarting.
func (m *Manager) discard(s *session) {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	m.remove(s)
}

func (m *Manager) remove(s *session) {
	m.mu.Lock()
	if cur, ok := m.sessions[s.externalID]; ok && cur == s {
		delete(m.sessions, s.externalID)
	}
	m.mu.Unlock()
}

func (m *Manager) reply(ctx context.Context, s *session, text string) {
	if err := m.messenger.Send(ctx, s.channelID, text); err != nil {
		m.log.WithFields(ctx, logger.Fields{
			"external_id": s.externalID,
			"channel_id":  s.channelID,
			"action":      "registration_reply_failed",
		}).Warnf("failed to send registration reply: %v", err)
	}
}

func currentPrompt(stage Stage) string {
	switch stage {
	case StageAwaitingUsername:
		return promptUsername
	case StageAwaitingSecret:
		return promptSecret
	default:
		return ""
	}
}
