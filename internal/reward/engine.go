package reward

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AlibekovAA/crypt-ledger/internal/account/domain"
	"github.com/AlibekovAA/crypt-ledger/internal/common/clock"
	"github.com/AlibekovAA/crypt-ledger/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/crypt-ledger/internal/common/crypto"
	commonerrors "github.com/AlibekovAA/crypt-ledger/internal/common/errors"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
	"github.com/AlibekovAA/crypt-ledger/internal/observability/metrics"
)

type Challenge struct {
	Code     string
	IssuedAt time.Time
}

// Session is the per-visitor bag the engine reads the account ref from and keeps the
// current challenge in.
type Session interface {
	AccountID() (domain.ID, bool)
	Challenge() (Challenge, bool)
	SetChallenge(Challenge)
	ClearChallenge()
}

type Store interface {
	FindByID(ctx context.Context, id domain.ID) (domain.Account, error)
	GrantReward(ctx context.Context, id domain.ID, amount int64, at time.Time, cooldown time.Duration) (int64, error)
}

type Config struct {
	Cooldown time.Duration
	Min      int64
	Max      int64
}

type ClaimResult struct {
	Granted   bool
	Amount    int64
	Balance   int64
	Reason    string
	Remaining time.Duration
	Challenge string
}

func (r ClaimResult) SuccessMessage() string {
	return fmt.Sprintf("You have received your daily crypt reward of %d crypt!", r.Amount)
}

type Engine struct {
	store  Store
	codes  commoncrypto.CodeGenerator
	random commoncrypto.RandomSource
	clock  clock.Clock
	cfg    Config
	log    *logger.Logger
}

func NewEngine(
	store Store,
	codes commoncrypto.CodeGenerator,
	random commoncrypto.RandomSource,
	clk clock.Clock,
	cfg Config,
	log *logger.Logger,
) *Engine {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = constants.DefaultClaimCooldown
	}
	if cfg.Min <= 0 || cfg.Max < cfg.Min {
		cfg.Min, cfg.Max = constants.DefaultRewardMin, constants.DefaultRewardMax
	}
	return &Engine{
		store:  store,
		codes:  codes,
		random: random,
		clock:  clk,
		cfg:    cfg,
		log:    log,
	}
}

// IssueChallenge replaces any previous challenge in the session with a fresh one.
func (e *Engine) IssueChallenge(ctx context.Context, session Session) (Challenge, error) {
	if _, ok := session.AccountID(); !ok {
		return Challenge{}, commonerrors.ErrNotAuthenticated
	}
	return e.issue(ctx, session)
}

// CurrentChallenge returns the live challenge, issuing one if the session has none.
func (e *Engine) CurrentChallenge(ctx context.Context, session Session) (Challenge, error) {
	if _, ok := session.AccountID(); !ok {
		return Challenge{}, commonerrors.ErrNotAuthenticated
	}
	if c, ok := session.Challenge(); ok {
		return c, nil
	}
	return e.issue(ctx, session)
}

func (e *Engine) issue(ctx context.Context, session Session) (Challenge, error) {
	code, err := e.codes.NewCode()
	if err != nil {
		return Challenge{}, fmt.Errorf("failed to generate challenge: %w", err)
	}
	c := Challenge{Code: strings.ToUpper(code), IssuedAt: e.clock.Now()}
	session.SetChallenge(c)
	metrics.ChallengesIssuedTotal.Inc()
	return c, nil
}

// Claim checks cooldown before the challenge so a visitor on cooldown never burns a challenge.
func (e *Engine) Claim(ctx context.Context, session Session, submitted string) (ClaimResult, error) {
	accountID, ok := session.AccountID()
	if !ok {
		metrics.RewardClaimsTotal.WithLabelValues("not_authenticated").Inc()
		return ClaimResult{Reason: commonerrors.ErrNotAuthenticated.Message()}, commonerrors.ErrNotAuthenticated
	}

	account, err := e.store.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, commonerrors.ErrAccountNotFound) {
			metrics.RewardClaimsTotal.WithLabelValues("not_authenticated").Inc()
			return ClaimResult{Reason: commonerrors.ErrNotAuthenticated.Message()}, commonerrors.ErrNotAuthenticated
		}
		return ClaimResult{}, fmt.Errorf("failed to load account: %w", err)
	}

	now := e.clock.Now()
	current, hasChallenge := session.Challenge()

	if remaining := e.remaining(account.LastClaimAt, now); remaining > 0 {
		return e.onCooldown(ctx, accountID, current.Code, remaining), commonerrors.ErrClaimOnCooldown
	}

	if !hasChallenge || !matches(current.Code, submitted) {
		metrics.RewardClaimsTotal.WithLabelValues("challenge_failed").Inc()
		fresh, err := e.issue(ctx, session)
		if err != nil {
			return ClaimResult{}, err
		}
		e.log.WithFields(ctx, logger.Fields{
			"account_id": string(accountID),
			"action":     "reward_challenge_failed",
		}).Info("reward claim rejected: challenge mismatch")
		return ClaimResult{
			Reason:    commonerrors.ErrChallengeFailed.Message(),
			Challenge: fresh.Code,
		}, commonerrors.ErrChallengeFailed
	}

	amount, err := e.random.IntBetween(e.cfg.Min, e.cfg.Max)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("failed to draw reward: %w", err)
	}

	balance, err := e.store.GrantReward(ctx, accountID, amount, now, e.cfg.Cooldown)
	if err != nil {
		switch {
		case errors.Is(err, commonerrors.ErrClaimOnCooldown):
			return e.onCooldown(ctx, accountID, current.Code, e.cfg.Cooldown), commonerrors.ErrClaimOnCooldown
		case errors.Is(err, commonerrors.ErrAccountNotFound):
			return ClaimResult{Reason: commonerrors.ErrNotAuthenticated.Message()}, commonerrors.ErrNotAuthenticated
		}
		e.log.WithFields(ctx, logger.Fields{
			"account_id": string(accountID),
			"action":     "reward_grant_failed",
		}).Errorf("reward grant failed: %v", err)
		return ClaimResult{}, fmt.Errorf("failed to grant reward: %w", err)
	}

	session.ClearChallenge()
	metrics.RewardClaimsTotal.WithLabelValues("granted").Inc()
	metrics.RewardAmount.Observe(float64(amount))

	e.log.WithFields(ctx, logger.Fields{
		"account_id": string(accountID),
		"amount":     amount,
		"balance":    balance,
		"action":     "reward_granted",
	}).Info("daily reward granted")

	return ClaimResult{
		Granted: true,
		Amount:  amount,
		Balance: balance,
	}, nil
}

func (e *Engine) onCooldown(ctx context.Context, accountID domain.ID, challenge string, remaining time.Duration) ClaimResult {
	metrics.RewardClaimsTotal.WithLabelValues("cooldown").Inc()
	e.log.WithFields(ctx, logger.Fields{
		"account_id": string(accountID),
		"remaining":  remaining.Round(time.Second).String(),
		"action":     "reward_on_cooldown",
	}).Debug("reward claim rejected: cooldown")
	return ClaimResult{
		Reason:    commonerrors.ErrClaimOnCooldown.Message(),
		Remaining: remaining,
		Challenge: challenge,
	}
}

func (e *Engine) remaining(lastClaim *time.Time, now time.Time) time.Duration {
	if lastClaim == nil {
		return 0
	}
	next := lastClaim.Add(e.cfg.Cooldown)
	if !now.Before(next) {
		return 0
	}
	return next.Sub(now)
}

func matches(code, submitted string) bool {
	submitted = strings.TrimSpace(submitted)
	return code != "" && submitted != "" && strings.EqualFold(code, submitted)
}
