package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlibekovAA/crypt-ledger/internal/account/domain"
	"github.com/AlibekovAA/crypt-ledger/internal/account/repository"
	"github.com/AlibekovAA/crypt-ledger/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/crypt-ledger/internal/common/crypto"
	commonerrors "github.com/AlibekovAA/crypt-ledger/internal/common/errors"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
)

type AccountService struct {
	repo        repository.Repository
	hasher      commoncrypto.PasswordHasher
	idGenerator commoncrypto.IDGenerator
	clock       clock.Clock
	log         *logger.Logger
}

func NewAccountService(
	repo repository.Repository,
	hasher commoncrypto.PasswordHasher,
	idGenerator commoncrypto.IDGenerator,
	clk clock.Clock,
	log *logger.Logger,
) *AccountService {
	return &AccountService{
		repo:        repo,
		hasher:      hasher,
		idGenerator: idGenerator,
		clock:       clk,
		log:         log,
	}
}

type RegisterInput struct {
	ExternalID string
	Username   string
	Secret     string
}

func (s *AccountService) Exists(ctx context.Context, externalID string) (bool, error) {
	_, err := s.repo.FindByExternalID(ctx, externalID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, commonerrors.ErrAccountNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to look up account: %w", err)
}

func (s *AccountService) UsernameTaken(ctx context.Context, username string) (bool, error) {
	_, err := s.repo.FindByUsername(ctx, username)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, commonerrors.ErrAccountNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to look up username: %w", err)
}

// Register stores a new account with a zero balance. Inputs must already be normalized.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (domain.Account, error) {
	hash, err := s.hasher.Hash(input.Secret)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"external_id": input.ExternalID,
			"action":      "register_hash_failed",
		}).Errorf("register failed: secret hash error: %v", err)
		return domain.Account{}, fmt.Errorf("failed to hash secret: %w", err)
	}

	id, err := s.idGenerator.NewID()
	if err != nil {
		return domain.Account{}, fmt.Errorf("failed to generate account id: %w", err)
	}

	account, err := s.repo.Create(ctx, domain.Account{
		ID:         domain.ID(id),
		ExternalID: input.ExternalID,
		Username:   input.Username,
		SecretHash: hash,
	})
	if err != nil {
		if errors.Is(err, commonerrors.ErrDuplicateUsername) || errors.Is(err, commonerrors.ErrAccountAlreadyExists) {
			s.log.WithFields(ctx, logger.Fields{
				"external_id": input.ExternalID,
				"username":    input.Username,
				"action":      "register_conflict",
			}).Warnf("register failed: %v", err)
			return domain.Account{}, err
		}
		s.log.WithFields(ctx, logger.Fields{
			"external_id": input.ExternalID,
			"action":      "register_create_failed",
		}).Errorf("register failed: %v", err)
		return domain.Account{}, fmt.Errorf("failed to create account: %w", err)
	}

	s.log.WithFields(ctx, logger.Fields{
		"external_id": account.ExternalID,
		"account_id":  string(account.ID),
		"username":    account.Username,
		"action":      "register_success",
	}).Info("account created")
	return account, nil
}

// Login verifies a username and secret pair for the web front-end.
func (s *AccountService) Login(ctx context.Context, username, secret string) (domain.Account, error) {
	account, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, commonerrors.ErrAccountNotFound) {
			s.log.WithFields(ctx, logger.Fields{
				"username": username,
				"action":   "login_account_not_found",
			}).Warn("login failed: not found")
			return domain.Account{}, commonerrors.ErrInvalidCredentials
		}
		return domain.Account{}, fmt.Errorf("failed to fetch account: %w", err)
	}

	if err := s.hasher.Compare(account.SecretHash, secret); err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"username": username,
			"action":   "login_invalid_secret",
		}).Warn("login failed: invalid secret")
		return domain.Account{}, commonerrors.ErrInvalidCredentials
	}

	s.log.WithFields(ctx, logger.Fields{
		"account_id": string(account.ID),
		"action":     "login_success",
	}).Info("login success")
	return account, nil
}

func (s *AccountService) Profile(ctx context.Context, externalID string) (domain.Profile, error) {
	account, err := s.repo.FindByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, commonerrors.ErrAccountNotFound) {
			return domain.Profile{}, commonerrors.ErrNotAuthenticated
		}
		return domain.Profile{}, fmt.Errorf("failed to load profile: %w", err)
	}
	return s.profileOf(account), nil
}

func (s *AccountService) ProfileByID(ctx context.Context, id domain.ID) (domain.Profile, error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, commonerrors.ErrAccountNotFound) {
			return domain.Profile{}, commonerrors.ErrNotAuthenticated
		}
		return domain.Profile{}, fmt.Errorf("failed to load profile: %w", err)
	}
	return s.profileOf(account), nil
}

func (s *AccountService) History(ctx context.Context, externalID string, limit int) ([]domain.LedgerEntry, error) {
	account, err := s.repo.FindByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, commonerrors.ErrAccountNotFound) {
			return nil, commonerrors.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	entries, err := s.repo.ListEntries(ctx, account.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

func (s *AccountService) profileOf(account domain.Account) domain.Profile {
	return domain.Profile{
		Username:          account.Username,
		Balance:           account.Balance,
		DaysSinceCreation: domain.DaysSince(account.CreatedAt, s.clock.Now()),
	}
}
