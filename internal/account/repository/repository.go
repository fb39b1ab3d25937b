package repository

import (
	"context"
	"time"

	"github.com/AlibekovAA/crypt-ledger/internal/account/domain"
)

type Repository interface {
	Create(ctx context.Context, account domain.Account) (domain.Account, error)
	FindByID(ctx context.Context, id domain.ID) (domain.Account, error)
	FindByExternalID(ctx context.Context, externalID string) (domain.Account, error)
	FindByUsername(ctx context.Context, username string) (domain.Account, error)
	// AdjustBalance applies delta only if the resulting balance stays non-negative.
	AdjustBalance(ctx context.Context, id domain.ID, delta int64) (int64, error)
	// SetLastClaim never moves the timestamp backwards.
	SetLastClaim(ctx context.Context, id domain.ID, at time.Time) error
	// GrantReward credits amount and stamps the claim time if the cooldown has elapsed.
	GrantReward(ctx context.Context, id domain.ID, amount int64, at time.Time, cooldown time.Duration) (int64, error)
	Transfer(ctx context.Context, from, to domain.ID, amount int64) (domain.TransferResult, error)
	ListEntries(ctx context.Context, id domain.ID, limit int) ([]domain.LedgerEntry, error)
}

const (
	usernameConstraint   = "accounts_username_key"
	externalIDConstraint = "accounts_external_id_key"
)
