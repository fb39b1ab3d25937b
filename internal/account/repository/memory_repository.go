package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AlibekovAA/crypt-ledger/internal/account/domain"
	"github.com/AlibekovAA/crypt-ledger/internal/common/clock"
	commonerrors "github.com/AlibekovAA/crypt-ledger/internal/common/errors"
)

// MemoryRepository keeps accounts in process memory. One mutex serializes every mutation.
type MemoryRepository struct {
	mu           sync.Mutex
	clock        clock.Clock
	accounts     map[domain.ID]*domain.Account
	byExternalID map[string]domain.ID
	byUsername   map[string]domain.ID
	entries      map[domain.ID][]domain.LedgerEntry
}

func NewMemoryRepository(clk clock.Clock) *MemoryRepository {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &MemoryRepository{
		clock:        clk,
		accounts:     make(map[domain.ID]*domain.Account),
		byExternalID: make(map[string]domain.ID),
		byUsername:   make(map[string]domain.ID),
		entries:      make(map[domain.ID][]domain.LedgerEntry),
	}
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (r *MemoryRepository) Create(ctx context.Context, account domain.Account) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byExternalID[account.ExternalID]; ok {
		return domain.Account{}, commonerrors.ErrAccountAlreadyExists
	}
	if _, ok := r.byUsername[account.Username]; ok {
		return domain.Account{}, commonerrors.ErrDuplicateUsername
	}

	if account.ID == "" {
		account.ID = domain.ID(uuid.NewString())
	}
	account.CreatedAt = r.clock.Now()

	stored := account
	r.accounts[account.ID] = &stored
	r.byExternalID[account.ExternalID] = account.ID
	r.byUsername[account.Username] = account.ID
	return account, nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id domain.ID) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(id)
}

func (r *MemoryRepository) FindByExternalID(ctx context.Context, externalID string) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byExternalID[externalID]
	if !ok {
		return domain.Account{}, commonerrors.ErrAccountNotFound
	}
	return r.snapshot(id)
}

func (r *MemoryRepository) FindByUsername(ctx context.Context, username string) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byUsername[username]
	if !ok {
		return domain.Account{}, commonerrors.ErrAccountNotFound
	}
	return r.snapshot(id)
}

func (r *MemoryRepository) AdjustBalance(ctx context.Context, id domain.ID, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[id]
	if !ok {
		return 0, commonerrors.ErrAccountNotFound
	}
	if acc.Balance+delta < 0 {
		return 0, commonerrors.ErrInsufficientFunds
	}
	acc.Balance += delta
	return acc.Balance, nil
}

func (r *MemoryRepository) SetLastClaim(ctx context.Context, id domain.ID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[id]
	if !ok {
		return commonerrors.ErrAccountNotFound
	}
	if acc.LastClaimAt == nil || acc.LastClaimAt.Before(at) {
		t := at
		acc.LastClaimAt = &t
	}
	return nil
}

func (r *MemoryRepository) GrantReward(ctx context.Context, id domain.ID, amount int64, at time.Time, cooldown time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, commonerrors.ErrInvalidAmount
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[id]
	if !ok {
		return 0, commonerrors.ErrAccountNotFound
	}
	if acc.LastClaimAt != nil && acc.LastClaimAt.After(at.Add(-cooldown)) {
		return 0, commonerrors.ErrClaimOnCooldown
	}

	acc.Balance += amount
	t := at
	acc.LastClaimAt = &t
	r.appendEntry(domain.LedgerEntry{
		AccountID:    id,
		Delta:        amount,
		Kind:         domain.EntryReward,
		BalanceAfter: acc.Balance,
		CreatedAt:    at,
	})
	return acc.Balance, nil
}

func (r *MemoryRepository) Transfer(ctx context.Context, from, to domain.ID, amount int64) (domain.TransferResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.TransferResult{}, err
	}
	if amount <= 0 {
		return domain.TransferResult{}, commonerrors.ErrInvalidAmount
	}
	if from == to {
		return domain.TransferResult{}, commonerrors.ErrSelfOrBotTransfer
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sender, ok := r.accounts[from]
	if !ok {
		return domain.TransferResult{}, commonerrors.ErrAccountNotFound
	}
	recipient, ok := r.accounts[to]
	if !ok {
		return domain.TransferResult{}, commonerrors.ErrRecipientNotFound
	}
	if sender.Balance < amount {
		return domain.TransferResult{}, commonerrors.ErrInsufficientFunds
	}

	sender.Balance -= amount
	recipient.Balance += amount

	now := r.clock.Now()
	fromID, toID := from, to
	r.appendEntry(domain.LedgerEntry{
		AccountID:      from,
		Delta:          -amount,
		Kind:           domain.EntryTransferOut,
		CounterpartyID: &toID,
		BalanceAfter:   sender.Balance,
		CreatedAt:      now,
	})
	r.appendEntry(domain.LedgerEntry{
		AccountID:      to,
		Delta:          amount,
		Kind:           domain.EntryTransferIn,
		CounterpartyID: &fromID,
		BalanceAfter:   recipient.Balance,
		CreatedAt:      now,
	})

	return domain.TransferResult{
		SenderBalance:    sender.Balance,
		RecipientBalance: recipient.Balance,
	}, nil
}

func (r *MemoryRepository) ListEntries(ctx context.Context, id domain.ID, limit int) ([]domain.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	r.mu.Lock()
	defer r.mu.Unlock()

	src := r.entries[id]
	out := make([]domain.LedgerEntry, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		out = append(out, src[i])
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) appendEntry(e domain.LedgerEntry) {
	e.ID = uuid.NewString()
	r.entries[e.AccountID] = append(r.entries[e.AccountID], e)
}

func (r *MemoryRepository) snapshot(id domain.ID) (domain.Account, error) {
	acc, ok := r.accounts[id]
	if !ok {
		return domain.Account{}, commonerrors.ErrAccountNotFound
	}
	out := *acc
	if acc.LastClaimAt != nil {
		t := *acc.LastClaimAt
		out.LastClaimAt = &t
	}
	return out, nil
}
