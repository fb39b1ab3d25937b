package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/crypt-ledger/internal/account/domain"
	"github.com/AlibekovAA/crypt-ledger/internal/common/clock"
	commonerrors "github.com/AlibekovAA/crypt-ledger/internal/common/errors"
)

var baseTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) (*MemoryRepository, *clock.MockClock) {
	t.Helper()
	clk := clock.NewMockClock(baseTime)
	return NewMemoryRepository(clk), clk
}

func mustCreate(t *testing.T, repo *MemoryRepository, externalID, username string, balance int64) domain.Account {
	t.Helper()
	acc, err := repo.Create(context.Background(), domain.Account{
		ExternalID: externalID,
		Username:   username,
		SecretHash: "hash",
		Balance:    balance,
	})
	require.NoError(t, err)
	return acc
}

func TestMemoryRepository_CreateAndFind(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	acc := mustCreate(t, repo, "u1", "alice", 0)
	assert.NotEmpty(t, acc.ID)
	assert.Equal(t, baseTime, acc.CreatedAt)
	assert.Nil(t, acc.LastClaimAt)

	byExt, err := repo.FindByExternalID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, byExt.ID)

	byName, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, byName.ID)

	_, err = repo.FindByExternalID(ctx, "nobody")
	assert.ErrorIs(t, err, commonerrors.ErrAccountNotFound)
}

func TestMemoryRepository_CreateUniqueness(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	mustCreate(t, repo, "u1", "alice", 0)

	_, err := repo.Create(ctx, domain.Account{ExternalID: "u2", Username: "alice"})
	assert.ErrorIs(t, err, commonerrors.ErrDuplicateUsername)

	_, err = repo.Create(ctx, domain.Account{ExternalID: "u1", Username: "bob"})
	assert.ErrorIs(t, err, commonerrors.ErrAccountAlreadyExists)
}

func TestMemoryRepository_ConcurrentCreateSameUsername(t *testing.T) {
	repo, _ := newTestRepo(t)

	var created int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Create(context.Background(), domain.Account{
				ExternalID: fmt.Sprintf("u%d", i),
				Username:   "racer",
			})
			if err == nil {
				atomic.AddInt32(&created, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), created)
}

func TestMemoryRepository_AdjustBalance(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	acc := mustCreate(t, repo, "u1", "alice", 50)

	balance, err := repo.AdjustBalance(ctx, acc.ID, -50)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	_, err = repo.AdjustBalance(ctx, acc.ID, -1)
	assert.ErrorIs(t, err, commonerrors.ErrInsufficientFunds)

	_, err = repo.AdjustBalance(ctx, "missing", 10)
	assert.ErrorIs(t, err, commonerrors.ErrAccountNotFound)
}

func TestMemoryRepository_ConcurrentDebitsNeverGoNegative(t *testing.T) {
	repo, _ := newTestRepo(t)
	acc := mustCreate(t, repo, "u1", "alice", 100)

	var ok int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.AdjustBalance(context.Background(), acc.ID, -7); err == nil {
				atomic.AddInt32(&ok, 1)
			}
		}()
	}
	wg.Wait()

	got, err := repo.FindByID(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(14), ok)
	assert.Equal(t, int64(2), got.Balance)
}

func TestMemoryRepository_SetLastClaimOnlyMovesForward(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	acc := mustCreate(t, repo, "u1", "alice", 0)

	require.NoError(t, repo.SetLastClaim(ctx, acc.ID, baseTime.Add(time.Hour)))
	require.NoError(t, repo.SetLastClaim(ctx, acc.ID, baseTime))

	got, err := repo.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastClaimAt)
	assert.Equal(t, baseTime.Add(time.Hour), *got.LastClaimAt)
}

func TestMemoryRepository_GrantRewardCooldown(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	acc := mustCreate(t, repo, "u1", "alice", 0)

	balance, err := repo.GrantReward(ctx, acc.ID, 40, baseTime, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance)

	_, err = repo.GrantReward(ctx, acc.ID, 40, baseTime.Add(23*time.Hour), 24*time.Hour)
	assert.ErrorIs(t, err, commonerrors.ErrClaimOnCooldown)

	balance, err = repo.GrantReward(ctx, acc.ID, 25, baseTime.Add(24*time.Hour), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(65), balance)

	entries, err := repo.ListEntries(ctx, acc.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(25), entries[0].Delta)
	assert.Equal(t, domain.EntryReward, entries[0].Kind)
}

func TestMemoryRepository_Transfer(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	a := mustCreate(t, repo, "a", "alice", 100)
	b := mustCreate(t, repo, "b", "bob", 10)

	res, err := repo.Transfer(ctx, a.ID, b.ID, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(70), res.SenderBalance)
	assert.Equal(t, int64(40), res.RecipientBalance)

	_, err = repo.Transfer(ctx, a.ID, b.ID, 71)
	assert.ErrorIs(t, err, commonerrors.ErrInsufficientFunds)

	_, err = repo.Transfer(ctx, a.ID, "ghost", 1)
	assert.ErrorIs(t, err, commonerrors.ErrRecipientNotFound)

	_, err = repo.Transfer(ctx, a.ID, a.ID, 1)
	assert.ErrorIs(t, err, commonerrors.ErrSelfOrBotTransfer)

	_, err = repo.Transfer(ctx, a.ID, b.ID, 0)
	assert.ErrorIs(t, err, commonerrors.ErrInvalidAmount)

	outgoing, err := repo.ListEntries(ctx, a.ID, 0)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, domain.EntryTransferOut, outgoing[0].Kind)
	require.NotNil(t, outgoing[0].CounterpartyID)
	assert.Equal(t, b.ID, *outgoing[0].CounterpartyID)
}

func TestMemoryRepository_ConcurrentTransfersConserveTotal(t *testing.T) {
	repo, _ := newTestRepo(t)
	a := mustCreate(t, repo, "a", "alice", 500)
	b := mustCreate(t, repo, "b", "bob", 500)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = repo.Transfer(context.Background(), a.ID, b.ID, 9)
		}()
		go func() {
			defer wg.Done()
			_, _ = repo.Transfer(context.Background(), b.ID, a.ID, 11)
		}()
	}
	wg.Wait()

	ga, err := repo.FindByID(context.Background(), a.ID)
	require.NoError(t, err)
	gb, err := repo.FindByID(context.Background(), b.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), ga.Balance+gb.Balance)
	assert.GreaterOrEqual(t, ga.Balance, int64(0))
	assert.GreaterOrEqual(t, gb.Balance, int64(0))
}

func TestMemoryRepository_CancelledContext(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Create(ctx, domain.Account{ExternalID: "u1", Username: "alice"})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = repo.FindByExternalID(context.Background(), "u1")
	assert.ErrorIs(t, err, commonerrors.ErrAccountNotFound)
}
