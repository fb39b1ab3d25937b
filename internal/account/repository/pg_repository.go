package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/AlibekovAA/crypt-ledger/internal/account/domain"
	"github.com/AlibekovAA/crypt-ledger/internal/common/constants"
	"github.com/AlibekovAA/crypt-ledger/internal/common/db"
	commonerrors "github.com/AlibekovAA/crypt-ledger/internal/common/errors"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
	"github.com/AlibekovAA/crypt-ledger/internal/common/resilience"
)

const accountColumns = `id, external_id, username, secret_hash, balance, created_at, last_claim_at`

type PgRepository struct {
	pool    *pgxpool.Pool
	log     *logger.Logger
	retry   db.RetryConfig
	breaker *resilience.CircuitBreaker
}

func NewPgRepository(pool *pgxpool.Pool, log *logger.Logger) *PgRepository {
	return &PgRepository{
		pool:  pool,
		log:   log,
		retry: db.DefaultRetryConfig,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Threshold:  constants.StoreBreakerThreshold,
			Timeout:    constants.DBQueryTimeout,
			ResetAfter: constants.StoreBreakerResetAfter,
			Name:       "accounts",
			IsFailure: func(err error) bool {
				return !errors.Is(err, errRewardRejected) && resilience.IsInfrastructureFailure(err)
			},
			Logger: log,
		}),
	}
}

func (r *PgRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PgRepository) Create(ctx context.Context, account domain.Account) (domain.Account, error) {
	start := time.Now()
	row := r.pool.QueryRow(
		ctx,
		`INSERT INTO accounts (id, external_id, username, secret_hash, balance)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		string(account.ID),
		account.ExternalID,
		account.Username,
		account.SecretHash,
		account.Balance,
	)

	err := row.Scan(&account.CreatedAt)
	if constraint, ok := db.ConstraintViolation(err); ok {
		db.MeasureQueryDuration("create account", start)
		switch constraint {
		case usernameConstraint:
			return domain.Account{}, commonerrors.ErrDuplicateUsername
		case externalIDConstraint:
			return domain.Account{}, commonerrors.ErrAccountAlreadyExists
		}
	}
	if err := db.HandleExecError(err, "create account", start); err != nil {
		return domain.Account{}, err
	}
	return account, nil
}

func (r *PgRepository) FindByID(ctx context.Context, id domain.ID) (domain.Account, error) {
	return r.findOne(ctx, "find account by id", `WHERE id = $1`, string(id))
}

func (r *PgRepository) FindByExternalID(ctx context.Context, externalID string) (domain.Account, error) {
	return r.findOne(ctx, "find account by external id", `WHERE external_id = $1`, externalID)
}

func (r *PgRepository) FindByUsername(ctx context.Context, username string) (domain.Account, error) {
	return r.findOne(ctx, "find account by username", `WHERE username = $1`, username)
}

func (r *PgRepository) findOne(ctx context.Context, operation, where string, arg any) (domain.Account, error) {
	var account domain.Account
	err := r.breaker.Call(ctx, func(ctx context.Context) error {
		start := time.Now()
		row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts `+where, arg)

		found, err := scanAccount(row)
		if err := db.HandleQueryError(err, commonerrors.ErrAccountNotFound, operation, start); err != nil {
			return err
		}
		account = found
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}
	return account, nil
}

func (r *PgRepository) AdjustBalance(ctx context.Context, id domain.ID, delta int64) (int64, error) {
	start := time.Now()
	var balance int64
	err := r.pool.QueryRow(
		ctx,
		`UPDATE accounts SET balance = balance + $2
		 WHERE id = $1 AND balance + $2 >= 0
		 RETURNING balance`,
		string(id),
		delta,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		db.MeasureQueryDuration("adjust balance", start)
		return 0, r.missingOr(ctx, id, commonerrors.ErrInsufficientFunds)
	}
	if err := db.HandleExecError(err, "adjust balance", start); err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *PgRepository) SetLastClaim(ctx context.Context, id domain.ID, at time.Time) error {
	start := time.Now()
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE accounts SET last_claim_at = $2
		 WHERE id = $1 AND (last_claim_at IS NULL OR last_claim_at < $2)`,
		string(id),
		at,
	)
	if err := db.HandleExecError(err, "set last claim", start); err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missingOr(ctx, id, nil)
	}
	return nil
}

func (r *PgRepository) GrantReward(ctx context.Context, id domain.ID, amount int64, at time.Time, cooldown time.Duration) (int64, error) {
	if amount <= 0 {
		return 0, commonerrors.ErrInvalidAmount
	}

	var balance int64
	err := r.withRetryTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		start := time.Now()
		err := tx.QueryRow(
			ctx,
			`UPDATE accounts SET balance = balance + $2, last_claim_at = $3
			 WHERE id = $1 AND (last_claim_at IS NULL OR last_claim_at <= $4)
			 RETURNING balance`,
			string(id),
			amount,
			at,
			at.Add(-cooldown),
		).Scan(&balance)
		if errors.Is(err, pgx.ErrNoRows) {
			db.MeasureQueryDuration("grant reward", start)
			return errRewardRejected
		}
		if err := db.HandleExecError(err, "grant reward", start); err != nil {
			return err
		}

		return insertEntry(ctx, tx, domain.LedgerEntry{
			AccountID:    id,
			Delta:        amount,
			Kind:         domain.EntryReward,
			BalanceAfter: balance,
			CreatedAt:    at,
		})
	})
	if errors.Is(err, errRewardRejected) {
		return 0, r.missingOr(ctx, id, commonerrors.ErrClaimOnCooldown)
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

var errRewardRejected = errors.New("reward rejected")

func (r *PgRepository) Transfer(ctx context.Context, from, to domain.ID, amount int64) (domain.TransferResult, error) {
	if amount <= 0 {
		return domain.TransferResult{}, commonerrors.ErrInvalidAmount
	}
	if from == to {
		return domain.TransferResult{}, commonerrors.ErrSelfOrBotTransfer
	}

	var result domain.TransferResult
	err := r.withRetryTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		start := time.Now()
		rows, err := tx.Query(
			ctx,
			`SELECT id, balance FROM accounts WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`,
			[]string{string(from), string(to)},
		)
		if err != nil {
			return db.HandleExecError(err, "lock transfer accounts", start)
		}

		balances := make(map[domain.ID]int64, 2)
		for rows.Next() {
			var id string
			var balance int64
			if err := rows.Scan(&id, &balance); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan transfer account: %w", err)
			}
			balances[domain.ID(id)] = balance
		}
		rows.Close()
		if err := db.HandleExecError(rows.Err(), "lock transfer accounts", start); err != nil {
			return err
		}

		senderBalance, ok := balances[from]
		if !ok {
			return commonerrors.ErrAccountNotFound
		}
		recipientBalance, ok := balances[to]
		if !ok {
			return commonerrors.ErrRecipientNotFound
		}
		if senderBalance < amount {
			return commonerrors.ErrInsufficientFunds
		}

		start = time.Now()
		if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance - $2 WHERE id = $1`, string(from), amount); err != nil {
			return db.HandleExecError(err, "debit transfer sender", start)
		}
		if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance + $2 WHERE id = $1`, string(to), amount); err != nil {
			return db.HandleExecError(err, "credit transfer recipient", start)
		}
		db.MeasureQueryDuration("transfer balance", start)

		result = domain.TransferResult{
			SenderBalance:    senderBalance - amount,
			RecipientBalance: recipientBalance + amount,
		}

		now := time.Now().UTC()
		sender, recipient := from, to
		if err := insertEntry(ctx, tx, domain.LedgerEntry{
			AccountID:      from,
			Delta:          -amount,
			Kind:           domain.EntryTransferOut,
			CounterpartyID: &recipient,
			BalanceAfter:   result.SenderBalance,
			CreatedAt:      now,
		}); err != nil {
			return err
		}
		return insertEntry(ctx, tx, domain.LedgerEntry{
			AccountID:      to,
			Delta:          amount,
			Kind:           domain.EntryTransferIn,
			CounterpartyID: &sender,
			BalanceAfter:   result.RecipientBalance,
			CreatedAt:      now,
		})
	})
	if err != nil {
		return domain.TransferResult{}, err
	}
	return result, nil
}

func (r *PgRepository) ListEntries(ctx context.Context, id domain.ID, limit int) ([]domain.LedgerEntry, error) {
	limit = clampLimit(limit)

	start := time.Now()
	rows, err := r.pool.Query(
		ctx,
		`SELECT id, account_id, delta, kind, counterparty_id, balance_after, created_at
		 FROM ledger_entries
		 WHERE account_id = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2`,
		string(id),
		limit,
	)
	if err != nil {
		return nil, db.HandleExecError(err, "list ledger entries", start)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var (
			e            domain.LedgerEntry
			accountID    string
			kind         string
			counterparty *string
		)
		if err := rows.Scan(&e.ID, &accountID, &e.Delta, &kind, &counterparty, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.AccountID = domain.ID(accountID)
		e.Kind = domain.EntryKind(kind)
		if counterparty != nil {
			cp := domain.ID(*counterparty)
			e.CounterpartyID = &cp
		}
		entries = append(entries, e)
	}

	if err := db.HandleExecError(rows.Err(), "list ledger entries", start); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *PgRepository) missingOr(ctx context.Context, id domain.ID, otherwise error) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, string(id)).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check account existence: %w", err)
	}
	if !exists {
		return commonerrors.ErrAccountNotFound
	}
	return otherwise
}

func (r *PgRepository) withRetryTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return r.breaker.Call(ctx, func(ctx context.Context) error {
		return db.RetryWithBackoff(ctx, r.log, r.retry, func() error {
			return r.withTx(ctx, fn)
		})
	})
}

func (r *PgRepository) withTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(ctx, tx)
	return err
}

func insertEntry(ctx context.Context, tx pgx.Tx, e domain.LedgerEntry) error {
	start := time.Now()
	var counterparty *string
	if e.CounterpartyID != nil {
		cp := string(*e.CounterpartyID)
		counterparty = &cp
	}
	_, err := tx.Exec(
		ctx,
		`INSERT INTO ledger_entries (id, account_id, delta, kind, counterparty_id, balance_after, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(),
		string(e.AccountID),
		e.Delta,
		string(e.Kind),
		counterparty,
		e.BalanceAfter,
		e.CreatedAt,
	)
	return db.HandleExecError(err, "insert ledger entry", start)
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var (
		a           domain.Account
		id          string
		lastClaimAt *time.Time
	)
	if err := row.Scan(&id, &a.ExternalID, &a.Username, &a.SecretHash, &a.Balance, &a.CreatedAt, &lastClaimAt); err != nil {
		return domain.Account{}, err
	}
	a.ID = domain.ID(id)
	a.LastClaimAt = lastClaimAt
	return a, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return constants.DefaultHistoryLimit
	}
	if limit > constants.MaxHistoryLimit {
		return constants.MaxHistoryLimit
	}
	return limit
}
