package domain

import "time"

type ID string

type Account struct {
	ID          ID
	ExternalID  string
	Username    string
	SecretHash  string
	Balance     int64
	CreatedAt   time.Time
	LastClaimAt *time.Time
}

type EntryKind string

const (
	EntryReward      EntryKind = "reward"
	EntryTransferOut EntryKind = "transfer_out"
	EntryTransferIn  EntryKind = "transfer_in"
)

type LedgerEntry struct {
	ID             string
	AccountID      ID
	Delta          int64
	Kind           EntryKind
	CounterpartyID *ID
	BalanceAfter   int64
	CreatedAt      time.Time
}

type Profile struct {
	Username          string
	Balance           int64
	DaysSinceCreation int
}

// TransferResult carries both balances after a committed transfer.
type TransferResult struct {
	SenderBalance    int64
	RecipientBalance int64
}

// DaysSince rounds any started day up, so an account created a minute ago is one day old.
func DaysSince(createdAt, now time.Time) int {
	elapsed := now.Sub(createdAt)
	if elapsed < 0 {
		elapsed = -elapsed
	}
	days := int(elapsed / (24 * time.Hour))
	if elapsed%(24*time.Hour) != 0 {
		days++
	}
	return days
}
