package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlibekovAA/crypt-ledger/internal/account/domain"
	commonerrors "github.com/AlibekovAA/crypt-ledger/internal/common/errors"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
	"github.com/AlibekovAA/crypt-ledger/internal/observability/metrics"
)

// Party is a chat user as seen by the front-end, whether or not they hold an account.
type Party struct {
	ExternalID  string
	DisplayName string
	Tag         string
	Bot         bool
}

type Request struct {
	Sender Party
	Target *Party
	Amount *int64
}

type Kind int

const (
	KindOwnBalance Kind = iota
	KindTargetBalance
	KindTransfer
)

type Result struct {
	Kind    Kind
	Message string
	Balance int64
	Amount  int64
	// Notified is false when the recipient could not be told about a committed transfer.
	Notified bool
}

type Store interface {
	FindByExternalID(ctx context.Context, externalID string) (domain.Account, error)
	Transfer(ctx context.Context, from, to domain.ID, amount int64) (domain.TransferResult, error)
}

type Notifier interface {
	OpenPrivateChannel(ctx context.Context, externalID string) (string, error)
	Send(ctx context.Context, channelID, text string) error
}

type Engine struct {
	store    Store
	notifier Notifier
	log      *logger.Logger
}

func NewEngine(store Store, notifier Notifier, log *logger.Logger) *Engine {
	return &Engine{
		store:    store,
		notifier: notifier,
		log:      log,
	}
}

func (e *Engine) Execute(ctx context.Context, req Request) (Result, error) {
	if req.Sender.Bot {
		return Result{}, commonerrors.ErrBotCaller
	}

	sender, err := e.store.FindByExternalID(ctx, req.Sender.ExternalID)
	if err != nil {
		if errors.Is(err, commonerrors.ErrAccountNotFound) {
			return Result{}, commonerrors.ErrNotAuthenticated
		}
		return Result{}, fmt.Errorf("failed to load sender: %w", err)
	}

	switch {
	case req.Target == nil && req.Amount == nil:
		return Result{
			Kind:    KindOwnBalance,
			Balance: sender.Balance,
			Message: fmt.Sprintf("Your current crypt balance is %d.", sender.Balance),
		}, nil
	case req.Target == nil:
		metrics.TransfersTotal.WithLabelValues("recipient_required").Inc()
		return Result{}, commonerrors.ErrRecipientRequired
	}

	target := *req.Target
	if target.Bot || target.ExternalID == req.Sender.ExternalID {
		metrics.TransfersTotal.WithLabelValues("self_or_bot").Inc()
		return Result{}, commonerrors.ErrSelfOrBotTransfer
	}

	if req.Amount == nil {
		return e.targetBalance(ctx, target)
	}

	return e.transfer(ctx, req.Sender, sender, target, *req.Amount)
}

func (e *Engine) targetBalance(ctx context.Context, target Party) (Result, error) {
	account, err := e.store.FindByExternalID(ctx, target.ExternalID)
	if err != nil {
		if errors.Is(err, commonerrors.ErrAccountNotFound) {
			return Result{}, noAccount(target)
		}
		return Result{}, fmt.Errorf("failed to load target: %w", err)
	}
	return Result{
		Kind:    KindTargetBalance,
		Balance: account.Balance,
		Message: fmt.Sprintf("%s has %d crypt.", target.DisplayName, account.Balance),
	}, nil
}

func (e *Engine) transfer(ctx context.Context, senderParty Party, sender domain.Account, target Party, amount int64) (Result, error) {
	if amount <= 0 {
		metrics.TransfersTotal.WithLabelValues("invalid_amount").Inc()
		return Result{}, commonerrors.ErrInvalidAmount
	}
	if sender.Balance < amount {
		metrics.TransfersTotal.WithLabelValues("insufficient_funds").Inc()
		return Result{}, commonerrors.ErrInsufficientFunds
	}

	recipient, err := e.store.FindByExternalID(ctx, target.ExternalID)
	if err != nil {
		if errors.Is(err, commonerrors.ErrAccountNotFound) {
			metrics.TransfersTotal.WithLabelValues("recipient_not_found").Inc()
			return Result{}, noAccount(target)
		}
		return Result{}, fmt.Errorf("failed to load recipient: %w", err)
	}

	balances, err := e.store.Transfer(ctx, sender.ID, recipient.ID, amount)
	if err != nil {
		switch {
		case errors.Is(err, commonerrors.ErrInsufficientFunds):
			metrics.TransfersTotal.WithLabelValues("insufficient_funds").Inc()
			return Result{}, commonerrors.ErrInsufficientFunds
		case errors.Is(err, commonerrors.ErrRecipientNotFound):
			metrics.TransfersTotal.WithLabelValues("recipient_not_found").Inc()
			return Result{}, noAccount(target)
		case errors.Is(err, commonerrors.ErrAccountNotFound):
			return Result{}, commonerrors.ErrNotAuthenticated
		}
		e.log.WithFields(ctx, logger.Fields{
			"sender_id":    string(sender.ID),
			"recipient_id": string(recipient.ID),
			"amount":       amount,
			"action":       "transfer_failed",
		}).Errorf("transfer failed: %v", err)
		return Result{}, fmt.Errorf("failed to transfer: %w", err)
	}

	metrics.TransfersTotal.WithLabelValues("completed").Inc()
	metrics.TransferAmount.Observe(float64(amount))
	e.log.WithFields(ctx, logger.Fields{
		"sender_id":    string(sender.ID),
		"recipient_id": string(recipient.ID),
		"amount":       amount,
		"action":       "transfer_completed",
	}).Info("transfer completed")

	notified := e.notify(ctx, senderParty, target, amount)

	return Result{
		Kind:     KindTransfer,
		Amount:   amount,
		Balance:  balances.SenderBalance,
		Message:  fmt.Sprintf("Successfully transferred %d crypt to %s.", amount, target.DisplayName),
		Notified: notified,
	}, nil
}

// notify is best effort; the transfer is already committed.
func (e *Engine) notify(ctx context.Context, sender, target Party, amount int64) bool {
	if e.notifier == nil {
		return false
	}

	channelID, err := e.notifier.OpenPrivateChannel(ctx, target.ExternalID)
	if err == nil {
		err = e.notifier.Send(ctx, channelID, Receipt(sender, amount))
	}
	if err != nil {
		metrics.TransferNotificationFailures.Inc()
		e.log.WithFields(ctx, logger.Fields{
			"recipient_external_id": target.ExternalID,
			"action":                "transfer_notify_failed",
		}).Warnf("transfer notification not delivered: %v", err)
		return false
	}
	return true
}

func Receipt(sender Party, amount int64) string {
	return fmt.Sprintf(
		"Transfer notification, Transfer Receipt:\n```\nYou have received %d crypt from user %s in bot user %s id %s\n```",
		amount, sender.DisplayName, sender.Tag, sender.ExternalID,
	)
}

func noAccount(target Party) error {
	return commonerrors.ErrRecipientNotFound.WithMessage(fmt.Sprintf("%s does not have an account.", target.DisplayName))
}
