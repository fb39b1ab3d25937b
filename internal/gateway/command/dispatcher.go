package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AlibekovAA/crypt-ledger/internal/account/domain"
	"github.com/AlibekovAA/crypt-ledger/internal/common/constants"
	commonerrors "github.com/AlibekovAA/crypt-ledger/internal/common/errors"
	"github.com/AlibekovAA/crypt-ledger/internal/common/jwtverify"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
	"github.com/AlibekovAA/crypt-ledger/internal/gateway/websocket"
	"github.com/AlibekovAA/crypt-ledger/internal/registration"
	"github.com/AlibekovAA/crypt-ledger/internal/transfer"
)

const (
	NameCreate  = "create"
	NameProfile = "profile"
	NameCrypt   = "crypt"
	NameHistory = "history"
	NameCancel  = "cancel"

	profileColor = 0x3498db

	msgNoDialogue = "You have no account creation in progress."
)

type Registrar interface {
	Start(ctx context.Context, externalID string) (registration.StartResult, error)
	Cancel(ctx context.Context, externalID string) (bool, error)
}

type Accounts interface {
	Profile(ctx context.Context, externalID string) (domain.Profile, error)
	History(ctx context.Context, externalID string, limit int) ([]domain.LedgerEntry, error)
}

type Transfers interface {
	Execute(ctx context.Context, req transfer.Request) (transfer.Result, error)
}

// Dispatcher turns chat commands into replies. Expected refusals come back as reply
// text; only failures the caller cannot act on are returned as errors.
type Dispatcher struct {
	registrar Registrar
	accounts  Accounts
	transfers Transfers
	log       *logger.Logger
}

func NewDispatcher(registrar Registrar, accounts Accounts, transfers Transfers, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		registrar: registrar,
		accounts:  accounts,
		transfers: transfers,
		log:       log,
	}
}

func (d *Dispatcher) HandleCommand(ctx context.Context, caller jwtverify.Claims, cmd websocket.CommandPayload) (websocket.ReplyPayload, error) {
	var (
		reply websocket.ReplyPayload
		err   error
	)

	switch strings.ToLower(strings.TrimPrefix(cmd.Name, "/")) {
	case NameCreate:
		reply, err = d.create(ctx, caller)
	case NameProfile:
		reply, err = d.profile(ctx, caller)
	case NameCrypt:
		reply, err = d.crypt(ctx, caller, cmd.Options)
	case NameHistory:
		reply, err = d.history(ctx, caller, cmd.Options)
	case NameCancel:
		reply, err = d.cancel(ctx, caller)
	default:
		return websocket.ReplyPayload{}, commonerrors.ErrUnknownCommand.WithMessage(fmt.Sprintf("unknown command %q", cmd.Name))
	}

	if err != nil {
		if text, ok := userFacing(err); ok {
			d.log.WithFields(ctx, logger.Fields{
				"external_id": caller.ExternalID,
				"command":     cmd.Name,
				"reason":      text,
				"action":      "command_refused",
			}).Info("command refused")
			return websocket.ReplyPayload{Text: text}, nil
		}
		return websocket.ReplyPayload{}, err
	}
	return reply, nil
}

func (d *Dispatcher) create(ctx context.Context, caller jwtverify.Claims) (websocket.ReplyPayload, error) {
	if caller.Bot {
		return websocket.ReplyPayload{}, commonerrors.ErrBotCaller
	}
	if _, err := d.registrar.Start(ctx, caller.ExternalID); err != nil {
		return websocket.ReplyPayload{}, err
	}
	return websocket.ReplyPayload{Text: registration.CheckDMReply()}, nil
}

func (d *Dispatcher) profile(ctx context.Context, caller jwtverify.Claims) (websocket.ReplyPayload, error) {
	profile, err := d.accounts.Profile(ctx, caller.ExternalID)
	if err != nil {
		return websocket.ReplyPayload{}, err
	}

	return websocket.ReplyPayload{
		Embed: &websocket.Embed{
			Title:       "User Information",
			Description: "Here is your account information:",
			Color:       profileColor,
			Fields: []websocket.EmbedField{
				{Name: "Username", Value: profile.Username, Inline: true},
				{Name: "Crypt", Value: fmt.Sprintf("%d", profile.Balance), Inline: true},
				{Name: "Member since in bot", Value: fmt.Sprintf("%d days", profile.DaysSinceCreation), Inline: true},
			},
		},
	}, nil
}

func (d *Dispatcher) crypt(ctx context.Context, caller jwtverify.Claims, opts websocket.CommandOptions) (websocket.ReplyPayload, error) {
	req := transfer.Request{
		Sender: transfer.Party{
			ExternalID:  caller.ExternalID,
			DisplayName: caller.DisplayName,
			Tag:         caller.Tag,
			Bot:         caller.Bot,
		},
		Amount: opts.Amount,
	}
	if opts.User != nil {
		req.Target = &transfer.Party{
			ExternalID:  opts.User.ID,
			DisplayName: opts.User.Username,
			Tag:         opts.User.Tag,
			Bot:         opts.User.Bot,
		}
	}

	result, err := d.transfers.Execute(ctx, req)
	if err != nil {
		return websocket.ReplyPayload{}, err
	}
	return websocket.ReplyPayload{Text: result.Message}, nil
}

func (d *Dispatcher) history(ctx context.Context, caller jwtverify.Claims, opts websocket.CommandOptions) (websocket.ReplyPayload, error) {
	limit := constants.DefaultHistoryLimit
	if opts.Limit != nil {
		limit = *opts.Limit
	}

	entries, err := d.accounts.History(ctx, caller.ExternalID, limit)
	if err != nil {
		return websocket.ReplyPayload{}, err
	}
	if len(entries) == 0 {
		return websocket.ReplyPayload{Text: "No crypt movements yet."}, nil
	}

	fields := make([]websocket.EmbedField, 0, len(entries))
	for _, entry := range entries {
		fields = append(fields, websocket.EmbedField{
			Name:  entry.CreatedAt.UTC().Format("2006-01-02 15:04"),
			Value: describeEntry(entry),
		})
	}
	return websocket.ReplyPayload{
		Embed: &websocket.Embed{
			Title:  "Crypt History",
			Color:  profileColor,
			Fields: fields,
		},
	}, nil
}

func (d *Dispatcher) cancel(ctx context.Context, caller jwtverify.Claims) (websocket.ReplyPayload, error) {
	cancelled, err := d.registrar.Cancel(ctx, caller.ExternalID)
	if err != nil {
		return websocket.ReplyPayload{}, err
	}
	if !cancelled {
		return websocket.ReplyPayload{Text: msgNoDialogue}, nil
	}
	return websocket.ReplyPayload{Text: "Account creation cancelled."}, nil
}

func describeEntry(entry domain.LedgerEntry) string {
	var label string
	switch entry.Kind {
	case domain.EntryReward:
		label = "daily reward"
	case domain.EntryTransferOut:
		label = "sent"
	case domain.EntryTransferIn:
		label = "received"
	default:
		label = string(entry.Kind)
	}
	return fmt.Sprintf("%+d crypt, %s (balance %d)", entry.Delta, label, entry.BalanceAfter)
}

func userFacing(err error) (string, bool) {
	de, ok := commonerrors.AsDomainError(err)
	if !ok {
		return "", false
	}
	if de.Category() == commonerrors.CategoryInternal || errors.Is(err, commonerrors.ErrUnknownCommand) {
		return "", false
	}
	return de.Message(), true
}
