package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	commonerrors "github.com/AlibekovAA/crypt-ledger/internal/common/errors"
	"github.com/AlibekovAA/crypt-ledger/internal/common/jwtverify"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
	"github.com/AlibekovAA/crypt-ledger/internal/observability/metrics"
	"github.com/AlibekovAA/crypt-ledger/internal/registration"
)

type CommandHandler interface {
	HandleCommand(ctx context.Context, caller jwtverify.Claims, cmd CommandPayload) (ReplyPayload, error)
}

type DialogueHandler interface {
	HandleMessage(ctx context.Context, msg registration.Inbound) (registration.Outcome, error)
}

type MessageRouter interface {
	Route(ctx context.Context, client *Client, msg *WSMessage) error
}

type messageRouter struct {
	hub      *Hub
	commands CommandHandler
	dialogue DialogueHandler
	log      *logger.Logger
}

func NewMessageRouter(hub *Hub, commands CommandHandler, dialogue DialogueHandler, log *logger.Logger) MessageRouter {
	return &messageRouter{
		hub:      hub,
		commands: commands,
		dialogue: dialogue,
		log:      log,
	}
}

func (r *messageRouter) Route(ctx context.Context, client *Client, msg *WSMessage) error {
	switch msg.Type {
	case TypeCommand:
		return r.handleCommand(ctx, client, msg)
	case TypeMessage:
		return r.handleChannelMessage(ctx, client, msg)
	default:
		return fmt.Errorf("unsupported message type %q", msg.Type)
	}
}

func (r *messageRouter) handleCommand(ctx context.Context, client *Client, msg *WSMessage) error {
	var payload CommandPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.Name == "" {
		metrics.GatewayErrors.WithLabelValues("invalid_command").Inc()
		r.hub.sendError(ctx, client, commonerrors.ErrInvalidPayload)
		return nil
	}

	metrics.GatewayCommandsTotal.WithLabelValues(payload.Name).Inc()

	reply, err := r.commands.HandleCommand(ctx, client.Claims(), payload)
	if err != nil {
		r.log.WithFields(ctx, logger.Fields{
			"external_id": client.ExternalID(),
			"command":     payload.Name,
			"action":      "ws_command_failed",
		}).Warnf("command failed: %v", err)
		r.hub.sendError(ctx, client, err)
		return nil
	}

	reply.Command = payload.Name
	out, err := marshalMessage(TypeReply, reply)
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}
	return r.hub.sendToClient(ctx, client, out)
}

func (r *messageRouter) handleChannelMessage(ctx context.Context, client *Client, msg *WSMessage) error {
	var payload MessagePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		metrics.GatewayErrors.WithLabelValues("invalid_message").Inc()
		r.hub.sendError(ctx, client, commonerrors.ErrInvalidPayload)
		return nil
	}

	outcome, err := r.dialogue.HandleMessage(ctx, registration.Inbound{
		ChannelID: payload.ChannelID,
		AuthorID:  client.ExternalID(),
		Text:      payload.Text,
	})
	if err != nil {
		return err
	}

	if !outcome.Consumed {
		r.log.WithFields(ctx, logger.Fields{
			"external_id": client.ExternalID(),
			"channel_id":  payload.ChannelID,
			"action":      "ws_message_ignored",
		}).Debug("message not part of a dialogue")
	}
	return nil
}
