package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AlibekovAA/crypt-ledger/internal/common/constants"
	commonerrors "github.com/AlibekovAA/crypt-ledger/internal/common/errors"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
	"github.com/AlibekovAA/crypt-ledger/internal/observability/metrics"
)

type Hub struct {
	clients     sync.Map
	register    chan *Client
	unregister  chan *Client
	clientCount atomic.Int64
	log         *logger.Logger
	processor   *MessageProcessor
	sendTimeout time.Duration
	config      HubConfig
	ctx         context.Context
	cancel      context.CancelFunc
}

type HubConfig struct {
	ProcessorShards    int
	ProcessorQueueSize int
	ProcessingTimeout  time.Duration
	SendTimeout        time.Duration
}

func NewHub(log *logger.Logger, config HubConfig) *Hub {
	if config.SendTimeout <= 0 {
		config.SendTimeout = constants.DefaultWebSocketSendTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		log:         log,
		sendTimeout: config.SendTimeout,
		config:      config,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetHandlers wires command and dialogue handling. It must be called before Run.
func (h *Hub) SetHandlers(commands CommandHandler, dialogue DialogueHandler) {
	router := NewMessageRouter(h, commands, dialogue, h.log)
	h.processor = NewMessageProcessor(
		h.config.ProcessorShards,
		router,
		h.log,
		h.config.ProcessorQueueSize,
		h.config.ProcessingTimeout,
	)
}

func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		return false
	}

	select {
	case <-client.registered:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
		client.close()
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer h.cancel()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			externalID := client.ExternalID()
			if existing, ok := h.clients.Load(externalID); ok {
				existingClient := existing.(*Client)
				h.log.WithFields(client.ctx, logger.Fields{
					"external_id": externalID,
					"action":      "ws_close_existing",
				}).Info("websocket closing existing connection")
				existingClient.close()
				h.clients.Delete(externalID)
				h.clientCount.Add(-1)
				metrics.GatewayConnectionsActive.Dec()
				metrics.GatewayDisconnections.WithLabelValues("replaced").Inc()
			}
			h.clients.Store(externalID, client)
			close(client.registered)
			totalClients := h.clientCount.Add(1)
			metrics.GatewayConnectionsActive.Inc()
			h.log.WithFields(client.ctx, logger.Fields{
				"external_id": externalID,
				"total":       totalClients,
				"action":      "ws_register",
			}).Info("websocket client registered")

		case client := <-h.unregister:
			h.handleUnregister(client)
		}
	}
}

func (h *Hub) handleUnregister(client *Client) {
	defer client.close()

	externalID := client.ExternalID()
	current, ok := h.clients.Load(externalID)
	if !ok || current.(*Client) != client {
		return
	}

	h.clients.Delete(externalID)
	totalClients := h.clientCount.Add(-1)
	metrics.GatewayConnectionsActive.Dec()
	metrics.GatewayDisconnections.WithLabelValues("closed").Inc()

	h.log.WithFields(client.ctx, logger.Fields{
		"external_id": externalID,
		"total":       totalClients,
		"action":      "ws_unregister",
	}).Info("websocket client unregistered")
}

func (h *Hub) shutdown() {
	if h.processor != nil {
		h.processor.Shutdown()
	}

	clients := make([]*Client, 0)
	h.clients.Range(func(key, value interface{}) bool {
		clients = append(clients, value.(*Client))
		return true
	})

	shutdownMsg, err := json.Marshal(&WSMessage{Type: TypeShutdown})
	if err != nil {
		h.log.WithFields(h.ctx, logger.Fields{
			"action": "ws_shutdown_marshal",
		}).Errorf("websocket failed to marshal shutdown message: %v", err)
	}

	for _, client := range clients {
		if err == nil {
			if sendErr := client.enqueue(h.ctx, shutdownMsg, h.sendTimeout); sendErr != nil {
				h.log.WithFields(h.ctx, logger.Fields{
					"external_id": client.ExternalID(),
					"action":      "ws_shutdown_timeout",
				}).Warnf("websocket shutdown notification failed: %v", sendErr)
			}
		}
		client.close()
		metrics.GatewayConnectionsActive.Dec()
		metrics.GatewayDisconnections.WithLabelValues("shutdown").Inc()
	}

	h.clients.Range(func(key, value interface{}) bool {
		h.clients.Delete(key)
		return true
	})
	h.clientCount.Store(0)

	h.log.WithFields(h.ctx, logger.Fields{
		"clients": len(clients),
		"action":  "ws_hub_shutdown",
	}).Info("websocket hub shutdown completed")
}

// HandleMessage queues an inbound frame on the caller's processor shard.
func (h *Hub) HandleMessage(client *Client, msg *WSMessage) {
	switch msg.Type {
	case TypeCommand, TypeMessage:
	case TypeAuth:
		h.sendError(client.ctx, client, commonerrors.ErrInvalidPayload.WithMessage("already authenticated"))
		return
	default:
		metrics.GatewayErrors.WithLabelValues("unknown_type").Inc()
		h.sendError(client.ctx, client, commonerrors.ErrInvalidPayload.WithMessage(fmt.Sprintf("unsupported message type %q", msg.Type)))
		return
	}

	if h.processor == nil || !h.processor.Submit(client.ctx, client, msg) {
		metrics.GatewayErrors.WithLabelValues("queue_full").Inc()
		h.sendError(client.ctx, client, commonerrors.ErrSendTimeout.WithMessage("Server is busy. Please try again."))
	}
}

func (h *Hub) SendToUserWithContext(ctx context.Context, externalID string, message *WSMessage) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	value, ok := h.clients.Load(externalID)
	if !ok {
		return fmt.Errorf("user %s not connected: %w", externalID, commonerrors.ErrUserNotConnected)
	}

	return h.sendToClient(ctx, value.(*Client), message)
}

func (h *Hub) sendToClient(ctx context.Context, client *Client, message *WSMessage) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.log.WithFields(ctx, logger.Fields{
			"external_id": client.ExternalID(),
			"action":      "ws_marshal",
			"type":        string(message.Type),
		}).Errorf("websocket marshal error: %v", err)
		return commonerrors.ErrMarshalError.WithCause(err)
	}

	if err := client.enqueue(ctx, messageBytes, h.sendTimeout); err != nil {
		h.log.WithFields(ctx, logger.Fields{
			"external_id": client.ExternalID(),
			"action":      "ws_send_failed",
			"type":        string(message.Type),
		}).Warnf("websocket send failed: %v", err)
		return err
	}

	h.log.WithFields(ctx, logger.Fields{
		"external_id": client.ExternalID(),
		"action":      "ws_send",
		"type":        string(message.Type),
	}).Debug("message sent")
	return nil
}

func (h *Hub) sendError(ctx context.Context, client *Client, err error) {
	payload := ErrorPayload{
		Code:    commonerrors.ErrInternalError.Code(),
		Message: commonerrors.ErrInternalError.Message(),
	}
	if de, ok := commonerrors.AsDomainError(err); ok && de.Category() != commonerrors.CategoryInternal {
		payload.Code = de.Code()
		payload.Message = de.Message()
	}

	msg, marshalErr := marshalMessage(TypeError, payload)
	if marshalErr != nil {
		return
	}
	_ = h.sendToClient(ctx, client, msg)
}

// OpenPrivateChannel returns the DM channel of a connected user who accepts direct messages.
func (h *Hub) OpenPrivateChannel(ctx context.Context, externalID string) (string, error) {
	value, ok := h.clients.Load(externalID)
	if !ok {
		return "", commonerrors.ErrChannelUnavailable.WithCause(commonerrors.ErrUserNotConnected)
	}
	if !value.(*Client).Claims().DMEnabled {
		return "", commonerrors.ErrChannelUnavailable
	}
	return privateChannelID(externalID), nil
}

func (h *Hub) Send(ctx context.Context, channelID, text string) error {
	externalID, ok := externalIDFromChannel(channelID)
	if !ok {
		return commonerrors.ErrChannelUnavailable.WithMessage(fmt.Sprintf("unknown channel %q", channelID))
	}

	msg, err := marshalMessage(TypeDM, DMPayload{ChannelID: channelID, Text: text})
	if err != nil {
		return commonerrors.ErrMarshalError.WithCause(err)
	}
	return h.SendToUserWithContext(ctx, externalID, msg)
}

func (h *Hub) IsUserOnline(externalID string) bool {
	_, ok := h.clients.Load(externalID)
	return ok
}

func (h *Hub) ClientCount() int64 {
	return h.clientCount.Load()
}
