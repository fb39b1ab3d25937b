package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	gorillaWS "github.com/gorilla/websocket"

	"github.com/AlibekovAA/crypt-ledger/internal/common/constants"
	commonerrors "github.com/AlibekovAA/crypt-ledger/internal/common/errors"
	"github.com/AlibekovAA/crypt-ledger/internal/common/jwtverify"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
	"github.com/AlibekovAA/crypt-ledger/internal/observability/metrics"
)

type ClientConfig struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	SendBufSize    int
	AuthTimeout    time.Duration
	TokenSecret    []byte
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.WriteWait <= 0 {
		c.WriteWait = constants.DefaultWebSocketWriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = constants.DefaultWebSocketPongWait
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = (c.PongWait * 9) / 10
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = constants.DefaultWebSocketMaxMsgSize
	}
	if c.SendBufSize <= 0 {
		c.SendBufSize = constants.DefaultWebSocketSendBufSize
	}
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = constants.DefaultWebSocketAuthTimeout
	}
	return c
}

type Client struct {
	hub        *Hub
	conn       *gorillaWS.Conn
	cfg        ClientConfig
	send       chan []byte
	registered chan struct{}
	log        *logger.Logger
	ctx        context.Context
	cancel     context.CancelFunc

	mu            sync.RWMutex
	claims        jwtverify.Claims
	authenticated bool
	closed        bool
}

func NewClient(ctx context.Context, hub *Hub, conn *gorillaWS.Conn, cfg ClientConfig, log *logger.Logger) *Client {
	cfg = cfg.withDefaults()
	clientCtx, cancel := context.WithCancel(ctx)
	return &Client{
		hub:        hub,
		conn:       conn,
		cfg:        cfg,
		send:       make(chan []byte, cfg.SendBufSize),
		registered: make(chan struct{}),
		log:        log,
		ctx:        clientCtx,
		cancel:     cancel,
	}
}

// Authenticate marks the client as already verified, for tokens presented on the upgrade request.
func (c *Client) Authenticate(claims jwtverify.Claims) {
	c.mu.Lock()
	c.claims = claims
	c.authenticated = true
	c.mu.Unlock()
}

func (c *Client) ExternalID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.claims.ExternalID
}

func (c *Client) Claims() jwtverify.Claims {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.claims
}

func (c *Client) isAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *Client) enqueue(ctx context.Context, data []byte, timeout time.Duration) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return commonerrors.ErrUserNotConnected
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c.send <- data:
		return nil
	case <-timer.C:
		return commonerrors.ErrSendTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	c.cancel()
}

func (c *Client) readPump() {
	registered := false
	defer func() {
		if registered {
			c.hub.Unregister(c)
		} else {
			c.close()
		}
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)

	if !c.isAuthenticated() && !c.awaitAuth() {
		return
	}

	if !c.hub.Register(c) {
		return
	}
	registered = true
	c.writeAuthResult(AuthResultPayload{Authenticated: true, ExternalID: c.ExternalID()})

	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if gorillaWS.IsUnexpectedCloseError(err, gorillaWS.CloseGoingAway, gorillaWS.CloseAbnormalClosure) {
				c.log.WithFields(c.ctx, logger.Fields{
					"external_id": c.ExternalID(),
					"action":      "ws_read_error",
				}).Warnf("websocket read error: %v", err)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			metrics.GatewayErrors.WithLabelValues("invalid_json").Inc()
			c.log.WithFields(c.ctx, logger.Fields{
				"external_id": c.ExternalID(),
				"action":      "ws_invalid_message",
			}).Warnf("websocket invalid message: %v", err)
			c.hub.sendError(c.ctx, c, commonerrors.ErrInvalidPayload)
			continue
		}

		c.hub.HandleMessage(c, &msg)
	}
}

// awaitAuth reads the first frame, which must carry a valid identity token.
func (c *Client) awaitAuth() bool {
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.AuthTimeout))

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		metrics.GatewayErrors.WithLabelValues("auth_timeout").Inc()
		c.log.WithFields(c.ctx, logger.Fields{
			"action": "ws_auth_read_failed",
		}).Warnf("websocket auth read failed: %v", err)
		return false
	}

	var msg WSMessage
	var payload AuthPayload
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != TypeAuth || json.Unmarshal(msg.Payload, &payload) != nil {
		metrics.GatewayErrors.WithLabelValues("auth_failed").Inc()
		c.writeAuthResult(AuthResultPayload{
			Code:    commonerrors.ErrInvalidPayload.Code(),
			Message: "first message must be auth",
		})
		return false
	}

	claims, err := jwtverify.ParseIdentityToken(payload.Token, c.cfg.TokenSecret)
	if err != nil {
		metrics.GatewayErrors.WithLabelValues("auth_failed").Inc()
		result := AuthResultPayload{Code: commonerrors.ErrInvalidToken.Code(), Message: commonerrors.ErrInvalidToken.Message()}
		if de, ok := commonerrors.AsDomainError(err); ok {
			result.Code = de.Code()
			result.Message = de.Message()
		}
		c.log.WithFields(c.ctx, logger.Fields{
			"action": "ws_auth_failed",
		}).Warnf("websocket auth failed: %v", err)
		c.writeAuthResult(result)
		return false
	}

	c.Authenticate(claims)
	return true
}

func (c *Client) writeAuthResult(result AuthResultPayload) {
	msg, err := marshalMessage(TypeAuthResult, result)
	if err != nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := c.enqueue(c.ctx, data, c.hub.sendTimeout); err != nil {
		c.log.WithFields(c.ctx, logger.Fields{
			"external_id": c.ExternalID(),
			"action":      "ws_auth_result_failed",
		}).Warnf("websocket failed to send auth result: %v", err)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(gorillaWS.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(gorillaWS.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(gorillaWS.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
