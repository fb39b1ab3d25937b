package http

import (
	"context"
	"net/http"

	gorillaWS "github.com/gorilla/websocket"

	"github.com/AlibekovAA/crypt-ledger/internal/account/domain"
	"github.com/AlibekovAA/crypt-ledger/internal/common/config"
	"github.com/AlibekovAA/crypt-ledger/internal/common/constants"
	commonhttp "github.com/AlibekovAA/crypt-ledger/internal/common/http"
	"github.com/AlibekovAA/crypt-ledger/internal/common/jwtverify"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
	"github.com/AlibekovAA/crypt-ledger/internal/gateway/websocket"
)

type ProfileReader interface {
	Profile(ctx context.Context, externalID string) (domain.Profile, error)
}

type Handler struct {
	accounts    ProfileReader
	hub         *websocket.Hub
	tokenSecret []byte
	upgrader    gorillaWS.Upgrader
	clientCfg   websocket.ClientConfig
	log         *logger.Logger
	cfg         config.GatewayConfig
}

type profileResponse struct {
	ExternalID        string `json:"external_id"`
	Username          string `json:"username"`
	Balance           int64  `json:"balance"`
	DaysSinceCreation int    `json:"days_since_creation"`
}

func NewHandler(accounts ProfileReader, hub *websocket.Hub, cfg config.GatewayConfig, log *logger.Logger) http.Handler {
	h := &Handler{
		accounts:    accounts,
		hub:         hub,
		tokenSecret: []byte(cfg.TokenSecret),
		upgrader: gorillaWS.Upgrader{
			ReadBufferSize:  constants.WebSocketReadBufferSize,
			WriteBufferSize: constants.WebSocketWriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				host := r.Host
				if host == "" {
					host = r.URL.Host
				}
				return origin == "http://"+host || origin == "https://"+host
			},
		},
		clientCfg: websocket.ClientConfig{
			WriteWait:      cfg.WebSocketWriteWait,
			PongWait:       cfg.WebSocketPongWait,
			PingPeriod:     cfg.WebSocketPingPeriod,
			MaxMessageSize: cfg.WebSocketMaxMsgSize,
			SendBufSize:    cfg.WebSocketSendBufSize,
			AuthTimeout:    cfg.WebSocketAuthTimeout,
			TokenSecret:    []byte(cfg.TokenSecret),
		},
		log: log,
		cfg: cfg,
	}

	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = constants.DefaultRequestTimeout
	}

	jwtMw := jwtverify.Middleware(cfg.TokenSecret, log)

	mux := http.NewServeMux()
	mux.Handle("/api/gateway/me", jwtMw(commonhttp.RequireMethod(http.MethodGet)(commonhttp.WithTimeout(requestTimeout)(h.me))))
	mux.HandleFunc("/ws", h.handleWebSocket)

	return mux
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := jwtverify.FromContext(r.Context())
	if !ok {
		commonhttp.WriteErrorEnvelope(w, http.StatusUnauthorized, commonhttp.CodeMissingToken, "unauthorized", nil, "")
		return
	}

	ctx := r.Context()
	profile, err := h.accounts.Profile(ctx, claims.ExternalID)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	h.log.WithFields(ctx, logger.Fields{
		"external_id": claims.ExternalID,
		"action":      "gateway_me_success",
	}).Info("gateway/me success")
	commonhttp.WriteJSON(w, http.StatusOK, profileResponse{
		ExternalID:        claims.ExternalID,
		Username:          profile.Username,
		Balance:           profile.Balance,
		DaysSinceCreation: profile.DaysSinceCreation,
	})
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		claims        jwtverify.Claims
		authenticated bool
	)
	if tokenString, ok := jwtverify.ExtractToken(r); ok {
		parsed, err := jwtverify.ParseIdentityToken(tokenString, h.tokenSecret)
		if err != nil {
			h.log.WithFields(ctx, logger.Fields{
				"action": "ws_token_rejected",
			}).Warnf("websocket token rejected: %v", err)
			commonhttp.HandleError(w, r, err, h.log)
			return
		}
		claims = parsed
		authenticated = true
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithFields(ctx, logger.Fields{
			"action": "ws_upgrade_failed",
		}).Errorf("websocket upgrade failed: %v", err)
		return
	}

	client := websocket.NewClient(context.WithoutCancel(ctx), h.hub, conn, h.clientCfg, h.log)
	if authenticated {
		client.Authenticate(claims)
		h.log.WithFields(ctx, logger.Fields{
			"external_id": claims.ExternalID,
			"action":      "ws_authenticated_via_token",
		}).Info("websocket client authenticated on upgrade")
	}
	client.Start()
}
