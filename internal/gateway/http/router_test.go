package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaWS "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/crypt-ledger/internal/account/domain"
	"github.com/AlibekovAA/crypt-ledger/internal/common/config"
	commonerrors "github.com/AlibekovAA/crypt-ledger/internal/common/errors"
	commonhttp "github.com/AlibekovAA/crypt-ledger/internal/common/http"
	"github.com/AlibekovAA/crypt-ledger/internal/common/jwtverify"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
	"github.com/AlibekovAA/crypt-ledger/internal/gateway/websocket"
	"github.com/AlibekovAA/crypt-ledger/internal/registration"
)

const testSecret = "gateway-http-secret-gateway-http-secret"

type mockProfiles struct {
	profiles map[string]domain.Profile
}

func (m *mockProfiles) Profile(ctx context.Context, externalID string) (domain.Profile, error) {
	p, ok := m.profiles[externalID]
	if !ok {
		return domain.Profile{}, commonerrors.ErrNotAuthenticated
	}
	return p, nil
}

type echoCommands struct{}

func (echoCommands) HandleCommand(ctx context.Context, caller jwtverify.Claims, cmd websocket.CommandPayload) (websocket.ReplyPayload, error) {
	return websocket.ReplyPayload{Text: caller.DisplayName}, nil
}

type noDialogue struct{}

func (noDialogue) HandleMessage(ctx context.Context, msg registration.Inbound) (registration.Outcome, error) {
	return registration.Outcome{}, nil
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := logger.NewDiscard()

	hub := websocket.NewHub(log, websocket.HubConfig{SendTimeout: time.Second})
	hub.SetHandlers(echoCommands{}, noDialogue{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	profiles := &mockProfiles{profiles: map[string]domain.Profile{
		"100": {Username: "alice", Balance: 70, DaysSinceCreation: 2},
	}}
	cfg := config.GatewayConfig{TokenSecret: testSecret, RequestTimeout: time.Second}
	srv := httptest.NewServer(NewHandler(profiles, hub, cfg, log))

	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return srv
}

func issue(t *testing.T, claims jwtverify.Claims) string {
	t.Helper()
	token, err := jwtverify.IssueIdentityToken(claims, []byte(testSecret), time.Hour, time.Now())
	require.NoError(t, err)
	return token
}

func TestHandler_MeReturnsProfile(t *testing.T) {
	srv := newServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/gateway/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+issue(t, jwtverify.Claims{ExternalID: "100", DisplayName: "alice"}))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body profileResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, profileResponse{ExternalID: "100", Username: "alice", Balance: 70, DaysSinceCreation: 2}, body)
}

func TestHandler_MeWithoutAccount(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/api/gateway/me?token=" + issue(t, jwtverify.Claims{ExternalID: "555", DisplayName: "eve"}))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var env commonhttp.ErrorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, commonerrors.ErrNotAuthenticated.Code(), env.Code)
}

func TestHandler_MeRequiresToken(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/api/gateway/me")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_WebSocketRejectsBadToken(t *testing.T) {
	srv := newServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=garbage"
	_, resp, err := gorillaWS.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_WebSocketWithTokenOnUpgrade(t *testing.T) {
	srv := newServer(t)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+issue(t, jwtverify.Claims{ExternalID: "100", DisplayName: "alice"}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := gorillaWS.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg websocket.WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, websocket.TypeAuthResult, msg.Type)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "command",
		"payload": map[string]any{"name": "profile"},
	}))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, websocket.TypeReply, msg.Type)

	var reply websocket.ReplyPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &reply))
	assert.Equal(t, "alice", reply.Text)
}
