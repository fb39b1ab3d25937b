package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accountservice "github.com/AlibekovAA/crypt-ledger/internal/account/service"
	"github.com/AlibekovAA/crypt-ledger/internal/common/config"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
)

func TestInitializeApp_MemoryStore(t *testing.T) {
	ctx := context.Background()
	app, err := initializeApp(ctx, logger.NewDiscard(), config.StoreConfig{Driver: config.StoreDriverMemory}, config.LedgerConfig{BcryptCost: 4})
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.Pool)
	require.NoError(t, app.Store.Ping(ctx))

	_, err = app.Accounts.Register(ctx, accountservice.RegisterInput{ExternalID: "100", Username: "alice", Secret: "pass12345"})
	require.NoError(t, err)

	exists, err := app.Accounts.Exists(ctx, "100")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestInitializeApp_UnknownDriver(t *testing.T) {
	_, err := initializeApp(context.Background(), logger.NewDiscard(), config.StoreConfig{Driver: "sqlite"}, config.LedgerConfig{})
	assert.Error(t, err)
}

func TestNewWebApp_MemoryFromEnv(t *testing.T) {
	t.Setenv("SESSION_SECRET", "web-session-secret-web-session-secret!")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("LOG_DIR", "")

	app, err := NewWebApp(context.Background())
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, config.StoreDriverMemory, app.Config.Store.Driver)
	assert.NotNil(t, app.Accounts)
}

func TestNewGatewayApp_RequiresSecret(t *testing.T) {
	t.Setenv("GATEWAY_TOKEN_SECRET", "")
	t.Setenv("STORE_DRIVER", "memory")

	_, err := NewGatewayApp(context.Background())
	assert.Error(t, err)
}
