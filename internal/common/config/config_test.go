package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/crypt-ledger/internal/common/constants"
	commonerrors "github.com/AlibekovAA/crypt-ledger/internal/common/errors"
)

var testSecret = strings.Repeat("s", 32)

func TestLoadGatewayConfig_Defaults(t *testing.T) {
	t.Setenv("GATEWAY_TOKEN_SECRET", testSecret)
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := LoadGatewayConfig()
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultGatewayHTTPPort, cfg.HTTPPort)
	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, 60*time.Second, cfg.RegistrationTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Ledger.ClaimCooldown)
	assert.Equal(t, int64(20), cfg.Ledger.RewardMin)
	assert.Equal(t, int64(120), cfg.Ledger.RewardMax)
}

func TestLoadGatewayConfig_MissingSecret(t *testing.T) {
	t.Setenv("GATEWAY_TOKEN_SECRET", "")

	_, err := LoadGatewayConfig()
	require.Error(t, err)
	assert.True(t, errors.Is(err, commonerrors.ErrMissingRequiredEnv))
}

func TestLoadGatewayConfig_ShortSecret(t *testing.T) {
	t.Setenv("GATEWAY_TOKEN_SECRET", "short")

	_, err := LoadGatewayConfig()
	require.Error(t, err)
	assert.True(t, errors.Is(err, commonerrors.ErrInvalidSecretKey))
}

func TestLoadWebConfig_PostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := LoadWebConfig()
	require.Error(t, err)
	assert.True(t, errors.Is(err, commonerrors.ErrMissingRequiredEnv))
}

func TestLoadWebConfig_Overrides(t *testing.T) {
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://crypt@localhost/crypt")
	t.Setenv("PORT", "4000")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("REWARD_MIN", "5")
	t.Setenv("REWARD_MAX", "10")

	cfg, err := LoadWebConfig()
	require.NoError(t, err)

	assert.Equal(t, "4000", cfg.HTTPPort)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.Store.RunMigrations)
	assert.Equal(t, int64(5), cfg.Ledger.RewardMin)
	assert.Equal(t, int64(10), cfg.Ledger.RewardMax)
}

func TestLoadWebConfig_InvalidRewardRange(t *testing.T) {
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("REWARD_MIN", "50")
	t.Setenv("REWARD_MAX", "10")

	_, err := LoadWebConfig()
	assert.Error(t, err)
}

func TestLoadWebConfig_UnknownDriver(t *testing.T) {
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := LoadWebConfig()
	assert.Error(t, err)
}
