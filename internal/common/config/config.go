package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AlibekovAA/crypt-ledger/internal/common/constants"
	commonerrors "github.com/AlibekovAA/crypt-ledger/internal/common/errors"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type StoreConfig struct {
	Driver        string
	DatabaseURL   string
	RunMigrations bool
}

type LedgerConfig struct {
	ClaimCooldown time.Duration
	RewardMin     int64
	RewardMax     int64
	BcryptCost    int
}

type GatewayConfig struct {
	HTTPPort             string
	Store                StoreConfig
	Ledger               LedgerConfig
	TokenSecret          string
	RegistrationTimeout  time.Duration
	RequestTimeout       time.Duration
	ProcessorShards      int
	WebSocketWriteWait   time.Duration
	WebSocketPongWait    time.Duration
	WebSocketPingPeriod  time.Duration
	WebSocketMaxMsgSize  int64
	WebSocketSendBufSize int
	WebSocketAuthTimeout time.Duration
	WebSocketSendTimeout time.Duration
}

type WebConfig struct {
	HTTPPort       string
	Store          StoreConfig
	Ledger         LedgerConfig
	SessionSecret  string
	SessionTTL     time.Duration
	RequestTimeout time.Duration
	SecureCookies  bool
}

func LoadGatewayConfig() (GatewayConfig, error) {
	secret, err := mustEnv("GATEWAY_TOKEN_SECRET")
	if err != nil {
		return GatewayConfig{}, err
	}
	if err := validateSecret(secret); err != nil {
		return GatewayConfig{}, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return GatewayConfig{}, err
	}

	ledger, err := loadLedgerConfig()
	if err != nil {
		return GatewayConfig{}, err
	}

	return GatewayConfig{
		HTTPPort:             getEnv("GATEWAY_HTTP_PORT", constants.DefaultGatewayHTTPPort),
		Store:                store,
		Ledger:               ledger,
		TokenSecret:          secret,
		RegistrationTimeout:  getDurationEnv("REGISTRATION_TIMEOUT", constants.DefaultRegistrationTimeout),
		RequestTimeout:       getDurationEnv("GATEWAY_REQUEST_TIMEOUT", constants.DefaultRequestTimeout),
		ProcessorShards:      getIntEnv("GATEWAY_PROCESSOR_SHARDS", constants.GatewayProcessorShards),
		WebSocketWriteWait:   getDurationEnv("GATEWAY_WS_WRITE_WAIT", constants.DefaultWebSocketWriteWait),
		WebSocketPongWait:    getDurationEnv("GATEWAY_WS_PONG_WAIT", constants.DefaultWebSocketPongWait),
		WebSocketPingPeriod:  getDurationEnv("GATEWAY_WS_PING_PERIOD", constants.DefaultWebSocketPingPeriod),
		WebSocketMaxMsgSize:  getInt64Env("GATEWAY_WS_MAX_MSG_SIZE", constants.DefaultWebSocketMaxMsgSize),
		WebSocketSendBufSize: getIntEnv("GATEWAY_WS_SEND_BUF_SIZE", constants.DefaultWebSocketSendBufSize),
		WebSocketAuthTimeout: getDurationEnv("GATEWAY_WS_AUTH_TIMEOUT", constants.DefaultWebSocketAuthTimeout),
		WebSocketSendTimeout: getDurationEnv("GATEWAY_WS_SEND_TIMEOUT", constants.DefaultWebSocketSendTimeout),
	}, nil
}

func LoadWebConfig() (WebConfig, error) {
	secret, err := mustEnv("SESSION_SECRET")
	if err != nil {
		return WebConfig{}, err
	}
	if err := validateSecret(secret); err != nil {
		return WebConfig{}, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return WebConfig{}, err
	}

	ledger, err := loadLedgerConfig()
	if err != nil {
		return WebConfig{}, err
	}

	return WebConfig{
		HTTPPort:       getEnv("WEB_HTTP_PORT", getEnv("PORT", constants.DefaultWebHTTPPort)),
		Store:          store,
		Ledger:         ledger,
		SessionSecret:  secret,
		SessionTTL:     getDurationEnv("SESSION_TTL", constants.DefaultSessionTTL),
		RequestTimeout: getDurationEnv("WEB_REQUEST_TIMEOUT", constants.DefaultRequestTimeout),
		SecureCookies:  getBoolEnv("WEB_SECURE_COOKIES", false),
	}, nil
}

func loadStoreConfig() (StoreConfig, error) {
	driver := strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres))
	switch driver {
	case StoreDriverMemory:
		return StoreConfig{Driver: driver}, nil
	case StoreDriverPostgres:
		databaseURL, err := mustEnv("DATABASE_URL")
		if err != nil {
			return StoreConfig{}, err
		}
		return StoreConfig{
			Driver:        driver,
			DatabaseURL:   databaseURL,
			RunMigrations: getBoolEnv("RUN_MIGRATIONS", true),
		}, nil
	default:
		return StoreConfig{}, fmt.Errorf("unsupported STORE_DRIVER %q", driver)
	}
}

func loadLedgerConfig() (LedgerConfig, error) {
	cfg := LedgerConfig{
		ClaimCooldown: getDurationEnv("CLAIM_COOLDOWN", constants.DefaultClaimCooldown),
		RewardMin:     getInt64Env("REWARD_MIN", constants.DefaultRewardMin),
		RewardMax:     getInt64Env("REWARD_MAX", constants.DefaultRewardMax),
		BcryptCost:    getIntEnv("BCRYPT_COST", 12),
	}
	if cfg.RewardMin <= 0 || cfg.RewardMax < cfg.RewardMin {
		return LedgerConfig{}, fmt.Errorf("invalid reward range [%d, %d]", cfg.RewardMin, cfg.RewardMax)
	}
	return cfg, nil
}

func validateSecret(secret string) error {
	if len(secret) < 32 {
		return commonerrors.ErrInvalidSecretKey.WithMessage(fmt.Sprintf("signing secret must be at least 32 bytes, got %d", len(secret)))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func mustEnv(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", commonerrors.ErrMissingRequiredEnv.WithMessage("missing required environment variable: " + key)
	}
	return v, nil
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getIntEnv(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getInt64Env(key string, fallback int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func getBoolEnv(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
