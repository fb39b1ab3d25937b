package constants

import "time"

const (
	UsernameMinLength = 2
	UsernameMaxLength = 10
	SecretMinLength   = 8
	SecretMinDigits   = 2
	SecretMaxLength   = 72

	ChallengeCodeLength   = 6
	ChallengeCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	DefaultRewardMin = 20
	DefaultRewardMax = 120

	DefaultRegistrationTimeout = 60 * time.Second
	DefaultClaimCooldown       = 24 * time.Hour
	DefaultSessionTTL          = 24 * time.Hour
	SessionCleanupInterval     = 5 * time.Minute
	ChallengeMaxAge            = 30 * time.Minute

	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 50

	DefaultMaxRequestSize = 1 << 20

	GatewayProcessorShards    = 8
	GatewayProcessorQueueSize = 256
	GatewayProcessorTimeout   = 30 * time.Second

	DBPoolMaxConns        = 25
	DBPoolMinConns        = 5
	DBPoolConnMaxLifetime = time.Hour
	DBPoolConnMaxIdleTime = 30 * time.Minute
	DBPoolHealthCheck     = 1 * time.Minute
	DBPoolConnectTimeout  = 5 * time.Second
	DBPoolMaxAttempts     = 10
	DBPoolRetryDelay      = 1 * time.Second
	DBPoolMetricsInterval = 30 * time.Second
	DBQueryTimeout        = 30 * time.Second

	StoreBreakerThreshold  = 5
	StoreBreakerResetAfter = 15 * time.Second

	ServerReadHeaderTimeout = 10 * time.Second
	ServerReadTimeout       = 30 * time.Second
	ServerWriteTimeout      = 30 * time.Second
	ServerIdleTimeout       = 120 * time.Second

	ShutdownTimeout = 30 * time.Second
	DrainTimeout    = 10 * time.Second

	DefaultGatewayHTTPPort = "8091"
	DefaultWebHTTPPort     = "3000"

	DefaultRequestTimeout = 5 * time.Second

	DefaultWebSocketWriteWait   = 10 * time.Second
	DefaultWebSocketPongWait    = 60 * time.Second
	DefaultWebSocketPingPeriod  = 54 * time.Second
	DefaultWebSocketMaxMsgSize  = 64 * 1024
	DefaultWebSocketSendBufSize = 64
	DefaultWebSocketAuthTimeout = 10 * time.Second
	DefaultWebSocketSendTimeout = 2 * time.Second

	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024

	SessionCookieName = "crypt_session"

	LoggerMaxSize    = 100
	LoggerMaxBackups = 3
	LoggerMaxAge     = 28
)

type TraceIDKeyType string

const TraceIDKey TraceIDKeyType = "trace_id"
