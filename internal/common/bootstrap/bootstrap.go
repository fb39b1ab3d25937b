package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/AlibekovAA/crypt-ledger/internal/account/repository"
	"github.com/AlibekovAA/crypt-ledger/internal/account/repository/migrations"
	accountservice "github.com/AlibekovAA/crypt-ledger/internal/account/service"
	"github.com/AlibekovAA/crypt-ledger/internal/common/clock"
	"github.com/AlibekovAA/crypt-ledger/internal/common/config"
	commoncrypto "github.com/AlibekovAA/crypt-ledger/internal/common/crypto"
	"github.com/AlibekovAA/crypt-ledger/internal/common/db"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
)

// Store is an account repository that can also report its own health.
type Store interface {
	repository.Repository
	Ping(ctx context.Context) error
}

type App struct {
	Log      *logger.Logger
	Clock    clock.Clock
	Pool     *pgxpool.Pool
	Store    Store
	Accounts *accountservice.AccountService
}

type GatewayApp struct {
	App
	Config config.GatewayConfig
}

type WebApp struct {
	App
	Config config.WebConfig
}

func NewGatewayApp(ctx context.Context) (*GatewayApp, error) {
	log, err := initializeLogger("gateway")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.LoadGatewayConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	app, err := initializeApp(ctx, log, cfg.Store, cfg.Ledger)
	if err != nil {
		return nil, err
	}

	return &GatewayApp{
		App:    *app,
		Config: cfg,
	}, nil
}

func NewWebApp(ctx context.Context) (*WebApp, error) {
	log, err := initializeLogger("web")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.LoadWebConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	app, err := initializeApp(ctx, log, cfg.Store, cfg.Ledger)
	if err != nil {
		return nil, err
	}

	return &WebApp{
		App:    *app,
		Config: cfg,
	}, nil
}

func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}

func initializeApp(ctx context.Context, log *logger.Logger, storeCfg config.StoreConfig, ledger config.LedgerConfig) (*App, error) {
	clk := clock.NewRealClock()

	app := &App{
		Log:   log,
		Clock: clk,
	}

	switch storeCfg.Driver {
	case config.StoreDriverMemory:
		log.Warn("using in-memory account store; balances are lost on restart")
		app.Store = repository.NewMemoryRepository(clk)

	case config.StoreDriverPostgres:
		pool, err := db.NewPool(ctx, log, storeCfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database pool: %w", err)
		}
		if storeCfg.RunMigrations {
			if err := db.Migrate(ctx, log, storeCfg.DatabaseURL, migrations.FS); err != nil {
				pool.Close()
				return nil, err
			}
		}
		app.Pool = pool
		app.Store = repository.NewPgRepository(pool, log)

	default:
		return nil, fmt.Errorf("unsupported store driver %q", storeCfg.Driver)
	}

	app.Accounts = accountservice.NewAccountService(
		app.Store,
		&commoncrypto.BcryptHasher{Cost: ledger.BcryptCost},
		commoncrypto.NewUUIDGenerator(),
		clk,
		log,
	)
	return app, nil
}

func initializeLogger(serviceName string) (*logger.Logger, error) {
	return logger.New(os.Getenv("LOG_DIR"), serviceName, os.Getenv("LOG_LEVEL"))
}
