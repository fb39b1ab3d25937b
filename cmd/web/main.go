package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AlibekovAA/crypt-ledger/internal/common/bootstrap"
	"github.com/AlibekovAA/crypt-ledger/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/crypt-ledger/internal/common/crypto"
	commonhttp "github.com/AlibekovAA/crypt-ledger/internal/common/http"
	srv "github.com/AlibekovAA/crypt-ledger/internal/common/server"
	"github.com/AlibekovAA/crypt-ledger/internal/reward"
	webhttp "github.com/AlibekovAA/crypt-ledger/internal/web/http"
	"github.com/AlibekovAA/crypt-ledger/internal/web/session"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.NewWebApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start web: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	log := app.Log
	cfg := app.Config

	random := commoncrypto.NewSecureRandom()
	rewards := reward.NewEngine(app.Store, random, random, app.Clock, reward.Config{
		Cooldown: cfg.Ledger.ClaimCooldown,
		Min:      cfg.Ledger.RewardMin,
		Max:      cfg.Ledger.RewardMax,
	}, log)

	sessions := session.NewStore(cfg.SessionSecret, cfg.SessionTTL, cfg.SecureCookies, app.Clock, commoncrypto.NewUUIDGenerator(), log)
	go session.StartCleanup(ctx, sessions, log, constants.SessionCleanupInterval)

	handler, err := webhttp.NewHandler(app.Accounts, rewards, sessions, cfg.RequestTimeout, log)
	if err != nil {
		log.Fatalf("failed to build web handler: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", commonhttp.HealthHandler(log, app.Store))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler)

	server := srv.NewServer(srv.DefaultServerConfig(cfg.HTTPPort), commonhttp.BuildBaseHandler("web", log, mux))

	shutdownHooks := []srv.ShutdownHook{
		func(ctx context.Context) error {
			log.Infof("web service: stopping session cleanup")
			cancel()
			return nil
		},
	}

	if err := srv.StartWithGracefulShutdownAndHooks(ctx, server, log, "web", shutdownHooks); err != nil {
		log.Errorf("web service exited with error: %v", err)
	}
}
