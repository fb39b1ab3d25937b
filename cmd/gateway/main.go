package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AlibekovAA/crypt-ledger/internal/common/bootstrap"
	commonhttp "github.com/AlibekovAA/crypt-ledger/internal/common/http"
	srv "github.com/AlibekovAA/crypt-ledger/internal/common/server"
	"github.com/AlibekovAA/crypt-ledger/internal/gateway/command"
	gatewayhttp "github.com/AlibekovAA/crypt-ledger/internal/gateway/http"
	"github.com/AlibekovAA/crypt-ledger/internal/gateway/websocket"
	"github.com/AlibekovAA/crypt-ledger/internal/registration"
	"github.com/AlibekovAA/crypt-ledger/internal/transfer"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.NewGatewayApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start gateway: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	log := app.Log
	cfg := app.Config

	hub := websocket.NewHub(log, websocket.HubConfig{
		ProcessorShards: cfg.ProcessorShards,
		SendTimeout:     cfg.WebSocketSendTimeout,
	})

	registrations := registration.NewManager(app.Accounts, hub, app.Clock, cfg.RegistrationTimeout, log)
	transfers := transfer.NewEngine(app.Store, hub, log)
	dispatcher := command.NewDispatcher(registrations, app.Accounts, transfers, log)
	hub.SetHandlers(dispatcher, registrations)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	handler := gatewayhttp.NewHandler(app.Accounts, hub, cfg, log)

	restMux := http.NewServeMux()
	restMux.HandleFunc("/health", commonhttp.HealthHandler(log, app.Store))
	restMux.Handle("/metrics", promhttp.Handler())
	restMux.Handle("/api/", handler)

	mainMux := http.NewServeMux()
	mainMux.Handle("/ws", handler)
	mainMux.Handle("/", commonhttp.BuildBaseHandler("gateway", log, restMux))

	server := srv.NewServer(srv.DefaultServerConfig(cfg.HTTPPort), mainMux)

	shutdownHooks := []srv.ShutdownHook{
		func(ctx context.Context) error {
			log.Infof("gateway service: closing registration dialogues")
			registrations.Shutdown()
			return nil
		},
		func(ctx context.Context) error {
			log.Infof("gateway service: stopping websocket hub")
			cancel()
			wg.Wait()
			return nil
		},
	}

	if err := srv.StartWithGracefulShutdownAndHooks(ctx, server, log, "gateway", shutdownHooks); err != nil {
		log.Errorf("gateway service exited with error: %v", err)
	}
}
