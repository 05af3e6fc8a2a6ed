// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/rescuenet/internal/api"
	"github.com/tomtom215/rescuenet/internal/config"
	"github.com/tomtom215/rescuenet/internal/dispatcher"
	"github.com/tomtom215/rescuenet/internal/logging"
	"github.com/tomtom215/rescuenet/internal/metrics"
	"github.com/tomtom215/rescuenet/internal/pubsub"
	"github.com/tomtom215/rescuenet/internal/store"
	"github.com/tomtom215/rescuenet/internal/supervisor"
	"github.com/tomtom215/rescuenet/internal/supervisor/services"
	ws "github.com/tomtom215/rescuenet/internal/websocket"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", api.Version).
		Str("environment", cfg.Server.Environment).
		Str("store_driver", cfg.Store.Driver).
		Bool("eventbus_enabled", cfg.EventBus.Enabled).
		Msg("Starting RescueNet with supervisor tree")

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("============================================================")
		logging.Warn().Msg("  SECURITY WARNING: CORS is configured with wildcard origin (CORS_ORIGINS=*)")
		logging.Warn().Msg("  ")
		logging.Warn().Msg("  Any website can read live locations through this API.")
		logging.Warn().Msg("  RECOMMENDED: Set specific origins in production:")
		logging.Warn().Msg("    CORS_ORIGINS=https://relief.example.org")
		logging.Warn().Msg("============================================================")
	}
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	st, err := store.New(cfg.StoreOptions())
	if err != nil {
		logging.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to open session store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session store")
		}
	}()
	if n, err := st.Count(context.Background()); err == nil {
		metrics.SessionsStored.Set(float64(n))
		logging.Info().Int("sessions", n).Str("driver", cfg.Store.Driver).Msg("Session store opened")
	}

	registry := pubsub.NewRegistry(metrics.FanoutObserver{})

	bus, err := initEventBus(cfg)
	if err != nil {
		_ = st.Close()
		logging.Fatal().Err(err).Msg("Failed to initialize event bus")
	}

	dispatcherCfg := dispatcher.Config{
		LivenessWindow:      cfg.Location.LivenessWindow,
		HistoryLimit:        cfg.Location.HistoryLimit,
		HistoryDefaultLimit: cfg.Location.HistoryDefaultLimit,
	}
	if bus != nil {
		dispatcherCfg.Mirror = bus.Bus
	}
	d := dispatcher.New(st, registry, dispatcherCfg)

	wsHub := ws.NewHub(d, cfg.HubOptions())

	var busState api.BusState
	if bus != nil {
		busState = bus.Bus
	}
	handler := api.NewHandler(d, st, wsHub, busState, cfg)
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddDataService(services.NewExpirySweepService(st, cfg.ExpiryPolicy(), cfg.Location.CleanupInterval))
	if bus != nil {
		tree.AddDataService(services.NewEventBusService(bus.Bus, bus))
		logging.Info().Str("driver", bus.Driver()).Msg("Event bus added to supervisor tree")
	}
	tree.AddMessagingService(services.NewWebSocketHubService(wsHub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}
