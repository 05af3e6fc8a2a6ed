// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/rescuenet/internal/config"
	"github.com/tomtom215/rescuenet/internal/dispatcher"
	"github.com/tomtom215/rescuenet/internal/logging"
	"github.com/tomtom215/rescuenet/internal/store"
	ws "github.com/tomtom215/rescuenet/internal/websocket"
)

// Version is reported by the health endpoint. Set at build time with
// -ldflags "-X github.com/tomtom215/rescuenet/internal/api.Version=...".
var Version = "dev"

// BusState reports the event bus circuit breaker state.
type BusState interface {
	State() string
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, websocket upgrade (this file)
//   - handlers_helpers.go: response envelope and parameter helpers
//   - handlers_location.go: REST skin over the dispatcher
//   - handlers_health.go: health and readiness probes
type Handler struct {
	dispatcher *dispatcher.Dispatcher
	store      store.Store
	wsHub      *ws.Hub
	bus        BusState
	config     *config.Config
	startTime  time.Time
}

// NewHandler creates a new API handler. bus may be nil when the event
// mirror is disabled; cfg may be nil in tests.
func NewHandler(d *dispatcher.Dispatcher, st store.Store, wsHub *ws.Hub, bus BusState, cfg *config.Config) *Handler {
	return &Handler{
		dispatcher: d,
		store:      st,
		wsHub:      wsHub,
		bus:        bus,
		config:     cfg,
		startTime:  time.Now(),
	}
}

// getUpgrader creates a WebSocket upgrader with proper origin checking and timeouts.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins.
//
// Native mobile clients send no Origin header, so an empty origin is
// accepted unless allow_empty_origin is turned off.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	// If config is nil, allow by default (tests/development)
	if h.config == nil {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		if h.config.WebSocket.AllowEmptyOrigin {
			return true
		}
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	for _, allowedOrigin := range h.config.WebSocketOrigins() {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades the request to a location stream.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "WebSocket service unavailable", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an HTTP error
		logging.Ctx(r.Context()).Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	if !h.wsHub.Attach(client) {
		_ = conn.Close() //nolint:errcheck // hub already stopped
		return
	}
	client.Start()
}
