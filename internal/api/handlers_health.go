// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/rescuenet/internal/models"
)

// storePingTimeout bounds the store check of the health probes.
const storePingTimeout = 2 * time.Second

func (h *Handler) storeReachable(ctx context.Context) bool {
	if h.store == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, storePingTimeout)
	defer cancel()
	return h.store.Ping(ctx) == nil
}

// Health handles health check requests. It reports store reachability,
// connected stream clients, how many of them publish a session, topic count
// and event bus state.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	reachable := h.storeReachable(r.Context())
	status := "healthy"
	if !reachable {
		status = "degraded"
	}

	health := models.HealthStatus{
		Status:         status,
		Version:        Version,
		StoreReachable: reachable,
		EventBus:       "disabled",
		Uptime:         time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.config != nil {
		health.StoreDriver = h.config.Store.Driver
	}
	if h.wsHub != nil {
		health.ConnectedClients = h.wsHub.GetClientCount()
	}
	if h.dispatcher != nil {
		health.Topics = h.dispatcher.Registry().TopicCount()
		health.Publishers = h.dispatcher.Connections().Len()
	}
	if h.bus != nil {
		health.EventBus = h.bus.State()
	}

	respondSuccess(w, http.StatusOK, health, start)
}

// HealthLive handles liveness probe requests (Kubernetes-style)
// Returns 200 OK if the process is alive, regardless of dependencies
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	}, time.Now())
}

// HealthReady handles readiness probe requests (Kubernetes-style)
// Returns 200 OK only if the session store is usable
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if !h.storeReachable(r.Context()) {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Session store unavailable", nil)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"ready": true,
	}, start)
}
