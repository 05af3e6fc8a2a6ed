// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/rescuenet/internal/dispatcher"
	"github.com/tomtom215/rescuenet/internal/models"
)

// Response messages of the REST skin.
const (
	messageStopped       = "Location sharing stopped"
	messageEmergencySent = "Emergency alert sent"
	messageMarkedSafe    = "Marked as safe"
	messageLiveLocation  = "Live location"
	messageLastKnown     = "Last known location (signal lost)"
)

// StartLocation handles POST /api/location/start.
//
// The session is created, or resumed when the body names an existing
// sessionId. The REST caller is not subscribed to anything.
//
// @Summary Start sharing a location
// @Description Creates a session, or resumes one when sessionId names an existing session
// @Tags Location
// @Accept json
// @Produce json
// @Param request body models.StartRequest true "Initial point and optional emergency flag"
// @Success 201 {object} models.APIResponse{data=models.StartSessionResponse} "Session started or resumed"
// @Failure 400 {object} models.APIResponse "Invalid coordinates"
// @Failure 429 {object} models.APIResponse "Rate limit exceeded"
// @Router /api/location/start [post]
func (h *Handler) StartLocation(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.StartRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.dispatcher.Start(r.Context(), nil, &req)
	if err != nil {
		respondDispatcherError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusCreated, models.StartSessionResponse{
		SessionID: res.Session.SessionID,
		Location:  res.Session,
		Message:   res.Message,
	}, start)
}

// UpdateLocation handles PUT /api/location/{sessionId}.
//
// @Summary Append a location point
// @Tags Location
// @Accept json
// @Produce json
// @Param sessionId path string true "Session ID"
// @Param request body models.UpdateRequest true "New point"
// @Success 200 {object} models.APIResponse{data=models.UpdateLocationResponse}
// @Failure 400 {object} models.APIResponse "Invalid coordinates"
// @Failure 404 {object} models.APIResponse "Unknown session"
// @Router /api/location/{sessionId} [put]
func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.UpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.SessionID = chi.URLParam(r, "sessionId")

	session, err := h.dispatcher.Update(r.Context(), &req)
	if err != nil {
		respondDispatcherError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, models.UpdateLocationResponse{
		CurrentLocation: session.CurrentLocation,
	}, start)
}

// StopLocation handles PUT /api/location/{sessionId}/stop.
//
// @Summary Stop sharing
// @Tags Location
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} models.APIResponse{data=models.StopSessionResponse}
// @Failure 404 {object} models.APIResponse "Unknown session"
// @Router /api/location/{sessionId}/stop [put]
func (h *Handler) StopLocation(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	session, err := h.dispatcher.Stop(r.Context(), nil, chi.URLParam(r, "sessionId"))
	if err != nil {
		respondDispatcherError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, models.StopSessionResponse{
		LastLocation: session.CurrentLocation,
		Message:      messageStopped,
	}, start)
}

// GetLocation handles GET /api/location/{sessionId}. The online flag is
// recomputed from the last signal and corrected in the store if stale.
//
// @Summary Get a session with derived liveness
// @Tags Location
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} models.APIResponse{data=models.SessionStatusResponse}
// @Failure 404 {object} models.APIResponse "Unknown session"
// @Router /api/location/{sessionId} [get]
func (h *Handler) GetLocation(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	live, err := h.dispatcher.GetLiveness(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		respondDispatcherError(w, r, err)
		return
	}

	resp := models.SessionStatusResponse{
		Location:          live.Session,
		IsLive:            live.Live,
		LastKnownLocation: live.Session.CurrentLocation,
		SignalStatus:      models.SignalOffline,
		Message:           messageLastKnown,
	}
	if live.Online {
		resp.SignalStatus = models.SignalOnline
	}
	if live.Live {
		resp.Message = messageLiveLocation
	}

	respondSuccess(w, http.StatusOK, resp, start)
}

// GetHistory handles GET /api/location/{sessionId}/history?limit=N.
//
// @Summary Get recent location history
// @Tags Location
// @Produce json
// @Param sessionId path string true "Session ID"
// @Param limit query int false "Number of points, newest last" default(50)
// @Success 200 {object} models.APIResponse{data=models.HistoryResponse}
// @Failure 404 {object} models.APIResponse "Unknown session"
// @Router /api/location/{sessionId}/history [get]
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	resp, err := h.dispatcher.History(r.Context(), chi.URLParam(r, "sessionId"), getIntParam(r, "limit", 0))
	if err != nil {
		respondDispatcherError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, resp, start)
}

// GetActive handles GET /api/location/active?emergencyOnly=true.
//
// @Summary List sharing sessions
// @Tags Location
// @Produce json
// @Param emergencyOnly query bool false "Only sessions in emergency"
// @Success 200 {object} models.APIResponse{data=models.ActiveSessionsResponse}
// @Router /api/location/active [get]
func (h *Handler) GetActive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	sessions, err := h.dispatcher.Active(r.Context(), getBoolParam(r, "emergencyOnly"))
	if err != nil {
		respondDispatcherError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, models.ActiveSessionsResponse{
		Count:    len(sessions),
		Sessions: sessions,
	}, start)
}

// SetEmergency handles PUT /api/location/{sessionId}/emergency. The body
// is optional; a missing type is stored as "other".
//
// @Summary Raise an emergency
// @Tags Emergency
// @Accept json
// @Produce json
// @Param sessionId path string true "Session ID"
// @Param request body models.EmergencyRequest false "Emergency type"
// @Success 200 {object} models.APIResponse{data=models.SessionResponse}
// @Failure 400 {object} models.APIResponse "Unknown emergency type"
// @Failure 404 {object} models.APIResponse "Unknown session"
// @Router /api/location/{sessionId}/emergency [put]
func (h *Handler) SetEmergency(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.EmergencyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.SessionID = chi.URLParam(r, "sessionId")

	session, err := h.dispatcher.SetEmergency(r.Context(), &req)
	if err != nil {
		respondDispatcherError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, models.SessionResponse{
		Location: session,
		Message:  messageEmergencySent,
	}, start)
}

// MarkSafe handles PUT /api/location/{sessionId}/safe. Unlike the stream,
// a missing session is reported as 404.
//
// @Summary Mark a session safe
// @Tags Emergency
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} models.APIResponse{data=models.SessionResponse}
// @Failure 404 {object} models.APIResponse "Unknown session"
// @Router /api/location/{sessionId}/safe [put]
func (h *Handler) MarkSafe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	session, err := h.dispatcher.MarkSafe(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		respondDispatcherError(w, r, err)
		return
	}
	if session == nil {
		respondDispatcherError(w, r, dispatcher.ErrSessionNotFound)
		return
	}

	respondSuccess(w, http.StatusOK, models.SessionResponse{
		Location: session,
		Message:  messageMarkedSafe,
	}, start)
}
