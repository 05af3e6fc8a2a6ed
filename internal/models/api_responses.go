// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package models

import (
	"time"
)

// APIResponse is the envelope returned by every REST endpoint.
//
// Status is "success" with Data populated, or "error" with Error populated.
//
// Example success response:
//
//	{
//	  "status": "success",
//	  "data": {"sessionId": "4f1c...", "message": "Location sharing started"},
//	  "metadata": {"timestamp": "2026-01-15T10:30:00Z", "query_time_ms": 2}
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "data": null,
//	  "metadata": {"timestamp": "2026-01-15T10:30:00Z"},
//	  "error": {"code": "NOT_FOUND", "message": "Location session not found or stopped"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is the structured error body of a failed request.
//
// Codes: VALIDATION_ERROR (400), NOT_FOUND (404), RATE_LIMIT_EXCEEDED (429),
// INTERNAL_ERROR (500), SERVICE_UNAVAILABLE (503).
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// StartSessionResponse is returned when a session starts or resumes.
type StartSessionResponse struct {
	SessionID string           `json:"sessionId"`
	Location  *LocationSession `json:"location"`
	Message   string           `json:"message"`
}

// UpdateLocationResponse is returned after a position update is accepted.
type UpdateLocationResponse struct {
	CurrentLocation LocationPoint `json:"currentLocation"`
}

// StopSessionResponse is returned after sharing stops.
type StopSessionResponse struct {
	LastLocation LocationPoint `json:"lastLocation"`
	Message      string        `json:"message"`
}

// SessionStatusResponse reports current or last known state of a session.
type SessionStatusResponse struct {
	Location          *LocationSession `json:"location"`
	IsLive            bool             `json:"isLive"`
	LastKnownLocation LocationPoint    `json:"lastKnownLocation"`
	SignalStatus      string           `json:"signalStatus"`
	Message           string           `json:"message"`
}

// HistoryResponse carries the bounded recent history of a session.
type HistoryResponse struct {
	SessionID    string          `json:"sessionId"`
	History      []LocationPoint `json:"history"`
	TotalPoints  int             `json:"totalPoints"`
	StartedAt    time.Time       `json:"startedAt"`
	LastActiveAt time.Time       `json:"lastActiveAt"`
}

// ActiveSessionsResponse lists sessions that are currently sharing.
type ActiveSessionsResponse struct {
	Count    int                `json:"count"`
	Sessions []*LocationSession `json:"sessions"`
}

// SessionResponse wraps a single session after an emergency or safe transition.
type SessionResponse struct {
	Location *LocationSession `json:"location"`
	Message  string           `json:"message"`
}

// HealthStatus is the payload of the full health endpoint.
type HealthStatus struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	StoreDriver      string `json:"store_driver"`
	StoreReachable   bool   `json:"store_reachable"`
	ConnectedClients int    `json:"connected_clients"`
	Publishers       int    `json:"publishers"`
	Topics           int    `json:"topics"`
	EventBus         string `json:"event_bus"`
	Uptime           string `json:"uptime"`
}

// Signal status values reported by SessionStatusResponse.
const (
	SignalOnline  = "online"
	SignalOffline = "offline"
)
