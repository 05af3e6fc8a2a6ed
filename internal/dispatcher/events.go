// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package dispatcher

import (
	"time"

	"github.com/tomtom215/rescuenet/internal/models"
)

// Outbound event types.
const (
	EventStarted           = "location:started"
	EventUpdate            = "location:update"
	EventEmergency         = "location:emergency"
	EventSafe              = "location:safe"
	EventStopped           = "location:stopped"
	EventOffline           = "location:offline"
	EventError             = "location:error"
	EventEmergencyNew      = "emergency:new"
	EventEmergencyResolved = "emergency:resolved"
)

// Started messages.
const (
	MessageSharingStarted   = "Location sharing started"
	MessageEmergencyStarted = "Emergency location sharing started"
)

// StartedEvent is echoed to the connection that started a session.
type StartedEvent struct {
	SessionID string                  `json:"sessionId"`
	Session   *models.LocationSession `json:"session"`
	Resumed   bool                    `json:"resumed"`
	Message   string                  `json:"message"`
}

// UpdateEvent carries a newly accepted position.
type UpdateEvent struct {
	SessionID   string               `json:"sessionId"`
	Location    models.LocationPoint `json:"location"`
	UserName    string               `json:"userName,omitempty"`
	IsEmergency bool                 `json:"isEmergency"`
	IsOnline    bool                 `json:"isOnline"`
	Timestamp   time.Time            `json:"timestamp"`
}

// EmergencyEvent is sent on the session topic as location:emergency and on
// the emergency topic as emergency:new. Identifying metadata always comes
// from the stored session.
type EmergencyEvent struct {
	SessionID        string               `json:"sessionId"`
	UserName         string               `json:"userName,omitempty"`
	ContactNumber    string               `json:"contactNumber,omitempty"`
	HelpRequestID    string               `json:"helpRequestId,omitempty"`
	EmergencyType    models.EmergencyType `json:"emergencyType"`
	EmergencyMessage string               `json:"emergencyMessage,omitempty"`
	Location         models.LocationPoint `json:"location"`
	IsOnline         bool                 `json:"isOnline"`
	Timestamp        time.Time            `json:"timestamp"`
}

// SafeEvent reports that a session's emergency was cleared.
type SafeEvent struct {
	SessionID string    `json:"sessionId"`
	Timestamp time.Time `json:"timestamp"`
}

// ResolvedEvent is published on the emergency topic when a session is
// marked safe.
type ResolvedEvent struct {
	SessionID string `json:"sessionId"`
}

// StoppedEvent reports an explicit end of sharing.
type StoppedEvent struct {
	SessionID    string               `json:"sessionId"`
	LastLocation models.LocationPoint `json:"lastLocation"`
	IsEmergency  bool                 `json:"isEmergency"`
	Timestamp    time.Time            `json:"timestamp"`
}

// OfflineEvent reports that the publishing connection dropped.
type OfflineEvent struct {
	SessionID    string               `json:"sessionId"`
	LastLocation models.LocationPoint `json:"lastLocation"`
	LastSignalAt time.Time            `json:"lastSignalAt"`
	IsEmergency  bool                 `json:"isEmergency"`
}

// ErrorEvent is sent to a connection whose inbound event was rejected.
type ErrorEvent struct {
	Error string `json:"error"`
}

// GetSessionID returns the session the event refers to.
func (e EmergencyEvent) GetSessionID() string { return e.SessionID }

// GetSessionID returns the session the event refers to.
func (e ResolvedEvent) GetSessionID() string { return e.SessionID }

func newEmergencyEvent(s *models.LocationSession, at time.Time) EmergencyEvent {
	return EmergencyEvent{
		SessionID:        s.SessionID,
		UserName:         s.UserName,
		ContactNumber:    s.ContactNumber,
		HelpRequestID:    s.HelpRequestID,
		EmergencyType:    s.EmergencyType,
		EmergencyMessage: s.EmergencyMessage,
		Location:         s.CurrentLocation,
		IsOnline:         s.IsOnline,
		Timestamp:        at,
	}
}

func newUpdateEvent(s *models.LocationSession, at time.Time) UpdateEvent {
	return UpdateEvent{
		SessionID:   s.SessionID,
		Location:    s.CurrentLocation,
		UserName:    s.UserName,
		IsEmergency: s.IsEmergency,
		IsOnline:    s.IsOnline,
		Timestamp:   at,
	}
}
