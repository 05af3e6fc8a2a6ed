// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package models

import (
	"time"
)

// PointPayload carries the coordinates of an inbound position report.
// Latitude and Longitude are pointers so that an omitted coordinate can be
// told apart from a legitimate zero.
type PointPayload struct {
	Latitude  *float64   `json:"latitude" validate:"required,latitude"`
	Longitude *float64   `json:"longitude" validate:"required,longitude"`
	Accuracy  *float64   `json:"accuracy,omitempty" validate:"omitempty,gte=0"`
	Altitude  *float64   `json:"altitude,omitempty"`
	Speed     *float64   `json:"speed,omitempty" validate:"omitempty,gte=0"`
	Heading   *float64   `json:"heading,omitempty" validate:"omitempty,gte=0,lte=360"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// ToPoint converts a validated payload into a LocationPoint, stamping it
// with receivedAt when the client supplied no timestamp.
func (p *PointPayload) ToPoint(receivedAt time.Time) LocationPoint {
	lp := LocationPoint{
		Accuracy:  cloneFloat(p.Accuracy),
		Altitude:  cloneFloat(p.Altitude),
		Speed:     cloneFloat(p.Speed),
		Heading:   cloneFloat(p.Heading),
		Timestamp: receivedAt,
	}
	if p.Latitude != nil {
		lp.Latitude = *p.Latitude
	}
	if p.Longitude != nil {
		lp.Longitude = *p.Longitude
	}
	if p.Timestamp != nil && !p.Timestamp.IsZero() {
		lp.Timestamp = *p.Timestamp
	}
	return lp
}

// StartRequest begins or resumes a location sharing session.
type StartRequest struct {
	SessionID string `json:"sessionId,omitempty" validate:"omitempty,max=128"`
	PointPayload

	UserID        string `json:"userId,omitempty" validate:"omitempty,max=128"`
	UserName      string `json:"userName,omitempty" validate:"omitempty,max=200"`
	ContactNumber string `json:"contactNumber,omitempty" validate:"omitempty,max=50"`
	HelpRequestID string `json:"helpRequestId,omitempty" validate:"omitempty,max=128"`

	IsEmergency      bool          `json:"isEmergency,omitempty"`
	EmergencyType    EmergencyType `json:"emergencyType,omitempty" validate:"omitempty,emergency_type"`
	EmergencyMessage string        `json:"emergencyMessage,omitempty" validate:"omitempty,max=1000"`
}

// UpdateRequest pushes one position update to an existing session.
type UpdateRequest struct {
	SessionID string `json:"sessionId" validate:"required,max=128"`
	PointPayload
}

// EmergencyRequest raises an emergency on a session.
type EmergencyRequest struct {
	SessionID        string        `json:"sessionId" validate:"required,max=128"`
	EmergencyType    EmergencyType `json:"emergencyType,omitempty" validate:"omitempty,emergency_type"`
	EmergencyMessage string        `json:"emergencyMessage,omitempty" validate:"omitempty,max=1000"`
}

// SessionRequest addresses a session by id only (safe, stop, watch, unwatch).
type SessionRequest struct {
	SessionID string `json:"sessionId" validate:"required,max=128"`
}
