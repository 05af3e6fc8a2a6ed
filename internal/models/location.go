// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package models

import (
	"time"
)

// DefaultHistoryLimit is the maximum number of points retained in a
// session's location history.
const DefaultHistoryLimit = 100

// DefaultLivenessWindow is how long after the last accepted update a
// session is still considered online.
const DefaultLivenessWindow = 30 * time.Second

// EmergencyType classifies the nature of an emergency raised on a session.
type EmergencyType string

// Emergency types accepted by the location channel.
const (
	EmergencyFlood     EmergencyType = "flood"
	EmergencyTsunami   EmergencyType = "tsunami"
	EmergencyLandslide EmergencyType = "landslide"
	EmergencyCyclone   EmergencyType = "cyclone"
	EmergencyMedical   EmergencyType = "medical"
	EmergencyFire      EmergencyType = "fire"
	EmergencyOther     EmergencyType = "other"
)

// EmergencyTypes lists every valid EmergencyType.
var EmergencyTypes = []EmergencyType{
	EmergencyFlood,
	EmergencyTsunami,
	EmergencyLandslide,
	EmergencyCyclone,
	EmergencyMedical,
	EmergencyFire,
	EmergencyOther,
}

// Valid reports whether t is one of the known emergency types.
func (t EmergencyType) Valid() bool {
	for _, known := range EmergencyTypes {
		if t == known {
			return true
		}
	}
	return false
}

// LocationPoint is a single recorded position. Points are never modified
// once appended to a session.
type LocationPoint struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Altitude  *float64  `json:"altitude,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LocationSession tracks one entity's location sharing lifecycle.
//
// LastSignalAt is authoritative for liveness; IsOnline is a cached copy
// that may lag until the next read-repair.
type LocationSession struct {
	SessionID        string          `json:"sessionId"`
	UserID           string          `json:"userId,omitempty"`
	UserName         string          `json:"userName,omitempty"`
	ContactNumber    string          `json:"contactNumber,omitempty"`
	CurrentLocation  LocationPoint   `json:"currentLocation"`
	LocationHistory  []LocationPoint `json:"locationHistory,omitempty"`
	IsEmergency      bool            `json:"isEmergency"`
	EmergencyType    EmergencyType   `json:"emergencyType,omitempty"`
	EmergencyMessage string          `json:"emergencyMessage,omitempty"`
	IsSharing        bool            `json:"isSharing"`
	IsOnline         bool            `json:"isOnline"`
	LastSignalAt     time.Time       `json:"lastSignalAt"`
	SharingStartedAt time.Time       `json:"sharingStartedAt"`
	LastActiveAt     time.Time       `json:"lastActiveAt"`
	HelpRequestID    string          `json:"helpRequestId,omitempty"`
}

// AppendPoint records p as the current location, appends it to the
// history and evicts the oldest entries beyond limit. The session is
// marked online with its signal and activity timestamps set to at.
func (s *LocationSession) AppendPoint(p LocationPoint, limit int, at time.Time) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	s.LocationHistory = append(s.LocationHistory, p)
	if over := len(s.LocationHistory) - limit; over > 0 {
		// Copy into a fresh slice so the evicted prefix can be collected.
		trimmed := make([]LocationPoint, limit)
		copy(trimmed, s.LocationHistory[over:])
		s.LocationHistory = trimmed
	}
	s.CurrentLocation = p
	s.LastActiveAt = at
	s.LastSignalAt = at
	s.IsOnline = true
}

// OnlineAt reports whether the session had a signal within window of now.
func (s *LocationSession) OnlineAt(now time.Time, window time.Duration) bool {
	if s.LastSignalAt.IsZero() {
		return false
	}
	return now.Sub(s.LastSignalAt) < window
}

// Clone returns a deep copy of the session.
func (s *LocationSession) Clone() *LocationSession {
	if s == nil {
		return nil
	}
	c := *s
	c.CurrentLocation = s.CurrentLocation.clone()
	if s.LocationHistory != nil {
		c.LocationHistory = make([]LocationPoint, len(s.LocationHistory))
		for i := range s.LocationHistory {
			c.LocationHistory[i] = s.LocationHistory[i].clone()
		}
	}
	return &c
}

// WithoutHistory returns a shallow copy of the session with the history
// slice cleared, for listings.
func (s *LocationSession) WithoutHistory() *LocationSession {
	c := *s
	c.LocationHistory = nil
	return &c
}

// RecentHistory returns at most the last n history points in
// chronological order.
func (s *LocationSession) RecentHistory(n int) []LocationPoint {
	if n <= 0 || n >= len(s.LocationHistory) {
		out := make([]LocationPoint, len(s.LocationHistory))
		copy(out, s.LocationHistory)
		return out
	}
	out := make([]LocationPoint, n)
	copy(out, s.LocationHistory[len(s.LocationHistory)-n:])
	return out
}

func (p LocationPoint) clone() LocationPoint {
	p.Accuracy = cloneFloat(p.Accuracy)
	p.Altitude = cloneFloat(p.Altitude)
	p.Speed = cloneFloat(p.Speed)
	p.Heading = cloneFloat(p.Heading)
	return p
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
