// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package store

import (
	"fmt"
	"time"

	"github.com/tomtom215/rescuenet/internal/models"
)

// ExpiryMode selects which sessions the expiry sweep may remove.
type ExpiryMode string

const (
	// ExpireOnInactivity removes sessions purely by time since LastActiveAt.
	ExpireOnInactivity ExpiryMode = "inactivity"

	// ExpireOnlineGated additionally keeps sessions that are still online
	// by LastSignalAt. The cached IsOnline flag is not consulted.
	ExpireOnlineGated ExpiryMode = "online_gated"
)

// ParseExpiryMode validates a configured mode name.
func ParseExpiryMode(s string) (ExpiryMode, error) {
	switch ExpiryMode(s) {
	case ExpireOnInactivity, "":
		return ExpireOnInactivity, nil
	case ExpireOnlineGated:
		return ExpireOnlineGated, nil
	default:
		return "", fmt.Errorf("unknown expiry policy %q (want inactivity or online_gated)", s)
	}
}

// ExpiryPolicy decides when a stored session may be removed.
type ExpiryPolicy struct {
	// TTL is the inactivity period, measured from LastActiveAt. Zero
	// disables expiry.
	TTL time.Duration

	// Mode selects the gating rule.
	Mode ExpiryMode

	// RetainEmergencies keeps sessions flagged as emergency regardless of age.
	RetainEmergencies bool

	// LivenessWindow is how recent LastSignalAt must be for the session to
	// count as online under ExpireOnlineGated. Zero means
	// models.DefaultLivenessWindow.
	LivenessWindow time.Duration
}

// Expired reports whether s may be removed at now.
func (p ExpiryPolicy) Expired(s *models.LocationSession, now time.Time) bool {
	if p.TTL <= 0 {
		return false
	}
	if now.Sub(s.LastActiveAt) < p.TTL {
		return false
	}
	if p.RetainEmergencies && s.IsEmergency {
		return false
	}
	if p.Mode == ExpireOnlineGated {
		window := p.LivenessWindow
		if window <= 0 {
			window = models.DefaultLivenessWindow
		}
		if s.OnlineAt(now, window) {
			return false
		}
	}
	return true
}
