// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/rescuenet/internal/store"
)

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateWebSocket(); err != nil {
		return err
	}

	if err := c.validateLocation(); err != nil {
		return err
	}

	if err := c.validateStore(); err != nil {
		return err
	}

	if err := c.validateEventBus(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateWebSocket() error {
	ws := c.WebSocket
	if ws.WriteWait <= 0 || ws.PongWait <= 0 {
		return fmt.Errorf("websocket write_wait and pong_wait must be positive")
	}
	if ws.MaxMessageSize <= 0 {
		return fmt.Errorf("websocket max_message_size must be positive")
	}
	if ws.SendBuffer <= 0 {
		return fmt.Errorf("websocket send_buffer must be positive")
	}
	if ws.InboundRate <= 0 || ws.InboundBurst <= 0 {
		return fmt.Errorf("websocket inbound_rate and inbound_burst must be positive")
	}
	return nil
}

func (c *Config) validateLocation() error {
	loc := c.Location
	if loc.LivenessWindow <= 0 {
		return fmt.Errorf("LOCATION_LIVENESS_WINDOW must be positive")
	}
	if loc.HistoryLimit <= 0 {
		return fmt.Errorf("LOCATION_HISTORY_LIMIT must be positive")
	}
	if loc.HistoryDefaultLimit <= 0 || loc.HistoryDefaultLimit > loc.HistoryLimit {
		return fmt.Errorf("LOCATION_HISTORY_DEFAULT_LIMIT must be between 1 and LOCATION_HISTORY_LIMIT (%d)", loc.HistoryLimit)
	}
	if loc.SessionTTL <= 0 {
		return fmt.Errorf("LOCATION_SESSION_TTL must be positive")
	}
	if loc.CleanupInterval <= 0 {
		return fmt.Errorf("LOCATION_CLEANUP_INTERVAL must be positive")
	}
	if _, err := store.ParseExpiryMode(loc.ExpiryPolicy); err != nil {
		return fmt.Errorf("LOCATION_EXPIRY_POLICY: %w", err)
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case store.DriverMemory:
		return nil
	case store.DriverBadger:
		if strings.TrimSpace(c.Store.Path) == "" {
			return fmt.Errorf("STORE_PATH is required when STORE_DRIVER=badger")
		}
		return nil
	default:
		return fmt.Errorf("STORE_DRIVER must be one of: memory, badger")
	}
}

func (c *Config) validateEventBus() error {
	bus := c.EventBusOptions()
	if err := bus.Validate(); err != nil {
		return fmt.Errorf("eventbus: %w", err)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if err := c.validateCORS(); err != nil {
		return err
	}
	return c.validateRateLimits()
}

// hasWildcardCORS checks if CORS origins contain a wildcard.
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

func (c *Config) validateCORS() error {
	if len(c.Security.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS must list at least one origin (use * to allow all)")
	}
	return nil
}

// Rate limit constants
const (
	minRateLimitRequests = 1           // Minimum 1 request allowed
	maxRateLimitRequests = 100000      // Maximum 100K requests per window
	minRateLimitWindow   = time.Second // Minimum 1 second window
	maxRateLimitWindow   = time.Hour   // Maximum 1 hour window
)

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}

	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// ShouldWarnAboutCORS reports whether a production deployment accepts any
// origin.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.IsProduction() && c.hasWildcardCORS()
}
