// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

/*
Package config provides configuration management for RescueNet.

Configuration is layered with Koanf v2, lowest priority first:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: $CONFIG_PATH, config.yaml, config.yml or
    /etc/rescuenet/config.yaml
 3. Environment variables listed in the mapping table (unmapped variables
    are ignored)

Example config.yaml:

	server:
	  port: 8080
	location:
	  liveness_window: 30s
	  session_ttl: 24h
	  expiry_policy: inactivity
	store:
	  driver: badger
	  path: /data/rescuenet/sessions
	eventbus:
	  enabled: true
	  driver: nats

Comma-separated environment values such as CORS_ORIGINS are split into
slices before validation.
*/
package config

import (
	"time"

	"github.com/tomtom215/rescuenet/internal/eventbus"
	"github.com/tomtom215/rescuenet/internal/store"
	ws "github.com/tomtom215/rescuenet/internal/websocket"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Location  LocationConfig  `koanf:"location"`
	Store     StoreConfig     `koanf:"store"`
	EventBus  EventBusConfig  `koanf:"eventbus"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// WebSocketConfig holds streaming connection settings.
type WebSocketConfig struct {
	WriteWait      time.Duration `koanf:"write_wait"`
	PongWait       time.Duration `koanf:"pong_wait"`
	MaxMessageSize int64         `koanf:"max_message_size"`
	SendBuffer     int           `koanf:"send_buffer"`
	InboundRate    float64       `koanf:"inbound_rate"`
	InboundBurst   int           `koanf:"inbound_burst"`

	// AllowedOrigins restricts the Origin header on upgrade. Empty falls
	// back to Security.CORSOrigins.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// AllowEmptyOrigin accepts upgrades without an Origin header, which is
	// what native mobile clients send.
	AllowEmptyOrigin bool `koanf:"allow_empty_origin"`
}

// LocationConfig holds session lifecycle settings.
type LocationConfig struct {
	LivenessWindow      time.Duration `koanf:"liveness_window"`
	HistoryLimit        int           `koanf:"history_limit"`
	HistoryDefaultLimit int           `koanf:"history_default_limit"`
	SessionTTL          time.Duration `koanf:"session_ttl"`
	CleanupInterval     time.Duration `koanf:"cleanup_interval"`
	ExpiryPolicy        string        `koanf:"expiry_policy"`
	RetainEmergencies   bool          `koanf:"retain_emergencies"`
}

// StoreConfig selects the session store.
type StoreConfig struct {
	Driver      string `koanf:"driver"`
	Path        string `koanf:"path"`
	SyncWrites  bool   `koanf:"sync_writes"`
	Compression bool   `koanf:"compression"`
}

// EventBusConfig controls the external emergency event mirror.
type EventBusConfig struct {
	Enabled                 bool          `koanf:"enabled"`
	Driver                  string        `koanf:"driver"`
	URL                     string        `koanf:"url"`
	EmbeddedServer          bool          `koanf:"embedded_server"`
	StoreDir                string        `koanf:"store_dir"`
	SubjectPrefix           string        `koanf:"subject_prefix"`
	QueueSize               int           `koanf:"queue_size"`
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
}

// SecurityConfig holds CORS and rate limiting settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production" || c.Server.Environment == "prod"
}

// WebSocketOrigins returns the origins allowed to open a stream.
func (c *Config) WebSocketOrigins() []string {
	if len(c.WebSocket.AllowedOrigins) > 0 {
		return c.WebSocket.AllowedOrigins
	}
	return c.Security.CORSOrigins
}

// StoreOptions converts the store section for store.New.
func (c *Config) StoreOptions() store.Config {
	return store.Config{
		Driver: c.Store.Driver,
		Badger: store.BadgerConfig{
			Path:        c.Store.Path,
			SyncWrites:  c.Store.SyncWrites,
			Compression: c.Store.Compression,
		},
		Options: store.Options{HistoryLimit: c.Location.HistoryLimit},
	}
}

// ExpiryPolicy converts the location section into the sweep policy.
// Validate has already rejected unknown policy names.
func (c *Config) ExpiryPolicy() store.ExpiryPolicy {
	mode, _ := store.ParseExpiryMode(c.Location.ExpiryPolicy) //nolint:errcheck // validated on load
	return store.ExpiryPolicy{
		TTL:               c.Location.SessionTTL,
		Mode:              mode,
		RetainEmergencies: c.Location.RetainEmergencies,
		LivenessWindow:    c.Location.LivenessWindow,
	}
}

// HubOptions converts the websocket section for websocket.NewHub.
func (c *Config) HubOptions() ws.Config {
	return ws.Config{
		WriteWait:      c.WebSocket.WriteWait,
		PongWait:       c.WebSocket.PongWait,
		MaxMessageSize: c.WebSocket.MaxMessageSize,
		SendBuffer:     c.WebSocket.SendBuffer,
		InboundRate:    c.WebSocket.InboundRate,
		InboundBurst:   c.WebSocket.InboundBurst,
	}
}

// EventBusOptions converts the eventbus section for eventbus.Setup.
func (c *Config) EventBusOptions() eventbus.Config {
	return eventbus.Config{
		Enabled:                 c.EventBus.Enabled,
		Driver:                  c.EventBus.Driver,
		URL:                     c.EventBus.URL,
		EmbeddedServer:          c.EventBus.EmbeddedServer,
		StoreDir:                c.EventBus.StoreDir,
		SubjectPrefix:           c.EventBus.SubjectPrefix,
		QueueSize:               c.EventBus.QueueSize,
		BreakerFailureThreshold: c.EventBus.BreakerFailureThreshold,
		BreakerTimeout:          c.EventBus.BreakerTimeout,
	}
}
