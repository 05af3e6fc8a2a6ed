// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/rescuenet/internal/eventbus"
	"github.com/tomtom215/rescuenet/internal/models"
	"github.com/tomtom215/rescuenet/internal/store"
)

// DefaultConfigPaths are probed in order when CONFIG_PATH is unset or
// points at a missing file. Only the first hit is read.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/rescuenet/config.yaml",
	"/etc/rescuenet/config.yml",
}

// ConfigPathEnvVar names an explicit YAML config file.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig is the bottom layer that the file and environment override.
// Event bus defaults come from eventbus.DefaultConfig.
func defaultConfig() *Config {
	bus := eventbus.DefaultConfig()

	return &Config{
		Server: ServerConfig{
			Port:        8080,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		WebSocket: WebSocketConfig{
			WriteWait:        10 * time.Second,
			PongWait:         60 * time.Second,
			MaxMessageSize:   64 * 1024,
			SendBuffer:       256,
			InboundRate:      20,
			InboundBurst:     40,
			AllowedOrigins:   []string{},
			AllowEmptyOrigin: true, // native mobile clients send no Origin
		},
		Location: LocationConfig{
			LivenessWindow:      models.DefaultLivenessWindow,
			HistoryLimit:        models.DefaultHistoryLimit,
			HistoryDefaultLimit: 50,
			SessionTTL:          24 * time.Hour,
			CleanupInterval:     5 * time.Minute,
			ExpiryPolicy:        string(store.ExpireOnInactivity),
			RetainEmergencies:   false,
		},
		Store: StoreConfig{
			Driver: store.DriverBadger,
			Path:   "/data/rescuenet/sessions",
		},
		EventBus: EventBusConfig{
			Enabled:                 bus.Enabled,
			Driver:                  bus.Driver,
			URL:                     bus.URL,
			EmbeddedServer:          bus.EmbeddedServer,
			StoreDir:                bus.StoreDir,
			SubjectPrefix:           bus.SubjectPrefix,
			QueueSize:               bus.QueueSize,
			BreakerFailureThreshold: bus.BreakerFailureThreshold,
			BreakerTimeout:          bus.BreakerTimeout,
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf merges built-in defaults, an optional YAML file and the
// mapped environment variables, later sources winning, then validates the
// result. Environment names map onto koanf paths through envMappings, e.g.
// HTTP_PORT -> server.port and LOCATION_SESSION_TTL -> location.session_ttl.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	// CORS_ORIGINS=a,b arrives as one string.
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// findConfigFile returns the first config file that exists or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths lists koanf paths that accept comma-separated strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"websocket.allowed_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Server mappings
	"http_port":    "server.port",
	"http_host":    "server.host",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",

	// WebSocket mappings
	"ws_write_wait":         "websocket.write_wait",
	"ws_pong_wait":          "websocket.pong_wait",
	"ws_max_message_size":   "websocket.max_message_size",
	"ws_send_buffer":        "websocket.send_buffer",
	"ws_inbound_rate":       "websocket.inbound_rate",
	"ws_inbound_burst":      "websocket.inbound_burst",
	"ws_allowed_origins":    "websocket.allowed_origins",
	"ws_allow_empty_origin": "websocket.allow_empty_origin",

	// Location mappings
	"location_liveness_window":       "location.liveness_window",
	"location_history_limit":         "location.history_limit",
	"location_history_default_limit": "location.history_default_limit",
	"location_session_ttl":           "location.session_ttl",
	"location_cleanup_interval":      "location.cleanup_interval",
	"location_expiry_policy":         "location.expiry_policy",
	"location_retain_emergencies":    "location.retain_emergencies",

	// Store mappings
	"store_driver":      "store.driver",
	"store_path":        "store.path",
	"store_sync_writes": "store.sync_writes",
	"store_compression": "store.compression",

	// Event bus mappings
	"eventbus_enabled":           "eventbus.enabled",
	"eventbus_driver":            "eventbus.driver",
	"nats_url":                   "eventbus.url",
	"nats_embedded":              "eventbus.embedded_server",
	"nats_store_dir":             "eventbus.store_dir",
	"eventbus_subject_prefix":    "eventbus.subject_prefix",
	"eventbus_queue_size":        "eventbus.queue_size",
	"eventbus_breaker_threshold": "eventbus.breaker_failure_threshold",
	"eventbus_breaker_timeout":   "eventbus.breaker_timeout",

	// Security mappings
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	// Logging mappings
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf paths.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}

	// Unlisted variables are dropped; koanf skips empty keys.
	return ""
}
