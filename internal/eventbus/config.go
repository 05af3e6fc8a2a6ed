// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

// Package eventbus mirrors emergency broadcasts onto a Watermill publisher so
// that systems outside this process (dispatch centres, SMS gateways, audit
// sinks) can consume them.
//
// The mirror is best effort. Events are queued without blocking the caller,
// published by a single worker behind a circuit breaker, and dropped with a
// metric when the queue is full. Nothing in the live fan-out path depends on
// it.
//
// Two drivers are available: "memory" (Watermill gochannel, in-process) and
// "nats" (JetStream, optionally with an embedded server). The NATS driver is
// compiled only with -tags=nats.
package eventbus

import (
	"fmt"
	"time"
)

// Driver names.
const (
	DriverMemory = "memory"
	DriverNATS   = "nats"
)

// Config holds event bus settings.
type Config struct {
	Enabled bool
	Driver  string

	// URL of an external NATS server. Ignored when EmbeddedServer is true.
	URL            string
	EmbeddedServer bool
	StoreDir       string

	// SubjectPrefix is prepended to every subject, e.g. "rescuenet".
	SubjectPrefix string

	// QueueSize bounds the number of events waiting to be published.
	QueueSize int

	BreakerFailureThreshold uint32
	BreakerTimeout          time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:                 false,
		Driver:                  DriverMemory,
		URL:                     "nats://127.0.0.1:4222",
		EmbeddedServer:          true,
		StoreDir:                "/data/rescuenet/nats",
		SubjectPrefix:           "rescuenet",
		QueueSize:               1024,
		BreakerFailureThreshold: 5,
		BreakerTimeout:          10 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Driver {
	case DriverMemory, DriverNATS:
	default:
		return fmt.Errorf("unknown event bus driver %q", c.Driver)
	}
	if c.SubjectPrefix == "" {
		return fmt.Errorf("event bus subject prefix is required")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("event bus queue size must be positive")
	}
	if c.Driver == DriverNATS && !c.EmbeddedServer && c.URL == "" {
		return fmt.Errorf("event bus url is required without an embedded server")
	}
	return nil
}
