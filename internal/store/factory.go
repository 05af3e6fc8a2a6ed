// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package store

import (
	"fmt"
)

// Driver names accepted by New.
const (
	DriverMemory = "memory"
	DriverBadger = "badger"
)

// Compile-time interface checks.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*BadgerStore)(nil)
)

// Config selects and configures a Store implementation.
type Config struct {
	Driver string
	Badger BadgerConfig
	Options
}

// New builds the Store named by cfg.Driver.
func New(cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		return NewMemoryStore(cfg.Options), nil
	case DriverBadger:
		b, err := OpenBadgerStore(cfg.Badger, cfg.Options)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
