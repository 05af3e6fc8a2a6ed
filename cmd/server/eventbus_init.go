// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package main

import (
	"github.com/tomtom215/rescuenet/internal/config"
	"github.com/tomtom215/rescuenet/internal/eventbus"
	"github.com/tomtom215/rescuenet/internal/logging"
)

// initEventBus builds the emergency mirror. It returns nil, nil when the bus
// is disabled.
func initEventBus(cfg *config.Config) (*eventbus.Components, error) {
	if !cfg.EventBus.Enabled {
		logging.Info().Msg("Event bus disabled (EVENTBUS_ENABLED=false)")
		return nil, nil
	}

	components, err := eventbus.Setup(cfg.EventBusOptions())
	if err != nil {
		return nil, err
	}
	return components, nil
}
