// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package services

import (
	"context"
	"time"

	"github.com/tomtom215/rescuenet/internal/logging"
)

// BusRunner is satisfied by *eventbus.Bus.
type BusRunner interface {
	RunWithContext(ctx context.Context) error
}

// BusCloser is satisfied by *eventbus.Components. Close releases the
// publisher and any embedded NATS server.
type BusCloser interface {
	Close(ctx context.Context) error
}

// EventBusService supervises the emergency mirror. The bus publishes queued
// events until ctx is canceled and flushes what is left; the backing
// components are then closed with a fresh context bounded by
// shutdownTimeout.
type EventBusService struct {
	bus             BusRunner
	closer          BusCloser
	shutdownTimeout time.Duration
	name            string
}

// NewEventBusService wraps bus. closer may be nil when nothing needs closing.
func NewEventBusService(bus BusRunner, closer BusCloser) *EventBusService {
	return &EventBusService{
		bus:             bus,
		closer:          closer,
		shutdownTimeout: 10 * time.Second,
		name:            "event-bus",
	}
}

// Serve implements suture.Service.
//
// Close only runs once the root context is done. A bus that returns early on
// its own is restarted by suture with the same components.
func (s *EventBusService) Serve(ctx context.Context) error {
	err := s.bus.RunWithContext(ctx)
	if ctx.Err() == nil || s.closer == nil {
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if cerr := s.closer.Close(shutdownCtx); cerr != nil {
		logging.Warn().Err(cerr).Msg("Event bus close failed")
	}
	return err
}

// String implements fmt.Stringer for suture's event log.
func (s *EventBusService) String() string {
	return s.name
}
