// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package eventbus

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/rescuenet/internal/logging"
)

// Components owns the Bus and whatever backs it.
type Components struct {
	Bus *Bus

	// Subscriber is set for the memory driver so in-process consumers can
	// read mirrored events. It is nil for NATS.
	Subscriber message.Subscriber

	driver   string
	shutdown []func(ctx context.Context) error
}

// Setup builds the publisher selected by cfg.Driver and wraps it in a Bus.
func Setup(cfg Config) (*Components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Components{driver: cfg.Driver}

	switch cfg.Driver {
	case DriverMemory:
		gc := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: int64(cfg.QueueSize),
		}, logging.NewWatermillLogger("eventbus"))
		c.Bus = NewBus(gc, cfg)
		c.Subscriber = gc

	case DriverNATS:
		pub, shutdown, err := newNATSPublisher(cfg)
		if err != nil {
			return nil, err
		}
		c.Bus = NewBus(pub, cfg)
		c.shutdown = append(c.shutdown, shutdown)

	default:
		return nil, fmt.Errorf("unknown event bus driver %q", cfg.Driver)
	}

	logging.Info().Str("driver", cfg.Driver).Str("prefix", c.Bus.SubjectPrefix()).Msg("Event bus initialized")
	return c, nil
}

// Driver returns the configured driver name.
func (c *Components) Driver() string {
	return c.driver
}

// Close closes the Bus, then any embedded server.
func (c *Components) Close(ctx context.Context) error {
	errs := []error{c.Bus.Close()}
	for i := len(c.shutdown) - 1; i >= 0; i-- {
		errs = append(errs, c.shutdown[i](ctx))
	}
	return errors.Join(errs...)
}
