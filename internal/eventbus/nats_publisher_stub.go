// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

//go:build !nats

package eventbus

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill/message"
)

// ErrNATSUnavailable is returned when the binary was built without -tags=nats.
var ErrNATSUnavailable = errors.New("NATS event bus not available: build with -tags=nats")

func newNATSPublisher(Config) (message.Publisher, func(context.Context) error, error) {
	return nil, nil, ErrNATSUnavailable
}
