// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package websocket

import (
	"context"
	"errors"

	"github.com/goccy/go-json"

	"github.com/tomtom215/rescuenet/internal/dispatcher"
	"github.com/tomtom215/rescuenet/internal/logging"
	"github.com/tomtom215/rescuenet/internal/metrics"
	"github.com/tomtom215/rescuenet/internal/models"
)

// Inbound message types.
const (
	MessageTypeStart              = "location:start"
	MessageTypeUpdate             = "location:update"
	MessageTypeEmergency          = "location:emergency"
	MessageTypeSafe               = "location:safe"
	MessageTypeStop               = "location:stop"
	MessageTypeWatchLocation      = "watch:location"
	MessageTypeUnwatchLocation    = "unwatch:location"
	MessageTypeWatchEmergencies   = "watch:emergencies"
	MessageTypeUnwatchEmergencies = "unwatch:emergencies"
	MessageTypePing               = "ping"
	MessageTypePong               = "pong"
)

var (
	errRateLimited  = errors.New("Rate limit exceeded")                  //nolint:staticcheck // client-facing text
	errInvalidFrame = errors.New("Invalid message format")               //nolint:staticcheck // client-facing text
	errUnknownType  = errors.New("Unknown event type")                   //nolint:staticcheck // client-facing text
	errInvalidData  = errors.New("Invalid payload for this event type") //nolint:staticcheck // client-facing text
)

// Message is the frame envelope in both directions.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// inboundMessage defers payload decoding until the type is known.
type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// route applies one inbound frame. Every rejected frame produces exactly one
// location:error back to this client and nothing to anyone else.
func (c *Client) route(msg inboundMessage) {
	metrics.WSMessagesReceived.WithLabelValues(metricType(msg.Type)).Inc()

	ctx, cancel := context.WithTimeout(c.ctx, c.hub.config.WriteWait)
	defer cancel()

	if err := c.handle(ctx, msg); err != nil {
		var internal *dispatcher.InternalError
		if errors.As(err, &internal) {
			logging.Ctx(ctx).Error().Err(internal.Err).Str("message_type", msg.Type).Msg("inbound event failed")
		}
		c.sendError(err)
	}
}

func (c *Client) handle(ctx context.Context, msg inboundMessage) error {
	d := c.hub.dispatcher

	switch msg.Type {
	case MessageTypePing:
		c.enqueue(Message{Type: MessageTypePong})
		return nil

	case MessageTypeStart:
		var req models.StartRequest
		if err := decode(msg.Data, &req); err != nil {
			return err
		}
		_, err := d.Start(ctx, c, &req)
		return err

	case MessageTypeUpdate:
		var req models.UpdateRequest
		if err := decode(msg.Data, &req); err != nil {
			return err
		}
		_, err := d.Update(ctx, &req)
		return err

	case MessageTypeEmergency:
		var req models.EmergencyRequest
		if err := decode(msg.Data, &req); err != nil {
			return err
		}
		_, err := d.SetEmergency(ctx, &req)
		return err

	case MessageTypeSafe:
		var req models.SessionRequest
		if err := decode(msg.Data, &req); err != nil {
			return err
		}
		// A missing session is silent on the streaming path.
		_, err := d.MarkSafe(ctx, req.SessionID)
		return err

	case MessageTypeStop:
		var req models.SessionRequest
		if err := decode(msg.Data, &req); err != nil {
			return err
		}
		_, err := d.Stop(ctx, c, req.SessionID)
		return err

	case MessageTypeWatchLocation, MessageTypeUnwatchLocation:
		var req models.SessionRequest
		if err := decode(msg.Data, &req); err != nil {
			return err
		}
		if msg.Type == MessageTypeWatchLocation {
			return d.Watch(c, req.SessionID)
		}
		return d.Unwatch(c, req.SessionID)

	case MessageTypeWatchEmergencies:
		d.WatchEmergencies(c)
		return nil

	case MessageTypeUnwatchEmergencies:
		d.UnwatchEmergencies(c)
		return nil

	default:
		return errUnknownType
	}
}

// decode unmarshals a payload. An absent payload decodes to the zero value
// so that validation reports the missing fields.
func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errInvalidData
	}
	return nil
}

func (c *Client) sendError(err error) {
	c.enqueue(Message{
		Type: dispatcher.EventError,
		Data: dispatcher.ErrorEvent{Error: err.Error()},
	})
}

// metricType bounds the label set to known inbound types.
func metricType(t string) string {
	switch t {
	case MessageTypeStart, MessageTypeUpdate, MessageTypeEmergency, MessageTypeSafe, MessageTypeStop,
		MessageTypeWatchLocation, MessageTypeUnwatchLocation, MessageTypeWatchEmergencies,
		MessageTypeUnwatchEmergencies, MessageTypePing:
		return t
	default:
		return "unknown"
	}
}
