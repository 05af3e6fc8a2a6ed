// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package metrics

import (
	"github.com/tomtom215/rescuenet/internal/pubsub"
)

// FanoutObserver counts topic deliveries. It satisfies
// pubsub.DeliveryObserver.
type FanoutObserver struct{}

var _ pubsub.DeliveryObserver = FanoutObserver{}

// Delivered counts a queued event.
func (FanoutObserver) Delivered(topic pubsub.Topic, eventType string) {
	EventsDelivered.WithLabelValues(topicKind(topic), eventType).Inc()
}

// Dropped counts an event a subscriber could not accept.
func (FanoutObserver) Dropped(topic pubsub.Topic, eventType string) {
	EventsDropped.WithLabelValues(topicKind(topic), eventType).Inc()
}

func topicKind(topic pubsub.Topic) string {
	if topic == pubsub.EmergencyTopic {
		return "emergency"
	}
	return "session"
}
