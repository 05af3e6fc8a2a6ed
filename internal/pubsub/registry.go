// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

// Package pubsub implements the in-process topic registry that fans
// location events out to subscribed connections.
//
// Topics are either per-session ("location:<sessionId>") or the single
// global emergency topic. A subscriber may belong to any number of topics.
// Publishing takes a snapshot of the subscriber set, so subscribing or
// unsubscribing while a publish is in progress neither corrupts the set
// nor skips a delivery. Publishes are serialized, so every subscriber of a
// topic observes events in the same order.
package pubsub

import (
	"sort"
	"strings"
	"sync"
)

// Topic names a broadcast channel.
type Topic string

// EmergencyTopic is the global channel for emergency raise/resolve events.
const EmergencyTopic Topic = "emergencies"

// sessionTopicPrefix prefixes per-session topics.
const sessionTopicPrefix = "location:"

// SessionTopic returns the update topic for a session.
func SessionTopic(sessionID string) Topic {
	return Topic(sessionTopicPrefix + sessionID)
}

// SessionID extracts the session id from a per-session topic.
func (t Topic) SessionID() (string, bool) {
	if !strings.HasPrefix(string(t), sessionTopicPrefix) {
		return "", false
	}
	return strings.TrimPrefix(string(t), sessionTopicPrefix), true
}

// Event is one outbound message. Data must be safe to share between
// subscribers; it is delivered to all of them as the same value.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Subscriber receives events. Deliver must not block; it reports false
// when the event could not be queued (for example a full send buffer).
type Subscriber interface {
	SubscriberID() uint64
	Deliver(e Event) bool
}

// DeliveryObserver is notified of every delivery attempt.
type DeliveryObserver interface {
	Delivered(topic Topic, eventType string)
	Dropped(topic Topic, eventType string)
}

// Registry maps topics to subscriber sets.
type Registry struct {
	mu          sync.RWMutex
	topics      map[Topic]map[uint64]Subscriber
	memberships map[uint64]map[Topic]struct{}

	// publishMu serializes Publish calls so that per-topic order is the
	// same for every subscriber.
	publishMu sync.Mutex

	observer DeliveryObserver
}

// NewRegistry returns an empty registry. observer may be nil.
func NewRegistry(observer DeliveryObserver) *Registry {
	return &Registry{
		topics:      make(map[Topic]map[uint64]Subscriber),
		memberships: make(map[uint64]map[Topic]struct{}),
		observer:    observer,
	}
}

// Subscribe adds sub to topic. Subscribing twice is a no-op.
func (r *Registry) Subscribe(sub Subscriber, topic Topic) {
	id := sub.SubscriberID()

	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.topics[topic]
	if !ok {
		subs = make(map[uint64]Subscriber)
		r.topics[topic] = subs
	}
	subs[id] = sub

	member, ok := r.memberships[id]
	if !ok {
		member = make(map[Topic]struct{})
		r.memberships[id] = member
	}
	member[topic] = struct{}{}
}

// Unsubscribe removes sub from topic. Empty topics are dropped.
func (r *Registry) Unsubscribe(sub Subscriber, topic Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(sub.SubscriberID(), topic)
}

// RemoveSubscriber removes sub from every topic it belongs to and returns
// how many subscriptions were dropped.
func (r *Registry) RemoveSubscriber(sub Subscriber) int {
	id := sub.SubscriberID()

	r.mu.Lock()
	defer r.mu.Unlock()

	member := r.memberships[id]
	n := len(member)
	for topic := range member {
		r.removeLocked(id, topic)
	}
	return n
}

func (r *Registry) removeLocked(id uint64, topic Topic) {
	if subs, ok := r.topics[topic]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(r.topics, topic)
		}
	}
	if member, ok := r.memberships[id]; ok {
		delete(member, topic)
		if len(member) == 0 {
			delete(r.memberships, id)
		}
	}
}

// Publish delivers e to every current subscriber of topic, in subscriber
// id order, and returns the number of successful deliveries. A subscriber
// that cannot accept the event is skipped.
func (r *Registry) Publish(topic Topic, e Event) int {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	snapshot := r.snapshot(topic)

	delivered := 0
	for _, sub := range snapshot {
		if sub.Deliver(e) {
			delivered++
			if r.observer != nil {
				r.observer.Delivered(topic, e.Type)
			}
			continue
		}
		if r.observer != nil {
			r.observer.Dropped(topic, e.Type)
		}
	}
	return delivered
}

// snapshot copies the subscriber set of topic sorted by id.
func (r *Registry) snapshot(topic Topic) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.topics[topic]
	out := make([]Subscriber, 0, len(subs))
	for _, sub := range subs {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubscriberID() < out[j].SubscriberID()
	})
	return out
}

// IsSubscribed reports whether sub currently belongs to topic. Fan-out
// never needs it; tests use it to check subscription cleanup.
func (r *Registry) IsSubscribed(sub Subscriber, topic Topic) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.topics[topic][sub.SubscriberID()]
	return ok
}

// TopicCount returns the number of topics with at least one subscriber.
func (r *Registry) TopicCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics)
}

// SubscriberCount returns the number of subscribers of topic.
func (r *Registry) SubscriberCount(topic Topic) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}
