// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/rescuenet/internal/logging"
	"github.com/tomtom215/rescuenet/internal/metrics"
	"github.com/tomtom215/rescuenet/internal/pubsub"
)

// Metadata keys set on every mirrored message.
const (
	MetadataEventType = "event_type"
	MetadataSessionID = "session_id"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("event bus closed")

// Bus queues events and publishes them to a Watermill publisher.
type Bus struct {
	publisher     message.Publisher
	breaker       *gobreaker.CircuitBreaker[interface{}]
	queue         chan pubsub.Event
	subjectPrefix string

	mu     sync.RWMutex
	closed bool
}

// NewBus wraps publisher. The Bus takes ownership and closes it on Close.
func NewBus(publisher message.Publisher, cfg Config) *Bus {
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultConfig().QueueSize
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = DefaultConfig().SubjectPrefix
	}
	return &Bus{
		publisher: publisher,
		breaker: NewCircuitBreaker(CircuitBreakerConfig{
			Name:             "eventbus",
			Timeout:          cfg.BreakerTimeout,
			FailureThreshold: cfg.BreakerFailureThreshold,
		}),
		queue:         make(chan pubsub.Event, size),
		subjectPrefix: prefix,
	}
}

// Enqueue queues e for publishing. It never blocks and reports false when
// the queue is full or the bus is closed.
func (b *Bus) Enqueue(e pubsub.Event) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return false
	}

	select {
	case b.queue <- e:
		metrics.EventBusQueueDepth.Set(float64(len(b.queue)))
		return true
	default:
		metrics.EventBusDropped.Inc()
		logging.Warn().Str("event_type", e.Type).Msg("Event bus queue full, dropping event")
		return false
	}
}

// RunWithContext publishes queued events until ctx is canceled. Events still
// queued at shutdown are flushed with a short deadline.
func (b *Bus) RunWithContext(ctx context.Context) error {
	logging.Info().Str("prefix", b.subjectPrefix).Msg("Event bus started")

	for {
		select {
		case <-ctx.Done():
			b.drain(2 * time.Second)
			logging.Info().Msg("Event bus stopped")
			return ctx.Err()
		case e := <-b.queue:
			metrics.EventBusQueueDepth.Set(float64(len(b.queue)))
			b.publishLogged(e)
		}
	}
}

func (b *Bus) drain(budget time.Duration) {
	deadline := time.Now().Add(budget)
	for time.Now().Before(deadline) {
		select {
		case e := <-b.queue:
			b.publishLogged(e)
		default:
			metrics.EventBusQueueDepth.Set(0)
			return
		}
	}
}

func (b *Bus) publishLogged(e pubsub.Event) {
	if err := b.Publish(e); err != nil {
		logging.Warn().Err(err).Str("event_type", e.Type).Msg("Failed to mirror event")
	}
}

// Publish sends e synchronously through the circuit breaker.
func (b *Bus) Publish(e pubsub.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	msg, err := b.newMessage(e)
	if err != nil {
		metrics.EventBusPublished.WithLabelValues("failure").Inc()
		return err
	}
	subject := b.Subject(e.Type)

	_, err = b.breaker.Execute(func() (interface{}, error) {
		return nil, b.publisher.Publish(subject, msg)
	})
	switch {
	case err == nil:
		metrics.EventBusPublished.WithLabelValues("success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.EventBusPublished.WithLabelValues("rejected").Inc()
	default:
		metrics.EventBusPublished.WithLabelValues("failure").Inc()
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (b *Bus) newMessage(e pubsub.Event) (*message.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	msg := message.NewMessage(uuid.New().String(), payload)
	msg.Metadata.Set(MetadataEventType, e.Type)
	if id := sessionIDOf(e.Data); id != "" {
		msg.Metadata.Set(MetadataSessionID, id)
	}
	return msg, nil
}

// Subject maps an event name to a publish subject:
// "emergency:new" becomes "<prefix>.emergency.new".
func (b *Bus) Subject(eventType string) string {
	return b.subjectPrefix + "." + strings.ReplaceAll(eventType, ":", ".")
}

// SubjectPrefix returns the configured prefix.
func (b *Bus) SubjectPrefix() string {
	return b.subjectPrefix
}

// State returns the breaker state ("closed", "half-open", "open").
func (b *Bus) State() string {
	return b.breaker.State().String()
}

// QueueLen returns the number of events waiting to be published.
func (b *Bus) QueueLen() int {
	return len(b.queue)
}

// Close stops accepting events and closes the publisher.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.publisher.Close()
}

// sessionIDOf extracts a session id from event payloads that carry one.
func sessionIDOf(data interface{}) string {
	type sessionScoped interface{ GetSessionID() string }
	if s, ok := data.(sessionScoped); ok {
		return s.GetSessionID()
	}
	return ""
}
