// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package eventbus

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/rescuenet/internal/logging"
	"github.com/tomtom215/rescuenet/internal/metrics"
	"github.com/tomtom215/rescuenet/internal/pubsub"
)

//nolint:gochecknoinits // test setup
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

type sessionPayload struct {
	SessionID string `json:"sessionId"`
}

func (p sessionPayload) GetSessionID() string { return p.SessionID }

// stubPublisher records publishes and can be told to fail.
type stubPublisher struct {
	mu       sync.Mutex
	err      error
	topics   []string
	messages []*message.Message
	closed   bool
}

func (p *stubPublisher) Publish(topic string, msgs ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	for _, m := range msgs {
		p.topics = append(p.topics, topic)
		p.messages = append(p.messages, m)
	}
	return nil
}

func (p *stubPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *stubPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func TestBus_Subject(t *testing.T) {
	t.Parallel()

	b := NewBus(&stubPublisher{}, Config{SubjectPrefix: "relief"})
	tests := map[string]string{
		"emergency:new":      "relief.emergency.new",
		"emergency:resolved": "relief.emergency.resolved",
		"plain":              "relief.plain",
	}
	for in, want := range tests {
		if got := b.Subject(in); got != want {
			t.Errorf("Subject(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBus_PublishSetsMetadata(t *testing.T) {
	pub := &stubPublisher{}
	b := NewBus(pub, DefaultConfig())

	err := b.Publish(pubsub.Event{Type: "emergency:new", Data: sessionPayload{SessionID: "s-1"}})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if pub.count() != 1 {
		t.Fatalf("published %d messages, want 1", pub.count())
	}
	msg := pub.messages[0]
	if pub.topics[0] != "rescuenet.emergency.new" {
		t.Errorf("topic = %q", pub.topics[0])
	}
	if msg.UUID == "" {
		t.Error("message UUID should be set")
	}
	if msg.Metadata.Get(MetadataEventType) != "emergency:new" || msg.Metadata.Get(MetadataSessionID) != "s-1" {
		t.Errorf("metadata = %v", msg.Metadata)
	}

	var decoded struct {
		Type string         `json:"type"`
		Data sessionPayload `json:"data"`
	}
	if err := json.Unmarshal(msg.Payload, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded.Type != "emergency:new" || decoded.Data.SessionID != "s-1" {
		t.Errorf("payload = %+v", decoded)
	}
}

func TestBus_BreakerOpensAfterFailures(t *testing.T) {
	pub := &stubPublisher{err: errors.New("broker down")}
	b := NewBus(pub, Config{BreakerFailureThreshold: 3, BreakerTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		if err := b.Publish(pubsub.Event{Type: "emergency:new"}); err == nil {
			t.Fatalf("Publish(%d) should fail", i)
		}
	}
	if b.State() != "open" {
		t.Fatalf("State() = %q, want open", b.State())
	}

	rejectedBefore := testutil.ToFloat64(metrics.EventBusPublished.WithLabelValues("rejected"))
	err := b.Publish(pubsub.Event{Type: "emergency:new"})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Publish() with open breaker error = %v, want ErrOpenState", err)
	}
	if got := testutil.ToFloat64(metrics.EventBusPublished.WithLabelValues("rejected")); got != rejectedBefore+1 {
		t.Errorf("rejected counter = %v, want %v", got, rejectedBefore+1)
	}
}

func TestBus_EnqueueNeverBlocks(t *testing.T) {
	b := NewBus(&stubPublisher{}, Config{QueueSize: 1})

	droppedBefore := testutil.ToFloat64(metrics.EventBusDropped)
	if !b.Enqueue(pubsub.Event{Type: "emergency:new"}) {
		t.Fatal("first Enqueue should succeed")
	}

	done := make(chan bool, 1)
	go func() { done <- b.Enqueue(pubsub.Event{Type: "emergency:new"}) }()
	select {
	case ok := <-done:
		if ok {
			t.Error("Enqueue on a full queue should report false")
		}
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}

	if got := testutil.ToFloat64(metrics.EventBusDropped); got != droppedBefore+1 {
		t.Errorf("dropped counter = %v, want %v", got, droppedBefore+1)
	}
	if b.QueueLen() != 1 {
		t.Errorf("QueueLen() = %d, want 1", b.QueueLen())
	}
}

func TestBus_RunWithContext(t *testing.T) {
	pub := &stubPublisher{}
	b := NewBus(pub, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- b.RunWithContext(ctx) }()

	for i := 0; i < 3; i++ {
		b.Enqueue(pubsub.Event{Type: "emergency:resolved"})
	}

	deadline := time.Now().Add(2 * time.Second)
	for pub.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if pub.count() != 3 {
		t.Fatalf("published %d messages, want 3", pub.count())
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunWithContext did not return after cancel")
	}
}

func TestBus_Close(t *testing.T) {
	pub := &stubPublisher{}
	b := NewBus(pub, DefaultConfig())

	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if !pub.closed {
		t.Error("publisher not closed")
	}
	if b.Enqueue(pubsub.Event{Type: "emergency:new"}) {
		t.Error("Enqueue after Close should fail")
	}
	if err := b.Publish(pubsub.Event{Type: "emergency:new"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish after Close error = %v", err)
	}
}

func TestSetup_MemoryDriverRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Driver = DriverMemory

	c, err := Setup(cfg)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer c.Close(context.Background()) //nolint:errcheck // test cleanup

	if c.Subscriber == nil {
		t.Fatal("memory driver should expose a subscriber")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	messages, err := c.Subscriber.Subscribe(ctx, "rescuenet.emergency.new")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	go func() {
		_ = c.Bus.Publish(pubsub.Event{Type: "emergency:new", Data: sessionPayload{SessionID: "s-9"}}) //nolint:errcheck // asserted via subscriber
	}()

	select {
	case msg := <-messages:
		msg.Ack()
		if msg.Metadata.Get(MetadataSessionID) != "s-9" {
			t.Errorf("session id metadata = %q", msg.Metadata.Get(MetadataSessionID))
		}
	case <-ctx.Done():
		t.Fatal("no message received from memory driver")
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"disabled ignores driver", func(c *Config) { c.Driver = "kafka" }, false},
		{"memory", func(c *Config) { c.Enabled = true }, false},
		{"nats embedded", func(c *Config) { c.Enabled = true; c.Driver = DriverNATS }, false},
		{"unknown driver", func(c *Config) { c.Enabled = true; c.Driver = "kafka" }, true},
		{"empty prefix", func(c *Config) { c.Enabled = true; c.SubjectPrefix = "" }, true},
		{"zero queue", func(c *Config) { c.Enabled = true; c.QueueSize = 0 }, true},
		{"external nats without url", func(c *Config) {
			c.Enabled = true
			c.Driver = DriverNATS
			c.EmbeddedServer = false
			c.URL = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
