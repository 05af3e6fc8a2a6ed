// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/rescuenet/internal/dispatcher"
	"github.com/tomtom215/rescuenet/internal/logging"
	"github.com/tomtom215/rescuenet/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// disconnectTimeout bounds the store write made when a client goes away.
const disconnectTimeout = 5 * time.Second

// Config controls per-connection behavior.
type Config struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendBuffer     int

	// InboundRate is the sustained number of inbound frames per second a
	// client may send; InboundBurst is the bucket size.
	InboundRate  float64
	InboundBurst int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendBuffer:     256,
		InboundRate:    20,
		InboundBurst:   40,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.InboundRate <= 0 {
		c.InboundRate = d.InboundRate
	}
	if c.InboundBurst <= 0 {
		c.InboundBurst = d.InboundBurst
	}
	return c
}

// Hub tracks connected clients and owns their disconnect lifecycle.
// Fan-out itself goes through the dispatcher's topic registry.
type Hub struct {
	clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	// done is closed once the run loop stops reading Register and
	// Unregister. cleanups tracks disconnects still writing to the store.
	done     chan struct{}
	stopOnce sync.Once
	cleanups sync.WaitGroup

	dispatcher *dispatcher.Dispatcher
	config     Config
}

// NewHub creates a hub whose clients route inbound events to d.
func NewHub(d *dispatcher.Dispatcher, cfg Config) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		dispatcher: d,
		config:     cfg.withDefaults(),
	}
}

// Config returns the effective client configuration.
func (h *Hub) Config() Config {
	return h.config
}

// Attach hands client to the run loop. It returns false once the hub has
// stopped, in which case the caller owns closing the connection.
func (h *Hub) Attach(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// detach is the read pump's way out. It never blocks on a stopped hub; the
// shutdown path disconnects every client still in the map.
func (h *Hub) detach(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// RunWithContext processes registrations until ctx is canceled, then closes
// every client, waits for pending disconnect cleanup and returns ctx.Err().
//
// Shutdown is checked first, then lifecycle events, so a canceled hub never
// accepts another client.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			metrics.WSConnections.Set(float64(count))
			logging.Debug().Uint64("conn_id", client.id).Int("total_clients", count).Msg("websocket client connected")

		case client := <-h.Unregister:
			h.unregister(client)
		}
	}
}

// unregister drops client from the map and runs its disconnect cleanup in
// the background, so a slow store write does not hold up other clients.
// Unknown clients are ignored, so a client that is unregistered twice is
// only cleaned up once.
func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	count := len(h.clients)
	h.mu.Unlock()

	h.cleanups.Add(1)
	go func() {
		defer h.cleanups.Done()
		h.disconnect(client)
	}()
	metrics.WSConnections.Set(float64(count))
	logging.Debug().Uint64("conn_id", client.id).Int("total_clients", count).Msg("websocket client disconnected")
}

func (h *Hub) disconnect(client *Client) {
	removed := h.dispatcher.Registry().RemoveSubscriber(client)

	ctx, cancel := context.WithTimeout(client.ctx, disconnectTimeout)
	defer cancel()
	h.dispatcher.OnDisconnect(ctx, client)

	client.close()

	logging.Ctx(client.ctx).Debug().Int("subscriptions_removed", removed).Msg("websocket client cleaned up")
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	h.stopOnce.Do(func() { close(h.done) })
	clientCount := h.GetClientCount()
	h.closeAllClients()
	h.cleanups.Wait()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// closeAllClients disconnects every client in id order. Sessions they were
// publishing are marked offline, the same as a dropped connection.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*Client]bool)
	h.mu.Unlock()

	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	for _, client := range clients {
		h.disconnect(client)
	}
	metrics.WSConnections.Set(0)
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
