// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/rescuenet/internal/dispatcher"
	"github.com/tomtom215/rescuenet/internal/store"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// setupServer starts a hub and an httptest server that upgrades every
// request into a hub client.
func setupServer(t *testing.T, cfg Config) (*Hub, store.Store, *httptest.Server) {
	t.Helper()

	d, st := newTestDispatcher(t)
	hub := NewHub(d, cfg)
	startHub(t, hub)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn)
		hub.Register <- client
		client.Start()
	}))
	t.Cleanup(server.Close)
	return hub, st, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, data interface{}) {
	t.Helper()
	payload := map[string]interface{}{"type": typ}
	if data != nil {
		payload["data"] = data
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("frame is not JSON: %v (%s)", err, raw)
	}
	return f
}

// readType reads frames until one of type typ arrives.
func readType(t *testing.T, conn *websocket.Conn, typ string) frame {
	t.Helper()
	for i := 0; i < 10; i++ {
		f := read(t, conn)
		if f.Type == typ {
			return f
		}
	}
	t.Fatalf("no %s frame received", typ)
	return frame{}
}

// roundTrip sends a ping and waits for the pong. Frames from one connection are
// handled in order, so everything sent before it has been applied.
func roundTrip(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	send(t, conn, MessageTypePing, nil)
	readType(t, conn, MessageTypePong)
}

func errorText(t *testing.T, f frame) string {
	t.Helper()
	var e dispatcher.ErrorEvent
	if err := json.Unmarshal(f.Data, &e); err != nil {
		t.Fatalf("error payload: %v", err)
	}
	return e.Error
}

func TestClient_PingPong(t *testing.T) {
	_, _, server := setupServer(t, Config{})
	conn := dial(t, server)

	send(t, conn, MessageTypePing, nil)
	if f := read(t, conn); f.Type != MessageTypePong {
		t.Errorf("got %q, want pong", f.Type)
	}
}

func TestClient_StartEchoesAndUpdates(t *testing.T) {
	_, _, server := setupServer(t, Config{})
	conn := dial(t, server)

	send(t, conn, MessageTypeStart, map[string]interface{}{
		"latitude": 6.9, "longitude": 79.8, "userName": "Nimal",
	})

	started := read(t, conn)
	if started.Type != dispatcher.EventStarted {
		t.Fatalf("first frame = %q, want location:started", started.Type)
	}
	var ev dispatcher.StartedEvent
	if err := json.Unmarshal(started.Data, &ev); err != nil {
		t.Fatalf("started payload: %v", err)
	}
	if ev.SessionID == "" || ev.Message != dispatcher.MessageSharingStarted {
		t.Errorf("started = %+v", ev)
	}

	send(t, conn, MessageTypeUpdate, map[string]interface{}{
		"sessionId": ev.SessionID, "latitude": 7.0, "longitude": 80.0,
	})
	update := readType(t, conn, dispatcher.EventUpdate)
	var up dispatcher.UpdateEvent
	if err := json.Unmarshal(update.Data, &up); err != nil {
		t.Fatalf("update payload: %v", err)
	}
	if up.SessionID != ev.SessionID {
		t.Errorf("update for %q, want %q", up.SessionID, ev.SessionID)
	}
}

func TestClient_RejectedFramesReturnOneError(t *testing.T) {
	_, _, server := setupServer(t, Config{})
	conn := dial(t, server)
	watcher := dial(t, server)

	tests := []struct {
		name  string
		raw   string
		typ   string
		data  interface{}
		wants string
	}{
		{name: "invalid json", raw: "{not json", wants: "Invalid message format"},
		{name: "unknown type", typ: "location:teleport", wants: "Unknown event type"},
		{name: "missing coordinates", typ: MessageTypeStart, data: map[string]interface{}{"latitude": 1.0}, wants: "Latitude and longitude are required"},
		{name: "no payload", typ: MessageTypeUpdate, wants: "Latitude and longitude are required"},
		{name: "update unknown session", typ: MessageTypeUpdate, data: map[string]interface{}{
			"sessionId": "missing", "latitude": 1.0, "longitude": 1.0,
		}, wants: "Location session not found or stopped"},
		{name: "emergency unknown session", typ: MessageTypeEmergency, data: map[string]interface{}{"sessionId": "missing"}, wants: "Location session not found"},
		{name: "watch without session", typ: MessageTypeWatchLocation, wants: "sessionId is required"},
		{name: "wrong payload shape", typ: MessageTypeStop, data: []int{1, 2}, wants: "Invalid payload for this event type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.raw != "" {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.raw)); err != nil {
					t.Fatalf("write: %v", err)
				}
			} else {
				send(t, conn, tt.typ, tt.data)
			}

			f := read(t, conn)
			if f.Type != dispatcher.EventError {
				t.Fatalf("got %q, want location:error", f.Type)
			}
			if got := errorText(t, f); got != tt.wants {
				t.Errorf("error = %q, want %q", got, tt.wants)
			}
		})
	}

	// The watcher never sees another connection's errors: its first frame
	// after a ping must be the pong.
	send(t, watcher, MessageTypePing, nil)
	if f := read(t, watcher); f.Type != MessageTypePong {
		t.Errorf("watcher received %q", f.Type)
	}
}

func TestClient_SafeOnMissingSessionIsSilent(t *testing.T) {
	_, _, server := setupServer(t, Config{})
	conn := dial(t, server)

	send(t, conn, MessageTypeSafe, map[string]interface{}{"sessionId": "missing"})
	send(t, conn, MessageTypePing, nil)
	if f := read(t, conn); f.Type != MessageTypePong {
		t.Errorf("safe on a missing session produced %q", f.Type)
	}
}

func TestClient_EmergencyFanOut(t *testing.T) {
	_, _, server := setupServer(t, Config{})
	publisher := dial(t, server)
	sessionWatcher := dial(t, server)
	emergencyWatcher := dial(t, server)
	bystander := dial(t, server)

	send(t, publisher, MessageTypeStart, map[string]interface{}{"latitude": 6.9, "longitude": 79.8})
	var started dispatcher.StartedEvent
	if err := json.Unmarshal(readType(t, publisher, dispatcher.EventStarted).Data, &started); err != nil {
		t.Fatalf("started payload: %v", err)
	}
	roundTrip(t, publisher)

	send(t, sessionWatcher, MessageTypeWatchLocation, map[string]interface{}{"sessionId": started.SessionID})
	roundTrip(t, sessionWatcher)
	send(t, emergencyWatcher, MessageTypeWatchEmergencies, nil)
	roundTrip(t, emergencyWatcher)

	send(t, publisher, MessageTypeEmergency, map[string]interface{}{
		"sessionId": started.SessionID, "emergencyType": "flood", "emergencyMessage": "water rising",
	})

	if f := read(t, sessionWatcher); f.Type != dispatcher.EventEmergency {
		t.Errorf("session watcher got %q, want location:emergency", f.Type)
	}
	f := read(t, emergencyWatcher)
	if f.Type != dispatcher.EventEmergencyNew {
		t.Fatalf("emergency watcher got %q, want emergency:new", f.Type)
	}
	var ev dispatcher.EmergencyEvent
	if err := json.Unmarshal(f.Data, &ev); err != nil {
		t.Fatalf("emergency payload: %v", err)
	}
	if ev.EmergencyType != "flood" || ev.EmergencyMessage != "water rising" {
		t.Errorf("emergency payload = %+v", ev)
	}

	// Exactly one event each: the next frame after a ping is the pong.
	for name, conn := range map[string]*websocket.Conn{
		"session watcher":   sessionWatcher,
		"emergency watcher": emergencyWatcher,
		"bystander":         bystander,
	} {
		send(t, conn, MessageTypePing, nil)
		if f := read(t, conn); f.Type != MessageTypePong {
			t.Errorf("%s received unexpected %q", name, f.Type)
		}
	}
}

func TestClient_DisconnectMarksOffline(t *testing.T) {
	hub, st, server := setupServer(t, Config{})
	publisher := dial(t, server)
	watcher := dial(t, server)

	send(t, publisher, MessageTypeStart, map[string]interface{}{"latitude": 6.9, "longitude": 79.8})
	var started dispatcher.StartedEvent
	if err := json.Unmarshal(readType(t, publisher, dispatcher.EventStarted).Data, &started); err != nil {
		t.Fatalf("started payload: %v", err)
	}
	send(t, watcher, MessageTypeWatchLocation, map[string]interface{}{"sessionId": started.SessionID})
	roundTrip(t, watcher)

	_ = publisher.Close()

	offline := readType(t, watcher, dispatcher.EventOffline)
	var ev dispatcher.OfflineEvent
	if err := json.Unmarshal(offline.Data, &ev); err != nil {
		t.Fatalf("offline payload: %v", err)
	}
	if ev.LastLocation.Latitude != 6.9 || ev.LastLocation.Longitude != 79.8 {
		t.Errorf("offline last location = %+v", ev.LastLocation)
	}

	waitFor(t, func() bool { return hub.GetClientCount() == 1 }, "publisher unregistered")
	stored, err := st.FindBySessionID(context.Background(), started.SessionID)
	if err != nil {
		t.Fatalf("FindBySessionID() error = %v", err)
	}
	if stored.IsOnline || !stored.IsSharing {
		t.Errorf("after disconnect online=%v sharing=%v", stored.IsOnline, stored.IsSharing)
	}
}

func TestClient_StopReleasesAndBroadcasts(t *testing.T) {
	_, _, server := setupServer(t, Config{})
	publisher := dial(t, server)
	watcher := dial(t, server)

	send(t, publisher, MessageTypeStart, map[string]interface{}{"latitude": 1.0, "longitude": 2.0})
	var started dispatcher.StartedEvent
	if err := json.Unmarshal(readType(t, publisher, dispatcher.EventStarted).Data, &started); err != nil {
		t.Fatalf("started payload: %v", err)
	}
	send(t, watcher, MessageTypeWatchLocation, map[string]interface{}{"sessionId": started.SessionID})
	roundTrip(t, watcher)

	send(t, publisher, MessageTypeStop, map[string]interface{}{"sessionId": started.SessionID})
	readType(t, watcher, dispatcher.EventStopped)

	send(t, publisher, MessageTypeUpdate, map[string]interface{}{
		"sessionId": started.SessionID, "latitude": 1.0, "longitude": 2.0,
	})
	f := readType(t, publisher, dispatcher.EventError)
	if got := errorText(t, f); got != dispatcher.ErrNotFoundOrStopped.Error() {
		t.Errorf("update after stop error = %q", got)
	}
}

func TestClient_InboundRateLimit(t *testing.T) {
	_, _, server := setupServer(t, Config{InboundRate: 0.001, InboundBurst: 1})
	conn := dial(t, server)

	send(t, conn, MessageTypePing, nil)
	send(t, conn, MessageTypePing, nil)

	if f := read(t, conn); f.Type != MessageTypePong {
		t.Fatalf("first frame = %q, want pong", f.Type)
	}
	f := read(t, conn)
	if f.Type != dispatcher.EventError || errorText(t, f) != "Rate limit exceeded" {
		t.Errorf("second frame = %q, want rate limit error", f.Type)
	}
}
