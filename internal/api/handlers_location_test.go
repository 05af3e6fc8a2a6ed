// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/rescuenet/internal/config"
	"github.com/tomtom215/rescuenet/internal/dispatcher"
	"github.com/tomtom215/rescuenet/internal/logging"
	"github.com/tomtom215/rescuenet/internal/models"
	"github.com/tomtom215/rescuenet/internal/pubsub"
	"github.com/tomtom215/rescuenet/internal/store"
	ws "github.com/tomtom215/rescuenet/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	srv   *httptest.Server
	d     *dispatcher.Dispatcher
	st    store.Store
	hub   *ws.Hub
	clock *fakeClock
}

// testConfig returns a validated default config with rate limiting off.
func testConfig() *config.Config {
	return &config.Config{
		Store:     config.StoreConfig{Driver: store.DriverMemory},
		WebSocket: config.WebSocketConfig{AllowEmptyOrigin: true},
		Security: config.SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitDisabled: true,
		},
	}
}

func newTestEnvWithStore(t *testing.T, st store.Store, cfg *config.Config) *testEnv {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
	d := dispatcher.New(st, pubsub.NewRegistry(nil), dispatcher.Config{Clock: clock.Now})
	hub := ws.NewHub(d, ws.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()

	handler := NewHandler(d, st, hub, nil, cfg)
	srv := httptest.NewServer(NewRouter(handler, cfg).SetupChi())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
		_ = st.Close()
	})
	return &testEnv{srv: srv, d: d, st: st, hub: hub, clock: clock}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, store.NewMemoryStore(store.Options{}), testConfig())
}

type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("%s %s: decode envelope: %v", method, path, err)
	}
	return resp.StatusCode, env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

func (e *testEnv) start(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	status, env := e.do(t, http.MethodPost, "/api/location/start", body)
	if status != http.StatusCreated {
		t.Fatalf("start status = %d, error = %+v", status, env.Error)
	}
	var resp models.StartSessionResponse
	decodeData(t, env, &resp)
	return resp.SessionID
}

func TestStartLocation(t *testing.T) {
	e := newTestEnv(t)

	status, env := e.do(t, http.MethodPost, "/api/location/start", map[string]interface{}{
		"latitude": 6.9271, "longitude": 79.8612, "userName": "Nimal", "helpRequestId": "hr-1",
		"isEmergency": true, "emergencyType": "flood",
	})
	if status != http.StatusCreated || env.Status != "success" {
		t.Fatalf("status = %d/%s", status, env.Status)
	}

	var resp models.StartSessionResponse
	decodeData(t, env, &resp)
	if resp.SessionID == "" || resp.Location == nil {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Message != dispatcher.MessageEmergencyStarted {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.Location.HelpRequestID != "hr-1" || !resp.Location.IsEmergency || resp.Location.EmergencyType != models.EmergencyFlood {
		t.Errorf("location = %+v", resp.Location)
	}

	stored, err := e.st.FindBySessionID(context.Background(), resp.SessionID)
	if err != nil {
		t.Fatalf("FindBySessionID() error = %v", err)
	}
	if !stored.IsSharing || stored.CurrentLocation.Latitude != 6.9271 {
		t.Errorf("stored = %+v", stored)
	}
}

func TestStartLocation_Rejections(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing coordinates", map[string]interface{}{"userName": "x"}},
		{"latitude out of range", map[string]interface{}{"latitude": 91, "longitude": 0}},
		{"unknown emergency type", map[string]interface{}{"latitude": 1, "longitude": 1, "emergencyType": "meteor"}},
		{"malformed json", "{not json"},
		{"empty body", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := e.do(t, http.MethodPost, "/api/location/start", tt.body)
			if status != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", status)
			}
			if env.Error == nil || env.Error.Code != ErrCodeValidation {
				t.Errorf("error = %+v", env.Error)
			}
		})
	}

	if n, _ := e.st.Count(context.Background()); n != 0 {
		t.Errorf("rejected starts stored %d sessions", n)
	}
}

func TestUpdateAndStop(t *testing.T) {
	e := newTestEnv(t)
	id := e.start(t, map[string]interface{}{"latitude": 6.9, "longitude": 79.8})

	status, env := e.do(t, http.MethodPut, "/api/location/"+id, map[string]interface{}{"latitude": 7.0, "longitude": 80.0})
	if status != http.StatusOK {
		t.Fatalf("update status = %d, error = %+v", status, env.Error)
	}
	var upd models.UpdateLocationResponse
	decodeData(t, env, &upd)
	if upd.CurrentLocation.Latitude != 7.0 {
		t.Errorf("currentLocation = %+v", upd.CurrentLocation)
	}

	status, env = e.do(t, http.MethodPut, "/api/location/"+id+"/stop", nil)
	if status != http.StatusOK {
		t.Fatalf("stop status = %d", status)
	}
	var stop models.StopSessionResponse
	decodeData(t, env, &stop)
	if stop.LastLocation.Latitude != 7.0 || stop.Message != messageStopped {
		t.Errorf("stop = %+v", stop)
	}

	// Updates after stop are rejected.
	status, env = e.do(t, http.MethodPut, "/api/location/"+id, map[string]interface{}{"latitude": 8.0, "longitude": 81.0})
	if status != http.StatusNotFound || env.Error.Message != dispatcher.ErrNotFoundOrStopped.Error() {
		t.Errorf("update after stop = %d %+v", status, env.Error)
	}
}

func TestNotFound(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodPut, "/api/location/missing", map[string]interface{}{"latitude": 1, "longitude": 1}},
		{http.MethodPut, "/api/location/missing/stop", nil},
		{http.MethodPut, "/api/location/missing/emergency", nil},
		{http.MethodPut, "/api/location/missing/safe", nil},
		{http.MethodGet, "/api/location/missing", nil},
		{http.MethodGet, "/api/location/missing/history", nil},
		{http.MethodGet, "/api/nothing-here", nil},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			status, env := e.do(t, tt.method, tt.path, tt.body)
			if status != http.StatusNotFound {
				t.Fatalf("status = %d, want 404", status)
			}
			if env.Error == nil || env.Error.Code != ErrCodeNotFound {
				t.Errorf("error = %+v", env.Error)
			}
		})
	}
}

func TestGetLocation_Liveness(t *testing.T) {
	e := newTestEnv(t)
	id := e.start(t, map[string]interface{}{"latitude": 6.9, "longitude": 79.8})

	e.clock.Advance(5 * time.Second)
	status, env := e.do(t, http.MethodGet, "/api/location/"+id, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var live models.SessionStatusResponse
	decodeData(t, env, &live)
	if !live.IsLive || live.SignalStatus != models.SignalOnline || live.Message != messageLiveLocation {
		t.Errorf("at 5s = %+v", live)
	}

	e.clock.Advance(26 * time.Second)
	_, env = e.do(t, http.MethodGet, "/api/location/"+id, nil)
	var stale models.SessionStatusResponse
	decodeData(t, env, &stale)
	if stale.IsLive || stale.SignalStatus != models.SignalOffline || stale.Message != messageLastKnown {
		t.Errorf("at 31s = %+v", stale)
	}
	if stale.LastKnownLocation.Latitude != 6.9 {
		t.Errorf("lastKnownLocation = %+v", stale.LastKnownLocation)
	}

	stored, _ := e.st.FindBySessionID(context.Background(), id)
	if stored.IsOnline {
		t.Error("stale read should repair the cached online flag")
	}
}

func TestGetHistory(t *testing.T) {
	e := newTestEnv(t)
	id := e.start(t, map[string]interface{}{"latitude": 0, "longitude": 0})
	for i := 1; i <= 60; i++ {
		status, _ := e.do(t, http.MethodPut, "/api/location/"+id, map[string]interface{}{"latitude": float64(i) / 100, "longitude": 0})
		if status != http.StatusOK {
			t.Fatalf("update %d status = %d", i, status)
		}
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 50},
		{"?limit=5", 5},
		{"?limit=1000", 61},
		{"?limit=abc", 50},
	}
	for _, tt := range tests {
		t.Run("limit"+tt.query, func(t *testing.T) {
			_, env := e.do(t, http.MethodGet, "/api/location/"+id+"/history"+tt.query, nil)
			var hist models.HistoryResponse
			decodeData(t, env, &hist)
			if len(hist.History) != tt.want {
				t.Errorf("len(history) = %d, want %d", len(hist.History), tt.want)
			}
			if hist.TotalPoints != 61 {
				t.Errorf("totalPoints = %d, want 61", hist.TotalPoints)
			}
			if last := hist.History[len(hist.History)-1]; last.Latitude != 0.6 {
				t.Errorf("last point = %+v, want most recent", last)
			}
		})
	}
}

func TestGetActive(t *testing.T) {
	e := newTestEnv(t)
	calm := e.start(t, map[string]interface{}{"latitude": 1, "longitude": 1})
	e.clock.Advance(time.Second)
	urgent := e.start(t, map[string]interface{}{"latitude": 2, "longitude": 2, "isEmergency": true})
	e.clock.Advance(time.Second)
	stopped := e.start(t, map[string]interface{}{"latitude": 3, "longitude": 3})
	e.do(t, http.MethodPut, "/api/location/"+stopped+"/stop", nil)

	_, env := e.do(t, http.MethodGet, "/api/location/active", nil)
	var all models.ActiveSessionsResponse
	decodeData(t, env, &all)
	if all.Count != 2 || all.Sessions[0].SessionID != urgent || all.Sessions[1].SessionID != calm {
		t.Fatalf("active = %+v", all)
	}
	for _, s := range all.Sessions {
		if len(s.LocationHistory) != 0 {
			t.Error("active listing should omit history")
		}
	}

	_, env = e.do(t, http.MethodGet, "/api/location/active?emergencyOnly=true", nil)
	var emergencies models.ActiveSessionsResponse
	decodeData(t, env, &emergencies)
	if emergencies.Count != 1 || emergencies.Sessions[0].SessionID != urgent {
		t.Errorf("emergency-only = %+v", emergencies)
	}
}

func TestEmergencyAndSafe(t *testing.T) {
	e := newTestEnv(t)
	id := e.start(t, map[string]interface{}{"latitude": 1, "longitude": 1})

	status, env := e.do(t, http.MethodPut, "/api/location/"+id+"/emergency", nil)
	if status != http.StatusOK {
		t.Fatalf("emergency status = %d %+v", status, env.Error)
	}
	var raised models.SessionResponse
	decodeData(t, env, &raised)
	if !raised.Location.IsEmergency || raised.Location.EmergencyType != models.EmergencyOther {
		t.Errorf("raised = %+v", raised.Location)
	}

	status, env = e.do(t, http.MethodPut, "/api/location/"+id+"/emergency",
		map[string]interface{}{"emergencyType": "medical", "emergencyMessage": "injured"})
	if status != http.StatusOK {
		t.Fatalf("typed emergency status = %d", status)
	}
	decodeData(t, env, &raised)
	if raised.Location.EmergencyType != models.EmergencyMedical || raised.Location.EmergencyMessage != "injured" {
		t.Errorf("typed = %+v", raised.Location)
	}

	status, env = e.do(t, http.MethodPut, "/api/location/"+id+"/safe", nil)
	if status != http.StatusOK {
		t.Fatalf("safe status = %d", status)
	}
	var safe models.SessionResponse
	decodeData(t, env, &safe)
	if safe.Location.IsEmergency || safe.Message != messageMarkedSafe {
		t.Errorf("safe = %+v", safe)
	}
}

// brokenStore fails every read.
type brokenStore struct {
	store.Store
}

var errBroken = errors.New("disk on fire")

func (brokenStore) FindBySessionID(context.Context, string) (*models.LocationSession, error) {
	return nil, errBroken
}

func (brokenStore) Ping(context.Context) error { return errBroken }

func TestInternalErrorIsGeneric(t *testing.T) {
	e := newTestEnvWithStore(t, brokenStore{Store: store.NewMemoryStore(store.Options{})}, testConfig())

	status, env := e.do(t, http.MethodGet, "/api/location/any", nil)
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", status)
	}
	if env.Error == nil || env.Error.Code != ErrCodeInternal {
		t.Fatalf("error = %+v", env.Error)
	}
	if bytes.Contains([]byte(env.Error.Message), []byte("disk")) {
		t.Errorf("internal cause leaked to client: %q", env.Error.Message)
	}
}
