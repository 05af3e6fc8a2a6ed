// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/rescuenet/internal/metrics"
	"github.com/tomtom215/rescuenet/internal/models"
	"github.com/tomtom215/rescuenet/internal/store"
)

var sweepEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, st store.Store, id string, lastActive time.Time, online, emergency bool) {
	t.Helper()
	_, err := st.Create(context.Background(), &models.LocationSession{
		SessionID:        id,
		CurrentLocation:  models.LocationPoint{Latitude: 1, Longitude: 1, Timestamp: lastActive},
		IsSharing:        true,
		IsOnline:         online,
		IsEmergency:      emergency,
		SharingStartedAt: lastActive,
		LastSignalAt:     lastActive,
		LastActiveAt:     lastActive,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestExpirySweepService_Sweep(t *testing.T) {
	tests := []struct {
		name        string
		policy      store.ExpiryPolicy
		wantRemoved int
	}{
		{"inactivity", store.ExpiryPolicy{TTL: 24 * time.Hour, Mode: store.ExpireOnInactivity}, 3},
		{"online gated", store.ExpiryPolicy{TTL: 24 * time.Hour, Mode: store.ExpireOnlineGated, LivenessWindow: time.Minute}, 3},
		{"retain emergencies", store.ExpiryPolicy{TTL: 24 * time.Hour, Mode: store.ExpireOnInactivity, RetainEmergencies: true}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemoryStore(store.Options{})
			stale := sweepEpoch.Add(-25 * time.Hour)
			seed(t, st, "fresh", sweepEpoch.Add(-time.Hour), true, false)
			seed(t, st, "stale-offline", stale, false, false)
			seed(t, st, "stale-online", stale, true, false)
			seed(t, st, "stale-emergency", stale, false, true)

			svc := NewExpirySweepService(st, tt.policy, time.Minute)
			svc.now = func() time.Time { return sweepEpoch }

			before := testutil.ToFloat64(metrics.SessionsExpired)
			if got := svc.Sweep(context.Background()); got != tt.wantRemoved {
				t.Errorf("Sweep() = %d, want %d", got, tt.wantRemoved)
			}
			if d := testutil.ToFloat64(metrics.SessionsExpired) - before; int(d) != tt.wantRemoved {
				t.Errorf("expired counter grew by %v, want %d", d, tt.wantRemoved)
			}

			if _, err := st.FindBySessionID(context.Background(), "fresh"); err != nil {
				t.Errorf("fresh session removed: %v", err)
			}
			count, _ := st.Count(context.Background())
			if count != 4-tt.wantRemoved {
				t.Errorf("remaining = %d, want %d", count, 4-tt.wantRemoved)
			}
		})
	}
}

func TestExpirySweepService_BadgerGC(t *testing.T) {
	dir, err := os.MkdirTemp("", "rescuenet-sweep-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	st, err := store.New(store.Config{
		Driver: store.DriverBadger,
		Badger: store.BadgerConfig{Path: dir},
	})
	if err != nil {
		t.Fatalf("open badger store: %v", err)
	}
	defer st.Close()

	seed(t, st, "stale", sweepEpoch.Add(-48*time.Hour), false, false)

	svc := NewExpirySweepService(st, store.ExpiryPolicy{TTL: time.Hour}, time.Minute)
	svc.now = func() time.Time { return sweepEpoch }

	if got := svc.Sweep(context.Background()); got != 1 {
		t.Errorf("Sweep() = %d, want 1", got)
	}
	if _, err := st.FindBySessionID(context.Background(), "stale"); !errors.Is(err, store.ErrSessionNotFound) {
		t.Errorf("stale session still present: %v", err)
	}
}

type failingSweeper struct{}

func (failingSweeper) DeleteExpired(context.Context, time.Time, store.ExpiryPolicy) (int, error) {
	return 0, errors.New("disk full")
}

func (failingSweeper) Count(context.Context) (int, error) {
	return 0, errors.New("disk full")
}

func TestExpirySweepService_FailureIsNotFatal(t *testing.T) {
	svc := NewExpirySweepService(failingSweeper{}, store.ExpiryPolicy{TTL: time.Hour}, 0)
	if svc.interval != 5*time.Minute {
		t.Errorf("default interval = %v", svc.interval)
	}
	if got := svc.Sweep(context.Background()); got != 0 {
		t.Errorf("Sweep() = %d, want 0", got)
	}
}

func TestExpirySweepService_Serve(t *testing.T) {
	t.Run("ticks until canceled", func(t *testing.T) {
		st := store.NewMemoryStore(store.Options{})
		seed(t, st, "stale", time.Now().Add(-2*time.Hour), false, false)

		svc := NewExpirySweepService(st, store.ExpiryPolicy{TTL: time.Hour}, 10*time.Millisecond)
		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()

		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if n, _ := st.Count(context.Background()); n == 0 {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		cancel()

		if err := <-errCh; !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want canceled", err)
		}
		if n, _ := st.Count(context.Background()); n != 0 {
			t.Errorf("stale session not swept, count = %d", n)
		}
	})

	t.Run("disabled ttl idles", func(t *testing.T) {
		svc := NewExpirySweepService(failingSweeper{}, store.ExpiryPolicy{}, time.Millisecond)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Serve() = %v", err)
		}
	})
}
