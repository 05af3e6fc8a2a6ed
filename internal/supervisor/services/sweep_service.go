// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package services

import (
	"context"
	"time"

	"github.com/tomtom215/rescuenet/internal/logging"
	"github.com/tomtom215/rescuenet/internal/metrics"
	"github.com/tomtom215/rescuenet/internal/store"
)

// SessionSweeper is the part of store.Store the sweep needs.
type SessionSweeper interface {
	DeleteExpired(ctx context.Context, now time.Time, policy store.ExpiryPolicy) (int, error)
	Count(ctx context.Context) (int, error)
}

// valueLogCollector is implemented by *store.BadgerStore.
type valueLogCollector interface {
	RunValueLogGC(discardRatio float64) error
}

// gcDiscardRatio is the fraction of a value log file that must be stale
// before badger rewrites it.
const gcDiscardRatio = 0.5

// ExpirySweepService deletes sessions whose TTL has lapsed.
//
// Each tick runs one DeleteExpired pass with the configured policy, records
// the outcome, and when anything was removed from a badger store, runs one
// round of value log GC.
type ExpirySweepService struct {
	store    SessionSweeper
	policy   store.ExpiryPolicy
	interval time.Duration
	now      func() time.Time
	name     string
}

// NewExpirySweepService creates a sweep over st. A non-positive interval
// means five minutes.
func NewExpirySweepService(st SessionSweeper, policy store.ExpiryPolicy, interval time.Duration) *ExpirySweepService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ExpirySweepService{
		store:    st,
		policy:   policy,
		interval: interval,
		now:      time.Now,
		name:     "expiry-sweep",
	}
}

// Serve implements suture.Service.
func (s *ExpirySweepService) Serve(ctx context.Context) error {
	if s.policy.TTL <= 0 {
		logging.Info().Msg("Session expiry disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	logging.Info().
		Dur("interval", s.interval).
		Dur("ttl", s.policy.TTL).
		Str("mode", string(s.policy.Mode)).
		Bool("retain_emergencies", s.policy.RetainEmergencies).
		Msg("Expiry sweep started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Expiry sweep stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one expiry pass and returns the number of sessions removed.
// Failures are logged; the next tick tries again.
func (s *ExpirySweepService) Sweep(ctx context.Context) int {
	start := time.Now()

	removed, err := s.store.DeleteExpired(ctx, s.now(), s.policy)
	if err != nil {
		logging.Error().Err(err).Int("removed", removed).Msg("Expiry sweep failed")
	}

	remaining, err := s.store.Count(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Expiry sweep could not count sessions")
		remaining = -1
	}

	if removed > 0 {
		if gc, ok := s.store.(valueLogCollector); ok {
			if err := gc.RunValueLogGC(gcDiscardRatio); err != nil {
				logging.Warn().Err(err).Msg("Value log GC failed")
			}
		}
	}

	duration := time.Since(start)
	metrics.RecordSweep(removed, remaining, duration)

	if removed > 0 {
		logging.Info().
			Int("removed", removed).
			Int("remaining", remaining).
			Dur("duration", duration).
			Msg("Expired sessions removed")
	}
	return removed
}

// String implements fmt.Stringer for suture's event log.
func (s *ExpirySweepService) String() string {
	return s.name
}
