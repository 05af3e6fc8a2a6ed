// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package store

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/rescuenet/internal/models"
)

// MemoryStore keeps sessions in a map guarded by a single mutex. It is
// used in tests and single-node deployments that accept losing sessions
// on restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*models.LocationSession
	opts     Options
	closed   bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.LocationSession),
		opts:     opts,
	}
}

// FindBySessionID returns a copy of the session.
func (m *MemoryStore) FindBySessionID(_ context.Context, id string) (*models.LocationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

// Create stores a copy of s.
func (m *MemoryStore) Create(_ context.Context, s *models.LocationSession) (*models.LocationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if _, ok := m.sessions[s.SessionID]; ok {
		return nil, ErrSessionExists
	}
	stored := s.Clone()
	truncateHistory(stored, m.opts.historyLimit())
	m.sessions[s.SessionID] = stored
	return stored.Clone(), nil
}

// AppendPointAndSave applies mutate and appends point under the store lock.
func (m *MemoryStore) AppendPointAndSave(ctx context.Context, id string, point models.LocationPoint, at time.Time, mutate Mutator) (*models.LocationSession, error) {
	limit := m.opts.historyLimit()
	return m.UpdateFields(ctx, id, func(s *models.LocationSession) error {
		if mutate != nil {
			if err := mutate(s); err != nil {
				return err
			}
		}
		s.AppendPoint(point, limit, at)
		return nil
	})
}

// UpdateFields applies mutate to a working copy and replaces the stored
// session only if mutate succeeds.
func (m *MemoryStore) UpdateFields(_ context.Context, id string, mutate Mutator) (*models.LocationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	current, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	working := current.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}
	working.SessionID = id
	m.sessions[id] = working
	return working.Clone(), nil
}

// ListActive returns copies of every sharing session.
func (m *MemoryStore) ListActive(_ context.Context, emergencyOnly bool) ([]*models.LocationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	out := make([]*models.LocationSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		if matchesActive(s, emergencyOnly) {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

// DeleteExpired removes expired sessions.
func (m *MemoryStore) DeleteExpired(_ context.Context, now time.Time, policy ExpiryPolicy) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	removed := 0
	for id, s := range m.sessions {
		if policy.Expired(s, now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of sessions.
func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	return len(m.sessions), nil
}

// Ping reports ErrClosed after Close.
func (m *MemoryStore) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close discards all sessions.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.sessions = nil
	return nil
}

func matchesActive(s *models.LocationSession, emergencyOnly bool) bool {
	if !s.IsSharing {
		return false
	}
	return !emergencyOnly || s.IsEmergency
}

// truncateHistory enforces the history bound on records written directly
// through Create.
func truncateHistory(s *models.LocationSession, limit int) {
	if over := len(s.LocationHistory) - limit; over > 0 {
		s.LocationHistory = append([]models.LocationPoint(nil), s.LocationHistory[over:]...)
	}
}
