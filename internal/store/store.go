// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

// Package store persists location sessions.
//
// Every mutating operation is a single atomic load-mutate-save against one
// session: the in-memory store holds a mutex around the whole sequence and
// the BadgerDB store runs it inside one read-write transaction, retrying on
// transaction conflicts. Callers express their change as a Mutator so that
// preconditions (for example "session is still sharing") are checked
// against the same state that is written back.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/rescuenet/internal/models"
)

var (
	// ErrSessionNotFound is returned when no session has the requested id.
	ErrSessionNotFound = errors.New("location session not found")

	// ErrSessionExists is returned by Create when the id is already taken.
	ErrSessionExists = errors.New("location session already exists")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("session store closed")
)

// Mutator changes a session in place. Returning an error aborts the
// operation without writing anything; the error is returned unchanged to
// the caller of the store method.
type Mutator func(s *models.LocationSession) error

// Store is the persistence contract consumed by the dispatcher.
//
// Sessions returned by a Store are copies; mutating them has no effect on
// stored state.
type Store interface {
	// FindBySessionID returns the session or ErrSessionNotFound.
	FindBySessionID(ctx context.Context, id string) (*models.LocationSession, error)

	// Create stores a new session. Returns ErrSessionExists if the id is taken.
	Create(ctx context.Context, s *models.LocationSession) (*models.LocationSession, error)

	// AppendPointAndSave runs mutate (which may be nil) and then appends
	// point to the session history with FIFO truncation, marking the
	// session online with activity and signal timestamps set to at.
	AppendPointAndSave(ctx context.Context, id string, point models.LocationPoint, at time.Time, mutate Mutator) (*models.LocationSession, error)

	// UpdateFields applies mutate to the stored session and saves it.
	UpdateFields(ctx context.Context, id string, mutate Mutator) (*models.LocationSession, error)

	// ListActive returns every session that is sharing, optionally only
	// those in emergency. Order is unspecified.
	ListActive(ctx context.Context, emergencyOnly bool) ([]*models.LocationSession, error)

	// DeleteExpired removes every session the policy reports as expired at
	// now and returns the number removed.
	DeleteExpired(ctx context.Context, now time.Time, policy ExpiryPolicy) (int, error)

	// Count returns the number of stored sessions.
	Count(ctx context.Context) (int, error)

	// Ping reports whether the store is usable.
	Ping(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}

// Options are shared by every Store implementation.
type Options struct {
	// HistoryLimit bounds the number of points kept per session.
	HistoryLimit int
}

func (o Options) historyLimit() int {
	if o.HistoryLimit <= 0 {
		return models.DefaultHistoryLimit
	}
	return o.HistoryLimit
}
