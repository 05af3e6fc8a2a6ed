// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

// Package dispatcher is the single authority that turns inbound location
// events into store mutations and outbound fan-out.
//
// Both transports (the WebSocket hub and the REST handlers) call the same
// Dispatcher methods. Every state transition follows the same shape:
//
//  1. validate the payload (ValidationError, nothing written)
//  2. apply the change as one atomic store operation
//  3. publish derived events to the session topic and, for emergencies,
//     to the global emergency topic
//
// If step 2 fails nothing is published, so an operation is either persisted
// and fanned out or neither.
package dispatcher

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/rescuenet/internal/logging"
	"github.com/tomtom215/rescuenet/internal/metrics"
	"github.com/tomtom215/rescuenet/internal/models"
	"github.com/tomtom215/rescuenet/internal/pubsub"
	"github.com/tomtom215/rescuenet/internal/store"
	"github.com/tomtom215/rescuenet/internal/validation"
)

// Mirror receives a copy of every event published to the emergency topic.
// Enqueue must not block.
type Mirror interface {
	Enqueue(e pubsub.Event) bool
}

// Config configures a Dispatcher. Zero values fall back to defaults.
type Config struct {
	// LivenessWindow is how long after the last signal a session is online.
	LivenessWindow time.Duration

	// HistoryLimit is the largest history page that may be requested.
	HistoryLimit int

	// HistoryDefaultLimit is used when a history request names no limit.
	HistoryDefaultLimit int

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// NewID generates session ids. Defaults to random UUIDs.
	NewID func() string

	// Mirror optionally receives emergency-topic events.
	Mirror Mirror
}

// Dispatcher implements the location session state machine.
type Dispatcher struct {
	store    store.Store
	registry *pubsub.Registry
	conns    *ConnSessionMap

	liveness       time.Duration
	historyLimit   int
	historyDefault int
	now            func() time.Time
	newID          func() string
	mirror         Mirror
}

// New creates a Dispatcher over st and reg.
func New(st store.Store, reg *pubsub.Registry, cfg Config) *Dispatcher {
	d := &Dispatcher{
		store:          st,
		registry:       reg,
		conns:          NewConnSessionMap(),
		liveness:       cfg.LivenessWindow,
		historyLimit:   cfg.HistoryLimit,
		historyDefault: cfg.HistoryDefaultLimit,
		now:            cfg.Clock,
		newID:          cfg.NewID,
		mirror:         cfg.Mirror,
	}
	if d.liveness <= 0 {
		d.liveness = models.DefaultLivenessWindow
	}
	if d.historyLimit <= 0 {
		d.historyLimit = models.DefaultHistoryLimit
	}
	if d.historyDefault <= 0 || d.historyDefault > d.historyLimit {
		d.historyDefault = min(50, d.historyLimit)
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.newID == nil {
		d.newID = func() string { return uuid.New().String() }
	}
	return d
}

// Connections returns the connection to session map. Its size is the number
// of sessions currently published over a live stream.
func (d *Dispatcher) Connections() *ConnSessionMap {
	return d.conns
}

// Registry returns the topic registry events are published to.
func (d *Dispatcher) Registry() *pubsub.Registry {
	return d.registry
}

// StartResult describes the outcome of Start.
type StartResult struct {
	Session *models.LocationSession
	Resumed bool
	Message string
}

// Start creates a session, or resumes the one named by req.SessionID, and
// appends the reported point. When conn is non-nil it is mapped to the
// session, subscribed to the session topic and sent location:started.
func (d *Dispatcher) Start(ctx context.Context, conn pubsub.Subscriber, req *models.StartRequest) (res *StartResult, err error) {
	defer d.observe("start", d.now(), &err)

	if ve := validation.ValidateStruct(req); ve != nil {
		return nil, newValidationError(ve)
	}

	now := d.now()
	point := req.ToPoint(now)

	var session *models.LocationSession
	resumed := false

	if req.SessionID != "" {
		session, err = d.store.AppendPointAndSave(ctx, req.SessionID, point, now, resumeMutator(req, now))
		switch {
		case err == nil:
			resumed = true
		case !errors.Is(err, store.ErrSessionNotFound):
			return nil, &InternalError{Op: "start location sharing", Err: err}
		}
	}

	if session == nil {
		id := req.SessionID
		if id == "" {
			id = d.newID()
		}
		session, err = d.store.Create(ctx, newSession(id, req, point, now))
		if errors.Is(err, store.ErrSessionExists) {
			// Lost a race with a concurrent start for the same id.
			session, err = d.store.AppendPointAndSave(ctx, id, point, now, resumeMutator(req, now))
			resumed = true
		}
		if err != nil {
			return nil, &InternalError{Op: "start location sharing", Err: err}
		}
	}

	res = &StartResult{Session: session, Resumed: resumed, Message: MessageSharingStarted}
	if req.IsEmergency {
		res.Message = MessageEmergencyStarted
	}

	topic := pubsub.SessionTopic(session.SessionID)
	if conn != nil {
		d.conns.Set(conn.SubscriberID(), session.SessionID)
		d.registry.Subscribe(conn, topic)
		conn.Deliver(pubsub.Event{Type: EventStarted, Data: StartedEvent{
			SessionID: session.SessionID,
			Session:   session,
			Resumed:   resumed,
			Message:   res.Message,
		}})
	}

	d.publish(topic, EventUpdate, newUpdateEvent(session, now))
	if req.IsEmergency {
		d.publish(pubsub.EmergencyTopic, EventEmergencyNew, newEmergencyEvent(session, now))
	}

	logging.Ctx(ctx).Info().
		Str("session_id", session.SessionID).
		Bool("resumed", resumed).
		Bool("emergency", session.IsEmergency).
		Msg("Location sharing started")

	return res, nil
}

func newSession(id string, req *models.StartRequest, point models.LocationPoint, now time.Time) *models.LocationSession {
	s := &models.LocationSession{
		SessionID:        id,
		UserID:           req.UserID,
		UserName:         req.UserName,
		ContactNumber:    req.ContactNumber,
		HelpRequestID:    req.HelpRequestID,
		CurrentLocation:  point,
		LocationHistory:  []models.LocationPoint{point},
		IsSharing:        true,
		IsOnline:         true,
		LastSignalAt:     now,
		SharingStartedAt: now,
		LastActiveAt:     now,
	}
	if req.IsEmergency {
		s.IsEmergency = true
		s.EmergencyType = emergencyTypeOrDefault(req.EmergencyType)
		s.EmergencyMessage = req.EmergencyMessage
	}
	return s
}

// resumeMutator re-enables sharing on an existing session. Metadata is only
// overwritten with non-empty values and emergency state is only changed
// when the request raises one.
func resumeMutator(req *models.StartRequest, now time.Time) store.Mutator {
	return func(s *models.LocationSession) error {
		if !s.IsSharing {
			s.SharingStartedAt = now
		}
		s.IsSharing = true
		if req.UserID != "" {
			s.UserID = req.UserID
		}
		if req.UserName != "" {
			s.UserName = req.UserName
		}
		if req.ContactNumber != "" {
			s.ContactNumber = req.ContactNumber
		}
		if req.HelpRequestID != "" {
			s.HelpRequestID = req.HelpRequestID
		}
		if req.IsEmergency {
			s.IsEmergency = true
			s.EmergencyType = emergencyTypeOrDefault(req.EmergencyType)
			if req.EmergencyMessage != "" {
				s.EmergencyMessage = req.EmergencyMessage
			}
		}
		return nil
	}
}

// Update appends a position to a sharing session and publishes it.
func (d *Dispatcher) Update(ctx context.Context, req *models.UpdateRequest) (session *models.LocationSession, err error) {
	defer d.observe("update", d.now(), &err)

	if ve := validation.ValidateStruct(req); ve != nil {
		return nil, newValidationError(ve)
	}

	now := d.now()
	point := req.ToPoint(now)

	session, err = d.store.AppendPointAndSave(ctx, req.SessionID, point, now, func(s *models.LocationSession) error {
		if !s.IsSharing {
			return errStopped
		}
		return nil
	})
	if errors.Is(err, store.ErrSessionNotFound) || errors.Is(err, errStopped) {
		return nil, ErrNotFoundOrStopped
	}
	if err != nil {
		return nil, &InternalError{Op: "update location", Err: err}
	}

	d.publish(pubsub.SessionTopic(session.SessionID), EventUpdate, newUpdateEvent(session, now))

	logging.Ctx(ctx).Debug().
		Str("session_id", session.SessionID).
		Float64("latitude", point.Latitude).
		Float64("longitude", point.Longitude).
		Msg("Location updated")

	return session, nil
}

// SetEmergency flags a session as in emergency. Repeating the call with the
// same values is harmless and republishes the emergency.
func (d *Dispatcher) SetEmergency(ctx context.Context, req *models.EmergencyRequest) (session *models.LocationSession, err error) {
	defer d.observe("emergency", d.now(), &err)

	if ve := validation.ValidateStruct(req); ve != nil {
		return nil, newValidationError(ve)
	}

	emergencyType := emergencyTypeOrDefault(req.EmergencyType)
	session, err = d.store.UpdateFields(ctx, req.SessionID, func(s *models.LocationSession) error {
		s.IsEmergency = true
		s.EmergencyType = emergencyType
		s.EmergencyMessage = req.EmergencyMessage
		return nil
	})
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, &InternalError{Op: "activate emergency mode", Err: err}
	}

	now := d.now()
	event := newEmergencyEvent(session, now)
	d.publish(pubsub.SessionTopic(session.SessionID), EventEmergency, event)
	d.publish(pubsub.EmergencyTopic, EventEmergencyNew, event)

	logging.Ctx(ctx).Warn().
		Str("session_id", session.SessionID).
		Str("emergency_type", string(session.EmergencyType)).
		Msg("Emergency mode activated")

	return session, nil
}

// MarkSafe clears the emergency flag. It always publishes location:safe and
// emergency:resolved for an existing session, even one that was not in
// emergency. A missing session yields (nil, nil) and publishes nothing.
func (d *Dispatcher) MarkSafe(ctx context.Context, sessionID string) (session *models.LocationSession, err error) {
	defer d.observe("safe", d.now(), &err)

	if ve := validation.ValidateStruct(&models.SessionRequest{SessionID: sessionID}); ve != nil {
		return nil, newValidationError(ve)
	}

	session, err = d.store.UpdateFields(ctx, sessionID, func(s *models.LocationSession) error {
		s.IsEmergency = false
		return nil
	})
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &InternalError{Op: "mark as safe", Err: err}
	}

	d.publish(pubsub.SessionTopic(sessionID), EventSafe, SafeEvent{SessionID: sessionID, Timestamp: d.now()})
	d.publish(pubsub.EmergencyTopic, EventEmergencyResolved, ResolvedEvent{SessionID: sessionID})

	logging.Ctx(ctx).Info().Str("session_id", sessionID).Msg("Marked as safe")
	return session, nil
}

// Stop ends sharing. When conn is non-nil it is unsubscribed from the
// session topic and unmapped, including when the session no longer exists.
func (d *Dispatcher) Stop(ctx context.Context, conn pubsub.Subscriber, sessionID string) (session *models.LocationSession, err error) {
	defer d.observe("stop", d.now(), &err)

	if ve := validation.ValidateStruct(&models.SessionRequest{SessionID: sessionID}); ve != nil {
		return nil, newValidationError(ve)
	}

	topic := pubsub.SessionTopic(sessionID)
	release := func() {
		if conn == nil {
			return
		}
		d.registry.Unsubscribe(conn, topic)
		d.conns.RemoveIf(conn.SubscriberID(), sessionID)
	}

	session, err = d.store.UpdateFields(ctx, sessionID, func(s *models.LocationSession) error {
		s.IsSharing = false
		s.IsOnline = false
		return nil
	})
	if errors.Is(err, store.ErrSessionNotFound) {
		release()
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, &InternalError{Op: "stop location sharing", Err: err}
	}

	d.publish(topic, EventStopped, StoppedEvent{
		SessionID:    sessionID,
		LastLocation: session.CurrentLocation,
		IsEmergency:  session.IsEmergency,
		Timestamp:    d.now(),
	})
	release()

	logging.Ctx(ctx).Info().Str("session_id", sessionID).Msg("Location sharing stopped")
	return session, nil
}

// OnDisconnect marks the session published by conn as offline without
// ending sharing. Failures are logged and swallowed. Calling it again for
// the same connection does nothing.
func (d *Dispatcher) OnDisconnect(ctx context.Context, conn pubsub.Subscriber) {
	sessionID, ok := d.conns.Take(conn.SubscriberID())
	if !ok {
		return
	}

	var err error
	defer d.observe("disconnect", d.now(), &err)

	session, err := d.store.UpdateFields(ctx, sessionID, func(s *models.LocationSession) error {
		s.IsOnline = false
		return nil
	})
	if errors.Is(err, store.ErrSessionNotFound) {
		logging.Ctx(ctx).Debug().Str("session_id", sessionID).Msg("Disconnected session no longer exists")
		err = nil
		return
	}
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("session_id", sessionID).Msg("Failed to mark disconnected session offline")
		return
	}

	d.publish(pubsub.SessionTopic(sessionID), EventOffline, OfflineEvent{
		SessionID:    sessionID,
		LastLocation: session.CurrentLocation,
		LastSignalAt: session.LastSignalAt,
		IsEmergency:  session.IsEmergency,
	})

	logging.Ctx(ctx).Info().Str("session_id", sessionID).Msg("Publishing connection lost, session offline")
}

// Liveness is the result of a liveness read.
type Liveness struct {
	Session *models.LocationSession
	// Online is true when the last signal is within the liveness window.
	Online bool
	// Live is Online and still sharing.
	Live bool
}

// GetLiveness reads a session and recomputes its online flag. When the
// cached flag disagrees it is corrected in the store before returning.
func (d *Dispatcher) GetLiveness(ctx context.Context, sessionID string) (live *Liveness, err error) {
	defer d.observe("liveness", d.now(), &err)

	session, err := d.store.FindBySessionID(ctx, sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, &InternalError{Op: "get location", Err: err}
	}

	now := d.now()
	online := session.OnlineAt(now, d.liveness)
	if session.IsOnline != online {
		repaired, uerr := d.store.UpdateFields(ctx, sessionID, func(s *models.LocationSession) error {
			s.IsOnline = s.OnlineAt(now, d.liveness)
			return nil
		})
		switch {
		case errors.Is(uerr, store.ErrSessionNotFound):
			return nil, ErrSessionNotFound
		case uerr != nil:
			return nil, &InternalError{Op: "get location", Err: uerr}
		}
		session = repaired
		online = repaired.IsOnline
		logging.Ctx(ctx).Debug().Str("session_id", sessionID).Bool("online", online).Msg("Repaired cached online flag")
	}

	return &Liveness{Session: session, Online: online, Live: online && session.IsSharing}, nil
}

// History returns up to limit of the most recent points. A non-positive
// limit selects the default; larger limits are clamped.
func (d *Dispatcher) History(ctx context.Context, sessionID string, limit int) (resp *models.HistoryResponse, err error) {
	defer d.observe("history", d.now(), &err)

	session, err := d.store.FindBySessionID(ctx, sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, &InternalError{Op: "get location history", Err: err}
	}

	return &models.HistoryResponse{
		SessionID:    sessionID,
		History:      session.RecentHistory(d.clampHistory(limit)),
		TotalPoints:  len(session.LocationHistory),
		StartedAt:    session.SharingStartedAt,
		LastActiveAt: session.LastActiveAt,
	}, nil
}

func (d *Dispatcher) clampHistory(limit int) int {
	if limit <= 0 {
		return d.historyDefault
	}
	return min(limit, d.historyLimit)
}

// Active lists sharing sessions, newest activity first, without history.
// The online flag of each entry is recomputed but not written back.
// Offline emergency sessions are included while they are still sharing.
func (d *Dispatcher) Active(ctx context.Context, emergencyOnly bool) (sessions []*models.LocationSession, err error) {
	defer d.observe("active", d.now(), &err)

	list, err := d.store.ListActive(ctx, emergencyOnly)
	if err != nil {
		return nil, &InternalError{Op: "get active sessions", Err: err}
	}

	now := d.now()
	sessions = make([]*models.LocationSession, 0, len(list))
	for _, s := range list {
		c := s.WithoutHistory()
		c.IsOnline = s.OnlineAt(now, d.liveness)
		sessions = append(sessions, c)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].LastActiveAt.Equal(sessions[j].LastActiveAt) {
			return sessions[i].SessionID < sessions[j].SessionID
		}
		return sessions[i].LastActiveAt.After(sessions[j].LastActiveAt)
	})
	return sessions, nil
}

// Watch subscribes conn to a session topic.
func (d *Dispatcher) Watch(conn pubsub.Subscriber, sessionID string) error {
	if ve := validation.ValidateStruct(&models.SessionRequest{SessionID: sessionID}); ve != nil {
		return newValidationError(ve)
	}
	d.registry.Subscribe(conn, pubsub.SessionTopic(sessionID))
	return nil
}

// Unwatch unsubscribes conn from a session topic.
func (d *Dispatcher) Unwatch(conn pubsub.Subscriber, sessionID string) error {
	if ve := validation.ValidateStruct(&models.SessionRequest{SessionID: sessionID}); ve != nil {
		return newValidationError(ve)
	}
	d.registry.Unsubscribe(conn, pubsub.SessionTopic(sessionID))
	return nil
}

// WatchEmergencies subscribes conn to the global emergency topic.
func (d *Dispatcher) WatchEmergencies(conn pubsub.Subscriber) {
	d.registry.Subscribe(conn, pubsub.EmergencyTopic)
}

// UnwatchEmergencies unsubscribes conn from the global emergency topic.
func (d *Dispatcher) UnwatchEmergencies(conn pubsub.Subscriber) {
	d.registry.Unsubscribe(conn, pubsub.EmergencyTopic)
}

func (d *Dispatcher) publish(topic pubsub.Topic, eventType string, data interface{}) {
	e := pubsub.Event{Type: eventType, Data: data}
	d.registry.Publish(topic, e)
	if topic == pubsub.EmergencyTopic && d.mirror != nil {
		d.mirror.Enqueue(e)
	}
}

func (d *Dispatcher) observe(op string, start time.Time, errp *error) {
	metrics.RecordDispatcherOperation(op, string(Classify(*errp)), d.now().Sub(start))
}

func emergencyTypeOrDefault(t models.EmergencyType) models.EmergencyType {
	if t == "" {
		return models.EmergencyOther
	}
	return t
}
