// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package store

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/rescuenet/internal/logging"
	"github.com/tomtom215/rescuenet/internal/models"
)

// sessionKeyPrefix namespaces session records in BadgerDB.
const sessionKeyPrefix = "location:session:"

// maxConflictRetries bounds how often a read-modify-write transaction is
// replayed after badger.ErrConflict.
const maxConflictRetries = 5

// lockStripes is the number of per-session write locks. Writers to the same
// session queue on one stripe instead of racing into transaction conflicts.
const lockStripes = 64

// BadgerConfig configures the on-disk store.
type BadgerConfig struct {
	// Path is the directory where BadgerDB stores its files.
	Path string

	// SyncWrites forces fsync after every write.
	SyncWrites bool

	// Compression enables Snappy compression of value log entries.
	Compression bool
}

// BadgerStore implements Store on top of BadgerDB.
type BadgerStore struct {
	db    *badger.DB
	opts  Options
	locks [lockStripes]sync.Mutex
	// ownsDB is true when the store opened the database itself and must
	// close it.
	ownsDB bool
}

// OpenBadgerStore opens (or creates) a BadgerDB database at cfg.Path.
func OpenBadgerStore(cfg BadgerConfig, opts Options) (*BadgerStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("badger store path is required")
	}

	bopts := badger.DefaultOptions(cfg.Path)
	bopts.SyncWrites = cfg.SyncWrites
	if cfg.Compression {
		bopts.Compression = options.Snappy
	}
	bopts.Logger = newBadgerLogger()

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Bool("compression", cfg.Compression).
		Msg("Session store opened")

	return &BadgerStore{db: db, opts: opts, ownsDB: true}, nil
}

// NewBadgerStore wraps an already opened database. The caller keeps
// ownership of db.
func NewBadgerStore(db *badger.DB, opts Options) *BadgerStore {
	return &BadgerStore{db: db, opts: opts}
}

// lockFor returns the write lock guarding session id.
func (b *BadgerStore) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &b.locks[h.Sum32()%lockStripes]
}

func sessionKey(id string) []byte {
	return []byte(sessionKeyPrefix + id)
}

func readSession(item *badger.Item) (*models.LocationSession, error) {
	var s models.LocationSession
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &s)
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &s, nil
}

func writeSession(txn *badger.Txn, s *models.LocationSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := txn.Set(sessionKey(s.SessionID), data); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

// FindBySessionID retrieves a session by id.
func (b *BadgerStore) FindBySessionID(_ context.Context, id string) (*models.LocationSession, error) {
	var session *models.LocationSession

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		session, err = readSession(item)
		return err
	})
	if err != nil {
		return nil, b.mapErr(err)
	}
	return session, nil
}

// Create stores a new session.
func (b *BadgerStore) Create(_ context.Context, s *models.LocationSession) (*models.LocationSession, error) {
	stored := s.Clone()
	truncateHistory(stored, b.opts.historyLimit())

	lock := b.lockFor(stored.SessionID)
	lock.Lock()
	defer lock.Unlock()

	err := b.update(func(txn *badger.Txn) error {
		_, err := txn.Get(sessionKey(stored.SessionID))
		if err == nil {
			return ErrSessionExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get session: %w", err)
		}
		return writeSession(txn, stored)
	})
	if err != nil {
		return nil, b.mapErr(err)
	}
	return stored, nil
}

// AppendPointAndSave applies mutate and appends point inside one transaction.
func (b *BadgerStore) AppendPointAndSave(ctx context.Context, id string, point models.LocationPoint, at time.Time, mutate Mutator) (*models.LocationSession, error) {
	limit := b.opts.historyLimit()
	return b.UpdateFields(ctx, id, func(s *models.LocationSession) error {
		if mutate != nil {
			if err := mutate(s); err != nil {
				return err
			}
		}
		s.AppendPoint(point, limit, at)
		return nil
	})
}

// UpdateFields loads, mutates and saves a session inside one transaction.
// The mutator may run more than once if the transaction conflicts.
func (b *BadgerStore) UpdateFields(_ context.Context, id string, mutate Mutator) (*models.LocationSession, error) {
	var result *models.LocationSession

	lock := b.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	err := b.update(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}

		s, err := readSession(item)
		if err != nil {
			return err
		}
		if err := mutate(s); err != nil {
			return err
		}
		s.SessionID = id
		if err := writeSession(txn, s); err != nil {
			return err
		}
		result = s
		return nil
	})
	if err != nil {
		return nil, b.mapErr(err)
	}
	return result, nil
}

// ListActive scans all sessions and returns the sharing ones.
func (b *BadgerStore) ListActive(_ context.Context, emergencyOnly bool) ([]*models.LocationSession, error) {
	var sessions []*models.LocationSession

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(sessionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			s, err := readSession(it.Item())
			if err != nil {
				logging.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("Skipping unreadable session record")
				continue
			}
			if matchesActive(s, emergencyOnly) {
				sessions = append(sessions, s)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan sessions: %w", b.mapErr(err))
	}
	return sessions, nil
}

// DeleteExpired finds candidates with a read-only scan, then re-checks and
// deletes each one in its own transaction so that a session updated after
// the scan survives.
func (b *BadgerStore) DeleteExpired(ctx context.Context, now time.Time, policy ExpiryPolicy) (int, error) {
	var candidates []string

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(sessionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			s, err := readSession(it.Item())
			if err != nil {
				continue
			}
			if policy.Expired(s, now) {
				candidates = append(candidates, s.SessionID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan sessions: %w", b.mapErr(err))
	}

	removed := 0
	for _, id := range candidates {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		deleted := false
		lock := b.lockFor(id)
		lock.Lock()
		err := b.update(func(txn *badger.Txn) error {
			deleted = false
			item, err := txn.Get(sessionKey(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			s, err := readSession(item)
			if err != nil {
				return err
			}
			if !policy.Expired(s, now) {
				return nil
			}
			deleted = true
			return txn.Delete(sessionKey(id))
		})
		lock.Unlock()
		if err != nil {
			logging.Warn().Err(err).Str("session_id", id).Msg("Failed to delete expired session")
			continue
		}
		if deleted {
			removed++
		}
	}
	return removed, nil
}

// Count returns the total number of sessions in the store.
func (b *BadgerStore) Count(_ context.Context) (int, error) {
	count := 0

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(sessionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})

	return count, b.mapErr(err)
}

// Ping reports ErrClosed once the database has been closed.
func (b *BadgerStore) Ping(_ context.Context) error {
	if b.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

// RunValueLogGC reclaims value log space after bulk deletions. It returns
// nil when there was nothing to rewrite.
func (b *BadgerStore) RunValueLogGC(discardRatio float64) error {
	err := b.db.RunValueLogGC(discardRatio)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
		return nil
	}
	return err
}

// Close closes the database if the store opened it.
func (b *BadgerStore) Close() error {
	if !b.ownsDB {
		return nil
	}
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	return nil
}

// update runs fn in a read-write transaction, replaying it on conflicts.
func (b *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = b.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("transaction conflict after %d attempts: %w", maxConflictRetries, err)
}

func (b *BadgerStore) mapErr(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	return err
}

// badgerLogger routes BadgerDB's internal logging into zerolog. Info and
// debug output is demoted to debug so that compaction chatter stays out of
// production logs.
type badgerLogger struct{}

func newBadgerLogger() badger.Logger { return badgerLogger{} }

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logging.Error().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logging.Warn().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logging.Debug().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logging.Debug().Str("component", "badger").Msgf(format, args...)
}
