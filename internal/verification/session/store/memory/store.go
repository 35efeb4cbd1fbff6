// Package memory is the in-process session KeyStore used when no managed TTL
// store is configured. Expiry is checked on every access; the sweeper only
// reclaims memory.
package memory

import (
	"context"
	"sync"
	"time"

	"civitas/internal/verification/session"
	id "civitas/pkg/domain"
	"civitas/pkg/platform/sentinel"
)

type state int

const (
	stateActive state = iota
	stateConsumed
	stateExpired
)

type entry struct {
	rec   session.Record
	state state
}

// DefaultGrace is how long tombstones outlive a session's expiry.
const DefaultGrace = 10 * time.Minute

// Store is a mutex-guarded map of session records.
type Store struct {
	mu      sync.Mutex
	entries map[id.SessionID]*entry
	grace   time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithGrace sets how long consumed and expired tombstones are retained.
func WithGrace(d time.Duration) Option {
	return func(s *Store) { s.grace = d }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[id.SessionID]*entry),
		grace:   DefaultGrace,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set stores rec. Session ids are random so collisions are treated as a
// conflict rather than silently overwriting.
func (s *Store) Set(_ context.Context, rec session.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[rec.ID]; exists {
		return sentinel.ErrConflict
	}
	rec.PublicKey = append([]byte(nil), rec.PublicKey...)
	rec.SealedPrivateKey = append([]byte(nil), rec.SealedPrivateKey...)
	s.entries[rec.ID] = &entry{rec: rec}
	return nil
}

// GetAndInvalidate returns the record and leaves a tombstone behind.
func (s *Store) GetAndInvalidate(ctx context.Context, sessionID id.SessionID, now time.Time) (session.Record, error) {
	if err := ctx.Err(); err != nil {
		return session.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sessionID]
	if !ok {
		return session.Record{}, sentinel.ErrNotFound
	}
	switch e.state {
	case stateConsumed:
		return session.Record{}, sentinel.ErrAlreadyUsed
	case stateExpired:
		return session.Record{}, sentinel.ErrExpired
	}
	if !now.Before(e.rec.ExpiresAt) {
		e.state = stateExpired
		e.rec.SealedPrivateKey = nil
		return session.Record{}, sentinel.ErrExpired
	}

	out := e.rec
	e.state = stateConsumed
	e.rec.SealedPrivateKey = nil
	return out, nil
}

// Sweep removes entries whose expiry plus grace has passed and returns how
// many were removed.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for sid, e := range s.entries {
		if now.After(e.rec.ExpiresAt.Add(s.grace)) {
			delete(s.entries, sid)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries including tombstones.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartSweeper runs Sweep every interval until ctx is done.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration, now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(now())
		}
	}
}
