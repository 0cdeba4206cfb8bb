// Package session provides the in-memory registry of active tour sessions.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/skytour/tourpilot/internal/domain"
)

// ErrNotFound is returned when a session id has no corresponding entry.
var ErrNotFound = errors.New("session not found")

// Store owns the lifecycle and conversation history of active tour sessions.
// It is the sole mutator of session state; callers only ever see copies.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*domain.TourSession
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*domain.TourSession),
	}
}

// newSessionID generates a fresh session id. Time plus a random suffix keeps
// the collision probability negligible without coordination.
func newSessionID() (string, error) {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return "tour-" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + hex.EncodeToString(buf), nil
}

// Create registers a new session with an empty turn list and no telemetry.
func (s *Store) Create(passengerName, tourType string) (string, error) {
	if passengerName == "" {
		passengerName = "Guest"
	}
	if tourType == "" {
		tourType = "scenic"
	}

	id, err := newSessionID()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.sessions[id] = &domain.TourSession{
		SessionID:     id,
		PassengerName: passengerName,
		TourType:      tourType,
		StartedAt:     time.Now(),
	}
	s.mu.Unlock()

	slog.Info("Tour session created", "session_id", id, "passenger", passengerName, "tour_type", tourType)
	return id, nil
}

// Get returns a snapshot of the session. The turn slice shares backing with
// the stored session but turns are immutable, so readers cannot observe
// partial writes.
func (s *Store) Get(sessionID string) (*domain.TourSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}

	snapshot := *sess
	snapshot.Turns = sess.Turns[:len(sess.Turns):len(sess.Turns)]
	return &snapshot, nil
}

// History returns the session's turns in order, or an empty slice when the
// session does not exist.
func (s *Store) History(sessionID string) []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	return sess.Turns[:len(sess.Turns):len(sess.Turns)]
}

// AppendTurn atomically appends a turn to the session's history and records
// the turn's telemetry as the session's latest snapshot.
func (s *Store) AppendTurn(sessionID string, turn domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("append turn to %s: %w", sessionID, ErrNotFound)
	}

	sess.Turns = append(sess.Turns, turn)
	snapshot := turn.Telemetry
	sess.Telemetry = &snapshot
	return nil
}

// UpdateTelemetry replaces the session's last-known telemetry. An absent
// session is a silent no-op since updates may race with an end-tour.
func (s *Store) UpdateTelemetry(sessionID string, t domain.Telemetry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[sessionID]; ok {
		sess.Telemetry = &t
	}
}

// End removes the session from the store and returns the final state for
// archiving. Ending an already-absent session is not an error.
func (s *Store) End(sessionID string) (*domain.TourSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	delete(s.sessions, sessionID)
	slog.Info("Tour session ended", "session_id", sessionID, "turns", len(sess.Turns))
	return sess, true
}

// Count returns the number of active sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
