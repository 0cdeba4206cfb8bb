// Package store persists finished tour transcripts.
package store

import (
	"context"
	"time"

	"github.com/skytour/tourpilot/internal/domain"
)

// TranscriptSummary is a tour's archive metadata without its turns.
type TranscriptSummary struct {
	SessionID     string    `json:"sessionId"`
	PassengerName string    `json:"passengerName"`
	TourType      string    `json:"tourType"`
	StartedAt     time.Time `json:"startedAt"`
	EndedAt       time.Time `json:"endedAt"`
	TurnCount     int       `json:"turnCount"`
}

// Repository defines the interface for persisting tour transcripts.
type Repository interface {
	// SaveTranscript archives an ended session with its full turn history.
	// Saving the same session twice replaces the earlier archive.
	SaveTranscript(ctx context.Context, sess *domain.TourSession, endedAt time.Time) error

	// ListTranscripts returns the most recently ended tours, newest first.
	ListTranscripts(ctx context.Context, limit int) ([]TranscriptSummary, error)

	// GetTranscript retrieves an archived tour with its turns.
	// Returns nil when no archive exists for the session id.
	GetTranscript(ctx context.Context, sessionID string) (*domain.TourSession, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
