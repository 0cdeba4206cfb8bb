package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/skytour/tourpilot/internal/domain"
	"github.com/skytour/tourpilot/internal/shared"
	_ "modernc.org/sqlite"
)

// saveRetries bounds how often a busy-database save is retried.
const saveRetries = 3

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed transcript archive.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS tours (
		session_id TEXT PRIMARY KEY,
		passenger_name TEXT NOT NULL,
		tour_type TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL,
		turn_count INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tours_ended ON tours(ended_at);

	CREATE TABLE IF NOT EXISTS turns (
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		message TEXT NOT NULL,
		telemetry_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, seq)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveTranscript archives an ended session with its full turn history.
// Busy-database conflicts are retried with backoff since an archive write
// can race a transcript read.
func (s *SQLiteStore) SaveTranscript(ctx context.Context, sess *domain.TourSession, endedAt time.Time) error {
	var err error
	delay := 100 * time.Millisecond
	for attempt := 0; attempt < saveRetries; attempt++ {
		err = s.saveTranscript(ctx, sess, endedAt)
		if err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) {
			return err
		}
		slog.Debug("Transcript save hit busy database, retrying",
			"session_id", sess.SessionID,
			"attempt", attempt+1,
			"delay", delay)
		time.Sleep(delay)
		delay *= 2
	}
	return fmt.Errorf("save transcript for %s after %d attempts: %w", sess.SessionID, saveRetries, err)
}

func (s *SQLiteStore) saveTranscript(ctx context.Context, sess *domain.TourSession, endedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transcript tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tours (session_id, passenger_name, tour_type, started_at, ended_at, turn_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			ended_at = excluded.ended_at,
			turn_count = excluded.turn_count`,
		sess.SessionID, sess.PassengerName, sess.TourType,
		sess.StartedAt.Unix(), endedAt.Unix(), len(sess.Turns),
	)
	if err != nil {
		return fmt.Errorf("insert tour: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, sess.SessionID); err != nil {
		return fmt.Errorf("clear stale turns: %w", err)
	}

	for i, turn := range sess.Turns {
		telemetryJSON, err := json.Marshal(turn.Telemetry)
		if err != nil {
			return fmt.Errorf("marshal turn telemetry: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO turns (session_id, seq, role, message, telemetry_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			sess.SessionID, i, string(turn.Role), turn.Message, string(telemetryJSON), turn.Timestamp.Unix(),
		)
		if err != nil {
			return fmt.Errorf("insert turn %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transcript: %w", err)
	}
	return nil
}

// ListTranscripts returns the most recently ended tours, newest first.
func (s *SQLiteStore) ListTranscripts(ctx context.Context, limit int) ([]TranscriptSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, passenger_name, tour_type, started_at, ended_at, turn_count
		FROM tours ORDER BY ended_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transcripts: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close transcript rows", "error", closeErr)
		}
	}()

	var summaries []TranscriptSummary
	for rows.Next() {
		var ts TranscriptSummary
		var startedAt, endedAt int64
		if err := rows.Scan(&ts.SessionID, &ts.PassengerName, &ts.TourType, &startedAt, &endedAt, &ts.TurnCount); err != nil {
			return nil, fmt.Errorf("scan transcript row: %w", err)
		}
		ts.StartedAt = time.Unix(startedAt, 0)
		ts.EndedAt = time.Unix(endedAt, 0)
		summaries = append(summaries, ts)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcripts: %w", err)
	}
	return summaries, nil
}

// GetTranscript retrieves an archived tour with its turns.
func (s *SQLiteStore) GetTranscript(ctx context.Context, sessionID string) (*domain.TourSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, passenger_name, tour_type, started_at
		FROM tours WHERE session_id = ?`, sessionID)

	var sess domain.TourSession
	var startedAt int64
	err := row.Scan(&sess.SessionID, &sess.PassengerName, &sess.TourType, &startedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan tour row: %w", err)
	}
	sess.StartedAt = time.Unix(startedAt, 0)

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, message, telemetry_json, created_at
		FROM turns WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close turn rows", "error", closeErr)
		}
	}()

	for rows.Next() {
		var turn domain.Turn
		var role, telemetryJSON string
		var createdAt int64
		if err := rows.Scan(&role, &turn.Message, &telemetryJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		turn.Role = domain.Role(role)
		turn.Timestamp = time.Unix(createdAt, 0)
		if err := json.Unmarshal([]byte(telemetryJSON), &turn.Telemetry); err != nil {
			return nil, fmt.Errorf("unmarshal turn telemetry: %w", err)
		}
		sess.Turns = append(sess.Turns, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return &sess, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
