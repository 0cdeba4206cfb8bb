package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/skytour/tourpilot/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "tours.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sampleSession(id string, started time.Time) *domain.TourSession {
	return &domain.TourSession{
		SessionID:     id,
		PassengerName: "Alice",
		TourType:      "scenic",
		StartedAt:     started,
		Turns: []domain.Turn{
			{
				Role:      domain.RolePassenger,
				Message:   "How high are we?",
				Telemetry: domain.Telemetry{Altitude: 5000, Speed: 120, Aircraft: "Cessna 172"},
				Timestamp: started.Add(time.Minute),
			},
			{
				Role:      domain.RolePilot,
				Message:   "We're currently cruising at 5000 feet. Perfect altitude for sightseeing!",
				Telemetry: domain.Telemetry{Altitude: 5000, Speed: 120, Aircraft: "Cessna 172"},
				Timestamp: started.Add(time.Minute + 2*time.Second),
			},
		},
	}
}

func TestSaveAndGetTranscript(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	started := time.Now().Add(-10 * time.Minute).Truncate(time.Second)

	sess := sampleSession("tour-1-abc", started)
	if err := repo.SaveTranscript(ctx, sess, started.Add(10*time.Minute)); err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}

	got, err := repo.GetTranscript(ctx, "tour-1-abc")
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected archived transcript, got nil")
	}
	if got.PassengerName != "Alice" || got.TourType != "scenic" {
		t.Errorf("Unexpected metadata: %+v", got)
	}
	if len(got.Turns) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(got.Turns))
	}
	if got.Turns[0].Role != domain.RolePassenger || got.Turns[1].Role != domain.RolePilot {
		t.Errorf("Turn roles out of order: %q then %q", got.Turns[0].Role, got.Turns[1].Role)
	}
	if got.Turns[0].Telemetry.Altitude != 5000 {
		t.Errorf("Telemetry not round-tripped: %+v", got.Turns[0].Telemetry)
	}
}

func TestGetTranscriptMissing(t *testing.T) {
	repo := newTestStore(t)

	got, err := repo.GetTranscript(context.Background(), "tour-never-archived")
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for missing transcript, got %+v", got)
	}
}

func TestSaveTranscriptReplaces(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	started := time.Now().Truncate(time.Second)

	sess := sampleSession("tour-2-def", started)
	if err := repo.SaveTranscript(ctx, sess, started.Add(time.Minute)); err != nil {
		t.Fatalf("first SaveTranscript failed: %v", err)
	}

	sess.Turns = append(sess.Turns, domain.Turn{
		Role:      domain.RolePassenger,
		Message:   "one more question",
		Timestamp: started.Add(2 * time.Minute),
	})
	if err := repo.SaveTranscript(ctx, sess, started.Add(3*time.Minute)); err != nil {
		t.Fatalf("second SaveTranscript failed: %v", err)
	}

	got, err := repo.GetTranscript(ctx, "tour-2-def")
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	if len(got.Turns) != 3 {
		t.Errorf("Expected replaced archive with 3 turns, got %d", len(got.Turns))
	}
}

func TestListTranscriptsNewestFirst(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Truncate(time.Second)

	for i, id := range []string{"tour-a", "tour-b", "tour-c"} {
		sess := sampleSession(id, base)
		if err := repo.SaveTranscript(ctx, sess, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("SaveTranscript %s failed: %v", id, err)
		}
	}

	got, err := repo.ListTranscripts(ctx, 2)
	if err != nil {
		t.Fatalf("ListTranscripts failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(got))
	}
	if got[0].SessionID != "tour-c" || got[1].SessionID != "tour-b" {
		t.Errorf("Expected newest first, got %q then %q", got[0].SessionID, got[1].SessionID)
	}
	if got[0].TurnCount != 2 {
		t.Errorf("Expected turn count 2, got %d", got[0].TurnCount)
	}
}

func TestPing(t *testing.T) {
	repo := newTestStore(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
