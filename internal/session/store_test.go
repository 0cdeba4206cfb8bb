package session

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/skytour/tourpilot/internal/domain"
)

func TestStoreCreateDefaults(t *testing.T) {
	st := NewStore()

	id, err := st.Create("", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !strings.HasPrefix(id, "tour-") {
		t.Errorf("Expected tour- prefix, got %q", id)
	}

	sess, err := st.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sess.PassengerName != "Guest" {
		t.Errorf("Expected default passenger Guest, got %q", sess.PassengerName)
	}
	if sess.TourType != "scenic" {
		t.Errorf("Expected default tour type scenic, got %q", sess.TourType)
	}
	if len(sess.Turns) != 0 {
		t.Errorf("Expected empty turn list, got %d turns", len(sess.Turns))
	}
	if sess.Telemetry != nil {
		t.Errorf("Expected nil telemetry on new session, got %+v", sess.Telemetry)
	}
}

func TestStoreCreateUniqueIDs(t *testing.T) {
	st := NewStore()
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		id, err := st.Create("Alice", "scenic")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if seen[id] {
			t.Fatalf("Duplicate session id %q", id)
		}
		seen[id] = true
	}
}

func TestStoreGetNotFound(t *testing.T) {
	st := NewStore()
	if _, err := st.Get("tour-0-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStoreAppendTurn(t *testing.T) {
	st := NewStore()
	id, _ := st.Create("Alice", "scenic")

	turn := domain.Turn{
		Role:      domain.RolePassenger,
		Message:   "How high are we?",
		Telemetry: domain.Telemetry{Altitude: 5000, Speed: 120},
		Timestamp: time.Now(),
	}
	if err := st.AppendTurn(id, turn); err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}

	sess, err := st.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(sess.Turns) != 1 {
		t.Fatalf("Expected 1 turn, got %d", len(sess.Turns))
	}
	if sess.Turns[0].Message != "How high are we?" {
		t.Errorf("Unexpected turn message %q", sess.Turns[0].Message)
	}
	if sess.Telemetry == nil || sess.Telemetry.Altitude != 5000 {
		t.Errorf("Expected session telemetry to track the appended turn, got %+v", sess.Telemetry)
	}
}

func TestStoreAppendTurnNotFound(t *testing.T) {
	st := NewStore()
	err := st.AppendTurn("tour-0-missing", domain.Turn{Role: domain.RolePassenger, Message: "hello"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStoreTurnSnapshotIsolation(t *testing.T) {
	st := NewStore()
	id, _ := st.Create("Alice", "scenic")

	tel := domain.Telemetry{Altitude: 5000}
	if err := st.AppendTurn(id, domain.Turn{Role: domain.RolePassenger, Message: "hi", Telemetry: tel}); err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}

	// Later telemetry updates must not retroactively change recorded turns.
	st.UpdateTelemetry(id, domain.Telemetry{Altitude: 9000})

	sess, _ := st.Get(id)
	if sess.Turns[0].Telemetry.Altitude != 5000 {
		t.Errorf("Turn telemetry mutated: got %v", sess.Turns[0].Telemetry.Altitude)
	}
	if sess.Telemetry.Altitude != 9000 {
		t.Errorf("Session telemetry not updated: got %v", sess.Telemetry.Altitude)
	}
}

func TestStoreUpdateTelemetryAbsentSession(t *testing.T) {
	st := NewStore()
	// Must be a silent no-op; updates can race an end-tour.
	st.UpdateTelemetry("tour-0-missing", domain.Telemetry{Altitude: 1000})
}

func TestStoreSessionIsolation(t *testing.T) {
	st := NewStore()
	a, _ := st.Create("Alice", "scenic")
	b, _ := st.Create("Bob", "coastal")

	_ = st.AppendTurn(a, domain.Turn{Role: domain.RolePassenger, Message: "alice says hi"})
	_ = st.AppendTurn(b, domain.Turn{Role: domain.RolePassenger, Message: "bob says hi"})

	sessA, _ := st.Get(a)
	sessB, _ := st.Get(b)
	if len(sessA.Turns) != 1 || sessA.Turns[0].Message != "alice says hi" {
		t.Errorf("Session A history contaminated: %+v", sessA.Turns)
	}
	if len(sessB.Turns) != 1 || sessB.Turns[0].Message != "bob says hi" {
		t.Errorf("Session B history contaminated: %+v", sessB.Turns)
	}
}

func TestStoreEndIdempotent(t *testing.T) {
	st := NewStore()
	id, _ := st.Create("Alice", "scenic")

	if _, ok := st.End(id); !ok {
		t.Fatal("Expected End to find the session")
	}
	if _, ok := st.End(id); ok {
		t.Error("Expected second End to be a no-op")
	}
	if _, ok := st.End("tour-0-never-created"); ok {
		t.Error("Expected End on unknown id to be a no-op")
	}
	if st.Count() != 0 {
		t.Errorf("Expected 0 active sessions, got %d", st.Count())
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	st := NewStore()
	id, _ := st.Create("Alice", "scenic")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			_ = st.AppendTurn(id, domain.Turn{Role: domain.RolePassenger, Message: "m" + strconv.Itoa(i)})
		}
	}()
	for i := 0; i < 500; i++ {
		st.UpdateTelemetry(id, domain.Telemetry{Altitude: float64(i)})
		_, _ = st.Get(id)
	}
	<-done

	sess, _ := st.Get(id)
	if len(sess.Turns) != 500 {
		t.Errorf("Expected 500 turns, got %d", len(sess.Turns))
	}
}
