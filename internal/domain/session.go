package domain

import (
	"time"
)

// Role identifies the speaker of a turn.
type Role string

const (
	// RolePassenger marks a turn spoken by the passenger.
	RolePassenger Role = "passenger"
	// RolePilot marks a turn spoken by the tour guide agent.
	RolePilot Role = "agent"
)

// Turn is one recorded utterance with the telemetry snapshot in effect when
// it was spoken. Turns are immutable once appended to a session.
type Turn struct {
	Role      Role      `json:"role"`
	Message   string    `json:"message"`
	Telemetry Telemetry `json:"flightData"`
	Timestamp time.Time `json:"timestamp"`
}

// TourSession holds the server-side state of one passenger's tour.
// The turn list is append-only; the session store is the sole mutator.
type TourSession struct {
	SessionID     string     `json:"sessionId"`
	PassengerName string     `json:"passengerName"`
	TourType      string     `json:"tourType"`
	StartedAt     time.Time  `json:"startedAt"`
	Turns         []Turn     `json:"turns"`
	Telemetry     *Telemetry `json:"flightData,omitempty"`
}

// RecentTurns returns the last n turns from the conversation.
func (s *TourSession) RecentTurns(n int) []Turn {
	if n >= len(s.Turns) {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-n:]
}
