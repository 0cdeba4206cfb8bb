// Package relay binds per-connection passenger channels to tour sessions and
// routes events between them.
package relay

import (
	"encoding/json"

	"github.com/skytour/tourpilot/internal/domain"
)

// Inbound event types.
const (
	EventStartTour         = "start_tour"
	EventPassengerMessage  = "passenger_message"
	EventUpdateFlightData  = "update_flight_data"
	EventEndTour           = "end_tour"
	EventRequestFlightInfo = "request_flight_info"
)

// Outbound event types.
const (
	EventConnected        = "connected"
	EventTourStarted      = "tour_started"
	EventMessageReceived  = "message_received"
	EventPilotMessage     = "pilot_message"
	EventFlightInfoUpdate = "flight_info_update"
	EventTourEnded        = "tour_ended"
	EventError            = "error"
)

// Envelope frames every inbound message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// StartTourPayload carries the start_tour fields.
type StartTourPayload struct {
	PassengerName string `json:"passengerName"`
	TourType      string `json:"tourType"`
}

// PassengerMessagePayload carries a passenger utterance with optional
// telemetry. The telemetry is raw; it is normalized before use.
type PassengerMessagePayload struct {
	Message    string         `json:"message"`
	FlightData map[string]any `json:"flightData,omitempty"`
}

// UpdateFlightDataPayload carries a telemetry-only update.
type UpdateFlightDataPayload struct {
	FlightData map[string]any `json:"flightData"`
}

// ConnectedEvent acknowledges a newly opened channel.
type ConnectedEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// TourStartedEvent acknowledges session creation with the initial greeting.
type TourStartedEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// MessageReceivedEvent acknowledges a passenger message before the reply is
// resolved, so the client can show a pending indicator.
type MessageReceivedEvent struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// PilotMessageEvent delivers the tour guide's reply.
type PilotMessageEvent struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// FlightInfoUpdateEvent pushes a telemetry snapshot tagged with provenance.
type FlightInfoUpdateEvent struct {
	Type      string           `json:"type"`
	Data      domain.Telemetry `json:"data"`
	Source    string           `json:"source"`
	Timestamp string           `json:"timestamp"`
}

// TourEndedEvent acknowledges the end of a tour.
type TourEndedEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorEvent reports a passenger-visible failure.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
