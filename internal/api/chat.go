package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skytour/tourpilot/internal/domain"
	"github.com/skytour/tourpilot/internal/pilot"
	"github.com/skytour/tourpilot/internal/session"
	"github.com/skytour/tourpilot/internal/telemetry"
)

type startTourRequest struct {
	PassengerName string `json:"passengerName"`
	TourType      string `json:"tourType"`
}

type messageRequest struct {
	SessionID  string         `json:"sessionId"`
	Message    string         `json:"message"`
	FlightData map[string]any `json:"flightData,omitempty"`
}

type endTourRequest struct {
	SessionID string `json:"sessionId"`
}

// RegisterRoutes registers the chat REST routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/start", h.StartTour)
		r.Post("/message", h.Message)
		r.Get("/history/{sessionID}", h.History)
		r.Post("/end", h.EndTour)
		r.Get("/transcripts", h.Transcripts)
		r.Get("/transcripts/{sessionID}", h.Transcript)
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// StartTour creates a new tour session.
func (h *Handler) StartTour(w http.ResponseWriter, r *http.Request) {
	var req startTourRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.sessions.Create(req.PassengerName, req.TourType)
	if err != nil {
		slog.Error("Failed to start tour", "error", err)
		Error(w, http.StatusInternalServerError, "failed to start tour")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"sessionId":      id,
		"welcomeMessage": pilot.WelcomeMessage,
	})
}

// Message records a passenger utterance and returns the pilot's reply.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.SessionID == "" || strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "sessionId and message are required")
		return
	}

	tel := telemetry.Normalize(req.FlightData)
	if req.FlightData == nil {
		if sess, err := h.sessions.Get(req.SessionID); err == nil && sess.Telemetry != nil {
			tel = *sess.Telemetry
		}
	}

	history := h.sessions.History(req.SessionID)
	if err := h.sessions.AppendTurn(req.SessionID, domain.Turn{
		Role:      domain.RolePassenger,
		Message:   req.Message,
		Telemetry: tel,
		Timestamp: time.Now(),
	}); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			Error(w, http.StatusNotFound, "session not found")
			return
		}
		Error(w, http.StatusInternalServerError, "failed to record message")
		return
	}

	reply := h.resolver.Resolve(r.Context(), req.Message, tel, req.SessionID, history)
	slog.Info("Pilot reply resolved", "session_id", req.SessionID, "origin", reply.Origin, "length", len(reply.Text))

	if err := h.sessions.AppendTurn(req.SessionID, domain.Turn{
		Role:      domain.RolePilot,
		Message:   reply.Text,
		Telemetry: tel,
		Timestamp: time.Now(),
	}); err != nil {
		slog.Warn("Session gone before reply could be recorded", "session_id", req.SessionID)
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"response": reply.Text,
	})
}

// History returns a session's conversation so far.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	history := h.sessions.History(sessionID)
	if history == nil {
		history = []domain.Turn{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"history": history,
	})
}

// EndTour ends a session and archives its transcript. Ending an unknown
// session is a no-op, mirroring the channel protocol.
func (h *Handler) EndTour(w http.ResponseWriter, r *http.Request) {
	var req endTourRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		Error(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	if sess, ok := h.sessions.End(req.SessionID); ok && h.repo != nil {
		if err := h.repo.SaveTranscript(r.Context(), sess, time.Now()); err != nil {
			slog.Warn("Failed to archive tour transcript", "session_id", sess.SessionID, "error", err)
		}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Tour ended successfully",
	})
}

// Transcripts lists recently archived tours.
func (h *Handler) Transcripts(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		Error(w, http.StatusNotFound, "transcript archive disabled")
		return
	}

	summaries, err := h.repo.ListTranscripts(r.Context(), 20)
	if err != nil {
		slog.Error("Failed to list transcripts", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list transcripts")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"transcripts": summaries,
	})
}

// Transcript returns one archived tour with its turns.
func (h *Handler) Transcript(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		Error(w, http.StatusNotFound, "transcript archive disabled")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	sess, err := h.repo.GetTranscript(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to load transcript", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}
	if sess == nil {
		Error(w, http.StatusNotFound, "transcript not found")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"transcript": sess,
	})
}
