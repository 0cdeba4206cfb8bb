// Package api provides the synchronous REST API mirroring the channel
// protocol for clients without a persistent connection.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/skytour/tourpilot/internal/pilot"
	"github.com/skytour/tourpilot/internal/session"
	"github.com/skytour/tourpilot/internal/store"
)

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

// Handler serves the chat REST endpoints.
type Handler struct {
	sessions *session.Store
	resolver *pilot.Resolver
	repo     store.Repository
}

// NewHandler creates a new Handler. repo may be nil when transcript
// archiving is disabled.
func NewHandler(sessions *session.Store, resolver *pilot.Resolver, repo store.Repository) *Handler {
	return &Handler{
		sessions: sessions,
		resolver: resolver,
		repo:     repo,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response in the {success:false} envelope.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]interface{}{"success": false, "error": message})
}

// Health reports service liveness and the number of active sessions.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":          status,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"active_sessions": h.sessions.Count(),
	})
}
