package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skytour/tourpilot/internal/pilot"
	"github.com/skytour/tourpilot/internal/session"
	"github.com/skytour/tourpilot/internal/store"
)

func newTestRouter(t *testing.T, repo store.Repository) (*chi.Mux, *session.Store) {
	t.Helper()
	sessions := session.NewStore()
	h := NewHandler(sessions, pilot.NewResolver(nil), repo)
	r := chi.NewRouter()
	r.Get("/health", h.Health)
	h.RegisterRoutes(r)
	return r, sessions
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), "body: %s", rec.Body.String())
	return rec, decoded
}

func TestStartTour(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	rec, body := doJSON(t, r, http.MethodPost, "/api/chat/start",
		map[string]any{"passengerName": "Alice", "tourType": "scenic"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.True(t, strings.HasPrefix(body["sessionId"].(string), "tour-"))
	assert.Contains(t, body["welcomeMessage"], "Captain Sarah Mitchell")
}

func TestMessageFlow(t *testing.T) {
	r, sessions := newTestRouter(t, nil)
	id, err := sessions.Create("Alice", "scenic")
	require.NoError(t, err)

	rec, body := doJSON(t, r, http.MethodPost, "/api/chat/message", map[string]any{
		"sessionId":  id,
		"message":    "How high are we flying?",
		"flightData": map[string]any{"altitude": 5000.0, "onGround": false},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body["response"], "5000")

	sess, err := sessions.Get(id)
	require.NoError(t, err)
	require.Len(t, sess.Turns, 2)
	assert.Equal(t, "How high are we flying?", sess.Turns[0].Message)
	assert.Equal(t, body["response"], sess.Turns[1].Message)
}

func TestMessageValidation(t *testing.T) {
	r, sessions := newTestRouter(t, nil)
	id, err := sessions.Create("", "")
	require.NoError(t, err)

	cases := []struct {
		name string
		req  map[string]any
	}{
		{"missing session id", map[string]any{"message": "hello"}},
		{"missing message", map[string]any{"sessionId": id}},
		{"blank message", map[string]any{"sessionId": id, "message": "   "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := doJSON(t, r, http.MethodPost, "/api/chat/message", tc.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestMessageUnknownSession(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	rec, body := doJSON(t, r, http.MethodPost, "/api/chat/message",
		map[string]any{"sessionId": "tour-0-deadbeef", "message": "hello"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "session not found", body["error"])
}

func TestMessageInvalidBody(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/message", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory(t *testing.T) {
	r, sessions := newTestRouter(t, nil)
	id, err := sessions.Create("Alice", "scenic")
	require.NoError(t, err)

	_, _ = doJSON(t, r, http.MethodPost, "/api/chat/message",
		map[string]any{"sessionId": id, "message": "first question"})

	rec, body := doJSON(t, r, http.MethodGet, "/api/chat/history/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	turns := body["history"].([]any)
	require.Len(t, turns, 2)
	first := turns[0].(map[string]any)
	assert.Equal(t, "passenger", first["role"])
	assert.Equal(t, "first question", first["message"])
}

func TestHistoryUnknownSessionIsEmpty(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	rec, body := doJSON(t, r, http.MethodGet, "/api/chat/history/tour-0-deadbeef", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["history"])
}

func TestEndTour(t *testing.T) {
	dir := t.TempDir()
	repo, err := store.NewSQLite(dir + "/tours.db")
	require.NoError(t, err)
	defer repo.Close()

	r, sessions := newTestRouter(t, repo)
	id, err := sessions.Create("Alice", "scenic")
	require.NoError(t, err)
	_, _ = doJSON(t, r, http.MethodPost, "/api/chat/message",
		map[string]any{"sessionId": id, "message": "what a view"})

	rec, body := doJSON(t, r, http.MethodPost, "/api/chat/end", map[string]any{"sessionId": id})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Tour ended successfully", body["message"])

	_, err = sessions.Get(id)
	assert.Error(t, err)

	// The archived transcript is served back from the transcript endpoints.
	rec, body = doJSON(t, r, http.MethodGet, "/api/chat/transcripts/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	transcript := body["transcript"].(map[string]any)
	assert.Equal(t, id, transcript["sessionId"])

	rec, body = doJSON(t, r, http.MethodGet, "/api/chat/transcripts", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["transcripts"], 1)
}

func TestEndTourUnknownSessionIsNoOp(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	rec, body := doJSON(t, r, http.MethodPost, "/api/chat/end",
		map[string]any{"sessionId": "tour-0-deadbeef"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
}

func TestEndTourMissingSessionID(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	rec, _ := doJSON(t, r, http.MethodPost, "/api/chat/end", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTranscriptsDisabledWithoutRepo(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	rec, _ := doJSON(t, r, http.MethodGet, "/api/chat/transcripts", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, r, http.MethodGet, "/api/chat/transcripts/tour-0-deadbeef", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	r, sessions := newTestRouter(t, nil)
	_, err := sessions.Create("Alice", "scenic")
	require.NoError(t, err)

	rec, body := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["active_sessions"])
}
