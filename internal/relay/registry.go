package relay

import (
	"context"
	"log/slog"
	"sync"
)

// Channel is a connection-scoped outbound event stream.
type Channel interface {
	Send(ctx context.Context, event any) error
}

// Registry maps session ids to their currently bound channel so push events
// can be addressed by session.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]Channel),
	}
}

// Bind associates a session with a channel, replacing any prior binding.
func (r *Registry) Bind(sessionID string, ch Channel) {
	r.mu.Lock()
	r.channels[sessionID] = ch
	r.mu.Unlock()
	slog.Debug("Channel bound", "session_id", sessionID)
}

// Unbind removes the binding, but only if the given channel still owns it.
// A stale unbind from a replaced connection must not evict its successor.
func (r *Registry) Unbind(sessionID string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.channels[sessionID]; ok && current == ch {
		delete(r.channels, sessionID)
		slog.Debug("Channel unbound", "session_id", sessionID)
	}
}

// Push sends an event to the session's bound channel. Sending to a session
// with no bound channel is a silent no-op; push data is not queued or retried.
func (r *Registry) Push(ctx context.Context, sessionID string, event any) {
	r.mu.RLock()
	ch := r.channels[sessionID]
	r.mu.RUnlock()

	if ch == nil {
		return
	}
	if err := ch.Send(ctx, event); err != nil {
		slog.Debug("Push to session failed", "session_id", sessionID, "error", err)
	}
}

// Count returns the number of bound channels.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
