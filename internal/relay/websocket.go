package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
)

// wsChannel adapts a websocket connection to the Channel interface.
type wsChannel struct {
	ws *websocket.Conn
}

func (c *wsChannel) Send(ctx context.Context, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.ws.Write(ctx, websocket.MessageText, data)
}

// ServeHTTP upgrades the request and runs the connection's event loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slog.Info("Passenger channel connecting", "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "channel closed"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := &wsChannel{ws: ws}
	c := newConn(h, ch)
	defer c.shutdown()

	if err := ch.Send(ctx, ConnectedEvent{Type: EventConnected, Message: "Connected to tour guide service"}); err != nil {
		slog.Debug("Failed to send connected event", "error", err)
		return
	}

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("Channel closed by client", "session_id", c.sessionID)
			} else {
				slog.Warn("Channel read error", "session_id", c.sessionID, "error", err)
			}
			return
		}
		c.handle(ctx, data)
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
