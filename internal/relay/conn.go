package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/skytour/tourpilot/internal/domain"
	"github.com/skytour/tourpilot/internal/pilot"
	"github.com/skytour/tourpilot/internal/session"
	"github.com/skytour/tourpilot/internal/store"
	"github.com/skytour/tourpilot/internal/telemetry"
)

// tourEndedMessage closes out a tour.
const tourEndedMessage = "Thanks for flying with us today!"

// defaultPollInterval is the cadence of the flight-info push loop.
const defaultPollInterval = time.Second

// Handler owns the dependencies shared by all passenger connections.
type Handler struct {
	store         *session.Store
	resolver      *pilot.Resolver
	source        telemetry.Source
	registry      *Registry
	repo          store.Repository
	allowedOrigin string
	isDev         bool
	pollInterval  time.Duration
}

// NewHandler creates the channel multiplexer. repo may be nil when transcript
// archiving is disabled.
func NewHandler(st *session.Store, resolver *pilot.Resolver, source telemetry.Source, registry *Registry, repo store.Repository, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		store:         st,
		resolver:      resolver,
		source:        source,
		registry:      registry,
		repo:          repo,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		pollInterval:  defaultPollInterval,
	}
}

// SetPollInterval overrides the flight-info push cadence.
func (h *Handler) SetPollInterval(d time.Duration) {
	if d > 0 {
		h.pollInterval = d
	}
}

// connState tracks where a connection is in its lifecycle.
type connState int

const (
	stateUnbound connState = iota
	stateBound
	stateClosed
)

// conn is the per-connection state machine. Events are dispatched
// sequentially by the connection's read loop, so no locking is needed on
// conn fields; only the poll loop runs concurrently and it owns no state.
type conn struct {
	h          *Handler
	ch         Channel
	state      connState
	sessionID  string
	pollCancel context.CancelFunc
}

func newConn(h *Handler, ch Channel) *conn {
	return &conn{h: h, ch: ch}
}

// handle parses and dispatches one inbound message.
func (c *conn) handle(ctx context.Context, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		slog.Debug("Unparseable inbound frame", "error", err)
		c.sendError(ctx, "Failed to process message")
		return
	}

	switch env.Type {
	case EventStartTour:
		c.handleStartTour(ctx, env.Payload)
	case EventPassengerMessage:
		c.handlePassengerMessage(ctx, env.Payload)
	case EventUpdateFlightData:
		c.handleUpdateFlightData(ctx, env.Payload)
	case EventRequestFlightInfo:
		c.handleRequestFlightInfo(ctx)
	case EventEndTour:
		c.handleEndTour(ctx)
	default:
		c.sendError(ctx, "Unknown message type")
	}
}

func (c *conn) handleStartTour(ctx context.Context, payload json.RawMessage) {
	switch c.state {
	case stateBound:
		c.sendError(ctx, "Tour already started")
		return
	case stateClosed:
		c.sendError(ctx, "Tour has ended")
		return
	case stateUnbound:
	}

	var p StartTourPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			c.sendError(ctx, "Failed to process message")
			return
		}
	}

	id, err := c.h.store.Create(p.PassengerName, p.TourType)
	if err != nil {
		slog.Error("Failed to create session", "error", err)
		c.sendError(ctx, "Failed to start tour")
		return
	}

	c.sessionID = id
	c.state = stateBound
	c.h.registry.Bind(id, c.ch)

	c.send(ctx, TourStartedEvent{
		Type:      EventTourStarted,
		SessionID: id,
		Message:   pilot.WelcomeMessage,
	})
}

func (c *conn) handlePassengerMessage(ctx context.Context, payload json.RawMessage) {
	if c.state != stateBound {
		c.sendError(ctx, "No active session")
		return
	}

	var p PassengerMessagePayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			c.sendError(ctx, "Failed to process message")
			return
		}
	}
	if strings.TrimSpace(p.Message) == "" {
		c.sendError(ctx, "message is required")
		return
	}

	tel := c.currentTelemetry(p.FlightData)

	// Acknowledge before resolving; the upstream call may take seconds.
	c.send(ctx, MessageReceivedEvent{Type: EventMessageReceived, Timestamp: timestamp()})

	// History is read before the passenger turn is appended so the resolver
	// sees only prior turns.
	history := c.h.store.History(c.sessionID)

	if err := c.h.store.AppendTurn(c.sessionID, domain.Turn{
		Role:      domain.RolePassenger,
		Message:   p.Message,
		Telemetry: tel,
		Timestamp: time.Now(),
	}); err != nil {
		c.sendError(ctx, "No active session")
		return
	}

	reply := c.h.resolver.Resolve(ctx, p.Message, tel, c.sessionID, history)
	slog.Info("Pilot reply resolved", "session_id", c.sessionID, "origin", reply.Origin, "length", len(reply.Text))

	if err := c.h.store.AppendTurn(c.sessionID, domain.Turn{
		Role:      domain.RolePilot,
		Message:   reply.Text,
		Telemetry: tel,
		Timestamp: time.Now(),
	}); err != nil {
		// Session ended while the reply was in flight; still deliver it.
		slog.Warn("Session gone before reply could be recorded", "session_id", c.sessionID)
	}

	c.send(ctx, PilotMessageEvent{Type: EventPilotMessage, Message: reply.Text, Timestamp: timestamp()})
}

// currentTelemetry normalizes the inbound snapshot, falling back to the
// session's last-known telemetry when the event carried none.
func (c *conn) currentTelemetry(raw map[string]any) domain.Telemetry {
	if raw != nil {
		return telemetry.Normalize(raw)
	}
	if sess, err := c.h.store.Get(c.sessionID); err == nil && sess.Telemetry != nil {
		return *sess.Telemetry
	}
	return telemetry.Normalize(nil)
}

func (c *conn) handleUpdateFlightData(ctx context.Context, payload json.RawMessage) {
	if c.state != stateBound {
		c.sendError(ctx, "No active session")
		return
	}

	var p UpdateFlightDataPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			c.sendError(ctx, "Failed to process message")
			return
		}
	}
	if p.FlightData == nil {
		c.sendError(ctx, "flightData is required")
		return
	}

	c.h.store.UpdateTelemetry(c.sessionID, telemetry.Normalize(p.FlightData))
}

func (c *conn) handleRequestFlightInfo(ctx context.Context) {
	if c.state != stateBound {
		c.sendError(ctx, "No active session")
		return
	}
	c.startPoll(ctx)
}

// startPoll (re)starts the push loop. Only one loop runs per connection;
// starting a new one cancels the old first.
func (c *conn) startPoll(ctx context.Context) {
	c.stopPoll()
	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	go c.pollLoop(pollCtx, c.sessionID)
}

func (c *conn) stopPoll() {
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
}

func (c *conn) pollLoop(ctx context.Context, sessionID string) {
	ticker := time.NewTicker(c.h.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			data, source := c.h.source.Read(ctx)
			c.h.registry.Push(ctx, sessionID, FlightInfoUpdateEvent{
				Type:      EventFlightInfoUpdate,
				Data:      data,
				Source:    source,
				Timestamp: timestamp(),
			})
		}
	}
}

func (c *conn) handleEndTour(ctx context.Context) {
	if c.state != stateBound {
		c.sendError(ctx, "No active session")
		return
	}

	c.stopPoll()
	if sess, ok := c.h.store.End(c.sessionID); ok {
		c.h.archiveTranscript(sess)
	}
	c.h.registry.Unbind(c.sessionID, c.ch)
	c.state = stateClosed

	c.send(ctx, TourEndedEvent{Type: EventTourEnded, Message: tourEndedMessage})
}

// shutdown releases connection resources on disconnect. The session is
// deliberately left alive: its identity is the session id, not the
// connection, and a passenger may reconnect to it.
func (c *conn) shutdown() {
	c.stopPoll()
	if c.state == stateBound {
		c.h.registry.Unbind(c.sessionID, c.ch)
	}
}

// archiveTranscript persists an ended session in the background.
func (h *Handler) archiveTranscript(sess *domain.TourSession) {
	if h.repo == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.repo.SaveTranscript(ctx, sess, time.Now()); err != nil {
			slog.Warn("Failed to archive tour transcript", "session_id", sess.SessionID, "error", err)
		}
	}()
}

func (c *conn) send(ctx context.Context, event any) {
	if err := c.ch.Send(ctx, event); err != nil {
		slog.Debug("Failed to send event", "session_id", c.sessionID, "error", err)
	}
}

func (c *conn) sendError(ctx context.Context, message string) {
	c.send(ctx, ErrorEvent{Type: EventError, Message: message})
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
