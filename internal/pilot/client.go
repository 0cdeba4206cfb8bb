package pilot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/skytour/tourpilot/internal/domain"
)

// DefaultRequestTimeout bounds a single upstream flow call. A slow upstream
// must not leave a passenger waiting; past this the caller falls back.
const DefaultRequestTimeout = 12 * time.Second

// FlowConfig holds the upstream flow endpoint configuration.
type FlowConfig struct {
	BaseURL          string
	APIKey           string
	TourGuideFlowID  string
	FlightInfoFlowID string
	RequestTimeout   time.Duration
}

// FlowClient calls the upstream agent flow over HTTP. A single request is
// made per call, with no internal retries.
type FlowClient struct {
	httpClient *http.Client
	cfg        FlowConfig
}

// NewFlowClient creates a client for the configured flow endpoint.
func NewFlowClient(cfg FlowConfig) *FlowClient {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return &FlowClient{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		cfg:        cfg,
	}
}

// Configured reports whether a tour guide flow is set up at all. An
// unconfigured client is a valid state, not a failure.
func (c *FlowClient) Configured() bool {
	return c.cfg.BaseURL != "" && c.cfg.TourGuideFlowID != ""
}

// runPayload is the wire shape of a flow invocation.
type runPayload struct {
	InputValue string  `json:"input_value"`
	OutputType string  `json:"output_type"`
	InputType  string  `json:"input_type"`
	SessionID  string  `json:"session_id,omitempty"`
	Tweaks     *tweaks `json:"tweaks,omitempty"`
}

type tweaks struct {
	FlightContext domain.FlightContext `json:"flight_context"`
}

// RunTourGuide sends a context-augmented prompt to the tour guide flow and
// returns the extracted reply text.
func (c *FlowClient) RunTourGuide(ctx context.Context, input string, fc domain.FlightContext, sessionID string) (string, error) {
	payload := runPayload{
		InputValue: input,
		OutputType: "chat",
		InputType:  "chat",
		SessionID:  sessionID,
		Tweaks:     &tweaks{FlightContext: fc},
	}

	env, err := c.runFlow(ctx, c.cfg.TourGuideFlowID, payload)
	if err != nil {
		return "", err
	}

	text, ok := ExtractText(env)
	if !ok {
		return "", fmt.Errorf("tour guide flow %s: %w", c.cfg.TourGuideFlowID, ErrNoReplyText)
	}
	return text, nil
}

// FlightInfo fetches a raw flight-state payload from the flight info flow.
// The returned map is unvalidated; callers normalize it.
func (c *FlowClient) FlightInfo(ctx context.Context) (map[string]any, error) {
	if c.cfg.BaseURL == "" || c.cfg.FlightInfoFlowID == "" {
		return nil, fmt.Errorf("flight info flow not configured")
	}

	payload := runPayload{OutputType: "chat", InputType: "chat"}
	env, err := c.runFlow(ctx, c.cfg.FlightInfoFlowID, payload)
	if err != nil {
		return nil, err
	}

	text, ok := ExtractText(env)
	if !ok {
		return nil, fmt.Errorf("flight info flow %s: %w", c.cfg.FlightInfoFlowID, ErrNoReplyText)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("parse flight info payload: %w", err)
	}
	return raw, nil
}

func (c *FlowClient) runFlow(ctx context.Context, flowID string, payload runPayload) (*flowEnvelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal flow payload: %w", err)
	}

	url := c.cfg.BaseURL + "/api/v1/run/" + flowID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build flow request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("x-api-key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("flow request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Debug("Failed to close flow response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Read a bounded amount for logging; the body is untrusted.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Warn("Flow returned non-success status", "flow_id", flowID, "status", resp.StatusCode, "body", string(snippet))
		return nil, fmt.Errorf("flow %s: unexpected status %d", flowID, resp.StatusCode)
	}

	var env flowEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode flow response: %w", err)
	}
	return &env, nil
}
