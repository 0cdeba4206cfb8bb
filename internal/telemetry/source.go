package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/skytour/tourpilot/internal/domain"
)

// Provenance tags on pushed telemetry frames.
const (
	SourceMock = "mock"
	SourceReal = "real"
)

// Source yields normalized telemetry snapshots tagged with their provenance.
// Reads never fail; a degraded live source degrades to synthetic frames.
type Source interface {
	Read(ctx context.Context) (domain.Telemetry, string)
}

// FlightInfoClient fetches a raw flight-state payload from the upstream flow.
type FlightInfoClient interface {
	FlightInfo(ctx context.Context) (map[string]any, error)
}

// MockSource serves purely synthetic telemetry.
type MockSource struct {
	gen *Generator
}

// NewMockSource creates a source backed by the given generator.
func NewMockSource(gen *Generator) *MockSource {
	return &MockSource{gen: gen}
}

// Read returns the next synthetic frame.
func (s *MockSource) Read(_ context.Context) (domain.Telemetry, string) {
	return s.gen.Next(time.Now()), SourceMock
}

// FlowSource reads live telemetry from the upstream flight-info flow and
// falls back to the synthetic generator when the flow is unavailable. The
// generator is re-seeded from every successful live frame so a mid-session
// fallback continues from the last real state instead of jumping.
type FlowSource struct {
	client FlightInfoClient
	gen    *Generator
}

// NewFlowSource creates a live source with synthetic fallback.
func NewFlowSource(client FlightInfoClient, gen *Generator) *FlowSource {
	return &FlowSource{client: client, gen: gen}
}

// Read returns the latest normalized frame and its provenance.
func (s *FlowSource) Read(ctx context.Context) (domain.Telemetry, string) {
	raw, err := s.client.FlightInfo(ctx)
	if err != nil {
		slog.Debug("Flight info flow unavailable, serving synthetic telemetry", "error", err)
		return s.gen.Next(time.Now()), SourceMock
	}

	t := Normalize(raw)
	s.gen.SeedFrom(t)
	return t, SourceReal
}
