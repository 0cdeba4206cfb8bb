// Package domain contains core domain types for the tour pilot service.
package domain

// Telemetry is the canonical flight-state record. Every value is populated
// during normalization; raw frames from a simulator adapter or a synthetic
// generator are never stored or forwarded in their source shape.
type Telemetry struct {
	Altitude       float64 `json:"altitude"`
	AltitudeAGL    float64 `json:"altitudeAGL"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Heading        float64 `json:"heading"`
	Airspeed       float64 `json:"airspeed"`
	GroundSpeed    float64 `json:"groundSpeed"`
	Speed          float64 `json:"speed"`
	VerticalSpeed  float64 `json:"verticalSpeed"`
	Pitch          float64 `json:"pitch"`
	Bank           float64 `json:"bank"`
	Throttle       float64 `json:"throttle"`
	Gear           bool    `json:"gear"`
	Flaps          float64 `json:"flaps"`
	FuelPercentage float64 `json:"fuelPercentage"`
	EngineRPM      float64 `json:"engineRPM"`
	Aircraft       string  `json:"aircraft"`
	OnGround       bool    `json:"onGround"`
}

// FlightContext is the telemetry subset forwarded to the upstream agent flow
// as structured side-channel context.
type FlightContext struct {
	Altitude  float64 `json:"altitude"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Heading   float64 `json:"heading"`
	Speed     float64 `json:"speed"`
	Aircraft  string  `json:"aircraft"`
	OnGround  bool    `json:"onGround"`
}

// FlightContext extracts the upstream-facing subset of a telemetry snapshot.
func (t Telemetry) FlightContext() FlightContext {
	return FlightContext{
		Altitude:  t.Altitude,
		Latitude:  t.Latitude,
		Longitude: t.Longitude,
		Heading:   t.Heading,
		Speed:     t.Speed,
		Aircraft:  t.Aircraft,
		OnGround:  t.OnGround,
	}
}
