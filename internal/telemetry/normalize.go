// Package telemetry converts heterogeneous flight-state payloads into the
// canonical schema and synthesizes plausible data when no live source exists.
package telemetry

import (
	"strconv"
	"strings"

	"github.com/skytour/tourpilot/internal/domain"
)

const (
	defaultFuelPercentage = 85
	defaultAircraft       = "Cessna 172"
)

// Normalize coerces an arbitrary telemetry-shaped payload into a canonical
// record. It is a total function: malformed or empty input yields all
// defaults, never an error. Frames arrive from best-effort sources at high
// frequency, so one bad field must not reject the whole frame.
func Normalize(raw map[string]any) domain.Telemetry {
	t := domain.Telemetry{
		Altitude:       number(raw, "altitude"),
		AltitudeAGL:    number(raw, "altitudeAGL"),
		Latitude:       number(raw, "latitude"),
		Longitude:      number(raw, "longitude"),
		Heading:        number(raw, "heading"),
		Airspeed:       number(raw, "airspeed"),
		GroundSpeed:    number(raw, "groundSpeed"),
		VerticalSpeed:  number(raw, "verticalSpeed"),
		Pitch:          number(raw, "pitch"),
		Throttle:       number(raw, "throttle"),
		Gear:           boolean(raw, "gear"),
		Flaps:          number(raw, "flaps"),
		FuelPercentage: defaultFuelPercentage,
		Aircraft:       defaultAircraft,
		OnGround:       boolean(raw, "onGround"),
	}

	// Bank and roll are the same axis across source vocabularies.
	t.Bank = number(raw, "bank")
	if t.Bank == 0 {
		t.Bank = number(raw, "roll")
	}

	// Ground speed is the preferred speed; indicated airspeed is the fallback.
	t.Speed = number(raw, "speed")
	if t.Speed == 0 {
		t.Speed = t.GroundSpeed
	}
	if t.Speed == 0 {
		t.Speed = t.Airspeed
	}

	if v := number(raw, "fuelPercentage"); v != 0 {
		t.FuelPercentage = v
	} else if fuel, ok := raw["fuel"].(map[string]any); ok {
		if v := number(fuel, "percentage"); v != 0 {
			t.FuelPercentage = v
		}
	}

	t.EngineRPM = number(raw, "engineRPM")
	if t.EngineRPM == 0 {
		if engine, ok := raw["engine"].(map[string]any); ok {
			t.EngineRPM = number(engine, "rpm")
		}
	}

	if s, ok := raw["aircraft"].(string); ok && strings.TrimSpace(s) != "" {
		t.Aircraft = s
	}

	return t
}

func lookup(raw map[string]any, key string) any {
	if raw == nil {
		return nil
	}
	return raw[key]
}

func number(raw map[string]any, key string) float64 {
	v, _ := coerceNumber(lookup(raw, key))
	return v
}

func boolean(raw map[string]any, key string) bool {
	switch v := lookup(raw, key).(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	default:
		return false
	}
}

// coerceNumber accepts the numeric shapes a decoded JSON payload can carry,
// including numbers serialized as strings.
func coerceNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
