package telemetry

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/skytour/tourpilot/internal/domain"
)

// touchdownAltitude is the altitude below which a descending flight is
// considered back on the ground.
const touchdownAltitude = 100

// Generator produces a plausible, slowly-evolving telemetry sequence so the
// rest of the system can run without a live simulator. It is a state machine
// keyed by wall-clock delta: a bounded random walk on heading, speed, and
// vertical speed, altitude integrated from vertical speed, and monotonic-ish
// fuel depletion.
type Generator struct {
	mu    sync.Mutex
	state domain.Telemetry
	last  time.Time
	rng   *rand.Rand
}

// NewGenerator creates a generator starting from the default airborne state.
func NewGenerator() *Generator {
	return NewGeneratorWithSeed(rand.Uint64(), rand.Uint64())
}

// NewGeneratorWithSeed creates a generator with a deterministic random walk,
// used by tests.
func NewGeneratorWithSeed(seed1, seed2 uint64) *Generator {
	g := &Generator{
		rng: rand.New(rand.NewPCG(seed1, seed2)),
	}
	g.Reset()
	return g
}

func initialState() domain.Telemetry {
	return domain.Telemetry{
		Altitude:       2000,
		Airspeed:       150,
		GroundSpeed:    150,
		Speed:          150,
		Heading:        270,
		Latitude:       47.4502,
		Longitude:      -122.3088,
		Throttle:       75,
		FuelPercentage: 85,
		EngineRPM:      2400,
		Aircraft:       defaultAircraft,
	}
}

// Reset restarts the generator from the default state, as for a new flight.
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = initialState()
	g.last = time.Time{}
}

// SeedFrom resumes the walk from a last-known-real snapshot so a fallback
// from live to synthetic data mid-session has no visible discontinuity.
func (g *Generator) SeedFrom(t domain.Telemetry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = t
	g.last = time.Time{}
}

// Next advances the walk to now and returns the new snapshot.
func (g *Generator) Next(now time.Time) domain.Telemetry {
	g.mu.Lock()
	defer g.mu.Unlock()

	delta := 0.0
	if !g.last.IsZero() {
		delta = now.Sub(g.last).Seconds()
	}
	g.last = now

	st := &g.state

	if st.OnGround {
		st.Airspeed = math.Max(0, st.Airspeed-delta*5)
		st.Altitude = 0
		st.VerticalSpeed = 0
	} else {
		st.Altitude += st.VerticalSpeed * delta / 60
		st.Altitude = clamp(st.Altitude, 0, 45000)
		if st.Altitude < touchdownAltitude {
			st.OnGround = true
			st.Gear = true
		}
	}

	st.Heading = math.Mod(st.Heading+g.jitter(2)+360, 360)
	st.Pitch = math.Sin(float64(now.UnixMilli())/3000)*2 + g.jitter(0.5)
	st.Bank = math.Sin(float64(now.UnixMilli())/5000)*5 + g.jitter(1)

	st.Airspeed = clamp(st.Airspeed+g.jitter(2), 0, 350)
	st.GroundSpeed = clamp(st.Airspeed+g.jitter(20), 0, 400)
	st.VerticalSpeed = clamp(st.VerticalSpeed+g.jitter(100), -2000, 2000)

	headingRad := st.Heading * math.Pi / 180
	st.Latitude += math.Sin(headingRad) * st.Airspeed * delta / 3600000
	st.Longitude += math.Cos(headingRad) * st.Airspeed * delta / 3600000

	st.EngineRPM = 2200 + st.Throttle*4 + g.jitter(50)
	st.FuelPercentage = math.Max(0, st.FuelPercentage-delta*0.01)
	st.AltitudeAGL = math.Max(0, st.Altitude-308)
	st.Speed = st.GroundSpeed
	if st.Speed == 0 {
		st.Speed = st.Airspeed
	}

	return *st
}

// jitter returns a uniform value in (-scale/2, scale/2).
func (g *Generator) jitter(scale float64) float64 {
	return (g.rng.Float64() - 0.5) * scale
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
