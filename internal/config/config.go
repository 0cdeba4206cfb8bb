// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/skytour/tourpilot/internal/pilot"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	Flow        FlowConfig
	Telemetry   TelemetryConfig
}

// FlowConfig points at the upstream conversational flow service.
type FlowConfig struct {
	BaseURL          string
	APIKey           string
	TourGuideFlowID  string
	FlightInfoFlowID string
	RequestTimeout   time.Duration
}

// TelemetryConfig controls the flight-info push loop.
type TelemetryConfig struct {
	PollInterval time.Duration
	ForceMock    bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "3001"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/tours.db"),
		Flow: FlowConfig{
			BaseURL:          strings.TrimRight(getEnv("LANGFLOW_BASE_URL", ""), "/"),
			APIKey:           getEnv("LANGFLOW_API_KEY", ""),
			TourGuideFlowID:  getEnv("TOUR_GUIDE_FLOW_ID", ""),
			FlightInfoFlowID: getEnv("FLIGHT_INFO_FLOW_ID", ""),
			RequestTimeout:   getEnvDuration("LANGFLOW_TIMEOUT", pilot.DefaultRequestTimeout),
		},
		Telemetry: TelemetryConfig{
			PollInterval: getEnvDuration("FLIGHT_INFO_POLL_INTERVAL", time.Second),
			ForceMock:    getEnvBool("FORCE_MOCK_TELEMETRY", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Flow.RequestTimeout <= 0 {
		return fmt.Errorf("LANGFLOW_TIMEOUT must be > 0")
	}
	if c.Telemetry.PollInterval <= 0 {
		return fmt.Errorf("FLIGHT_INFO_POLL_INTERVAL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// FlowClientConfig maps the flow settings onto the upstream client.
func (c *Config) FlowClientConfig() pilot.FlowConfig {
	return pilot.FlowConfig{
		BaseURL:          c.Flow.BaseURL,
		APIKey:           c.Flow.APIKey,
		TourGuideFlowID:  c.Flow.TourGuideFlowID,
		FlightInfoFlowID: c.Flow.FlightInfoFlowID,
		RequestTimeout:   c.Flow.RequestTimeout,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// Bare numbers are read as seconds.
	if n, err := strconv.Atoi(value); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}
