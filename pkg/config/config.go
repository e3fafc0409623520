// Package config provides the configuration for the Taboola tap.
//
// TapConfig carries the required Backstage credentials together with
// sections that tune the HTTP client, state persistence and output:
//   - Timeouts: Connection and request timeouts
//   - Reliability: Retry logic, circuit breaker, rate limiting
//   - Observability: Logging, metrics and tracing
//   - State: Where bookmarks are persisted
//   - Output: Where RECORD and STATE messages are written
//
// Example usage:
//
//	cfg := config.NewTapConfig()
//	cfg.ClientID = "id"
//	cfg.ClientSecret = "secret"
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"strings"
	"time"

	"github.com/ajitpratap0/taboola-tap/pkg/errors"
)

const (
	// DefaultBaseURL is the Backstage REST API root
	DefaultBaseURL = "https://backstage.taboola.com/backstage/api/1.0"
	// DefaultAuthURL is the Backstage OAuth token endpoint
	DefaultAuthURL = "https://backstage.taboola.com/backstage/oauth/token"
	// DateLayout is the calendar date format used by report cursors and bookmarks
	DateLayout = "2006-01-02"
)

// TapConfig is the full configuration of a tap run.
type TapConfig struct {
	// ClientID is the Backstage OAuth client id
	ClientID string `yaml:"client_id" json:"client_id"`
	// ClientSecret is the Backstage OAuth client secret
	ClientSecret string `yaml:"client_secret" json:"client_secret"`
	// StartDate is the earliest date to sync (RFC 3339 or YYYY-MM-DD)
	StartDate string `yaml:"start_date" json:"start_date"`
	// ReportLookbackDays is used for day reports when StartDate is empty
	ReportLookbackDays int `yaml:"report_lookback_days" json:"report_lookback_days"`
	// AccountIDs restricts the accounts stream to these account ids
	AccountIDs []string `yaml:"account_ids" json:"account_ids"`
	// Streams selects the streams to emit; empty means all
	Streams []string `yaml:"streams" json:"streams"`
	// BaseURL overrides the API root
	BaseURL string `yaml:"base_url" json:"base_url"`
	// AuthURL overrides the token endpoint
	AuthURL string `yaml:"auth_url" json:"auth_url"`
	// UserAgent is sent with every API request
	UserAgent string `yaml:"user_agent" json:"user_agent"`

	Timeouts      TimeoutConfig       `yaml:"timeouts" json:"timeouts"`
	Reliability   ReliabilityConfig   `yaml:"reliability" json:"reliability"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
	State         StateConfig         `yaml:"state" json:"state"`
	Output        OutputConfig        `yaml:"output" json:"output"`
}

// TimeoutConfig contains all timeout-related settings.
type TimeoutConfig struct {
	// Request timeout for a single API call
	Request time.Duration `yaml:"request" json:"request"`
	// Connection timeout for establishing connections
	Connection time.Duration `yaml:"connection" json:"connection"`
	// Idle timeout before closing inactive connections
	Idle time.Duration `yaml:"idle" json:"idle"`
	// KeepAlive interval for connection health checks
	KeepAlive time.Duration `yaml:"keep_alive" json:"keep_alive"`
}

// ReliabilityConfig contains retry, rate limiting and circuit breaker settings.
type ReliabilityConfig struct {
	// RetryAttempts sets maximum retry attempts for transient failures
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts"`
	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
	// RetryMultiplier increases delay exponentially
	RetryMultiplier float64 `yaml:"retry_multiplier" json:"retry_multiplier"`
	// MaxRetryDelay caps the maximum retry delay
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" json:"max_retry_delay"`
	// CircuitBreaker enables the circuit breaker
	CircuitBreaker bool `yaml:"circuit_breaker" json:"circuit_breaker"`
	// FailureThreshold opens the breaker after this many consecutive failures
	FailureThreshold int `yaml:"failure_threshold" json:"failure_threshold"`
	// RateLimitPerSec limits requests per second (0 = unlimited)
	RateLimitPerSec int `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec"`
}

// ObservabilityConfig contains logging, metrics and tracing settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogEncoding is json or console
	LogEncoding string `yaml:"log_encoding" json:"log_encoding"`
	// MetricsAddr serves Prometheus metrics when set (e.g. ":9090")
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	// EnableTracing activates span export
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
}

// NewTapConfig creates a TapConfig with defaults. Credentials must be set
// by the caller.
func NewTapConfig() *TapConfig {
	return &TapConfig{
		ReportLookbackDays: 30,
		BaseURL:            DefaultBaseURL,
		AuthURL:            DefaultAuthURL,
		UserAgent:          "tap-taboola",
		Timeouts: TimeoutConfig{
			Request:    60 * time.Second,
			Connection: 10 * time.Second,
			Idle:       90 * time.Second,
			KeepAlive:  30 * time.Second,
		},
		Reliability: ReliabilityConfig{
			RetryAttempts:    3,
			RetryDelay:       time.Second,
			RetryMultiplier:  2.0,
			MaxRetryDelay:    30 * time.Second,
			CircuitBreaker:   true,
			FailureThreshold: 5,
			RateLimitPerSec:  10,
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogEncoding:       "json",
			TracingSampleRate: 1.0,
		},
		State: StateConfig{
			Backend: "file",
			Path:    "state.json",
			Table:   "tap_state",
			TapID:   "tap-taboola",
		},
		Output: OutputConfig{
			Destination: "jsonl",
			Path:        "-",
			Compression: "none",
		},
	}
}

// Validate checks required fields and value ranges. Missing credentials are
// reported before any network activity happens.
func (c *TapConfig) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return errors.New(errors.ErrorTypeConfig, "client_id is required").WithDetail("field", "client_id")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		return errors.New(errors.ErrorTypeConfig, "client_secret is required").WithDetail("field", "client_secret")
	}
	if _, _, err := c.StartTime(); err != nil {
		return err
	}
	if c.BaseURL == "" {
		return errors.New(errors.ErrorTypeConfig, "base_url is required")
	}
	if c.AuthURL == "" {
		return errors.New(errors.ErrorTypeConfig, "auth_url is required")
	}
	if c.ReportLookbackDays < 0 {
		return errors.New(errors.ErrorTypeConfig, "report_lookback_days cannot be negative")
	}
	if c.Reliability.RetryAttempts < 0 {
		return errors.New(errors.ErrorTypeConfig, "retry_attempts cannot be negative")
	}
	if c.Reliability.RateLimitPerSec < 0 {
		return errors.New(errors.ErrorTypeConfig, "rate_limit_per_sec cannot be negative")
	}
	if err := c.State.Validate(); err != nil {
		return err
	}
	return c.Output.Validate()
}

// StartTime parses StartDate. The boolean is false when no start date is set.
func (c *TapConfig) StartTime() (time.Time, bool, error) {
	s := strings.TrimSpace(c.StartDate)
	if s == "" {
		return time.Time{}, false, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true, nil
		}
	}
	return time.Time{}, false, errors.Newf(errors.ErrorTypeConfig, "start_date %q is not a valid date", s).
		WithDetail("field", "start_date")
}

// IsRateLimited returns true if rate limiting is enabled
func (r *ReliabilityConfig) IsRateLimited() bool {
	return r.RateLimitPerSec > 0
}
