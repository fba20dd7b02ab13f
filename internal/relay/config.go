// Package relay provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the relay service.
package relay

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// SetupPolicy controls what happens when a connection that already completed
// setup sends another setup with a different identity.
type SetupPolicy string

const (
	// SetupPolicyMulti keeps the connection joined to every room it set up.
	// This mirrors the behavior existing clients were written against.
	SetupPolicyMulti SetupPolicy = "multi"

	// SetupPolicySingle leaves the previous identity's room before joining
	// the new one, so a connection is only ever in one identity room.
	SetupPolicySingle SetupPolicy = "single"
)

// RateLimitConfig defines the parameters for per-connection event rate
// limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the relay configuration, including transport liveness and
// security controls.
type Config struct {
	Port           string
	AllowedOrigins []string

	// PingTimeout is how long a connection may stay silent before it is
	// presumed dead. Pings go out at 90% of this interval.
	PingTimeout time.Duration

	MaxMessageSize  int64
	SendBuffer      int
	SetupPolicy     SetupPolicy
	RateLimit       RateLimitConfig
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the configuration the service ships with. The port
// and origins match what the Text front end expects.
func DefaultConfig() Config {
	return Config{
		Port: ":5000",
		AllowedOrigins: []string{
			"https://text-mee.onrender.com",
			"http://localhost:3000",
		},
		PingTimeout:    60 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     256,
		SetupPolicy:    SetupPolicyMulti,
		RateLimit: RateLimitConfig{
			Burst:          20,
			RefillInterval: time.Second,
		},
		ShutdownTimeout: 5 * time.Second,
	}
}

// withDefaults fills in zero or invalid fields so a partially populated
// Config is always safe to run with.
func (c Config) withDefaults() Config {
	def := DefaultConfig()

	c.Port = normalizePort(c.Port)
	if c.Port == "" {
		c.Port = def.Port
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = append([]string(nil), def.AllowedOrigins...)
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = def.PingTimeout
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = def.SendBuffer
	}
	if c.SetupPolicy != SetupPolicySingle {
		c.SetupPolicy = SetupPolicyMulti
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = def.RateLimit.Burst
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	return c
}

// ConfigFromEnv builds a Config from environment variables, falling back to
// defaults for anything unset.
func ConfigFromEnv() Config {
	return ApplyEnv(DefaultConfig())
}

// ApplyEnv layers environment variable overrides onto the given base
// configuration, so env vars win over a config file and the file wins over
// defaults.
func ApplyEnv(cfg Config) Config {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = normalizePort(port)
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}
	if v := os.Getenv("PING_TIMEOUT_SECONDS"); v != "" {
		cfg.PingTimeout = parseSeconds(v, cfg.PingTimeout)
	}
	if v := os.Getenv("MAX_MESSAGE_SIZE"); v != "" {
		cfg.MaxMessageSize = parseInt64(v, cfg.MaxMessageSize)
	}
	if v := os.Getenv("SETUP_POLICY"); v != "" {
		cfg.SetupPolicy = parseSetupPolicy(v, cfg.SetupPolicy)
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		cfg.RateLimit.Burst = parseInt(v, cfg.RateLimit.Burst)
	}
	if v := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); v != "" {
		cfg.RateLimit.RefillInterval = parseSeconds(v, cfg.RateLimit.RefillInterval)
	}

	return cfg.withDefaults()
}

// normalizePort accepts both "5000" and ":5000" forms; the deployment
// platform supplies the bare number.
func normalizePort(port string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		return ""
	}
	if !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseSetupPolicy(value string, fallback SetupPolicy) SetupPolicy {
	switch SetupPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case SetupPolicyMulti:
		return SetupPolicyMulti
	case SetupPolicySingle:
		return SetupPolicySingle
	}
	return fallback
}

func parseInt(value string, fallback int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return fallback
}

func parseInt64(value string, fallback int64) int64 {
	if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed > 0 {
		return parsed
	}
	return fallback
}

func parseSeconds(value string, fallback time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return secondsDuration(seconds)
	}
	return fallback
}

func secondsDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
