// Package relay supports an optional YAML configuration file with ${VAR}
// environment expansion, layered over the built-in defaults.
package relay

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	Port               string   `yaml:"port"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	PingTimeoutSeconds int      `yaml:"ping_timeout_seconds"`
	MaxMessageSize     int64    `yaml:"max_message_size"`
	SetupPolicy        string   `yaml:"setup_policy"`
	RateLimit          struct {
		Burst                 int `yaml:"burst"`
		RefillIntervalSeconds int `yaml:"refill_interval_seconds"`
	} `yaml:"rate_limit"`
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`
}

// LoadConfigFile reads a YAML config file, expands ${VAR} environment
// variables, and returns the result layered over the defaults.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var fc fileConfig
	if err := yaml.Unmarshal([]byte(expanded), &fc); err != nil {
		return Config{}, fmt.Errorf("parse config yaml: %w", err)
	}

	cfg := Config{
		Port:           fc.Port,
		AllowedOrigins: fc.AllowedOrigins,
		MaxMessageSize: fc.MaxMessageSize,
		SetupPolicy:    parseSetupPolicy(fc.SetupPolicy, ""),
	}
	if fc.PingTimeoutSeconds > 0 {
		cfg.PingTimeout = secondsDuration(fc.PingTimeoutSeconds)
	}
	if fc.RateLimit.Burst > 0 {
		cfg.RateLimit.Burst = fc.RateLimit.Burst
	}
	if fc.RateLimit.RefillIntervalSeconds > 0 {
		cfg.RateLimit.RefillInterval = secondsDuration(fc.RateLimit.RefillIntervalSeconds)
	}
	if fc.ShutdownTimeoutSeconds > 0 {
		cfg.ShutdownTimeout = secondsDuration(fc.ShutdownTimeoutSeconds)
	}

	return cfg.withDefaults(), nil
}
