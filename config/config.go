// Package config loads service configuration from a YAML file with sensible
// defaults and environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "90s" or "2m" parse
// directly into config fields.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// DispatchConfig bounds one chat turn.
type DispatchConfig struct {
	MaxMessageLength  int      `yaml:"max_message_length"`
	MaxResponseLength int      `yaml:"max_response_length"`
	ExecuteTimeout    Duration `yaml:"execute_timeout"`
}

// SessionsConfig bounds the in-memory session store.
type SessionsConfig struct {
	MaxSessions int      `yaml:"max_sessions"`
	IdleTTL     Duration `yaml:"idle_ttl"`
}

// ModelConfig selects and tunes the generation backend.
type ModelConfig struct {
	Provider    string  `yaml:"provider"` // anthropic, openai or mock
	Name        string  `yaml:"name"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
}

// LoggingConfig selects log verbosity and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Sessions SessionsConfig `yaml:"sessions"`
	Model    ModelConfig    `yaml:"model"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Default returns the baseline configuration used when no file is supplied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			AllowedOrigins: []string{"*"},
		},
		Dispatch: DispatchConfig{
			MaxMessageLength:  2000,
			MaxResponseLength: 10000,
			ExecuteTimeout:    Duration(120 * time.Second),
		},
		Sessions: SessionsConfig{
			MaxSessions: 1000,
			IdleTTL:     0,
		},
		Model: ModelConfig{
			Provider:    "mock",
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults. Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays secrets and deploy-time settings that should not live in
// the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("DATAR_MODEL_API_KEY"); v != "" {
		c.Model.APIKey = v
	}
	if v := os.Getenv("DATAR_HOST"); v != "" {
		c.Server.Host = v
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Dispatch.MaxMessageLength <= 0 {
		return fmt.Errorf("dispatch.max_message_length must be positive")
	}
	if c.Dispatch.MaxResponseLength <= 0 {
		return fmt.Errorf("dispatch.max_response_length must be positive")
	}
	switch c.Model.Provider {
	case "anthropic", "openai", "mock":
	default:
		return fmt.Errorf("unknown model.provider %q", c.Model.Provider)
	}
	return nil
}
