package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Config is the root configuration, loaded from ttsgate.toml with
// TTSGATE_* environment overrides on top.
type Config struct {
	Server ServerConfig `toml:"server"`
	Engine EngineConfig `toml:"engine"`
	Piper  PiperConfig  `toml:"piper"`
	Coqui  CoquiConfig  `toml:"coqui"`
	Store  StoreConfig  `toml:"store"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Host            string `toml:"host" env:"TTSGATE_HOST"`
	Port            int    `toml:"port" env:"TTSGATE_PORT"`
	APIKey          string `toml:"api_key" env:"TTSGATE_API_KEY"`
	RequestsPerMin  int    `toml:"requests_per_minute" env:"TTSGATE_REQUESTS_PER_MINUTE"`
	ShutdownTimeout string `toml:"shutdown_timeout" env:"TTSGATE_SHUTDOWN_TIMEOUT"`
}

// EngineConfig selects the synthesis backend.
type EngineConfig struct {
	Backend      string  `toml:"backend" env:"TTSGATE_ENGINE"`
	DefaultVoice string  `toml:"default_voice" env:"TTSGATE_DEFAULT_VOICE"`
	Speed        float32 `toml:"speed" env:"TTSGATE_SPEED"`
}

// PiperConfig holds settings for the Piper subprocess backend.
type PiperConfig struct {
	BinaryPath string `toml:"binary_path" env:"TTSGATE_PIPER_BINARY"`
	ModelDir   string `toml:"model_dir" env:"TTSGATE_PIPER_MODEL_DIR"`
}

// CoquiConfig holds settings for the Coqui HTTP server backend.
type CoquiConfig struct {
	ServerURL string `toml:"server_url" env:"TTSGATE_COQUI_URL"`
	Timeout   string `toml:"timeout" env:"TTSGATE_COQUI_TIMEOUT"`
}

// StoreConfig holds the transient clip store settings.
type StoreConfig struct {
	ClipDir       string `toml:"clip_dir" env:"TTSGATE_CLIP_DIR"`
	Retention     string `toml:"retention" env:"TTSGATE_RETENTION"`
	PurgeInterval string `toml:"purge_interval" env:"TTSGATE_PURGE_INTERVAL"`
}

const (
	BackendPiper = "piper"
	BackendCoqui = "coqui"
)

// Default returns the built-in configuration.
func Default() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5002,
			RequestsPerMin:  120,
			ShutdownTimeout: "10s",
		},
		Engine: EngineConfig{
			Backend:      BackendPiper,
			DefaultVoice: "en_US-amy-medium",
			Speed:        1.0,
		},
		Piper: PiperConfig{
			BinaryPath: "",
			ModelDir:   filepath.Join(dataDir, "models"),
		},
		Coqui: CoquiConfig{
			ServerURL: "http://localhost:5002",
			Timeout:   "60s",
		},
		Store: StoreConfig{
			ClipDir:       filepath.Join(dataDir, "clips"),
			Retention:     "1h",
			PurgeInterval: "5m",
		},
	}
}

// Load reads the config file at path (if it exists), applies environment
// overrides and validates the result. An empty path means defaults plus
// environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures: port range, known backend, parsable durations.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.Server.Port)
	}
	if c.Engine.Backend != BackendPiper && c.Engine.Backend != BackendCoqui {
		return fmt.Errorf("unknown engine backend %q: must be %q or %q", c.Engine.Backend, BackendPiper, BackendCoqui)
	}
	if c.Engine.Speed <= 0 {
		return fmt.Errorf("invalid speed %.2f: must be greater than zero", c.Engine.Speed)
	}
	if c.Server.RequestsPerMin < 0 {
		return fmt.Errorf("invalid requests_per_minute %d: must not be negative", c.Server.RequestsPerMin)
	}
	if d := c.RetentionWindow(); d <= 0 {
		return fmt.Errorf("invalid retention %q: must be a positive duration", c.Store.Retention)
	}
	if d := c.PurgeInterval(); d <= 0 {
		return fmt.Errorf("invalid purge_interval %q: must be a positive duration", c.Store.PurgeInterval)
	}
	return nil
}

// ListenAddr returns the host:port the API server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// RetentionWindow returns the clip retention window as a duration.
// Returns 0 for unparsable values so Validate can reject them.
func (c *Config) RetentionWindow() time.Duration {
	d, err := time.ParseDuration(c.Store.Retention)
	if err != nil {
		return 0
	}
	return d
}

// PurgeInterval returns the janitor sweep interval as a duration.
func (c *Config) PurgeInterval() time.Duration {
	d, err := time.ParseDuration(c.Store.PurgeInterval)
	if err != nil {
		return 0
	}
	return d
}

// ShutdownTimeout returns the graceful shutdown deadline for the API server.
func (c *Config) ShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// CoquiTimeout returns the per-request timeout for the Coqui HTTP backend.
func (c *Config) CoquiTimeout() time.Duration {
	d, err := time.ParseDuration(c.Coqui.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "ttsgate.toml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ttsgate"
	}
	return filepath.Join(home, ".ttsgate")
}
