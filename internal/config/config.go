package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all coalesce configuration.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Database    DatabaseConfig    `toml:"database"`
	Oracle      OracleConfig      `toml:"oracle"`
	Convergence ConvergenceConfig `toml:"convergence"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// OracleConfig selects and configures the similarity oracle provider.
type OracleConfig struct {
	Provider     string `toml:"provider"` // "anthropic", "ollama"
	Model        string `toml:"model"`
	OllamaURL    string `toml:"ollama_url"`
	OllamaModel  string `toml:"ollama_model"`
	AnthropicKey string `toml:"anthropic_key"`
}

// ConvergenceConfig tunes the convergence engines and scheduler.
type ConvergenceConfig struct {
	Threshold     float64 `toml:"threshold"`      // reactive similarity threshold
	Probability   float64 `toml:"probability"`    // predictive probability threshold
	IntervalHours float64 `toml:"interval_hours"` // minimum hours between scheduled runs
	CheckMinutes  int     `toml:"check_minutes"`  // scheduler tick cadence
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37791,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Oracle: OracleConfig{
			Provider: "anthropic",
			Model:    "claude-haiku-4-5-20251001",
		},
		Convergence: ConvergenceConfig{
			Threshold:     0.85,
			Probability:   0.7,
			IntervalHours: 24,
			CheckMinutes:  60,
		},
	}
}

// DefaultPath returns the default config file path: ~/.coalesce/config.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".coalesce", "config.toml"), nil
}

// Load reads a TOML config file over the defaults. A missing file is not an
// error; the defaults are returned. ANTHROPIC_API_KEY overrides the key from
// the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.Oracle.AnthropicKey = key
	}

	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
