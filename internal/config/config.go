package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DirName is the per-user directory holding the session and config files.
	DirName = ".secretai-devportal-cli"
	// FileName is the optional YAML config file inside Dir.
	FileName = "config.yml"

	// DefaultServerURL is the service used when nothing overrides it.
	DefaultServerURL = "https://secretai.scrtlabs.com"
	// DefaultRegistry is assumed when registry credentials are given without a registry.
	DefaultRegistry = "docker.io"

	// Environment overrides
	EnvServerURL = "SERVER_BASE_URL"
	EnvAPIKey    = "SECRETVM_API_KEY"
)

// Config is the resolved client configuration.
type Config struct {
	ServerURL       string `yaml:"server_url"`
	LogLevel        string `yaml:"log_level"`
	DefaultRegistry string `yaml:"default_registry"`
}

// Dir returns the per-user configuration directory.
func Dir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return filepath.Join(os.TempDir(), DirName)
	}
	return filepath.Join(homeDir, DirName)
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(Dir(), FileName)
}

// Load reads the config file at path (DefaultPath when empty), applies
// defaults and then environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	applyDefaults(cfg)
	applyEnv(cfg)

	return cfg, nil
}

// Default returns the configuration used when no file can be read:
// built-in defaults with environment overrides applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	if cfg.DefaultRegistry == "" {
		cfg.DefaultRegistry = DefaultRegistry
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvServerURL); v != "" {
		cfg.ServerURL = v
	}
	cfg.ServerURL = strings.TrimSuffix(cfg.ServerURL, "/")
}
