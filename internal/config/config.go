// Package config loads bargo's optional per-project settings from
// .bargo.yaml and the deployment secrets from dotenv files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the project config file, looked up at the project root.
const FileName = ".bargo.yaml"

// Config holds all bargo configuration.
type Config struct {
	// External tool executables
	Tools ToolsConfig `yaml:"tools"`

	// Backend defaults
	Cairo CairoConfig `yaml:"cairo"`
	EVM   EVMConfig   `yaml:"evm"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Terminal output
	UX UXConfig `yaml:"ux"`

	// bargo watch
	Watch WatchConfig `yaml:"watch"`
}

// ToolsConfig names the executable used for each external tool. Values may
// be bare names resolved via PATH or absolute paths.
type ToolsConfig struct {
	Nargo   string `yaml:"nargo"`
	BB      string `yaml:"bb"`
	Garaga  string `yaml:"garaga"`
	Starkli string `yaml:"starkli"`
	Forge   string `yaml:"forge"`
	Cast    string `yaml:"cast"`
}

// CairoConfig configures the Starknet backend.
type CairoConfig struct {
	Network     string `yaml:"network"`      // sepolia, mainnet, devnet
	AutoDeclare bool   `yaml:"auto_declare"` // declare before deploy unless a class hash is known
	SecretsFile string `yaml:"secrets_file"` // dotenv file holding STARKNET_* and RPC urls
}

// EVMConfig configures the EVM backend.
type EVMConfig struct {
	Network string `yaml:"network"`
	EnvFile string `yaml:"env_file"` // dotenv file holding RPC_URL and PRIVATE_KEY
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories,omitempty"`
	Audit      bool            `yaml:"audit"` // append stage/tool events to target/.bargo/audit.jsonl
}

// UXConfig configures terminal output.
type UXConfig struct {
	Color string `yaml:"color"` // auto, always, never
}

// WatchConfig configures bargo watch.
type WatchConfig struct {
	Debounce string   `yaml:"debounce"`
	Paths    []string `yaml:"paths,omitempty"` // extra paths, relative to the project root
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Tools: ToolsConfig{
			Nargo:   "nargo",
			BB:      "bb",
			Garaga:  "garaga",
			Starkli: "starkli",
			Forge:   "forge",
			Cast:    "cast",
		},
		Cairo: CairoConfig{
			Network:     "sepolia",
			AutoDeclare: true,
			SecretsFile: ".secrets",
		},
		EVM: EVMConfig{
			Network: "sepolia",
			EnvFile: ".env",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		UX: UXConfig{
			Color: "auto",
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
	}
}

// Path returns the config file location for a project root.
func Path(root string) string { return filepath.Join(root, FileName) }

// Load loads configuration from a YAML file. A missing file yields the
// defaults (with environment overrides applied).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	tools := map[string]*string{
		"BARGO_NARGO":   &c.Tools.Nargo,
		"BARGO_BB":      &c.Tools.BB,
		"BARGO_GARAGA":  &c.Tools.Garaga,
		"BARGO_STARKLI": &c.Tools.Starkli,
		"BARGO_FORGE":   &c.Tools.Forge,
		"BARGO_CAST":    &c.Tools.Cast,
	}
	for env, field := range tools {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}

	if v := os.Getenv("BARGO_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("BARGO_CAIRO_NETWORK"); v != "" {
		c.Cairo.Network = v
	}
	if v := os.Getenv("BARGO_EVM_NETWORK"); v != "" {
		c.EVM.Network = v
	}
	if v := os.Getenv("BARGO_AUDIT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.Audit = b
		}
	}
	// https://no-color.org
	if os.Getenv("NO_COLOR") != "" {
		c.UX.Color = "never"
	}
}

// ValidLogLevels lists accepted logging.level values.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// ValidColorModes lists accepted ux.color values.
var ValidColorModes = []string{"auto", "always", "never"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !contains(ValidLogLevels, c.Logging.Level) {
		return &ConfigurationError{Field: "logging.level", Reason: fmt.Sprintf("invalid value %q (valid: %v)", c.Logging.Level, ValidLogLevels)}
	}
	if !contains(ValidColorModes, c.UX.Color) {
		return &ConfigurationError{Field: "ux.color", Reason: fmt.Sprintf("invalid value %q (valid: %v)", c.UX.Color, ValidColorModes)}
	}
	if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
		return &ConfigurationError{Field: "watch.debounce", Reason: err.Error()}
	}
	for name, v := range map[string]string{
		"tools.nargo": c.Tools.Nargo, "tools.bb": c.Tools.BB, "tools.garaga": c.Tools.Garaga,
		"tools.starkli": c.Tools.Starkli, "tools.forge": c.Tools.Forge, "tools.cast": c.Tools.Cast,
	} {
		if strings.TrimSpace(v) == "" {
			return &ConfigurationError{Field: name, Reason: "executable must not be empty"}
		}
	}
	return nil
}

// WatchDebounce returns the watch debounce as a duration.
func (c *Config) WatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
