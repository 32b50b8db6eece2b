package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Store selects the backend of the executions cell.
const (
	StoreFile = "file"
	StoreBolt = "bolt"
)

// Duration wraps time.Duration so YAML values like "30s" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
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

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the agent configuration, loadable from a YAML file.
type Config struct {
	Reactor    ReactorConfig    `yaml:"reactor"`
	Ports      PortsConfig      `yaml:"ports"`
	Executions ExecutionsConfig `yaml:"executions"`
	Runtime    RuntimeConfig    `yaml:"runtime"`
	API        APIConfig        `yaml:"api"`
	Log        LogConfig        `yaml:"log"`
}

// ReactorConfig controls the reconciliation loop.
type ReactorConfig struct {
	// Interval is the timed-refresh period.
	Interval Duration `yaml:"interval"`
}

// PortsConfig controls dynamic host port allocation.
type PortsConfig struct {
	Range PortRange `yaml:"range"`
}

// PortRange is the inclusive dynamic allocation range.
type PortRange struct {
	Lo int `yaml:"lo"`
	Hi int `yaml:"hi"`
}

// ExecutionsConfig locates the persistent execution map.
type ExecutionsConfig struct {
	Path  string `yaml:"path"`
	Store string `yaml:"store"`
}

// RuntimeConfig locates the container runtime.
type RuntimeConfig struct {
	Socket string `yaml:"socket"`
}

// APIConfig controls the HTTP surface.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Reactor: ReactorConfig{Interval: Duration(30 * time.Second)},
		Ports:   PortsConfig{Range: PortRange{Lo: 20000, Hi: 32767}},
		Executions: ExecutionsConfig{
			Path:  "/var/lib/helios/executions.json",
			Store: StoreFile,
		},
		Runtime: RuntimeConfig{Socket: ""},
		API:     APIConfig{Addr: ":5803"},
		Log:     LogConfig{Level: "info", JSON: true},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks internal consistency.
func (c Config) Validate() error {
	if c.Reactor.Interval.Std() <= 0 {
		return fmt.Errorf("reactor.interval must be positive, got %v", c.Reactor.Interval.Std())
	}
	if c.Ports.Range.Lo <= 0 || c.Ports.Range.Hi > 65535 || c.Ports.Range.Lo > c.Ports.Range.Hi {
		return fmt.Errorf("invalid port range [%d, %d]", c.Ports.Range.Lo, c.Ports.Range.Hi)
	}
	if c.Executions.Path == "" {
		return fmt.Errorf("executions.path must be set")
	}
	if c.Executions.Store != StoreFile && c.Executions.Store != StoreBolt {
		return fmt.Errorf("executions.store must be %q or %q, got %q", StoreFile, StoreBolt, c.Executions.Store)
	}
	return nil
}
