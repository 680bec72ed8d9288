package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "10s" or
// "1m30s".
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
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds the full worker configuration, loaded once at startup.
type Config struct {
	DataDir string `yaml:"data_dir"`

	Log      LogConfig      `yaml:"log"`
	Registry RegistryConfig `yaml:"registry"`
	Docker   DockerConfig   `yaml:"docker"`
	Sync     SyncConfig     `yaml:"sync"`
	Probe    ProbeConfig    `yaml:"probe"`
	Launcher LauncherConfig `yaml:"launcher"`
	API      APIConfig      `yaml:"api"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// RegistryConfig points at the single private registry images are synced
// from. Username doubles as the image namespace (user/app:tag), so it is
// required.
type RegistryConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DockerConfig holds the TLS client material used for every docker host.
type DockerConfig struct {
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

// SyncConfig controls the periodic reconciliation pass.
type SyncConfig struct {
	Interval Duration `yaml:"interval"`
}

// ProbeConfig overrides the health probe retry policy.
type ProbeConfig struct {
	Attempts int      `yaml:"attempts"`
	Timeout  Duration `yaml:"timeout"`
	Pause    Duration `yaml:"pause"`
}

// LauncherConfig sizes the deployment launcher pool.
type LauncherConfig struct {
	Workers int `yaml:"workers"`
	Queue   int `yaml:"queue"`
}

// APIConfig controls the trigger/metrics HTTP listener.
type APIConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns a Config with sensible defaults. Registry settings have no
// default: they must come from the file.
func Default() *Config {
	return &Config{
		DataDir: "/var/lib/shepherd",
		Log: LogConfig{
			Level: "info",
		},
		Sync: SyncConfig{
			Interval: Duration(60 * time.Second),
		},
		Probe: ProbeConfig{
			Attempts: 3,
			Timeout:  Duration(10 * time.Second),
			Pause:    Duration(5 * time.Second),
		},
		Launcher: LauncherConfig{
			Workers: 4,
			Queue:   16,
		},
		API: APIConfig{
			Listen: ":7300",
		},
	}
}

// Load reads and validates a YAML config file, applying defaults for
// anything the file leaves unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have no usable zero value.
func (c *Config) Validate() error {
	if c.Registry.URL == "" {
		return fmt.Errorf("registry.url is required")
	}
	if c.Registry.Username == "" {
		// The username is also the image namespace; nothing works without it.
		return fmt.Errorf("registry.username is required")
	}
	if c.Probe.Attempts < 1 {
		return fmt.Errorf("probe.attempts must be at least 1")
	}
	if c.Launcher.Workers < 1 {
		return fmt.Errorf("launcher.workers must be at least 1")
	}
	return nil
}
