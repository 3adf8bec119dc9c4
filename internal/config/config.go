package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the external-service endpoints and ambient settings the
// flag generator needs. Per-run analysis parameters come from the CLI.
type Config struct {
	SegmentDB SegmentDBConfig `yaml:"segmentdb"`
	Series    SeriesConfig    `yaml:"series"`
	Triggers  TriggersConfig  `yaml:"triggers"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// SegmentDBConfig configures access to the segment database.
type SegmentDBConfig struct {
	URL     string        `yaml:"url"`
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

// SeriesConfig configures access to the time-series store.
type SeriesConfig struct {
	URL     string        `yaml:"url"`
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

// TriggersConfig locates the on-disk Omicron trigger-file store.
type TriggersConfig struct {
	Directory string `yaml:"directory"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// MetricsConfig controls end-of-run Pushgateway publication. Empty gateway
// disables the push.
type MetricsConfig struct {
	PushGateway string `yaml:"pushGateway"`
	Job         string `yaml:"job"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("DQFLAGGER_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		SegmentDB: SegmentDBConfig{
			URL:     "https://segments.ligo.org",
			Path:    "/segments",
			Timeout: 30 * time.Second,
		},
		Series: SeriesConfig{
			Path:    "/timeseries",
			Timeout: 120 * time.Second,
		},
		Triggers: TriggersConfig{
			Directory: "/home/detchar/triggers",
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Metrics: MetricsConfig{Job: "dqflagger"},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DQFLAGGER_SEGMENTDB_URL"); v != "" {
		cfg.SegmentDB.URL = v
	}
	if v := os.Getenv("DQFLAGGER_SEGMENTDB_PATH"); v != "" {
		cfg.SegmentDB.Path = v
	}
	if v := os.Getenv("DQFLAGGER_SEGMENTDB_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SegmentDB.Timeout = d
		}
	}
	if v := os.Getenv("DQFLAGGER_SERIES_URL"); v != "" {
		cfg.Series.URL = v
	}
	if v := os.Getenv("DQFLAGGER_SERIES_PATH"); v != "" {
		cfg.Series.Path = v
	}
	if v := os.Getenv("DQFLAGGER_SERIES_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Series.Timeout = d
		}
	}
	if v := os.Getenv("DQFLAGGER_TRIGGERS_DIR"); v != "" {
		cfg.Triggers.Directory = v
	}
	if v := os.Getenv("DQFLAGGER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DQFLAGGER_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("DQFLAGGER_PUSH_GATEWAY"); v != "" {
		cfg.Metrics.PushGateway = v
	}
	if v := os.Getenv("DQFLAGGER_PUSH_JOB"); v != "" {
		cfg.Metrics.Job = v
	}
}
