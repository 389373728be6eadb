package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Hermes   HermesConfig   `yaml:"hermes"`
	Currency CurrencyConfig `yaml:"currency"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Matching MatchingConfig `yaml:"matching"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
	// RateLimit is requests per minute per caller on the API. Zero disables it.
	RateLimit int `yaml:"rate_limit"`
}

// DatabaseConfig selects Postgres. An empty URL runs on the in-memory store.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// HermesConfig points at NATS. An empty URL disables events.
type HermesConfig struct {
	URL string `yaml:"url"`
}

// CurrencyConfig configures amount conversion. With a URL rates are fetched from the
// rate service; otherwise the static Rates table (units of reference per unit) is used.
type CurrencyConfig struct {
	URL       string            `yaml:"url"`
	Reference string            `yaml:"reference"`
	Rates     map[string]string `yaml:"rates"`
}

// PipelineConfig points at the deal pipeline. An empty URL issues deal IDs locally.
type PipelineConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

type MatchingConfig struct {
	Weights          map[string]float64 `yaml:"weights"`
	MinScore         int                `yaml:"min_score"`
	Workers          int                `yaml:"workers"`
	RescanIntervalMs int                `yaml:"rescan_interval_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RescanInterval is the periodic full-rescan interval; zero disables it.
func (c *Config) RescanInterval() time.Duration {
	return time.Duration(c.Matching.RescanIntervalMs) * time.Millisecond
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
			RateLimit:   120,
		},
		Currency: CurrencyConfig{
			Reference: "USD",
		},
		Matching: MatchingConfig{
			Weights: map[string]float64{
				"industry":    0.30,
				"geography":   0.25,
				"financial":   0.25,
				"transaction": 0.20,
			},
			MinScore: 30,
			Workers:  8,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MATCHMAKER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("MATCHMAKER_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("MATCHMAKER_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("MATCHMAKER_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit = n
		}
	}
	if v := os.Getenv("MATCHMAKER_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("MATCHMAKER_HERMES_URL"); v != "" {
		cfg.Hermes.URL = v
	}
	if v := os.Getenv("MATCHMAKER_CURRENCY_URL"); v != "" {
		cfg.Currency.URL = v
	}
	if v := os.Getenv("MATCHMAKER_CURRENCY_REFERENCE"); v != "" {
		cfg.Currency.Reference = v
	}
	if v := os.Getenv("MATCHMAKER_PIPELINE_URL"); v != "" {
		cfg.Pipeline.URL = v
	}
	if v := os.Getenv("MATCHMAKER_PIPELINE_TOKEN"); v != "" {
		cfg.Pipeline.Token = v
	}
	if v := os.Getenv("MATCHMAKER_MIN_SCORE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Matching.MinScore = n
		}
	}
	if v := os.Getenv("MATCHMAKER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Matching.Workers = n
		}
	}
	if v := os.Getenv("MATCHMAKER_RESCAN_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Matching.RescanIntervalMs = n
		}
	}
	if v := os.Getenv("MATCHMAKER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
