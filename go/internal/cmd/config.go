package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/huanshanxiaoyao/governor-game/go/internal/precompute"
)

type Config struct {
	GameAPIBaseURL         string        `yaml:"game_api_base_url" env:"GAME_API_BASE_URL"`
	CSRFToken              string        `yaml:"csrf_token" env:"CSRF_TOKEN"`
	SessionCookie          string        `yaml:"session_cookie" env:"SESSION_COOKIE"`
	PrecomputePollInterval time.Duration `yaml:"precompute_poll_interval" env:"PRECOMPUTE_POLL_INTERVAL"`
	HTTPTimeout            time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT"`
	Port                   string        `yaml:"port" env:"PORT"`
	LogLevel               string        `yaml:"log_level" env:"LOG_LEVEL"`

	NATS struct {
		URL           string `yaml:"url" env:"NATS_URL"`
		SubjectPrefix string `yaml:"subject_prefix" env:"NATS_SUBJECT_PREFIX"`
	} `yaml:"nats"`
}

func defaultConfig() *Config {
	cfg := &Config{
		PrecomputePollInterval: precompute.DefaultInterval,
		HTTPTimeout:            30 * time.Second,
		Port:                   "8080",
		LogLevel:               "info",
	}
	cfg.NATS.SubjectPrefix = "governor"
	return cfg
}

// loadConfig layers the YAML file at path (if any) and then the environment
// over the defaults.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.GameAPIBaseURL == "" {
		errs = append(errs, errors.New("GAME_API_BASE_URL is required"))
	}
	if c.PrecomputePollInterval <= 0 {
		errs = append(errs, fmt.Errorf("precompute poll interval must be positive, got %s", c.PrecomputePollInterval))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http timeout must be positive, got %s", c.HTTPTimeout))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err))
	}
	return errors.Join(errs...)
}
