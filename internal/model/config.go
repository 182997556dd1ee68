package model

import (
	"bytes"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	yamlv3 "gopkg.in/yaml.v3"
)

type Config struct {
	Project ProjectConfig `yaml:"project"`
	Stack   StackConfig   `yaml:"stack"`
	Waiter  WaiterConfig  `yaml:"waiter"`
	Watcher WatcherConfig `yaml:"watcher"`
	Logging LoggingConfig `yaml:"logging"`
}

type ProjectConfig struct {
	Name        string `yaml:"name"`
	ServiceFile string `yaml:"service_file"`
}

type StackConfig struct {
	Name    string `yaml:"name"`
	Region  string `yaml:"region" env:"CFEDGE_REGION"`
	Profile string `yaml:"profile" env:"CFEDGE_PROFILE"`
}

type WaiterConfig struct {
	PollIntervalSec     int `yaml:"poll_interval_sec"`
	ProgressIntervalSec int `yaml:"progress_interval_sec"`
}

type WatcherConfig struct {
	DebounceSec float64 `yaml:"debounce_sec"`
}

type LoggingConfig struct {
	Level string `yaml:"level" env:"CFEDGE_LOG_LEVEL"`
}

// LoadConfig reads a cfedge.yaml, rejecting unknown keys, then applies
// CFEDGE_* environment overrides on top.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := yamlv3.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("apply env overrides: %w", err)
	}

	cfg.applyDefaults()

	if cfg.Stack.Name == "" {
		return cfg, fmt.Errorf("config %s: stack.name is required", path)
	}
	if cfg.Project.ServiceFile == "" {
		return cfg, fmt.Errorf("config %s: project.service_file is required", path)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Waiter.PollIntervalSec <= 0 {
		c.Waiter.PollIntervalSec = 30
	}
	if c.Waiter.ProgressIntervalSec <= 0 {
		c.Waiter.ProgressIntervalSec = 10
	}
	if c.Watcher.DebounceSec <= 0 {
		c.Watcher.DebounceSec = 2.0
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
