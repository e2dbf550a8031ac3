// Package config loads the phaserun configuration file.
//
// Example:
//
//	logging:
//	  level: debug
//	  format: json
//	run:
//	  reverse_order: true
//	  capture_logs: true
//	  args: ["--run", "^TestAdd$"]
//	monitoring:
//	  push_url: http://victoriametrics:8428
//	  metrics_prefix: ci
//	server:
//	  listener:
//	    addr: :8080
//	  history_size: 200
//	  schedules:
//	    - groups: [arithmetic, strings]
//	      schedule: "0 2 * * *"
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nomis52/phasetest/logging"
)

const (
	defaultJobName     = "phaserun"
	defaultPushTimeout = 30 * time.Second
	defaultListenAddr  = ":8080"
	defaultHistorySize = 100
)

// Config represents the complete application configuration
type Config struct {
	Logging    logging.Config   `yaml:"logging"`
	Run        RunConfig        `yaml:"run"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Server     ServerConfig     `yaml:"server"`
}

// RunConfig defines how test groups are run.
type RunConfig struct {
	// ReverseOrder runs test cases in descending name order.
	ReverseOrder bool `yaml:"reverse_order"`
	// CaptureLogs keeps what every test case logs with its outcome.
	CaptureLogs bool `yaml:"capture_logs"`
	// Args are passed to every test group run, before any command line ones.
	Args []string `yaml:"args"`
}

// MonitoringConfig holds metrics settings. Without a PushURL, metrics are
// only exposed for scraping by the server.
type MonitoringConfig struct {
	PushURL       string        `yaml:"push_url"`
	MetricsPrefix string        `yaml:"metrics_prefix"`
	JobName       string        `yaml:"jobname"`
	Instance      string        `yaml:"instance"`
	PushTimeout   time.Duration `yaml:"push_timeout"`
}

// ServerConfig holds the settings of phaserun serve.
type ServerConfig struct {
	Listener ListenerConfig `yaml:"listener"`
	// HistorySize is how many outcomes are kept in memory.
	HistorySize int        `yaml:"history_size"`
	Schedules   []Schedule `yaml:"schedules"`
}

// ListenerConfig holds HTTP server listener settings.
type ListenerConfig struct {
	// The listen address, defaults to :8080
	Addr string `yaml:"addr"`
	// CertFile and KeyFile enable TLS. Changed files are picked up without
	// a restart.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Schedule defines a set of test groups to run on a schedule.
type Schedule struct {
	Groups []string `yaml:"groups"`
	// The cron spec to run the groups at
	Schedule string `yaml:"schedule"`
}

// Validate performs basic validation on the configuration
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Monitoring.PushTimeout < 0 {
		return errors.New("monitoring push timeout must not be negative")
	}
	if c.Server.HistorySize < 0 {
		return errors.New("server history size must not be negative")
	}
	if (c.Server.Listener.CertFile == "") != (c.Server.Listener.KeyFile == "") {
		return errors.New("server listener needs both cert_file and key_file")
	}
	for i, s := range c.Server.Schedules {
		if len(s.Groups) == 0 {
			return fmt.Errorf("schedule %d has no test groups", i)
		}
		if s.Schedule == "" {
			return fmt.Errorf("schedule %d has no cron spec", i)
		}
	}
	return nil
}

// SetDefaults sets reasonable default values for optional fields
func (c *Config) SetDefaults() {
	c.Logging.SetDefaults()
	if c.Monitoring.JobName == "" {
		c.Monitoring.JobName = defaultJobName
	}
	if c.Monitoring.PushTimeout == 0 {
		c.Monitoring.PushTimeout = defaultPushTimeout
	}
	if c.Server.Listener.Addr == "" {
		c.Server.Listener.Addr = defaultListenAddr
	}
	if c.Server.HistorySize == 0 {
		c.Server.HistorySize = defaultHistorySize
	}
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	cfg.SetDefaults()
	return cfg
}

// LoadConfig reads the YAML config file at the given path and returns a Config struct
func LoadConfig(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("opening config file %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config file %s: %w", path, err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
