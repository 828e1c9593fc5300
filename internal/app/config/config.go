// Package config loads the node configuration once at startup.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ghalamif/PulseFlow/internal/adapters/broker"
	"github.com/ghalamif/PulseFlow/internal/adapters/encoding"
	"github.com/ghalamif/PulseFlow/internal/adapters/gpio"
	"github.com/ghalamif/PulseFlow/internal/adapters/link"
	"github.com/ghalamif/PulseFlow/internal/adapters/observability"
	"github.com/ghalamif/PulseFlow/internal/adapters/opcua"
	"github.com/ghalamif/PulseFlow/internal/adapters/simulate"
	"github.com/ghalamif/PulseFlow/internal/app/connectivity"
)

// EnvPrefix namespaces the environment overrides.
const EnvPrefix = "PULSEFLOW_"

const (
	SourceGPIO     = "gpio"
	SourceOPCUA    = "opcua"
	SourceSimulate = "simulate"
)

type Config struct {
	DeviceID    string                     `yaml:"device_id"`
	Interval    time.Duration              `yaml:"interval"`
	Calibration float64                    `yaml:"calibration"`
	Unit        string                     `yaml:"unit"`
	Source      SourceConfig               `yaml:"source"`
	Link        link.Config                `yaml:"link"`
	Backoff     connectivity.BackoffConfig `yaml:"backoff"`
	Broker      broker.Config              `yaml:"broker"`
	Publish     PublishConfig              `yaml:"publish"`
	Monitor     MonitorConfig              `yaml:"monitor"`
	Metrics     MetricsConfig              `yaml:"metrics"`
	Log         observability.LogConfig    `yaml:"log"`
}

type SourceConfig struct {
	Kind     string          `yaml:"kind"`
	GPIO     gpio.Config     `yaml:"gpio"`
	OPCUA    opcua.Config    `yaml:"opcua"`
	Simulate simulate.Config `yaml:"simulate"`
}

type PublishConfig struct {
	Format string `yaml:"format"`
}

type MonitorConfig struct {
	ZeroPulseWarnTicks int `yaml:"zero_pulse_warn_ticks"`
}

type MetricsConfig struct {
	// Addr is where /metrics and /healthz are served. Empty disables the server.
	Addr string `yaml:"addr"`
}

// Load reads path (skipped when empty), applies PULSEFLOW_* overrides, fills
// defaults and validates.
func Load(path string) (*Config, error) {
	var raw []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return Parse(raw, os.LookupEnv)
}

// Parse is Load without the filesystem. lookup resolves environment overrides.
func Parse(raw []byte, lookup func(string) (string, bool)) (*Config, error) {
	var cfg Config
	if len(raw) > 0 {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
	}
	if lookup != nil {
		if err := cfg.applyEnv(lookup); err != nil {
			return nil, err
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}

	str("DEVICE_ID", &c.DeviceID)
	str("UNIT", &c.Unit)
	str("SOURCE", &c.Source.Kind)
	str("WIFI_SSID", &c.Link.SSID)
	str("WIFI_PASSWORD", &c.Link.Password)
	str("BROKER_KIND", &c.Broker.Kind)
	str("BROKER_URL", &c.Broker.Endpoint)
	str("BROKER_TOPIC", &c.Broker.Topic)
	str("BROKER_USERNAME", &c.Broker.Username)
	str("BROKER_PASSWORD", &c.Broker.Password)
	str("PUBLISH_FORMAT", &c.Publish.Format)
	str("LOG_LEVEL", &c.Log.Level)
	str("METRICS_ADDR", &c.Metrics.Addr)

	if v, ok := lookup(EnvPrefix + "INTERVAL_SECS"); ok && v != "" {
		secs, err := strconv.ParseUint(v, 10, 32)
		if err != nil || secs == 0 {
			return fmt.Errorf("%sINTERVAL_SECS: want a positive integer, got %q", EnvPrefix, v)
		}
		c.Interval = time.Duration(secs) * time.Second
	}
	if v, ok := lookup(EnvPrefix + "CALIBRATION"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sCALIBRATION: %w", EnvPrefix, err)
		}
		c.Calibration = f
	}
	return nil
}

// ApplyDefaults fills every unset field. It is idempotent.
func (c *Config) ApplyDefaults() {
	if c.DeviceID == "" {
		if host, err := os.Hostname(); err == nil && host != "" {
			c.DeviceID = host
		} else {
			c.DeviceID = "pulseflow-node"
		}
	}
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.Unit == "" {
		c.Unit = "L"
	}
	if c.Source.Kind == "" {
		c.Source.Kind = SourceGPIO
	}
	c.Source.Kind = strings.ToLower(c.Source.Kind)
	if c.Publish.Format == "" {
		c.Publish.Format = "json"
	}

	c.Link.ApplyDefaults()
	c.Backoff.ApplyDefaults()
	c.Broker.ApplyDefaults(c.DeviceID)
	c.Log.ApplyDefaults()
	switch c.Source.Kind {
	case SourceGPIO:
		c.Source.GPIO.ApplyDefaults()
	case SourceOPCUA:
		c.Source.OPCUA.ApplyDefaults()
	case SourceSimulate:
		c.Source.Simulate.ApplyDefaults()
	}
}

func (c *Config) validate() error {
	if c.Calibration <= 0 || math.IsNaN(c.Calibration) || math.IsInf(c.Calibration, 0) {
		return fmt.Errorf("calibration must be a positive volume per pulse, got %v", c.Calibration)
	}
	if c.Interval < time.Second {
		return fmt.Errorf("interval must be at least 1s, got %s", c.Interval)
	}
	if c.Monitor.ZeroPulseWarnTicks < 0 {
		return errors.New("monitor.zero_pulse_warn_ticks must be >= 0")
	}
	if err := c.validateSource(); err != nil {
		return fmt.Errorf("source config: %w", err)
	}
	if err := c.Link.Validate(); err != nil {
		return fmt.Errorf("link config: %w", err)
	}
	if err := c.Backoff.Validate(); err != nil {
		return fmt.Errorf("backoff config: %w", err)
	}
	if err := c.Broker.Validate(); err != nil {
		return fmt.Errorf("broker config: %w", err)
	}
	if _, err := encoding.New(c.Publish.Format, encoding.Meta{}); err != nil {
		return fmt.Errorf("publish config: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	return nil
}

func (c *Config) validateSource() error {
	switch c.Source.Kind {
	case SourceGPIO:
		return c.Source.GPIO.Validate()
	case SourceOPCUA:
		return c.Source.OPCUA.Validate()
	case SourceSimulate:
		return c.Source.Simulate.Validate()
	default:
		return fmt.Errorf("unknown source kind %q", c.Source.Kind)
	}
}
