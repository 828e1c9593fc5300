// Package broker implements the telemetry destinations a node can publish to.
// Exactly one is active per process.
package broker

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

const (
	KindMQTT      = "mqtt"
	KindNATS      = "nats"
	KindKafka     = "kafka"
	KindTimescale = "timescale"
)

// Config selects and configures the destination.
type Config struct {
	Kind           string        `yaml:"kind"`
	Endpoint       string        `yaml:"endpoint"`
	Topic          string        `yaml:"topic"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	ClientID       string        `yaml:"client_id"`
	QoS            byte          `yaml:"qos"`
	Retain         bool          `yaml:"retain"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	SendTimeout    time.Duration `yaml:"send_timeout"`
	// Table is only used by the timescale destination.
	Table string `yaml:"table"`
}

func (c *Config) ApplyDefaults(deviceID string) {
	if c.Kind == "" {
		c.Kind = KindMQTT
	}
	c.Kind = strings.ToLower(c.Kind)
	if c.Topic == "" {
		c.Topic = "pulseflow/" + deviceID + "/reading"
	}
	if c.ClientID == "" {
		c.ClientID = deviceID + "-" + uuid.NewString()[:8]
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 5 * time.Second
	}
	if c.Table == "" {
		c.Table = "flow_readings"
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	switch c.Kind {
	case KindMQTT:
		if c.QoS > 2 {
			return fmt.Errorf("qos must be 0, 1 or 2, got %d", c.QoS)
		}
	case KindNATS, KindKafka, KindTimescale:
	default:
		return fmt.Errorf("unknown broker kind %q", c.Kind)
	}
	if c.Topic == "" {
		return errors.New("topic is required")
	}
	return nil
}

// New builds the destination selected by cfg.Kind.
func New(cfg Config, deviceID string) (ports.Broker, error) {
	switch cfg.Kind {
	case KindMQTT:
		return NewMQTT(cfg), nil
	case KindNATS:
		return NewNATS(cfg), nil
	case KindKafka:
		return NewKafka(cfg, deviceID), nil
	case KindTimescale:
		db, err := sql.Open("postgres", cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("open timescale: %w", err)
		}
		return NewTimescale(db, cfg.Table, deviceID), nil
	default:
		return nil, fmt.Errorf("unknown broker kind %q", cfg.Kind)
	}
}
