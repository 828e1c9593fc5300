// Package link provides the wireless link adapters.
package link

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

const (
	KindNMCLI  = "nmcli"
	KindStatic = "static"
)

// Config holds radio credentials and the association timeout.
type Config struct {
	Kind      string        `yaml:"kind"`
	SSID      string        `yaml:"ssid"`
	Password  string        `yaml:"password"`
	Interface string        `yaml:"interface"`
	Timeout   time.Duration `yaml:"timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.Kind == "" {
		c.Kind = KindStatic
	}
	c.Kind = strings.ToLower(c.Kind)
	if c.Interface == "" {
		c.Interface = "wlan0"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

func (c *Config) Validate() error {
	switch c.Kind {
	case KindNMCLI:
		if c.SSID == "" {
			return errors.New("ssid is required for nmcli link")
		}
	case KindStatic:
	default:
		return fmt.Errorf("unknown link kind %q", c.Kind)
	}
	return nil
}

// New builds the link adapter selected by cfg.Kind.
func New(cfg Config) (ports.Link, error) {
	switch cfg.Kind {
	case KindNMCLI:
		return NewNMCLI(cfg), nil
	case KindStatic:
		return NewStatic(), nil
	default:
		return nil, fmt.Errorf("unknown link kind %q", cfg.Kind)
	}
}
