// Package gpio captures flow-meter pulses from a GPIO line.
package gpio

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

type Config struct {
	Pin      string        `yaml:"pin"`
	Pull     string        `yaml:"pull"`
	Edge     string        `yaml:"edge"`
	Debounce time.Duration `yaml:"debounce"`
}

func (c *Config) ApplyDefaults() {
	if c.Pull == "" {
		c.Pull = "up"
	}
	if c.Edge == "" {
		c.Edge = "falling"
	}
	if c.Debounce < 0 {
		c.Debounce = 0
	}
}

func (c *Config) Validate() error {
	if c.Pin == "" {
		return errors.New("gpio pin is required")
	}
	if _, err := parsePull(c.Pull); err != nil {
		return err
	}
	if _, err := parseEdge(c.Edge); err != nil {
		return err
	}
	return nil
}

// edgePin is the subset of gpio.PinIO the capture loop uses.
type edgePin interface {
	In(pull gpio.Pull, edge gpio.Edge) error
	WaitForEdge(timeout time.Duration) bool
	Halt() error
	Name() string
}

// pollInterval bounds how long Stop waits for the capture goroutine.
const pollInterval = 100 * time.Millisecond

type Source struct {
	cfg    Config
	obs    ports.Observability
	lookup func(name string) (edgePin, error)
	now    func() time.Time

	mu      sync.Mutex
	pin     edgePin
	stop    atomic.Bool
	wg      sync.WaitGroup
	started bool
}

func NewSource(cfg Config, obs ports.Observability) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if obs == nil {
		return nil, errors.New("observability is required")
	}
	return &Source{cfg: cfg, obs: obs, lookup: hostPin, now: time.Now}, nil
}

func hostPin(name string) (edgePin, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpio host init: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	return p, nil
}

func (s *Source) Name() string { return "gpio:" + s.cfg.Pin }

func (s *Source) Start(rec ports.EdgeRecorder) error {
	if rec == nil {
		return errors.New("edge recorder is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("gpio source already started")
	}

	pull, _ := parsePull(s.cfg.Pull)
	edge, _ := parseEdge(s.cfg.Edge)

	pin, err := s.lookup(s.cfg.Pin)
	if err != nil {
		return err
	}
	if err := pin.In(pull, edge); err != nil {
		return fmt.Errorf("configure %s: %w", pin.Name(), err)
	}

	s.pin = pin
	s.stop.Store(false)
	s.started = true
	s.wg.Add(1)
	go s.capture(pin, rec)

	s.obs.LogInfo("pulse_source_started",
		ports.Field{Key: "source", Value: s.Name()},
		ports.Field{Key: "pull", Value: pull.String()},
		ports.Field{Key: "edge", Value: edge.String()})
	return nil
}

func (s *Source) capture(pin edgePin, rec ports.EdgeRecorder) {
	defer s.wg.Done()
	deb := debouncer{window: s.cfg.Debounce}
	for !s.stop.Load() {
		if !pin.WaitForEdge(pollInterval) {
			continue
		}
		if deb.accept(s.now()) {
			rec.RecordEdge()
		}
	}
}

func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.stop.Store(true)
	s.wg.Wait()
	s.started = false
	err := s.pin.Halt()
	s.pin = nil
	return err
}

// debouncer drops edges arriving within window of the last accepted one.
type debouncer struct {
	window time.Duration
	last   time.Time
}

func (d *debouncer) accept(now time.Time) bool {
	if d.window > 0 && !d.last.IsZero() && now.Sub(d.last) < d.window {
		return false
	}
	d.last = now
	return true
}

func parsePull(s string) (gpio.Pull, error) {
	switch strings.ToLower(s) {
	case "up", "pullup":
		return gpio.PullUp, nil
	case "down", "pulldown":
		return gpio.PullDown, nil
	case "none", "float":
		return gpio.Float, nil
	case "", "nochange":
		return gpio.PullNoChange, nil
	default:
		return gpio.PullNoChange, fmt.Errorf("unknown gpio pull %q", s)
	}
}

func parseEdge(s string) (gpio.Edge, error) {
	switch strings.ToLower(s) {
	case "rising":
		return gpio.RisingEdge, nil
	case "falling":
		return gpio.FallingEdge, nil
	case "both":
		return gpio.BothEdges, nil
	default:
		return gpio.NoEdge, fmt.Errorf("unknown gpio edge %q", s)
	}
}

var _ ports.PulseSource = (*Source)(nil)
