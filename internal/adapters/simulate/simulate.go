// Package simulate generates a synthetic pulse train for demos and bench runs.
package simulate

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

type Config struct {
	// RateHz is the mean pulse frequency. Unset means 45 Hz; an explicit 0
	// simulates a stalled sensor.
	RateHz *float64 `yaml:"rate_hz"`
	// Jitter is the relative spread applied to each batch, 0..1.
	Jitter float64 `yaml:"jitter"`
	// Step is how often a batch of pulses is emitted.
	Step time.Duration `yaml:"step"`
	Seed int64         `yaml:"seed"`
}

// Rate is a helper for setting RateHz in code.
func Rate(hz float64) *float64 { return &hz }

func (c *Config) ApplyDefaults() {
	if c.RateHz == nil {
		c.RateHz = Rate(45)
	}
	if c.Step <= 0 {
		c.Step = 100 * time.Millisecond
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
}

func (c *Config) Validate() error {
	if c.RateHz == nil {
		return errors.New("rate_hz is required")
	}
	if *c.RateHz < 0 {
		return fmt.Errorf("rate_hz must be >= 0, got %v", *c.RateHz)
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		return fmt.Errorf("jitter must be within [0,1], got %v", c.Jitter)
	}
	return nil
}

type Source struct {
	cfg Config
	obs ports.Observability

	mu   sync.Mutex
	quit chan struct{}
	wg   sync.WaitGroup
}

func NewSource(cfg Config, obs ports.Observability) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if obs == nil {
		return nil, errors.New("observability is required")
	}
	return &Source{cfg: cfg, obs: obs}, nil
}

func (s *Source) Name() string { return "simulate" }

func (s *Source) Start(rec ports.EdgeRecorder) error {
	if rec == nil {
		return errors.New("edge recorder is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit != nil {
		return errors.New("simulated source already started")
	}
	s.quit = make(chan struct{})

	ticker := time.NewTicker(s.cfg.Step)
	train := newTrain(s.cfg)
	quit := s.quit
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				rec.AddEdges(train.next())
			}
		}
	}()

	s.obs.LogInfo("pulse_source_started",
		ports.Field{Key: "source", Value: s.Name()},
		ports.Field{Key: "rate_hz", Value: *s.cfg.RateHz})
	return nil
}

func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit == nil {
		return nil
	}
	close(s.quit)
	s.wg.Wait()
	s.quit = nil
	return nil
}

// train spreads a fractional per-step rate over whole pulses so the long-run
// mean matches RateHz.
type train struct {
	perStep float64
	jitter  float64
	carry   float64
	rnd     *rand.Rand
}

func newTrain(cfg Config) *train {
	return &train{
		perStep: *cfg.RateHz * cfg.Step.Seconds(),
		jitter:  cfg.Jitter,
		rnd:     rand.New(rand.NewSource(cfg.Seed)),
	}
}

func (t *train) next() uint64 {
	want := t.perStep
	if t.jitter > 0 {
		want *= 1 + t.jitter*(2*t.rnd.Float64()-1)
	}
	want += t.carry
	n := uint64(want)
	t.carry = want - float64(n)
	return n
}

var _ ports.PulseSource = (*Source)(nil)
