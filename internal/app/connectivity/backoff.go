package connectivity

import (
	"errors"
	"math/rand"
	"time"
)

// BackoffConfig controls reconnect pacing.
type BackoffConfig struct {
	Min        time.Duration `yaml:"min"`
	Max        time.Duration `yaml:"max"`
	Multiplier float64       `yaml:"multiplier"`
	// Jitter is the fraction (0..1) of each delay that may be shaved off at random.
	Jitter float64 `yaml:"jitter"`
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Min:        time.Second,
		Max:        time.Minute,
		Multiplier: 2.0,
		Jitter:     0.2,
	}
}

func (c *BackoffConfig) ApplyDefaults() {
	def := DefaultBackoffConfig()
	if c.Min <= 0 {
		c.Min = def.Min
	}
	if c.Max <= 0 {
		c.Max = def.Max
	}
	if c.Multiplier < 1 {
		c.Multiplier = def.Multiplier
	}
	// Prevent overflow with absurd multipliers.
	if c.Multiplier > 1000 {
		c.Multiplier = 1000
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	if c.Jitter > 1 {
		c.Jitter = 1
	}
}

func (c BackoffConfig) Validate() error {
	if c.Max < c.Min {
		return errors.New("backoff.max must be >= backoff.min")
	}
	return nil
}

// Backoff computes exponential reconnect delays. The base delay starts at Min,
// grows by Multiplier after every failure and is capped at Max. Jitter only ever
// shortens a delay, so the returned value never exceeds Max. Not safe for
// concurrent use; the Manager serializes access.
type Backoff struct {
	cfg  BackoffConfig
	next time.Duration
	rand *rand.Rand
}

func NewBackoff(cfg BackoffConfig) *Backoff {
	cfg.ApplyDefaults()
	return &Backoff{
		cfg:  cfg,
		next: cfg.Min,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the delay to wait after a failure and advances the base delay.
func (b *Backoff) Next() time.Duration {
	base := b.next

	grown := float64(base) * b.cfg.Multiplier
	if grown > float64(b.cfg.Max) {
		b.next = b.cfg.Max
	} else {
		b.next = time.Duration(grown)
	}

	return b.jitter(base)
}

// Base returns the un-jittered delay the next failure will use.
func (b *Backoff) Base() time.Duration { return b.next }

// Reset returns the base delay to Min. Called after every successful connect.
func (b *Backoff) Reset() { b.next = b.cfg.Min }

func (b *Backoff) jitter(d time.Duration) time.Duration {
	if b.cfg.Jitter == 0 || d <= 0 {
		return d
	}
	return d - time.Duration(b.rand.Float64()*b.cfg.Jitter*float64(d))
}
