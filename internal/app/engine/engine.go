// Package engine runs the fixed-rate sampling loop: read the pulse counter,
// derive a reading, publish it, and keep going whatever the network does.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ghalamif/PulseFlow/internal/app/flow"
	"github.com/ghalamif/PulseFlow/internal/domain"
	"github.com/ghalamif/PulseFlow/internal/ports"
)

// PulseReader is the loop side of the pulse counter.
type PulseReader interface {
	ReadAndReset() domain.PulseCount
	Peek() domain.PulseCount
}

// Publisher delivers one reading per call.
type Publisher interface {
	Publish(ctx context.Context, r domain.Reading) error
}

// Config for the sampling loop.
type Config struct {
	Interval time.Duration
	// ZeroPulseWarnTicks logs a sensor_idle warning once this many consecutive
	// ticks saw no pulses. Zero disables the check.
	ZeroPulseWarnTicks int
}

// Stats is a snapshot of loop counters.
type Stats struct {
	Ticks           uint64
	Published       uint64
	Failures        uint64
	SkippedTicks    uint64
	MissedTicks     uint64
	ZeroPulseStreak uint64
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock swaps the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

type Engine struct {
	cfg     Config
	counter PulseReader
	calc    *flow.Calculator
	pub     Publisher
	obs     ports.Observability
	clock   Clock

	lastTickAt time.Time

	mu    sync.Mutex
	stats Stats
}

func New(cfg Config, counter PulseReader, calc *flow.Calculator, pub Publisher, obs ports.Observability, opts ...Option) (*Engine, error) {
	switch {
	case cfg.Interval <= 0:
		return nil, fmt.Errorf("interval must be > 0, got %s", cfg.Interval)
	case counter == nil:
		return nil, fmt.Errorf("pulse counter is required")
	case calc == nil:
		return nil, fmt.Errorf("flow calculator is required")
	case pub == nil:
		return nil, fmt.Errorf("publisher is required")
	case obs == nil:
		return nil, fmt.Errorf("observability is required")
	}

	e := &Engine{
		cfg:     cfg,
		counter: counter,
		calc:    calc,
		pub:     pub,
		obs:     obs,
		clock:   systemClock{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.lastTickAt = e.clock.Now()
	return e, nil
}

// Run ticks every Interval until ctx is cancelled. The schedule is fixed-rate:
// each boundary is the previous boundary plus Interval, so a slow iteration
// delays only itself. Boundaries already in the past when an iteration ends are
// coalesced into a single tick, and the pulses of the skipped windows are
// folded into that reading.
func (e *Engine) Run(ctx context.Context) error {
	start := e.clock.Now()
	e.lastTickAt = start
	next := start

	e.obs.LogInfo("engine_started",
		ports.Field{Key: "interval", Value: e.cfg.Interval.String()},
		ports.Field{Key: "calibration", Value: e.calc.Calibration()})

	for {
		next = next.Add(e.cfg.Interval)

		now := e.clock.Now()
		if lag := now.Sub(next); lag >= e.cfg.Interval {
			missed := uint64(lag / e.cfg.Interval)
			next = next.Add(time.Duration(missed) * e.cfg.Interval)
			e.mu.Lock()
			e.stats.MissedTicks += missed
			e.mu.Unlock()
			e.obs.LogWarn("ticks_coalesced",
				ports.Field{Key: "missed", Value: missed},
				ports.Field{Key: "lag", Value: lag.String()},
				ports.Field{Key: "pending_pulses", Value: uint64(e.counter.Peek())})
		}

		if wait := next.Sub(now); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-e.clock.After(wait):
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		e.Tick(ctx)
	}
}

// Tick performs one iteration of the loop. It never fails: every problem is
// logged and counted.
func (e *Engine) Tick(ctx context.Context) {
	now := e.clock.Now()
	delta := uint64(e.counter.ReadAndReset())
	elapsed := now.Sub(e.lastTickAt)

	e.mu.Lock()
	e.stats.Ticks++
	if delta == 0 {
		e.stats.ZeroPulseStreak++
	} else {
		e.stats.ZeroPulseStreak = 0
	}
	streak := e.stats.ZeroPulseStreak
	e.mu.Unlock()

	e.obs.IncCounter("pulseflow_ticks_total", 1)
	e.obs.IncCounter("pulseflow_pulses_total", float64(delta))

	if e.cfg.ZeroPulseWarnTicks > 0 && streak == uint64(e.cfg.ZeroPulseWarnTicks) {
		e.obs.LogWarn("sensor_idle", ports.Field{Key: "ticks", Value: streak})
	}

	reading, ok := e.calc.Compute(now, delta, elapsed)
	if !ok {
		// A zero window keeps the old anchor so the carried pulses are rated
		// over the whole span; a backwards clock re-anchors.
		if elapsed < 0 {
			e.lastTickAt = now
		}
		e.mu.Lock()
		e.stats.SkippedTicks++
		e.mu.Unlock()
		e.obs.LogWarn("tick_elapsed_degenerate",
			ports.Field{Key: "elapsed", Value: elapsed.String()},
			ports.Field{Key: "carried_pulses", Value: e.calc.Pending()})
		return
	}
	e.lastTickAt = now

	e.obs.SetGauge("pulseflow_flow_rate", reading.FlowRate)
	e.obs.SetGauge("pulseflow_cumulative_volume", reading.CumulativeVolume)

	if err := e.pub.Publish(ctx, reading); err != nil {
		e.mu.Lock()
		e.stats.Failures++
		failures := e.stats.Failures
		e.mu.Unlock()
		e.obs.IncCounter("pulseflow_publish_failures_total", 1)
		e.obs.LogError("publish_failed", err,
			ports.Field{Key: "seq", Value: reading.Seq},
			ports.Field{Key: "failures", Value: failures})
		return
	}

	e.mu.Lock()
	e.stats.Published++
	e.mu.Unlock()
	e.obs.IncCounter("pulseflow_publish_total", 1)
	e.obs.LogInfo("reading_published",
		ports.Field{Key: "seq", Value: reading.Seq},
		ports.Field{Key: "pulses", Value: reading.PulseDelta},
		ports.Field{Key: "flow_rate", Value: reading.FlowRate},
		ports.Field{Key: "cumulative_volume", Value: reading.CumulativeVolume})
}

// Stats returns a snapshot of the loop counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// IsShutdown reports whether err only reflects the loop being cancelled.
func IsShutdown(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
