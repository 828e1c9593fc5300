// Package publisher owns the broker session on top of the radio link and
// delivers one reading per call.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ghalamif/PulseFlow/internal/domain"
	"github.com/ghalamif/PulseFlow/internal/ports"
)

// LinkManager is the part of the connectivity manager the publisher needs.
type LinkManager interface {
	EnsureConnected(ctx context.Context, timeout time.Duration) error
}

// Config bounds every blocking step of a publish.
type Config struct {
	Topic          string
	LinkTimeout    time.Duration
	SessionTimeout time.Duration
	SendTimeout    time.Duration
}

func (c *Config) applyDefaults() {
	if c.LinkTimeout <= 0 {
		c.LinkTimeout = 15 * time.Second
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = 10 * time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 5 * time.Second
	}
}

// Budget is the longest a single Publish call can block.
func (c Config) Budget() time.Duration {
	c.applyDefaults()
	return c.LinkTimeout + c.SessionTimeout + c.SendTimeout
}

// ErrCallInFlight is wrapped in DeliveryFailed when a broker call abandoned at
// its deadline has still not returned.
var ErrCallInFlight = errors.New("previous broker call still in flight")

// Publisher keeps at most one publish in flight. A failed session is always
// closed and rebuilt on the next call; a failed send is never retried here.
type Publisher struct {
	cfg    Config
	link   LinkManager
	broker ports.Broker
	enc    ports.Encoder
	obs    ports.Observability

	// mu serializes publishes; state is readable without it.
	mu    sync.Mutex
	state atomic.Int32
	// stuck is closed once an adapter call abandoned at its deadline returns.
	stuck chan struct{}
}

func New(cfg Config, link LinkManager, broker ports.Broker, enc ports.Encoder, obs ports.Observability) (*Publisher, error) {
	switch {
	case link == nil:
		return nil, fmt.Errorf("link manager is required")
	case broker == nil:
		return nil, fmt.Errorf("broker is required")
	case enc == nil:
		return nil, fmt.Errorf("encoder is required")
	case obs == nil:
		return nil, fmt.Errorf("observability is required")
	}
	cfg.applyDefaults()
	p := &Publisher{
		cfg:    cfg,
		link:   link,
		broker: broker,
		enc:    enc,
		obs:    obs,
	}
	p.state.Store(int32(domain.Disconnected))
	return p, nil
}

// State returns the broker session state, including the transient Connecting
// and Publishing states. It never waits on a publish in progress.
func (p *Publisher) State() domain.ConnectionState {
	return domain.ConnectionState(p.state.Load())
}

// Publish delivers r or reports why it could not.
func (p *Publisher) Publish(ctx context.Context, r domain.Reading) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stuck != nil {
		select {
		case <-p.stuck:
			p.stuck = nil
		default:
			return &PublishError{Kind: DeliveryFailed, Err: ErrCallInFlight}
		}
	}

	if err := p.link.EnsureConnected(ctx, p.cfg.LinkTimeout); err != nil {
		if p.State() != domain.Disconnected {
			p.resetSessionLocked("link_down")
		}
		return &PublishError{Kind: LinkDown, Err: err}
	}

	if p.State() == domain.Connected && !p.broker.IsConnected() {
		p.resetSessionLocked("session_lost")
	}

	if p.State() != domain.Connected {
		p.setStateLocked(domain.Connecting)
		if err := p.bounded(ctx, p.cfg.SessionTimeout, p.broker.Connect); err != nil {
			p.resetSessionLocked("session_connect_failed")
			return &PublishError{Kind: SessionFailed, Err: err}
		}
		p.setStateLocked(domain.Connected)
		p.obs.LogInfo("session_connected", ports.Field{Key: "broker", Value: p.broker.Name()})
	}

	payload, err := p.enc.Encode(r)
	if err != nil {
		return &PublishError{Kind: DeliveryFailed, Err: fmt.Errorf("encode reading: %w", err)}
	}

	p.setStateLocked(domain.Publishing)
	start := time.Now()
	err = p.bounded(ctx, p.cfg.SendTimeout, func(ctx context.Context) error {
		return p.broker.Publish(ctx, p.cfg.Topic, payload)
	})
	if err != nil {
		if errors.Is(err, ports.ErrSessionLost) || errors.Is(err, context.DeadlineExceeded) || !p.broker.IsConnected() {
			p.resetSessionLocked("send_failed")
		} else {
			p.setStateLocked(domain.Connected)
		}
		return &PublishError{Kind: DeliveryFailed, Err: err}
	}
	p.setStateLocked(domain.Connected)
	p.obs.ObserveLatency("pulseflow_publish_latency_seconds", time.Since(start).Seconds())
	return nil
}

// Close ends the broker session.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setStateLocked(domain.Disconnected)
	return p.broker.Close()
}

func (p *Publisher) resetSessionLocked(reason string) {
	if err := p.broker.Close(); err != nil {
		p.obs.LogError("session_close_failed", err, ports.Field{Key: "broker", Value: p.broker.Name()})
	}
	p.setStateLocked(domain.Disconnected)
	p.obs.LogWarn("session_reset",
		ports.Field{Key: "broker", Value: p.broker.Name()},
		ports.Field{Key: "reason", Value: reason})
}

func (p *Publisher) setStateLocked(s domain.ConnectionState) {
	p.state.Store(int32(s))
	p.obs.SetGauge("pulseflow_session_state", float64(s))
}

// bounded runs fn with a deadline and returns once the deadline passes even if
// fn ignores its context. An abandoned call is remembered so the next publish
// does not overlap it.
func (p *Publisher) bounded(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("broker adapter panic: %v", r)
			}
		}()
		done <- fn(cctx)
	}()

	select {
	case err := <-done:
		return err
	case <-cctx.Done():
		p.stuck = finished
		return cctx.Err()
	}
}
