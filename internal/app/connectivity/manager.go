// Package connectivity owns the wireless link state machine and its reconnect
// backoff.
package connectivity

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

// Option customizes a Manager.
type Option func(*Manager)

// WithClock replaces time.Now, used to evaluate backoff windows.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithBackoff replaces the backoff policy.
func WithBackoff(b *Backoff) Option {
	return func(m *Manager) {
		if b != nil {
			m.backoff = b
		}
	}
}

const defaultConnectTimeout = 30 * time.Second

// Manager drives Disconnected → Connecting → Connected for the radio link and
// falls back to Disconnected on any error, timeout or link-loss notification.
type Manager struct {
	link    ports.Link
	obs     ports.Observability
	backoff *Backoff
	now     func() time.Time

	// mu serializes connection attempts; state is readable without it.
	mu      sync.Mutex
	state   atomic.Int32
	retryAt time.Time
	lastErr *ConnectError
}

func NewManager(link ports.Link, obs ports.Observability, opts ...Option) (*Manager, error) {
	if link == nil {
		return nil, fmt.Errorf("link is required")
	}
	if obs == nil {
		return nil, fmt.Errorf("observability is required")
	}
	m := &Manager{
		link:    link,
		obs:     obs,
		backoff: NewBackoff(DefaultBackoffConfig()),
		now:     time.Now,
	}
	m.state.Store(int32(domain.Disconnected))
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// State returns the current link state. It never waits on an attempt in
// progress.
func (m *Manager) State() domain.ConnectionState {
	return domain.ConnectionState(m.state.Load())
}

// EnsureConnected brings the link up if needed, blocking at most timeout in
// total. On return the state is either Connected (nil error) or Disconnected.
func (m *Manager) EnsureConnected(ctx context.Context, timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if m.State() == domain.Connected {
		up, err := m.status(cctx)
		if up {
			return nil
		}
		m.setState(domain.Disconnected)
		fields := []ports.Field{{Key: "link", Value: m.link.Name()}}
		if err != nil {
			fields = append(fields, ports.Field{Key: "status_error", Value: err.Error()})
		}
		m.obs.LogWarn("link_lost", fields...)
	}

	now := m.now()
	if m.lastErr != nil && now.Before(m.retryAt) {
		return &ConnectError{Kind: m.lastErr.Kind, Err: m.lastErr.Err, RetryIn: m.retryAt.Sub(now)}
	}

	m.setState(domain.Connecting)

	up, err := m.status(cctx)
	if err != nil {
		cerr := classify(err)
		m.onFailureLocked(cerr)
		return cerr
	}
	if up {
		m.onConnectedLocked()
		return nil
	}

	if err := guard(cctx, m.link.Connect); err != nil {
		cerr := classify(err)
		m.onFailureLocked(cerr)
		return cerr
	}
	m.onConnectedLocked()
	return nil
}

// MarkDown records an explicit link-loss notification.
func (m *Manager) MarkDown(reason error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.State() == domain.Disconnected {
		return
	}
	m.setState(domain.Disconnected)
	m.obs.LogError("link_marked_down", reason, ports.Field{Key: "link", Value: m.link.Name()})
}

// Disconnect tears the link down and leaves the manager Disconnected.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setState(domain.Disconnected)
	return guard(ctx, m.link.Disconnect)
}

// status asks the adapter whether the radio is associated. A hung or
// panicking adapter reports not connected with the reason.
func (m *Manager) status(ctx context.Context) (bool, error) {
	var up bool
	err := guard(ctx, func(ctx context.Context) error {
		up = m.link.IsConnected(ctx)
		return nil
	})
	if err != nil {
		return false, err
	}
	if !up && ctx.Err() != nil {
		return false, ctx.Err()
	}
	return up, nil
}

// guard runs fn in its own goroutine so an adapter that ignores its context
// still cannot hold the caller past the deadline, and a panic becomes an error.
func guard(ctx context.Context, fn func(context.Context) error) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("link adapter panic: %v", r)
			}
		}()
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func classify(err error) *ConnectError {
	switch {
	case errors.Is(err, ports.ErrLinkAuth):
		return &ConnectError{Kind: AuthFailure, Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &ConnectError{Kind: Timeout, Err: err}
	default:
		return &ConnectError{Kind: RadioFault, Err: err}
	}
}

func (m *Manager) onConnectedLocked() {
	m.backoff.Reset()
	m.lastErr = nil
	m.retryAt = time.Time{}
	m.setState(domain.Connected)
	m.obs.SetGauge("pulseflow_backoff_seconds", 0)
	m.obs.LogInfo("link_connected", ports.Field{Key: "link", Value: m.link.Name()})
}

func (m *Manager) onFailureLocked(cerr *ConnectError) {
	delay := m.backoff.Next()
	m.lastErr = cerr
	m.retryAt = m.now().Add(delay)
	m.setState(domain.Disconnected)
	m.obs.IncCounter("pulseflow_link_failures_total", 1)
	m.obs.SetGauge("pulseflow_backoff_seconds", delay.Seconds())
	m.obs.LogError("link_connect_failed", cerr,
		ports.Field{Key: "link", Value: m.link.Name()},
		ports.Field{Key: "kind", Value: cerr.Kind.String()},
		ports.Field{Key: "retry_in", Value: delay.String()})
}

func (m *Manager) setState(s domain.ConnectionState) {
	m.state.Store(int32(s))
	m.obs.SetGauge("pulseflow_link_state", float64(s))
}
