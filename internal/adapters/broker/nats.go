package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

// NATS publishes on a core NATS subject and flushes so a send only succeeds
// once the server has seen it.
type NATS struct {
	cfg Config

	mu   sync.Mutex
	conn *nats.Conn
}

func NewNATS(cfg Config) *NATS {
	return &NATS{cfg: cfg}
}

func (n *NATS) Name() string { return "nats" }

func (n *NATS) options() []nats.Option {
	opts := []nats.Option{
		nats.Name(n.cfg.ClientID),
		nats.Timeout(n.cfg.ConnectTimeout),
		nats.NoReconnect(),
	}
	if n.cfg.Username != "" {
		opts = append(opts, nats.UserInfo(n.cfg.Username, n.cfg.Password))
	}
	return opts
}

func (n *NATS) Connect(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := nats.Connect(n.cfg.Endpoint, n.options()...)
	if err != nil {
		return fmt.Errorf("nats connect %s: %w", n.cfg.Endpoint, err)
	}
	n.conn = conn
	return nil
}

func (n *NATS) Publish(ctx context.Context, subject string, payload []byte) error {
	n.mu.Lock()
	conn := n.conn
	n.mu.Unlock()

	if conn == nil || !conn.IsConnected() {
		return ports.ErrSessionLost
	}
	if err := conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	if err := conn.FlushWithContext(ctx); err != nil {
		if !conn.IsConnected() {
			return fmt.Errorf("nats flush: %w: %v", ports.ErrSessionLost, err)
		}
		return fmt.Errorf("nats flush: %w", err)
	}
	return nil
}

func (n *NATS) IsConnected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.conn != nil && n.conn.IsConnected()
}

func (n *NATS) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}
	return nil
}

var _ ports.Broker = (*NATS)(nil)
