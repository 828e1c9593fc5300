package broker

import (
	"context"
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

// MQTT publishes through an Eclipse Paho client. The client's own reconnect
// logic is disabled: the publisher decides when a session is rebuilt, and every
// Connect starts from a fresh client.
type MQTT struct {
	cfg Config

	mu     sync.Mutex
	client mqtt.Client
}

func NewMQTT(cfg Config) *MQTT {
	return &MQTT{cfg: cfg}
}

func (m *MQTT) Name() string { return "mqtt" }

func (m *MQTT) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(m.cfg.Endpoint).
		SetClientID(m.cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(m.cfg.ConnectTimeout).
		SetWriteTimeout(m.cfg.SendTimeout).
		SetOrderMatters(true)
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}
	return opts
}

func (m *MQTT) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		m.client.Disconnect(0)
		m.client = nil
	}

	c := mqtt.NewClient(m.clientOptions())
	if err := waitToken(ctx, c.Connect()); err != nil {
		c.Disconnect(0)
		return fmt.Errorf("mqtt connect %s: %w", m.cfg.Endpoint, err)
	}
	m.client = c
	return nil
}

func (m *MQTT) Publish(ctx context.Context, topic string, payload []byte) error {
	m.mu.Lock()
	c := m.client
	m.mu.Unlock()

	if c == nil || !c.IsConnectionOpen() {
		return ports.ErrSessionLost
	}
	if err := waitToken(ctx, c.Publish(topic, m.cfg.QoS, m.cfg.Retain, payload)); err != nil {
		if !c.IsConnectionOpen() {
			return fmt.Errorf("mqtt publish: %w: %v", ports.ErrSessionLost, err)
		}
		return fmt.Errorf("mqtt publish: %w", err)
	}
	return nil
}

func (m *MQTT) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client != nil && m.client.IsConnectionOpen()
}

func (m *MQTT) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		m.client.Disconnect(250)
		m.client = nil
	}
	return nil
}

// waitToken waits for a paho token or the context, whichever finishes first.
func waitToken(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ ports.Broker = (*MQTT)(nil)
