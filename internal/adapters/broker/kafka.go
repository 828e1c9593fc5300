package broker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

// Kafka writes each reading as one record keyed by device id, waiting for the
// partition leader's acknowledgment.
type Kafka struct {
	cfg      Config
	deviceID string
	dial     func(ctx context.Context, network, address string) (*kafka.Conn, error)

	mu        sync.Mutex
	writer    *kafka.Writer
	connected bool
}

func NewKafka(cfg Config, deviceID string) *Kafka {
	return &Kafka{cfg: cfg, deviceID: deviceID, dial: kafka.DialContext}
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) brokers() []string {
	var out []string
	for _, b := range strings.Split(k.cfg.Endpoint, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Connect proves a broker is reachable; kafka.Writer itself dials lazily.
func (k *Kafka) Connect(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.closeLocked()

	brokers := k.brokers()
	var errs []error
	for _, addr := range brokers {
		conn, err := k.dial(ctx, "tcp", addr)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		_ = conn.Close()

		k.writer = &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: k.cfg.SendTimeout,
			MaxAttempts:  1,
		}
		k.connected = true
		return nil
	}
	return fmt.Errorf("kafka connect %s: %w", k.cfg.Endpoint, errors.Join(errs...))
}

func (k *Kafka) Publish(ctx context.Context, topic string, payload []byte) error {
	k.mu.Lock()
	w := k.writer
	k.mu.Unlock()

	if w == nil {
		return ports.ErrSessionLost
	}
	err := w.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(k.deviceID),
		Value: payload,
	})
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		k.mu.Lock()
		k.connected = false
		k.mu.Unlock()
		return fmt.Errorf("kafka write: %w: %v", ports.ErrSessionLost, err)
	}
	return fmt.Errorf("kafka write: %w", err)
}

func (k *Kafka) IsConnected() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.connected
}

func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.closeLocked()
}

func (k *Kafka) closeLocked() error {
	k.connected = false
	if k.writer == nil {
		return nil
	}
	err := k.writer.Close()
	k.writer = nil
	return err
}

var _ ports.Broker = (*Kafka)(nil)
