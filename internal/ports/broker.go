package ports

import (
	"context"
	"errors"
)

// ErrSessionLost is wrapped by broker adapters when a publish failed because the
// underlying session is gone, as opposed to a per-message rejection.
var ErrSessionLost = errors.New("broker: session lost")

// Broker is the telemetry destination collaborator (MQTT, NATS, Kafka, SQL...).
type Broker interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, topic string, payload []byte) error
	IsConnected() bool
	Close() error
	Name() string
}
