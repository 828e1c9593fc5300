package pulseflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrChannelBrokerClosed is returned when a channel broker is published to after being closed.
var ErrChannelBrokerClosed = errors.New("pulseflow: channel broker closed")

// Message is one encoded reading handed to an in-process destination.
type Message struct {
	Topic   string
	Payload []byte
}

// MessageHandler consumes messages delivered to a callback broker.
type MessageHandler func(Message) error

// NewCallbackBroker adapts a function into a Broker so callers can plug in any
// destination without defining a struct.
func NewCallbackBroker(name string, fn MessageHandler) Broker {
	if name == "" {
		name = "callback"
	}
	return &callbackBroker{name: name, fn: fn}
}

// NewChannelBroker exposes messages via a channel; it returns the broker, the
// read-only channel, and a close function that the caller should invoke during
// shutdown.
func NewChannelBroker(name string, buffer int) (Broker, <-chan Message, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Message, buffer)
	b := &channelBroker{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return b, ch, func() { b.close() }
}

type callbackBroker struct {
	name string
	fn   MessageHandler

	mu        sync.Mutex
	connected bool
}

func (b *callbackBroker) Connect(context.Context) error {
	if b.fn == nil {
		return fmt.Errorf("callback broker %q: nil handler", b.name)
	}
	b.mu.Lock()
	b.connected = true
	b.mu.Unlock()
	return nil
}

func (b *callbackBroker) Publish(_ context.Context, topic string, payload []byte) error {
	if b.fn == nil {
		return fmt.Errorf("callback broker %q: nil handler", b.name)
	}
	return b.fn(Message{Topic: topic, Payload: copyPayload(payload)})
}

func (b *callbackBroker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *callbackBroker) Close() error {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
	return nil
}

func (b *callbackBroker) Name() string { return b.name }

type channelBroker struct {
	name   string
	ch     chan Message
	closed chan struct{}
	once   sync.Once

	// sending is held for reading by every in-flight Publish so close can wait
	// for them before closing ch.
	sending   sync.RWMutex
	mu        sync.Mutex
	connected bool
}

func (b *channelBroker) Connect(context.Context) error {
	select {
	case <-b.closed:
		return ErrChannelBrokerClosed
	default:
	}
	b.mu.Lock()
	b.connected = true
	b.mu.Unlock()
	return nil
}

func (b *channelBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	b.sending.RLock()
	defer b.sending.RUnlock()

	select {
	case <-b.closed:
		return ErrChannelBrokerClosed
	default:
	}

	msg := Message{Topic: topic, Payload: copyPayload(payload)}
	select {
	case <-b.closed:
		return ErrChannelBrokerClosed
	case <-ctx.Done():
		return ctx.Err()
	case b.ch <- msg:
		return nil
	}
}

func (b *channelBroker) IsConnected() bool {
	select {
	case <-b.closed:
		return false
	default:
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *channelBroker) Close() error {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
	return nil
}

func (b *channelBroker) Name() string { return b.name }

func (b *channelBroker) close() {
	b.once.Do(func() {
		close(b.closed)
		b.sending.Lock()
		close(b.ch)
		b.sending.Unlock()
	})
}

func copyPayload(p []byte) []byte {
	if p == nil {
		return nil
	}
	out := make([]byte, len(p))
	copy(out, p)
	return out
}
