package pulseflow

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewCallbackBroker(t *testing.T) {
	var received []Message
	brk := NewCallbackBroker("cb", func(m Message) error {
		received = append(received, m)
		return nil
	})

	if err := brk.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	if !brk.IsConnected() {
		t.Fatalf("expected callback broker to report a session")
	}

	payload := []byte(`{"seq":42}`)
	if err := brk.Publish(context.Background(), "flow/t", payload); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	payload[0] = 'X'

	if len(received) != 1 {
		t.Fatalf("expected 1 message, got %d", len(received))
	}
	if received[0].Topic != "flow/t" || string(received[0].Payload) != `{"seq":42}` {
		t.Fatalf("unexpected message %+v", received[0])
	}

	if err := brk.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if brk.IsConnected() {
		t.Fatalf("expected no session after Close")
	}
}

func TestNewCallbackBrokerNilHandler(t *testing.T) {
	brk := NewCallbackBroker("", nil)
	if err := brk.Connect(context.Background()); err == nil {
		t.Fatalf("expected error when callback is nil")
	}
	if brk.Name() != "callback" {
		t.Fatalf("expected default name, got %q", brk.Name())
	}
}

func TestNewChannelBroker(t *testing.T) {
	brk, ch, closeFn := NewChannelBroker("chan", 1)
	defer closeFn()

	if err := brk.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- brk.Publish(context.Background(), "flow/t", []byte("a"))
	}()

	var msg Message
	select {
	case msg = <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel message")
	}

	if err := <-errCh; err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if string(msg.Payload) != "a" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	closeFn()
	if err := brk.Publish(context.Background(), "flow/t", []byte("b")); !errors.Is(err, ErrChannelBrokerClosed) {
		t.Fatalf("expected ErrChannelBrokerClosed, got %v", err)
	}
	if brk.IsConnected() {
		t.Fatalf("expected closed channel broker to report no session")
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
}

func TestChannelBrokerCloseUnblocksPublish(t *testing.T) {
	brk, _, closeFn := NewChannelBroker("", 0)

	errCh := make(chan error, 1)
	go func() {
		errCh <- brk.Publish(context.Background(), "flow/t", []byte("stuck"))
	}()
	time.Sleep(10 * time.Millisecond)
	closeFn()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrChannelBrokerClosed) {
			t.Fatalf("expected ErrChannelBrokerClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Publish stayed blocked after close")
	}
}

func TestChannelBrokerPublishHonoursContext(t *testing.T) {
	brk, _, closeFn := NewChannelBroker("", 0)
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := brk.Publish(ctx, "flow/t", []byte("x")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
