package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/PulseFlow"
)

func main() {
	flow, err := pulseflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	flow.Config().Link.Kind = "static"

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Edges come from the host program instead of a GPIO line.
	src := pulseflow.NewManualPulseSource("app")
	go feed(ctx, src)

	brk, messages, closeMessages := pulseflow.NewChannelBroker("fanout", 32)
	defer closeMessages()

	go fanoutWorker("uplink", messages)

	err = flow.StreamIN(pulseflow.StreamInSource(src)).Run(ctx, pulseflow.StreamOutBroker(brk))
	if err != nil {
		log.Fatalf("node error: %v", err)
	}
}

func feed(ctx context.Context, src *pulseflow.ManualPulseSource) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Not started yet, or already stopped.
			_ = src.Add(uint64(rand.Intn(20)))
		}
	}
}

func fanoutWorker(name string, messages <-chan pulseflow.Message) {
	for msg := range messages {
		fmt.Printf("[%s] %s %d bytes at %s\n", name, msg.Topic, len(msg.Payload), time.Now().Format(time.RFC3339))
	}
}
