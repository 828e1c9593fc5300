package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/PulseFlow/pkg/pulseflow"
)

func main() {
	flow, err := pulseflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	// Bench run: synthetic pulses, no radio.
	cfg := flow.Config()
	cfg.Source.Kind = "simulate"
	cfg.Link.Kind = "static"
	cfg.Publish.Format = "json"

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(msg pulseflow.Message) error {
		var r struct {
			Seq    uint64  `json:"seq"`
			TS     string  `json:"ts"`
			Pulses uint64  `json:"pulse_delta"`
			Rate   float64 `json:"flow_rate"`
			Volume float64 `json:"cumulative_volume"`
		}
		if err := json.Unmarshal(msg.Payload, &r); err != nil {
			return err
		}
		fmt.Printf("%s seq=%d pulses=%d rate=%.4f volume=%.3f\n", r.TS, r.Seq, r.Pulses, r.Rate, r.Volume)
		return nil
	}

	if err := flow.Run(ctx, pulseflow.StreamOutCallback("stdout", callback)); err != nil {
		log.Fatalf("node error: %v", err)
	}
}
