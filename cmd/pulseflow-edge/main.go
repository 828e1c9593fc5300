package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/ghalamif/PulseFlow"
)

const banner = `
 ___      _         ___ _
| _ \_  _| |___ ___| __| |_____ __ __
|  _/ || | (_-</ -_) _|| / _ \ V  V /
|_|  \_,_|_/__/\___|_| |_\___/\_/\_/
`

func main() {
	fmt.Print(banner)
	fmt.Println()
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("pulseflow-edge %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./config.yaml", "Path to node configuration file (empty: environment only)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	flow, err := pulseflow.Conf(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return flow.Run(ctx)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := pulseflow.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	fmt.Printf("config %s looks good: device=%s interval=%s source=%s broker=%s(%s) format=%s\n",
		*cfgPath, cfg.DeviceID, cfg.Interval, cfg.Source.Kind, cfg.Broker.Kind, cfg.Broker.Endpoint, cfg.Publish.Format)
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

var statsMetrics = []string{
	"pulseflow_ticks_total",
	"pulseflow_pulses_total",
	"pulseflow_publish_total",
	"pulseflow_publish_failures_total",
	"pulseflow_flow_rate",
	"pulseflow_cumulative_volume",
	"pulseflow_link_state",
	"pulseflow_backoff_seconds",
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	targets, err := scrapeMetrics(resp.Body)
	if err != nil {
		return err
	}

	fmt.Printf("[%s] ticks=%.0f pulses=%.0f published=%.0f failed=%.0f flow=%.4f/s volume=%.3f link=%s backoff=%.1fs\n",
		time.Now().Format(time.RFC3339),
		targets["pulseflow_ticks_total"],
		targets["pulseflow_pulses_total"],
		targets["pulseflow_publish_total"],
		targets["pulseflow_publish_failures_total"],
		targets["pulseflow_flow_rate"],
		targets["pulseflow_cumulative_volume"],
		pulseflow.ConnectionState(int(targets["pulseflow_link_state"])),
		targets["pulseflow_backoff_seconds"],
	)
	return nil
}

// scrapeMetrics parses a text exposition and sums every series of the
// families in statsMetrics, so labelled series are counted too.
func scrapeMetrics(r io.Reader) (map[string]float64, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return nil, fmt.Errorf("parse metrics: %w", err)
	}

	out := make(map[string]float64, len(statsMetrics))
	for _, name := range statsMetrics {
		mf, ok := families[name]
		if !ok {
			out[name] = 0
			continue
		}
		var sum float64
		for _, m := range mf.GetMetric() {
			sum += sampleValue(m)
		}
		out[name] = sum
	}
	return out, nil
}

func sampleValue(m *dto.Metric) float64 {
	switch {
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue()
	case m.GetUntyped() != nil:
		return m.GetUntyped().GetValue()
	default:
		return 0
	}
}

func printUsage() {
	fmt.Printf(`PulseFlow CLI

Usage:
  pulseflow-edge <command> [flags]

Commands:
  run        Start the flow-meter node using the provided config
  validate   Load and validate a config file without starting the node
  stats      Poll the Prometheus metrics endpoint and print live counters

Environment:
  PULSEFLOW_INTERVAL_SECS, PULSEFLOW_CALIBRATION, PULSEFLOW_WIFI_SSID,
  PULSEFLOW_WIFI_PASSWORD, PULSEFLOW_BROKER_URL, ... override the file.

Examples:
  pulseflow-edge run -config ./config.yaml
  pulseflow-edge validate -config ./config.yaml
  pulseflow-edge stats -url http://localhost:9100/metrics -interval 1s
`)
}
