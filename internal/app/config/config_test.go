package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	data := `
device_id: node-07
calibration: 0.00225
source:
  kind: gpio
  gpio:
    pin: GPIO17
broker:
  endpoint: tcp://broker.local:1883
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Interval != 10*time.Second {
		t.Fatalf("expected interval default 10s, got %s", cfg.Interval)
	}
	if cfg.Unit != "L" {
		t.Fatalf("expected unit default L, got %s", cfg.Unit)
	}
	if cfg.Broker.Kind != "mqtt" {
		t.Fatalf("expected broker kind default mqtt, got %s", cfg.Broker.Kind)
	}
	if cfg.Broker.Topic != "pulseflow/node-07/reading" {
		t.Fatalf("expected topic derived from device id, got %s", cfg.Broker.Topic)
	}
	if !strings.HasPrefix(cfg.Broker.ClientID, "node-07-") {
		t.Fatalf("expected client id derived from device id, got %s", cfg.Broker.ClientID)
	}
	if cfg.Backoff.Min != time.Second || cfg.Backoff.Max != time.Minute {
		t.Fatalf("expected default backoff 1s..1m, got %s..%s", cfg.Backoff.Min, cfg.Backoff.Max)
	}
	if cfg.Source.GPIO.Edge != "falling" {
		t.Fatalf("expected gpio edge default falling, got %s", cfg.Source.GPIO.Edge)
	}
	if cfg.Link.Kind != "static" {
		t.Fatalf("expected static link by default, got %s", cfg.Link.Kind)
	}
	if cfg.Publish.Format != "json" {
		t.Fatalf("expected json format by default, got %s", cfg.Publish.Format)
	}
	if cfg.Metrics.Addr != "" {
		t.Fatalf("metrics server should be off unless configured, got %q", cfg.Metrics.Addr)
	}
}

func TestParseEnvOverrides(t *testing.T) {
	raw := []byte(`
calibration: 0.01
interval: 30s
source: {kind: simulate}
link: {kind: nmcli, ssid: from-file}
broker: {endpoint: tcp://file:1883}
`)
	env := envMap(map[string]string{
		"PULSEFLOW_INTERVAL_SECS":   "5",
		"PULSEFLOW_WIFI_SSID":       "plant-floor",
		"PULSEFLOW_WIFI_PASSWORD":   "hunter2",
		"PULSEFLOW_BROKER_URL":      "tcp://env:1883",
		"PULSEFLOW_CALIBRATION":     "0.002",
		"PULSEFLOW_BROKER_USERNAME": "node",
	})

	cfg, err := Parse(raw, env)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Interval != 5*time.Second {
		t.Fatalf("env interval should win, got %s", cfg.Interval)
	}
	if cfg.Link.SSID != "plant-floor" || cfg.Link.Password != "hunter2" {
		t.Fatalf("env radio credentials not applied: %+v", cfg.Link)
	}
	if cfg.Broker.Endpoint != "tcp://env:1883" || cfg.Broker.Username != "node" {
		t.Fatalf("env broker settings not applied: %+v", cfg.Broker)
	}
	if cfg.Calibration != 0.002 {
		t.Fatalf("env calibration not applied, got %v", cfg.Calibration)
	}
}

func TestParseEnvOnly(t *testing.T) {
	env := envMap(map[string]string{
		"PULSEFLOW_SOURCE":      "simulate",
		"PULSEFLOW_CALIBRATION": "0.00225",
		"PULSEFLOW_BROKER_KIND": "nats",
		"PULSEFLOW_BROKER_URL":  "nats://127.0.0.1:4222",
	})
	cfg, err := Parse(nil, env)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Broker.Kind != "nats" || cfg.Source.Kind != "simulate" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]struct {
		raw string
		env map[string]string
	}{
		"missing calibration":  {raw: "source: {kind: simulate}\nbroker: {endpoint: x}"},
		"negative calibration": {raw: "calibration: -1\nsource: {kind: simulate}\nbroker: {endpoint: x}"},
		"sub-second interval":  {raw: "calibration: 1\ninterval: 10ms\nsource: {kind: simulate}\nbroker: {endpoint: x}"},
		"gpio without pin":     {raw: "calibration: 1\nbroker: {endpoint: x}"},
		"unknown source":       {raw: "calibration: 1\nsource: {kind: laser}\nbroker: {endpoint: x}"},
		"missing endpoint":     {raw: "calibration: 1\nsource: {kind: simulate}"},
		"unknown format":       {raw: "calibration: 1\nsource: {kind: simulate}\nbroker: {endpoint: x}\npublish: {format: xml}"},
		"bad backoff":          {raw: "calibration: 1\nsource: {kind: simulate}\nbroker: {endpoint: x}\nbackoff: {min: 10s, max: 1s}"},
		"bad interval env": {
			raw: "calibration: 1\nsource: {kind: simulate}\nbroker: {endpoint: x}",
			env: map[string]string{"PULSEFLOW_INTERVAL_SECS": "soon"},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			lookup := noEnv
			if tc.env != nil {
				lookup = envMap(tc.env)
			}
			if _, err := Parse([]byte(tc.raw), lookup); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
