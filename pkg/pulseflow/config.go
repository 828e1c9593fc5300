package pulseflow

import (
	"github.com/ghalamif/PulseFlow/internal/adapters/broker"
	"github.com/ghalamif/PulseFlow/internal/adapters/gpio"
	"github.com/ghalamif/PulseFlow/internal/adapters/link"
	"github.com/ghalamif/PulseFlow/internal/adapters/observability"
	"github.com/ghalamif/PulseFlow/internal/adapters/opcua"
	"github.com/ghalamif/PulseFlow/internal/adapters/simulate"
	"github.com/ghalamif/PulseFlow/internal/app/config"
	"github.com/ghalamif/PulseFlow/internal/app/connectivity"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// SourceConfig selects the pulse source.
	SourceConfig = config.SourceConfig
	// GPIOConfig configures edge capture on a GPIO line.
	GPIOConfig = gpio.Config
	// OPCUAConfig points at a PLC counter tag.
	OPCUAConfig = opcua.Config
	// SimulateConfig drives the synthetic pulse train.
	SimulateConfig = simulate.Config
	// LinkConfig holds radio credentials.
	LinkConfig = link.Config
	// BackoffConfig paces link reconnects.
	BackoffConfig = connectivity.BackoffConfig
	// BrokerConfig selects and configures the destination.
	BrokerConfig = broker.Config
	// PublishConfig selects the wire format.
	PublishConfig = config.PublishConfig
	// MonitorConfig tunes the idle-sensor warning.
	MonitorConfig = config.MonitorConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// LogConfig configures structured logging.
	LogConfig = observability.LogConfig
)

// LoadConfig loads YAML from disk and applies PULSEFLOW_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
