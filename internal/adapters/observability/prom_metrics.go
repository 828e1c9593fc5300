// Package observability backs ports.Observability with slog and Prometheus.
package observability

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

// levelCritical sits above slog.LevelError so critical events survive any
// level filter.
const levelCritical = slog.LevelError + 4

type PromObs struct {
	log      *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the node metrics on reg. A nil reg uses the default
// registerer; a nil logger uses slog.Default().
func NewPromObs(reg prometheus.Registerer, logger *slog.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = slog.Default()
	}

	pulses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pulseflow_pulses_total",
		Help: "Pulses drained from the counter by the sampling loop.",
	})
	ticks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pulseflow_ticks_total",
		Help: "Sampling loop iterations.",
	})
	published := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pulseflow_publish_total",
		Help: "Readings delivered to the destination.",
	})
	publishFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pulseflow_publish_failures_total",
		Help: "Readings that could not be delivered.",
	})
	linkFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pulseflow_link_failures_total",
		Help: "Failed wireless association attempts.",
	})
	linkState := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pulseflow_link_state",
		Help: "Wireless link state (0 disconnected, 1 connecting, 2 connected).",
	})
	sessionState := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pulseflow_session_state",
		Help: "Broker session state (0 disconnected, 1 connecting, 2 connected, 3 publishing).",
	})
	flowRate := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pulseflow_flow_rate",
		Help: "Most recent flow rate in volume units per second.",
	})
	volume := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pulseflow_cumulative_volume",
		Help: "Volume measured since process start.",
	})
	backoff := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pulseflow_backoff_seconds",
		Help: "Current reconnect backoff window.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pulseflow_publish_latency_seconds",
		Help:    "Time spent in a successful send.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	reg.MustRegister(pulses, ticks, published, publishFailures, linkFailures,
		linkState, sessionState, flowRate, volume, backoff, latency)

	return &PromObs{
		log: logger,
		counters: map[string]prometheus.Counter{
			"pulseflow_pulses_total":           pulses,
			"pulseflow_ticks_total":            ticks,
			"pulseflow_publish_total":          published,
			"pulseflow_publish_failures_total": publishFailures,
			"pulseflow_link_failures_total":    linkFailures,
		},
		gauges: map[string]prometheus.Gauge{
			"pulseflow_link_state":        linkState,
			"pulseflow_session_state":     sessionState,
			"pulseflow_flow_rate":         flowRate,
			"pulseflow_cumulative_volume": volume,
			"pulseflow_backoff_seconds":   backoff,
		},
		histos: map[string]prometheus.Observer{
			"pulseflow_publish_latency_seconds": latency,
		},
	}
}

// Logger exposes the underlying slog logger.
func (p *PromObs) Logger() *slog.Logger { return p.log }

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.LogAttrs(context.Background(), slog.LevelInfo, msg, attrs(nil, fields)...)
}

func (p *PromObs) LogWarn(msg string, fields ...ports.Field) {
	p.log.LogAttrs(context.Background(), slog.LevelWarn, msg, attrs(nil, fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.LogAttrs(context.Background(), slog.LevelError, msg, attrs(err, fields)...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.log.LogAttrs(context.Background(), levelCritical, msg, attrs(err, fields)...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func attrs(err error, fields []ports.Field) []slog.Attr {
	out := make([]slog.Attr, 0, len(fields)+1)
	if err != nil {
		out = append(out, slog.String("error", err.Error()))
	}
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
