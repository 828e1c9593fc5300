package pulseflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/ghalamif/PulseFlow/internal/adapters/broker"
	"github.com/ghalamif/PulseFlow/internal/adapters/encoding"
	"github.com/ghalamif/PulseFlow/internal/adapters/gpio"
	"github.com/ghalamif/PulseFlow/internal/adapters/link"
	"github.com/ghalamif/PulseFlow/internal/adapters/observability"
	"github.com/ghalamif/PulseFlow/internal/adapters/opcua"
	"github.com/ghalamif/PulseFlow/internal/adapters/simulate"
	"github.com/ghalamif/PulseFlow/internal/app/config"
	"github.com/ghalamif/PulseFlow/internal/app/connectivity"
	"github.com/ghalamif/PulseFlow/internal/app/engine"
	"github.com/ghalamif/PulseFlow/internal/app/flow"
	"github.com/ghalamif/PulseFlow/internal/app/publisher"
	"github.com/ghalamif/PulseFlow/internal/app/pulse"
	"github.com/ghalamif/PulseFlow/internal/domain"
	"github.com/ghalamif/PulseFlow/internal/ports"
)

// NodeOption customizes the dependencies used by Node.
type NodeOption func(*nodeOverrides)

type nodeOverrides struct {
	source        PulseSource
	link          Link
	broker        Broker
	encoder       Encoder
	observability Observability
	registerer    prometheus.Registerer
	gatherer      prometheus.Gatherer
	clock         Clock
	accessLog     io.Writer
}

// WithPulseSource injects a custom pulse source.
func WithPulseSource(src PulseSource) NodeOption {
	return func(o *nodeOverrides) {
		o.source = src
	}
}

// WithLink injects a custom radio link.
func WithLink(l Link) NodeOption {
	return func(o *nodeOverrides) {
		o.link = l
	}
}

// WithBroker injects a custom destination so readings can go to any system.
func WithBroker(b Broker) NodeOption {
	return func(o *nodeOverrides) {
		o.broker = b
	}
}

// WithEncoder overrides the wire format selected by publish.format.
func WithEncoder(e Encoder) NodeOption {
	return func(o *nodeOverrides) {
		o.encoder = e
	}
}

// WithObservability plugs in a custom logging/metrics backend.
func WithObservability(obs Observability) NodeOption {
	return func(o *nodeOverrides) {
		o.observability = obs
	}
}

// WithRegistry registers the node metrics on reg and serves them from it.
func WithRegistry(reg *prometheus.Registry) NodeOption {
	return func(o *nodeOverrides) {
		if reg != nil {
			o.registerer = reg
			o.gatherer = reg
		}
	}
}

// WithClock replaces the wall clock of the sampling loop.
func WithClock(c Clock) NodeOption {
	return func(o *nodeOverrides) {
		o.clock = c
	}
}

// WithAccessLog sets where metrics HTTP requests are logged. Defaults to stdout.
func WithAccessLog(w io.Writer) NodeOption {
	return func(o *nodeOverrides) {
		o.accessLog = w
	}
}

// Node wires pulse source → counter → calculator → publisher → destination and
// owns every collaborator for the process lifetime.
type Node struct {
	cfg       Config
	obs       ports.Observability
	source    ports.PulseSource
	counter   *pulse.Counter
	link      *connectivity.Manager
	broker    ports.Broker
	publisher *publisher.Publisher
	engine    *engine.Engine
	gatherer  prometheus.Gatherer
	accessLog io.Writer
	logCloser io.Closer

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewNode bootstraps the default adapters named by cfg (pulse source, link,
// destination, wire format, Prometheus observability). NodeOption values
// override any of them.
func NewNode(cfg *Config, opts ...NodeOption) (*Node, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	c := *cfg
	c.ApplyDefaults()

	o := nodeOverrides{
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
		accessLog:  os.Stdout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	n := &Node{cfg: c, gatherer: o.gatherer, accessLog: o.accessLog, counter: pulse.NewCounter()}

	n.obs = o.observability
	if n.obs == nil {
		logger, closer, err := observability.NewLogger(c.Log)
		if err != nil {
			return nil, err
		}
		n.logCloser = closer
		n.obs = observability.NewPromObs(o.registerer, logger)
	}

	var err error
	if n.source = o.source; n.source == nil {
		if n.source, err = newSource(c.Source, n.obs); err != nil {
			return nil, n.abort(fmt.Errorf("pulse source: %w", err))
		}
	}

	l := o.link
	if l == nil {
		if err := c.Link.Validate(); err != nil {
			return nil, n.abort(fmt.Errorf("link: %w", err))
		}
		if l, err = link.New(c.Link); err != nil {
			return nil, n.abort(err)
		}
	}
	if err := c.Backoff.Validate(); err != nil {
		return nil, n.abort(fmt.Errorf("backoff: %w", err))
	}
	if n.link, err = connectivity.NewManager(l, n.obs, connectivity.WithBackoff(connectivity.NewBackoff(c.Backoff))); err != nil {
		return nil, n.abort(err)
	}

	if n.broker = o.broker; n.broker == nil {
		if err := c.Broker.Validate(); err != nil {
			return nil, n.abort(fmt.Errorf("broker: %w", err))
		}
		if n.broker, err = broker.New(c.Broker, c.DeviceID); err != nil {
			return nil, n.abort(err)
		}
	}

	enc := o.encoder
	if enc == nil {
		if enc, err = encoding.New(c.Publish.Format, encoding.Meta{DeviceID: c.DeviceID, Unit: c.Unit}); err != nil {
			return nil, n.abort(err)
		}
	}

	n.publisher, err = publisher.New(publisher.Config{
		Topic:          c.Broker.Topic,
		LinkTimeout:    c.Link.Timeout,
		SessionTimeout: c.Broker.ConnectTimeout,
		SendTimeout:    c.Broker.SendTimeout,
	}, n.link, n.broker, enc, n.obs)
	if err != nil {
		return nil, n.abort(err)
	}

	calc, err := flow.NewCalculator(c.Calibration)
	if err != nil {
		return nil, n.abort(err)
	}

	var engineOpts []engine.Option
	if o.clock != nil {
		engineOpts = append(engineOpts, engine.WithClock(o.clock))
	}
	n.engine, err = engine.New(engine.Config{
		Interval:           c.Interval,
		ZeroPulseWarnTicks: c.Monitor.ZeroPulseWarnTicks,
	}, n.counter, calc, n.publisher, n.obs, engineOpts...)
	if err != nil {
		return nil, n.abort(err)
	}
	return n, nil
}

func newSource(cfg config.SourceConfig, obs ports.Observability) (ports.PulseSource, error) {
	switch cfg.Kind {
	case config.SourceGPIO:
		return gpio.NewSource(cfg.GPIO, obs)
	case config.SourceOPCUA:
		return opcua.NewSource(cfg.OPCUA, obs)
	case config.SourceSimulate:
		return simulate.NewSource(cfg.Simulate, obs)
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// abort releases what NewNode already acquired.
func (n *Node) abort(err error) error {
	if n.logCloser != nil {
		_ = n.logCloser.Close()
	}
	return err
}

// Config returns the effective configuration, defaults included.
func (n *Node) Config() Config { return n.cfg }

// Stats returns a snapshot of the sampling loop counters.
func (n *Node) Stats() Stats { return n.engine.Stats() }

// LinkState reports the radio link state.
func (n *Node) LinkState() ConnectionState { return n.link.State() }

// SessionState reports the broker session state.
func (n *Node) SessionState() ConnectionState { return n.publisher.State() }

// Run starts the pulse source, then runs the sampling loop and the metrics
// server until ctx is cancelled. A pulse source that fails to start is fatal;
// nothing after that is.
func (n *Node) Run(ctx context.Context) error {
	if err := n.source.Start(n.counter); err != nil {
		n.obs.LogCritical("pulse_source_failed", err, ports.Field{Key: "source", Value: n.source.Name()})
		return errors.Join(fmt.Errorf("start pulse source %s: %w", n.source.Name(), err), n.Shutdown(context.Background()))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return n.engine.Run(gctx)
	})
	if addr := n.cfg.Metrics.Addr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           n.httpHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			n.obs.LogInfo("metrics_listening", ports.Field{Key: "addr", Value: addr})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	err := g.Wait()
	if engine.IsShutdown(err) {
		err = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(err, n.Shutdown(shutdownCtx))
}

// Shutdown stops the pulse source, ends the broker session, drops the link
// and releases the log file. Safe to call more than once.
func (n *Node) Shutdown(ctx context.Context) error {
	n.shutdownOnce.Do(func() {
		var errs []error
		if err := n.source.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop pulse source: %w", err))
		}
		if err := n.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close broker session: %w", err))
		}
		if s, ok := n.broker.(interface{ Shutdown() error }); ok {
			if err := s.Shutdown(); err != nil {
				errs = append(errs, err)
			}
		}
		if n.link.State() != domain.Disconnected {
			if err := n.link.Disconnect(ctx); err != nil {
				errs = append(errs, fmt.Errorf("disconnect link: %w", err))
			}
		}
		stats := n.engine.Stats()
		n.obs.LogInfo("node_stopped",
			ports.Field{Key: "ticks", Value: stats.Ticks},
			ports.Field{Key: "published", Value: stats.Published},
			ports.Field{Key: "failures", Value: stats.Failures})
		if n.logCloser != nil {
			if err := n.logCloser.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		n.shutdownErr = errors.Join(errs...)
	})
	return n.shutdownErr
}
