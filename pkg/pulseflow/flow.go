package pulseflow

import (
	"context"
	"fmt"
)

// Flow is a convenience builder that lets callers say Conf → StreamIN → StreamOUT
// without touching the underlying hexagonal wiring.
type Flow struct {
	cfg  *Config
	opts []NodeOption
}

// FlowOption mutates the Flow after configuration is loaded.
type FlowOption func(*Flow)

// StreamInOption configures the pulse side of the node.
type StreamInOption func(*Flow)

// StreamOutOption configures the delivery side of the node.
type StreamOutOption func(*Flow)

// Conf loads YAML from disk, applies FlowOption values, and returns a Flow builder.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig bootstraps a Flow from an in-memory Config.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Config returns the underlying configuration so callers can tweak it before building a node.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options appends raw NodeOption values to the builder for advanced scenarios.
func (f *Flow) Options(opts ...NodeOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

// StreamIN records pulse-side overrides (source, link, observability).
func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// StreamOUT records delivery-side overrides and builds a Node ready to run.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Node, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewNode(f.cfg, f.opts...)
}

// Run is a shortcut for StreamOUT + node.Run.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	n, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return n.Run(ctx)
}

// WithFlowOptions appends NodeOption values during Conf.
func WithFlowOptions(opts ...NodeOption) FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(opts...)
		}
	}
}

// StreamInSource injects a custom pulse source.
func StreamInSource(src PulseSource) StreamInOption {
	return func(f *Flow) {
		if f != nil && src != nil {
			f.appendOptions(WithPulseSource(src))
		}
	}
}

// StreamInLink injects a custom radio link.
func StreamInLink(l Link) StreamInOption {
	return func(f *Flow) {
		if f != nil && l != nil {
			f.appendOptions(WithLink(l))
		}
	}
}

// StreamInObservability overrides the default Prometheus-based observability stack.
func StreamInObservability(obs Observability) StreamInOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutBroker injects a custom destination.
func StreamOutBroker(b Broker) StreamOutOption {
	return func(f *Flow) {
		if f != nil && b != nil {
			f.appendOptions(WithBroker(b))
		}
	}
}

// StreamOutEncoder overrides the wire format.
func StreamOutEncoder(e Encoder) StreamOutOption {
	return func(f *Flow) {
		if f != nil && e != nil {
			f.appendOptions(WithEncoder(e))
		}
	}
}

// StreamOutObservability replaces the default observability backend.
func StreamOutObservability(obs Observability) StreamOutOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutCallback installs a destination built from a simple callback function.
func StreamOutCallback(name string, fn MessageHandler) StreamOutOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(WithBroker(NewCallbackBroker(name, fn)))
		}
	}
}

func (f *Flow) appendOptions(opts ...NodeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
