package pulseflow

import (
	base "github.com/ghalamif/PulseFlow/pkg/pulseflow"
)

// Re-exported errors for convenience.
var (
	ErrChannelBrokerClosed = base.ErrChannelBrokerClosed
	ErrSourceNotStarted    = base.ErrSourceNotStarted

	ErrTimeout        = base.ErrTimeout
	ErrAuthFailure    = base.ErrAuthFailure
	ErrRadioFault     = base.ErrRadioFault
	ErrLinkDown       = base.ErrLinkDown
	ErrSessionFailed  = base.ErrSessionFailed
	ErrDeliveryFailed = base.ErrDeliveryFailed
	ErrSessionLost    = base.ErrSessionLost
	ErrLinkAuth       = base.ErrLinkAuth
)

// Type aliases so consumers can import github.com/ghalamif/PulseFlow directly.
type (
	Config            = base.Config
	SourceConfig      = base.SourceConfig
	GPIOConfig        = base.GPIOConfig
	OPCUAConfig       = base.OPCUAConfig
	SimulateConfig    = base.SimulateConfig
	LinkConfig        = base.LinkConfig
	BackoffConfig     = base.BackoffConfig
	BrokerConfig      = base.BrokerConfig
	PublishConfig     = base.PublishConfig
	MonitorConfig     = base.MonitorConfig
	MetricsConfig     = base.MetricsConfig
	LogConfig         = base.LogConfig
	Flow              = base.Flow
	FlowOption        = base.FlowOption
	StreamInOption    = base.StreamInOption
	StreamOutOption   = base.StreamOutOption
	Node              = base.Node
	NodeOption        = base.NodeOption
	Reading           = base.Reading
	ConnectionState   = base.ConnectionState
	Stats             = base.Stats
	Clock             = base.Clock
	PulseSource       = base.PulseSource
	EdgeRecorder      = base.EdgeRecorder
	Link              = base.Link
	Broker            = base.Broker
	Encoder           = base.Encoder
	Observability     = base.Observability
	Field             = base.Field
	Message           = base.Message
	MessageHandler    = base.MessageHandler
	ManualPulseSource = base.ManualPulseSource
	ConnectError      = base.ConnectError
	PublishError      = base.PublishError
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...NodeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInSource(src PulseSource) StreamInOption {
	return base.StreamInSource(src)
}

func StreamInLink(l Link) StreamInOption {
	return base.StreamInLink(l)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutBroker(b Broker) StreamOutOption {
	return base.StreamOutBroker(b)
}

func StreamOutEncoder(e Encoder) StreamOutOption {
	return base.StreamOutEncoder(e)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn MessageHandler) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Node and options.
func NewNode(cfg *Config, opts ...NodeOption) (*Node, error) {
	return base.NewNode(cfg, opts...)
}

func WithPulseSource(src PulseSource) NodeOption {
	return base.WithPulseSource(src)
}

func WithLink(l Link) NodeOption {
	return base.WithLink(l)
}

func WithBroker(b Broker) NodeOption {
	return base.WithBroker(b)
}

func WithEncoder(e Encoder) NodeOption {
	return base.WithEncoder(e)
}

func WithObservability(obs Observability) NodeOption {
	return base.WithObservability(obs)
}

func WithClock(c Clock) NodeOption {
	return base.WithClock(c)
}

// In-process sources and destinations.
func NewManualPulseSource(name string) *ManualPulseSource {
	return base.NewManualPulseSource(name)
}

func NewCallbackBroker(name string, fn MessageHandler) Broker {
	return base.NewCallbackBroker(name, fn)
}

func NewChannelBroker(name string, buffer int) (Broker, <-chan Message, func()) {
	return base.NewChannelBroker(name, buffer)
}
