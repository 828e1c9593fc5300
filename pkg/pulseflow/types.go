package pulseflow

import (
	"github.com/ghalamif/PulseFlow/internal/app/connectivity"
	"github.com/ghalamif/PulseFlow/internal/app/engine"
	"github.com/ghalamif/PulseFlow/internal/app/publisher"
	"github.com/ghalamif/PulseFlow/internal/domain"
	"github.com/ghalamif/PulseFlow/internal/ports"
)

// Reading is the measurement published once per tick.
type Reading = domain.Reading

// ConnectionState is the state of the radio link or the broker session.
type ConnectionState = domain.ConnectionState

// PulseSource feeds sensor edges into the node (GPIO, OPC UA, simulators, ...).
type PulseSource = ports.PulseSource

// EdgeRecorder is what a PulseSource reports edges to.
type EdgeRecorder = ports.EdgeRecorder

// Link abstracts the wireless radio.
type Link = ports.Link

// Broker is a telemetry destination.
type Broker = ports.Broker

// Encoder turns a Reading into a wire payload.
type Encoder = ports.Encoder

// Observability emits logs and metrics about the node.
type Observability = ports.Observability

// Field is a structured log/metric field used by Observability implementations.
type Field = ports.Field

// Clock is the time source of the sampling loop.
type Clock = engine.Clock

// Stats is a snapshot of sampling loop counters.
type Stats = engine.Stats

// ConnectError describes a failed link association.
type ConnectError = connectivity.ConnectError

// PublishError describes why a reading was not delivered.
type PublishError = publisher.PublishError

// Error classes surfaced by the link manager and the publisher.
var (
	ErrTimeout     = connectivity.ErrTimeout
	ErrAuthFailure = connectivity.ErrAuthFailure
	ErrRadioFault  = connectivity.ErrRadioFault

	ErrLinkDown       = publisher.ErrLinkDown
	ErrSessionFailed  = publisher.ErrSessionFailed
	ErrDeliveryFailed = publisher.ErrDeliveryFailed

	// ErrSessionLost is returned by Broker.Publish when the session died underneath.
	ErrSessionLost = ports.ErrSessionLost
	// ErrLinkAuth is returned by Link.Connect when credentials were rejected.
	ErrLinkAuth = ports.ErrLinkAuth
)
