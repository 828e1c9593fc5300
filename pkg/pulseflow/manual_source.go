package pulseflow

import (
	"errors"
	"sync"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

// ErrSourceNotStarted is returned when pulses are pushed into a ManualPulseSource
// that is not attached to a running node.
var ErrSourceNotStarted = errors.New("pulseflow: pulse source not started")

// ManualPulseSource lets the embedding program report edges itself, for
// example from its own interrupt handler or a fieldbus it already reads.
type ManualPulseSource struct {
	name string

	mu  sync.RWMutex
	rec ports.EdgeRecorder
}

// NewManualPulseSource returns a source whose edges come from Pulse and Add.
func NewManualPulseSource(name string) *ManualPulseSource {
	if name == "" {
		name = "manual"
	}
	return &ManualPulseSource{name: name}
}

func (m *ManualPulseSource) Name() string { return m.name }

func (m *ManualPulseSource) Start(rec ports.EdgeRecorder) error {
	if rec == nil {
		return errors.New("edge recorder is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec != nil {
		return errors.New("manual pulse source already started")
	}
	m.rec = rec
	return nil
}

func (m *ManualPulseSource) Stop() error {
	m.mu.Lock()
	m.rec = nil
	m.mu.Unlock()
	return nil
}

// Pulse records a single edge.
func (m *ManualPulseSource) Pulse() error {
	return m.Add(1)
}

// Add records n edges at once.
func (m *ManualPulseSource) Add(n uint64) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.rec == nil {
		return ErrSourceNotStarted
	}
	m.rec.AddEdges(n)
	return nil
}

var _ ports.PulseSource = (*ManualPulseSource)(nil)
