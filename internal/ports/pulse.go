package ports

// EdgeRecorder is the only capability a pulse source is handed. Implementations
// must be safe to call from any goroutine.
type EdgeRecorder interface {
	RecordEdge()
	AddEdges(n uint64)
}

// PulseSource captures sensor edges (GPIO interrupts, PLC counter tags,
// simulators) and forwards them to the recorder until stopped.
type PulseSource interface {
	Start(rec EdgeRecorder) error
	Stop() error
	Name() string
}
