// Package pulse holds the edge counter shared between the capture goroutine and
// the sampling loop.
package pulse

import (
	"sync/atomic"

	"github.com/ghalamif/PulseFlow/internal/domain"
	"github.com/ghalamif/PulseFlow/internal/ports"
)

// Counter accumulates edges lock-free. ReadAndReset swaps the pending count
// with zero in a single atomic operation, so an edge recorded concurrently lands
// either in the returned value or in the next one, never both and never neither.
type Counter struct {
	pending atomic.Uint64
	total   atomic.Uint64
}

func NewCounter() *Counter {
	return &Counter{}
}

// RecordEdge registers one sensor edge.
func (c *Counter) RecordEdge() {
	c.AddEdges(1)
}

// AddEdges registers n edges at once, for sources that observe a hardware
// counter delta instead of individual edges.
func (c *Counter) AddEdges(n uint64) {
	if n == 0 {
		return
	}
	c.pending.Add(n)
	c.total.Add(n)
}

// ReadAndReset returns the edges seen since the previous call and zeroes the count.
func (c *Counter) ReadAndReset() domain.PulseCount {
	return domain.PulseCount(c.pending.Swap(0))
}

// Peek returns the pending count without resetting it.
func (c *Counter) Peek() domain.PulseCount {
	return domain.PulseCount(c.pending.Load())
}

// Total returns every edge recorded since the counter was created.
func (c *Counter) Total() uint64 {
	return c.total.Load()
}

var _ ports.EdgeRecorder = (*Counter)(nil)
