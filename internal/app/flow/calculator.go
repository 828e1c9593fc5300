// Package flow turns pulse deltas into flow readings.
package flow

import (
	"fmt"
	"math"
	"time"

	"github.com/ghalamif/PulseFlow/internal/domain"
)

// Calculator owns the running volume total. It is not safe for concurrent use;
// the engine calls it from the sampling loop only.
type Calculator struct {
	calibration float64

	// Volume is derived from the integer pulse total so repeated float additions
	// cannot accumulate rounding error.
	totalPulses uint64
	carried     uint64
	seq         uint64
}

// NewCalculator returns a calculator for the given volume-per-pulse constant.
func NewCalculator(calibration float64) (*Calculator, error) {
	if calibration <= 0 || math.IsNaN(calibration) || math.IsInf(calibration, 0) {
		return nil, fmt.Errorf("calibration must be a positive finite number, got %v", calibration)
	}
	return &Calculator{calibration: calibration}, nil
}

// Compute derives the reading for one tick. A non-positive elapsed duration
// yields ok=false: nothing is divided and the delta is carried into the next
// successful call.
func (c *Calculator) Compute(now time.Time, pulseDelta uint64, elapsed time.Duration) (domain.Reading, bool) {
	if elapsed <= 0 {
		c.carried += pulseDelta
		return domain.Reading{}, false
	}

	delta := pulseDelta + c.carried
	c.carried = 0
	c.totalPulses += delta
	c.seq++

	return domain.Reading{
		Timestamp:        now,
		Seq:              c.seq,
		PulseDelta:       delta,
		Elapsed:          elapsed,
		FlowRate:         float64(delta) * c.calibration / elapsed.Seconds(),
		CumulativeVolume: float64(c.totalPulses) * c.calibration,
	}, true
}

// Pending reports pulses carried from skipped ticks.
func (c *Calculator) Pending() uint64 { return c.carried }

// TotalPulses reports every pulse folded into a reading so far.
func (c *Calculator) TotalPulses() uint64 { return c.totalPulses }

func (c *Calculator) Calibration() float64 { return c.calibration }
