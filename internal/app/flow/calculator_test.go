package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeFlowRate(t *testing.T) {
	calc, err := NewCalculator(0.01)
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	r, ok := calc.Compute(now, 100, 10*time.Second)
	require.True(t, ok)

	assert.InDelta(t, 0.1, r.FlowRate, 1e-12)
	assert.InDelta(t, 1.0, r.CumulativeVolume, 1e-12)
	assert.Equal(t, uint64(100), r.PulseDelta)
	assert.Equal(t, uint64(1), r.Seq)
	assert.Equal(t, now, r.Timestamp)
}

func TestComputeZeroElapsedCarriesDelta(t *testing.T) {
	calc, err := NewCalculator(0.5)
	require.NoError(t, err)

	_, ok := calc.Compute(time.Now(), 40, 0)
	require.False(t, ok)
	_, ok = calc.Compute(time.Now(), 2, -time.Second)
	require.False(t, ok)
	assert.Equal(t, uint64(42), calc.Pending())

	r, ok := calc.Compute(time.Now(), 8, 5*time.Second)
	require.True(t, ok)
	assert.Equal(t, uint64(50), r.PulseDelta)
	assert.InDelta(t, 5.0, r.FlowRate, 1e-12)
	assert.InDelta(t, 25.0, r.CumulativeVolume, 1e-12)
	assert.Zero(t, calc.Pending())
	assert.Equal(t, uint64(1), r.Seq)
}

func TestCumulativeVolumeHasNoDriftOverManyTicks(t *testing.T) {
	const calibration = 0.1
	calc, err := NewCalculator(calibration)
	require.NoError(t, err)

	var (
		pulses uint64
		prev   float64
	)
	for i := 0; i < 10_000; i++ {
		delta := uint64(i % 7)
		pulses += delta
		r, ok := calc.Compute(time.Unix(int64(i), 0), delta, time.Second)
		require.True(t, ok)
		require.GreaterOrEqual(t, r.CumulativeVolume, prev)
		prev = r.CumulativeVolume
	}

	assert.Equal(t, pulses, calc.TotalPulses())
	assert.Equal(t, float64(pulses)*calibration, prev)
}

func TestNewCalculatorRejectsBadCalibration(t *testing.T) {
	for _, c := range []float64{0, -1} {
		_, err := NewCalculator(c)
		assert.Error(t, err, "calibration %v", c)
	}
}
