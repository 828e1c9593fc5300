package simulate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/PulseFlow/internal/app/pulse"
	"github.com/ghalamif/PulseFlow/internal/testutil"
)

func TestTrainMeanRate(t *testing.T) {
	tr := newTrain(Config{RateHz: Rate(7.5), Step: 100 * time.Millisecond, Seed: 1})

	var total uint64
	for i := 0; i < 1000; i++ { // 100 s
		total += tr.next()
	}
	assert.InDelta(t, 750, float64(total), 1)
}

func TestTrainJitterKeepsMean(t *testing.T) {
	tr := newTrain(Config{RateHz: Rate(100), Step: time.Second, Jitter: 0.5, Seed: 42})

	var total uint64
	for i := 0; i < 2000; i++ {
		n := tr.next()
		assert.LessOrEqual(t, n, uint64(151))
		total += n
	}
	assert.InEpsilon(t, 200000, float64(total), 0.02)
}

func TestSourceFeedsCounter(t *testing.T) {
	s, err := NewSource(Config{RateHz: Rate(1000), Step: time.Millisecond, Seed: 3}, testutil.NewObs())
	require.NoError(t, err)
	counter := pulse.NewCounter()

	require.NoError(t, s.Start(counter))
	assert.Error(t, s.Start(counter))
	require.Eventually(t, func() bool { return counter.Total() > 10 }, time.Second, time.Millisecond)
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())

	after := counter.Total()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, after, counter.Total(), "no pulses after Stop")
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 45.0, *cfg.RateHz)

	assert.Error(t, (&Config{RateHz: Rate(-1)}).Validate())
	assert.Error(t, (&Config{RateHz: Rate(1), Jitter: 2}).Validate())
}

func TestZeroRateIsAStalledSensor(t *testing.T) {
	cfg := Config{RateHz: Rate(0)}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	assert.Zero(t, *cfg.RateHz, "an explicit zero is kept")

	tr := newTrain(Config{RateHz: Rate(0), Step: time.Second, Jitter: 0.5, Seed: 9})
	for i := 0; i < 100; i++ {
		assert.Zero(t, tr.next())
	}
}
