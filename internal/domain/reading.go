package domain

import "time"

// PulseCount is the number of sensor edges captured since the last reset.
type PulseCount uint64

// Reading is the flow measurement derived once per tick.
type Reading struct {
	Timestamp        time.Time     `json:"ts"`
	Seq              uint64        `json:"seq"`
	PulseDelta       uint64        `json:"pulse_delta"`
	Elapsed          time.Duration `json:"elapsed"`
	FlowRate         float64       `json:"flow_rate"`
	CumulativeVolume float64       `json:"cumulative_volume"`
}
