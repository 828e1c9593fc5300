package encoding

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ghalamif/PulseFlow/internal/domain"
	"github.com/ghalamif/PulseFlow/internal/ports"
)

type jsonPayload struct {
	DeviceID         string    `json:"device_id"`
	MessageID        string    `json:"message_id"`
	Seq              uint64    `json:"seq"`
	Timestamp        time.Time `json:"ts"`
	PulseDelta       uint64    `json:"pulse_delta"`
	ElapsedSeconds   float64   `json:"elapsed_s"`
	FlowRate         float64   `json:"flow_rate"`
	CumulativeVolume float64   `json:"cumulative_volume"`
	Unit             string    `json:"unit,omitempty"`
}

// JSON encodes readings as one JSON object each. Every message gets a fresh
// UUID so consumers can drop duplicates delivered by at-least-once brokers.
type JSON struct {
	meta  Meta
	newID func() string
}

func NewJSON(meta Meta) *JSON {
	return &JSON{meta: meta, newID: func() string { return uuid.NewString() }}
}

func (j *JSON) Encode(r domain.Reading) ([]byte, error) {
	return json.Marshal(jsonPayload{
		DeviceID:         j.meta.DeviceID,
		MessageID:        j.newID(),
		Seq:              r.Seq,
		Timestamp:        r.Timestamp.UTC(),
		PulseDelta:       r.PulseDelta,
		ElapsedSeconds:   r.Elapsed.Seconds(),
		FlowRate:         r.FlowRate,
		CumulativeVolume: r.CumulativeVolume,
		Unit:             j.meta.Unit,
	})
}

func (j *JSON) ContentType() string { return "application/json" }

var _ ports.Encoder = (*JSON)(nil)
