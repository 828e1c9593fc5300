package encoding

import (
	"strconv"
	"strings"

	"github.com/ghalamif/PulseFlow/internal/domain"
	"github.com/ghalamif/PulseFlow/internal/ports"
)

// Line renders InfluxDB line protocol:
//
//	flow,device=node-01,unit=L seq=3u,pulses=120u,elapsed_s=10,flow_rate=0.27,cumulative_volume=12.5 1700000000000000000
type Line struct {
	meta Meta
}

func NewLine(meta Meta) *Line { return &Line{meta: meta} }

func (l *Line) Encode(r domain.Reading) ([]byte, error) {
	var b strings.Builder
	b.WriteString("flow")
	if l.meta.DeviceID != "" {
		b.WriteString(",device=")
		b.WriteString(escapeTag(l.meta.DeviceID))
	}
	if l.meta.Unit != "" {
		b.WriteString(",unit=")
		b.WriteString(escapeTag(l.meta.Unit))
	}
	b.WriteString(" seq=")
	b.WriteString(strconv.FormatUint(r.Seq, 10))
	b.WriteString("u,pulses=")
	b.WriteString(strconv.FormatUint(r.PulseDelta, 10))
	b.WriteString("u,elapsed_s=")
	b.WriteString(strconv.FormatFloat(r.Elapsed.Seconds(), 'f', -1, 64))
	b.WriteString(",flow_rate=")
	b.WriteString(strconv.FormatFloat(r.FlowRate, 'f', -1, 64))
	b.WriteString(",cumulative_volume=")
	b.WriteString(strconv.FormatFloat(r.CumulativeVolume, 'f', -1, 64))
	b.WriteString(" ")
	b.WriteString(strconv.FormatInt(r.Timestamp.UnixNano(), 10))
	return []byte(b.String()), nil
}

func (l *Line) ContentType() string { return "text/plain; charset=utf-8" }

var tagEscaper = strings.NewReplacer(",", `\,`, "=", `\=`, " ", `\ `)

func escapeTag(s string) string { return tagEscaper.Replace(s) }

var _ ports.Encoder = (*Line)(nil)
