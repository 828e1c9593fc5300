// Package testutil holds test doubles shared across packages.
package testutil

import (
	"sync"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

// Entry is one captured log call.
type Entry struct {
	Level  string
	Msg    string
	Err    error
	Fields []ports.Field
}

// Obs records log calls and metric updates in memory.
type Obs struct {
	mu       sync.Mutex
	entries  []Entry
	counters map[string]float64
	gauges   map[string]float64
}

func NewObs() *Obs {
	return &Obs{
		counters: make(map[string]float64),
		gauges:   make(map[string]float64),
	}
}

func (o *Obs) LogInfo(msg string, fields ...ports.Field) { o.log("info", msg, nil, fields) }
func (o *Obs) LogWarn(msg string, fields ...ports.Field) { o.log("warn", msg, nil, fields) }
func (o *Obs) LogError(msg string, err error, fields ...ports.Field) {
	o.log("error", msg, err, fields)
}
func (o *Obs) LogCritical(msg string, err error, fields ...ports.Field) {
	o.log("critical", msg, err, fields)
}

func (o *Obs) IncCounter(name string, v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counters[name] += v
}

func (o *Obs) ObserveLatency(string, float64) {}

func (o *Obs) SetGauge(name string, v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gauges[name] = v
}

func (o *Obs) Counter(name string) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counters[name]
}

func (o *Obs) Gauge(name string) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gauges[name]
}

// Messages returns the messages logged at level, in order.
func (o *Obs) Messages(level string) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []string
	for _, e := range o.entries {
		if e.Level == level {
			out = append(out, e.Msg)
		}
	}
	return out
}

// Count returns how many times msg was logged at any level.
func (o *Obs) Count(msg string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, e := range o.entries {
		if e.Msg == msg {
			n++
		}
	}
	return n
}

// Field returns the value logged under key by the first entry named msg.
func (o *Obs) Field(msg, key string) (interface{}, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range o.entries {
		if e.Msg != msg {
			continue
		}
		for _, f := range e.Fields {
			if f.Key == key {
				return f.Value, true
			}
		}
	}
	return nil, false
}

func (o *Obs) log(level, msg string, err error, fields []ports.Field) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = append(o.entries, Entry{Level: level, Msg: msg, Err: err, Fields: fields})
}

var _ ports.Observability = (*Obs)(nil)
