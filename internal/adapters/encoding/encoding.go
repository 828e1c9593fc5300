// Package encoding holds the wire formats a reading can be published in.
package encoding

import (
	"fmt"
	"strings"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

// Meta is the static context stamped on every payload.
type Meta struct {
	DeviceID string
	Unit     string
}

// New returns the encoder registered under format.
func New(format string, meta Meta) (ports.Encoder, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return NewJSON(meta), nil
	case "binary":
		return NewBinary(), nil
	case "line", "influx":
		return NewLine(meta), nil
	default:
		return nil, fmt.Errorf("unknown publish format %q", format)
	}
}
