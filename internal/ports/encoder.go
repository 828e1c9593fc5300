package ports

import "github.com/ghalamif/PulseFlow/internal/domain"

// Encoder serializes a reading into the wire payload sent to the broker.
type Encoder interface {
	Encode(r domain.Reading) ([]byte, error)
	ContentType() string
}
