package encoding

import (
	"encoding/binary"
	"errors"
	"math"
	"time"

	"github.com/ghalamif/PulseFlow/internal/domain"
	"github.com/ghalamif/PulseFlow/internal/ports"
)

const (
	binaryVersion = 1
	// [1 version][8 seq][8 unix nanos][8 pulse delta][8 elapsed nanos][8 flow rate][8 cumulative volume]
	binaryLen = 1 + 6*8
)

var ErrBinaryPayload = errors.New("encoding: malformed binary payload")

// Binary is a fixed-size big-endian layout for constrained links.
type Binary struct{}

func NewBinary() *Binary { return &Binary{} }

func (Binary) Encode(r domain.Reading) ([]byte, error) {
	buf := make([]byte, binaryLen)
	buf[0] = binaryVersion
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Timestamp.UnixNano()))
	binary.BigEndian.PutUint64(buf[17:25], r.PulseDelta)
	binary.BigEndian.PutUint64(buf[25:33], uint64(r.Elapsed))
	binary.BigEndian.PutUint64(buf[33:41], math.Float64bits(r.FlowRate))
	binary.BigEndian.PutUint64(buf[41:49], math.Float64bits(r.CumulativeVolume))
	return buf, nil
}

func (Binary) ContentType() string { return "application/octet-stream" }

// DecodeBinary is the inverse of Binary.Encode, for consumers and tests.
func DecodeBinary(b []byte) (domain.Reading, error) {
	if len(b) != binaryLen || b[0] != binaryVersion {
		return domain.Reading{}, ErrBinaryPayload
	}
	return domain.Reading{
		Seq:              binary.BigEndian.Uint64(b[1:9]),
		Timestamp:        time.Unix(0, int64(binary.BigEndian.Uint64(b[9:17]))),
		PulseDelta:       binary.BigEndian.Uint64(b[17:25]),
		Elapsed:          time.Duration(binary.BigEndian.Uint64(b[25:33])),
		FlowRate:         math.Float64frombits(binary.BigEndian.Uint64(b[33:41])),
		CumulativeVolume: math.Float64frombits(binary.BigEndian.Uint64(b[41:49])),
	}, nil
}

var _ ports.Encoder = Binary{}
