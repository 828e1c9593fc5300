package domain

// ConnectionState tracks both the radio link and the broker session.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	// Publishing is only entered by the broker session while a send is in flight.
	Publishing
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Publishing:
		return "publishing"
	default:
		return "unknown"
	}
}
