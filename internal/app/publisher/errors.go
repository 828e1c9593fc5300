package publisher

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a reading was not delivered.
type ErrorKind int

const (
	LinkDown ErrorKind = iota
	SessionFailed
	DeliveryFailed
)

func (k ErrorKind) String() string {
	switch k {
	case LinkDown:
		return "link_down"
	case SessionFailed:
		return "session_failed"
	case DeliveryFailed:
		return "delivery_failed"
	default:
		return "unknown"
	}
}

var (
	ErrLinkDown       = errors.New("publish: link down")
	ErrSessionFailed  = errors.New("publish: broker session failed")
	ErrDeliveryFailed = errors.New("publish: delivery failed")
)

// PublishError is returned by Publisher.Publish.
type PublishError struct {
	Kind ErrorKind
	Err  error
}

func (e *PublishError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("publish %s", e.Kind)
	}
	return fmt.Sprintf("publish %s: %v", e.Kind, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

func (e *PublishError) Is(target error) bool {
	switch target {
	case ErrLinkDown:
		return e.Kind == LinkDown
	case ErrSessionFailed:
		return e.Kind == SessionFailed
	case ErrDeliveryFailed:
		return e.Kind == DeliveryFailed
	}
	return false
}
