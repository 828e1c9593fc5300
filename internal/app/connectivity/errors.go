package connectivity

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies why a link could not be brought up.
type ErrorKind int

const (
	Timeout ErrorKind = iota
	AuthFailure
	RadioFault
)

func (k ErrorKind) String() string {
	switch k {
	case Timeout:
		return "timeout"
	case AuthFailure:
		return "auth_failure"
	case RadioFault:
		return "radio_fault"
	default:
		return "unknown"
	}
}

// Sentinels matched through errors.Is on a *ConnectError.
var (
	ErrTimeout     = errors.New("link connect timed out")
	ErrAuthFailure = errors.New("link authentication failed")
	ErrRadioFault  = errors.New("link radio fault")
)

// ConnectError is returned by Manager.EnsureConnected.
type ConnectError struct {
	Kind ErrorKind
	Err  error
	// RetryIn is non-zero when the call failed fast because a backoff window
	// from an earlier failure is still open.
	RetryIn time.Duration
}

func (e *ConnectError) Error() string {
	msg := fmt.Sprintf("link %s", e.Kind)
	if e.RetryIn > 0 {
		msg += fmt.Sprintf(" (backing off, retry in %s)", e.RetryIn.Round(time.Millisecond))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectError) Unwrap() error { return e.Err }

func (e *ConnectError) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == Timeout
	case ErrAuthFailure:
		return e.Kind == AuthFailure
	case ErrRadioFault:
		return e.Kind == RadioFault
	}
	return false
}
