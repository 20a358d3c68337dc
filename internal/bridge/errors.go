package bridge

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an invocation failed.
type ErrorKind int

const (
	// TransportFailure means the host call itself failed, timed out, or the
	// connection was unavailable.
	TransportFailure ErrorKind = iota + 1
	// UnexpectedData means the host answered but the result failed schema
	// validation.
	UnexpectedData
)

func (k ErrorKind) String() string {
	switch k {
	case TransportFailure:
		return "transport failure"
	case UnexpectedData:
		return "unexpected data"
	default:
		return "unknown"
	}
}

// InvokeError is the only error type Invoke returns.
type InvokeError struct {
	Kind    ErrorKind
	Command string
	Cause   error
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Command, e.Kind, e.Cause)
}

func (e *InvokeError) Unwrap() error {
	return e.Cause
}

// IsTransportFailure reports whether err is an InvokeError of kind
// TransportFailure.
func IsTransportFailure(err error) bool {
	var ie *InvokeError
	return errors.As(err, &ie) && ie.Kind == TransportFailure
}

// IsUnexpectedData reports whether err is an InvokeError of kind
// UnexpectedData.
func IsUnexpectedData(err error) bool {
	var ie *InvokeError
	return errors.As(err, &ie) && ie.Kind == UnexpectedData
}

// HostError carries an error message returned by the host for a command.
type HostError struct {
	Message string
}

func (e *HostError) Error() string {
	return "host: " + e.Message
}

var (
	// ErrClosed is returned when the host connection is gone.
	ErrClosed = errors.New("bridge: connection closed")
	// ErrScopeClosed is returned when acquiring into a scope that has
	// already been closed.
	ErrScopeClosed = errors.New("bridge: scope closed")
)
