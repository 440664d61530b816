package host

import (
	"errors"
	"fmt"
	"net"
)

// ErrClosed is returned for calls on a closed client.
var ErrClosed = errors.New("host client closed")

// TransportError means the host could not be reached or did not answer in
// time. Local state must be left unchanged.
type TransportError struct {
	Channel Channel
	Op      string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Channel == "" {
		return fmt.Sprintf("host %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("host %s %s: %v", e.Op, e.Channel, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline.
func (e *TransportError) Timeout() bool {
	var netErr net.Error
	if errors.As(e.Err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(e.Err, errTimeout)
}

var errTimeout = errors.New("request timed out")

// HostError is a logical failure reported by the host (success: false).
// Its message is shown to the user as is and the call is not retried.
type HostError struct {
	Channel Channel
	Code    string
	Message string
}

func (e *HostError) Error() string {
	return e.Message
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// AsHostError extracts a host-reported failure.
func AsHostError(err error) (*HostError, bool) {
	var he *HostError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}
