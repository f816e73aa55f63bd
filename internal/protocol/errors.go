package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrMissingField      = errors.New("protocol: missing required field")
	ErrFieldTypeMismatch = errors.New("protocol: field type mismatch")
	ErrUnknownField      = errors.New("protocol: unknown field")
	ErrInvalidArgument   = errors.New("protocol: invalid argument")
	ErrInvalidState      = errors.New("protocol: invalid session state")
	ErrPeerClosed        = errors.New("protocol: peer closed connection")
	ErrTimeout           = errors.New("protocol: timed out")
	ErrBadResponse       = errors.New("protocol: unexpected response")
)

// ValueError reports structurally invalid caller input, such as a command
// tree missing a required field.
type ValueError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("protocol: %s: %s", e.Op, e.Reason)
}

func (e *ValueError) Unwrap() error { return e.Err }

// ConnectionError reports an unreachable or closed peer.
type ConnectionError struct {
	Op   string
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("protocol: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("protocol: %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError reports a deadline expiring while waiting on the peer.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("protocol: %s: timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() []error { return []error{ErrTimeout, e.Err} }

// ProtocolError reports a response that did not parse as expected.
type ProtocolError struct {
	Op       string
	Response string
	Err      error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: %s: bad response %q: %v", e.Op, e.Response, e.Err)
}

func (e *ProtocolError) Unwrap() []error { return []error{ErrBadResponse, e.Err} }
