package client

import (
	"errors"
	"fmt"
)

// ErrNoResponse means the timeout elapsed with zero replies to an
// addressed query.
var ErrNoResponse = errors.New("no response before timeout")

// ErrAmbiguousOutcome means a command timed out without a reply. Unlike
// ErrNoResponse, the side effect may still have executed: a rebooting
// device cannot always confirm its own reboot.
var ErrAmbiguousOutcome = errors.New("no reply before timeout: command may still have executed")

// RemoteError is a failure reply produced by the device, carrying the
// wire error kind ("unknown_action" or "execution_error").
type RemoteError struct {
	Kind    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("device error (%s): %s", e.Kind, e.Message)
}

// TransportError wraps a failure of the underlying connection, distinct
// from protocol-level failures.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
