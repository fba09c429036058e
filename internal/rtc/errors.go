package rtc

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadySharing   = errors.New("share already active")
	ErrLinkClosed       = errors.New("peer link closed")
	ErrUnexpectedSignal = errors.New("unexpected signal type")
)

// LinkError annotates a failure with the operation and the remote session it
// concerned.
type LinkError struct {
	Op     string
	Remote string
	Err    error
}

func (e *LinkError) Error() string {
	if e.Remote != "" {
		return fmt.Sprintf("%s (peer %s): %v", e.Op, e.Remote, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

func newError(op, remote string, err error) *LinkError {
	return &LinkError{Op: op, Remote: remote, Err: err}
}
