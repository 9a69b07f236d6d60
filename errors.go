package gnrf

import (
	"errors"
	"fmt"
)

var (
	ErrNoBus     = errors.New("no bus")
	ErrNoPin     = errors.New("pin not found")
	ErrNilDevice = errors.New("nil device")

	// ErrNegativeTimeout is returned by ReceiveContinue, which needs a
	// bounded wait to notice cancellation.
	ErrNegativeTimeout = errors.New("negative timeout")
)

// TransportError is returned when an exchange with the device fails. Err is
// the error reported by the bus or pin and is left untouched.
type TransportError struct {
	Err error
	Op  string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func transportError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}
