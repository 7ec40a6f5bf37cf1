package rest

import (
	"errors"
	"fmt"
)

// Sentinel errors for device control calls. These enable callers to
// programmatically distinguish failure modes using errors.Is.
var (
	ErrUnauthorized = errors.New("rest: password rejected")
	ErrTimeout      = errors.New("rest: request timed out")
	ErrRefused      = errors.New("rest: connection refused")
	ErrUnreachable  = errors.New("rest: device unreachable")
)

// ProtocolError indicates the device answered, but with a response the
// client could not use: an unexpected status code or an unparseable body.
type ProtocolError struct {
	Op     string
	Status int
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rest: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("rest: %s: unexpected status %d", e.Op, e.Status)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
