package ioloop

import (
	"errors"
	"fmt"
)

// Namespace prefixes every sentinel error this package defines, following
// the teacher's per-package errors.go convention.
const Namespace = "ioloop"

var (
	// ErrBadState is returned when an operation is invoked in a state
	// that forbids it (§7 "bad-state"), e.g. Write on an unconnected
	// socket.
	ErrBadState = errors.New(Namespace + ": operation invalid in current socket state")

	// ErrFacilityClosed is returned by Submit after Close.
	ErrFacilityClosed = errors.New(Namespace + ": facility is closed")

	// ErrTimeout reports a deadline expiry (§7 "timeout"). TCPSocket's
	// WaitFor* methods report a timeout as a false result instead;
	// httpclient returns ErrTimeout when one of its waits expires.
	ErrTimeout = errors.New(Namespace + ": operation timed out")
)

// OSError wraps an error surfaced verbatim from an OS call (read, write,
// send, recv, connect, resolve), tagged with the handle it came from
// (§7 "io-error(code)"/"resolve-error"). OS error codes are surfaced
// verbatim per spec.md §7 ("the framework does not translate them into a
// normalised taxonomy"); this type only adds the handle label, mirroring
// the teacher's taskTaggedError (error_tagging.go) which tags a plain
// error with task id/index instead of translating it.
type OSError struct {
	Handle string
	Err    error
}

func (e *OSError) Error() string {
	return fmt.Sprintf("%s: %s: %v", Namespace, e.Handle, e.Err)
}

func (e *OSError) Unwrap() error { return e.Err }

func newOSError(handle string, err error) *OSError {
	if err == nil {
		return nil
	}
	return &OSError{Handle: handle, Err: err}
}
