package signal

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Namespace prefixes every sentinel error this package defines, following
// the teacher's per-package errors.go convention.
const Namespace = "signal"

// ErrEmitOutsideTask names the condition of a blocking delivery requested
// outside a running task. Emit neither returns nor wraps it: blocking
// delivery needs a task to yield, and in that case Loop.Yield panics with
// loopwire.ErrNoCurrentTask.
var ErrEmitOutsideTask = errors.New(Namespace + ": blocking emit requires a running task")

// SlotPanicError wraps a value recovered from a panicking slot, tagged
// with the receiver's identity (or the nil UUID for a receiverless free
// closure), mirroring the teacher's taskTaggedError/error_tagging.go
// pattern of carrying caller-relevant context on a sentinel-adjacent type.
type SlotPanicError struct {
	Receiver uuid.UUID
	Recovered any
}

func (e *SlotPanicError) Error() string {
	return fmt.Sprintf("%s: slot panicked (receiver=%s): %v", Namespace, e.Receiver, e.Recovered)
}
