package loopwire

import "errors"

// Namespace prefixes every sentinel error message in this package, following
// the teacher repository's per-package Namespace convention.
const Namespace = "loopwire"

var (
	// ErrNoCurrentTask is the value Loop.Yield panics with when no task is
	// currently running on the loop.
	ErrNoCurrentTask = errors.New(Namespace + ": no task is currently running")

	// ErrTokenInUse is the value Yield panics with when the caller supplies
	// a suspension token that is already held by another suspended task.
	ErrTokenInUse = errors.New(Namespace + ": suspension token already in use")

	// ErrTaskPanicked marks a task-panic failure (§7 "task-panic"). It is
	// wrapped, never returned directly, so callers can errors.Is against it.
	ErrTaskPanicked = errors.New(Namespace + ": task execution panicked")

	// ErrLoopClosed is returned by Post when called after Close. AddTimer
	// does not check for a closed loop.
	ErrLoopClosed = errors.New(Namespace + ": loop is closed")
)
