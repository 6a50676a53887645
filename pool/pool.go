// Package pool provides reusable value pools, adapted from the worker
// pool the teacher repository (ygrebnov/workers) used to recycle worker
// values into a generic recycling abstraction for ioloop's read buffers
// (§4.D: "the caller-supplied buffers are recycled").
package pool

// Pool is an interface that defines methods on a pool of reusable values.
type Pool interface {
	// Get returns a value from the pool, or a freshly constructed one if
	// none is available.
	Get() interface{}

	// Put returns a value to the pool for reuse.
	Put(interface{})
}
