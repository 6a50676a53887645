package pool

import "sync"

// NewDynamic is an unbounded, GC-friendly pool. It is a thin wrapper
// around sync.Pool for values that don't need a hard capacity.
func NewDynamic(newFn func() interface{}) Pool {
	return &sync.Pool{New: newFn}
}
