// Package property implements typed fields with automatic change
// notification, the generic-typed-wrapper alternative (per spec's design
// note resolving the original's any-typed, name-keyed property table:
// original_source/src/core/Object.h's PROPERTY/CUSTOM_PROPERTY macros) to
// a dynamic property map: the only behaviour the core depends on is the
// emit-on-change contract.
package property

import (
	"github.com/arwx/loopwire"
	"github.com/arwx/loopwire/object"
	"github.com/arwx/loopwire/signal"
)

// Field is a typed value that fires a change signal exactly when Set is
// called with a value unequal (by ==) to the one currently stored (§4.C
// "property signals").
type Field[T comparable] struct {
	value   T
	changed *signal.Signal[T]
}

// NewField constructs a Field owned by owner, with an initial value and
// its own Changed signal delivered through loop.
func NewField[T comparable](owner *object.Object, loop *loopwire.Loop, initial T) *Field[T] {
	return &Field[T]{
		value:   initial,
		changed: signal.New[T](owner, loop),
	}
}

// Get returns the field's current value.
func (f *Field[T]) Get() T { return f.value }

// Set stores value and fires Changed iff value != the previously stored
// value. Equality is by value (§4.C).
func (f *Field[T]) Set(value T) {
	if f.value == value {
		return
	}
	f.value = value
	f.changed.Emit(value)
}

// Changed returns the field's change signal, for Connect.
func (f *Field[T]) Changed() *signal.Signal[T] { return f.changed }
