// Package object implements the parent/child ownership tree shared by the
// signal dispatcher and anything else in loopwire that needs durable
// identity or cascading destruction, grounded in the original source's
// Object (SwObject): setParent/addChild/removeChild/findChildren.
package object

import (
	"sync"

	"github.com/google/uuid"
)

// DestroyHook is called when an Object is destroyed, before its children are
// destroyed. Used by the signal package to disconnect every connection that
// names this object as sender or receiver ahead of any child destruction,
// so no slot ever runs against a half-torn-down receiver.
type DestroyHook func(o *Object)

// Object is a node in an ownership tree with a durable identity. It carries
// no behaviour of its own beyond ownership and naming; the signal dispatcher
// and property fields are built on top of it rather than into it.
type Object struct {
	mu sync.Mutex

	id   uuid.UUID
	name string

	parent   *Object
	children []*Object

	destroyed bool
	onDestroy []DestroyHook
}

// New creates an unparented Object with a freshly minted identity.
func New() *Object {
	return &Object{id: uuid.New()}
}

// ID returns the object's durable identity, stable for its lifetime.
func (o *Object) ID() uuid.UUID {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.id
}

// Name returns the object's name (empty by default).
func (o *Object) Name() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.name
}

// SetName sets the object's name. Unlike the original's ObjectName
// property, this does not emit a change signal; wrap it in a
// property.Field if that's needed.
func (o *Object) SetName(name string) {
	o.mu.Lock()
	o.name = name
	o.mu.Unlock()
}

// Parent returns the object's current parent, or nil if unparented.
func (o *Object) Parent() *Object {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.parent
}

// SetParent reparents o under parent, removing it from any previous
// parent's child list first. Passing nil unparents o.
func (o *Object) SetParent(parent *Object) {
	o.mu.Lock()
	old := o.parent
	o.mu.Unlock()

	if old != nil {
		old.removeChild(o)
	}

	o.mu.Lock()
	o.parent = parent
	o.mu.Unlock()

	if parent != nil {
		parent.addChild(o)
	}
}

func (o *Object) addChild(child *Object) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.children = append(o.children, child)
}

func (o *Object) removeChild(child *Object) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, c := range o.children {
		if c == child {
			o.children = append(o.children[:i:i], o.children[i+1:]...)
			return
		}
	}
}

// Children returns a snapshot of o's direct children. Mutating the
// returned slice has no effect on o.
func (o *Object) Children() []*Object {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*Object, len(o.children))
	copy(out, o.children)
	return out
}

// Find returns every descendant (direct and indirect) for which match
// returns true, walking the tree depth-first, mirroring the original's
// findChildren<T>() template which filtered by dynamic type — here by an
// arbitrary predicate, since Go has no equivalent of dynamic_cast to hang
// the filter on.
func (o *Object) Find(match func(*Object) bool) []*Object {
	var out []*Object
	for _, child := range o.Children() {
		if match(child) {
			out = append(out, child)
		}
		out = append(out, child.Find(match)...)
	}
	return out
}

// OnDestroy registers a hook run when o is destroyed, before its children
// are destroyed and before o is unparented. Used by signal.Connect to wire
// auto-disconnect.
func (o *Object) OnDestroy(hook DestroyHook) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onDestroy = append(o.onDestroy, hook)
}

// Destroy runs every registered destroy hook, then recursively destroys
// every child, then unparents o. Destroy is idempotent: calling it twice
// only runs hooks and cascades once.
func (o *Object) Destroy() {
	o.mu.Lock()
	if o.destroyed {
		o.mu.Unlock()
		return
	}
	o.destroyed = true
	hooks := o.onDestroy
	o.onDestroy = nil
	children := make([]*Object, len(o.children))
	copy(children, o.children)
	o.mu.Unlock()

	for _, h := range hooks {
		h(o)
	}
	for _, c := range children {
		c.Destroy()
	}
	o.SetParent(nil)
}

// Destroyed reports whether Destroy has already run on o.
func (o *Object) Destroyed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.destroyed
}
