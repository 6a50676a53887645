// Package signal implements the signal/slot dispatcher (§4.C): typed
// signal handles instead of the original's name-keyed runtime dispatch
// (per the design note resolving "signal name indirection" into statically
// bound signals), with the same three delivery modes, sender() context,
// auto-disconnect on object destruction, and slot-panic containment as
// Object::emitSignal/connect in original_source/src/core/Object.h.
package signal

import (
	"sync"

	"github.com/arwx/loopwire"
	"github.com/arwx/loopwire/object"
	"github.com/google/uuid"
)

// Mode selects how a connected slot is invoked when its signal fires
// (§4.C "connection mode").
type Mode int

const (
	// Direct runs the slot synchronously on the emitter's task, before
	// Emit returns.
	Direct Mode = iota
	// Queued posts the slot to run as a fresh task on the loop; Emit
	// returns without waiting for it.
	Queued
	// Blocking posts the slot like Queued, but Emit yields the calling
	// task and does not return until the slot has run.
	Blocking
)

// PanicHandler receives a slot panic recovered during Emit. The default
// handler is a no-op; install one with WithPanicHandler to log.
type PanicHandler func(err *SlotPanicError)

var defaultPanicHandler PanicHandler = func(*SlotPanicError) {}

// SetDefaultPanicHandler overrides the process-wide default used by
// signals constructed without an explicit WithPanicHandler option.
func SetDefaultPanicHandler(h PanicHandler) {
	if h == nil {
		h = func(*SlotPanicError) {}
	}
	defaultPanicHandler = h
}

type connection[T any] struct {
	id       uint64
	receiver *object.Object
	mode     Mode
	slot     func(T)
}

// Option configures a Signal at construction.
type Option func(*config)

type config struct {
	panicHandler PanicHandler
}

// WithPanicHandler overrides the panic handler for one Signal.
func WithPanicHandler(h PanicHandler) Option {
	return func(c *config) { c.panicHandler = h }
}

// Signal is a typed, statically declared event an Object can emit.
// Connections are stored in insertion order (§3 "Signal table"); Emit
// visits a snapshot of that order taken before any slot runs, so a slot
// that connects or disconnects during emission never perturbs the
// in-flight delivery (§8 "mutation during iteration").
type Signal[T any] struct {
	mu      sync.Mutex
	emitter *object.Object
	loop    *loopwire.Loop
	conns   []*connection[T]
	nextID  uint64
	cfg     config
}

// New declares a signal owned by emitter, delivered through loop for its
// queued and blocking connections. loop may be nil if every connection
// made on this signal will use Direct mode.
func New[T any](emitter *object.Object, loop *loopwire.Loop, opts ...Option) *Signal[T] {
	s := &Signal[T]{
		emitter: emitter,
		loop:    loop,
		cfg:     config{panicHandler: defaultPanicHandler},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s.cfg)
		}
	}
	registerEmitterSignal(emitter, s)
	emitter.OnDestroy(func(*object.Object) { DisconnectEmitter(emitter) })
	return s
}

// Connect appends a connection record (§4.C "connect"). receiver may be
// nil for a free closure with no receiver identity. Returns an id usable
// with Disconnect.
func (s *Signal[T]) Connect(receiver *object.Object, mode Mode, slot func(T)) uint64 {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.conns = append(s.conns, &connection[T]{id: id, receiver: receiver, mode: mode, slot: slot})
	s.mu.Unlock()

	if receiver != nil {
		registerReceiverSignal(receiver, s)
		receiver.OnDestroy(func(*object.Object) { DisconnectReceiver(receiver) })
	}
	return id
}

// Disconnect removes the connection with the given id, if it exists.
func (s *Signal[T]) Disconnect(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.conns {
		if c.id == id {
			s.conns = append(s.conns[:i:i], s.conns[i+1:]...)
			return
		}
	}
}

// DisconnectAll removes every connection on this signal (§4.C
// "disconnect-specific-signal" form).
func (s *Signal[T]) DisconnectAll() {
	s.mu.Lock()
	s.conns = nil
	s.mu.Unlock()
}

// disconnectReceiver removes every connection on this signal bound to
// receiver (§4.C "disconnect-all-to-receiver" form, scoped to one signal;
// DisconnectReceiver in registry.go applies it across every signal a
// receiver is connected to).
func (s *Signal[T]) disconnectReceiver(receiver *object.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.conns[:0:0]
	for _, c := range s.conns {
		if c.receiver != receiver {
			kept = append(kept, c)
		}
	}
	s.conns = kept
}

// Emit fires every connected slot in insertion order, respecting each
// connection's delivery mode (§4.C "emit"). Direct slots run synchronously
// within this call, in order, before Emit returns; a direct slot that
// itself emits is handled recursively, in emission order (§4.C table).
// Queued and blocking slots are posted to the loop; Blocking additionally
// yields the calling task until the posted slot has run.
func (s *Signal[T]) Emit(value T) {
	s.mu.Lock()
	snapshot := make([]*connection[T], len(s.conns))
	copy(snapshot, s.conns)
	s.mu.Unlock()

	for _, c := range snapshot {
		switch c.mode {
		case Direct:
			s.invoke(c, value)
		case Queued:
			cc, v := c, value
			_ = s.loop.Post(func() { s.invoke(cc, v) })
		case Blocking:
			cc, v := c, value
			token := s.loop.NewToken()
			_ = s.loop.Post(func() {
				s.invoke(cc, v)
				s.loop.Unyield(token)
			})
			s.loop.Yield(token)
		}
	}
}

func (s *Signal[T]) invoke(c *connection[T], value T) {
	defer func() {
		if r := recover(); r != nil {
			var id uuid.UUID
			if c.receiver != nil {
				id = c.receiver.ID()
			}
			s.cfg.panicHandler(&SlotPanicError{Receiver: id, Recovered: r})
		}
	}()

	if c.receiver != nil {
		setSender(c.receiver, s.emitter)
		defer restoreSender(c.receiver)
	}
	c.slot(value)
}
