package signal

import (
	"sync"

	"github.com/arwx/loopwire/object"
)

// disconnectable is the type-erased operations the registry needs on a
// Signal[T] regardless of T, so the two "across every signal" disconnect
// forms can reach into signals declared with different payload types.
type disconnectable interface {
	DisconnectAll()
	disconnectReceiverErased(*object.Object)
}

func (s *Signal[T]) disconnectReceiverErased(receiver *object.Object) {
	s.disconnectReceiver(receiver)
}

var registry = struct {
	mu         sync.Mutex
	byEmitter  map[*object.Object][]disconnectable
	byReceiver map[*object.Object]map[disconnectable]struct{}
}{
	byEmitter:  make(map[*object.Object][]disconnectable),
	byReceiver: make(map[*object.Object]map[disconnectable]struct{}),
}

func registerEmitterSignal(emitter *object.Object, s disconnectable) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.byEmitter[emitter] = append(registry.byEmitter[emitter], s)
}

func registerReceiverSignal(receiver *object.Object, s disconnectable) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	set := registry.byReceiver[receiver]
	if set == nil {
		set = make(map[disconnectable]struct{})
		registry.byReceiver[receiver] = set
	}
	set[s] = struct{}{}
}

// DisconnectEmitter removes every connection on every signal owned by
// emitter (§4.C "disconnect-all-from-emitter"). Called automatically when
// emitter is destroyed.
func DisconnectEmitter(emitter *object.Object) {
	registry.mu.Lock()
	signals := registry.byEmitter[emitter]
	delete(registry.byEmitter, emitter)
	registry.mu.Unlock()

	for _, s := range signals {
		s.DisconnectAll()
	}
}

// DisconnectReceiver removes every connection bound to receiver across
// every signal it has ever connected to (§4.C "disconnect-all-to-receiver").
// Called automatically when receiver is destroyed.
func DisconnectReceiver(receiver *object.Object) {
	registry.mu.Lock()
	set := registry.byReceiver[receiver]
	delete(registry.byReceiver, receiver)
	registry.mu.Unlock()

	for s := range set {
		s.disconnectReceiverErased(receiver)
	}
}
