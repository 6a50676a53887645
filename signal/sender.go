package signal

import (
	"sync"

	"github.com/arwx/loopwire/object"
)

// senderStacks holds, per receiver, a stack of emitter identities: the top
// is whichever emitter's slot is currently running on that receiver.
// A stack (not a single cell) is needed because a slot may itself emit a
// signal that reaches the same receiver again before returning (§4.C
// "sender context... cleared or restored to its previous value if slots
// nest").
var senderStacks = struct {
	mu     sync.Mutex
	stacks map[*object.Object][]*object.Object
}{stacks: make(map[*object.Object][]*object.Object)}

func setSender(receiver, emitter *object.Object) {
	senderStacks.mu.Lock()
	defer senderStacks.mu.Unlock()
	senderStacks.stacks[receiver] = append(senderStacks.stacks[receiver], emitter)
}

func restoreSender(receiver *object.Object) {
	senderStacks.mu.Lock()
	defer senderStacks.mu.Unlock()
	stack := senderStacks.stacks[receiver]
	if len(stack) == 0 {
		return
	}
	stack = stack[:len(stack)-1]
	if len(stack) == 0 {
		delete(senderStacks.stacks, receiver)
	} else {
		senderStacks.stacks[receiver] = stack
	}
}

// Sender returns the emitter identity of whichever signal is currently
// invoking a slot on receiver, or nil if receiver is not inside a slot
// invocation (§4.C "sender context").
func Sender(receiver *object.Object) *object.Object {
	senderStacks.mu.Lock()
	defer senderStacks.mu.Unlock()
	stack := senderStacks.stacks[receiver]
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}
