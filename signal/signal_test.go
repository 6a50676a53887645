package signal_test

import (
	"testing"
	"time"

	"github.com/arwx/loopwire"
	"github.com/arwx/loopwire/object"
	"github.com/arwx/loopwire/signal"
	"github.com/stretchr/testify/require"
)

func TestDirectRunsSynchronouslyInOrder(t *testing.T) {
	emitter := object.New()
	sig := signal.New[int](emitter, nil)

	var order []int
	sig.Connect(nil, signal.Direct, func(v int) { order = append(order, v) })
	sig.Connect(nil, signal.Direct, func(v int) { order = append(order, v*10) })

	sig.Emit(1)
	require.Equal(t, []int{1, 10}, order)
}

func TestQueuedRunsOnNextIteration(t *testing.T) {
	loop := loopwire.New()
	defer loop.Close()

	emitter := object.New()
	sig := signal.New[int](emitter, loop)

	ran := false
	sig.Connect(nil, signal.Queued, func(int) { ran = true })

	loop.Post(func() {
		sig.Emit(1)
		require.False(t, ran, "queued slot must not run before Emit returns")
	})
	loop.ProcessOnce(false)
	loop.ProcessOnce(false)

	require.True(t, ran)
}

func TestQueuedVsDirectOrdering(t *testing.T) {
	loop := loopwire.New()
	defer loop.Close()

	emitter := object.New()
	sig := signal.New[int](emitter, loop)

	var direct, queued bool
	sig.Connect(nil, signal.Direct, func(int) { direct = true })
	sig.Connect(nil, signal.Queued, func(int) { queued = true })

	loop.Post(func() {
		sig.Emit(1)
		require.True(t, direct)
		require.False(t, queued)
	})
	for i := 0; i < 3 && !queued; i++ {
		loop.ProcessOnce(false)
	}
	require.True(t, queued)
}

func TestBlockingWaitsForSlot(t *testing.T) {
	loop := loopwire.New()
	defer loop.Close()

	emitter := object.New()
	sig := signal.New[int](emitter, loop)

	ran := false
	sig.Connect(nil, signal.Blocking, func(int) { ran = true })

	done := make(chan struct{})
	loop.Post(func() {
		sig.Emit(1)
		require.True(t, ran, "blocking emit must not return before its slot ran")
		close(done)
	})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		select {
		case <-done:
			return
		default:
			loop.ProcessOnce(false)
		}
	}
	t.Fatal("blocking emit never completed")
}

func TestSenderIdentifiesEmitter(t *testing.T) {
	emitter := object.New()
	receiver := object.New()
	sig := signal.New[int](emitter, nil)

	var seenSender *object.Object
	sig.Connect(receiver, signal.Direct, func(int) {
		seenSender = signal.Sender(receiver)
	})

	sig.Emit(1)
	require.Equal(t, emitter, seenSender)
	require.Nil(t, signal.Sender(receiver), "sender cell must clear after the slot returns")
}

func TestDisconnectAllFromEmitter(t *testing.T) {
	emitter := object.New()
	sig := signal.New[int](emitter, nil)

	calls := 0
	sig.Connect(nil, signal.Direct, func(int) { calls++ })

	signal.DisconnectEmitter(emitter)
	sig.Emit(1)
	require.Zero(t, calls)
}

func TestDisconnectAllToReceiver(t *testing.T) {
	emitter := object.New()
	receiver := object.New()
	sig := signal.New[int](emitter, nil)

	calls := 0
	sig.Connect(receiver, signal.Direct, func(int) { calls++ })

	signal.DisconnectReceiver(receiver)
	sig.Emit(1)
	require.Zero(t, calls)
}

func TestAutoDisconnectOnReceiverDestroy(t *testing.T) {
	emitter := object.New()
	receiver := object.New()
	sig := signal.New[int](emitter, nil)

	calls := 0
	sig.Connect(receiver, signal.Direct, func(int) { calls++ })

	receiver.Destroy()
	sig.Emit(1)
	require.Zero(t, calls)
}

func TestMutationDuringEmitDoesNotAffectInFlightDelivery(t *testing.T) {
	emitter := object.New()
	sig := signal.New[int](emitter, nil)

	var ran []string
	var secondID uint64
	sig.Connect(nil, signal.Direct, func(int) {
		ran = append(ran, "first")
		sig.Disconnect(secondID)
		sig.Connect(nil, signal.Direct, func(int) { ran = append(ran, "late") })
	})
	secondID = sig.Connect(nil, signal.Direct, func(int) { ran = append(ran, "second") })

	sig.Emit(1)
	require.Equal(t, []string{"first", "second"}, ran)
}

func TestSlotPanicContainedAndEmissionContinues(t *testing.T) {
	emitter := object.New()
	var caught *signal.SlotPanicError
	sig := signal.New[int](emitter, nil, signal.WithPanicHandler(func(err *signal.SlotPanicError) {
		caught = err
	}))

	second := false
	sig.Connect(nil, signal.Direct, func(int) { panic("boom") })
	sig.Connect(nil, signal.Direct, func(int) { second = true })

	require.NotPanics(t, func() { sig.Emit(1) })
	require.True(t, second, "remaining slots must still run after a panic")
	require.NotNil(t, caught)
}
