package loopwire_test

import (
	"testing"
	"time"

	"github.com/arwx/loopwire"
	"github.com/arwx/loopwire/metrics"
	"github.com/stretchr/testify/require"
)

// TestPostedClosureOrdering is §8 scenario 1: post A, B, C; one iteration
// runs exactly one of them; three iterations are needed to flush all
// three, and the observed order is A, B, C.
func TestPostedClosureOrdering(t *testing.T) {
	loop := loopwire.New()
	defer loop.Close()

	var order []string
	require.NoError(t, loop.Post(func() { order = append(order, "A") }))
	require.NoError(t, loop.Post(func() { order = append(order, "B") }))
	require.NoError(t, loop.Post(func() { order = append(order, "C") }))

	loop.ProcessOnce(false)
	require.Equal(t, []string{"A"}, order)

	loop.ProcessOnce(false)
	require.Equal(t, []string{"A", "B"}, order)

	loop.ProcessOnce(false)
	require.Equal(t, []string{"A", "B", "C"}, order)
}

// TestTimerCadenceDriftTolerant is §8 scenario 2: a recurring 50ms timer
// run for 260ms should fire in {4, 5, 6} (drift-tolerant cadence).
func TestTimerCadenceDriftTolerant(t *testing.T) {
	loop := loopwire.New()
	defer loop.Close()

	var count int
	id := loop.AddTimer(func() { count++ }, 50*time.Millisecond, false)
	defer loop.RemoveTimer(id)

	loop.RunFor(260 * time.Millisecond)

	require.GreaterOrEqual(t, count, 4)
	require.LessOrEqual(t, count, 6)
}

// TestNestedEventLoop is §8 scenario 3: a slot constructs an inner loop,
// posts a closure that quits it, and calls inner.Run(); the outer task's
// local state must survive the nested Run.
func TestNestedEventLoop(t *testing.T) {
	outer := loopwire.New()
	defer outer.Close()

	localBefore := "intact"
	var localAfter string
	var innerExitCode int

	done := make(chan struct{})
	require.NoError(t, outer.Post(func() {
		inner := loopwire.New()
		defer inner.Close()

		require.NoError(t, inner.Post(func() { inner.Quit() }))
		innerExitCode = inner.Run()

		localAfter = localBefore
		close(done)
	}))

	for {
		select {
		case <-done:
			require.Equal(t, 0, innerExitCode)
			require.Equal(t, "intact", localAfter)
			return
		default:
			outer.ProcessOnce(false)
		}
	}
}

func TestZeroIntervalTimerFiresAtMostOncePerIteration(t *testing.T) {
	loop := loopwire.New()
	defer loop.Close()

	var fires int
	loop.AddTimer(func() { fires++ }, 0, false)

	loop.ProcessOnce(false)
	require.Equal(t, 1, fires)

	loop.ProcessOnce(false)
	require.Equal(t, 2, fires)
}

func TestAddTimerRemoveTimerRoundTrip(t *testing.T) {
	loop := loopwire.New()
	defer loop.Close()

	id := loop.AddTimer(func() {}, time.Hour, false)
	loop.RemoveTimer(id)
	loop.RemoveTimer(id) // idempotent second call
}

func TestPostAfterCloseReturnsError(t *testing.T) {
	loop := loopwire.New()
	loop.Close()
	require.ErrorIs(t, loop.Post(func() {}), loopwire.ErrLoopClosed)
}

func TestUnyieldUnknownTokenIsNoop(t *testing.T) {
	loop := loopwire.New()
	defer loop.Close()
	loop.Unyield(loopwire.Token(9999))
}

// TestWithMetricsRecordsThroughBasicProvider wires loopwire.WithMetrics to
// a real metrics.NewBasicProvider(), rather than leaving it exercised only
// by metrics' own package test.
func TestWithMetricsRecordsThroughBasicProvider(t *testing.T) {
	provider := metrics.NewBasicProvider()
	loop := loopwire.New(loopwire.WithMetrics(provider))
	defer loop.Close()

	require.NoError(t, loop.Post(func() {}))
	require.NoError(t, loop.Post(func() {}))
	loop.ProcessOnce(false)
	loop.ProcessOnce(false)

	counter := provider.Counter("loopwire.posted_closures")
	basic, ok := counter.(*metrics.BasicCounter)
	require.True(t, ok)
	require.Equal(t, int64(2), basic.Snapshot())

	spawned, ok := provider.Counter("loopwire.tasks_spawned").(*metrics.BasicCounter)
	require.True(t, ok)
	require.Equal(t, int64(2), spawned.Snapshot())
}
