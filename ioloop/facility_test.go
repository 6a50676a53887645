package ioloop

import (
	"testing"
	"time"

	"github.com/arwx/loopwire"
	"github.com/arwx/loopwire/metrics"
	"github.com/stretchr/testify/require"
)

func TestFacilityDeliversCompletionOnPoll(t *testing.T) {
	f := NewFacility(4)
	done := make(chan struct{})

	require.NoError(t, f.Submit(Request{
		Handle:    "test",
		Direction: DirRead,
		Do:        func() (int, error) { return 3, nil },
		Continuation: func(n int, err error) {
			require.Equal(t, 3, n)
			require.NoError(t, err)
			close(done)
		},
	}))

	require.Eventually(t, func() bool {
		f.poll()
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 2*time.Second, time.Millisecond)
}

func TestFacilitySubmitAfterCloseErrors(t *testing.T) {
	f := NewFacility(4)
	require.NoError(t, f.Close())
	require.ErrorIs(t, f.Submit(Request{Do: func() (int, error) { return 0, nil }}), ErrFacilityClosed)
}

func TestFacilityAttachesToLoopStep4(t *testing.T) {
	loop := loopwire.New()
	f := NewFacility(4)
	f.AttachTo(loop)

	delivered := make(chan struct{})
	require.NoError(t, f.Submit(Request{
		Do:           func() (int, error) { return 0, nil },
		Continuation: func(int, error) { close(delivered) },
	}))

	require.Eventually(t, func() bool {
		loop.ProcessOnce(false)
		select {
		case <-delivered:
			return true
		default:
			return false
		}
	}, 2*time.Second, time.Millisecond)
}

// TestFacilityRecordsThroughBasicProvider wires ioloop.WithMetrics to a real
// metrics.NewBasicProvider(), rather than leaving it exercised only by
// metrics' own package test.
func TestFacilityRecordsThroughBasicProvider(t *testing.T) {
	provider := metrics.NewBasicProvider()
	f := NewFacility(4, WithMetrics(provider))

	done := make(chan struct{})
	require.NoError(t, f.Submit(Request{
		Do:           func() (int, error) { return 0, nil },
		Continuation: func(int, error) { close(done) },
	}))

	require.Eventually(t, func() bool {
		f.poll()
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 2*time.Second, time.Millisecond)

	completions, ok := provider.Counter("ioloop.completions").(*metrics.BasicCounter)
	require.True(t, ok)
	require.Equal(t, int64(1), completions.Snapshot())
}
