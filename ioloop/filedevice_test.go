package ioloop

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileDeviceReadAsync(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "ioloop")
	require.NoError(t, err)
	_, err = f.WriteString("hello world")
	require.NoError(t, err)
	require.NoError(t, f.Sync())

	facility := NewFacility(4)
	dev := NewFileDevice(facility, f)

	var got []byte
	dev.ReadDone().Connect(nil, 0, func(r readResult) {
		require.NoError(t, r.Err)
		got = r.Data
	})

	require.NoError(t, dev.ReadAsync(5, 0))

	require.Eventually(t, func() bool {
		facility.poll()
		return len(got) > 0
	}, 2*time.Second, time.Millisecond)

	require.Equal(t, "hello", string(got))
}

func TestFileDeviceWriteAsyncFireAndMonitor(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "ioloop")
	require.NoError(t, err)

	facility := NewFacility(4)
	dev := NewFileDevice(facility, f)

	require.NoError(t, dev.WriteAsync([]byte("payload"), 0))
	require.ErrorIs(t, dev.WriteAsync([]byte("again"), 0), ErrBadState)

	require.Eventually(t, func() bool {
		facility.poll()
		done, _ := dev.WriteComplete()
		return done
	}, 2*time.Second, time.Millisecond)

	done, err := dev.WriteComplete()
	require.True(t, done)
	require.NoError(t, err)
}
