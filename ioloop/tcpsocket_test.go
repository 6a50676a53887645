package ioloop

import (
	"net"
	"testing"
	"time"

	"github.com/arwx/loopwire"
	"github.com/stretchr/testify/require"
)

// newLoopbackPair returns two TCPSockets wired to opposite ends of a real
// loopback TCP connection, both driven by loop, mirroring §8 scenario 5's
// "two sockets A and B on a loopback pair".
func newLoopbackPair(t *testing.T, loop *loopwire.Loop, facility *Facility) (a, b *TCPSocket) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	acceptedCh := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			acceptedCh <- c
		}
	}()

	clientConn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	serverConn := <-acceptedCh

	a = NewTCPSocket(loop, facility)
	a.Adopt(clientConn)
	b = NewTCPSocket(loop, facility)
	b.Adopt(serverConn)
	return a, b
}

func TestSocketHalfClose(t *testing.T) {
	loop := loopwire.New()
	facility := NewFacility(16)
	facility.AttachTo(loop)

	a, b := newLoopbackPair(t, loop, facility)

	var readyReadCount int
	b.ReadyRead().Connect(nil, 0, func(struct{}) { readyReadCount++ })

	var disconnected bool
	b.Disconnected().Connect(nil, 0, func(struct{}) { disconnected = true })

	require.NoError(t, a.Write([]byte("HELLO")))
	require.NoError(t, a.ShutdownWrite())

	var collected []byte
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		loop.ProcessOnce(false)
		chunk, err := b.Read(1024)
		require.NoError(t, err)
		collected = append(collected, chunk...)
		if b.State() == Unconnected && disconnected {
			break
		}
		time.Sleep(time.Millisecond)
	}

	require.Equal(t, "HELLO", string(collected))
	require.True(t, disconnected)
	require.Equal(t, Unconnected, b.State())
	require.Greater(t, readyReadCount, 0)
}

func TestBufferedWriteDrain(t *testing.T) {
	loop := loopwire.New()
	facility := NewFacility(16)
	facility.AttachTo(loop)

	a, b := newLoopbackPair(t, loop, facility)

	payload := make([]byte, 1<<20)
	for i := range payload {
		payload[i] = byte(i)
	}

	var finishedCount int
	a.WriteFinished().Connect(nil, 0, func(struct{}) { finishedCount++ })

	require.NoError(t, a.Write(payload))

	var received []byte
	deadline := time.Now().Add(5 * time.Second)
	for len(received) < len(payload) && time.Now().Before(deadline) {
		loop.ProcessOnce(false)
		chunk, err := b.Read(1024)
		require.NoError(t, err)
		received = append(received, chunk...)
		time.Sleep(time.Millisecond)
	}

	require.True(t, a.WaitForBytesWritten(2*time.Second))
	require.Equal(t, payload, received)
	require.Equal(t, 1, finishedCount)
}

func TestWriteOnUnconnectedSocketIsBadState(t *testing.T) {
	loop := loopwire.New()
	facility := NewFacility(4)
	facility.AttachTo(loop)

	s := NewTCPSocket(loop, facility)
	require.ErrorIs(t, s.Write([]byte("x")), ErrBadState)
}

func TestWaitForBytesWrittenZeroTimeoutWhenAlreadyEmpty(t *testing.T) {
	loop := loopwire.New()
	facility := NewFacility(4)
	facility.AttachTo(loop)

	a, _ := newLoopbackPair(t, loop, facility)
	require.True(t, a.WaitForBytesWritten(0))
}
