package debugchannel

import (
	"net"
	"testing"
	"time"

	"github.com/arwx/loopwire"
	"github.com/arwx/loopwire/ioloop"
	"github.com/stretchr/testify/require"
)

func TestServerParsesFrameStream(t *testing.T) {
	loop := loopwire.New()
	facility := ioloop.NewFacility(16)
	facility.AttachTo(loop)

	srv, err := NewServer(loop, facility, "127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()

	var received []Frame
	srv.FrameReceived().Connect(nil, 0, func(f Frame) { received = append(received, f) })

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	initFrame, err := EncodeFrame(Frame{Type: Init, AppName: "demo", Version: "1.0", PID: 42})
	require.NoError(t, err)
	logFrame, err := EncodeFrame(Frame{
		Type: Log, AppName: "demo", Version: "1.0", PID: 42,
		Level: "info", File: "main.go", Line: 10, Function: "main", Message: "hello",
	})
	require.NoError(t, err)

	_, err = conn.Write(append(initFrame, logFrame...))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		loop.ProcessOnce(false)
		return len(received) == 2
	}, 3*time.Second, time.Millisecond)

	require.Equal(t, Init, received[0].Type)
	require.Equal(t, "demo", received[0].AppName)
	require.Equal(t, Log, received[1].Type)
	require.Equal(t, "hello", received[1].Message)
	require.Equal(t, 10, received[1].Line)
}
