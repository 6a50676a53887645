package httpclient

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/arwx/loopwire"
	"github.com/arwx/loopwire/ioloop"
	"github.com/stretchr/testify/require"
)

// rawHTTPServer answers exactly one connection with a fixed response,
// standing in for a real HTTP server so the test exercises the client's
// own request-writing and response-parsing, not net/http.
func rawHTTPServer(t *testing.T, body string) net.Addr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		defer ln.Close()

		buf := make([]byte, 4096)
		_, _ = conn.Read(buf)

		resp := "HTTP/1.1 200 OK\r\nContent-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body
		_, _ = conn.Write([]byte(resp))
	}()
	return ln.Addr()
}

func TestGetParsesStatusHeadersAndBody(t *testing.T) {
	addr := rawHTTPServer(t, "hello from server")

	host, portStr, err := net.SplitHostPort(addr.String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	loop := loopwire.New()
	facility := ioloop.NewFacility(16)
	facility.AttachTo(loop)

	client := New(loop, facility, 5*time.Second)

	// Get drives the loop itself from this goroutine while it waits
	// (WaitForConnected/WaitForBytesWritten/readResponse all tick the
	// loop internally), so no separate driver goroutine is needed.
	resp, err := client.Get(host, port, "/", map[string]string{"Accept": "*/*"})
	require.NoError(t, err)
	require.NotNil(t, resp)
	require.Equal(t, "HTTP/1.1 200 OK", resp.StatusLine)
	require.Equal(t, "hello from server", string(resp.Body))
}
