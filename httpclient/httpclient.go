// Package httpclient implements the plain-text HTTP/1.1 GET request the
// framework defines as an internal convention of its socket layer (§6
// "Socket wire protocol"): "GET <path> HTTP/1.1\r\nHost:
// <host>\r\n<user-headers>\r\n\r\n", reading headers until "\r\n\r\n" then
// content-length bytes (if present) or until the peer closes.
//
// This supplements a feature spec.md's distillation dropped entirely; it
// is grounded in
// original_source/exemples/04-NetworkAccesManager/NetworkAccesManager.cpp,
// reimplemented over ioloop.TCPSocket instead of the original's
// QNetworkAccessManager-shaped wrapper.
package httpclient

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arwx/loopwire"
	"github.com/arwx/loopwire/ioloop"
)

// Response is the parsed result of a GET.
type Response struct {
	StatusLine string
	Headers    map[string]string
	Body       []byte
}

// Client issues GET requests over ioloop.TCPSocket, one connection per
// request, following the framework's internal plain-text convention
// rather than full RFC 7230 compliance (redirects, chunked transfer, TLS,
// and keep-alive are all out of scope, matching the original's minimal
// GET-only manager).
type Client struct {
	loop     *loopwire.Loop
	facility *ioloop.Facility
	timeout  time.Duration
}

// New constructs a Client delivered through loop with I/O routed through
// facility. timeout bounds each of the three waits of a request (connect,
// write, response read) separately; zero means 30s.
func New(loop *loopwire.Loop, facility *ioloop.Facility, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{loop: loop, facility: facility, timeout: timeout}
}

// Get performs a blocking-from-the-caller's-view GET against host:port/path
// with the given extra headers, by driving the loop with ProcessOnce from
// the calling goroutine while the request is in flight (§4.D "Waiting...
// wait_for_connected, wait_for_bytes_written, and similar wait primitives
// all use the same
// pattern: spin the loop while evaluating a user-supplied predicate").
func (c *Client) Get(host string, port int, path string, headers map[string]string) (*Response, error) {
	sock := ioloop.NewTCPSocket(c.loop, c.facility)
	defer sock.Close()

	if err := sock.ConnectToHost(host, port); err != nil {
		return nil, err
	}
	if !sock.WaitForConnected(c.timeout) {
		return nil, ioloop.ErrTimeout
	}

	var req strings.Builder
	fmt.Fprintf(&req, "GET %s HTTP/1.1\r\nHost: %s\r\n", path, host)
	for k, v := range headers {
		fmt.Fprintf(&req, "%s: %s\r\n", k, v)
	}
	req.WriteString("\r\n")

	if err := sock.Write([]byte(req.String())); err != nil {
		return nil, err
	}
	if !sock.WaitForBytesWritten(c.timeout) {
		return nil, ioloop.ErrTimeout
	}

	return c.readResponse(sock)
}

func (c *Client) readResponse(sock *ioloop.TCPSocket) (*Response, error) {
	var buf []byte
	deadline := time.Now().Add(c.timeout)

	headerEnd := -1
	for headerEnd < 0 {
		if time.Now().After(deadline) {
			return nil, ioloop.ErrTimeout
		}
		chunk, err := sock.Read(4096)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			c.loop.ProcessOnce(false)
			time.Sleep(time.Millisecond)
			if sock.State() != ioloop.Connected {
				break
			}
			continue
		}
		buf = append(buf, chunk...)
		headerEnd = bytes.Index(buf, []byte("\r\n\r\n"))
	}
	if headerEnd < 0 {
		return nil, fmt.Errorf("httpclient: connection closed before headers completed")
	}

	rawHeaders := string(buf[:headerEnd])
	lines := strings.Split(rawHeaders, "\r\n")
	resp := &Response{StatusLine: lines[0], Headers: make(map[string]string)}
	for _, line := range lines[1:] {
		if idx := strings.Index(line, ":"); idx > 0 {
			key := strings.TrimSpace(line[:idx])
			val := strings.TrimSpace(line[idx+1:])
			resp.Headers[strings.ToLower(key)] = val
		}
	}

	body := append([]byte(nil), buf[headerEnd+4:]...)

	if cl, ok := resp.Headers["content-length"]; ok {
		n, err := strconv.Atoi(cl)
		if err != nil {
			return nil, fmt.Errorf("httpclient: bad content-length: %w", err)
		}
		for len(body) < n {
			if time.Now().After(deadline) {
				return nil, ioloop.ErrTimeout
			}
			chunk, err := sock.Read(4096)
			if err != nil {
				return nil, err
			}
			if len(chunk) == 0 {
				c.loop.ProcessOnce(false)
				time.Sleep(time.Millisecond)
				continue
			}
			body = append(body, chunk...)
		}
		body = body[:n]
	} else {
		for sock.State() == ioloop.Connected {
			if time.Now().After(deadline) {
				return nil, ioloop.ErrTimeout
			}
			chunk, err := sock.Read(4096)
			if err != nil {
				return nil, err
			}
			if len(chunk) == 0 {
				c.loop.ProcessOnce(false)
				time.Sleep(time.Millisecond)
				continue
			}
			body = append(body, chunk...)
		}
	}

	resp.Body = body
	return resp, nil
}
