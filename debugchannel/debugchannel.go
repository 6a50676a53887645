// Package debugchannel implements the newline-delimited JSON frame
// protocol the framework defines as an internal convention of its socket
// layer (§6 "Socket wire protocol"): each frame is a JSON object with at
// least type ("init"|"log"), appName, version, pid; log frames add level,
// file, line, function, message.
//
// This supplements a feature spec.md's distillation dropped entirely;
// it is grounded in original_source/src/core/SwDebug.h and
// exemples/07-ServeurDebug/ServeurDebug.cpp, reimplemented over
// ioloop.TCPSocket instead of the original's native socket wrapper.
package debugchannel

import (
	"bytes"
	"encoding/json"
	"net"
	"sync"

	"github.com/arwx/loopwire"
	"github.com/arwx/loopwire/ioloop"
	"github.com/arwx/loopwire/object"
	"github.com/arwx/loopwire/signal"
)

// FrameType distinguishes the two frame shapes the protocol defines.
type FrameType string

const (
	// Init is sent once when a debuggee attaches.
	Init FrameType = "init"
	// Log carries one log record.
	Log FrameType = "log"
)

// Frame is one newline-delimited JSON object of the wire protocol.
type Frame struct {
	Type     FrameType `json:"type"`
	AppName  string    `json:"appName"`
	Version  string    `json:"version"`
	PID      int       `json:"pid"`
	Level    string    `json:"level,omitempty"`
	File     string    `json:"file,omitempty"`
	Line     int       `json:"line,omitempty"`
	Function string    `json:"function,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// Server accepts debuggee connections and parses their newline-delimited
// JSON frame stream, emitting one FrameReceived per frame. It listens on a
// raw net.Listener (connection acceptance itself is plain blocking Accept
// on its own goroutine, matching the original's dedicated debug-server
// thread) but every accepted connection is driven as an ioloop.TCPSocket
// through the shared loop and Facility, so frame delivery composes with
// the rest of the application's event-driven I/O.
type Server struct {
	*object.Object

	loop     *loopwire.Loop
	facility *ioloop.Facility
	ln       net.Listener

	mu   sync.Mutex
	bufs map[*ioloop.TCPSocket][]byte

	frameReceived *signal.Signal[Frame]
	clientClosed  *signal.Signal[struct{}]
}

// NewServer constructs a debug server bound to addr (e.g. "127.0.0.1:0"),
// delivered through loop with I/O routed through facility.
func NewServer(loop *loopwire.Loop, facility *ioloop.Facility, addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	obj := object.New()
	s := &Server{
		Object:        obj,
		loop:          loop,
		facility:      facility,
		ln:            ln,
		bufs:          make(map[*ioloop.TCPSocket][]byte),
		frameReceived: signal.New[Frame](obj, loop),
		clientClosed:  signal.New[struct{}](obj, loop),
	}
	go s.acceptLoop()
	return s, nil
}

// Addr returns the server's bound address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// FrameReceived fires once per complete newline-delimited JSON frame
// parsed from any connected client.
func (s *Server) FrameReceived() *signal.Signal[Frame] { return s.frameReceived }

// ClientClosed fires when a connected debuggee disconnects.
func (s *Server) ClientClosed() *signal.Signal[struct{}] { return s.clientClosed }

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		// Accept itself runs on this dedicated accept goroutine, matching
		// the original's dedicated debug-server thread; everything that
		// touches the loop-owned socket/signal state is handed off via
		// Post so it runs on the loop's own goroutine (§5).
		_ = s.loop.Post(func() { s.adopt(conn) })
	}
}

func (s *Server) adopt(conn net.Conn) {
	sock := ioloop.NewTCPSocket(s.loop, s.facility)
	sock.Adopt(conn)

	s.mu.Lock()
	s.bufs[sock] = nil
	s.mu.Unlock()

	sock.ReadyRead().Connect(nil, signal.Direct, func(struct{}) { s.drain(sock) })
	sock.Disconnected().Connect(nil, signal.Direct, func(struct{}) {
		s.mu.Lock()
		delete(s.bufs, sock)
		s.mu.Unlock()
		s.clientClosed.Emit(struct{}{})
	})
}

// drain pulls whatever's available on sock, splits it on newlines, and
// parses each complete line as a Frame.
func (s *Server) drain(sock *ioloop.TCPSocket) {
	for {
		chunk, err := sock.Read(4096)
		if err != nil || len(chunk) == 0 {
			return
		}
		s.mu.Lock()
		s.bufs[sock] = append(s.bufs[sock], chunk...)
		buf := s.bufs[sock]
		s.mu.Unlock()

		for {
			idx := bytes.IndexByte(buf, '\n')
			if idx < 0 {
				break
			}
			line := buf[:idx]
			buf = buf[idx+1:]
			if len(line) > 0 {
				var f Frame
				if jsonErr := json.Unmarshal(line, &f); jsonErr == nil {
					s.frameReceived.Emit(f)
				}
			}
		}

		s.mu.Lock()
		s.bufs[sock] = buf
		s.mu.Unlock()
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	return s.ln.Close()
}

// EncodeFrame serializes f as one newline-terminated JSON line, ready to
// be handed to TCPSocket.Write by a debuggee client.
func EncodeFrame(f Frame) ([]byte, error) {
	body, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return append(body, '\n'), nil
}
