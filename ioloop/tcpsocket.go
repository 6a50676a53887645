package ioloop

import (
	"errors"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/arwx/loopwire"
	"github.com/arwx/loopwire/object"
	"github.com/arwx/loopwire/signal"
)

// SocketState is one of the five states of the TCP socket state machine
// (§4.D "TCP socket state machine").
type SocketState int

const (
	Unconnected SocketState = iota
	HostLookup
	Connecting
	Connected
	Closing
)

func (s SocketState) String() string {
	switch s {
	case Unconnected:
		return "unconnected"
	case HostLookup:
		return "host-lookup"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// TCPSocket implements the spec's TCP socket state machine: a buffered,
// non-blocking write path and five observable signals, grounded in
// original_source/src/core/... socket wrapper semantics but built on
// net.Conn and the Facility instead of a native socket handle.
//
// A zero-wait read/write deadline (time.Now()) on the underlying net.Conn
// stands in for the OS's non-blocking mode, since Go's net package has no
// direct "try once, return EWOULDBLOCK" call: setting the deadline to now
// makes the pending syscall return immediately, with os.ErrDeadlineExceeded
// playing the role of would-block.
type TCPSocket struct {
	*object.Object

	loop     *loopwire.Loop
	facility *Facility

	mu    sync.Mutex
	state SocketState
	conn  net.Conn

	writeBuf    []byte
	pendingByte []byte

	hadConnection bool

	connected    *signal.Signal[struct{}]
	disconnected *signal.Signal[struct{}]
	readyRead    *signal.Signal[struct{}]
	writeDone    *signal.Signal[struct{}]
	errOccurred  *signal.Signal[error]

	readHookInstalled bool
}

// NewTCPSocket constructs an unconnected socket delivered through loop,
// with its read/write completions routed through facility.
func NewTCPSocket(loop *loopwire.Loop, facility *Facility) *TCPSocket {
	obj := object.New()
	s := &TCPSocket{
		Object:       obj,
		loop:         loop,
		facility:     facility,
		state:        Unconnected,
		connected:    signal.New[struct{}](obj, loop),
		disconnected: signal.New[struct{}](obj, loop),
		readyRead:    signal.New[struct{}](obj, loop),
		writeDone:    signal.New[struct{}](obj, loop),
		errOccurred:  signal.New[error](obj, loop),
	}
	return s
}

// Connected fires on entering the Connected state.
func (s *TCPSocket) Connected() *signal.Signal[struct{}] { return s.connected }

// Disconnected fires at most once per Connected episode, on leaving it
// (§3 "Socket", §4.D "Signals emitted").
func (s *TCPSocket) Disconnected() *signal.Signal[struct{}] { return s.disconnected }

// ReadyRead fires for every readable notification, level-triggered from
// the caller's viewpoint (§4.D "Signals emitted").
func (s *TCPSocket) ReadyRead() *signal.Signal[struct{}] { return s.readyRead }

// WriteFinished fires exactly once per transition of the write buffer
// from non-empty to empty (§3 "Write buffer").
func (s *TCPSocket) WriteFinished() *signal.Signal[struct{}] { return s.writeDone }

// ErrorOccurred fires on any OS error, carrying it verbatim (§7).
func (s *TCPSocket) ErrorOccurred() *signal.Signal[error] { return s.errOccurred }

// State returns the socket's current state.
func (s *TCPSocket) State() SocketState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *TCPSocket) setState(next SocketState) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

// ConnectToHost begins an asynchronous connect (§4.D state diagram:
// unconnected -> host-lookup -> connecting -> connected). DNS resolution
// and the TCP handshake both run on Facility-managed goroutines; no call
// in this method blocks the loop.
func (s *TCPSocket) ConnectToHost(host string, port int) error {
	s.mu.Lock()
	if s.state != Unconnected {
		s.mu.Unlock()
		return ErrBadState
	}
	s.state = HostLookup
	s.mu.Unlock()

	addr := net.JoinHostPort(host, strconv.Itoa(port))

	return s.facility.Submit(Request{
		Handle:    addr,
		Direction: DirRead,
		Do: func() (int, error) {
			conn, err := net.DialTimeout("tcp", addr, 30*time.Second)
			if err != nil {
				return 0, err
			}
			s.mu.Lock()
			s.conn = conn
			s.mu.Unlock()
			return 0, nil
		},
		Continuation: func(_ int, err error) {
			if err != nil {
				s.reportError(err, true)
				return
			}
			s.setState(Connecting)
			s.finishConnect()
		},
	})
}

// Adopt installs an already-established connection directly into the
// Connected state (§4.D state diagram: "adopt(existing_handle)"), used by
// a TCP server accepting an inbound connection.
func (s *TCPSocket) Adopt(conn net.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.finishConnect()
}

func (s *TCPSocket) finishConnect() {
	s.mu.Lock()
	s.hadConnection = true
	s.mu.Unlock()
	s.setState(Connected)
	s.installReadHook()
	s.connected.Emit(struct{}{})
}

// installReadHook keeps exactly one Facility read in flight for this
// socket's lifetime in the Connected state, so every readable
// notification reaches ReadyRead even if the caller never calls Read
// itself (§4.D "ready-read... level-triggered").
func (s *TCPSocket) installReadHook() {
	s.mu.Lock()
	if s.readHookInstalled {
		s.mu.Unlock()
		return
	}
	s.readHookInstalled = true
	conn := s.conn
	s.mu.Unlock()

	probe := make([]byte, 1)
	_ = s.facility.Submit(Request{
		Handle:    "probe",
		Direction: DirRead,
		Do: func() (int, error) {
			_ = conn.SetReadDeadline(time.Time{})
			return conn.Read(probe)
		},
		Continuation: func(n int, err error) {
			s.mu.Lock()
			s.readHookInstalled = false
			s.mu.Unlock()

			if n > 0 {
				s.pendingByte = append(s.pendingByte, probe[:n]...)
				s.readyRead.Emit(struct{}{})
				s.installReadHook()
				return
			}
			if err == nil {
				s.readyRead.Emit(struct{}{})
				s.installReadHook()
				return
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				s.installReadHook()
				return
			}
			if err.Error() == "EOF" || errorIsEOF(err) {
				s.beginClose()
				return
			}
			s.reportError(err, true)
		},
	})
}

// Read performs at most one non-blocking OS read of up to min(max, 1024)
// bytes (§4.D "Reading policy"). An empty return means no data is
// available right now; it does not close the socket. A true OS EOF (peer
// half-close) drives the state machine to Closing/Unconnected and is
// reported via Disconnected, not via the return value: once a socket has
// been connected at least once, Read keeps returning any bytes still
// buffered from before the close, then (nil, nil), exactly like a read
// that simply found nothing available yet (§8 scenario 5 "read returns
// empty and the state machine reports closing/disconnected"). ErrBadState
// is reserved for a socket that was never connected in the first place.
func (s *TCPSocket) Read(max int) ([]byte, error) {
	if max > readChunkSize {
		max = readChunkSize
	}

	s.mu.Lock()
	if s.state != Connected {
		if !s.hadConnection {
			s.mu.Unlock()
			return nil, ErrBadState
		}
		pending := s.takePendingLocked(max)
		s.mu.Unlock()
		return pending, nil
	}
	conn := s.conn
	pending := s.takePendingLocked(max)
	s.mu.Unlock()

	if len(pending) > 0 {
		return pending, nil
	}

	buf := getReadBuf()
	defer putReadBuf(buf)
	if max < len(buf) {
		buf = buf[:max]
	}

	_ = conn.SetReadDeadline(time.Now())
	n, err := conn.Read(buf)
	_ = conn.SetReadDeadline(time.Time{})

	if n == 0 && err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, nil
		}
		if errorIsEOF(err) {
			s.beginClose()
			return nil, nil
		}
		s.reportError(err, true)
		return nil, newOSError("read", err)
	}

	out := make([]byte, n)
	copy(out, buf[:n])
	return out, nil
}

// takePendingLocked removes and returns up to max bytes of pendingByte,
// putting the remainder back. s.mu must be held by the caller.
func (s *TCPSocket) takePendingLocked(max int) []byte {
	pending := s.pendingByte
	s.pendingByte = nil
	if len(pending) == 0 {
		return nil
	}
	if len(pending) > max {
		s.pendingByte = pending[max:]
		pending = pending[:max]
	}
	return pending
}

// Write appends bytes to the write buffer's tail and calls tryFlush
// (§3 "Write buffer", §4.D "Buffered streaming"). It returns ErrBadState
// if the socket is not Connected.
func (s *TCPSocket) Write(data []byte) error {
	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return ErrBadState
	}
	s.writeBuf = append(s.writeBuf, data...)
	s.mu.Unlock()

	s.tryFlush()
	return nil
}

// tryFlush issues one non-blocking send of as many buffered bytes as the
// OS accepts, removes exactly that many from the buffer head, and emits
// WriteFinished exactly once per emptying (§4.D "try_flush").
func (s *TCPSocket) tryFlush() {
	s.mu.Lock()
	if len(s.writeBuf) == 0 || s.state != Connected {
		s.mu.Unlock()
		return
	}
	conn := s.conn
	chunk := append([]byte(nil), s.writeBuf...)
	s.mu.Unlock()

	_ = conn.SetWriteDeadline(time.Now())
	n, err := conn.Write(chunk)
	_ = conn.SetWriteDeadline(time.Time{})

	s.mu.Lock()
	if n > 0 {
		s.writeBuf = s.writeBuf[n:]
	}
	emptiedNow := n > 0 && len(s.writeBuf) == 0
	s.mu.Unlock()

	if emptiedNow {
		s.writeDone.Emit(struct{}{})
		return
	}

	if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
		s.reportError(err, true)
		return
	}

	if n < len(chunk) {
		// would-block on the remainder: retry on the next writable tick.
		s.facility.Submit(Request{
			Handle:    "flush",
			Direction: DirWrite,
			Do:        func() (int, error) { time.Sleep(time.Millisecond); return 0, nil },
			Continuation: func(int, error) {
				s.mu.Lock()
				stillOpen := s.state == Connected
				s.mu.Unlock()
				if stillOpen {
					s.tryFlush()
				}
			},
		})
	}
}

// WaitForBytesWritten spins the loop while the write buffer is non-empty,
// honouring a wall-clock deadline (§4.D "Waiting"). Returns true iff the
// buffer drained (or was already empty) before the deadline.
func (s *TCPSocket) WaitForBytesWritten(timeout time.Duration) bool {
	return s.waitFor(timeout, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.writeBuf) == 0
	})
}

// WaitForConnected spins the loop until the socket reaches Connected or
// the deadline passes (§4.D "Waiting").
func (s *TCPSocket) WaitForConnected(timeout time.Duration) bool {
	return s.waitFor(timeout, func() bool {
		return s.State() == Connected
	})
}

func (s *TCPSocket) waitFor(timeout time.Duration, predicate func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if predicate() {
			return true
		}
		if time.Now().After(deadline) {
			return predicate()
		}
		s.loop.ProcessOnce(false)
		time.Sleep(time.Millisecond)
	}
}

// Close transitions Connected -> Closing -> Unconnected within one loop
// iteration (§3 "Socket" invariant), releasing the handle and event
// registration before returning to Unconnected.
func (s *TCPSocket) Close() error {
	return s.beginClose()
}

// ShutdownWrite half-closes the write side so the peer observes EOF,
// without tearing down the socket's own read side (§8 scenario 5
// "socket half-close").
func (s *TCPSocket) ShutdownWrite() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if tc, ok := conn.(*net.TCPConn); ok {
		return tc.CloseWrite()
	}
	return nil
}

func (s *TCPSocket) beginClose() error {
	s.mu.Lock()
	if s.state == Unconnected || s.state == Closing {
		s.mu.Unlock()
		return nil
	}
	wasConnected := s.state == Connected
	s.state = Closing
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}

	if wasConnected {
		s.disconnected.Emit(struct{}{})
	}
	s.setState(Unconnected)
	return err
}

func (s *TCPSocket) reportError(err error, fatal bool) {
	s.errOccurred.Emit(err)
	if fatal {
		s.beginClose()
	}
}

func errorIsEOF(err error) bool {
	return errors.Is(err, os.ErrClosed) || err.Error() == "EOF"
}
