package ioloop

import (
	"sync"

	"github.com/arwx/loopwire"
	"github.com/arwx/loopwire/metrics"
)

// Direction distinguishes a read completion from a write completion for a
// Request, since both are funneled through the same completion channel.
type Direction int

const (
	// DirRead marks a request as a read (§4.D "read_async").
	DirRead Direction = iota
	// DirWrite marks a request as a write (§4.D "write operation").
	DirWrite
)

// Request describes one in-flight read or write submitted to a Facility.
// Do corresponds to the "per-handle completion hook" the spec assigns to
// whichever component owns the handle (TCPSocket, FileDevice, Process);
// it runs the actual syscall and returns the bytes transferred and any
// error, exactly as it would from a blocking net.Conn/os.File call.
type Request struct {
	Handle       string
	Direction    Direction
	Do           func() (n int, err error)
	Continuation func(n int, err error)
}

type completion struct {
	req Request
	n   int
	err error
}

// Facility is the reference completion facility (§4.D, §1 "specified only
// by the capability the core consumes"): a background goroutine per
// submitted Request performs the real blocking I/O and posts a completion
// onto a single buffered channel, which poll drains without blocking. It
// is the idiomatic Go rendering of an IOCP/epoll reactor, since Go does
// not expose its own netpoller for direct embedding.
type Facility struct {
	mu     sync.Mutex
	ch     chan completion
	closed bool

	inFlight metrics.UpDownCounter
	done     metrics.Counter
}

// Option configures a Facility at construction.
type Option func(*Facility)

// WithMetrics records in-flight request counts and completions through p.
func WithMetrics(p metrics.Provider) Option {
	return func(f *Facility) {
		f.inFlight = p.UpDownCounter("ioloop.requests_in_flight", metrics.WithUnit("1"))
		f.done = p.Counter("ioloop.completions", metrics.WithUnit("1"))
	}
}

// NewFacility constructs a Facility with a completion channel sized for
// queueDepth undelivered completions; beyond that, the goroutine posting a
// further completion blocks until poll drains the channel (Submit itself
// does not block).
func NewFacility(queueDepth int, opts ...Option) *Facility {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	f := &Facility{
		ch:       make(chan completion, queueDepth),
		inFlight: metrics.NewNoopProvider().UpDownCounter(""),
		done:     metrics.NewNoopProvider().Counter(""),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Submit schedules req.Do to run on its own goroutine and posts its
// result as a completion, to be delivered to req.Continuation from the
// Loop's step 4 (§4.D "per-handle registration... the hook has access to
// the original request's context"). Submit never blocks the caller on the
// I/O itself.
func (f *Facility) Submit(req Request) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFacilityClosed
	}
	f.mu.Unlock()

	f.inFlight.Add(1)
	go func() {
		n, err := req.Do()
		f.mu.Lock()
		closed := f.closed
		f.mu.Unlock()
		if closed {
			return
		}
		f.ch <- completion{req: req, n: n, err: err}
	}()
	return nil
}

// AttachTo installs this Facility's poll as a CompletionPoller on loop, so
// step 4 of every iteration drains it (§4.B step 4, §4.D).
func (f *Facility) AttachTo(loop *loopwire.Loop) {
	loop.AddCompletionSource(f.poll)
}

// poll drains every completion currently queued, invoking each one's
// continuation, without blocking (§4.B step 4: "drain all ready OS
// completions (non-blocking)").
func (f *Facility) poll() {
	for {
		select {
		case c := <-f.ch:
			f.inFlight.Add(-1)
			f.done.Add(1)
			if c.req.Continuation != nil {
				c.req.Continuation(c.n, c.err)
			}
		default:
			return
		}
	}
}

// Close marks the Facility closed; goroutines already running finish their
// syscall but their completions are discarded rather than delivered.
func (f *Facility) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}
