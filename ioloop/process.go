package ioloop

import (
	"io"
	"os/exec"
	"sync"

	"github.com/arwx/loopwire/object"
	"github.com/arwx/loopwire/signal"
)

// Process wraps an *exec.Cmd's stdout/stderr pipes as signals, reusing the
// Facility/completion-hook plumbing instead of a dedicated reactor (§4.D
// "Child process... reuse the same primitives... a thin wrapper that
// presents pipe reads/writes as signals").
type Process struct {
	*object.Object

	facility *Facility
	cmd      *exec.Cmd

	stdout io.ReadCloser
	stderr io.ReadCloser
	stdin  io.WriteCloser

	mu        sync.Mutex
	started   bool
	finished  bool
	exitErr   error
	pipesDone int

	readyReadStdout *signal.Signal[[]byte]
	readyReadStderr *signal.Signal[[]byte]
	finishedSig     *signal.Signal[error]
}

// NewProcess constructs an unstarted Process for the given command line.
func NewProcess(facility *Facility, name string, args ...string) *Process {
	obj := object.New()
	p := &Process{
		Object:          obj,
		facility:        facility,
		cmd:             exec.Command(name, args...),
		readyReadStdout: signal.New[[]byte](obj, nil),
		readyReadStderr: signal.New[[]byte](obj, nil),
		finishedSig:     signal.New[error](obj, nil),
	}
	return p
}

// ReadyReadStdout fires with each chunk read from the child's stdout.
func (p *Process) ReadyReadStdout() *signal.Signal[[]byte] { return p.readyReadStdout }

// ReadyReadStderr fires with each chunk read from the child's stderr.
func (p *Process) ReadyReadStderr() *signal.Signal[[]byte] { return p.readyReadStderr }

// Finished fires once the child process exits, carrying its *exec.ExitError
// (nil on success).
func (p *Process) Finished() *signal.Signal[error] { return p.finishedSig }

// Start launches the child process and begins pumping its stdout/stderr
// pipes through the Facility, one outstanding read per pipe at a time.
func (p *Process) Start() error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrBadState
	}
	p.started = true
	p.mu.Unlock()

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return err
	}
	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return err
	}
	p.stdout, p.stderr, p.stdin = stdout, stderr, stdin

	if err := p.cmd.Start(); err != nil {
		return err
	}

	p.pumpPipe(p.stdout, p.readyReadStdout)
	p.pumpPipe(p.stderr, p.readyReadStderr)
	return nil
}

// pumpPipe keeps exactly one Facility read in flight on r, emitting sig
// with each non-empty chunk until the pipe reports EOF, then marks that
// pipe drained.
func (p *Process) pumpPipe(r io.Reader, sig *signal.Signal[[]byte]) {
	var step func()
	step = func() {
		buf := make([]byte, 4096)
		_ = p.facility.Submit(Request{
			Direction: DirRead,
			Do:        func() (int, error) { return r.Read(buf) },
			Continuation: func(n int, err error) {
				if n > 0 {
					chunk := make([]byte, n)
					copy(chunk, buf[:n])
					sig.Emit(chunk)
				}
				if err == nil {
					step()
					return
				}
				p.pipeDrained()
			},
		})
	}
	step()
}

// pipeDrained records that one of stdout/stderr has reached EOF and, once
// both have, submits cmd.Wait: os/exec requires every pipe read to finish
// before Wait is called, since Wait closes the pipes on exit and racing it
// against pumpPipe can lose buffered output or surface a spurious read
// error.
func (p *Process) pipeDrained() {
	p.mu.Lock()
	p.pipesDone++
	ready := p.pipesDone == 2
	p.mu.Unlock()
	if ready {
		p.waitForExit()
	}
}

func (p *Process) waitForExit() {
	_ = p.facility.Submit(Request{
		Direction: DirRead,
		Do:        func() (int, error) { return 0, p.cmd.Wait() },
		Continuation: func(_ int, err error) {
			p.mu.Lock()
			p.finished = true
			p.exitErr = err
			p.mu.Unlock()
			p.finishedSig.Emit(err)
		},
	})
}

// Write sends data to the child's stdin.
func (p *Process) Write(data []byte) (int, error) {
	if p.stdin == nil {
		return 0, ErrBadState
	}
	return p.stdin.Write(data)
}

// CloseStdin closes the child's stdin, signalling EOF to it.
func (p *Process) CloseStdin() error {
	if p.stdin == nil {
		return nil
	}
	return p.stdin.Close()
}

// Kill terminates the child process immediately.
func (p *Process) Kill() error {
	if p.cmd.Process == nil {
		return ErrBadState
	}
	return p.cmd.Process.Kill()
}

// Exited reports whether the process has exited and its result, for
// callers that poll rather than connect to the Finished signal.
func (p *Process) Exited() (done bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished, p.exitErr
}
