package loopwire

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// maxIterationSleep bounds the recommended sleep ProcessOnce returns, per
// §4.B step 5 ("return min(min_time_until_next, 10ms)").
const maxIterationSleep = 10 * time.Millisecond

// CompletionPoller is installed by an async I/O core (e.g. ioloop.Facility)
// to be invoked once per iteration, in step 4, to drain ready OS
// completions and run their per-handle hooks (§4.D). It must not block.
type CompletionPoller func()

type readyItem struct {
	fn      func()
	token   Token
	isToken bool
}

// Logger is the minimal structured-logging surface loopwire depends on. A
// *log.Logger satisfies it. No third-party logging library in the example
// pack fits a zero-dependency core this small.
type Logger interface {
	Printf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}

// PanicPolicy receives errors produced by unhandled task panics (§4.A,
// §7 "task-panic"). The default policy logs via the Loop's Logger. Slot
// panics are not passed to it; the signal package hands them to its own
// PanicHandler.
type PanicPolicy func(err error)

// Loop owns the ready queue, the timer set, and the suspended-task table,
// and drives one iteration at a time (§4.B).
//
// Loop is safe to use from multiple goroutines only through Post and
// Unyield — every other method (AddTimer, RemoveTimer, Run, RunFor,
// ProcessOnce, Quit, Exit, Spawn, Yield) must be called either before the
// loop starts running or from code executing as the currently running
// task (§5: "the only cross-thread entry point is post").
type Loop struct {
	mu         sync.Mutex
	readyItems []readyItem
	pending    map[Token]bool // tokens already enqueued, guards double-unyield
	suspended  map[Token]*Task
	timers     []*Timer

	completionSources []CompletionPoller

	wakeCh chan struct{}

	nextTaskID  uint64
	nextTimerID uint64
	nextToken   uint64

	currentTask *Task

	running  bool
	exitCode int
	closed   bool

	logger      Logger
	panicPolicy PanicPolicy
	metrics     loopMetrics
}

// Option configures a Loop at construction, following the teacher's
// functional-options convention (options.go -> NewOptions).
type Option func(*Loop)

// WithLogger overrides the default no-op Logger.
func WithLogger(l Logger) Option {
	return func(lp *Loop) { lp.logger = l }
}

// WithPanicPolicy overrides how unhandled task panics are reported. The
// default policy logs the error via the Loop's Logger.
func WithPanicPolicy(p PanicPolicy) Option {
	return func(lp *Loop) { lp.panicPolicy = p }
}

// New constructs a Loop and installs it as the process-wide current loop
// (§6 "Loop factory"). The first constructed Loop wins the slot; it is
// cleared again by Close.
func New(opts ...Option) *Loop {
	l := &Loop{
		pending:   make(map[Token]bool),
		suspended: make(map[Token]*Task),
		wakeCh:    make(chan struct{}),
		logger:    noopLogger{},
		metrics:   newNoopLoopMetrics(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	currentLoop.CompareAndSwap(nil, l)
	return l
}

var currentLoop atomic.Pointer[Loop]

// CurrentLoop returns the process-wide loop: the Loop whose New call found
// the slot empty, until its Close runs. It returns nil if the slot is empty.
// This is a convenience, not a requirement (§9 design note): prefer
// passing a *Loop explicitly through constructors.
func CurrentLoop() *Loop { return currentLoop.Load() }

// Close releases the process-wide current loop slot if this loop holds
// it. It does not stop a running loop; call Quit first if needed.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	currentLoop.CompareAndSwap(l, nil)
}

func (l *Loop) nextTaskIDLocked() uint64 {
	l.nextTaskID++
	return l.nextTaskID
}

// NewToken mints a suspension token unique for this loop's lifetime, for
// callers (such as the signal dispatcher's blocking delivery mode) that
// need to Yield/Unyield around something that isn't itself a Task.
func (l *Loop) NewToken() Token {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextToken++
	return Token(l.nextToken)
}

// signalWork wakes any goroutine blocked in waitForWork. Broadcasting is
// implemented by closing and replacing the wake channel — the idiomatic
// Go substitute for the original's condition_variable::notify_all.
func (l *Loop) signalWork() {
	l.mu.Lock()
	close(l.wakeCh)
	l.wakeCh = make(chan struct{})
	l.mu.Unlock()
}

func (l *Loop) waitForWork(maxWait time.Duration) {
	l.mu.Lock()
	ch := l.wakeCh
	l.mu.Unlock()
	select {
	case <-ch:
	case <-time.After(maxWait):
	}
}

// Post enqueues a closure to be run as a fresh task (§4.B "post"). It is
// the only Loop entry point documented safe to call from any goroutine,
// including ones the Loop does not own.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.readyItems = append(l.readyItems, readyItem{fn: fn})
	l.mu.Unlock()
	l.metrics.postedClosures.Add(1)
	l.signalWork()
	return nil
}

// Unyield marks the suspended task registered under token ready to
// resume (§4.A "unyield"). Unknown tokens are a no-op. Calling Unyield
// twice on the same token before it is actually resumed is idempotent:
// the token is enqueued at most once (§9 open question #2).
//
// Unyield is safe to call from within a running task, from a timer
// closure, from a completion hook, or from any other goroutine.
func (l *Loop) Unyield(token Token) {
	l.mu.Lock()
	if _, ok := l.suspended[token]; !ok {
		l.mu.Unlock()
		return
	}
	if l.pending[token] {
		l.mu.Unlock()
		return
	}
	l.pending[token] = true
	l.readyItems = append(l.readyItems, readyItem{token: token, isToken: true})
	l.mu.Unlock()
	l.signalWork()
}

// Yield is a convenience that suspends whichever task is currently
// running on this loop (§4.A). It panics with ErrNoCurrentTask if called
// outside of a running task's goroutine.
func (l *Loop) Yield(token Token) {
	t := l.currentTask
	if t == nil {
		panic(ErrNoCurrentTask)
	}
	t.Yield(token)
}

// Spawn wraps fn in a fresh Task and runs it to completion or first
// suspension, blocking the caller until one of those happens (§4.A
// "spawn"). Spawn is how the loop hands the baton to a task; it must be
// called from the loop's own drive goroutine (from ProcessOnce, or
// recursively from within a running task/timer/completion hook — all of
// which execute serialized on that same logical thread).
func (l *Loop) Spawn(fn func()) *Task {
	l.mu.Lock()
	id := l.nextTaskIDLocked()
	l.mu.Unlock()

	t := &Task{id: id, state: StateRunning, loop: l}
	t.yieldedCh = make(chan struct{})

	prev := l.currentTask
	l.currentTask = t
	l.metrics.tasksSpawned.Add(1)

	go func() {
		defer l.finishTask(t)
		fn()
	}()

	<-t.yieldedCh
	l.currentTask = prev
	return t
}

func (l *Loop) resume(token Token) {
	l.mu.Lock()
	t, ok := l.suspended[token]
	if !ok {
		l.mu.Unlock()
		return
	}
	delete(l.suspended, token)
	delete(l.pending, token)
	l.mu.Unlock()

	t.yieldedCh = make(chan struct{})
	prev := l.currentTask
	l.currentTask = t
	l.metrics.tasksResumed.Add(1)

	resumeCh := t.resumeCh
	close(resumeCh)

	<-t.yieldedCh
	l.currentTask = prev
}

func (l *Loop) finishTask(t *Task) {
	if r := recover(); r != nil {
		t.state = StateFinished
		l.reportTaskPanic(t, r)
	}
	if t.state != StateSuspended {
		t.state = StateFinished
		ch := t.yieldedCh
		if ch != nil {
			close(ch)
		}
	}
}

func (l *Loop) reportTaskPanic(t *Task, r any) {
	err := fmt.Errorf("%w: task %d: %v", ErrTaskPanicked, t.id, r)
	if l.panicPolicy != nil {
		l.panicPolicy(err)
		return
	}
	l.logger.Printf("%v", err)
}

// AddCompletionSource installs a poller invoked once per iteration during
// step 4 (§4.B). Used by ioloop.Facility to bridge OS completions into
// the loop.
func (l *Loop) AddCompletionSource(p CompletionPoller) {
	l.mu.Lock()
	l.completionSources = append(l.completionSources, p)
	l.mu.Unlock()
}

func (l *Loop) drainCompletions() {
	l.mu.Lock()
	sources := append([]CompletionPoller(nil), l.completionSources...)
	l.mu.Unlock()

	for _, p := range sources {
		l.runCompletionSource(p)
	}
}

func (l *Loop) runCompletionSource(p CompletionPoller) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Printf("%s: completion source panicked: %v", Namespace, r)
		}
	}()
	p()
}

// ProcessOnce runs exactly one iteration of the algorithm in §4.B and
// returns the recommended sleep before the next call:
//
//  1. If the ready queue is empty, the timer set is empty, and block is
//     true, wait until Post/Unyield/AddTimer/Quit signals new work.
//  2. Pop and execute at most one ready item (a fresh closure or a
//     resume-token).
//  3. Fire every ready timer in registration order.
//  4. Drain ready OS completions via the installed CompletionPollers.
//  5. Any resume produced by steps 2-4 is already sitting in the ready
//     queue (Unyield enqueues directly under the shared lock), so there
//     is nothing left to drain; return the bounded recommended sleep.
func (l *Loop) ProcessOnce(block bool) time.Duration {
	l.mu.Lock()
	empty := len(l.readyItems) == 0
	noTimers := len(l.timers) == 0
	l.mu.Unlock()

	if empty && noTimers && block {
		l.waitForWork(24 * time.Hour)
	}

	l.mu.Lock()
	var item readyItem
	hasItem := false
	if len(l.readyItems) > 0 {
		item = l.readyItems[0]
		l.readyItems = l.readyItems[1:]
		hasItem = true
	}
	l.mu.Unlock()

	if hasItem {
		if item.isToken {
			l.resume(item.token)
		} else {
			l.Spawn(item.fn)
		}
	}

	minWait := l.fireReadyTimers()
	l.drainCompletions()

	if minWait <= 0 || minWait > maxIterationSleep {
		minWait = maxIterationSleep
	}
	return minWait
}

// Run enters the loop until Quit or Exit is called and returns the exit
// code (§4.B "run").
func (l *Loop) Run() int {
	l.mu.Lock()
	l.running = true
	l.mu.Unlock()

	for l.isRunning() {
		sleep := l.ProcessOnce(true)
		if !l.isRunning() {
			break
		}
		time.Sleep(sleep)
	}
	return l.exitCode
}

// RunFor enters the loop bounded by wall-clock time max and returns the
// exit code (§4.B "run_for").
func (l *Loop) RunFor(max time.Duration) int {
	deadline := time.Now().Add(max)

	l.mu.Lock()
	l.running = true
	l.mu.Unlock()

	for l.isRunning() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		wait := remaining
		if wait > 50*time.Millisecond {
			wait = 50 * time.Millisecond
		}
		sleep := l.processOnceBounded(true, wait)
		if !l.isRunning() {
			break
		}
		if sleep > remaining {
			sleep = remaining
		}
		if sleep > 0 {
			time.Sleep(sleep)
		}
	}
	return l.exitCode
}

// processOnceBounded behaves like ProcessOnce but bounds the step-1
// blocking wait to maxWait instead of waiting indefinitely, so RunFor
// remains responsive to its wall-clock deadline.
func (l *Loop) processOnceBounded(block bool, maxWait time.Duration) time.Duration {
	l.mu.Lock()
	empty := len(l.readyItems) == 0
	noTimers := len(l.timers) == 0
	l.mu.Unlock()

	if empty && noTimers && block {
		l.waitForWork(maxWait)
	}

	l.mu.Lock()
	var item readyItem
	hasItem := false
	if len(l.readyItems) > 0 {
		item = l.readyItems[0]
		l.readyItems = l.readyItems[1:]
		hasItem = true
	}
	l.mu.Unlock()

	if hasItem {
		if item.isToken {
			l.resume(item.token)
		} else {
			l.Spawn(item.fn)
		}
	}

	minWait := l.fireReadyTimers()
	l.drainCompletions()

	if minWait <= 0 || minWait > maxIterationSleep {
		minWait = maxIterationSleep
	}
	return minWait
}

func (l *Loop) isRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Quit requests termination with exit code 0 (§4.B "quit"). Safe from any
// task or completion handler.
func (l *Loop) Quit() { l.exit(0) }

// Exit requests termination with the given exit code (§4.B "exit").
func (l *Loop) Exit(code int) { l.exit(code) }

func (l *Loop) exit(code int) {
	l.mu.Lock()
	l.running = false
	l.exitCode = code
	l.mu.Unlock()
	l.signalWork()
}
