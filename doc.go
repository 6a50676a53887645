// Package loopwire provides a cooperative, single-threaded event loop with
// suspendable tasks, built in the style of a classic desktop application
// toolkit's core event system but expressed with goroutines and channels
// instead of fibers.
//
// Components
//   - Task: a unit of cooperative execution. Exactly one task is ever
//     "running" at a time; a task may suspend with Yield and be resumed
//     later with Unyield without losing any local state, because each
//     task body runs on its own goroutine that the Loop only ever
//     resumes one at a time (see Loop.Spawn/resume — the "baton").
//   - Loop: owns the ready queue, the timer set, and the suspended-task
//     table, and drives iterations per the algorithm documented on
//     ProcessOnce.
//   - Timer: a recurring or single-shot callback driven by the Loop.
//
// The signal/slot dispatcher lives in the sibling package
// github.com/arwx/loopwire/signal; the async I/O core (sockets, files,
// child processes) lives in github.com/arwx/loopwire/ioloop. Both are
// built on top of the Loop's Post/Yield/Unyield primitives.
//
// Construction
//
//	l := loopwire.New(loopwire.WithLogger(myLogger))
//	l.AddTimer(func() { fmt.Println("tick") }, 50*time.Millisecond, false)
//	l.Post(func() { fmt.Println("hello") })
//	os.Exit(l.Run())
package loopwire
