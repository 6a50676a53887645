// Package ioloop is the async I/O core (§4.D): it binds OS handles — TCP
// sockets, files, child-process pipes — to a Loop's completion-draining
// step, translating OS completions into signals and into Unyield calls.
//
// The original source's completion facility is an IOCP/epoll-style kernel
// object that delivers callbacks from a reactor thread; Go exposes no
// equivalent hook into its own netpoller, so Facility is the idiomatic
// substitute named by the spec's "specified only by the capability the
// core consumes" (§1): one goroutine per in-flight read or write performs
// the real blocking syscall (net.Conn.Read, os.File.WriteAt, ...) and posts
// a completion onto a channel that the Loop's step 4 drains non-blockingly
// through a loopwire.CompletionPoller.
//
// TCPSocket implements the full state machine of §4.D ("TCP socket state
// machine"): unconnected -> host-lookup -> connecting -> connected ->
// closing -> unconnected, with the five signals and the buffered,
// non-blocking write path. FileDevice and Process reuse the same Facility
// plumbing per spec.md's "Child process and file device reuse the same
// primitives".
package ioloop
