package ioloop

import (
	"os"
	"sync/atomic"

	"github.com/arwx/loopwire/object"
	"github.com/arwx/loopwire/signal"
)

// FileDevice wraps an *os.File with the fire-and-monitor write pattern
// (§4.D "Write operation... used by the file device"): a single in-flight
// write at a time, whose completion hook sets a flag the caller polls
// with loop ticks, rather than the socket's buffered streaming path.
type FileDevice struct {
	*object.Object

	facility *Facility
	file     *os.File

	writeFlag int32 // atomic: writeIdle, writeInFlight or writeCompleted
	writeErr  error

	readDone  *signal.Signal[readResult]
	writeDone *signal.Signal[error]
}

// readResult carries the outcome of a ReadAsync call to its signal
// subscribers, mirroring the continuation argument (§4.D "the actual
// bytes transferred, or... an error kind").
type readResult struct {
	Data []byte
	Err  error
}

// NewFileDevice wraps an already-open file for async reads and
// fire-and-monitor writes, with its I/O routed through facility.
func NewFileDevice(facility *Facility, file *os.File) *FileDevice {
	obj := object.New()
	return &FileDevice{
		Object:    obj,
		facility:  facility,
		file:      file,
		readDone:  signal.New[readResult](obj, nil),
		writeDone: signal.New[error](obj, nil),
	}
}

// ReadDone fires once per ReadAsync call with the bytes transferred or an
// error kind (§4.D "read_async").
func (d *FileDevice) ReadDone() *signal.Signal[readResult] { return d.readDone }

// WriteDone fires once the in-flight fire-and-monitor write completes.
func (d *FileDevice) WriteDone() *signal.Signal[error] { return d.writeDone }

// ReadAsync posts a read request for size bytes at offset with an owned
// buffer; ReadDone fires from the facility's next poll with the actual
// bytes transferred (§4.D "read_async").
func (d *FileDevice) ReadAsync(size int, offset int64) error {
	buf := make([]byte, size)
	return d.facility.Submit(Request{
		Handle:    d.file.Name(),
		Direction: DirRead,
		Do: func() (int, error) {
			return d.file.ReadAt(buf, offset)
		},
		Continuation: func(n int, err error) {
			d.readDone.Emit(readResult{Data: buf[:n], Err: err})
		},
	})
}

// WriteAsync starts a single in-flight write at offset (§4.D
// "fire-and-monitor"). Calling WriteAsync again before the previous write
// completes returns ErrBadState.
func (d *FileDevice) WriteAsync(data []byte, offset int64) error {
	started := atomic.CompareAndSwapInt32(&d.writeFlag, writeIdle, writeInFlight) ||
		atomic.CompareAndSwapInt32(&d.writeFlag, writeCompleted, writeInFlight)
	if !started {
		return ErrBadState
	}
	return d.facility.Submit(Request{
		Handle:    d.file.Name(),
		Direction: DirWrite,
		Do: func() (int, error) {
			return d.file.WriteAt(data, offset)
		},
		Continuation: func(_ int, err error) {
			d.writeErr = err
			atomic.StoreInt32(&d.writeFlag, writeCompleted)
			d.writeDone.Emit(err)
		},
	})
}

const (
	writeIdle = iota
	writeInFlight
	writeCompleted
)

// WriteComplete reports whether the most recently started WriteAsync has
// finished (§4.D "the caller may swhile(!flag) with loop ticks between
// checks"). The flag stays set until the next WriteAsync call starts a
// new write, so repeated polling after completion keeps returning true.
func (d *FileDevice) WriteComplete() (done bool, err error) {
	return atomic.LoadInt32(&d.writeFlag) != writeInFlight, d.writeErr
}
