package ioloop

import "github.com/arwx/loopwire/pool"

// readChunkSize is the maximum a single TCPSocket.Read call ever
// transfers (§4.D "Reading policy": "at most one non-blocking OS read of
// up to min(max, 1024) bytes").
const readChunkSize = 1024

// bufPool recycles the fixed-size scratch buffers TCPSocket.Read uses for
// its single non-blocking recv, so repeated reads on a busy socket do not
// allocate a fresh []byte every call. This is the pool.Pool-shaped
// abstraction the teacher's pool package already provides (fixed.go),
// repurposed here for read buffers instead of worker values — exactly what
// §4.D means by "the caller-supplied buffers are recycled" once a caller
// (TCPSocket) sits in a tight read loop.
var bufPool = pool.NewFixed(64, func() interface{} {
	return make([]byte, readChunkSize)
})

func getReadBuf() []byte {
	return bufPool.Get().([]byte)
}

func putReadBuf(b []byte) {
	bufPool.Put(b[:cap(b)])
}
