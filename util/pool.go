package util

import "sync"

// ReadBufSize is the standard buffer size for transport reads.  Serial
// links deliver small bursts, so this stays well below typical network
// buffer sizes.
const ReadBufSize = 4 * 1024

// BufPool provides reusable byte buffers for the background reader's
// hot loop, reducing GC pressure while draining the transport.
var BufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, ReadBufSize)
		return &buf
	},
}

// GetBuf retrieves a buffer from the pool.  Callers must return it
// with [PutBuf] when finished.
func GetBuf() *[]byte {
	return BufPool.Get().(*[]byte)
}

// PutBuf returns a buffer to the pool for reuse.
func PutBuf(buf *[]byte) {
	if buf == nil {
		return
	}
	BufPool.Put(buf)
}
