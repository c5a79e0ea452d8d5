// internal/pool/pool.go
package pool

import (
	"bytes"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// The sender compresses batch bodies on every flush; reusing the gzip
// writers and the output buffers keeps that path allocation-free. Event
// objects themselves are NOT pooled: their payload maps transfer ownership
// to the queue and later to the wire encoder, so zero-and-reuse would
// alias live data.

var (
	// BufferPool holds body/compression output buffers. 32KB starting
	// capacity covers a default batch (50 events) comfortably.
	BufferPool = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(make([]byte, 0, 32*1024))
		},
	}

	// GzipPool holds gzip writers; BestSpeed, since the bodies are
	// shipped over the network anyway and the host page's CPU budget is
	// not ours to spend.
	GzipPool = sync.Pool{
		New: func() any {
			w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
			return w
		},
	}
)

// MaxBufferCap bounds what goes back into BufferPool. Replay payloads can
// inflate a body well past the norm; returning such a buffer would pin
// the memory for the process lifetime.
const MaxBufferCap = 1 * 1024 * 1024

// PutBuffer returns buf to the pool unless it grew past MaxBufferCap.
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() <= MaxBufferCap {
		buf.Reset()
		BufferPool.Put(buf)
	}
}
